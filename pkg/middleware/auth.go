package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/shashiranjanraj/phonedeals/pkg/auth"
	"github.com/shashiranjanraj/phonedeals/pkg/logger"
	"github.com/shashiranjanraj/phonedeals/pkg/response"
	"github.com/shashiranjanraj/phonedeals/pkg/session"
)

// ActiveUsers reports whether a user id still names an enabled account.
type ActiveUsers interface {
	IsActive(ctx context.Context, id uint) (bool, error)
}

// Authenticate resolves the request principal and stores it in the context.
// It never rejects a request; the Require* guards do that.
//
// Resolution order: bearer token, then admin session cookie. A user token
// whose account has since been disabled or deleted resolves to Anonymous,
// and so does an admin token whose session is gone. A live admin session is
// extended on every request.
func Authenticate(users ActiveUsers, sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, sid := fromBearer(r, users, sessions)
			if p.IsAnonymous() && sessions != nil {
				p, sid = fromSession(w, r, sessions)
			}
			ctx := auth.WithPrincipal(r.Context(), p)
			if sid != "" {
				ctx = session.WithID(ctx, sid)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func fromBearer(r *http.Request, users ActiveUsers, sessions *session.Manager) (auth.Principal, string) {
	anon := auth.Anonymous()
	tok := bearer(r)
	if tok == "" {
		return anon, ""
	}
	claims, err := auth.ValidateToken(tok)
	if err != nil {
		return anon, ""
	}

	p := claims.Principal()
	if p.IsAdmin() {
		if sessions == nil {
			return anon, ""
		}
		s, err := sessions.Lookup(r.Context(), claims.SessionID)
		if err != nil {
			if !errors.Is(err, session.ErrNoSession) {
				logger.WithCtx(r.Context()).Error("auth: session load failed", "error", err)
			}
			return anon, ""
		}
		if !s.Admin || sessions.Refresh(r.Context(), s.ID) != nil {
			return anon, ""
		}
		return p, s.ID
	}

	id, isUser := p.UserID()
	if !isUser {
		return p, ""
	}
	active, err := users.IsActive(r.Context(), id)
	if err != nil {
		logger.WithCtx(r.Context()).Error("auth: user lookup failed", "user_id", id, "error", err)
		return anon, ""
	}
	if !active {
		return anon, ""
	}
	return p, ""
}

func fromSession(w http.ResponseWriter, r *http.Request, sessions *session.Manager) (auth.Principal, string) {
	s, err := sessions.Load(r.Context(), r)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			logger.WithCtx(r.Context()).Error("auth: session load failed", "error", err)
		}
		return auth.Anonymous(), ""
	}
	if !s.Admin {
		return auth.Anonymous(), ""
	}
	if err := sessions.Touch(r.Context(), w, s); err != nil {
		return auth.Anonymous(), ""
	}
	return auth.Admin(), s.ID
}

// RequireAuth admits any non-anonymous principal.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.FromCtx(r.Context()).IsAnonymous() {
			response.Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser admits only the User variant. The admin is not a marketplace
// account and gets 403.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromCtx(r.Context())
		switch {
		case p.IsAnonymous():
			response.Unauthorized(w)
		case !p.IsUser():
			response.Forbidden(w)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// RequireAdmin admits only the Admin variant.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromCtx(r.Context())
		switch {
		case p.IsAnonymous():
			response.Unauthorized(w)
		case !p.IsAdmin():
			response.Forbidden(w)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

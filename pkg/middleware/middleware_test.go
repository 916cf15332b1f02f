package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/phonedeals/pkg/auth"
	"github.com/shashiranjanraj/phonedeals/pkg/cache"
	"github.com/shashiranjanraj/phonedeals/pkg/middleware"
	"github.com/shashiranjanraj/phonedeals/pkg/session"
)

type fakeUsers map[uint]bool

func (f fakeUsers) IsActive(_ context.Context, id uint) (bool, error) {
	if id == 500 {
		return false, errors.New("db down")
	}
	return f[id], nil
}

func principalOf(t *testing.T, h func(http.Handler) http.Handler, req *http.Request) (auth.Principal, *httptest.ResponseRecorder) {
	t.Helper()
	var got auth.Principal
	rec := httptest.NewRecorder()
	h(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = auth.FromCtx(r.Context())
	})).ServeHTTP(rec, req)
	return got, rec
}

func withBearer(t *testing.T, p auth.Principal) *http.Request {
	t.Helper()
	tok, _, err := auth.IssueAccessToken(p, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	return req
}

func TestAuthenticateBearer(t *testing.T) {
	users := fakeUsers{1: true, 2: false}
	mw := middleware.Authenticate(users, nil)

	p, _ := principalOf(t, mw, withBearer(t, auth.User(1)))
	assert.Equal(t, auth.User(1), p)

	p, _ = principalOf(t, mw, withBearer(t, auth.User(2)))
	assert.True(t, p.IsAnonymous(), "disabled user")

	p, _ = principalOf(t, mw, withBearer(t, auth.User(3)))
	assert.True(t, p.IsAnonymous(), "deleted user")

	p, _ = principalOf(t, mw, withBearer(t, auth.User(500)))
	assert.True(t, p.IsAnonymous(), "lookup failure")
}

func adminBearer(t *testing.T, sid string) *http.Request {
	t.Helper()
	tok, _, err := auth.IssueAdminToken(sid, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	return req
}

func TestAdminBearerLivesAsLongAsItsSession(t *testing.T) {
	ctx := context.Background()
	sessions := session.NewManager(cache.NewMemory(), session.DefaultOptions())
	s, err := sessions.Start(ctx, httptest.NewRecorder(), session.Session{Admin: true})
	require.NoError(t, err)
	mw := middleware.Authenticate(fakeUsers{}, sessions)

	var sid string
	rec := httptest.NewRecorder()
	mw(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		assert.True(t, auth.FromCtx(r.Context()).IsAdmin())
		sid = session.IDFromCtx(r.Context())
	})).ServeHTTP(rec, adminBearer(t, s.ID))
	assert.Equal(t, s.ID, sid)
	assert.Empty(t, rec.Result().Cookies(), "bearer requests get no cookie")

	p, _ := principalOf(t, mw, adminBearer(t, "forged"))
	assert.True(t, p.IsAnonymous(), "unknown session")

	p, _ = principalOf(t, middleware.Authenticate(fakeUsers{}, nil), adminBearer(t, s.ID))
	assert.True(t, p.IsAnonymous(), "no session store to check against")

	logout := adminBearer(t, s.ID)
	logout = logout.WithContext(session.WithID(logout.Context(), s.ID))
	require.NoError(t, sessions.Destroy(ctx, httptest.NewRecorder(), logout))

	p, _ = principalOf(t, mw, adminBearer(t, s.ID))
	assert.True(t, p.IsAnonymous(), "logged out")
}

func TestAuthenticateGarbageToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")

	p, _ := principalOf(t, middleware.Authenticate(fakeUsers{}, nil), req)
	assert.True(t, p.IsAnonymous())
}

func TestAuthenticateAdminSessionIsRolling(t *testing.T) {
	sessions := session.NewManager(cache.NewMemory(), session.DefaultOptions())
	start := httptest.NewRecorder()
	_, err := sessions.Start(context.Background(), start, session.Session{Admin: true})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range start.Result().Cookies() {
		req.AddCookie(c)
	}

	p, rec := principalOf(t, middleware.Authenticate(fakeUsers{}, sessions), req)
	assert.True(t, p.IsAdmin())
	require.Len(t, rec.Result().Cookies(), 1, "session cookie refreshed")
	assert.Equal(t, 900, rec.Result().Cookies()[0].MaxAge)
}

func TestGuards(t *testing.T) {
	cases := []struct {
		name  string
		guard func(http.Handler) http.Handler
		p     auth.Principal
		code  int
	}{
		{"auth anon", middleware.RequireAuth, auth.Anonymous(), http.StatusUnauthorized},
		{"auth admin", middleware.RequireAuth, auth.Admin(), http.StatusOK},
		{"user anon", middleware.RequireUser, auth.Anonymous(), http.StatusUnauthorized},
		{"user admin", middleware.RequireUser, auth.Admin(), http.StatusForbidden},
		{"user user", middleware.RequireUser, auth.User(1), http.StatusOK},
		{"admin anon", middleware.RequireAdmin, auth.Anonymous(), http.StatusUnauthorized},
		{"admin user", middleware.RequireAdmin, auth.User(1), http.StatusForbidden},
		{"admin admin", middleware.RequireAdmin, auth.Admin(), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(auth.WithPrincipal(req.Context(), tc.p))
			rec := httptest.NewRecorder()
			tc.guard(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})).ServeHTTP(rec, req)
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestLimiter(t *testing.T) {
	l := middleware.NewLimiter(2, time.Minute)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "separate bucket per IP")
}

func TestRecovery(t *testing.T) {
	rec := httptest.NewRecorder()
	middleware.Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "kaboom")
}

func TestCORSPreflight(t *testing.T) {
	h := middleware.CORS("http://localhost:3000/")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/api/listings", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

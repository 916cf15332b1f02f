// Package reqid assigns every request a sortable id and propagates it through
// the context and the X-Request-ID header.
package reqid

import (
	"context"
	"net/http"
	"regexp"

	"github.com/oklog/ulid/v2"
)

type ctxKey struct{}

const Header = "X-Request-ID"

// upstream ids are echoed only when they look like ids, not arbitrary text.
var accepted = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// New returns a fresh ULID string.
func New() string {
	return ulid.Make().String()
}

func WithValue(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromCtx returns the request id in ctx, or "".
func FromCtx(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

// Middleware reuses an upstream X-Request-ID or generates one.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(Header)
			if !accepted.MatchString(id) {
				id = New()
			}
			w.Header().Set(Header, id)
			next.ServeHTTP(w, r.WithContext(WithValue(r.Context(), id)))
		})
	}
}

package auth

import (
	"context"
	"fmt"
)

// Kind is the variant tag of a Principal.
type Kind uint8

const (
	KindAnonymous Kind = iota
	KindUser
	KindAdmin
)

// Principal is the resolved identity behind a request: anonymous, a specific
// user, or the platform admin. The admin is its own variant and never maps to
// a users row.
type Principal struct {
	kind   Kind
	userID uint
}

// Anonymous is the zero Principal.
func Anonymous() Principal { return Principal{} }

// User returns the principal for an authenticated user.
func User(id uint) Principal { return Principal{kind: KindUser, userID: id} }

// Admin returns the platform-admin principal.
func Admin() Principal { return Principal{kind: KindAdmin} }

func (p Principal) Kind() Kind        { return p.kind }
func (p Principal) IsAnonymous() bool { return p.kind == KindAnonymous }
func (p Principal) IsUser() bool      { return p.kind == KindUser }
func (p Principal) IsAdmin() bool     { return p.kind == KindAdmin }

// UserID returns the user id for the User variant.
func (p Principal) UserID() (uint, bool) {
	if p.kind != KindUser {
		return 0, false
	}
	return p.userID, true
}

// Is reports whether p is the user with the given id.
func (p Principal) Is(id uint) bool {
	return p.kind == KindUser && id != 0 && p.userID == id
}

func (p Principal) String() string {
	switch p.kind {
	case KindUser:
		return fmt.Sprintf("user:%d", p.userID)
	case KindAdmin:
		return "admin"
	default:
		return "anonymous"
	}
}

type ctxKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromCtx returns the principal stored in ctx, or Anonymous.
func FromCtx(ctx context.Context) Principal {
	if p, ok := ctx.Value(ctxKey{}).(Principal); ok {
		return p
	}
	return Anonymous()
}

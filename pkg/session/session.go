// Package session keeps server-side sessions in the cache store, keyed by a
// random id carried in an HttpOnly cookie. Sessions are rolling: every
// authenticated request pushes the expiry forward by TTL.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/shashiranjanraj/phonedeals/pkg/cache"
)

// ErrNoSession is returned when the request carries no live session.
var ErrNoSession = errors.New("session: not found")

type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
	SameSite   http.SameSite
	Path       string
}

func DefaultOptions() Options {
	return Options{
		CookieName: "admin.sid",
		TTL:        15 * time.Minute,
		SameSite:   http.SameSiteLaxMode,
		Path:       "/",
	}
}

// Session is the stored state.
type Session struct {
	ID        string    `json:"-"`
	Admin     bool      `json:"admin"`
	UserID    uint      `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager creates, loads and destroys sessions.
type Manager struct {
	store cache.Store
	opts  Options
}

func NewManager(store cache.Store, opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = DefaultOptions().CookieName
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultOptions().TTL
	}
	if opts.Path == "" {
		opts.Path = "/"
	}
	return &Manager{store: store, opts: opts}
}

func (m *Manager) TTL() time.Duration { return m.opts.TTL }

func key(id string) string { return "session:" + id }

func newID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Start stores s under a fresh id and writes the cookie.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter, s Session) (Session, error) {
	id, err := newID()
	if err != nil {
		return Session{}, err
	}
	s.ID = id
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if err := m.store.Set(ctx, key(id), s, m.opts.TTL); err != nil {
		return Session{}, err
	}
	m.writeCookie(w, id, int(m.opts.TTL.Seconds()))
	return s, nil
}

// Load returns the session named by the request cookie.
func (m *Manager) Load(ctx context.Context, r *http.Request) (Session, error) {
	c, err := r.Cookie(m.opts.CookieName)
	if err != nil || c.Value == "" {
		return Session{}, ErrNoSession
	}
	return m.Lookup(ctx, c.Value)
}

// Lookup returns the session stored under id.
func (m *Manager) Lookup(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{}, ErrNoSession
	}
	var s Session
	if err := m.store.Get(ctx, key(id), &s); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return Session{}, ErrNoSession
		}
		return Session{}, err
	}
	s.ID = id
	return s, nil
}

// Refresh extends a live session by TTL.
func (m *Manager) Refresh(ctx context.Context, id string) error {
	if err := m.store.Touch(ctx, key(id), m.opts.TTL); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return ErrNoSession
		}
		return err
	}
	return nil
}

// Touch extends a live session by TTL and refreshes the cookie.
func (m *Manager) Touch(ctx context.Context, w http.ResponseWriter, s Session) error {
	if err := m.Refresh(ctx, s.ID); err != nil {
		return err
	}
	m.writeCookie(w, s.ID, int(m.opts.TTL.Seconds()))
	return nil
}

// Destroy deletes the session the request authenticated with (see WithID)
// and the one named by its cookie, and clears the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	m.writeCookie(w, "", -1)
	ids := []string{IDFromCtx(r.Context())}
	if c, err := r.Cookie(m.opts.CookieName); err == nil {
		ids = append(ids, c.Value)
	}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if err := m.store.Del(ctx, key(id)); err != nil {
			return err
		}
	}
	return nil
}

type ctxKey struct{}

// WithID records the session id a request authenticated with.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IDFromCtx returns the id stored by WithID, or "".
func IDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (m *Manager) writeCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    value,
		Path:     m.opts.Path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: m.opts.SameSite,
	})
}

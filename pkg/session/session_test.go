package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/phonedeals/pkg/cache"
	"github.com/shashiranjanraj/phonedeals/pkg/session"
)

func requestWith(cookies []*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

func TestStartLoadDestroy(t *testing.T) {
	m := session.NewManager(cache.NewMemory(), session.DefaultOptions())
	ctx := context.Background()

	rec := httptest.NewRecorder()
	s, err := m.Start(ctx, rec, session.Session{Admin: true})
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "admin.sid", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 900, cookies[0].MaxAge)

	loaded, err := m.Load(ctx, requestWith(cookies))
	require.NoError(t, err)
	assert.True(t, loaded.Admin)
	assert.Equal(t, s.ID, loaded.ID)

	rec = httptest.NewRecorder()
	require.NoError(t, m.Destroy(ctx, rec, requestWith(cookies)))
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)

	_, err = m.Load(ctx, requestWith(cookies))
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestLoadWithoutCookie(t *testing.T) {
	m := session.NewManager(cache.NewMemory(), session.DefaultOptions())
	_, err := m.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestTouchUnknownSession(t *testing.T) {
	m := session.NewManager(cache.NewMemory(), session.Options{TTL: time.Minute})
	err := m.Touch(context.Background(), httptest.NewRecorder(), session.Session{ID: "gone"})
	assert.ErrorIs(t, err, session.ErrNoSession)
}

package ctx_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/phonedeals/pkg/apperr"
	"github.com/shashiranjanraj/phonedeals/pkg/auth"
	appctx "github.com/shashiranjanraj/phonedeals/pkg/ctx"
)

func TestWrapAndJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	appctx.Wrap(func(c *appctx.Context) {
		c.JSON(http.StatusOK, map[string]any{"ok": true})
	})(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok":true`)
}

func TestCreatedEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	appctx.Wrap(func(c *appctx.Context) {
		c.Created(map[string]any{"id": 7})
	})(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"status":201,"data":{"id":7}}`, rec.Body.String())
}

func TestBindJSONValid(t *testing.T) {
	rec := httptest.NewRecorder()
	body := `{"rating":4,"comment":"fine"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	appctx.Wrap(func(c *appctx.Context) {
		var in struct {
			Rating  int    `json:"rating"  validate:"required,between=1,5"`
			Comment string `json:"comment"`
		}
		if !c.BindJSON(&in) {
			t.Error("expected BindJSON to succeed")
			return
		}
		assert.Equal(t, 4, in.Rating)
		c.Success(nil)
	})(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBindJSONInvalid(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"rating":9}`))

	appctx.Wrap(func(c *appctx.Context) {
		var in struct {
			Rating int `json:"rating" validate:"required,between=1,5"`
		}
		if c.BindJSON(&in) {
			t.Error("expected BindJSON to fail")
		}
	})(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rating"`)
}

func TestBindJSONMalformed(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))

	appctx.Wrap(func(c *appctx.Context) {
		var in struct{}
		c.BindJSON(&in)
	})(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFailMapsKinds(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{apperr.NotFound("listing not found"), http.StatusNotFound},
		{apperr.Forbidden("nope"), http.StatusForbidden},
		{apperr.ErrInsufficientStock, http.StatusConflict},
		{errors.New("db exploded"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		appctx.Wrap(func(c *appctx.Context) { c.Fail(tc.err) })(rec, req)

		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}

func TestFailHidesInternalCause(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	appctx.Wrap(func(c *appctx.Context) {
		c.Fail(errors.New("password=hunter2"))
	})(rec, req)

	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestPrincipalDefaultsToAnonymous(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	appctx.Wrap(func(c *appctx.Context) {
		assert.True(t, c.Principal().IsAnonymous())
	})(rec, req)

	req = req.WithContext(auth.WithPrincipal(req.Context(), auth.User(3)))
	appctx.Wrap(func(c *appctx.Context) {
		id, ok := c.Principal().UserID()
		assert.True(t, ok)
		assert.Equal(t, uint(3), id)
	})(rec, req)
}

func TestClientIP(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")

	appctx.Wrap(func(c *appctx.Context) {
		assert.Equal(t, "1.2.3.4", c.ClientIP())
	})(rec, req)
}

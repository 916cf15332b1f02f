package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/phonedeals/pkg/router"
)

func ok(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func TestGroupMiddlewareOrderAndMethods(t *testing.T) {
	r := router.New()
	var order []string
	tag := func(name string) router.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, req)
			})
		}
	}

	api := r.Group("/api", tag("api"))
	listings := api.Group("listings", tag("listings"))
	listings.Patch("/{id}/reviews/{reviewID}/toggle-hidden", "listings.reviews.toggle", ok, tag("route"))
	listings.Delete("/{id}", "listings.delete", ok)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/listings/4/reviews/abc/toggle-hidden", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"api", "listings", "route"}, order)

	rec = httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/listings/4", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNamedRouteURL(t *testing.T) {
	r := router.New()
	r.Group("/api/listings").Get("/{id}", "listings.show", ok)

	url, err := r.URL("listings.show", map[string]string{"id": "12"})
	require.NoError(t, err)
	assert.Equal(t, "/api/listings/12", url)

	_, err = r.URL("listings.show", nil)
	assert.Error(t, err)
	_, err = r.URL("nope", nil)
	assert.Error(t, err)
}

func TestRoutesSorted(t *testing.T) {
	r := router.New()
	r.Post("/b", "b", ok)
	r.Get("/a", "a.get", ok)
	r.Group("/a").Put("/", "a.put", ok)

	routes := r.Routes()
	require.Len(t, routes, 3)
	assert.Equal(t, router.RouteInfo{Method: "GET", Path: "/a", Name: "a.get"}, routes[0])
	assert.Equal(t, "PUT", routes[1].Method)
	assert.Equal(t, "/b", routes[2].Path)
}

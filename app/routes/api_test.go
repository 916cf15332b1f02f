package routes_test

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/phonedeals/app/models"
	"github.com/shashiranjanraj/phonedeals/app/repositories"
	"github.com/shashiranjanraj/phonedeals/app/routes"
	"github.com/shashiranjanraj/phonedeals/app/services"
	"github.com/shashiranjanraj/phonedeals/internal/kernel"
	"github.com/shashiranjanraj/phonedeals/pkg/auth"
	"github.com/shashiranjanraj/phonedeals/pkg/mail"
	"github.com/shashiranjanraj/phonedeals/pkg/router"
	"github.com/shashiranjanraj/phonedeals/pkg/storage"
	"github.com/shashiranjanraj/phonedeals/pkg/testkit"
	"github.com/shashiranjanraj/phonedeals/pkg/ws"
)

const (
	password   = "Str0ng!pass"
	adminEmail = "admin@example.com"
)

var (
	hashOnce sync.Once
	pwHash   string
)

func hash(t *testing.T) string {
	hashOnce.Do(func() {
		h, err := auth.HashPassword(password)
		require.NoError(t, err)
		pwHash = h
	})
	return pwHash
}

type inline struct{}

func (inline) Run(_ string, job func() error) error { return job() }

type app struct {
	t        *testing.T
	h        http.Handler
	k        *kernel.Kernel
	users    *repositories.UserRepository
	listings *repositories.ListingRepository
	hub      *ws.Hub
}

func newApp(t *testing.T, tweak ...func(*kernel.Deps)) *app {
	t.Helper()
	db := testkit.DB(t, &models.User{}, &models.Listing{}, &models.Order{}, &models.OrderItem{}, &models.AdminLog{})
	disk, err := storage.NewLocal(t.TempDir(), "http://localhost/storage")
	require.NoError(t, err)

	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	d := kernel.Deps{
		DB:     db,
		Disk:   disk,
		Mailer: &mail.Recorder{},
		Async:  inline{},
		Hub:    hub,
		Auth: services.AuthOptions{
			UserTokenTTL:      time.Hour,
			AdminTokenTTL:     15 * time.Minute,
			AdminEmail:        adminEmail,
			AdminPasswordHash: hash(t),
		},
		FrontendURL: "http://frontend.test",
		Origins:     []string{"http://frontend.test"},
		MaxImage:    1 << 20,
	}
	for _, fn := range tweak {
		fn(&d)
	}
	k, err := kernel.New(d)
	require.NoError(t, err)

	return &app{
		t:        t,
		h:        k.Handler(),
		k:        k,
		users:    repositories.NewUserRepository(db),
		listings: repositories.NewListingRepository(db),
		hub:      hub,
	}
}

func (a *app) do(req testkit.Request) testkit.Response {
	a.t.Helper()
	return testkit.Do(a.t, a.h, req)
}

// user creates a verified account and logs it in over HTTP.
func (a *app) user(first string) (uint, string) {
	a.t.Helper()
	u := &models.User{
		FirstName: first,
		LastName:  "Tester",
		Email:     strings.ToLower(first) + "@example.com",
		Password:  hash(a.t),
		Verified:  true,
	}
	require.NoError(a.t, a.users.Create(context.Background(), u))

	res := a.do(testkit.Request{Method: http.MethodPost, Path: "/api/auth/login", Body: map[string]string{
		"email": u.Email, "password": password,
	}})
	require.Equal(a.t, http.StatusOK, res.Code, string(res.Raw))
	var sess services.Session
	res.Data(a.t, &sess)
	return u.ID, sess.Token
}

func (a *app) admin() string {
	a.t.Helper()
	res := a.do(testkit.Request{Method: http.MethodPost, Path: "/api/admin/login", Body: map[string]string{
		"email": adminEmail, "password": password,
	}})
	require.Equal(a.t, http.StatusOK, res.Code, string(res.Raw))
	var sess services.Session
	res.Data(a.t, &sess)
	return sess.Token
}

func (a *app) listing(seller uint, stock int) uint {
	a.t.Helper()
	l := &models.Listing{
		Title:    "Galaxy S9",
		Brand:    models.BrandSamsung,
		Image:    "listings/galaxy.jpeg",
		Stock:    stock,
		SellerID: seller,
		Price:    decimal.RequireFromString("120.50"),
	}
	require.NoError(a.t, a.listings.Create(context.Background(), l))
	return l.ID
}

func reviewIDs(v services.ListingView) []string {
	out := make([]string, 0, len(v.Reviews))
	for _, r := range v.Reviews {
		out = append(out, r.ID)
	}
	return out
}

func (a *app) show(id uint, token string) services.ListingView {
	a.t.Helper()
	res := a.do(testkit.Request{Method: http.MethodGet, Path: fmt.Sprintf("/api/listings/%d", id), Token: token})
	require.Equal(a.t, http.StatusOK, res.Code, string(res.Raw))
	var v services.ListingView
	res.Data(a.t, &v)
	return v
}

func TestHiddenReviewVisibilityOverHTTP(t *testing.T) {
	a := newApp(t)
	seller, sellerTok := a.user("Sam")
	_, authorTok := a.user("Una")
	_, otherTok := a.user("Ugo")
	adminTok := a.admin()
	id := a.listing(seller, 3)

	res := a.do(testkit.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/api/listings/%d/reviews", id),
		Token:  authorTok,
		Body:   map[string]any{"rating": 4, "comment": "solid"},
	})
	require.Equal(t, http.StatusCreated, res.Code, string(res.Raw))
	var review services.ReviewView
	res.Data(t, &review)

	res = a.do(testkit.Request{
		Method: http.MethodPatch,
		Path:   fmt.Sprintf("/api/listings/%d/reviews/%s/toggle-hidden", id, review.ID),
		Token:  otherTok,
	})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = a.do(testkit.Request{
		Method: http.MethodPatch,
		Path:   fmt.Sprintf("/api/listings/%d/reviews/%s/toggle-hidden", id, review.ID),
		Token:  authorTok,
	})
	require.Equal(t, http.StatusOK, res.Code, string(res.Raw))

	assert.Empty(t, reviewIDs(a.show(id, "")), "anonymous")
	assert.Empty(t, reviewIDs(a.show(id, otherTok)), "unrelated user")
	assert.Equal(t, []string{review.ID}, reviewIDs(a.show(id, authorTok)), "author")
	assert.Equal(t, []string{review.ID}, reviewIDs(a.show(id, sellerTok)), "seller")
	assert.Equal(t, []string{review.ID}, reviewIDs(a.show(id, adminTok)), "admin")
}

func TestDisabledListingIsNotFoundForStrangers(t *testing.T) {
	a := newApp(t)
	seller, sellerTok := a.user("Sam")
	_, otherTok := a.user("Ugo")
	id := a.listing(seller, 1)

	res := a.do(testkit.Request{Method: http.MethodPost, Path: fmt.Sprintf("/api/listings/%d/disable", id), Token: sellerTok})
	require.Equal(t, http.StatusOK, res.Code, string(res.Raw))

	res = a.do(testkit.Request{Method: http.MethodGet, Path: fmt.Sprintf("/api/listings/%d", id), Token: otherTok})
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = a.do(testkit.Request{Method: http.MethodGet, Path: "/api/listings"})
	require.Equal(t, http.StatusOK, res.Code)
	var list []services.ListingView
	res.Data(t, &list)
	assert.Empty(t, list)

	a.show(id, sellerTok)
}

func TestGuards(t *testing.T) {
	a := newApp(t)
	_, tok := a.user("Una")
	adminTok := a.admin()

	res := a.do(testkit.Request{Method: http.MethodGet, Path: "/api/admin/users"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = a.do(testkit.Request{Method: http.MethodGet, Path: "/api/admin/users", Token: tok})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = a.do(testkit.Request{Method: http.MethodGet, Path: "/api/users/me"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = a.do(testkit.Request{Method: http.MethodPost, Path: "/api/cart/checkout", Token: adminTok, Body: map[string]any{
		"items": []map[string]any{{"listingId": 1, "quantity": 1}},
	}})
	assert.Equal(t, http.StatusForbidden, res.Code, "the admin is not a buyer")
}

func TestAdminSessionCookie(t *testing.T) {
	a := newApp(t)
	res := a.do(testkit.Request{Method: http.MethodPost, Path: "/api/admin/login", Body: map[string]string{
		"email": adminEmail, "password": password,
	}})
	require.Equal(t, http.StatusOK, res.Code)
	require.NotEmpty(t, res.Cookies)

	res = a.do(testkit.Request{Method: http.MethodGet, Path: "/api/admin/ping", Cookies: res.Cookies})
	require.Equal(t, http.StatusOK, res.Code)
	var ping map[string]bool
	res.Data(t, &ping)
	assert.True(t, ping["admin"])

	res = a.do(testkit.Request{Method: http.MethodPost, Path: "/api/admin/login", Body: map[string]string{
		"email": adminEmail, "password": "nope",
	}})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestAdminLogoutEndsBearerAndCookie(t *testing.T) {
	a := newApp(t)

	tok := a.admin()
	users := testkit.Request{Method: http.MethodGet, Path: "/api/admin/users", Token: tok}
	require.Equal(t, http.StatusOK, a.do(users).Code)

	res := a.do(testkit.Request{Method: http.MethodPost, Path: "/api/admin/logout", Token: tok})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(users).Code, "bearer dies with its session")

	res = a.do(testkit.Request{Method: http.MethodPost, Path: "/api/admin/login", Body: map[string]string{
		"email": adminEmail, "password": password,
	}})
	require.Equal(t, http.StatusOK, res.Code)
	var sess services.Session
	res.Data(t, &sess)
	cookies := res.Cookies

	require.Equal(t, http.StatusOK, a.do(testkit.Request{Method: http.MethodPost, Path: "/api/admin/logout", Cookies: cookies}).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(testkit.Request{Method: http.MethodGet, Path: "/api/admin/users", Token: sess.Token}).Code,
		"cookie logout also revokes the paired token")
	assert.Equal(t, http.StatusUnauthorized, a.do(testkit.Request{Method: http.MethodGet, Path: "/api/admin/users", Cookies: cookies}).Code)
}

func jpegForm(t *testing.T, filename string, body []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("title", "iPhone X"))
	require.NoError(t, w.WriteField("brand", "Apple"))
	require.NoError(t, w.WriteField("price", "349.99"))
	require.NoError(t, w.WriteField("stock", "2"))
	fw, err := w.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = fw.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

var jpegBytes = append([]byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, bytes.Repeat([]byte{0x01}, 64)...)

func TestCreateListingUpload(t *testing.T) {
	a := newApp(t)
	_, tok := a.user("Sam")

	body, ct := jpegForm(t, "phone.jpeg", jpegBytes)
	res := a.do(testkit.Request{
		Method: http.MethodPost,
		Path:   "/api/listings",
		Token:  tok,
		Body:   body.Bytes(),
		Header: http.Header{"Content-Type": {ct}},
	})
	require.Equal(t, http.StatusCreated, res.Code, string(res.Raw))
	var v services.ListingView
	res.Data(t, &v)
	assert.Equal(t, "iPhone X", v.Title)
	assert.True(t, v.Price.Equal(decimal.RequireFromString("349.99")))
	assert.True(t, strings.HasPrefix(v.Image, "http://localhost/storage/listings/"), v.Image)
	assert.True(t, strings.HasSuffix(v.Image, ".jpeg"), v.Image)

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	body, ct = jpegForm(t, "phone.jpeg", png)
	res = a.do(testkit.Request{
		Method: http.MethodPost,
		Path:   "/api/listings",
		Token:  tok,
		Body:   body.Bytes(),
		Header: http.Header{"Content-Type": {ct}},
	})
	assert.Equal(t, http.StatusBadRequest, res.Code, "content is sniffed, not trusted")
}

func TestCheckoutOverHTTP(t *testing.T) {
	a := newApp(t)
	seller, _ := a.user("Sam")
	_, buyerTok := a.user("Bea")
	id := a.listing(seller, 2)

	cart := func(qty int) testkit.Request {
		return testkit.Request{Method: http.MethodPost, Path: "/api/cart/checkout", Token: buyerTok, Body: map[string]any{
			"items": []map[string]any{{"listingId": id, "quantity": qty}},
		}}
	}

	res := a.do(cart(2))
	require.Equal(t, http.StatusCreated, res.Code, string(res.Raw))
	var order models.Order
	res.Data(t, &order)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("241")))

	res = a.do(cart(1))
	assert.Equal(t, http.StatusConflict, res.Code)

	res = a.do(testkit.Request{Method: http.MethodGet, Path: "/api/users/me/orders", Token: buyerTok})
	require.Equal(t, http.StatusOK, res.Code)
	var orders []models.Order
	res.Data(t, &orders)
	assert.Len(t, orders, 1)
}

func TestAdminSalesExport(t *testing.T) {
	a := newApp(t)
	seller, _ := a.user("Sam")
	_, buyerTok := a.user("Bea")
	id := a.listing(seller, 5)
	adminTok := a.admin()

	res := a.do(testkit.Request{Method: http.MethodPost, Path: "/api/cart/checkout", Token: buyerTok, Body: map[string]any{
		"items": []map[string]any{{"listingId": id, "quantity": 1}},
	}})
	require.Equal(t, http.StatusCreated, res.Code, string(res.Raw))

	res = a.do(testkit.Request{Method: http.MethodGet, Path: "/api/admin/sales/export", Token: adminTok})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, res.Header.Get("Content-Disposition"), "attachment")
	lines := strings.Split(strings.TrimSpace(string(res.Raw)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Galaxy S9")
}

func TestAdminToggleIsAuditedAndStreamed(t *testing.T) {
	a := newApp(t)
	seller, _ := a.user("Sam")
	_, authorTok := a.user("Una")
	adminTok := a.admin()
	id := a.listing(seller, 1)

	res := a.do(testkit.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/api/listings/%d/reviews", id),
		Token:  authorTok,
		Body:   map[string]any{"rating": 2, "comment": "meh"},
	})
	require.Equal(t, http.StatusCreated, res.Code)
	var review services.ReviewView
	res.Data(t, &review)

	srv := httptest.NewServer(a.h)
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial(
		"ws"+strings.TrimPrefix(srv.URL, "http")+"/api/admin/logs/stream",
		http.Header{"Authorization": {"Bearer " + adminTok}},
	)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return a.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	res = a.do(testkit.Request{
		Method: http.MethodPatch,
		Path:   fmt.Sprintf("/api/admin/listings/%d/reviews/%s/toggle-hidden", id, review.ID),
		Token:  adminTok,
	})
	require.Equal(t, http.StatusOK, res.Code, string(res.Raw))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var entry models.AdminLog
	require.NoError(t, conn.ReadJSON(&entry))
	assert.Equal(t, models.ActionToggleReviewHidden, entry.Action)
	assert.Equal(t, "Review:"+review.ID, entry.Target)
	assert.Equal(t, adminEmail, entry.Admin)

	res = a.do(testkit.Request{Method: http.MethodGet, Path: "/api/admin/logs?action=" + models.ActionToggleReviewHidden, Token: adminTok})
	require.Equal(t, http.StatusOK, res.Code)
	var logs []models.AdminLog
	res.Data(t, &logs)
	require.Len(t, logs, 1)
	assert.Equal(t, entry.ID, logs[0].ID)
}

func TestGraphQLHonoursVisibility(t *testing.T) {
	a := newApp(t)
	seller, sellerTok := a.user("Sam")
	_, authorTok := a.user("Una")
	id := a.listing(seller, 1)

	res := a.do(testkit.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/api/listings/%d/reviews", id),
		Token:  authorTok,
		Body:   map[string]any{"rating": 5, "comment": "great"},
	})
	require.Equal(t, http.StatusCreated, res.Code)
	var review services.ReviewView
	res.Data(t, &review)
	res = a.do(testkit.Request{
		Method: http.MethodPatch,
		Path:   fmt.Sprintf("/api/listings/%d/reviews/%s/toggle-hidden", id, review.ID),
		Token:  sellerTok,
	})
	require.Equal(t, http.StatusOK, res.Code)

	query := map[string]any{"query": fmt.Sprintf(`{ listing(id: "%d") { title price reviews { id hidden } } }`, id)}

	anon := a.do(testkit.Request{Method: http.MethodPost, Path: "/graphql", Body: query})
	require.Equal(t, http.StatusOK, anon.Code)
	assert.Contains(t, string(anon.Raw), `"reviews":[]`)
	assert.Contains(t, string(anon.Raw), `"price":"120.50"`)

	own := a.do(testkit.Request{Method: http.MethodPost, Path: "/graphql", Token: authorTok, Body: query})
	require.Equal(t, http.StatusOK, own.Code)
	assert.Contains(t, string(own.Raw), review.ID)
}

func TestLoginThrottle(t *testing.T) {
	a := newApp(t, func(d *kernel.Deps) {
		d.AuthRate = 2
		d.AuthWindow = time.Minute
	})
	login := testkit.Request{Method: http.MethodPost, Path: "/api/auth/login", Body: map[string]string{
		"email": "nobody@example.com", "password": "x",
	}}
	assert.Equal(t, http.StatusUnauthorized, a.do(login).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(login).Code)
	assert.Equal(t, http.StatusTooManyRequests, a.do(login).Code)
}

func TestHealthz(t *testing.T) {
	a := newApp(t)
	res := a.do(testkit.Request{Method: http.MethodGet, Path: "/healthz"})
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRouteTableWithoutDependencies(t *testing.T) {
	r := router.New()
	routes.RegisterAPI(r, routes.Controllers{}, nil)

	names := map[string]bool{}
	for _, info := range r.Routes() {
		names[info.Name] = true
	}
	for _, n := range []string{"auth.signup", "listings.reviews.toggle", "cart.checkout", "admin.reviews.toggle", "admin.logs.stream"} {
		assert.True(t, names[n], n)
	}
}

package services_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/phonedeals/app/models"
	"github.com/shashiranjanraj/phonedeals/app/repositories"
	"github.com/shashiranjanraj/phonedeals/app/services"
	"github.com/shashiranjanraj/phonedeals/pkg/auth"
	"github.com/shashiranjanraj/phonedeals/pkg/event"
	"github.com/shashiranjanraj/phonedeals/pkg/mail"
	"github.com/shashiranjanraj/phonedeals/pkg/storage"
	"github.com/shashiranjanraj/phonedeals/pkg/testkit"
)

const (
	password   = "Str0ng!pass"
	adminEmail = "admin@example.com"
)

var (
	hashOnce sync.Once
	pwHash   string
)

func passwordHash(t *testing.T) string {
	hashOnce.Do(func() {
		h, err := auth.HashPassword(password)
		require.NoError(t, err)
		pwHash = h
	})
	return pwHash
}

// inline runs bus listeners on the calling goroutine.
type inline struct{}

func (inline) Run(_ string, job func() error) error { return job() }

type brokenStore struct{}

func (brokenStore) Append(context.Context, *models.AdminLog) error {
	return errors.New("disk full")
}

func (brokenStore) List(context.Context, repositories.LogFilter) ([]models.AdminLog, error) {
	return nil, nil
}

// ctxStore remembers the context error seen by each Append.
type ctxStore struct {
	seen []error
}

func (c *ctxStore) Append(ctx context.Context, _ *models.AdminLog) error {
	c.seen = append(c.seen, ctx.Err())
	return ctx.Err()
}

func (c *ctxStore) List(context.Context, repositories.LogFilter) ([]models.AdminLog, error) {
	return nil, nil
}

type fixture struct {
	db       *gorm.DB
	users    *repositories.UserRepository
	listings *repositories.ListingRepository
	logs     *repositories.AdminLogRepository
	bus      *event.Bus
	mail     *mail.Recorder
	disk     *storage.Local

	auth    *services.AuthService
	account *services.UserService
	catalog *services.ListingService
	orders  *services.OrderService
	admin   *services.AdminService
}

func newFixture(t *testing.T, store ...repositories.AdminLogStore) *fixture {
	t.Helper()
	db := testkit.DB(t, &models.User{}, &models.Listing{}, &models.Order{}, &models.OrderItem{}, &models.AdminLog{})
	disk, err := storage.NewLocal(t.TempDir(), "http://localhost/storage")
	require.NoError(t, err)

	f := &fixture{
		db:       db,
		users:    repositories.NewUserRepository(db),
		listings: repositories.NewListingRepository(db),
		logs:     repositories.NewAdminLogRepository(db),
		bus:      event.New(inline{}),
		mail:     &mail.Recorder{},
		disk:     disk,
	}
	var logStore repositories.AdminLogStore = f.logs
	if len(store) > 0 {
		logStore = store[0]
	}

	services.NewNotifier(f.mail, "http://shop.test").Register(f.bus)
	audit := services.NewAuditService(logStore, f.bus, adminEmail)
	f.auth = services.NewAuthService(f.users, f.bus, services.AuthOptions{
		UserTokenTTL:      24 * time.Hour,
		AdminTokenTTL:     15 * time.Minute,
		AdminEmail:        adminEmail,
		AdminPasswordHash: passwordHash(t),
	})
	f.account = services.NewUserService(f.users, f.bus)
	f.catalog = services.NewListingService(f.listings, f.users, audit, disk, 5<<20)
	f.orders = services.NewOrderService(db, f.listings, repositories.NewOrderRepository(db), f.users, f.bus)
	f.admin = services.NewAdminService(f.users, f.listings, f.catalog, audit)
	return f
}

func (f *fixture) user(t *testing.T, first, email string) *models.User {
	t.Helper()
	u := &models.User{FirstName: first, LastName: "Tester", Email: email, Password: passwordHash(t), Verified: true}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) listing(t *testing.T, seller uint, title string, stock int, reviews ...models.Review) *models.Listing {
	t.Helper()
	l := &models.Listing{
		Title:    title,
		Brand:    models.BrandSamsung,
		SellerID: seller,
		Stock:    stock,
		Price:    decimal.RequireFromString("100.50"),
		Reviews:  reviews,
	}
	require.NoError(t, f.listings.Create(context.Background(), l))
	return l
}

func (f *fixture) auditEntries(t *testing.T) []models.AdminLog {
	t.Helper()
	out, err := f.logs.List(context.Background(), repositories.LogFilter{})
	require.NoError(t, err)
	return out
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func reviewIDs(v *services.ListingView) []string {
	var out []string
	for _, r := range v.Reviews {
		out = append(out, r.ID)
	}
	return out
}

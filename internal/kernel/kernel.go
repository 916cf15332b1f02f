// Package kernel assembles the HTTP application: repositories, services,
// controllers and the middleware stack around the route table. The server
// and the tests both build their handler here.
package kernel

import (
	"context"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/phonedeals/app/controllers"
	"github.com/shashiranjanraj/phonedeals/app/graph"
	"github.com/shashiranjanraj/phonedeals/app/repositories"
	"github.com/shashiranjanraj/phonedeals/app/routes"
	"github.com/shashiranjanraj/phonedeals/app/services"
	"github.com/shashiranjanraj/phonedeals/pkg/cache"
	"github.com/shashiranjanraj/phonedeals/pkg/event"
	"github.com/shashiranjanraj/phonedeals/pkg/graphql"
	"github.com/shashiranjanraj/phonedeals/pkg/mail"
	"github.com/shashiranjanraj/phonedeals/pkg/metrics"
	"github.com/shashiranjanraj/phonedeals/pkg/middleware"
	"github.com/shashiranjanraj/phonedeals/pkg/reqid"
	"github.com/shashiranjanraj/phonedeals/pkg/response"
	"github.com/shashiranjanraj/phonedeals/pkg/router"
	"github.com/shashiranjanraj/phonedeals/pkg/session"
	"github.com/shashiranjanraj/phonedeals/pkg/storage"
	"github.com/shashiranjanraj/phonedeals/pkg/ws"
)

// Deps are the external resources the kernel is built from.
type Deps struct {
	DB         *gorm.DB
	Cache      cache.Store
	Disk       storage.Disk
	Mailer     mail.Mailer
	AuditStore repositories.AdminLogStore // nil selects the SQL store
	Async      event.Submitter            // nil runs listeners on goroutines
	Hub        *ws.Hub                    // nil disables the live audit feed

	Auth        services.AuthOptions
	Session     session.Options
	FrontendURL string
	Origins     []string
	MaxImage    int64

	// RateLimit caps requests per client IP per minute across the API and
	// AuthRate caps the credential endpoints per AuthWindow. Zero disables
	// either limiter.
	RateLimit  int
	AuthRate   int
	AuthWindow time.Duration
}

// Kernel is a wired application.
type Kernel struct {
	Bus      *event.Bus
	Sessions *session.Manager
	Limiters []*middleware.Limiter

	Audit    *services.AuditService
	Auth     *services.AuthService
	Users    *services.UserService
	Listings *services.ListingService
	Orders   *services.OrderService
	Admin    *services.AdminService

	router *router.Router
	db     *gorm.DB
}

// New wires d into a Kernel.
func New(d Deps) (*Kernel, error) {
	if d.Cache == nil {
		d.Cache = cache.NewMemory()
	}
	if d.Mailer == nil {
		d.Mailer = mail.LogMailer{}
	}
	if d.MaxImage <= 0 {
		d.MaxImage = 5 << 20
	}

	bus := event.New(d.Async)
	services.NewNotifier(d.Mailer, d.FrontendURL).Register(bus)
	if d.Hub != nil {
		bus.Listen(services.EventAuditRecorded, func(payload any) { d.Hub.Publish(payload) })
	}

	userRepo := repositories.NewUserRepository(d.DB)
	listingRepo := repositories.NewListingRepository(d.DB)
	orderRepo := repositories.NewOrderRepository(d.DB)
	store := d.AuditStore
	if store == nil {
		store = repositories.NewAdminLogRepository(d.DB)
	}

	k := &Kernel{Bus: bus, db: d.DB}
	k.Sessions = session.NewManager(d.Cache, d.Session)
	k.Audit = services.NewAuditService(store, bus, d.Auth.AdminEmail)
	k.Auth = services.NewAuthService(userRepo, bus, d.Auth)
	k.Users = services.NewUserService(userRepo, bus)
	k.Listings = services.NewListingService(listingRepo, userRepo, k.Audit, d.Disk, d.MaxImage)
	k.Orders = services.NewOrderService(d.DB, listingRepo, orderRepo, userRepo, bus)
	k.Admin = services.NewAdminService(userRepo, listingRepo, k.Listings, k.Audit)

	schema, err := graph.Schema(k.Listings)
	if err != nil {
		return nil, err
	}

	var throttle router.Middleware
	if d.AuthRate > 0 {
		if d.AuthWindow <= 0 {
			d.AuthWindow = time.Minute
		}
		l := middleware.NewLimiter(d.AuthRate, d.AuthWindow)
		k.Limiters = append(k.Limiters, l)
		throttle = l.Middleware
	}

	r := router.New()
	r.Use(
		metrics.Middleware(),
		middleware.Recovery,
		reqid.Middleware(),
		middleware.Logger,
		middleware.CORS(d.Origins...),
	)
	if d.RateLimit > 0 {
		l := middleware.NewLimiter(d.RateLimit, time.Minute)
		k.Limiters = append(k.Limiters, l)
		r.Use(l.Middleware)
	}
	r.Use(middleware.Authenticate(userRepo, k.Sessions))

	routes.RegisterAPI(r, routes.Controllers{
		Auth:     controllers.NewAuthController(k.Auth, k.Sessions),
		Users:    controllers.NewUserController(k.Users, k.Listings, k.Orders),
		Listings: controllers.NewListingController(k.Listings, d.MaxImage),
		Cart:     controllers.NewCartController(k.Orders),
		Admin:    controllers.NewAdminController(k.Admin, k.Orders, d.Hub),
	}, throttle)

	gql := graphql.Handler(schema)
	r.Get("/graphql", "graphql.query", gql)
	r.Post("/graphql", "graphql", gql)
	r.Get("/metrics", "metrics", metrics.Handler())
	r.Get("/healthz", "healthz", k.healthz)
	if local, ok := d.Disk.(*storage.Local); ok {
		r.Mount("/storage", http.StripPrefix("/storage", local.Handler()))
	}

	k.router = r
	return k, nil
}

// Handler is the root http.Handler.
func (k *Kernel) Handler() http.Handler { return k.router.Handler() }

// Routes lists every registered route.
func (k *Kernel) Routes() []router.RouteInfo { return k.router.Routes() }

// Ping checks database connectivity.
func (k *Kernel) Ping(ctx context.Context) error {
	sqlDB, err := k.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (k *Kernel) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := k.Ping(ctx); err != nil {
		response.Error(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	response.Success(w, map[string]string{"status": "ok"})
}

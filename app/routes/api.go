package routes

import (
	"github.com/shashiranjanraj/phonedeals/app/controllers"
	"github.com/shashiranjanraj/phonedeals/pkg/ctx"
	"github.com/shashiranjanraj/phonedeals/pkg/middleware"
	"github.com/shashiranjanraj/phonedeals/pkg/router"
)

// Controllers groups the handlers RegisterAPI mounts. Nil controllers are
// allowed when only the route table is needed (route:list).
type Controllers struct {
	Auth     *controllers.AuthController
	Users    *controllers.UserController
	Listings *controllers.ListingController
	Cart     *controllers.CartController
	Admin    *controllers.AdminController
}

// RegisterAPI mounts every /api route. throttle guards the credential
// endpoints and may be nil.
func RegisterAPI(r *router.Router, c Controllers, throttle router.Middleware) {
	var guard []router.Middleware
	if throttle != nil {
		guard = append(guard, throttle)
	}

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", "auth.signup", ctx.Wrap(c.Auth.Signup), guard...)
	authGroup.Post("/login", "auth.login", ctx.Wrap(c.Auth.Login), guard...)
	authGroup.Post("/verify-email", "auth.verify", ctx.Wrap(c.Auth.VerifyEmail))
	authGroup.Post("/email-verify-fail", "auth.verify.fail", ctx.Wrap(c.Auth.EmailVerifyFail))
	authGroup.Post("/req-password", "auth.password.request", ctx.Wrap(c.Auth.RequestPassword), guard...)
	authGroup.Post("/reset-password", "auth.password.reset", ctx.Wrap(c.Auth.ResetPassword), guard...)

	users := api.Group("/users")
	me := users.Group("/me", middleware.RequireUser)
	me.Get("", "users.me", ctx.Wrap(c.Users.Me))
	me.Put("", "users.me.update", ctx.Wrap(c.Users.UpdateMe))
	me.Put("/password", "users.me.password", ctx.Wrap(c.Users.ChangePassword))
	me.Get("/listings", "users.me.listings", ctx.Wrap(c.Users.MyListings))
	me.Get("/orders", "users.me.orders", ctx.Wrap(c.Users.MyOrders))
	users.Get("/{id}", "users.show", ctx.Wrap(c.Users.Show))

	listings := api.Group("/listings")
	listings.Get("", "listings.index", ctx.Wrap(c.Listings.Index))
	listings.Get("/{id}", "listings.show", ctx.Wrap(c.Listings.Show))
	listings.Post("", "listings.store", ctx.Wrap(c.Listings.Store), middleware.RequireUser)
	listings.Delete("/{id}", "listings.destroy", ctx.Wrap(c.Listings.Destroy), middleware.RequireAuth)
	listings.Post("/{id}/disable", "listings.disable", ctx.Wrap(c.Listings.Disable), middleware.RequireAuth)
	listings.Post("/{id}/enable", "listings.enable", ctx.Wrap(c.Listings.Enable), middleware.RequireAuth)
	listings.Post("/{id}/reviews", "listings.reviews.store", ctx.Wrap(c.Listings.StoreReview), middleware.RequireUser)
	listings.Patch("/{id}/reviews/{reviewID}/toggle-hidden", "listings.reviews.toggle", ctx.Wrap(c.Listings.ToggleReview), middleware.RequireAuth)
	listings.Patch("/{id}/decrease-stock", "listings.stock.decrease", ctx.Wrap(c.Listings.DecreaseStock), middleware.RequireAuth)

	cart := api.Group("/cart", middleware.RequireUser)
	cart.Post("/checkout", "cart.checkout", ctx.Wrap(c.Cart.Checkout))

	adminAuth := api.Group("/admin")
	adminAuth.Post("/login", "admin.login", ctx.Wrap(c.Auth.AdminLogin), guard...)
	adminAuth.Post("/logout", "admin.logout", ctx.Wrap(c.Auth.AdminLogout))

	admin := api.Group("/admin", middleware.RequireAdmin)
	admin.Get("/ping", "admin.ping", ctx.Wrap(c.Auth.AdminPing))
	admin.Get("/listings", "admin.listings", ctx.Wrap(c.Admin.Listings))
	admin.Put("/listings/{id}", "admin.listings.update", ctx.Wrap(c.Admin.UpdateListing))
	admin.Delete("/listings/{id}", "admin.listings.destroy", ctx.Wrap(c.Admin.DeleteListing))
	admin.Patch("/listings/{id}/reviews/{reviewID}/toggle-hidden", "admin.reviews.toggle", ctx.Wrap(c.Admin.ToggleReview))
	admin.Get("/reviews", "admin.reviews", ctx.Wrap(c.Admin.Reviews))
	admin.Get("/users", "admin.users", ctx.Wrap(c.Admin.Users))
	admin.Put("/users/{id}", "admin.users.update", ctx.Wrap(c.Admin.UpdateUser))
	admin.Delete("/users/{id}", "admin.users.destroy", ctx.Wrap(c.Admin.DeleteUser))
	admin.Get("/users/{id}/activity", "admin.users.activity", ctx.Wrap(c.Admin.Activity))
	admin.Get("/sales", "admin.sales", ctx.Wrap(c.Admin.Sales))
	admin.Get("/sales/export", "admin.sales.export", ctx.Wrap(c.Admin.ExportSales))
	admin.Get("/logs", "admin.logs", ctx.Wrap(c.Admin.Logs))
	admin.Get("/logs/stream", "admin.logs.stream", ctx.Wrap(c.Admin.LogStream))
}

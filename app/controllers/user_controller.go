package controllers

import (
	"github.com/shashiranjanraj/phonedeals/app/services"
	"github.com/shashiranjanraj/phonedeals/pkg/apperr"
	"github.com/shashiranjanraj/phonedeals/pkg/ctx"
)

type UserController struct {
	users    *services.UserService
	listings *services.ListingService
	orders   *services.OrderService
}

func NewUserController(users *services.UserService, listings *services.ListingService, orders *services.OrderService) *UserController {
	return &UserController{users: users, listings: listings, orders: orders}
}

// Me GET /api/users/me
func (u *UserController) Me(c *ctx.Context) {
	user, err := u.users.Me(c.Context(), c.Principal())
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(user)
}

// UpdateMe PUT /api/users/me
func (u *UserController) UpdateMe(c *ctx.Context) {
	var in services.ProfileInput
	if !c.BindJSON(&in) {
		return
	}
	user, err := u.users.UpdateProfile(c.Context(), c.Principal(), in)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(user)
}

// ChangePassword PUT /api/users/me/password
func (u *UserController) ChangePassword(c *ctx.Context) {
	var in services.PasswordInput
	if !c.BindJSON(&in) {
		return
	}
	if err := u.users.ChangePassword(c.Context(), c.Principal(), in); err != nil {
		c.Fail(err)
		return
	}
	c.Message("Password updated")
}

// MyListings GET /api/users/me/listings
func (u *UserController) MyListings(c *ctx.Context) {
	views, err := u.listings.Mine(c.Context(), c.Principal())
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(views)
}

// MyOrders GET /api/users/me/orders
func (u *UserController) MyOrders(c *ctx.Context) {
	orders, err := u.orders.MyOrders(c.Context(), c.Principal())
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(orders)
}

// Show GET /api/users/{id}
func (u *UserController) Show(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		c.Fail(apperr.NotFound("user not found"))
		return
	}
	profile, err := u.users.Profile(c.Context(), id)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(profile)
}

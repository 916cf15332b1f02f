package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shashiranjanraj/phonedeals/app/models"
	"github.com/shashiranjanraj/phonedeals/app/repositories"
	"github.com/shashiranjanraj/phonedeals/app/services"
	"github.com/shashiranjanraj/phonedeals/pkg/apperr"
	"github.com/shashiranjanraj/phonedeals/pkg/ctx"
	"github.com/shashiranjanraj/phonedeals/pkg/logger"
	"github.com/shashiranjanraj/phonedeals/pkg/ws"
)

// AdminController serves /api/admin. Every route except login sits behind
// RequireAdmin.
type AdminController struct {
	admin  *services.AdminService
	orders *services.OrderService
	hub    *ws.Hub
}

func NewAdminController(admin *services.AdminService, orders *services.OrderService, hub *ws.Hub) *AdminController {
	return &AdminController{admin: admin, orders: orders, hub: hub}
}

// Listings GET /api/admin/listings?query=&brand=
func (a *AdminController) Listings(c *ctx.Context) {
	rows, err := a.admin.Listings(c.Context(), c.Query("query"), models.Brand(c.Query("brand")))
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(rows)
}

// UpdateListing PUT /api/admin/listings/{id}
func (a *AdminController) UpdateListing(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		badID(c)
		return
	}
	var in services.UpdateListingInput
	if !c.BindJSON(&in) {
		return
	}
	view, err := a.admin.UpdateListing(c.Context(), c.Principal(), id, in)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(view)
}

// DeleteListing DELETE /api/admin/listings/{id}
func (a *AdminController) DeleteListing(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		badID(c)
		return
	}
	if err := a.admin.DeleteListing(c.Context(), c.Principal(), id); err != nil {
		c.Fail(err)
		return
	}
	c.Message("Listing deleted")
}

// Reviews GET /api/admin/reviews?listing=&user=&content=
func (a *AdminController) Reviews(c *ctx.Context) {
	rows, err := a.admin.Reviews(c.Context(), services.ReviewQuery{
		Listing: c.Query("listing"),
		User:    c.Query("user"),
		Content: c.Query("content"),
	})
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(rows)
}

// ToggleReview PATCH /api/admin/listings/{id}/reviews/{reviewID}/toggle-hidden
func (a *AdminController) ToggleReview(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		badID(c)
		return
	}
	review, err := a.admin.ToggleReview(c.Context(), c.Principal(), id, c.Param("reviewID"))
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(review)
}

// Users GET /api/admin/users?query=
func (a *AdminController) Users(c *ctx.Context) {
	rows, err := a.admin.Users(c.Context(), c.Query("query"))
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(rows)
}

func userID(c *ctx.Context) (uint, bool) {
	id, ok := c.ParamUint("id")
	if !ok {
		c.Fail(apperr.NotFound("user not found"))
	}
	return id, ok
}

// UpdateUser PUT /api/admin/users/{id}
func (a *AdminController) UpdateUser(c *ctx.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	var in services.AdminUserInput
	if !c.BindJSON(&in) {
		return
	}
	view, err := a.admin.UpdateUser(c.Context(), c.Principal(), id, in)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(view)
}

// DeleteUser DELETE /api/admin/users/{id}
func (a *AdminController) DeleteUser(c *ctx.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	if err := a.admin.DeleteUser(c.Context(), c.Principal(), id); err != nil {
		c.Fail(err)
		return
	}
	c.Message("User deleted")
}

// Activity GET /api/admin/users/{id}/activity
func (a *AdminController) Activity(c *ctx.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	act, err := a.admin.Activity(c.Context(), c.Principal(), id)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(act)
}

// Sales GET /api/admin/sales?buyer=
func (a *AdminController) Sales(c *ctx.Context) {
	rows, err := a.orders.Sales(c.Context(), c.Query("buyer"))
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(rows)
}

// ExportSales GET /api/admin/sales/export?buyer=
func (a *AdminController) ExportSales(c *ctx.Context) {
	var buf bytes.Buffer
	if err := a.orders.ExportSales(c.Context(), &buf, c.Query("buyer")); err != nil {
		c.Fail(err)
		return
	}
	name := fmt.Sprintf("sales-%s.csv", time.Now().UTC().Format("20060102"))
	c.W.Header().Set("Content-Type", "text/csv; charset=utf-8")
	c.W.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	c.W.WriteHeader(http.StatusOK)
	_, _ = c.W.Write(buf.Bytes())
}

// Logs GET /api/admin/logs?action=&target=&limit=
func (a *AdminController) Logs(c *ctx.Context) {
	f := repositories.LogFilter{Action: c.Query("action"), Target: c.Query("target")}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			c.Fail(apperr.Validation("Validation failed", map[string]string{"limit": "The limit must be a positive integer."}))
			return
		}
		f.Limit = n
	}
	rows, err := a.admin.Logs(c.Context(), f)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(rows)
}

// LogStream GET /api/admin/logs/stream upgrades to a websocket that receives
// each audit entry as it is recorded.
func (a *AdminController) LogStream(c *ctx.Context) {
	if a.hub == nil {
		c.Error(http.StatusServiceUnavailable, "Log stream unavailable")
		return
	}
	if err := ws.Upgrade(c.W, c.R, a.hub); err != nil {
		logger.WithCtx(c.Context()).Warn("admin log stream upgrade failed", "error", err)
	}
}

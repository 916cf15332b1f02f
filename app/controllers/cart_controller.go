package controllers

import (
	"github.com/shashiranjanraj/phonedeals/app/services"
	"github.com/shashiranjanraj/phonedeals/pkg/ctx"
)

type CartController struct {
	orders *services.OrderService
}

func NewCartController(orders *services.OrderService) *CartController {
	return &CartController{orders: orders}
}

// Checkout POST /api/cart/checkout
func (cc *CartController) Checkout(c *ctx.Context) {
	var in services.CheckoutInput
	if !c.BindJSON(&in) {
		return
	}
	order, err := cc.orders.Checkout(c.Context(), c.Principal(), in)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Created(order)
}

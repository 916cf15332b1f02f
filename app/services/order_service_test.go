package services_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/phonedeals/app/models"
	"github.com/shashiranjanraj/phonedeals/app/services"
	"github.com/shashiranjanraj/phonedeals/pkg/apperr"
	"github.com/shashiranjanraj/phonedeals/pkg/auth"
)

func TestCheckout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.user(t, "Sam", "s@x.io")
	buyer := f.user(t, "Bo", "b@x.io")
	a := f.listing(t, s.ID, "Nokia 6", 5)
	b := f.listing(t, s.ID, "Nokia 7", 2)

	order, err := f.orders.Checkout(ctx, auth.User(buyer.ID), services.CheckoutInput{Items: []services.CartItem{
		{ListingID: a.ID, Quantity: 2},
		{ListingID: b.ID, Quantity: 1},
		{ListingID: a.ID, Quantity: 1},
	}})
	require.NoError(t, err)
	require.Len(t, order.Items, 2)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.Equal(t, "Nokia 6", order.Items[0].Title)
	assert.Equal(t, "402", order.Total.String())

	got, err := f.listings.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)

	mine, err := f.orders.MyOrders(ctx, auth.User(buyer.ID))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Len(t, mine[0].Items, 2)
}

func TestCheckoutIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.user(t, "Sam", "s@x.io")
	buyer := f.user(t, "Bo", "b@x.io")
	a := f.listing(t, s.ID, "LG G6", 5)
	b := f.listing(t, s.ID, "LG G7", 1)

	_, err := f.orders.Checkout(ctx, auth.User(buyer.ID), services.CheckoutInput{Items: []services.CartItem{
		{ListingID: a.ID, Quantity: 2},
		{ListingID: b.ID, Quantity: 2},
	}})
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)

	got, err := f.listings.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock, "earlier decrement rolled back")

	var n int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCheckoutRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.user(t, "Sam", "s@x.io")
	buyer := f.user(t, "Bo", "b@x.io")
	l := f.listing(t, s.ID, "BlackBerry Key2", 5)
	_, err := f.catalog.SetDisabled(ctx, auth.User(s.ID), l.ID, true)
	require.NoError(t, err)

	one := services.CheckoutInput{Items: []services.CartItem{{ListingID: l.ID, Quantity: 1}}}
	_, err = f.orders.Checkout(ctx, auth.User(buyer.ID), one)
	assert.True(t, apperr.IsNotFound(err))

	_, err = f.orders.Checkout(ctx, auth.User(s.ID), one)
	assert.True(t, apperr.IsNotFound(err), "disabled listings cannot be bought even by their seller")

	_, err = f.orders.Checkout(ctx, auth.Admin(), one)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.orders.Checkout(ctx, auth.User(buyer.ID), services.CheckoutInput{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.orders.Checkout(ctx, auth.User(buyer.ID), services.CheckoutInput{Items: []services.CartItem{{ListingID: l.ID}}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSalesAndExport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.user(t, "Sam", "s@x.io")
	bo := f.user(t, "Bo", "bo@x.io")
	cy := f.user(t, "Cy", "cy@x.io")
	l := f.listing(t, s.ID, "Huawei P30", 10)

	for _, u := range []*models.User{bo, cy} {
		_, err := f.orders.Checkout(ctx, auth.User(u.ID), services.CheckoutInput{Items: []services.CartItem{{ListingID: l.ID, Quantity: 1}}})
		require.NoError(t, err)
	}

	all, err := f.orders.Sales(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Cy Tester", all[0].Buyer.Name, "newest first")

	onlyBo, err := f.orders.Sales(ctx, "bo@")
	require.NoError(t, err)
	require.Len(t, onlyBo, 1)
	assert.Equal(t, "Huawei P30", onlyBo[0].Items[0].Title)

	none, err := f.orders.Sales(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)

	var buf bytes.Buffer
	require.NoError(t, f.orders.ExportSales(ctx, &buf, ""))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "order_id,"))
	assert.Contains(t, lines[1], "100.50")
}

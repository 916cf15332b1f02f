package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/phonedeals/app/models"
	"github.com/shashiranjanraj/phonedeals/app/policies"
	"github.com/shashiranjanraj/phonedeals/app/repositories"
	"github.com/shashiranjanraj/phonedeals/pkg/apperr"
	"github.com/shashiranjanraj/phonedeals/pkg/auth"
	"github.com/shashiranjanraj/phonedeals/pkg/collection"
	"github.com/shashiranjanraj/phonedeals/pkg/event"
	"github.com/shashiranjanraj/phonedeals/pkg/metrics"
)

type CartItem struct {
	ListingID uint `json:"listingId" validate:"required"`
	Quantity  int  `json:"quantity"  validate:"required,gte=1"`
}

type CheckoutInput struct {
	Items []CartItem `json:"items" validate:"required"`
}

// OrderService runs checkout and reports sales.
type OrderService struct {
	db       *gorm.DB
	listings *repositories.ListingRepository
	orders   *repositories.OrderRepository
	users    *repositories.UserRepository
	bus      *event.Bus
}

func NewOrderService(
	db *gorm.DB,
	listings *repositories.ListingRepository,
	orders *repositories.OrderRepository,
	users *repositories.UserRepository,
	bus *event.Bus,
) *OrderService {
	return &OrderService{db: db, listings: listings, orders: orders, users: users, bus: bus}
}

// Checkout decrements stock for every item and records the order in one
// transaction. Any failure leaves stock and orders untouched.
func (s *OrderService) Checkout(ctx context.Context, viewer auth.Principal, in CheckoutInput) (order *models.Order, err error) {
	defer func() {
		outcome := "ok"
		switch {
		case err == nil:
		case apperr.KindOf(err) == apperr.KindConflict:
			outcome = "insufficient_stock"
		case apperr.KindOf(err) == apperr.KindNotFound:
			outcome = "not_found"
		default:
			outcome = "error"
		}
		metrics.Checkouts.WithLabelValues(outcome).Inc()
	}()

	buyer, ok := viewer.UserID()
	if !ok {
		return nil, apperr.Forbidden("only users can check out")
	}
	items, err := mergeCart(in.Items)
	if err != nil {
		return nil, err
	}

	order = &models.Order{BuyerID: buyer, Total: decimal.Zero}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		listings := s.listings.WithTx(tx)
		for _, it := range items {
			l, err := listings.FindByID(ctx, it.ListingID)
			if err != nil {
				return err
			}
			if l.Disabled || !policies.IsListingVisible(l, viewer) {
				return apperr.NotFound(fmt.Sprintf("listing %d not found", l.ID))
			}
			if err := listings.DecrementStock(ctx, l.ID, it.Quantity); err != nil {
				return err
			}
			line := models.OrderItem{
				ListingID: l.ID,
				Title:     l.Title,
				Quantity:  it.Quantity,
				UnitPrice: l.Price,
			}
			order.Items = append(order.Items, line)
			order.Total = order.Total.Add(line.LineTotal())
		}
		return s.orders.WithTx(tx).Create(ctx, order)
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			return nil, apperr.Internal("checkout failed", err)
		}
		return nil, err
	}

	if s.bus != nil {
		s.bus.FireAsync(EventCheckoutComplete, *order)
	}
	return order, nil
}

// mergeCart validates the cart and folds repeated listings into one line,
// keeping first-seen order.
func mergeCart(items []CartItem) ([]CartItem, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("Validation failed", map[string]string{"items": "The cart is empty."})
	}
	var out []CartItem
	index := map[uint]int{}
	for i, it := range items {
		if it.ListingID == 0 || it.Quantity < 1 {
			return nil, apperr.Validation("Validation failed", map[string]string{
				fmt.Sprintf("items.%d", i): "Each item needs a listingId and a quantity of at least 1.",
			})
		}
		if j, seen := index[it.ListingID]; seen {
			out[j].Quantity += it.Quantity
			continue
		}
		index[it.ListingID] = len(out)
		out = append(out, it)
	}
	return out, nil
}

// MyOrders lists the viewer's orders, newest first.
func (s *OrderService) MyOrders(ctx context.Context, viewer auth.Principal) ([]models.Order, error) {
	id, ok := viewer.UserID()
	if !ok {
		return nil, apperr.Unauthorized("Unauthorized")
	}
	return s.orders.ForBuyer(ctx, id)
}

// Sales lists every order, newest first. buyer, when set, matches the
// buyer's name or email.
func (s *OrderService) Sales(ctx context.Context, buyer string) ([]SaleView, error) {
	var ids []uint
	if q := strings.TrimSpace(buyer); q != "" {
		var err error
		if ids, err = s.users.MatchingIDs(ctx, q); err != nil {
			return nil, apperr.Internal("sales failed", err)
		}
		if ids == nil {
			ids = []uint{}
		}
	}
	orders, err := s.orders.Sales(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("sales failed", err)
	}

	buyers := collection.Unique(collection.Map(orders, func(o models.Order) uint { return o.BuyerID }))
	names, err := s.users.Names(ctx, buyers)
	if err != nil {
		return nil, apperr.Internal("sales failed", err)
	}

	out := make([]SaleView, 0, len(orders))
	for _, o := range orders {
		v := SaleView{
			ID:        o.ID,
			Buyer:     Party{ID: o.BuyerID, Name: names[o.BuyerID]},
			Items:     make([]SaleItemView, 0, len(o.Items)),
			Total:     o.Total,
			CreatedAt: o.CreatedAt,
		}
		for _, it := range o.Items {
			v.Items = append(v.Items, SaleItemView{Title: it.Title, Quantity: it.Quantity, Price: it.UnitPrice})
		}
		out = append(out, v)
	}
	return out, nil
}

// ExportSales writes Sales(buyer) as CSV, one row per order line.
func (s *OrderService) ExportSales(ctx context.Context, w io.Writer, buyer string) error {
	sales, err := s.Sales(ctx, buyer)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"order_id", "created_at", "buyer_id", "buyer", "title", "quantity", "unit_price", "order_total"}); err != nil {
		return err
	}
	for _, sale := range sales {
		for _, it := range sale.Items {
			err := cw.Write([]string{
				fmt.Sprint(sale.ID),
				sale.CreatedAt.UTC().Format(time.RFC3339),
				fmt.Sprint(sale.Buyer.ID),
				sale.Buyer.Name,
				it.Title,
				fmt.Sprint(it.Quantity),
				it.Price.StringFixed(2),
				sale.Total.StringFixed(2),
			})
			if err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

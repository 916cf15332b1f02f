package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/phonedeals/app/models"
)

// OrderRepository handles database operations for Order.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) WithTx(tx *gorm.DB) *OrderRepository {
	return &OrderRepository{db: tx}
}

// Create inserts the order and its items.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

// ForBuyer returns the buyer's orders, newest first.
func (r *OrderRepository) ForBuyer(ctx context.Context, buyerID uint) ([]models.Order, error) {
	var out []models.Order
	err := r.db.WithContext(ctx).Preload("Items").
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").Order("id DESC").
		Find(&out).Error
	return out, err
}

// Sales returns every order, newest first. A non-nil buyers slice restricts
// the result to those buyers; an empty one yields nothing.
func (r *OrderRepository) Sales(ctx context.Context, buyers []uint) ([]models.Order, error) {
	var out []models.Order
	if buyers != nil && len(buyers) == 0 {
		return out, nil
	}
	q := r.db.WithContext(ctx).Preload("Items").Order("created_at DESC").Order("id DESC")
	if buyers != nil {
		q = q.Where("buyer_id IN ?", buyers)
	}
	err := q.Find(&out).Error
	return out, err
}

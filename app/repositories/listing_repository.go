package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/phonedeals/app/models"
	"github.com/shashiranjanraj/phonedeals/pkg/apperr"
)

// ErrStale is returned by Save when the row changed since it was read.
var ErrStale = errors.New("repositories: listing version changed")

// ListingFilter narrows a catalog scan. Disabled listings are excluded unless
// IncludeDisabled is set or they belong to OwnerID.
type ListingFilter struct {
	Query           string
	Brand           models.Brand
	SellerID        uint
	OwnerID         uint
	IncludeDisabled bool
	OrderByTitle    bool
}

// ListingRepository handles database operations for Listing.
type ListingRepository struct {
	db *gorm.DB
}

func NewListingRepository(db *gorm.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *ListingRepository) WithTx(tx *gorm.DB) *ListingRepository {
	return &ListingRepository{db: tx}
}

// Create inserts a new listing.
func (r *ListingRepository) Create(ctx context.Context, l *models.Listing) error {
	if l.Version == 0 {
		l.Version = 1
	}
	return r.db.WithContext(ctx).Create(l).Error
}

// FindByID loads a listing with its reviews.
func (r *ListingRepository) FindByID(ctx context.Context, id uint) (*models.Listing, error) {
	var l models.Listing
	if err := r.db.WithContext(ctx).First(&l, id).Error; err != nil {
		return nil, notFound(err, "listing not found")
	}
	return &l, nil
}

// Search scans listings matching f, newest first unless OrderByTitle.
func (r *ListingRepository) Search(ctx context.Context, f ListingFilter) ([]models.Listing, error) {
	q := r.db.WithContext(ctx).Model(&models.Listing{})
	if f.Query != "" {
		q = q.Where("LOWER(title) LIKE ?"+likeEscape, like(f.Query))
	}
	if f.Brand != "" {
		q = q.Where("brand = ?", f.Brand)
	}
	if f.SellerID != 0 {
		q = q.Where("seller_id = ?", f.SellerID)
	}
	if !f.IncludeDisabled {
		if f.OwnerID != 0 {
			q = q.Where("disabled = ? OR seller_id = ?", false, f.OwnerID)
		} else {
			q = q.Where("disabled = ?", false)
		}
	}
	if f.OrderByTitle {
		q = q.Order("title").Order("id")
	} else {
		q = q.Order("id DESC")
	}

	var out []models.Listing
	err := q.Find(&out).Error
	return out, err
}

// Save writes the mutable columns of l if its version still matches, and
// bumps the version. It returns ErrStale when another writer got there first.
func (r *ListingRepository) Save(ctx context.Context, l *models.Listing) error {
	read := l.Version
	l.Version = read + 1
	res := r.db.WithContext(ctx).Model(l).
		Where("version = ?", read).
		Select("title", "brand", "image", "stock", "price", "disabled", "reviews", "version", "updated_at").
		Updates(l)
	if res.Error != nil {
		l.Version = read
		return res.Error
	}
	if res.RowsAffected == 0 {
		l.Version = read
		return ErrStale
	}
	return nil
}

// Delete removes the listing and, with it, every embedded review.
func (r *ListingRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Listing{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("listing not found")
	}
	return nil
}

// DecrementStock atomically subtracts qty from the listing's stock and bumps
// the version, so a Save holding an older read fails with ErrStale instead
// of writing the old stock back. Stock is left unchanged when it is lower
// than qty.
func (r *ListingRepository) DecrementStock(ctx context.Context, id uint, qty int) error {
	res := r.db.WithContext(ctx).Model(&models.Listing{}).
		Where("id = ? AND stock >= ?", id, qty).
		UpdateColumns(map[string]any{
			"stock":      gorm.Expr("stock - ?", qty),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Listing{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("listing not found")
	}
	return apperr.ErrInsufficientStock
}

// BySeller returns every listing of sellerID, disabled ones included.
func (r *ListingRepository) BySeller(ctx context.Context, sellerID uint) ([]models.Listing, error) {
	return r.Search(ctx, ListingFilter{SellerID: sellerID, IncludeDisabled: true})
}

// All returns every listing ordered by id. Used by review moderation.
func (r *ListingRepository) All(ctx context.Context) ([]models.Listing, error) {
	var out []models.Listing
	err := r.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, err
}

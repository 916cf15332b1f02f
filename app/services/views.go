package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/phonedeals/app/models"
)

// Party names a user in a response.
type Party struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type ReviewView struct {
	ID        string    `json:"id"`
	Reviewer  Party     `json:"reviewer"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Hidden    bool      `json:"hidden"`
	CanToggle bool      `json:"canToggle"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListingView is a listing as seen by one viewer: only the reviews that
// viewer may see are present.
type ListingView struct {
	ID        uint            `json:"id"`
	Title     string          `json:"title"`
	Brand     models.Brand    `json:"brand"`
	Image     string          `json:"image"`
	Stock     int             `json:"stock"`
	Price     decimal.Decimal `json:"price"`
	Seller    Party           `json:"seller"`
	Disabled  bool            `json:"disabled"`
	Reviews   []ReviewView    `json:"reviews"`
	CreatedAt time.Time       `json:"createdAt"`
}

// AdminListingView is a row of the moderation listing table.
type AdminListingView struct {
	ID          uint            `json:"id"`
	Title       string          `json:"title"`
	Brand       models.Brand    `json:"brand"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Disabled    bool            `json:"disabled"`
	Seller      Party           `json:"seller"`
	ReviewCount int             `json:"reviewCount"`
}

// AdminReviewView is a review flattened out of its listing.
type AdminReviewView struct {
	ListingID    uint      `json:"listingId"`
	ListingTitle string    `json:"listingTitle"`
	ID           string    `json:"id"`
	Reviewer     Party     `json:"reviewer"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	Hidden       bool      `json:"hidden"`
	CreatedAt    time.Time `json:"createdAt"`
}

type AdminUserView struct {
	ID        uint       `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	LastLogin *time.Time `json:"lastLogin"`
	Disabled  bool       `json:"disabled"`
}

type SaleItemView struct {
	Title    string          `json:"title"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type SaleView struct {
	ID        uint            `json:"id"`
	Buyer     Party           `json:"buyer"`
	Items     []SaleItemView  `json:"items"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"createdAt"`
}

// listingSnapshot is the audit shape of a listing.
func listingSnapshot(l *models.Listing) map[string]any {
	return map[string]any{
		"title":    l.Title,
		"brand":    l.Brand,
		"price":    l.Price.StringFixed(2),
		"stock":    l.Stock,
		"disabled": l.Disabled,
		"seller":   l.SellerID,
	}
}

func userSnapshot(u *models.User) map[string]any {
	return map[string]any{
		"firstname": u.FirstName,
		"lastname":  u.LastName,
		"email":     u.Email,
		"disabled":  u.Disabled,
	}
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Brand is one of the phone makers accepted by the catalog.
type Brand string

const (
	BrandSamsung    Brand = "Samsung"
	BrandApple      Brand = "Apple"
	BrandHTC        Brand = "HTC"
	BrandHuawei     Brand = "Huawei"
	BrandNokia      Brand = "Nokia"
	BrandLG         Brand = "LG"
	BrandMotorola   Brand = "Motorola"
	BrandSony       Brand = "Sony"
	BrandBlackBerry Brand = "BlackBerry"
)

// Brands lists every accepted brand in display order.
var Brands = []Brand{
	BrandSamsung, BrandApple, BrandHTC, BrandHuawei, BrandNokia,
	BrandLG, BrandMotorola, BrandSony, BrandBlackBerry,
}

// BrandRule is the validate tag fragment accepting any Brand.
const BrandRule = "in=Samsung,Apple,HTC,Huawei,Nokia,LG,Motorola,Sony,BlackBerry"

func (b Brand) Valid() bool {
	for _, known := range Brands {
		if b == known {
			return true
		}
	}
	return false
}

// Listing is a phone offered for sale. Its reviews are stored inline, newest
// first, and Version guards read-modify-write updates of that column.
type Listing struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Title     string          `gorm:"size:255;not null;index" json:"title"`
	Brand     Brand           `gorm:"size:32;not null;index" json:"brand"`
	Image     string          `gorm:"size:512" json:"image"`
	Stock     int             `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	SellerID  uint            `gorm:"not null;index" json:"seller"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Disabled  bool            `gorm:"not null;default:false;index" json:"disabled"`
	Reviews   []Review        `gorm:"serializer:json" json:"reviews"`
	Version   uint            `gorm:"not null;default:1" json:"-"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Review is a buyer's rating of a listing.
type Review struct {
	ID         string    `json:"id"`
	ReviewerID uint      `json:"reviewer"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	Hidden     bool      `json:"hidden"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewReview builds a visible review with a fresh id.
func NewReview(reviewer uint, rating int, comment string) Review {
	return Review{
		ID:         uuid.NewString(),
		ReviewerID: reviewer,
		Rating:     rating,
		Comment:    comment,
		CreatedAt:  time.Now().UTC(),
	}
}

// FindReview returns the index of the review with id, or -1.
func (l *Listing) FindReview(id string) int {
	for i := range l.Reviews {
		if l.Reviews[i].ID == id {
			return i
		}
	}
	return -1
}

// PrependReview adds r as the newest review.
func (l *Listing) PrependReview(r Review) {
	l.Reviews = append([]Review{r}, l.Reviews...)
}

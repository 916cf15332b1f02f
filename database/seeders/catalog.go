package seeders

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/phonedeals/app/models"
	"github.com/shashiranjanraj/phonedeals/config"
	"github.com/shashiranjanraj/phonedeals/pkg/auth"
	"github.com/shashiranjanraj/phonedeals/pkg/logger"
)

func init() {
	Register("catalog", SeedCatalog)
}

// The dev dataset keys users by an external object id; sellers and
// reviewers refer to users by that id.
type seedUser struct {
	ID struct {
		OID string `json:"$oid"`
	} `json:"_id"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
}

type seedReview struct {
	Reviewer string `json:"reviewer"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
	Hidden   flag   `json:"hidden"`
}

type seedListing struct {
	Title    string          `json:"title"`
	Brand    string          `json:"brand"`
	Stock    int             `json:"stock"`
	Seller   string          `json:"seller"`
	Price    decimal.Decimal `json:"price"`
	Disabled flag            `json:"disabled"`
	Reviews  []seedReview    `json:"reviews"`
}

// flag accepts the dataset's loose booleans: true/false, "" and any
// non-empty string.
type flag bool

func (f *flag) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*f = flag(t)
	case string:
		*f = t != ""
	case float64:
		*f = t != 0
	default:
		*f = false
	}
	return nil
}

// SeedCatalog replaces all users and listings with the dataset under
// SEED_DIR (userlist.json, phonelisting.json). Every seeded account is
// verified and shares the SEED_USER_PASSWORD password.
func SeedCatalog(db *gorm.DB) error {
	return SeedFrom(db, config.Get("SEED_DIR", "dataset_dev"), config.Get("SEED_USER_PASSWORD", "Passw0rd!"))
}

func SeedFrom(db *gorm.DB, dir, password string) error {
	var rawUsers []seedUser
	if err := readJSON(filepath.Join(dir, "userlist.json"), &rawUsers); err != nil {
		return err
	}
	var rawListings []seedListing
	if err := readJSON(filepath.Join(dir, "phonelisting.json"), &rawListings); err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Listing{}).Error; err != nil {
			return err
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.User{}).Error; err != nil {
			return err
		}

		ids := make(map[string]uint, len(rawUsers))
		for _, u := range rawUsers {
			row := models.User{
				FirstName: u.FirstName,
				LastName:  u.LastName,
				Email:     strings.ToLower(strings.TrimSpace(u.Email)),
				Password:  hash,
				Verified:  true,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("user %s: %w", u.Email, err)
			}
			ids[u.ID.OID] = row.ID
		}

		now := time.Now().UTC()
		listings := make([]models.Listing, 0, len(rawListings))
		skipped := 0
		for _, p := range rawListings {
			seller, ok := ids[p.Seller]
			brand := models.Brand(p.Brand)
			if !ok || !brand.Valid() {
				skipped++
				continue
			}
			l := models.Listing{
				Title:    p.Title,
				Brand:    brand,
				Image:    fmt.Sprintf("images/%s.jpeg", brand),
				Stock:    max(p.Stock, 0),
				SellerID: seller,
				Price:    p.Price,
				Disabled: bool(p.Disabled),
				Reviews:  make([]models.Review, 0, len(p.Reviews)),
				Version:  1,
			}
			for i, r := range p.Reviews {
				reviewer, ok := ids[r.Reviewer]
				if !ok {
					continue
				}
				l.Reviews = append(l.Reviews, models.Review{
					ID:         uuid.NewString(),
					ReviewerID: reviewer,
					Rating:     min(max(r.Rating, 1), 5),
					Comment:    r.Comment,
					Hidden:     bool(r.Hidden),
					CreatedAt:  now.Add(-time.Duration(i) * time.Minute),
				})
			}
			listings = append(listings, l)
		}
		if len(listings) > 0 {
			if err := tx.CreateInBatches(&listings, 200).Error; err != nil {
				return err
			}
		}

		logger.Info("seeder: catalog loaded", "users", len(rawUsers), "listings", len(listings), "skipped", skipped)
		return nil
	})
}

func readJSON(path string, dest any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

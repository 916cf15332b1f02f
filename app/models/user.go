package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a marketplace account. Buyers and sellers are the same entity.
// Deleted accounts are soft-deleted so their id is never reissued: listings,
// reviews and orders keep pointing at it.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	FirstName string         `gorm:"size:100;not null" json:"firstname"`
	LastName  string         `gorm:"size:100;not null" json:"lastname"`
	Email     string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password  string         `gorm:"size:255;not null" json:"-"`
	Verified  bool           `gorm:"not null;default:false" json:"verified"`
	Disabled  bool           `gorm:"not null;default:false" json:"disabled"`
	LastLogin *time.Time     `json:"lastLogin,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

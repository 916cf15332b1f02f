package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/phonedeals/app/models"
	"github.com/shashiranjanraj/phonedeals/pkg/apperr"
)

const userMatch = `LOWER(first_name) LIKE ?` + likeEscape + ` OR LOWER(last_name) LIKE ?` + likeEscape + ` OR LOWER(email) LIKE ?` + likeEscape

// UserRepository handles database operations for User.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail looks up a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, notFound(err, "user not found")
	}
	return &user, nil
}

// FindByID looks up a user by primary key.
func (r *UserRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err, "user not found")
	}
	return &user, nil
}

// EmailTaken reports whether another user already owns email.
func (r *UserRepository) EmailTaken(ctx context.Context, email string, except uint) (bool, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email)
	if except != 0 {
		q = q.Where("id <> ?", except)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

// Create persists a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return duplicate(r.db.WithContext(ctx).Create(user).Error, "email already registered")
}

// Update saves every column of user.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	return duplicate(r.db.WithContext(ctx).Save(user).Error, "email already registered")
}

// SetLastLogin stamps the login time without touching updated_at.
func (r *UserRepository) SetLastLogin(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		UpdateColumn("last_login", at).Error
}

// PurgeUnverified hard-deletes accounts that never verified and were created
// before cutoff. Such accounts never logged in, so nothing references them.
func (r *UserRepository) PurgeUnverified(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Unscoped().
		Where("verified = ? AND created_at < ?", false, cutoff).
		Delete(&models.User{})
	return res.RowsAffected, res.Error
}

// Delete retires the user. The row is soft-deleted and its email replaced
// by a tombstone, which frees the address for a new signup while the id
// stays taken.
func (r *UserRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", id).
			UpdateColumn("email", tombstone(id))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("user not found")
		}
		return tx.Delete(&models.User{}, id).Error
	})
}

func tombstone(id uint) string {
	return fmt.Sprintf("deleted+%d@users.invalid", id)
}

// IsActive reports whether id names an existing, enabled user.
func (r *UserRepository) IsActive(ctx context.Context, id uint) (bool, error) {
	var user models.User
	err := r.db.WithContext(ctx).Select("id", "disabled").First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !user.Disabled, nil
}

// Search matches query against first name, last name and email. An empty
// query returns every user.
func (r *UserRepository) Search(ctx context.Context, query string) ([]models.User, error) {
	var users []models.User
	q := r.db.WithContext(ctx).Order("id")
	if query != "" {
		p := like(query)
		q = q.Where(userMatch, p, p, p)
	}
	err := q.Find(&users).Error
	return users, err
}

// MatchingIDs returns the ids of users whose name or email contains query.
func (r *UserRepository) MatchingIDs(ctx context.Context, query string) ([]uint, error) {
	var ids []uint
	p := like(query)
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where(userMatch, p, p, p).
		Pluck("id", &ids).Error
	return ids, err
}

// Names maps each id to the user's full name. Unknown ids are omitted.
func (r *UserRepository) Names(ctx context.Context, ids []uint) (map[uint]string, error) {
	out := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	err := r.db.WithContext(ctx).Select("id", "first_name", "last_name").
		Where("id IN ?", ids).Find(&users).Error
	for _, u := range users {
		out[u.ID] = u.FullName()
	}
	return out, err
}

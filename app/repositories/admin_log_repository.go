package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/phonedeals/app/models"
)

// LogFilter narrows an audit log listing. Target matches as a substring.
type LogFilter struct {
	Action string
	Target string
	Limit  int
}

func (f LogFilter) limit() int {
	if f.Limit <= 0 || f.Limit > 500 {
		return 500
	}
	return f.Limit
}

// AdminLogStore is the append-only audit log.
type AdminLogStore interface {
	Append(ctx context.Context, entry *models.AdminLog) error
	List(ctx context.Context, f LogFilter) ([]models.AdminLog, error)
}

// AdminLogRepository stores audit entries in the SQL database.
type AdminLogRepository struct {
	db *gorm.DB
}

func NewAdminLogRepository(db *gorm.DB) *AdminLogRepository {
	return &AdminLogRepository{db: db}
}

func (r *AdminLogRepository) Append(ctx context.Context, entry *models.AdminLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// List returns entries newest first.
func (r *AdminLogRepository) List(ctx context.Context, f LogFilter) ([]models.AdminLog, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(f.limit())
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.Target != "" {
		q = q.Where("LOWER(target) LIKE ?"+likeEscape, like(f.Target))
	}
	var out []models.AdminLog
	err := q.Find(&out).Error
	return out, err
}

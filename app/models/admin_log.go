package models

import "time"

// Audit action tags.
const (
	ActionUpdateListing      = "UPDATE_LISTING"
	ActionDeleteListing      = "DELETE_LISTING"
	ActionToggleReviewHidden = "TOGGLE_REVIEW_HIDDEN"
	ActionUpdateUser         = "UPDATE_USER"
	ActionDeleteUser         = "DELETE_USER"
)

// AdminLog is one append-only audit entry.
type AdminLog struct {
	ID        string         `gorm:"primaryKey;size:26" json:"id" bson:"_id"`
	Action    string         `gorm:"size:64;not null;index" json:"action" bson:"action"`
	Target    string         `gorm:"size:128;not null;index" json:"target" bson:"target"`
	Admin     string         `gorm:"size:255;not null" json:"admin" bson:"admin"`
	Metadata  map[string]any `gorm:"serializer:json" json:"metadata" bson:"metadata"`
	CreatedAt time.Time      `gorm:"index" json:"timestamp" bson:"timestamp"`
}

func (AdminLog) TableName() string { return "admin_logs" }

package services

import (
	"github.com/shashiranjanraj/phonedeals/app/models"
	"github.com/shashiranjanraj/phonedeals/pkg/event"
)

// Domain events fired on the bus.
const (
	EventUserRegistered   event.Name = "user.registered"
	EventResetRequested   event.Name = "user.reset_requested"
	EventPasswordChanged  event.Name = "user.password_changed"
	EventAuditRecorded    event.Name = "audit.recorded"
	EventCheckoutComplete event.Name = "order.completed"
)

// UserToken pairs a user with a single-use mail token.
type UserToken struct {
	User  models.User
	Token string
}

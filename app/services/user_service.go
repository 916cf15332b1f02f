package services

import (
	"context"
	"strings"

	"github.com/shashiranjanraj/phonedeals/app/models"
	"github.com/shashiranjanraj/phonedeals/app/repositories"
	"github.com/shashiranjanraj/phonedeals/pkg/apperr"
	"github.com/shashiranjanraj/phonedeals/pkg/auth"
	"github.com/shashiranjanraj/phonedeals/pkg/bind"
	"github.com/shashiranjanraj/phonedeals/pkg/event"
	"github.com/shashiranjanraj/phonedeals/pkg/validate"
)

type ProfileInput struct {
	FirstName string `json:"firstname" validate:"required,max=100"`
	LastName  string `json:"lastname"  validate:"required,max=100"`
	Email     string `json:"email"     validate:"required,email,max=255"`
}

type PasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword"     validate:"required,password"`
}

// PublicProfile is what any viewer may learn about a user.
type PublicProfile struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// UserService manages the signed-in user's own account.
type UserService struct {
	users *repositories.UserRepository
	bus   *event.Bus
}

func NewUserService(users *repositories.UserRepository, bus *event.Bus) *UserService {
	return &UserService{users: users, bus: bus}
}

func (s *UserService) self(ctx context.Context, p auth.Principal) (*models.User, error) {
	id, ok := p.UserID()
	if !ok {
		return nil, apperr.Unauthorized("Unauthorized")
	}
	return s.users.FindByID(ctx, id)
}

// Me returns the principal's own account.
func (s *UserService) Me(ctx context.Context, p auth.Principal) (*models.User, error) {
	return s.self(ctx, p)
}

// UpdateProfile changes name and email.
func (s *UserService) UpdateProfile(ctx context.Context, p auth.Principal, in ProfileInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	if err := bind.Struct(&in); err != nil {
		return nil, err
	}
	user, err := s.self(ctx, p)
	if err != nil {
		return nil, err
	}
	taken, err := s.users.EmailTaken(ctx, in.Email, user.ID)
	if err != nil {
		return nil, apperr.Internal("profile update failed", err)
	}
	if taken {
		return nil, apperr.Conflict("Email already registered")
	}

	user.FirstName = strings.TrimSpace(in.FirstName)
	user.LastName = strings.TrimSpace(in.LastName)
	user.Email = in.Email
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, p auth.Principal, in PasswordInput) error {
	if msg := validate.Password("newPassword", in.NewPassword); msg != "" {
		return apperr.Validation("Validation failed", map[string]string{"newPassword": msg})
	}
	user, err := s.self(ctx, p)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.Password, in.CurrentPassword) {
		return apperr.Unauthorized("Current password is incorrect")
	}
	if err := setPassword(ctx, s.users, user, in.NewPassword); err != nil {
		return err
	}
	if s.bus != nil {
		s.bus.FireAsync(EventPasswordChanged, UserToken{User: *user})
	}
	return nil
}

// Profile returns the public view of user id. Disabled users are not found.
func (s *UserService) Profile(ctx context.Context, id uint) (*PublicProfile, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Disabled {
		return nil, apperr.NotFound("user not found")
	}
	return &PublicProfile{ID: user.ID, Name: user.FullName()}, nil
}

package services

import (
	"context"
	"strings"
	"time"

	"github.com/shashiranjanraj/phonedeals/app/models"
	"github.com/shashiranjanraj/phonedeals/app/repositories"
	"github.com/shashiranjanraj/phonedeals/config"
	"github.com/shashiranjanraj/phonedeals/pkg/apperr"
	"github.com/shashiranjanraj/phonedeals/pkg/auth"
	"github.com/shashiranjanraj/phonedeals/pkg/bind"
	"github.com/shashiranjanraj/phonedeals/pkg/event"
	"github.com/shashiranjanraj/phonedeals/pkg/logger"
	"github.com/shashiranjanraj/phonedeals/pkg/validate"
)

const (
	verifyTokenTTL = 24 * time.Hour
	resetTokenTTL  = time.Hour
)

// AuthOptions configures token lifetimes and the admin credential.
type AuthOptions struct {
	UserTokenTTL      time.Duration
	AdminTokenTTL     time.Duration
	AdminEmail        string
	AdminPasswordHash string
}

// AuthOptionsFromConfig reads AuthOptions from the environment.
func AuthOptionsFromConfig() AuthOptions {
	return AuthOptions{
		UserTokenTTL:      config.UserTokenTTL(),
		AdminTokenTTL:     config.AdminSessionTTL(),
		AdminEmail:        config.AdminEmail(),
		AdminPasswordHash: config.AdminPasswordHash(),
	}
}

type SignupInput struct {
	FirstName string `json:"firstname" validate:"required,max=100"`
	LastName  string `json:"lastname"  validate:"required,max=100"`
	Email     string `json:"email"     validate:"required,email,max=255"`
	Password  string `json:"password"  validate:"required,password"`
}

// Session is an issued bearer token.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user,omitempty"`
}

// AuthService implements signup, verification, login and password reset.
type AuthService struct {
	users *repositories.UserRepository
	bus   *event.Bus
	opts  AuthOptions
}

func NewAuthService(users *repositories.UserRepository, bus *event.Bus, opts AuthOptions) *AuthService {
	return &AuthService{users: users, bus: bus, opts: opts}
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

// Signup validates in, creates an unverified user and fires
// EventUserRegistered with a verification token. Nothing is written when
// validation fails.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	if err := bind.Struct(&in); err != nil {
		return nil, err
	}

	taken, err := s.users.EmailTaken(ctx, in.Email, 0)
	if err != nil {
		return nil, apperr.Internal("signup failed", err)
	}
	if taken {
		return nil, apperr.Conflict("Email already registered")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal("signup failed", err)
	}
	user := &models.User{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     in.Email,
		Password:  hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	token, err := auth.IssuePurposeToken(auth.PurposeVerifyEmail, user.ID, user.Email, verifyTokenTTL)
	if err != nil {
		return nil, apperr.Internal("signup failed", err)
	}
	s.fire(EventUserRegistered, UserToken{User: *user, Token: token})
	return user, nil
}

func (s *AuthService) userFromToken(ctx context.Context, token string, purpose auth.Purpose) (*models.User, error) {
	claims, err := auth.ParsePurposeToken(token, purpose)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired token")
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(user.Email, claims.Email) {
		return nil, apperr.Unauthorized("Invalid or expired token")
	}
	return user, nil
}

// VerifyEmail marks the token's user verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	user, err := s.userFromToken(ctx, token, auth.PurposeVerifyEmail)
	if err != nil {
		return err
	}
	if user.Verified {
		return apperr.Conflict("Already verified")
	}
	user.Verified = true
	return s.users.Update(ctx, user)
}

// PurgeUnverified removes accounts whose verification link has expired
// without being used. It runs on a schedule.
func (s *AuthService) PurgeUnverified(ctx context.Context) (int64, error) {
	n, err := s.users.PurgeUnverified(ctx, time.Now().Add(-verifyTokenTTL))
	if err != nil {
		return 0, apperr.Internal("purge failed", err)
	}
	if n > 0 {
		logger.WithCtx(ctx).Info("purged unverified accounts", "count", n)
	}
	return n, nil
}

// DeclineVerification deletes the unverified account named by token. It
// backs the "this wasn't me" link in the verification email.
func (s *AuthService) DeclineVerification(ctx context.Context, token string) error {
	user, err := s.userFromToken(ctx, token, auth.PurposeVerifyEmail)
	if err != nil {
		return err
	}
	if user.Verified {
		return apperr.Conflict("Already verified")
	}
	return s.users.Delete(ctx, user.ID)
}

// Login checks email and password. Unknown email, wrong password and
// disabled accounts all fail with the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if apperr.IsNotFound(err) {
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperr.Internal("login failed", err)
	}
	if !auth.CheckPassword(user.Password, password) || user.Disabled {
		return nil, apperr.ErrInvalidCredentials
	}
	if !user.Verified {
		return nil, apperr.Unauthorized("Email not verified")
	}

	now := time.Now().UTC()
	if err := s.users.SetLastLogin(ctx, user.ID, now); err != nil {
		logger.WithCtx(ctx).Warn("last login not recorded", "user_id", user.ID, "error", err)
	}
	user.LastLogin = &now

	token, exp, err := auth.IssueAccessToken(auth.User(user.ID), s.opts.UserTokenTTL)
	if err != nil {
		return nil, apperr.Internal("login failed", err)
	}
	return &Session{Token: token, ExpiresAt: exp, User: user}, nil
}

// AdminLogin checks the configured admin credential, then calls start to
// open the admin session and issues a token bound to it. Logging out ends
// both.
func (s *AuthService) AdminLogin(email, password string, start func() (string, error)) (*Session, error) {
	if s.opts.AdminEmail == "" || normalizeEmail(email) != normalizeEmail(s.opts.AdminEmail) {
		return nil, apperr.ErrInvalidCredentials
	}
	if !auth.CheckPassword(s.opts.AdminPasswordHash, password) {
		return nil, apperr.ErrInvalidCredentials
	}
	sid, err := start()
	if err != nil {
		return nil, apperr.Internal("session start failed", err)
	}
	token, exp, err := auth.IssueAdminToken(sid, s.opts.AdminTokenTTL)
	if err != nil {
		return nil, apperr.Internal("login failed", err)
	}
	return &Session{Token: token, ExpiresAt: exp}, nil
}

// RequestPasswordReset fires EventResetRequested for a known email. Unknown
// emails are ignored so the caller cannot probe for accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if apperr.IsNotFound(err) {
		logger.WithCtx(ctx).Debug("password reset for unknown email")
		return nil
	}
	if err != nil {
		return apperr.Internal("reset failed", err)
	}
	token, err := auth.IssuePurposeToken(auth.PurposeReset, user.ID, user.Email, resetTokenTTL)
	if err != nil {
		return apperr.Internal("reset failed", err)
	}
	s.fire(EventResetRequested, UserToken{User: *user, Token: token})
	return nil
}

// ResetPassword sets a new password for the user named by a reset token.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if msg := validate.Password("password", password); msg != "" {
		return apperr.Validation("Validation failed", map[string]string{"password": msg})
	}
	user, err := s.userFromToken(ctx, token, auth.PurposeReset)
	if err != nil {
		return err
	}
	if err := setPassword(ctx, s.users, user, password); err != nil {
		return err
	}
	s.fire(EventPasswordChanged, UserToken{User: *user})
	return nil
}

func (s *AuthService) fire(name event.Name, payload any) {
	if s.bus != nil {
		s.bus.FireAsync(name, payload)
	}
}

func setPassword(ctx context.Context, users *repositories.UserRepository, user *models.User, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return apperr.Internal("password update failed", err)
	}
	user.Password = hash
	return users.Update(ctx, user)
}

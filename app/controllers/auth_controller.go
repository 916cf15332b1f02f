package controllers

import (
	"github.com/shashiranjanraj/phonedeals/app/services"
	"github.com/shashiranjanraj/phonedeals/pkg/apperr"
	"github.com/shashiranjanraj/phonedeals/pkg/ctx"
	"github.com/shashiranjanraj/phonedeals/pkg/session"
)

type AuthController struct {
	auth     *services.AuthService
	sessions *session.Manager
}

func NewAuthController(auth *services.AuthService, sessions *session.Manager) *AuthController {
	return &AuthController{auth: auth, sessions: sessions}
}

type tokenInput struct {
	Token string `json:"token" validate:"required"`
}

type loginInput struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Signup POST /api/auth/signup
func (a *AuthController) Signup(c *ctx.Context) {
	var in services.SignupInput
	if !c.BindJSON(&in) {
		return
	}
	user, err := a.auth.Signup(c.Context(), in)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Created(user)
}

// VerifyEmail POST /api/auth/verify-email
func (a *AuthController) VerifyEmail(c *ctx.Context) {
	var in tokenInput
	if !c.BindJSON(&in) {
		return
	}
	if err := a.auth.VerifyEmail(c.Context(), in.Token); err != nil {
		c.Fail(err)
		return
	}
	c.Message("Email verified")
}

// EmailVerifyFail POST /api/auth/email-verify-fail
func (a *AuthController) EmailVerifyFail(c *ctx.Context) {
	var in tokenInput
	if !c.BindJSON(&in) {
		return
	}
	if err := a.auth.DeclineVerification(c.Context(), in.Token); err != nil {
		c.Fail(err)
		return
	}
	c.Message("Account removed")
}

// Login POST /api/auth/login
func (a *AuthController) Login(c *ctx.Context) {
	var in loginInput
	if !c.BindJSON(&in) {
		return
	}
	sess, err := a.auth.Login(c.Context(), in.Email, in.Password)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(sess)
}

// RequestPassword POST /api/auth/req-password
func (a *AuthController) RequestPassword(c *ctx.Context) {
	var in struct {
		Email string `json:"email" validate:"required,email"`
	}
	if !c.BindJSON(&in) {
		return
	}
	if err := a.auth.RequestPasswordReset(c.Context(), in.Email); err != nil {
		c.Fail(err)
		return
	}
	c.Message("If the address is registered, a reset link is on its way")
}

// ResetPassword POST /api/auth/reset-password
func (a *AuthController) ResetPassword(c *ctx.Context) {
	var in struct {
		Token    string `json:"token"    validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if !c.BindJSON(&in) {
		return
	}
	if err := a.auth.ResetPassword(c.Context(), in.Token, in.Password); err != nil {
		c.Fail(err)
		return
	}
	c.Message("Password updated")
}

// AdminLogin POST /api/admin/login
//
// Issues the rolling session cookie and a bearer token bound to the same
// session.
func (a *AuthController) AdminLogin(c *ctx.Context) {
	var in loginInput
	if !c.BindJSON(&in) {
		return
	}
	sess, err := a.auth.AdminLogin(in.Email, in.Password, func() (string, error) {
		s, err := a.sessions.Start(c.Context(), c.W, session.Session{Admin: true})
		return s.ID, err
	})
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(sess)
}

// AdminLogout POST /api/admin/logout
func (a *AuthController) AdminLogout(c *ctx.Context) {
	if err := a.sessions.Destroy(c.Context(), c.W, c.R); err != nil {
		c.Fail(apperr.Internal("session destroy failed", err))
		return
	}
	c.Message("Logged out")
}

// AdminPing GET /api/admin/ping
func (a *AuthController) AdminPing(c *ctx.Context) {
	c.Success(map[string]any{"admin": c.Principal().IsAdmin()})
}

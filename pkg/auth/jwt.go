package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shashiranjanraj/phonedeals/config"
)

// Purpose separates access tokens from single-use mail tokens so that an
// emailed link can never be replayed as a bearer credential.
type Purpose string

const (
	PurposeAccess      Purpose = "access"
	PurposeVerifyEmail Purpose = "verify_email"
	PurposeReset       Purpose = "reset_password"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var ErrWrongPurpose = errors.New("auth: token purpose mismatch")

// ErrNoSession is returned when an admin token is requested without the
// session it must be bound to.
var ErrNoSession = errors.New("auth: admin token needs a session id")

// Claims holds the typed JWT payload.
type Claims struct {
	UserID  uint    `json:"user_id,omitempty"`
	Role    string  `json:"role,omitempty"`
	Email   string  `json:"email,omitempty"`
	Purpose Purpose `json:"purpose"`
	// SessionID binds an admin token to its server-side session. The token
	// dies with the session.
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Principal converts access-token claims into a Principal.
func (c *Claims) Principal() Principal {
	if c.Purpose != PurposeAccess {
		return Anonymous()
	}
	switch c.Role {
	case RoleAdmin:
		if c.SessionID == "" {
			return Anonymous()
		}
		return Admin()
	case RoleUser:
		if c.UserID != 0 {
			return User(c.UserID)
		}
	}
	return Anonymous()
}

func secret() []byte {
	return []byte(config.JWTSecret())
}

// IssueAccessToken signs a user bearer token valid for ttl. Admin tokens go
// through IssueAdminToken.
func IssueAccessToken(p Principal, ttl time.Duration) (string, time.Time, error) {
	id, ok := p.UserID()
	if !ok {
		return "", time.Time{}, fmt.Errorf("auth: cannot issue a user token for %s", p)
	}
	return issue(Claims{Purpose: PurposeAccess, Role: RoleUser, UserID: id}, ttl)
}

// IssueAdminToken signs an admin bearer token bound to sessionID.
func IssueAdminToken(sessionID string, ttl time.Duration) (string, time.Time, error) {
	if sessionID == "" {
		return "", time.Time{}, ErrNoSession
	}
	return issue(Claims{Purpose: PurposeAccess, Role: RoleAdmin, SessionID: sessionID}, ttl)
}

func issue(claims Claims, ttl time.Duration) (string, time.Time, error) {
	expires := time.Now().Add(ttl)
	token, err := sign(claims, expires)
	return token, expires, err
}

// IssuePurposeToken signs a mail token (email verification, password reset).
func IssuePurposeToken(purpose Purpose, userID uint, email string, ttl time.Duration) (string, error) {
	return sign(Claims{UserID: userID, Email: email, Purpose: purpose}, time.Now().Add(ttl))
}

func sign(claims Claims, expires time.Time) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expires),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret())
}

// ValidateToken parses and validates a JWT string.
func ValidateToken(t string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(t, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		return secret(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}

// ParsePurposeToken validates t and checks it was issued for purpose.
func ParsePurposeToken(t string, purpose Purpose) (*Claims, error) {
	claims, err := ValidateToken(t)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, ErrWrongPurpose
	}
	return claims, nil
}

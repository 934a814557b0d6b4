package auth

import (
	"context"
	"time"

	"github.com/frahmantamala/event-permission/internal"
	"github.com/frahmantamala/event-permission/internal/user"
	"github.com/golang-jwt/jwt/v5"
)

// TokenGenerator issues and verifies session tokens.
type TokenGenerator interface {
	GenerateSessionToken(userID, email string) (token string, claims *Claims, err error)
	ValidateToken(tokenString string) (*Claims, error)
}

// UserStore is the slice of the users store the identity provider needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	Create(ctx context.Context, u *user.User) error
}

// RevocationStore remembers signed-out session ids until their tokens expire.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Claims represents JWT token claims. The token ID doubles as the session id.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type JWTTokenGenerator struct {
	Secret     []byte
	SessionTTL time.Duration
	Issuer     string
}

// SignInResult is returned to the client after a successful sign-in.
type SignInResult struct {
	Token      string     `json:"token"`
	ExpiresAt  time.Time  `json:"expires_at"`
	RedirectTo string     `json:"redirect_to"`
	User       *user.User `json:"user"`
}

var (
	ErrInvalidCredentials = internal.ErrInvalidCredentials
	ErrInvalidToken       = internal.ErrInvalidToken
	ErrTokenExpired       = internal.ErrTokenExpired
	ErrSessionRevoked     = internal.NewUnauthorizedError("Session has been signed out", internal.ErrCodeInvalidToken)
)

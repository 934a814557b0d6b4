package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/event-permission/internal"
	"github.com/frahmantamala/event-permission/internal/access"
	coreuser "github.com/frahmantamala/event-permission/internal/core/user"
	"github.com/frahmantamala/event-permission/internal/user"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service is the identity provider: sign-up, sign-in, sign-out and
// current-session resolution.
type Service struct {
	users          UserStore
	tokenGenerator TokenGenerator
	revocations    RevocationStore
	bcryptCost     int
	logger         *slog.Logger
}

// NewService creates a new auth service
func NewService(users UserStore, tokenGen TokenGenerator, revocations RevocationStore, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:          users,
		tokenGenerator: tokenGen,
		revocations:    revocations,
		bcryptCost:     bcryptCost,
		logger:         logger,
	}
}

// NewJWTTokenGenerator creates a new JWT token generator
func NewJWTTokenGenerator(secret string, ttl time.Duration) *JWTTokenGenerator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTTokenGenerator{
		Secret:     []byte(secret),
		SessionTTL: ttl,
		Issuer:     "event-permission",
	}
}

// SignUp registers a user with the role-specific profile fields.
func (s *Service) SignUp(ctx context.Context, dto RegisterDTO) (*user.User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	role, _ := coreuser.ParseRole(dto.Role)
	hash, err := s.HashPassword(dto.Password)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	u := &user.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(dto.Email)),
		Name:         strings.TrimSpace(dto.Name),
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	switch {
	case role.IsStudent():
		u.RollNumber = optional(strings.TrimSpace(dto.RollNumber))
	case role.IsResponder():
		u.Department = optional(strings.TrimSpace(dto.Department))
	}

	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("sign up completed", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// SignIn validates credentials and returns a session token plus the
// dashboard the user lands on.
func (s *Service) SignIn(ctx context.Context, dto LoginDTO) (*SignInResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	u, err := s.users.GetByEmail(ctx, dto.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, internal.NewInternalError("failed to load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(dto.Password)); err != nil {
		s.logger.Warn("sign in rejected", "user_id", u.ID)
		return nil, ErrInvalidCredentials
	}

	token, claims, err := s.tokenGenerator.GenerateSessionToken(u.ID, u.Email)
	if err != nil {
		return nil, internal.NewInternalError("failed to issue session", err)
	}

	s.logger.Info("sign in succeeded", "user_id", u.ID, "role", u.Role, "session_id", claims.ID)

	return &SignInResult{
		Token:      token,
		ExpiresAt:  claims.ExpiresAt.Time,
		RedirectTo: access.HomeFor(u.Role),
		User:       u,
	}, nil
}

// SignOut revokes the session. Tokens that no longer validate are
// already signed out, so they are not an error.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.tokenGenerator.ValidateToken(token)
	if err != nil {
		return nil
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return internal.NewInternalError("failed to sign out", err)
	}
	s.logger.Info("signed out", "user_id", claims.UserID, "session_id", claims.ID)
	return nil
}

// CurrentSession validates the token and checks it was not signed out.
func (s *Service) CurrentSession(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, internal.ErrSessionRequired
	}
	claims, err := s.tokenGenerator.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check session revocation: %w", err)
	}
	if revoked {
		return nil, ErrSessionRevoked
	}
	return claims, nil
}

// GenerateSessionToken creates a new session token with a unique id
func (j *JWTTokenGenerator) GenerateSessionToken(userID, email string) (string, *Claims, error) {
	now := time.Now()

	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    j.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.SessionTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.Secret)
	if err != nil {
		return "", nil, err
	}

	return tokenString, claims, nil
}

// ValidateToken validates a JWT token and returns claims
func (j *JWTTokenGenerator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	}, jwt.WithIssuer(j.Issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.UserID != "" {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// HashPassword creates a bcrypt hash of the password
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

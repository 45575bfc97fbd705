// Package auth implements user registration, JWT sessions and password
// reset flows.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "adops-backend/internal/common/errors"
	"adops-backend/internal/common/logging"
	"adops-backend/internal/redis"
	"adops-backend/internal/storage"
)

const (
	resetKeyPrefix = "reset:"
	resetTTL       = time.Hour

	minPasswordLength = 8
)

// Config holds token signing settings.
type Config struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
}

// Claims is the JWT payload carried by access tokens.
type Claims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// Service handles authentication. Password reset tokens live in Redis
// under reset:{token} so they expire on their own and a used token can
// be burned atomically.
type Service struct {
	store  storage.UserStore
	redis  *redis.Client
	config Config
	logger logging.Logger
	now    func() time.Time
}

// NewService creates an auth service.
func NewService(store storage.UserStore, redisClient *redis.Client, config Config, logger logging.Logger) *Service {
	return &Service{
		store:  store,
		redis:  redisClient,
		config: config,
		logger: logger.WithFields(logging.Field{Key: "component", Value: "auth"}),
		now:    time.Now,
	}
}

// Register creates a new user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, email, password, fullName string) (*storage.User, error) {
	if email == "" {
		return nil, apperrors.ValidationError("email is required")
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.ValidationError(
			fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	existing, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.InternalError("failed to check existing user", err)
	}
	if existing != nil {
		return nil, apperrors.ConflictError("email is already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.InternalError("failed to hash password", err)
	}

	user := &storage.User{
		Email:          email,
		HashedPassword: string(hash),
		FullName:       fullName,
		IsActive:       true,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, apperrors.InternalError("failed to create user", err)
	}

	s.logger.Info("user registered", logging.Field{Key: "user_id", Value: user.ID})
	return user, nil
}

// Login verifies credentials and returns a signed access token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *storage.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", nil, apperrors.InternalError("failed to load user", err)
	}
	if user == nil {
		return "", nil, apperrors.AuthError("invalid email or password")
	}
	if !user.IsActive {
		return "", nil, apperrors.AuthError("account is disabled")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) != nil {
		return "", nil, apperrors.AuthError("invalid email or password")
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *Service) issueToken(user *storage.User) (string, error) {
	now := s.now().UTC()
	claims := Claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AccessTokenExpiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", apperrors.InternalError("failed to sign token", err)
	}
	return signed, nil
}

// VerifyToken parses and validates an access token and loads its user.
func (s *Service) VerifyToken(ctx context.Context, tokenString string) (*storage.User, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.AuthError("invalid or expired token")
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.InternalError("failed to load user", err)
	}
	if user == nil || !user.IsActive {
		return nil, apperrors.AuthError("invalid or expired token")
	}
	return user, nil
}

// GenerateAPIKey issues a fresh long-lived API key for the user,
// replacing any previous one.
func (s *Service) GenerateAPIKey(ctx context.Context, userID int64) (string, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return "", apperrors.InternalError("failed to load user", err)
	}
	if user == nil {
		return "", apperrors.NotFoundError("user")
	}

	key := "ak_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	user.APIKey = &key
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return "", apperrors.InternalError("failed to store api key", err)
	}

	s.logger.Info("api key generated", logging.Field{Key: "user_id", Value: userID})
	return key, nil
}

// VerifyAPIKey resolves an API key to its active user.
func (s *Service) VerifyAPIKey(ctx context.Context, key string) (*storage.User, error) {
	if key == "" {
		return nil, apperrors.AuthError("invalid api key")
	}

	user, err := s.store.GetUserByAPIKey(ctx, key)
	if err != nil {
		return nil, apperrors.InternalError("failed to load user", err)
	}
	if user == nil || !user.IsActive {
		return nil, apperrors.AuthError("invalid api key")
	}
	return user, nil
}

// RequestPasswordReset creates a one-hour reset token for the account.
// It reports no error for unknown emails so the endpoint does not leak
// which addresses exist; the returned token is empty in that case.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", apperrors.InternalError("failed to load user", err)
	}
	if user == nil {
		return "", nil
	}

	token := uuid.NewString()
	if err := s.redis.Set(ctx, resetKeyPrefix+token, user.ID, resetTTL); err != nil {
		return "", err
	}

	s.logger.Info("password reset requested", logging.Field{Key: "user_id", Value: user.ID})
	return token, nil
}

// ResetPassword consumes a reset token and sets a new password. The token
// is deleted before the write so it cannot be replayed.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return apperrors.ValidationError(
			fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var userID int64
	found, err := s.redis.Get(ctx, resetKeyPrefix+token, &userID)
	if err != nil {
		return err
	}
	if !found {
		return apperrors.AuthError("invalid or expired reset token")
	}
	if _, err := s.redis.Delete(ctx, resetKeyPrefix+token); err != nil {
		return err
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return apperrors.InternalError("failed to load user", err)
	}
	if user == nil {
		return apperrors.AuthError("invalid or expired reset token")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.InternalError("failed to hash password", err)
	}
	user.HashedPassword = string(hash)
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return apperrors.InternalError("failed to update user", err)
	}

	s.logger.Info("password reset completed", logging.Field{Key: "user_id", Value: user.ID})
	return nil
}

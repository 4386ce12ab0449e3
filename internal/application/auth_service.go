package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/lumenshop/storefront/internal/domain/entity"
	"github.com/lumenshop/storefront/internal/domain/repository"
	"github.com/lumenshop/storefront/pkg/helpers"
	"github.com/lumenshop/storefront/pkg/validation"
)

var (
	// ErrInvalidCredentials covers both unknown phone and wrong password.
	// The two cases are only distinguished in server-side logs, never in the
	// response, so a caller cannot probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicatePhone     = errors.New("phone already registered")
	ErrInvalidPhone       = errors.New("invalid phone number")
)

const (
	sessionTTL      = 168 * time.Hour
	profileCacheTTL = 5 * time.Minute
)

func sessionKey(userID string) string {
	return "user:session:" + userID
}

// AuthService implements registration, password authentication and the
// access/refresh token protocol.
type AuthService struct {
	Repo   repository.UserRepository
	JWT    *helpers.JWTManager
	Redis  *redis.Client
	Logger *logrus.Logger
}

func NewAuthService(repo repository.UserRepository, jwt *helpers.JWTManager, rdb *redis.Client, logger *logrus.Logger) *AuthService {
	return &AuthService{Repo: repo, JWT: jwt, Redis: rdb, Logger: logger}
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

type RegisterInput struct {
	Phone     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates a user with a bcrypt-hashed password. The phone number is
// normalized to E.164 before storage so the uniqueness constraint holds across
// input formats.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	phone, err := validation.NormalizePhone(in.Phone)
	if err != nil {
		return nil, ErrInvalidPhone
	}
	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &entity.User{
		Phone:     phone,
		Password:  hash,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      entity.RoleCustomer,
	}
	if err := s.Repo.Create(u); err != nil {
		if errors.Is(err, repository.ErrDuplicatePhone) {
			return nil, ErrDuplicatePhone
		}
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.WithField("user_id", u.ID).Info("user registered")
	}
	return u, nil
}

// Authenticate validates phone/password and returns the user without issuing tokens.
func (s *AuthService) Authenticate(ctx context.Context, phone, password string) (*entity.User, error) {
	normalized, err := validation.NormalizePhone(phone)
	if err != nil {
		normalized = phone
	}
	u, err := s.Repo.GetByPhone(normalized)
	if err != nil || u == nil {
		if s.Logger != nil {
			s.Logger.WithField("reason", "unknown_phone").Warn("login rejected")
		}
		return nil, ErrInvalidCredentials
	}
	if !helpers.CompareHashAndPassword(u.Password, password) {
		if s.Logger != nil {
			s.Logger.WithFields(logrus.Fields{"reason": "bad_password", "user_id": u.ID}).Warn("login rejected")
		}
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// IssueTokens generates an access/refresh pair and records the refresh session
// marker in Redis. The marker is what lets refresh rotation invalidate a
// superseded refresh token.
func (s *AuthService) IssueTokens(ctx context.Context, u *entity.User) (TokenPair, error) {
	sid := uuid.NewString()
	access, aexp, err := s.JWT.GenerateAccessToken(u.ID)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		}
		return TokenPair{}, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u.ID, sid)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate refresh token failed")
		}
		return TokenPair{}, err
	}

	if s.Redis != nil {
		fields := map[string]any{
			"user_id": u.ID,
			"phone":   u.Phone,
			"name":    u.FullName(),
			"role":    u.Role.String(),
			"sid":     sid,
		}
		key := sessionKey(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, sessionTTL)
		if _, rErr := pipe.Exec(ctx); rErr != nil && s.Logger != nil {
			s.Logger.WithError(rErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}

	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

func (s *AuthService) Login(ctx context.Context, phone, password string) (*entity.User, TokenPair, error) {
	u, err := s.Authenticate(ctx, phone, password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// Refresh exchanges a valid refresh token for a fresh pair. The refresh token
// is rotated on every use: the session marker moves to a new id, so the token
// that was just consumed can no longer mint anything.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, string, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, "", ErrInvalidCredentials
	}
	u, err := s.Repo.GetByID(claims.UserID)
	if err != nil || u == nil {
		return TokenPair{}, "", ErrInvalidCredentials
	}
	// The token's sid must match the live session marker.
	if s.Redis != nil {
		data, rErr := s.Redis.HGetAll(ctx, sessionKey(u.ID)).Result()
		if rErr != nil || len(data) == 0 || data["sid"] != claims.SessionID {
			return TokenPair{}, "", ErrInvalidCredentials
		}
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return TokenPair{}, "", err
	}
	return pair, u.ID, nil
}

// Logout drops the session marker; the handler clears the cookie.
func (s *AuthService) Logout(ctx context.Context, userID string) {
	if s.Redis != nil && userID != "" {
		_ = s.Redis.Del(ctx, sessionKey(userID)).Err()
	}
}

// GetProfile reads the user through a short-lived Redis cache. Mutating flows
// (profile update, mobile verification) refresh or drop the cached row.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*entity.User, error) {
	if s.Redis != nil {
		var cached entity.User
		if ok, cErr := helpers.RedisGetJSON(ctx, s.Redis, helpers.KeyUserProfile(userID), &cached); cErr == nil && ok {
			return &cached, nil
		}
	}
	u, err := s.Repo.GetByID(userID)
	if err != nil || u == nil {
		return nil, ErrUserNotFound
	}
	if s.Redis != nil {
		s.cacheProfile(ctx, u)
	}
	return u, nil
}

// cacheProfile stores a sanitized copy; the password hash never enters the cache.
func (s *AuthService) cacheProfile(ctx context.Context, u *entity.User) {
	cp := *u
	cp.Password = ""
	_ = helpers.RedisSetJSON(ctx, s.Redis, helpers.KeyUserProfile(u.ID), &cp, profileCacheTTL)
}

type UpdateProfileInput struct {
	FirstName string
	LastName  string
}

// UpdateProfile mutates first/last name only; every other field is owned by a
// dedicated flow (password reset, OTP verification) and ignored here.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*entity.User, error) {
	u, err := s.Repo.GetByID(userID)
	if err != nil || u == nil {
		return nil, ErrUserNotFound
	}
	if in.FirstName != "" {
		u.FirstName = in.FirstName
	}
	if in.LastName != "" {
		u.LastName = in.LastName
	}
	if err := s.Repo.Update(u); err != nil {
		return nil, err
	}

	if s.Redis != nil {
		key := sessionKey(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, map[string]any{"name": u.FullName()})
		if ttl, tErr := s.Redis.TTL(ctx, key).Result(); tErr == nil && ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		if _, pErr := pipe.Exec(ctx); pErr != nil && s.Logger != nil {
			s.Logger.WithError(pErr).WithField("key", key).Warn("redis pipeline failed")
		}
		s.cacheProfile(ctx, u)
	}
	return u, nil
}

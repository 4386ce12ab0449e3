package application

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/lumenshop/storefront/internal/domain/repository"
	"github.com/lumenshop/storefront/pkg/helpers"
	"github.com/lumenshop/storefront/pkg/smsq"
)

var (
	// ErrOTPThrottled is returned while a previously issued challenge is still live.
	ErrOTPThrottled = errors.New("otp resend throttled")
	// ErrOTPExpired is returned when no active challenge exists for the phone.
	ErrOTPExpired = errors.New("otp expired or not issued")
	// ErrOTPMismatch is returned for a wrong code while attempts remain.
	ErrOTPMismatch = errors.New("otp code mismatch")
	// ErrOTPTooManyAttempts consumes the challenge after repeated wrong codes.
	ErrOTPTooManyAttempts = errors.New("otp attempts exhausted")
)

// SMSDispatcher is the outbound side of the OTP flow; the default
// implementation publishes smsq jobs onto RabbitMQ.
type SMSDispatcher interface {
	Publish(ctx context.Context, job smsq.Job) error
}

// OTPService runs the phone-ownership challenge flow. A phone has at most one
// active challenge at a time; the challenge key doubles as the resend throttle.
type OTPService struct {
	Repo        repository.UserRepository
	Redis       *redis.Client
	SMS         SMSDispatcher
	Logger      *logrus.Logger
	TTL         time.Duration
	MaxAttempts int
}

func NewOTPService(repo repository.UserRepository, rdb *redis.Client, sms SMSDispatcher, logger *logrus.Logger, ttl time.Duration, maxAttempts int) *OTPService {
	if ttl <= 0 {
		ttl = 120 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &OTPService{Repo: repo, Redis: rdb, SMS: sms, Logger: logger, TTL: ttl, MaxAttempts: maxAttempts}
}

// SendChallenge issues a 6-digit code for the phone. While a challenge is
// live, resends are rejected with the seconds remaining until expiry.
func (s *OTPService) SendChallenge(ctx context.Context, phone string) (retryAfter time.Duration, err error) {
	code, err := helpers.GenOTPCode()
	if err != nil {
		return 0, err
	}

	key := helpers.KeyOTPCode(phone)
	set, err := s.Redis.SetNX(ctx, key, code, s.TTL).Result()
	if err != nil {
		return 0, err
	}
	if !set {
		ttl, tErr := s.Redis.TTL(ctx, key).Result()
		if tErr != nil || ttl <= 0 {
			ttl = s.TTL
		}
		return ttl, ErrOTPThrottled
	}
	// Fresh challenge, fresh attempt budget.
	_ = s.Redis.Del(ctx, helpers.KeyOTPAttempts(phone)).Err()

	if s.SMS != nil {
		job := smsq.Job{To: phone, Body: "Your verification code is " + code, Kind: "otp"}
		if pErr := s.SMS.Publish(ctx, job); pErr != nil {
			// Roll back the challenge: the code was never delivered, so the
			// caller must not sit out the resend window for it.
			_ = s.Redis.Del(ctx, key).Err()
			if s.Logger != nil {
				s.Logger.WithError(pErr).Warn("otp sms dispatch failed")
			}
			return 0, pErr
		}
	}
	if s.Logger != nil {
		s.Logger.WithField("phone", phone).Info("otp challenge issued")
	}
	return 0, nil
}

// Verify consumes the active challenge on success and flips the user's
// mobile-verified flag. Wrong codes burn one attempt; exhausting the attempt
// budget consumes the challenge as well.
func (s *OTPService) Verify(ctx context.Context, userID, phone, code string) error {
	key := helpers.KeyOTPCode(phone)
	want, err := s.Redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrOTPExpired
	}
	if err != nil {
		return err
	}

	if subtle.ConstantTimeCompare([]byte(want), []byte(code)) != 1 {
		attemptsKey := helpers.KeyOTPAttempts(phone)
		attempts, aErr := s.Redis.Incr(ctx, attemptsKey).Result()
		if aErr == nil {
			_ = s.Redis.Expire(ctx, attemptsKey, s.TTL).Err()
		}
		if aErr == nil && attempts >= int64(s.MaxAttempts) {
			_ = s.Redis.Del(ctx, key, attemptsKey).Err()
			if s.Logger != nil {
				s.Logger.WithField("phone", phone).Warn("otp challenge consumed after too many attempts")
			}
			return ErrOTPTooManyAttempts
		}
		return ErrOTPMismatch
	}

	_ = s.Redis.Del(ctx, key, helpers.KeyOTPAttempts(phone)).Err()
	if err := s.Repo.SetMobileVerified(userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	// Drop the cached profile so the verified flag is visible immediately.
	_ = helpers.RedisDel(ctx, s.Redis, helpers.KeyUserProfile(userID))
	if s.Logger != nil {
		s.Logger.WithField("user_id", userID).Info("mobile verified")
	}
	return nil
}

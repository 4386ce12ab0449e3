package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenshop/storefront/internal/domain/entity"
	"github.com/lumenshop/storefront/pkg/helpers"
	"github.com/lumenshop/storefront/pkg/smsq"
)

type fakeSMS struct {
	mu       sync.Mutex
	jobs     []smsq.Job
	failNext bool
}

func (f *fakeSMS) Publish(_ context.Context, job smsq.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("broker unavailable")
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeSMS) sent() []smsq.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]smsq.Job(nil), f.jobs...)
}

const testPhone = "+989123456789"

func newOTPFixture(t *testing.T) (*OTPService, *fakeUserRepo, *fakeSMS, *miniredis.Miniredis) {
	t.Helper()
	repo := newFakeUserRepo()
	mr, rdb := testRedis(t)
	sms := &fakeSMS{}
	svc := NewOTPService(repo, rdb, sms, quietLogger(), 120*time.Second, 5)
	return svc, repo, sms, mr
}

// liveCode reads the active challenge code straight out of Redis.
func liveCode(t *testing.T, mr *miniredis.Miniredis, phone string) string {
	t.Helper()
	code, err := mr.Get(helpers.KeyOTPCode(phone))
	require.NoError(t, err)
	return code
}

func TestSendChallengeThrottlesResend(t *testing.T) {
	svc, _, sms, mr := newOTPFixture(t)
	ctx := context.Background()

	retry, err := svc.SendChallenge(ctx, testPhone)
	require.NoError(t, err)
	assert.Zero(t, retry)
	require.Len(t, sms.sent(), 1)
	assert.Equal(t, testPhone, sms.sent()[0].To)
	assert.Contains(t, sms.sent()[0].Body, liveCode(t, mr, testPhone))

	// Challenge still live: no new code, no new SMS.
	retry, err = svc.SendChallenge(ctx, testPhone)
	assert.ErrorIs(t, err, ErrOTPThrottled)
	assert.Greater(t, retry, time.Duration(0))
	assert.LessOrEqual(t, retry, 120*time.Second)
	assert.Len(t, sms.sent(), 1)

	// After expiry a fresh challenge can be issued.
	mr.FastForward(121 * time.Second)
	_, err = svc.SendChallenge(ctx, testPhone)
	require.NoError(t, err)
	assert.Len(t, sms.sent(), 2)
}

func TestSendChallengeRollsBackOnDispatchFailure(t *testing.T) {
	svc, _, sms, mr := newOTPFixture(t)
	ctx := context.Background()

	sms.failNext = true
	_, err := svc.SendChallenge(ctx, testPhone)
	require.Error(t, err)
	// The undelivered challenge must not hold the resend window.
	assert.False(t, mr.Exists(helpers.KeyOTPCode(testPhone)))

	retry, err := svc.SendChallenge(ctx, testPhone)
	require.NoError(t, err)
	assert.Zero(t, retry)
	assert.Len(t, sms.sent(), 1)
}

func TestVerifySuccessConsumesChallenge(t *testing.T) {
	svc, repo, _, mr := newOTPFixture(t)
	ctx := context.Background()

	u := &entity.User{Phone: testPhone, Password: "x"}
	require.NoError(t, repo.Create(u))

	_, err := svc.SendChallenge(ctx, testPhone)
	require.NoError(t, err)
	code := liveCode(t, mr, testPhone)

	require.NoError(t, svc.Verify(ctx, u.ID, testPhone, code))

	got, err := repo.GetByID(u.ID)
	require.NoError(t, err)
	assert.True(t, got.MobileVerified)

	// The challenge is gone, so the same code cannot be replayed.
	assert.ErrorIs(t, svc.Verify(ctx, u.ID, testPhone, code), ErrOTPExpired)
}

func TestVerifyWithoutChallenge(t *testing.T) {
	svc, _, _, _ := newOTPFixture(t)

	err := svc.Verify(context.Background(), "u-1", testPhone, "123456")
	assert.ErrorIs(t, err, ErrOTPExpired)
}

func TestVerifyExhaustsAttemptBudget(t *testing.T) {
	svc, repo, _, mr := newOTPFixture(t)
	ctx := context.Background()

	u := &entity.User{Phone: testPhone, Password: "x"}
	require.NoError(t, repo.Create(u))

	_, err := svc.SendChallenge(ctx, testPhone)
	require.NoError(t, err)
	wrong := wrongCode(liveCode(t, mr, testPhone))

	for i := 0; i < 4; i++ {
		assert.ErrorIs(t, svc.Verify(ctx, u.ID, testPhone, wrong), ErrOTPMismatch)
	}
	// Fifth wrong attempt consumes the challenge entirely.
	assert.ErrorIs(t, svc.Verify(ctx, u.ID, testPhone, wrong), ErrOTPTooManyAttempts)
	assert.False(t, mr.Exists(helpers.KeyOTPCode(testPhone)))
	assert.ErrorIs(t, svc.Verify(ctx, u.ID, testPhone, wrong), ErrOTPExpired)

	got, err := repo.GetByID(u.ID)
	require.NoError(t, err)
	assert.False(t, got.MobileVerified)
}

func TestVerifyRecoversAfterWrongAttempts(t *testing.T) {
	svc, repo, _, mr := newOTPFixture(t)
	ctx := context.Background()

	u := &entity.User{Phone: testPhone, Password: "x"}
	require.NoError(t, repo.Create(u))

	_, err := svc.SendChallenge(ctx, testPhone)
	require.NoError(t, err)
	code := liveCode(t, mr, testPhone)

	assert.ErrorIs(t, svc.Verify(ctx, u.ID, testPhone, wrongCode(code)), ErrOTPMismatch)
	assert.NoError(t, svc.Verify(ctx, u.ID, testPhone, code))
}

func wrongCode(right string) string {
	if right == "000000" {
		return "111111"
	}
	return "000000"
}

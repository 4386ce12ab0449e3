package shopclient

import (
	"context"
	"errors"
	"sync"
	"time"
)

// OTPState is the phone-verification sub-flow state.
type OTPState int

const (
	OTPIdle OTPState = iota
	OTPSent
	OTPVerified
)

// resendWindow mirrors the server-side challenge TTL.
const resendWindow = 120 * time.Second

var (
	// ErrResendThrottled is returned for a resend attempt before the
	// countdown expires; no network call is made.
	ErrResendThrottled = errors.New("otp resend throttled")
	// ErrCodeShape is returned before any network call when the code is not
	// exactly six digits.
	ErrCodeShape = errors.New("otp code must be 6 digits")
)

// OTPVerifier drives the phone-ownership challenge from the client side:
// idle -> sent -> verified, with a 120 second resend countdown.
type OTPVerifier struct {
	client *Client
	now    func() time.Time

	mu       sync.Mutex
	state    OTPState
	resendAt time.Time
	lastErr  error
}

func NewOTPVerifier(client *Client) *OTPVerifier {
	return &OTPVerifier{client: client, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (v *OTPVerifier) WithClock(clock func() time.Time) *OTPVerifier {
	if clock != nil {
		v.now = clock
	}
	return v
}

func (v *OTPVerifier) State() OTPState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Err returns the error recorded by the last failed send or verify.
func (v *OTPVerifier) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastErr
}

// ResendIn reports how long until another send is allowed; zero when a send
// is possible now.
func (v *OTPVerifier) ResendIn() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	d := v.resendAt.Sub(v.now())
	if d < 0 {
		return 0
	}
	return d
}

// Send dispatches a challenge for the phone. Only callable from idle or after
// the resend countdown has expired; inside the window it fails locally.
func (v *OTPVerifier) Send(ctx context.Context, phone string) error {
	v.mu.Lock()
	if v.state == OTPVerified {
		v.mu.Unlock()
		return ErrInvalidTransition
	}
	if v.state == OTPSent && v.now().Before(v.resendAt) {
		v.mu.Unlock()
		return ErrResendThrottled
	}
	v.mu.Unlock()

	if err := v.client.SendOTP(ctx, phone); err != nil {
		v.mu.Lock()
		v.lastErr = err
		v.mu.Unlock()
		return err
	}

	v.mu.Lock()
	v.state = OTPSent
	v.resendAt = v.now().Add(resendWindow)
	v.lastErr = nil
	v.mu.Unlock()
	return nil
}

// Verify submits the code. The 6-digit shape is enforced before any network
// call; a wrong code keeps the flow in sent with the attempt's error recorded.
func (v *OTPVerifier) Verify(ctx context.Context, phone, code string) error {
	v.mu.Lock()
	if v.state != OTPSent {
		v.mu.Unlock()
		return ErrInvalidTransition
	}
	v.mu.Unlock()

	if !isSixDigits(code) {
		v.mu.Lock()
		v.lastErr = ErrCodeShape
		v.mu.Unlock()
		return ErrCodeShape
	}

	if err := v.client.VerifyOTP(ctx, phone, code); err != nil {
		v.mu.Lock()
		v.lastErr = err
		v.mu.Unlock()
		return err
	}

	v.mu.Lock()
	v.state = OTPVerified
	v.lastErr = nil
	v.mu.Unlock()
	return nil
}

func isSixDigits(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

package shopclient

import (
	"context"
	"errors"
	"sync"
)

// AuthState is the client's authentication lifecycle state.
type AuthState int

const (
	StateUnauthenticated AuthState = iota
	StateChecking
	StateAuthenticated
)

func (s AuthState) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// ErrInvalidTransition is returned when an operation is not legal from the
// machine's current state. "Already triggered" is a structural property of the
// transition table, not an incidental flag.
var ErrInvalidTransition = errors.New("invalid auth state transition")

// Settlement is delivered exactly once per logical auth transition, after the
// machine has come to rest in authenticated or unauthenticated.
type Settlement struct {
	Epoch         int
	Authenticated bool
	User          *User
	// Logout marks a settlement caused by an explicit logout, so subscribers
	// can revert to guest mode instead of initializing.
	Logout bool
}

// AuthStateMachine sequences the silent auth check, the profile fetch and
// explicit login/logout. Each transition-triggering fetch fires at most once
// per epoch: re-entrant triggers (an effect storm re-evaluating before the
// async call resolves) are rejected by the state guard, and responses landing
// after a later transition are discarded by the epoch check.
type AuthStateMachine struct {
	client *Client

	mu        sync.Mutex
	state     AuthState
	user      *User
	lastErr   error
	epoch     int
	settled   map[int]bool
	onSettled []func(Settlement)
}

func NewAuthStateMachine(client *Client) *AuthStateMachine {
	return &AuthStateMachine{
		client:  client,
		state:   StateUnauthenticated,
		settled: make(map[int]bool),
	}
}

// OnSettled registers a subscriber for settlement notifications. Subscribers
// are invoked synchronously, in registration order, once per epoch.
func (m *AuthStateMachine) OnSettled(fn func(Settlement)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.onSettled = append(m.onSettled, fn)
	m.mu.Unlock()
}

// State returns the current state.
func (m *AuthStateMachine) State() AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// User returns the authenticated user, nil otherwise.
func (m *AuthStateMachine) User() *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

// Err returns the error recorded by the last failed transition.
func (m *AuthStateMachine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Start runs the application-start auth check: a silent refresh against the
// stored cookie, then a profile fetch. It is only legal from
// StateUnauthenticated on a fresh epoch; any repeat call is a structural
// no-op returning ErrInvalidTransition without touching the network.
func (m *AuthStateMachine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateUnauthenticated || m.settled[m.epoch] || m.epoch > 0 {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	m.epoch++
	epoch := m.epoch
	m.state = StateChecking
	m.mu.Unlock()

	if err := m.client.Refresh(ctx); err != nil {
		m.settle(epoch, Settlement{Authenticated: false}, nil)
		return nil
	}
	u, err := m.client.Profile(ctx)
	if err != nil {
		m.settle(epoch, Settlement{Authenticated: false}, err)
		return nil
	}
	m.settle(epoch, Settlement{Authenticated: true, User: u}, nil)
	return nil
}

// Login authenticates explicitly and moves straight to StateAuthenticated,
// skipping the silent-refresh step. Legal from unauthenticated rest only.
func (m *AuthStateMachine) Login(ctx context.Context, phone, password string) (*User, error) {
	m.mu.Lock()
	if m.state != StateUnauthenticated {
		m.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	m.epoch++
	epoch := m.epoch
	m.state = StateChecking
	m.mu.Unlock()

	u, err := m.client.Login(ctx, phone, password)
	if err != nil {
		m.settle(epoch, Settlement{Authenticated: false}, err)
		return nil, err
	}
	m.settle(epoch, Settlement{Authenticated: true, User: u}, nil)
	return u, nil
}

// Logout clears the cookie and in-memory token and settles unauthenticated.
// Legal only from StateAuthenticated.
func (m *AuthStateMachine) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateAuthenticated {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	m.epoch++
	epoch := m.epoch
	m.state = StateChecking
	m.mu.Unlock()

	err := m.client.Logout(ctx)
	m.settle(epoch, Settlement{Authenticated: false, Logout: true}, nil)
	return err
}

// settle applies the transition outcome and notifies subscribers exactly once
// per epoch. Outcomes from a superseded epoch are dropped, which is what lets
// a stale in-flight response arrive after a logout without corrupting state.
func (m *AuthStateMachine) settle(epoch int, s Settlement, cause error) {
	m.mu.Lock()
	if epoch != m.epoch || m.settled[epoch] {
		m.mu.Unlock()
		return
	}
	m.settled[epoch] = true
	s.Epoch = epoch
	m.lastErr = cause
	if s.Authenticated {
		m.state = StateAuthenticated
		m.user = s.User
	} else {
		m.state = StateUnauthenticated
		m.user = nil
	}
	subs := make([]func(Settlement), len(m.onSettled))
	copy(subs, m.onSettled)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

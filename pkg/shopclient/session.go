package shopclient

import (
	"sync"

	"github.com/google/uuid"
)

// SessionIdentity mints and persists the anonymous session identifier for
// unauthenticated visitors. The identifier lives until a login-triggered merge
// resets it (or the store is cleared manually); it is never tied to a user
// until that merge happens.
type SessionIdentity struct {
	mu    sync.Mutex
	store Storage
}

func NewSessionIdentity(store Storage) *SessionIdentity {
	return &SessionIdentity{store: store}
}

// ID returns the session identifier, minting and persisting one on first use.
func (s *SessionIdentity) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.store.Get(keySessionID); ok && id != "" {
		return id
	}
	id := uuid.NewString()
	_ = s.store.Set(keySessionID, id)
	return id
}

// Reset drops the current identifier; the next ID call mints a fresh one.
func (s *SessionIdentity) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.store.Delete(keySessionID)
}

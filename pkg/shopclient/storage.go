// Package shopclient is the storefront's client-side core: anonymous session
// identity, the guest cart, the auth state machine that sequences the silent
// auth check, and the reconciler that merges the guest cart on login.
package shopclient

import "sync"

// Storage keys. Only SessionIdentity, GuestCartStore and the CartReconciler
// may touch these; going through anything else risks divergent copies.
const (
	keySessionID = "storefront:sessionId"
	keyGuestCart = "storefront:guestCart"
)

// Storage abstracts the durable client-side key/value store the SDK persists
// into (browser storage, a state file, ...). Implementations must tolerate
// Get on missing keys by returning ok=false.
type Storage interface {
	Get(key string) (value string, ok bool)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryStorage is a Storage backed by a map. It is the default when the host
// application does not supply a durable store, and the one tests use.
type MemoryStorage struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{m: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *MemoryStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *MemoryStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

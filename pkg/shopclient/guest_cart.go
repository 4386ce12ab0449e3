package shopclient

import (
	"encoding/json"
	"sync"
)

// CartItem is one line item, both in the guest cart and on the wire.
type CartItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// GuestCartStore persists a guest's cart contents in client storage,
// independent of the server. The guest cart is owned exclusively by the client
// until the reconciler merges it.
type GuestCartStore struct {
	mu    sync.Mutex
	store Storage
}

func NewGuestCartStore(store Storage) *GuestCartStore {
	return &GuestCartStore{store: store}
}

// Add appends a line item, merging by product id when the product is already
// in the cart.
func (g *GuestCartStore) Add(productID string, quantity int) error {
	if productID == "" || quantity <= 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	items := g.load()
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity += quantity
			return g.save(items)
		}
	}
	items = append(items, CartItem{ProductID: productID, Quantity: quantity})
	return g.save(items)
}

// Items returns the current guest cart contents in insertion order.
func (g *GuestCartStore) Items() []CartItem {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.load()
}

// Clear empties the guest cart.
func (g *GuestCartStore) Clear() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.store.Delete(keyGuestCart)
}

func (g *GuestCartStore) load() []CartItem {
	raw, ok := g.store.Get(keyGuestCart)
	if !ok || raw == "" {
		return nil
	}
	var items []CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		// Corrupt blob; treat as empty rather than poisoning every caller.
		return nil
	}
	return items
}

func (g *GuestCartStore) save(items []CartItem) error {
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return g.store.Set(keyGuestCart, string(b))
}

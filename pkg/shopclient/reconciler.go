package shopclient

import (
	"context"
	"sync"
)

// CartReconciler performs the one-way, one-time transfer of the guest cart
// into the authenticated cart. It reacts to state machine settlements: the
// per-epoch guard in handle makes a double-fire for the same transition
// impossible rather than merely unlikely.
type CartReconciler struct {
	client  *Client
	session *SessionIdentity
	guest   *GuestCartStore

	mu        sync.Mutex
	lastEpoch int
	cart      *Cart
	lastErr   error
}

func NewCartReconciler(client *Client, session *SessionIdentity, guest *GuestCartStore) *CartReconciler {
	return &CartReconciler{client: client, session: session, guest: guest}
}

// Bind subscribes the reconciler to a state machine's settlements.
func (r *CartReconciler) Bind(sm *AuthStateMachine) {
	sm.OnSettled(func(s Settlement) {
		r.handle(context.Background(), s)
	})
}

// Cart returns the server cart from the last authenticated initialization.
func (r *CartReconciler) Cart() *Cart {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cart
}

// Err returns the error from the last reconciliation, if any.
func (r *CartReconciler) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *CartReconciler) handle(ctx context.Context, s Settlement) {
	r.mu.Lock()
	if s.Epoch <= r.lastEpoch {
		r.mu.Unlock()
		return
	}
	r.lastEpoch = s.Epoch
	r.mu.Unlock()

	if !s.Authenticated {
		// Guest mode. On logout the server cart stays server-side; nothing is
		// pulled back into guest storage.
		r.setResult(nil, nil)
		return
	}

	items := r.guest.Items()
	if len(items) == 0 {
		cart, err := r.client.Cart(ctx)
		r.setResult(cart, err)
		return
	}

	cart, err := r.client.MergeCart(ctx, r.session.ID(), items)
	if err != nil {
		// Guest cart is kept; a later login epoch can merge it.
		r.setResult(nil, err)
		return
	}
	_ = r.guest.Clear()
	r.session.Reset()
	r.setResult(cart, nil)
}

func (r *CartReconciler) setResult(cart *Cart, err error) {
	r.mu.Lock()
	r.cart = cart
	r.lastErr = err
	r.mu.Unlock()
}

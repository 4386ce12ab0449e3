package shopclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reconcilerFixture struct {
	api        *fakeAPI
	client     *Client
	store      *MemoryStorage
	session    *SessionIdentity
	guest      *GuestCartStore
	sm         *AuthStateMachine
	reconciler *CartReconciler
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()
	api := newFakeAPI()
	srv := api.server(t)
	client := NewClient(srv.URL)
	store := NewMemoryStorage()
	session := NewSessionIdentity(store)
	guest := NewGuestCartStore(store)
	sm := NewAuthStateMachine(client)
	r := NewCartReconciler(client, session, guest)
	r.Bind(sm)
	return &reconcilerFixture{api: api, client: client, store: store, session: session, guest: guest, sm: sm, reconciler: r}
}

func TestLoginMergesGuestCartOnce(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.guest.Add("p1", 2))
	require.NoError(t, f.guest.Add("p2", 1))
	require.NoError(t, f.guest.Add("p1", 1))
	sid := f.session.ID()

	_, err := f.sm.Login(ctx, "+989123456789", testPassword)
	require.NoError(t, err)

	_, _, _, merges := f.api.counts()
	assert.Equal(t, 1, merges)
	assert.Equal(t, []string{sid}, f.api.mergedSIDs())

	cart := f.reconciler.Cart()
	require.NotNil(t, cart)
	assert.ElementsMatch(t, []CartItem{{ProductID: "p1", Quantity: 3}, {ProductID: "p2", Quantity: 1}}, cart.Items)

	// Guest-side state is gone: cart emptied, session identity rotated.
	assert.Empty(t, f.guest.Items())
	assert.NotEqual(t, sid, f.session.ID())
}

func TestEmptyGuestCartSkipsMerge(t *testing.T) {
	f := newReconcilerFixture(t)
	f.api.serverCart = []CartItem{{ProductID: "p9", Quantity: 4}}

	_, err := f.sm.Login(context.Background(), "+989123456789", testPassword)
	require.NoError(t, err)

	_, _, cartFetches, merges := f.api.counts()
	assert.Equal(t, 0, merges)
	assert.Equal(t, 1, cartFetches)
	require.NotNil(t, f.reconciler.Cart())
	assert.Equal(t, []CartItem{{ProductID: "p9", Quantity: 4}}, f.reconciler.Cart().Items)
}

func TestMergeFailureKeepsGuestCart(t *testing.T) {
	f := newReconcilerFixture(t)
	f.api.setFailMerge(true)
	ctx := context.Background()

	require.NoError(t, f.guest.Add("p1", 2))
	sid := f.session.ID()

	_, err := f.sm.Login(ctx, "+989123456789", testPassword)
	require.NoError(t, err)

	// The transfer failed: nothing was discarded client-side.
	assert.Error(t, f.reconciler.Err())
	assert.Equal(t, []CartItem{{ProductID: "p1", Quantity: 2}}, f.guest.Items())
	assert.Equal(t, sid, f.session.ID())

	// A later login epoch retries the same merge.
	f.api.setFailMerge(false)
	require.NoError(t, f.sm.Logout(ctx))
	_, err = f.sm.Login(ctx, "+989123456789", testPassword)
	require.NoError(t, err)

	assert.NoError(t, f.reconciler.Err())
	assert.Empty(t, f.guest.Items())
	require.NotNil(t, f.reconciler.Cart())
	assert.Equal(t, []CartItem{{ProductID: "p1", Quantity: 2}}, f.reconciler.Cart().Items)
}

func TestLogoutDoesNotPullCartBack(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.guest.Add("p1", 2))
	_, err := f.sm.Login(ctx, "+989123456789", testPassword)
	require.NoError(t, err)
	require.NoError(t, f.sm.Logout(ctx))

	// Back in guest mode with an empty cart; the merged items stay server-side.
	assert.Nil(t, f.reconciler.Cart())
	assert.Empty(t, f.guest.Items())
	assert.Equal(t, []CartItem{{ProductID: "p1", Quantity: 2}}, f.api.cartSnapshot())
}

func TestStaleSettlementIsIgnored(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	_, err := f.sm.Login(ctx, "+989123456789", testPassword)
	require.NoError(t, err)
	cartBefore := f.reconciler.Cart()

	// A settlement from an epoch the reconciler has already passed is dropped.
	f.reconciler.handle(ctx, Settlement{Epoch: 1, Authenticated: false})
	assert.Equal(t, cartBefore, f.reconciler.Cart())
}

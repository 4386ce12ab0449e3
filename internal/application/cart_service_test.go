package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenshop/storefront/internal/domain/entity"
	"github.com/lumenshop/storefront/pkg/helpers"
)

// fakeCartRepo mirrors the quantity-adding upsert of the Postgres cart repository.
type fakeCartRepo struct {
	mu       sync.Mutex
	items    map[string][]entity.CartItem
	upserts  int
	failNext bool
}

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{items: make(map[string][]entity.CartItem)}
}

func (r *fakeCartRepo) GetByUserID(userID string) (*entity.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]entity.CartItem, len(r.items[userID]))
	copy(items, r.items[userID])
	return &entity.Cart{UserID: userID, Items: items}, nil
}

func (r *fakeCartRepo) UpsertItems(userID string, items []entity.CartItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext {
		r.failNext = false
		return errors.New("db unavailable")
	}
	r.upserts++
	cur := r.items[userID]
next:
	for _, in := range items {
		for i := range cur {
			if cur[i].ProductID == in.ProductID {
				cur[i].Quantity += in.Quantity
				continue next
			}
		}
		cur = append(cur, in)
	}
	r.items[userID] = cur
	return nil
}

func (r *fakeCartRepo) upsertCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upserts
}

func quantities(c *entity.Cart) map[string]int {
	out := make(map[string]int, len(c.Items))
	for _, it := range c.Items {
		out[it.ProductID] = it.Quantity
	}
	return out
}

func TestMergeDedupesWithinRequest(t *testing.T) {
	repo := newFakeCartRepo()
	_, rdb := testRedis(t)
	svc := NewCartService(repo, rdb, quietLogger())

	cart, err := svc.MergeGuestItems(context.Background(), "u-1", "sess-1", []entity.CartItem{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", Quantity: 2},
		{ProductID: "p1", Quantity: 3},
		{ProductID: "", Quantity: 9},
		{ProductID: "p3", Quantity: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 4, "p2": 2}, quantities(cart))
	assert.Equal(t, 1, repo.upsertCount())
}

func TestMergeReplayIsSuppressed(t *testing.T) {
	repo := newFakeCartRepo()
	_, rdb := testRedis(t)
	svc := NewCartService(repo, rdb, quietLogger())
	ctx := context.Background()
	items := []entity.CartItem{{ProductID: "p1", Quantity: 2}}

	first, err := svc.MergeGuestItems(ctx, "u-1", "sess-1", items)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 2}, quantities(first))

	// Retried merge for the same guest session changes nothing.
	replayed, err := svc.MergeGuestItems(ctx, "u-1", "sess-1", items)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 2}, quantities(replayed))
	assert.Equal(t, 1, repo.upsertCount())
}

func TestMergeFromDistinctSessionsAccumulates(t *testing.T) {
	repo := newFakeCartRepo()
	_, rdb := testRedis(t)
	svc := NewCartService(repo, rdb, quietLogger())
	ctx := context.Background()

	_, err := svc.MergeGuestItems(ctx, "u-1", "sess-1", []entity.CartItem{{ProductID: "p1", Quantity: 2}})
	require.NoError(t, err)
	cart, err := svc.MergeGuestItems(ctx, "u-1", "sess-2", []entity.CartItem{{ProductID: "p1", Quantity: 3}})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 5}, quantities(cart))
}

func TestMergeFailureAllowsRealRetry(t *testing.T) {
	repo := newFakeCartRepo()
	mr, rdb := testRedis(t)
	svc := NewCartService(repo, rdb, quietLogger())
	ctx := context.Background()
	items := []entity.CartItem{{ProductID: "p1", Quantity: 2}}

	repo.failNext = true
	_, err := svc.MergeGuestItems(ctx, "u-1", "sess-1", items)
	require.Error(t, err)
	// Marker was rolled back so the retry is not mistaken for a replay.
	assert.False(t, mr.Exists(helpers.KeyCartMerged("u-1", "sess-1")))

	cart, err := svc.MergeGuestItems(ctx, "u-1", "sess-1", items)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 2}, quantities(cart))
}

func TestMergeWithNoUsableItemsReadsCart(t *testing.T) {
	repo := newFakeCartRepo()
	mr, rdb := testRedis(t)
	svc := NewCartService(repo, rdb, quietLogger())

	cart, err := svc.MergeGuestItems(context.Background(), "u-1", "sess-1", []entity.CartItem{{ProductID: "", Quantity: 1}})
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, 0, repo.upsertCount())
	assert.False(t, mr.Exists(helpers.KeyCartMerged("u-1", "sess-1")))
}

package application

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/lumenshop/storefront/internal/domain/entity"
	"github.com/lumenshop/storefront/internal/domain/repository"
	"github.com/lumenshop/storefront/pkg/helpers"
)

// mergeMarkerTTL matches the refresh token lifetime: after that the guest
// session the marker refers to cannot resurface through a stored cookie.
const mergeMarkerTTL = 168 * time.Hour

// CartService owns the server side of guest-cart reconciliation.
//
// Idempotence policy: line items are deduplicated by product id within a merge
// (quantities summed), and a whole-merge replay is suppressed by a Redis
// marker keyed by (user, guest session). A retried merge for the same guest
// session returns the current cart without touching line items.
type CartService struct {
	Repo   repository.CartRepository
	Redis  *redis.Client
	Logger *logrus.Logger
}

func NewCartService(repo repository.CartRepository, rdb *redis.Client, logger *logrus.Logger) *CartService {
	return &CartService{Repo: repo, Redis: rdb, Logger: logger}
}

func (s *CartService) GetCart(ctx context.Context, userID string) (*entity.Cart, error) {
	return s.Repo.GetByUserID(userID)
}

// MergeGuestItems appends guest line items into the user's cart exactly once
// per guest session and returns the resulting cart.
func (s *CartService) MergeGuestItems(ctx context.Context, userID, sessionID string, items []entity.CartItem) (*entity.Cart, error) {
	items = dedupeByProduct(items)
	if len(items) == 0 {
		return s.Repo.GetByUserID(userID)
	}

	marker := helpers.KeyCartMerged(userID, sessionID)
	if s.Redis != nil && sessionID != "" {
		set, err := s.Redis.SetNX(ctx, marker, "1", mergeMarkerTTL).Result()
		if err != nil {
			return nil, err
		}
		if !set {
			// Replay of an already-applied merge.
			if s.Logger != nil {
				s.Logger.WithFields(logrus.Fields{"user_id": userID, "session_id": sessionID}).Info("duplicate cart merge suppressed")
			}
			return s.Repo.GetByUserID(userID)
		}
	}

	if err := s.Repo.UpsertItems(userID, items); err != nil {
		if s.Redis != nil && sessionID != "" {
			s.Redis.Del(ctx, marker) // best effort cleanup so a real retry can proceed
		}
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"user_id": userID, "items": len(items)}).Info("guest cart merged")
	}
	return s.Repo.GetByUserID(userID)
}

// dedupeByProduct collapses duplicate product ids, summing quantities, while
// preserving first-seen order.
func dedupeByProduct(items []entity.CartItem) []entity.CartItem {
	idx := make(map[string]int, len(items))
	out := make([]entity.CartItem, 0, len(items))
	for _, item := range items {
		if item.ProductID == "" || item.Quantity <= 0 {
			continue
		}
		if i, ok := idx[item.ProductID]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		idx[item.ProductID] = len(out)
		out = append(out, item)
	}
	return out
}

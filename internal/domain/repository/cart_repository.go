package repository

import "github.com/lumenshop/storefront/internal/domain/entity"

// CartRepository defines database operations for the server-side cart.
// UpsertItems must add quantities for line items that already exist for the
// user, keyed by product, so a single merge never produces duplicate rows.
type CartRepository interface {
	GetByUserID(userID string) (*entity.Cart, error)
	UpsertItems(userID string, items []entity.CartItem) error
}

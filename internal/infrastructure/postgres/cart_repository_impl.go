package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumenshop/storefront/internal/domain/entity"
	"github.com/lumenshop/storefront/internal/domain/repository"
)

type CartRepository struct {
	pool *pgxpool.Pool
}

func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

func (r *CartRepository) GetByUserID(userID string) (*entity.Cart, error) {
	ctx := context.Background()
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, quantity, updated_at
		FROM cart_items
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cart := &entity.Cart{UserID: userID}
	for rows.Next() {
		var item entity.CartItem
		var updated time.Time
		if err := rows.Scan(&item.ProductID, &item.Quantity, &updated); err != nil {
			return nil, err
		}
		if updated.After(cart.UpdatedAt) {
			cart.UpdatedAt = updated
		}
		cart.Items = append(cart.Items, item)
	}
	return cart, rows.Err()
}

// UpsertItems writes line items inside one transaction, adding quantities for
// products already present in the user's cart.
func (r *CartRepository) UpsertItems(userID string, items []entity.CartItem) error {
	if len(items) == 0 {
		return nil
	}
	ctx := context.Background()
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, item := range items {
			if _, err := tx.Exec(ctx, `
				INSERT INTO cart_items (user_id, product_id, quantity)
				VALUES ($1, $2, $3)
				ON CONFLICT (user_id, product_id)
				DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
			`, userID, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
}

var _ repository.CartRepository = (*CartRepository)(nil)

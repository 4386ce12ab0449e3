package entity

import "time"

// CartItem is a single line item in a user's server-side cart.
type CartItem struct {
	ProductID string
	Quantity  int
}

// Cart is the authenticated user's server-side cart. Once a guest cart has been
// merged into it, the server cart is the sole source of truth for that user.
type Cart struct {
	UserID    string
	Items     []CartItem
	UpdatedAt time.Time
}

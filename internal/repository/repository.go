package repository

import (
	"context"

	"github.com/soss111/maker-set-sub000/internal/domain"
)

// CartRepository defines the interface for cart persistence operations.
type CartRepository interface {
	// Get retrieves a cart by its user ID. Returns a not-found error when no
	// cart exists or the stored payload is unreadable.
	Get(ctx context.Context, userID string) (*domain.Cart, error)

	// Save persists a cart, overwriting any existing cart for the user.
	// Last writer wins.
	Save(ctx context.Context, cart *domain.Cart) error

	// Delete removes a cart from the store by the user ID.
	Delete(ctx context.Context, userID string) error
}

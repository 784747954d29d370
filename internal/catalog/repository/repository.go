package repository

import (
	"context"
	"errors"

	"github.com/jeseias/djezyas/internal/catalog/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrPriceNotFound   = errors.New("no active price for product")
)

type ProductRepository interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) ([]*domain.Product, error)
	// GetActivePrice returns the active default price for a product.
	GetActivePrice(ctx context.Context, productID string) (*domain.Price, error)
}

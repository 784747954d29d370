package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jeseias/djezyas/internal/apperr"
	"github.com/jeseias/djezyas/internal/cart/cache"
	"github.com/jeseias/djezyas/internal/cart/domain"
	"github.com/jeseias/djezyas/internal/cart/repository"
	catalogdomain "github.com/jeseias/djezyas/internal/catalog/domain"
	catalogrepo "github.com/jeseias/djezyas/internal/catalog/repository"
)

const maxLineQuantity = 100

// productResolver is the slice of the catalog the cart needs.
type productResolver interface {
	GetProduct(ctx context.Context, id string) (*catalogdomain.Product, error)
	GetActivePrice(ctx context.Context, productID string) (*catalogdomain.Price, error)
}

type CartService struct {
	repo     repository.CartRepository
	cache    cache.CartCache
	products productResolver
	log      *zap.Logger
	sfg      singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, products productResolver, log *zap.Logger) *CartService {
	return &CartService{
		repo:     repo,
		cache:    cache,
		products: products,
		log:      log,
	}
}

// GetCart returns the user's cart, or an empty one if none exists yet.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {

		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil // cart is in cache
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("cache get error", zap.Error(err)) // log cache error but continue
		}

		cart, errGet := s.repo.GetCart(ctx, userID)
		if errors.Is(errGet, repository.ErrCartNotFound) {
			return domain.NewCart(userID), nil
		}
		if errGet != nil {
			return nil, errGet
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if errSet := s.cache.Set(ctx, userID, cart); errSet != nil {
				s.log.Warn("cache set error", zap.Error(errSet))
			}
		}()

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddItem merges the quantity into the user's cart, creating the cart lazily.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 || quantity > maxLineQuantity {
		return nil, apperr.Invalid("invalid_quantity", "quantity must be between 1 and 100")
	}

	if err := s.validateProduct(ctx, productID); err != nil {
		return nil, err
	}

	cart, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart.AddItem(productID, quantity)
	if merged, _ := cart.Quantity(productID); merged > maxLineQuantity {
		return nil, apperr.Invalid("invalid_quantity", "line quantity cannot exceed 100")
	}

	if err := s.repo.UpsertCart(ctx, cart); err != nil {
		return nil, err
	}

	s.invalidateCache(userID)
	return cart, nil
}

// UpdateItem sets the line quantity; zero removes the line entirely.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if quantity < 0 || quantity > maxLineQuantity {
		return nil, apperr.Invalid("invalid_quantity", "quantity must be between 0 and 100")
	}

	cart, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if quantity == 0 {
		cart.RemoveItem(productID)
	} else if err := cart.UpdateItem(productID, quantity); err != nil {
		if errors.Is(err, domain.ErrItemNotFound) {
			return nil, apperr.NotFound("item_not_found", "product is not in the cart")
		}
		return nil, err
	}

	if err := s.repo.UpsertCart(ctx, cart); err != nil {
		return nil, err
	}

	s.invalidateCache(userID)
	return cart, nil
}

// RemoveItem is idempotent: removing an absent product succeeds.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	cart, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart.RemoveItem(productID)

	if err := s.repo.UpsertCart(ctx, cart); err != nil {
		return nil, err
	}

	s.invalidateCache(userID)
	return cart, nil
}

// ClearCart empties the cart; the record persists.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	err := s.repo.ClearCart(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return err
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartService) validateProduct(ctx context.Context, productID string) error {
	product, err := s.products.GetProduct(ctx, productID)
	if errors.Is(err, catalogrepo.ErrProductNotFound) {
		return apperr.NotFound("product_not_found", "product does not exist")
	}
	if err != nil {
		return err
	}

	if !product.IsActive() {
		return apperr.Invalid("product_not_active", "product is not available for sale")
	}

	if _, err := s.products.GetActivePrice(ctx, productID); err != nil {
		if errors.Is(err, catalogrepo.ErrPriceNotFound) {
			return apperr.Invalid("product_not_priced", "product has no active price")
		}
		return err
	}

	return nil
}

func (s *CartService) loadOrCreate(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return domain.NewCart(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *CartService) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn("cache invalidate error", zap.Error(err))
	}
}

package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jeseias/djezyas/internal/apperr"
	"github.com/jeseias/djezyas/internal/cart/cache"
	"github.com/jeseias/djezyas/internal/cart/domain"
	"github.com/jeseias/djezyas/internal/cart/repository"
	catalogdomain "github.com/jeseias/djezyas/internal/catalog/domain"
	catalogrepo "github.com/jeseias/djezyas/internal/catalog/repository"
)

type mockRepository struct {
	m    sync.RWMutex
	cart *domain.Cart
	err  error
}

func (m *mockRepository) GetCart(context.Context, string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return nil, repository.ErrCartNotFound
	}
	return m.cart, nil
}

func (m *mockRepository) UpsertCart(_ context.Context, c *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.cart = c
	return nil
}

func (m *mockRepository) ClearCart(_ context.Context, _ string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.cart == nil {
		return repository.ErrCartNotFound
	}
	m.cart.Items = []domain.CartItem{}
	return nil
}

type mockCache struct {
	m    sync.RWMutex
	cart *domain.Cart
}

func (m *mockCache) Get(context.Context, string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.cart == nil {
		return nil, cache.ErrCacheMiss
	}
	return m.cart, nil
}

func (m *mockCache) Set(_ context.Context, _ string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = cart
	return nil
}

func (m *mockCache) Delete(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = nil
	return nil
}

type mockProducts struct {
	products map[string]*catalogdomain.Product
	prices   map[string]*catalogdomain.Price
}

func (m *mockProducts) GetProduct(_ context.Context, id string) (*catalogdomain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, catalogrepo.ErrProductNotFound
	}
	return p, nil
}

func (m *mockProducts) GetActivePrice(_ context.Context, productID string) (*catalogdomain.Price, error) {
	p, ok := m.prices[productID]
	if !ok {
		return nil, catalogrepo.ErrPriceNotFound
	}
	return p, nil
}

func activeProduct(id string) *catalogdomain.Product {
	return &catalogdomain.Product{ID: id, OrganizationID: "org-1", Name: id, Status: catalogdomain.ProductStatusActive}
}

func newTestService(repo *mockRepository, products *mockProducts) *CartService {
	return NewCartService(repo, &mockCache{}, products, zap.NewNop())
}

func defaultProducts() *mockProducts {
	return &mockProducts{
		products: map[string]*catalogdomain.Product{
			"prod-1": activeProduct("prod-1"),
		},
		prices: map[string]*catalogdomain.Price{
			"prod-1": {ID: "price-1", ProductID: "prod-1", UnitAmount: 500, Active: true},
		},
	}
}

func TestAddItem_CreatesCartLazily(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestService(repo, defaultProducts())

	cart, err := svc.AddItem(context.Background(), "user-1", "prod-1", 2)

	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.NotNil(t, repo.cart)
}

func TestAddItem_MergesQuantities(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestService(repo, defaultProducts())

	_, err := svc.AddItem(context.Background(), "user-1", "prod-1", 2)
	require.NoError(t, err)
	cart, err := svc.AddItem(context.Background(), "user-1", "prod-1", 3)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
}

func TestAddItem_RejectsInvalidQuantity(t *testing.T) {
	svc := newTestService(&mockRepository{}, defaultProducts())

	for _, qty := range []int{0, -1, 101} {
		_, err := svc.AddItem(context.Background(), "user-1", "prod-1", qty)
		require.Error(t, err)
		appErr := apperr.From(err)
		require.NotNil(t, appErr)
		assert.Equal(t, "invalid_quantity", appErr.Code)
	}
}

func TestAddItem_RejectsMergeOverLimit(t *testing.T) {
	svc := newTestService(&mockRepository{}, defaultProducts())

	_, err := svc.AddItem(context.Background(), "user-1", "prod-1", 60)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), "user-1", "prod-1", 50)

	require.Error(t, err)
	assert.Equal(t, "invalid_quantity", apperr.From(err).Code)
}

func TestAddItem_RejectsUnknownProduct(t *testing.T) {
	svc := newTestService(&mockRepository{}, defaultProducts())

	_, err := svc.AddItem(context.Background(), "user-1", "missing", 1)

	require.Error(t, err)
	assert.Equal(t, "product_not_found", apperr.From(err).Code)
}

func TestAddItem_RejectsInactiveProduct(t *testing.T) {
	products := defaultProducts()
	products.products["prod-1"].Status = catalogdomain.ProductStatusArchived
	svc := newTestService(&mockRepository{}, products)

	_, err := svc.AddItem(context.Background(), "user-1", "prod-1", 1)

	require.Error(t, err)
	assert.Equal(t, "product_not_active", apperr.From(err).Code)
}

func TestAddItem_RejectsUnpricedProduct(t *testing.T) {
	products := defaultProducts()
	delete(products.prices, "prod-1")
	svc := newTestService(&mockRepository{}, products)

	_, err := svc.AddItem(context.Background(), "user-1", "prod-1", 1)

	require.Error(t, err)
	assert.Equal(t, "product_not_priced", apperr.From(err).Code)
}

func TestUpdateItem_ZeroRemovesLine(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestService(repo, defaultProducts())

	_, err := svc.AddItem(context.Background(), "user-1", "prod-1", 2)
	require.NoError(t, err)

	cart, err := svc.UpdateItem(context.Background(), "user-1", "prod-1", 0)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestUpdateItem_NotInCart(t *testing.T) {
	svc := newTestService(&mockRepository{}, defaultProducts())

	_, err := svc.UpdateItem(context.Background(), "user-1", "prod-1", 2)

	require.Error(t, err)
	assert.Equal(t, "item_not_found", apperr.From(err).Code)
}

func TestRemoveItem_AbsentProductIsNoop(t *testing.T) {
	svc := newTestService(&mockRepository{}, defaultProducts())

	cart, err := svc.RemoveItem(context.Background(), "user-1", "prod-1")

	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestGetCart_ReturnsEmptyCartWhenMissing(t *testing.T) {
	svc := newTestService(&mockRepository{}, defaultProducts())

	cart, err := svc.GetCart(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, "user-1", cart.UserID)
	assert.True(t, cart.IsEmpty())
}

func TestClearCart_MissingCartIsNoop(t *testing.T) {
	svc := newTestService(&mockRepository{}, defaultProducts())

	err := svc.ClearCart(context.Background(), "user-1")

	assert.NoError(t, err)
}

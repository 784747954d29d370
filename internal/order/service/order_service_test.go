package service

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jeseias/djezyas/internal/apperr"
	cartdomain "github.com/jeseias/djezyas/internal/cart/domain"
	catalogdomain "github.com/jeseias/djezyas/internal/catalog/domain"
	catalogrepo "github.com/jeseias/djezyas/internal/catalog/repository"
	"github.com/jeseias/djezyas/internal/order/domain"
	"github.com/jeseias/djezyas/internal/order/publisher"
	"github.com/jeseias/djezyas/internal/order/repository"
	orgdomain "github.com/jeseias/djezyas/internal/org/domain"
	userdomain "github.com/jeseias/djezyas/internal/user/domain"
	userrepo "github.com/jeseias/djezyas/internal/user/repository"
)

type mockOrderRepo struct {
	m      sync.RWMutex
	orders map[uuid.UUID]*domain.Order
	err    error
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: map[uuid.UUID]*domain.Order{}}
}

func (r *mockOrderRepo) Create(_ context.Context, order *domain.Order) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	r.orders[order.ID] = order
	return nil
}

func (r *mockOrderRepo) Update(_ context.Context, order *domain.Order) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.orders[order.ID]; !ok {
		return repository.ErrOrderNotFound
	}
	r.orders[order.ID] = order
	return nil
}

func (r *mockOrderRepo) UpdateMany(ctx context.Context, orders []*domain.Order) error {
	for _, order := range orders {
		if err := r.Update(ctx, order); err != nil {
			return err
		}
	}
	return nil
}

func (r *mockOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

func (r *mockOrderRepo) GetManyByIDs(_ context.Context, ids []uuid.UUID) ([]*domain.Order, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	var orders []*domain.Order
	for _, id := range ids {
		if order, ok := r.orders[id]; ok {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

func (r *mockOrderRepo) ListByUserID(_ context.Context, userID string, _ repository.Filters) ([]*domain.Order, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	var orders []*domain.Order
	for _, order := range r.orders {
		if order.UserID == userID {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

func (r *mockOrderRepo) ListByOrganizationID(_ context.Context, orgID string, _ repository.Filters) ([]*domain.Order, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	var orders []*domain.Order
	for _, order := range r.orders {
		if order.OrganizationID == orgID {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

func (r *mockOrderRepo) ListByTransactionID(_ context.Context, transactionID string) ([]*domain.Order, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	var orders []*domain.Order
	for _, order := range r.orders {
		if order.TransactionID == transactionID && transactionID != "" {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

func (r *mockOrderRepo) ListByPaymentIntentID(_ context.Context, intentID string) ([]*domain.Order, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	var orders []*domain.Order
	for _, order := range r.orders {
		for _, id := range order.PaymentIntentIDs {
			if id == intentID {
				orders = append(orders, order)
				break
			}
		}
	}
	return orders, nil
}

type mockTx struct{}

func (mockTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockCartReader struct {
	cart *cartdomain.Cart
	err  error
}

func (m *mockCartReader) GetCart(context.Context, string) (*cartdomain.Cart, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.cart, nil
}

type mockCatalog struct {
	products map[string]*catalogdomain.Product
	prices   map[string]*catalogdomain.Price
}

func (m *mockCatalog) GetProductsByIDs(_ context.Context, ids []string) ([]*catalogdomain.Product, error) {
	var products []*catalogdomain.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

func (m *mockCatalog) GetActivePrice(_ context.Context, productID string) (*catalogdomain.Price, error) {
	p, ok := m.prices[productID]
	if !ok {
		return nil, catalogrepo.ErrPriceNotFound
	}
	return p, nil
}

type mockOrgs struct {
	orgs map[string]*orgdomain.Organization
}

func (m *mockOrgs) GetOrganizationsByIDs(_ context.Context, ids []string) ([]*orgdomain.Organization, error) {
	var orgs []*orgdomain.Organization
	for _, id := range ids {
		if org, ok := m.orgs[id]; ok {
			orgs = append(orgs, org)
		}
	}
	return orgs, nil
}

type mockUsers struct {
	users map[string]*userdomain.User
}

func (m *mockUsers) GetUser(_ context.Context, id string) (*userdomain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, userrepo.ErrUserNotFound
	}
	return u, nil
}

type mockPublisher struct {
	m      sync.Mutex
	events []publisher.OrdersCreatedEvent
	err    error
}

func (m *mockPublisher) PublishOrdersCreated(_ context.Context, event publisher.OrdersCreatedEvent) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

type fixture struct {
	svc       *OrderService
	repo      *mockOrderRepo
	carts     *mockCartReader
	catalog   *mockCatalog
	orgs      *mockOrgs
	users     *mockUsers
	published *mockPublisher
}

// newFixture wires the happy-path scenario: user1's cart holds productA
// (org1, 500 cents, qty 2) and productB (org2, 1000 cents, qty 1).
func newFixture() *fixture {
	f := &fixture{
		repo: newMockOrderRepo(),
		carts: &mockCartReader{cart: &cartdomain.Cart{
			UserID: "user-1",
			Items: []cartdomain.CartItem{
				{ProductID: "prod-a", Quantity: 2},
				{ProductID: "prod-b", Quantity: 1},
			},
		}},
		catalog: &mockCatalog{
			products: map[string]*catalogdomain.Product{
				"prod-a": {ID: "prod-a", OrganizationID: "org-1", Name: "Product A", Status: catalogdomain.ProductStatusActive},
				"prod-b": {ID: "prod-b", OrganizationID: "org-2", Name: "Product B", Status: catalogdomain.ProductStatusActive},
			},
			prices: map[string]*catalogdomain.Price{
				"prod-a": {ID: "price-a", ProductID: "prod-a", Currency: "USD", UnitAmount: 500, Active: true},
				"prod-b": {ID: "price-b", ProductID: "prod-b", Currency: "USD", UnitAmount: 1000, Active: true},
			},
		},
		orgs: &mockOrgs{orgs: map[string]*orgdomain.Organization{
			"org-1": {ID: "org-1", Status: orgdomain.OrganizationStatusActive},
			"org-2": {ID: "org-2", Status: orgdomain.OrganizationStatusActive},
		}},
		users: &mockUsers{users: map[string]*userdomain.User{
			"user-1": {ID: "user-1", Status: userdomain.UserStatusActive, EmailVerified: true},
		}},
		published: &mockPublisher{},
	}
	f.svc = NewOrderService(f.repo, mockTx{}, f.carts, f.catalog, f.orgs, f.users, f.published, zap.NewNop())
	return f
}

func TestCreateOrdersFromCart_SplitsPerOrganization(t *testing.T) {
	f := newFixture()

	orders, err := f.svc.CreateOrdersFromCart(context.Background(), "user-1", nil)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	totals := map[string]int64{}
	for _, order := range orders {
		totals[order.OrganizationID] = order.TotalAmount
		assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
		assert.Equal(t, domain.FulfillmentStatusNew, order.FulfillmentStatus)
		var sum int64
		for _, item := range order.Items {
			assert.Equal(t, int64(item.Quantity)*item.UnitAmount, item.Subtotal)
			sum += item.Subtotal
		}
		assert.Equal(t, sum, order.TotalAmount)
	}
	assert.Equal(t, int64(1000), totals["org-1"]) // 2 x 500
	assert.Equal(t, int64(1000), totals["org-2"]) // 1 x 1000
}

func TestCreateOrdersFromCart_PublishesEvent(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateOrdersFromCart(context.Background(), "user-1", nil)
	require.NoError(t, err)

	require.Len(t, f.published.events, 1)
	assert.Equal(t, "user-1", f.published.events[0].UserID)
	assert.Len(t, f.published.events[0].OrderIDs, 2)
}

func TestCreateOrdersFromCart_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.published.err = assert.AnError

	orders, err := f.svc.CreateOrdersFromCart(context.Background(), "user-1", nil)

	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestCreateOrdersFromCart_SubsetFilter(t *testing.T) {
	f := newFixture()

	orders, err := f.svc.CreateOrdersFromCart(context.Background(), "user-1", []string{"prod-a"})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "org-1", orders[0].OrganizationID)
}

func TestCreateOrdersFromCart_EmptyCart(t *testing.T) {
	f := newFixture()
	f.carts.cart = &cartdomain.Cart{UserID: "user-1"}

	_, err := f.svc.CreateOrdersFromCart(context.Background(), "user-1", nil)

	require.Error(t, err)
	assert.Equal(t, "empty_cart", apperr.From(err).Code)
}

func TestCreateOrdersFromCart_MissingProduct(t *testing.T) {
	f := newFixture()
	delete(f.catalog.products, "prod-b")

	_, err := f.svc.CreateOrdersFromCart(context.Background(), "user-1", nil)

	require.Error(t, err)
	assert.Equal(t, "product_not_found", apperr.From(err).Code)
}

func TestCreateOrdersFromCart_InactiveOrganization(t *testing.T) {
	f := newFixture()
	f.orgs.orgs["org-2"].Status = orgdomain.OrganizationStatusDisabled

	_, err := f.svc.CreateOrdersFromCart(context.Background(), "user-1", nil)

	require.Error(t, err)
	assert.Equal(t, "organization_not_active", apperr.From(err).Code)
}

func TestCreateOrdersFromCart_UnpricedProduct(t *testing.T) {
	f := newFixture()
	delete(f.catalog.prices, "prod-a")

	_, err := f.svc.CreateOrdersFromCart(context.Background(), "user-1", nil)

	require.Error(t, err)
	assert.Equal(t, "product_not_priced", apperr.From(err).Code)
}

func TestCreateOrdersFromCart_UnverifiedUser(t *testing.T) {
	f := newFixture()
	f.users.users["user-1"].EmailVerified = false

	_, err := f.svc.CreateOrdersFromCart(context.Background(), "user-1", nil)

	require.Error(t, err)
	appErr := apperr.From(err)
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusForbidden, appErr.Status)
}

func TestCreateOrder_DirectItems(t *testing.T) {
	f := newFixture()

	order, err := f.svc.CreateOrder(context.Background(), "user-1", "org-1", []CreateOrderItem{
		{ProductID: "prod-a", Quantity: 3},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1500), order.TotalAmount)
	assert.Equal(t, "org-1", order.OrganizationID)
}

func TestCreateOrder_OrganizationMismatch(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateOrder(context.Background(), "user-1", "org-1", []CreateOrderItem{
		{ProductID: "prod-b", Quantity: 1},
	})

	require.Error(t, err)
	assert.Equal(t, "organization_mismatch", apperr.From(err).Code)
}

func TestCancelOrder_Guards(t *testing.T) {
	f := newFixture()
	orders, err := f.svc.CreateOrdersFromCart(context.Background(), "user-1", nil)
	require.NoError(t, err)
	target := orders[0]

	t.Run("cancels a fresh order", func(t *testing.T) {
		cancelled, err := f.svc.CancelOrder(context.Background(), "user-1", target.ID, "no longer needed")
		require.NoError(t, err)
		assert.Equal(t, domain.FulfillmentStatusCancelled, cancelled.FulfillmentStatus)
	})

	t.Run("rejects in-delivery order", func(t *testing.T) {
		other := orders[1]
		other.FulfillmentStatus = domain.FulfillmentStatusInDelivery
		_, err := f.svc.CancelOrder(context.Background(), "user-1", other.ID, "")
		require.Error(t, err)
		assert.Equal(t, "invalid_status", apperr.From(err).Code)
	})

	t.Run("rejects foreign order", func(t *testing.T) {
		_, err := f.svc.CancelOrder(context.Background(), "user-2", target.ID, "")
		require.Error(t, err)
		assert.Equal(t, http.StatusForbidden, apperr.From(err).Status)
	})
}

func TestCancelOrder_RejectsPaidOrder(t *testing.T) {
	f := newFixture()
	orders, err := f.svc.CreateOrdersFromCart(context.Background(), "user-1", nil)
	require.NoError(t, err)

	orders[0].MarkAsPaid("txn-1")

	_, err = f.svc.CancelOrder(context.Background(), "user-1", orders[0].ID, "")
	require.Error(t, err)
	assert.Equal(t, "invalid_status", apperr.From(err).Code)
}

func TestMoveOrder_IllegalTransition(t *testing.T) {
	f := newFixture()
	orders, err := f.svc.CreateOrdersFromCart(context.Background(), "user-1", nil)
	require.NoError(t, err)

	_, err = f.svc.MoveOrder(context.Background(), "user-1", orders[0].ID, domain.FulfillmentStatusDelivered)

	require.Error(t, err)
	assert.Equal(t, "invalid_status", apperr.From(err).Code)
}

func TestMoveOrder_RejectsForeignOrder(t *testing.T) {
	f := newFixture()
	orders, err := f.svc.CreateOrdersFromCart(context.Background(), "user-1", nil)
	require.NoError(t, err)

	_, err = f.svc.MoveOrder(context.Background(), "user-2", orders[0].ID, domain.FulfillmentStatusPicking)

	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, apperr.From(err).Status)
	assert.Equal(t, domain.FulfillmentStatusNew, orders[0].FulfillmentStatus)
}

func TestExpireOrder_NewOrderExpires(t *testing.T) {
	f := newFixture()
	orders, err := f.svc.CreateOrdersFromCart(context.Background(), "user-1", nil)
	require.NoError(t, err)

	expired, err := f.svc.ExpireOrder(context.Background(), "user-1", orders[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FulfillmentStatusExpired, expired.FulfillmentStatus)
	assert.NotNil(t, expired.ExpiredAt)
}

func TestExpireOrder_RejectsDeliveredOrder(t *testing.T) {
	f := newFixture()
	orders, err := f.svc.CreateOrdersFromCart(context.Background(), "user-1", nil)
	require.NoError(t, err)

	delivered := orders[0]
	delivered.MarkAsPaid("txn-1")
	delivered.FulfillmentStatus = domain.FulfillmentStatusDelivered
	require.NoError(t, f.repo.Update(context.Background(), delivered))

	_, err = f.svc.ExpireOrder(context.Background(), "user-1", delivered.ID)

	require.Error(t, err)
	assert.Equal(t, "invalid_status", apperr.From(err).Code)
	assert.Equal(t, domain.FulfillmentStatusDelivered, delivered.FulfillmentStatus)
}

func TestExpireOrder_RejectsForeignOrder(t *testing.T) {
	f := newFixture()
	orders, err := f.svc.CreateOrdersFromCart(context.Background(), "user-1", nil)
	require.NoError(t, err)

	_, err = f.svc.ExpireOrder(context.Background(), "user-2", orders[0].ID)

	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, apperr.From(err).Status)
	assert.Equal(t, domain.FulfillmentStatusNew, orders[0].FulfillmentStatus)
}

func TestMarkPaidByTransactionID_OnlyFlipsPending(t *testing.T) {
	f := newFixture()
	orders, err := f.svc.CreateOrdersFromCart(context.Background(), "user-1", nil)
	require.NoError(t, err)

	for _, order := range orders {
		order.TransactionID = "txn-42"
		require.NoError(t, f.repo.Update(context.Background(), order))
	}

	updated, err := f.svc.MarkPaidByTransactionID(context.Background(), "txn-42")
	require.NoError(t, err)
	assert.Len(t, updated, 2)

	// second run is a no-op: everything is already paid
	updated, err = f.svc.MarkPaidByTransactionID(context.Background(), "txn-42")
	require.NoError(t, err)
	assert.Empty(t, updated)
}

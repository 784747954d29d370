package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
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

// Narrow views over the collaborating areas; keeps the use case mockable.

type cartReader interface {
	GetCart(ctx context.Context, userID string) (*cartdomain.Cart, error)
}

type productResolver interface {
	GetProductsByIDs(ctx context.Context, ids []string) ([]*catalogdomain.Product, error)
	GetActivePrice(ctx context.Context, productID string) (*catalogdomain.Price, error)
}

type orgResolver interface {
	GetOrganizationsByIDs(ctx context.Context, ids []string) ([]*orgdomain.Organization, error)
}

type userResolver interface {
	GetUser(ctx context.Context, id string) (*userdomain.User, error)
}

type eventPublisher interface {
	PublishOrdersCreated(ctx context.Context, event publisher.OrdersCreatedEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type OrderService struct {
	repo     repository.OrderRepository
	tx       txRunner
	carts    cartReader
	products productResolver
	orgs     orgResolver
	users    userResolver
	events   eventPublisher
	log      *zap.Logger
}

func NewOrderService(
	repo repository.OrderRepository,
	tx txRunner,
	carts cartReader,
	products productResolver,
	orgs orgResolver,
	users userResolver,
	events eventPublisher,
	log *zap.Logger,
) *OrderService {
	return &OrderService{
		repo:     repo,
		tx:       tx,
		carts:    carts,
		products: products,
		orgs:     orgs,
		users:    users,
		events:   events,
		log:      log,
	}
}

// CreateOrdersFromCart turns the user's cart into one order per organization.
// onlyProductIDs optionally narrows the cart to a subset. The cart itself is
// not cleared here: the orders.created event drives clearing asynchronously.
func (s *OrderService) CreateOrdersFromCart(ctx context.Context, userID string, onlyProductIDs []string) ([]*domain.Order, error) {
	if err := s.validateUser(ctx, userID); err != nil {
		return nil, err
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := filterItems(cart.Items, onlyProductIDs)
	if len(items) == 0 {
		return nil, apperr.Invalid("empty_cart", "cart has no items to order")
	}

	productIDs := make([]string, len(items))
	for i, item := range items {
		productIDs[i] = item.ProductID
	}

	products, err := s.products.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	if len(products) != len(productIDs) {
		return nil, apperr.NotFound("product_not_found", "one or more cart products no longer exist")
	}

	groups, err := SplitByOrganization(items, products)
	if err != nil {
		return nil, apperr.Wrap(http.StatusBadRequest, "split_failed", "could not split cart by organization", err)
	}

	if err := s.validateOrganizations(ctx, groups); err != nil {
		return nil, err
	}

	prices, err := s.resolvePrices(ctx, products)
	if err != nil {
		return nil, err
	}

	productsByID := make(map[string]*catalogdomain.Product, len(products))
	for _, p := range products {
		productsByID[p.ID] = p
	}

	var orders []*domain.Order
	for orgID, group := range groups {
		orderItems := make([]domain.OrderItem, len(group))
		currency := ""
		for i, item := range group {
			price := prices[item.ProductID]
			orderItems[i] = domain.OrderItem{
				PriceID:    price.ID,
				ProductID:  item.ProductID,
				Name:       productsByID[item.ProductID].Name,
				Quantity:   item.Quantity,
				UnitAmount: price.UnitAmount,
			}
			if currency == "" {
				currency = price.Currency
			}
		}
		orders = append(orders, domain.NewOrder(userID, orgID, currency, orderItems))
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		for _, order := range orders {
			if err := s.repo.Create(ctx, order); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishOrdersCreated(ctx, userID, orders, productIDs)

	return orders, nil
}

// CreateOrder is the direct item-list variant: one order for one organization.
type CreateOrderItem struct {
	ProductID string
	Quantity  int
}

func (s *OrderService) CreateOrder(ctx context.Context, userID, organizationID string, items []CreateOrderItem) (*domain.Order, error) {
	if err := s.validateUser(ctx, userID); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.Invalid("empty_order", "order needs at least one item")
	}

	productIDs := make([]string, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, apperr.Invalid("invalid_quantity", "quantity must be positive")
		}
		productIDs[i] = item.ProductID
	}

	products, err := s.products.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	if len(products) != len(productIDs) {
		return nil, apperr.NotFound("product_not_found", "one or more products do not exist")
	}

	for _, p := range products {
		if p.OrganizationID != organizationID {
			return nil, apperr.Invalid("organization_mismatch", "all items must belong to the same organization")
		}
	}

	prices, err := s.resolvePrices(ctx, products)
	if err != nil {
		return nil, err
	}

	productsByID := make(map[string]*catalogdomain.Product, len(products))
	for _, p := range products {
		productsByID[p.ID] = p
	}

	orderItems := make([]domain.OrderItem, len(items))
	currency := ""
	for i, item := range items {
		price := prices[item.ProductID]
		orderItems[i] = domain.OrderItem{
			PriceID:    price.ID,
			ProductID:  item.ProductID,
			Name:       productsByID[item.ProductID].Name,
			Quantity:   item.Quantity,
			UnitAmount: price.UnitAmount,
		}
		if currency == "" {
			currency = price.Currency
		}
	}

	order := domain.NewOrder(userID, organizationID, currency, orderItems)
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, err
	}

	s.publishOrdersCreated(ctx, userID, []*domain.Order{order}, productIDs)

	return order, nil
}

// CancelOrder rejects anything past the freshly-created state, and anything
// already paid.
func (s *OrderService) CancelOrder(ctx context.Context, userID string, orderID uuid.UUID, reason string) (*domain.Order, error) {
	order, err := s.getOwnedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	if order.FulfillmentStatus != domain.FulfillmentStatusNew {
		return nil, apperr.Conflict("invalid_status", "only unfulfilled orders can be cancelled")
	}
	if order.PaymentStatus == domain.PaymentStatusPaid {
		return nil, apperr.Conflict("invalid_status", "paid orders cannot be cancelled")
	}

	order.Cancel(reason)
	if err := s.repo.Update(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) ExpireOrder(ctx context.Context, userID string, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.getOwnedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	if !domain.CanTransitionTo(order.FulfillmentStatus, domain.FulfillmentStatusExpired) {
		return nil, apperr.Conflict("invalid_status", "order cannot expire from its current status")
	}

	order.Expire()
	if err := s.repo.Update(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// MoveOrder advances the fulfillment status through the transition table.
func (s *OrderService) MoveOrder(ctx context.Context, userID string, orderID uuid.UUID, target domain.FulfillmentStatus) (*domain.Order, error) {
	order, err := s.getOwnedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	if err := order.UpdateFulfillmentStatus(target); err != nil {
		return nil, apperr.Wrap(http.StatusConflict, "invalid_status", "illegal fulfillment transition", err)
	}

	if err := s.repo.Update(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// MarkPaidByIDs flips each payment-pending order to paid. Orders already
// paid are skipped rather than failed: retries must stay idempotent.
func (s *OrderService) MarkPaidByIDs(ctx context.Context, orderIDs []uuid.UUID, transactionID string) ([]*domain.Order, error) {
	orders, err := s.repo.GetManyByIDs(ctx, orderIDs)
	if err != nil {
		return nil, err
	}
	return s.markPaid(ctx, orders, transactionID)
}

func (s *OrderService) MarkPaidByTransactionID(ctx context.Context, transactionID string) ([]*domain.Order, error) {
	orders, err := s.repo.ListByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return s.markPaid(ctx, orders, transactionID)
}

func (s *OrderService) MarkPaidByPaymentIntentID(ctx context.Context, paymentIntentID string) ([]*domain.Order, error) {
	orders, err := s.repo.ListByPaymentIntentID(ctx, paymentIntentID)
	if err != nil {
		return nil, err
	}
	return s.markPaid(ctx, orders, "")
}

func (s *OrderService) GetOrder(ctx context.Context, userID string, orderID uuid.UUID) (*domain.Order, error) {
	return s.getOwnedOrder(ctx, userID, orderID)
}

func (s *OrderService) ListOrders(ctx context.Context, userID string, f repository.Filters) ([]*domain.Order, error) {
	return s.repo.ListByUserID(ctx, userID, f)
}

func (s *OrderService) markPaid(ctx context.Context, orders []*domain.Order, transactionID string) ([]*domain.Order, error) {
	var updated []*domain.Order
	for _, order := range orders {
		if order.PaymentStatus != domain.PaymentStatusPending {
			continue
		}
		order.MarkAsPaid(transactionID)
		updated = append(updated, order)
	}

	if len(updated) == 0 {
		return nil, nil
	}

	if err := s.repo.UpdateMany(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *OrderService) getOwnedOrder(ctx context.Context, userID string, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, apperr.NotFound("order_not_found", "order does not exist")
	}
	if err != nil {
		return nil, err
	}

	if order.UserID != userID {
		return nil, apperr.Forbidden("not_order_owner", "order belongs to another user")
	}
	return order, nil
}

func (s *OrderService) validateUser(ctx context.Context, userID string) error {
	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, userrepo.ErrUserNotFound) {
		return apperr.NotFound("user_not_found", "user does not exist")
	}
	if err != nil {
		return err
	}
	if !user.CanOrder() {
		return apperr.Forbidden("user_not_allowed", "user must be active and verified to order")
	}
	return nil
}

func (s *OrderService) validateOrganizations(ctx context.Context, groups map[string][]cartdomain.CartItem) error {
	orgIDs := make([]string, 0, len(groups))
	for orgID := range groups {
		orgIDs = append(orgIDs, orgID)
	}

	orgs, err := s.orgs.GetOrganizationsByIDs(ctx, orgIDs)
	if err != nil {
		return err
	}
	if len(orgs) != len(orgIDs) {
		return apperr.NotFound("organization_not_found", "one or more organizations do not exist")
	}
	for _, org := range orgs {
		if !org.IsActive() {
			return apperr.Invalid("organization_not_active", "organization is not accepting orders")
		}
	}
	return nil
}

func (s *OrderService) resolvePrices(ctx context.Context, products []*catalogdomain.Product) (map[string]*catalogdomain.Price, error) {
	prices := make(map[string]*catalogdomain.Price, len(products))
	for _, p := range products {
		price, err := s.products.GetActivePrice(ctx, p.ID)
		if errors.Is(err, catalogrepo.ErrPriceNotFound) {
			return nil, apperr.Invalid("product_not_priced", "product has no active price")
		}
		if err != nil {
			return nil, err
		}
		prices[p.ID] = price
	}
	return prices, nil
}

func (s *OrderService) publishOrdersCreated(ctx context.Context, userID string, orders []*domain.Order, productIDs []string) {
	orderIDs := make([]string, len(orders))
	for i, order := range orders {
		orderIDs[i] = order.ID.String()
	}

	event := publisher.OrdersCreatedEvent{
		UserID:     userID,
		OrderIDs:   orderIDs,
		ProductIDs: productIDs,
		CreatedAt:  orders[0].CreatedAt,
	}
	// Event delivery is best effort; the cart poller repairs missed clears
	// on the next checkout.
	if err := s.events.PublishOrdersCreated(ctx, event); err != nil {
		s.log.Error("failed to publish orders.created", zap.Error(err), zap.String("user_id", userID))
	}
}

func filterItems(items []cartdomain.CartItem, onlyProductIDs []string) []cartdomain.CartItem {
	if len(onlyProductIDs) == 0 {
		return items
	}

	wanted := make(map[string]struct{}, len(onlyProductIDs))
	for _, id := range onlyProductIDs {
		wanted[id] = struct{}{}
	}

	var filtered []cartdomain.CartItem
	for _, item := range items {
		if _, ok := wanted[item.ProductID]; ok {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

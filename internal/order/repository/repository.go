package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jeseias/djezyas/internal/order/domain"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrDuplicateCode = errors.New("order code already exists")
)

// Filters narrows list queries; zero values mean "no filter".
type Filters struct {
	PaymentStatus     domain.PaymentStatus
	FulfillmentStatus domain.FulfillmentStatus
	Limit             int
	Offset            int
}

type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	Update(ctx context.Context, order *domain.Order) error
	UpdateMany(ctx context.Context, orders []*domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetManyByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Order, error)
	ListByUserID(ctx context.Context, userID string, f Filters) ([]*domain.Order, error)
	ListByOrganizationID(ctx context.Context, organizationID string, f Filters) ([]*domain.Order, error)
	ListByTransactionID(ctx context.Context, transactionID string) ([]*domain.Order, error)
	ListByPaymentIntentID(ctx context.Context, paymentIntentID string) ([]*domain.Order, error)
}

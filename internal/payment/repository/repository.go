package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jeseias/djezyas/internal/payment/domain"
)

var ErrIntentNotFound = errors.New("payment intent not found")

type PaymentIntentRepository interface {
	Create(ctx context.Context, intent *domain.PaymentIntent) error
	Update(ctx context.Context, intent *domain.PaymentIntent) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error)
	GetByProviderReference(ctx context.Context, reference string) (*domain.PaymentIntent, error)
	ListPending(ctx context.Context, limit int) ([]*domain.PaymentIntent, error)
	ListExpiredBefore(ctx context.Context, cutoff time.Time) ([]*domain.PaymentIntent, error)
}

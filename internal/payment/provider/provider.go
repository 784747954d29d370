// Package provider holds the pluggable payment gateway contract. New
// gateways register against the enum; the payment use cases never touch a
// concrete implementation.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/jeseias/djezyas/internal/payment/domain"
)

type CreateSessionParams struct {
	UserID    string
	Amount    int64
	Currency  string
	OrderIDs  []string
	Reference string
}

type Session struct {
	TransactionID string
	ExpiresAt     *time.Time
	PaymentURL    string
}

type PaymentProviderService interface {
	CreateSession(ctx context.Context, params CreateSessionParams) (*Session, error)
}

type Registry struct {
	providers map[domain.Provider]PaymentProviderService
}

func NewRegistry() *Registry {
	return &Registry{providers: map[domain.Provider]PaymentProviderService{}}
}

func (r *Registry) Register(p domain.Provider, svc PaymentProviderService) {
	r.providers[p] = svc
}

func (r *Registry) Get(p domain.Provider) (PaymentProviderService, error) {
	svc, ok := r.providers[p]
	if !ok {
		return nil, fmt.Errorf("unsupported payment provider %q", p)
	}
	return svc, nil
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

type Provider string

const (
	// ProviderRedirect is the external redirect-based gateway.
	ProviderRedirect Provider = "REDIRECT"
)

type IntentStatus string

const (
	IntentStatusPending   IntentStatus = "PENDING"
	IntentStatusSucceeded IntentStatus = "SUCCEEDED"
	IntentStatusFailed    IntentStatus = "FAILED"
	IntentStatusExpired   IntentStatus = "EXPIRED"
	IntentStatusCancelled IntentStatus = "CANCELLED"
)

func (s IntentStatus) IsTerminal() bool {
	return s != IntentStatusPending
}

// PaymentIntent is one checkout attempt covering one or more orders. Amount
// is a snapshot of the order totals at creation time.
type PaymentIntent struct {
	ID                uuid.UUID
	UserID            string
	OrderIDs          []string
	Amount            int64
	Currency          string
	Provider          Provider
	Status            IntentStatus
	ProviderReference string
	TransactionIDs    []string
	ExpiresAt         *time.Time
	Metadata          map[string]string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func NewPaymentIntent(userID string, orderIDs []string, amount int64, currency string, provider Provider, reference string) *PaymentIntent {
	now := time.Now()
	return &PaymentIntent{
		ID:                uuid.New(),
		UserID:            userID,
		OrderIDs:          orderIDs,
		Amount:            amount,
		Currency:          currency,
		Provider:          provider,
		Status:            IntentStatusPending,
		ProviderReference: reference,
		Metadata:          map[string]string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (p *PaymentIntent) MarkSucceeded() {
	p.Status = IntentStatusSucceeded
	p.UpdatedAt = time.Now()
}

func (p *PaymentIntent) MarkFailed() {
	p.Status = IntentStatusFailed
	p.UpdatedAt = time.Now()
}

func (p *PaymentIntent) MarkExpired() {
	p.Status = IntentStatusExpired
	p.UpdatedAt = time.Now()
}

func (p *PaymentIntent) MarkCancelled() {
	p.Status = IntentStatusCancelled
	p.UpdatedAt = time.Now()
}

func (p *PaymentIntent) AddTransactionID(id string) {
	if id == "" {
		return
	}
	p.TransactionIDs = append(p.TransactionIDs, id)
	p.UpdatedAt = time.Now()
}

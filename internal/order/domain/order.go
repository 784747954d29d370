// Package domain holds the order aggregate. Items are immutable after
// creation; only the two status axes and their timestamps move.
package domain

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
	PaymentStatusFailed   PaymentStatus = "FAILED"
)

type FulfillmentStatus string

const (
	FulfillmentStatusNew            FulfillmentStatus = "NEW"
	FulfillmentStatusPicking        FulfillmentStatus = "PICKING"
	FulfillmentStatusPacked         FulfillmentStatus = "PACKED"
	FulfillmentStatusInDelivery     FulfillmentStatus = "IN_DELIVERY"
	FulfillmentStatusDelivered      FulfillmentStatus = "DELIVERED"
	FulfillmentStatusCancelled      FulfillmentStatus = "CANCELLED"
	FulfillmentStatusReturned       FulfillmentStatus = "RETURNED"
	FulfillmentStatusFailedDelivery FulfillmentStatus = "FAILED_DELIVERY"
	FulfillmentStatusIssues         FulfillmentStatus = "ISSUES"
	FulfillmentStatusExpired        FulfillmentStatus = "EXPIRED"
)

// legalTransitions is the single source of truth for fulfillment moves.
// CANCELLED, EXPIRED and RETURNED are terminal.
var legalTransitions = map[FulfillmentStatus][]FulfillmentStatus{
	FulfillmentStatusNew:            {FulfillmentStatusPicking, FulfillmentStatusCancelled, FulfillmentStatusExpired, FulfillmentStatusIssues},
	FulfillmentStatusPicking:        {FulfillmentStatusPacked, FulfillmentStatusIssues},
	FulfillmentStatusPacked:         {FulfillmentStatusInDelivery, FulfillmentStatusIssues},
	FulfillmentStatusInDelivery:     {FulfillmentStatusDelivered, FulfillmentStatusFailedDelivery, FulfillmentStatusIssues},
	FulfillmentStatusDelivered:      {FulfillmentStatusReturned},
	FulfillmentStatusFailedDelivery: {FulfillmentStatusInDelivery, FulfillmentStatusReturned, FulfillmentStatusIssues},
	FulfillmentStatusIssues:         {FulfillmentStatusPicking, FulfillmentStatusPacked, FulfillmentStatusInDelivery, FulfillmentStatusCancelled, FulfillmentStatusReturned},
}

func CanTransitionTo(from, to FulfillmentStatus) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// OrderItem snapshots the product name and price at order-creation time.
// Amounts are integer cents.
type OrderItem struct {
	PriceID    string `json:"price_id"`
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitAmount int64  `json:"unit_amount"`
	Subtotal   int64  `json:"subtotal"`
}

type Order struct {
	ID                      uuid.UUID         `json:"id"`
	Code                    string            `json:"code"`
	UserID                  string            `json:"user_id"`
	OrganizationID          string            `json:"organization_id"`
	Items                   []OrderItem       `json:"items"`
	TotalAmount             int64             `json:"total_amount"`
	Currency                string            `json:"currency"`
	PaymentStatus           PaymentStatus     `json:"payment_status"`
	FulfillmentStatus       FulfillmentStatus `json:"fulfillment_status"`
	PaymentIntentIDs        []string          `json:"payment_intent_ids"`
	TransactionID           string            `json:"transaction_id,omitempty"`
	ClientConfirmedDelivery bool              `json:"client_confirmed_delivery"`
	PaidAt                  *time.Time        `json:"paid_at,omitempty"`
	CancelledAt             *time.Time        `json:"cancelled_at,omitempty"`
	ExpiredAt               *time.Time        `json:"expired_at,omitempty"`
	Meta                    map[string]string `json:"meta,omitempty"`
	CreatedAt               time.Time         `json:"created_at"`
	UpdatedAt               time.Time         `json:"updated_at"`
}

// NewOrder builds an order for a single organization, computing subtotals and
// the total from the given items.
func NewOrder(userID, organizationID, currency string, items []OrderItem) *Order {
	var total int64
	for i := range items {
		items[i].Subtotal = int64(items[i].Quantity) * items[i].UnitAmount
		total += items[i].Subtotal
	}

	now := time.Now()
	return &Order{
		ID:                uuid.New(),
		Code:              GenerateCode(now),
		UserID:            userID,
		OrganizationID:    organizationID,
		Items:             items,
		TotalAmount:       total,
		Currency:          currency,
		PaymentStatus:     PaymentStatusPending,
		FulfillmentStatus: FulfillmentStatusNew,
		Meta:              map[string]string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// GenerateCode builds the human-readable order code: two random uppercase
// letters, YYMMDD, four random digits. Uniqueness is enforced by the
// repository's unique index, not here.
func GenerateCode(now time.Time) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	return fmt.Sprintf("%c%c%s%04d",
		letters[rand.Intn(len(letters))],
		letters[rand.Intn(len(letters))],
		now.Format("060102"),
		rand.Intn(10000))
}

// Entity mutators are unconditional; preconditions are checked by the use
// cases that call them.

func (o *Order) MarkAsPaid(transactionID string) {
	now := time.Now()
	o.PaymentStatus = PaymentStatusPaid
	o.PaidAt = &now
	if transactionID != "" {
		o.TransactionID = transactionID
	}
	o.UpdatedAt = now
}

func (o *Order) Cancel(reason string) {
	now := time.Now()
	o.FulfillmentStatus = FulfillmentStatusCancelled
	o.CancelledAt = &now
	if reason != "" {
		o.Meta["cancel_reason"] = reason
	}
	o.UpdatedAt = now
}

func (o *Order) Expire() {
	now := time.Now()
	o.FulfillmentStatus = FulfillmentStatusExpired
	o.ExpiredAt = &now
	o.UpdatedAt = now
}

func (o *Order) MarkAsInDelivery() {
	o.FulfillmentStatus = FulfillmentStatusInDelivery
	o.UpdatedAt = time.Now()
}

func (o *Order) MarkClientConfirmedDelivery() {
	o.ClientConfirmedDelivery = true
	o.UpdatedAt = time.Now()
}

// AttachPaymentIntent appends the intent id; an order keeps the full history
// of checkout attempts, the latest entry being the current one.
func (o *Order) AttachPaymentIntent(intentID string) {
	o.PaymentIntentIDs = append(o.PaymentIntentIDs, intentID)
	o.UpdatedAt = time.Now()
}

// UpdateFulfillmentStatus validates the move against the transition table.
func (o *Order) UpdateFulfillmentStatus(target FulfillmentStatus) error {
	if !CanTransitionTo(o.FulfillmentStatus, target) {
		return fmt.Errorf("illegal fulfillment transition %s -> %s", o.FulfillmentStatus, target)
	}
	o.FulfillmentStatus = target
	o.UpdatedAt = time.Now()
	return nil
}

package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeseias/djezyas/internal/apperr"
	orderdomain "github.com/jeseias/djezyas/internal/order/domain"
	"github.com/jeseias/djezyas/internal/payment/domain"
	"github.com/jeseias/djezyas/internal/payment/provider"
	"github.com/jeseias/djezyas/internal/payment/repository"
)

const (
	referencePrefix  = "PMT-"
	referenceLength  = 15 // prefix + 11 random alphanumerics
	intentDefaultTTL = 5 * time.Minute
	checkoutTokenTTL = 10 * time.Minute
)

type orderStore interface {
	GetManyByIDs(ctx context.Context, ids []uuid.UUID) ([]*orderdomain.Order, error)
	UpdateMany(ctx context.Context, orders []*orderdomain.Order) error
}

// paidMarker cascades a settled transaction onto its orders.
type paidMarker interface {
	MarkPaidByTransactionID(ctx context.Context, transactionID string) ([]*orderdomain.Order, error)
}

type providerRegistry interface {
	Get(p domain.Provider) (provider.PaymentProviderService, error)
}

type tokenSigner interface {
	Generate(payload map[string]any, ttl time.Duration) (string, error)
	Verify(token string) (map[string]any, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type PaymentService struct {
	intents   repository.PaymentIntentRepository
	orders    orderStore
	markPaid  paidMarker
	providers providerRegistry
	signer    tokenSigner
	tx        txRunner
	log       *zap.Logger
}

func NewPaymentService(
	intents repository.PaymentIntentRepository,
	orders orderStore,
	markPaid paidMarker,
	providers providerRegistry,
	signer tokenSigner,
	tx txRunner,
	log *zap.Logger,
) *PaymentService {
	return &PaymentService{
		intents:   intents,
		orders:    orders,
		markPaid:  markPaid,
		providers: providers,
		signer:    signer,
		tx:        tx,
		log:       log,
	}
}

type CreatePaymentIntentResult struct {
	Token string
}

// CreatePaymentIntent runs one checkout attempt over the given orders:
// validates them, opens a provider session, persists the intent together
// with the stamped orders, and hands back a signed checkout token. The token
// is the only session pointer the client gets; no lookup table exists.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, userID string, orderIDs []uuid.UUID, prov domain.Provider) (*CreatePaymentIntentResult, error) {
	orders, amount, currency, err := s.validateOrders(ctx, userID, orderIDs)
	if err != nil {
		return nil, err
	}

	providerSvc, err := s.providers.Get(prov)
	if err != nil {
		return nil, apperr.Invalid("unsupported_provider", err.Error())
	}

	ids := make([]string, len(orders))
	for i, order := range orders {
		ids[i] = order.ID.String()
	}

	reference := generateReference()
	session, err := providerSvc.CreateSession(ctx, provider.CreateSessionParams{
		UserID:    userID,
		Amount:    amount,
		Currency:  currency,
		OrderIDs:  ids,
		Reference: reference,
	})
	if err != nil {
		return nil, err
	}

	intent := domain.NewPaymentIntent(userID, ids, amount, currency, prov, reference)
	intent.AddTransactionID(session.TransactionID)
	if session.ExpiresAt != nil {
		intent.ExpiresAt = session.ExpiresAt
	} else {
		expires := time.Now().Add(intentDefaultTTL)
		intent.ExpiresAt = &expires
	}
	if session.PaymentURL != "" {
		intent.Metadata["payment_url"] = session.PaymentURL
	}
	intent.Metadata["transaction_id"] = session.TransactionID

	for _, order := range orders {
		order.AttachPaymentIntent(intent.ID.String())
		order.TransactionID = session.TransactionID
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.orders.UpdateMany(ctx, orders); err != nil {
			return err
		}
		return s.intents.Create(ctx, intent)
	})
	if err != nil {
		return nil, err
	}

	token, err := s.signer.Generate(map[string]any{
		"payment_intent_id": intent.ID.String(),
		"user_id":           userID,
		"order_ids":         ids,
		"provider":          string(prov),
	}, checkoutTokenTTL)
	if err != nil {
		return nil, err
	}

	return &CreatePaymentIntentResult{Token: token}, nil
}

func (s *PaymentService) validateOrders(ctx context.Context, userID string, orderIDs []uuid.UUID) ([]*orderdomain.Order, int64, string, error) {
	if len(orderIDs) == 0 {
		return nil, 0, "", apperr.Invalid("no_orders", "at least one order id is required")
	}

	orders, err := s.orders.GetManyByIDs(ctx, orderIDs)
	if err != nil {
		return nil, 0, "", err
	}
	if len(orders) != len(orderIDs) {
		return nil, 0, "", apperr.NotFound("order_not_found", "one or more orders do not exist")
	}

	// all-or-nothing ownership check, fails closed before anything else leaks
	for _, order := range orders {
		if order.UserID != userID {
			return nil, 0, "", apperr.Forbidden("not_order_owner", "order belongs to another user")
		}
	}

	var amount int64
	currency := ""
	for _, order := range orders {
		if order.PaymentStatus != orderdomain.PaymentStatusPending {
			return nil, 0, "", apperr.Conflict("order_not_payable", "order is not payment-pending")
		}
		amount += order.TotalAmount
		if currency == "" {
			currency = order.Currency
		}
	}
	if amount == 0 {
		return nil, 0, "", apperr.Invalid("zero_amount", "orders total zero, nothing to pay")
	}

	return orders, amount, currency, nil
}

type CheckoutSession struct {
	PaymentIntentID string                 `json:"payment_intent_id"`
	Status          domain.IntentStatus    `json:"status"`
	Amount          int64                  `json:"amount"`
	Currency        string                 `json:"currency"`
	Provider        domain.Provider        `json:"provider"`
	PaymentURL      string                 `json:"payment_url,omitempty"`
	ExpiresAt       *time.Time             `json:"expires_at,omitempty"`
	Orders          []CheckoutSessionOrder `json:"orders"`
}

type CheckoutSessionOrder struct {
	ID            string                    `json:"id"`
	Code          string                    `json:"code"`
	TotalAmount   int64                     `json:"total_amount"`
	PaymentStatus orderdomain.PaymentStatus `json:"payment_status"`
}

// GetCheckoutSession verifies the checkout token and re-reads the live
// intent and order state it points at.
func (s *PaymentService) GetCheckoutSession(ctx context.Context, tokenString string) (*CheckoutSession, error) {
	claims, err := s.signer.Verify(tokenString)
	if err != nil {
		return nil, apperr.Unauthorized("invalid_checkout_token", "checkout token is invalid or expired")
	}

	intentID, ok := claims["payment_intent_id"].(string)
	if !ok {
		return nil, apperr.Unauthorized("invalid_checkout_token", "checkout token is malformed")
	}
	id, err := uuid.Parse(intentID)
	if err != nil {
		return nil, apperr.Unauthorized("invalid_checkout_token", "checkout token is malformed")
	}

	intent, err := s.intents.GetByID(ctx, id)
	if errors.Is(err, repository.ErrIntentNotFound) {
		return nil, apperr.NotFound("payment_intent_not_found", "payment intent does not exist")
	}
	if err != nil {
		return nil, err
	}

	if userID, _ := claims["user_id"].(string); userID != intent.UserID {
		return nil, apperr.Forbidden("not_intent_owner", "payment intent belongs to another user")
	}

	orderIDs := make([]uuid.UUID, 0, len(intent.OrderIDs))
	for _, raw := range intent.OrderIDs {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		orderIDs = append(orderIDs, parsed)
	}

	orders, err := s.orders.GetManyByIDs(ctx, orderIDs)
	if err != nil {
		return nil, err
	}

	session := &CheckoutSession{
		PaymentIntentID: intent.ID.String(),
		Status:          intent.Status,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
		Provider:        intent.Provider,
		PaymentURL:      intent.Metadata["payment_url"],
		ExpiresAt:       intent.ExpiresAt,
	}
	for _, order := range orders {
		session.Orders = append(session.Orders, CheckoutSessionOrder{
			ID:            order.ID.String(),
			Code:          order.Code,
			TotalAmount:   order.TotalAmount,
			PaymentStatus: order.PaymentStatus,
		})
	}

	return session, nil
}

type CallbackStatus string

const (
	CallbackAccepted CallbackStatus = "ACCEPTED"
	CallbackRejected CallbackStatus = "REJECTED"
)

type CallbackResult struct {
	PaymentIntentFound bool
	OrdersUpdated      bool
}

// ProcessProviderPayment reconciles an asynchronous provider callback onto
// the intent and, on acceptance, cascades onto the orders sharing its
// transaction ids. An unknown reference is a silent no-op: callbacks race
// and duplicate legitimately. A cascade failure is logged, never
// propagated; the intent state is authoritative.
func (s *PaymentService) ProcessProviderPayment(ctx context.Context, reference string, status CallbackStatus) (*CallbackResult, error) {
	if status != CallbackAccepted && status != CallbackRejected {
		return nil, apperr.Invalid("invalid_callback_status", "status must be ACCEPTED or REJECTED")
	}

	intent, err := s.intents.GetByProviderReference(ctx, reference)
	if errors.Is(err, repository.ErrIntentNotFound) {
		s.log.Info("callback for unknown reference, ignoring", zap.String("reference", reference))
		return &CallbackResult{}, nil
	}
	if err != nil {
		return nil, err
	}

	if intent.Status.IsTerminal() {
		return &CallbackResult{PaymentIntentFound: true}, nil
	}

	if status == CallbackAccepted {
		intent.MarkSucceeded()
	} else {
		intent.MarkFailed()
	}

	if err := s.intents.Update(ctx, intent); err != nil {
		return nil, err
	}

	result := &CallbackResult{PaymentIntentFound: true}
	if status == CallbackAccepted {
		result.OrdersUpdated = s.cascadePaid(ctx, intent)
	}

	return result, nil
}

func (s *PaymentService) cascadePaid(ctx context.Context, intent *domain.PaymentIntent) bool {
	updated := false
	for _, transactionID := range intent.TransactionIDs {
		orders, err := s.markPaid.MarkPaidByTransactionID(ctx, transactionID)
		if err != nil {
			s.log.Error("order cascade failed after intent success",
				zap.Error(err),
				zap.String("payment_intent_id", intent.ID.String()),
				zap.String("transaction_id", transactionID))
			continue
		}
		if len(orders) > 0 {
			updated = true
		}
	}
	return updated
}

const referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func generateReference() string {
	suffix := make([]byte, referenceLength-len(referencePrefix))
	for i := range suffix {
		suffix[i] = referenceAlphabet[rand.Intn(len(referenceAlphabet))]
	}
	return referencePrefix + string(suffix)
}

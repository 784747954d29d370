package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jeseias/djezyas/internal/payment/domain"
	"github.com/jeseias/djezyas/internal/payment/service"
)

type paymentService interface {
	CreatePaymentIntent(ctx context.Context, userID string, orderIDs []uuid.UUID, prov domain.Provider) (*service.CreatePaymentIntentResult, error)
	GetCheckoutSession(ctx context.Context, token string) (*service.CheckoutSession, error)
}

type CheckoutHandler struct {
	payments paymentService
	timeout  time.Duration
}

func NewCheckoutHandler(payments paymentService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{payments: payments, timeout: timeout}
}

type CreatePaymentIntentDTO struct {
	OrderIDs []string `json:"order_ids"`
	Provider string   `json:"provider"`
}

type PaymentIntentResponseDTO struct {
	Token string `json:"token"`
}

func (h *CheckoutHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CreatePaymentIntentDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if len(req.OrderIDs) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_order_ids", "order_ids is required")
		return
	}

	orderIDs := make([]uuid.UUID, len(req.OrderIDs))
	for i, raw := range req.OrderIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_order_ids", "order_ids must be UUIDs")
			return
		}
		orderIDs[i] = id
	}

	provider := domain.Provider(req.Provider)
	if provider == "" {
		provider = domain.ProviderRedirect
	}

	result, err := h.payments.CreatePaymentIntent(ctx, userID, orderIDs, provider)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, PaymentIntentResponseDTO{Token: result.Token})
}

func (h *CheckoutHandler) GetCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "token query parameter is required")
		return
	}

	session, err := h.payments.GetCheckoutSession(ctx, token)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, session)
}

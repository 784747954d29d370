package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jeseias/djezyas/internal/apperr"
	"github.com/jeseias/djezyas/internal/payment/service"
)

type callbackProcessor interface {
	ProcessProviderPayment(ctx context.Context, reference string, status service.CallbackStatus) (*service.CallbackResult, error)
}

// WebhookHandler receives asynchronous provider callbacks. It sits outside
// the authenticated surface; the reference is the only credential.
type WebhookHandler struct {
	payments callbackProcessor
	timeout  time.Duration
}

func NewWebhookHandler(payments callbackProcessor, timeout time.Duration) *WebhookHandler {
	return &WebhookHandler{payments: payments, timeout: timeout}
}

type ProviderCallbackDTO struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

type ProviderCallbackResponseDTO struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Data    ProviderCallbackData `json:"data"`
}

type ProviderCallbackData struct {
	PaymentIntentFound bool `json:"payment_intent_found"`
	OrdersUpdated      bool `json:"orders_updated"`
}

// ProviderCallbackErrorDTO is the failure shape gateways expect; it differs
// from the ErrorResponse the user-facing routes return.
type ProviderCallbackErrorDTO struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func respondCallbackError(w http.ResponseWriter, status int, message, code string) {
	respondJSON(w, status, ProviderCallbackErrorDTO{Success: false, Message: message, Error: code})
}

func (h *WebhookHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ProviderCallbackDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondCallbackError(w, http.StatusBadRequest, "invalid JSON body", "invalid_request")
		return
	}
	if req.Reference == "" {
		respondCallbackError(w, http.StatusBadRequest, "reference is required", "invalid_reference")
		return
	}

	result, err := h.payments.ProcessProviderPayment(ctx, req.Reference, service.CallbackStatus(req.Status))
	if err != nil {
		if appErr := apperr.From(err); appErr != nil {
			respondCallbackError(w, appErr.Status, appErr.Message, appErr.Code)
			return
		}
		respondCallbackError(w, http.StatusInternalServerError, "internal server error", "internal_error")
		return
	}

	respondJSON(w, http.StatusOK, ProviderCallbackResponseDTO{
		Success: true,
		Message: "callback processed",
		Data: ProviderCallbackData{
			PaymentIntentFound: result.PaymentIntentFound,
			OrdersUpdated:      result.OrdersUpdated,
		},
	})
}

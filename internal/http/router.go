package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterDeps struct {
	Carts    cartService
	Orders   orderService
	Payments paymentService
	Webhooks callbackProcessor
	Verifier tokenVerifier
	Timeout  time.Duration
}

// NewRouter mounts the whole API surface. The provider callback route stays
// outside the auth middleware: gateways do not carry user tokens.
func NewRouter(deps RouterDeps) chi.Router {
	cartHandler := NewCartHandler(deps.Carts, deps.Timeout)
	ordersHandler := NewOrdersHandler(deps.Orders, deps.Timeout)
	checkoutHandler := NewCheckoutHandler(deps.Payments, deps.Timeout)
	webhookHandler := NewWebhookHandler(deps.Webhooks, deps.Timeout)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(deps.Timeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(deps.Verifier))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
				r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordersHandler.List)
				r.Post("/", ordersHandler.Create)
				r.Post("/from-cart", ordersHandler.CreateFromCart)
				r.Get("/{order_id}", ordersHandler.Get)
				r.Post("/{order_id}/cancel", ordersHandler.Cancel)
				r.Post("/{order_id}/expire", ordersHandler.Expire)
				r.Post("/{order_id}/move", ordersHandler.Move)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/payment-intent", checkoutHandler.CreatePaymentIntent)
				r.Get("/session", checkoutHandler.GetCheckoutSession)
			})
		})

		r.Post("/payments/{provider}/callback", webhookHandler.HandleCallback)
	})

	return r
}

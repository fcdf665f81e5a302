package router

import (
	"net/http"

	"storefront/internal/handler"
	"storefront/internal/metrics"
	"storefront/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Product  *handler.ProductHandler
	Cart     *handler.CartHandler
	Checkout *handler.CheckoutHandler
	Order    *handler.OrderHandler
	Review   *handler.ReviewHandler
	Webhook  *handler.WebhookHandler
}

// Keys holds the shared secrets checked by the auth middleware.
type Keys struct {
	APIKey      string
	AdminAPIKey string
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, keys Keys, m *metrics.Metrics, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Recovery -> RequestID -> Logging -> Metrics -> CORS -> APIKeyAuth -> Identity
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(m))
	r.Use(middleware.CORS)
	r.Use(middleware.APIKeyAuth(keys.APIKey, logger))
	r.Use(middleware.Identity)

	// Health check endpoint (no authentication required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Product.GetAll)
			r.Get("/{id}", h.Product.GetByID)
			r.Get("/{id}/reviews", h.Review.ListForProduct)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.Get)
			r.Delete("/", h.Cart.Clear)
			r.Get("/events", h.Cart.Events)
			r.Post("/items", h.Cart.AddItem)
			r.Put("/items/{productId}", h.Cart.UpdateQuantity)
			r.Delete("/items/{productId}", h.Cart.RemoveItem)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", h.Checkout.Create)
			r.Post("/confirm", h.Checkout.Confirm)
			r.Post("/cancel", h.Checkout.Cancel)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.Order.List)
			r.Get("/{id}", h.Order.GetByID)
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Post("/", h.Review.Submit)
			r.Get("/featured", h.Review.ListFeatured)
		})

		r.With(middleware.AdminKey(keys.AdminAPIKey, logger)).
			Put("/admin/reviews/{id}/moderation", h.Review.Moderate)

		r.Post("/webhooks/gateway", h.Webhook.Gateway)
	})

	return r
}

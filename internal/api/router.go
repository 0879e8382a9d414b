package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/weddify/binks/internal/api/middleware"
	"github.com/weddify/binks/internal/auth"
)

const requestTimeout = 30 * time.Second

func NewRouter(handlers *Handlers, jwtService *auth.JWTService) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Logger, chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))

	r.Get("/healthz", handlers.Healthz)

	// Gateway callbacks authenticate by signature, not by token.
	r.Post("/webhooks/pakasir", handlers.PakasirWebhook)

	// Public storefront
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuthMiddleware(jwtService))

		r.Get("/products", handlers.ListProducts)
		r.Get("/products/{id}", handlers.GetProduct)

		r.Post("/orders", handlers.CreateOrder)
		r.Get("/orders/{id}", handlers.GetOrder)
		r.Post("/orders/{id}/cancel", handlers.CancelOrder)

		r.Post("/payments/create", handlers.CreatePayment)
		r.Get("/payments/status", handlers.PaymentStatus)
		r.Post("/payments/simulate", handlers.SimulatePayment)
		r.Get("/payments/methods", handlers.PaymentMethods)

		r.Post("/coupons/validate", handlers.ValidateCoupon)
	})

	// Signed-in customers
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(jwtService))
		r.Get("/orders", handlers.ListOrders)

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin())

			r.Post("/products", handlers.CreateProduct)
			r.Put("/products/{id}", handlers.UpdateProduct)

			r.Put("/orders/{id}", handlers.UpdateOrder)

			r.Get("/coupons", handlers.ListCoupons)
			r.Post("/coupons", handlers.CreateCoupon)
			r.Put("/coupons/{id}", handlers.UpdateCoupon)

			r.Get("/stock", handlers.ListStock)
			r.Post("/stock", handlers.AddStock)
			r.Delete("/stock/{id}", handlers.RemoveStock)
		})
	})

	return r
}

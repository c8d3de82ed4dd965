package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/simauction/internal/metrics"
	custommiddleware "github.com/mmeshcher/simauction/internal/middleware"
	"github.com/mmeshcher/simauction/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса аукциона.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(metrics.Instrument)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/balance", h.GetBalance)
		})
	})

	r.Route("/api/listings", func(r chi.Router) {
		r.Get("/", h.ListListings)
		r.Get("/{id}", h.GetListing)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			r.Use(h.limiter.Middleware)

			r.Post("/{id}/bids", h.PlaceBid)
			r.Post("/{id}/buy-now", h.BuyNow)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)
		r.Use(custommiddleware.RequireRole(model.RoleAdmin))

		r.Get("/listings", h.AdminListListings)
		r.Post("/listings", h.CreateListing)
		r.Put("/listings/{id}", h.UpdateListing)
		r.Delete("/listings/{id}", h.DeleteListing)
		r.Post("/listings/{id}/publish", h.PublishListing)
		r.Post("/listings/{id}/close", h.CloseAuction)

		r.Get("/accounts", h.AdminListAccounts)
		r.Post("/accounts/{id}/balance", h.AdjustBalance)

		r.Get("/stats", h.Stats)
		r.Get("/reports", h.Reports)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}

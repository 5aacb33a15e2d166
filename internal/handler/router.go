package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/commentpass-ledger/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware леджера.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	if h.rateLimit > 0 {
		r.Use(custommiddleware.RateLimit(h.logger, h.rateLimit))
	}

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/api/ledger", func(r chi.Router) {
		r.Get("/accounts/{identity}", h.GetAccount)
		r.Get("/accounts/{identity}/can-comment", h.CanComment)
		r.Get("/accounts/{identity}/events", h.GetEvents)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/deposit", h.Deposit)
			r.Post("/withdraw", h.Withdraw)

			r.Post("/subscriptions", h.PurchaseSubscription)
			r.Post("/subscriptions/gift", h.GiftSubscription)

			r.Post("/passes", h.PurchaseDailyPasses)
			r.Post("/passes/gift", h.GiftDailyPass)

			r.Post("/comments/{identity}/payment", h.ProcessCommentPayment)

			r.Post("/admin/pause", h.Pause)
			r.Post("/admin/unpause", h.Unpause)
			r.Post("/admin/withdraw", h.WithdrawFunds)
			r.Get("/admin/reserve", h.GetReserve)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}

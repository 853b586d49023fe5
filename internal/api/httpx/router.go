package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/shoe-market/internal/api/httpx/middlewares"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachCallerMetadata)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", handler.Health)

	r.Get("/items", handler.ListItems)
	r.Get("/items/count", handler.CountItems)
	r.Get("/items/{id}", handler.GetItem)
	r.Get("/items/{id}/comments", handler.Comments)
	r.Get("/orders", handler.CompletedOrders)
	r.Get("/orders/pending", handler.PendingOrders)

	r.Group(func(r chi.Router) {
		r.Use(middlewares.RequirePrincipal)

		r.Post("/items", handler.AddItem)
		r.Put("/items/{id}", handler.UpdateItem)
		r.Delete("/items/{id}", handler.DeleteItem)
		r.Post("/items/{id}/like", handler.LikeItem)
		r.Post("/items/{id}/comments", handler.AddComment)

		r.Post("/orders", handler.CreateOrder)
		r.Post("/orders/complete", handler.CompleteOrder)
		r.Post("/payments/verify", handler.VerifyPayment)

		if handler.ledger != nil {
			r.Post("/ledger/transfers", handler.Transfer)
		}
	})
	return r
}

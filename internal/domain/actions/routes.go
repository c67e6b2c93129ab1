package actions

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// UserRoutes returns the per-user triage routes
func (h *Handler) UserRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/{id}/transactions/pending", h.ListPending)

	return r
}

// TransactionRoutes returns the direct transaction action routes
func (h *Handler) TransactionRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/{id}/pay", h.Pay)

	return r
}

package verification

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the verification session routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/sessions", h.OpenSession)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Delete("/", h.CloseSession)
		r.Patch("/form", h.UpdateForm)
		r.Post("/next", h.Next)
		r.Post("/previous", h.Previous)
		r.Post("/approve", h.Approve)
		r.Post("/reject", h.Reject)
		r.Post("/approve-and-pay", h.ApproveAndPay)
		r.Post("/adjust", h.Adjust)
		r.Post("/refresh", h.Refresh)
		r.Get("/receipt", h.Receipt)
	})

	return r
}

package audit

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coinly/coinadmin-api/internal/pkg/response"
)

// Handler serves the audit log screens
type Handler struct {
	service *Service
}

// NewHandler creates an audit handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List returns audit entries
// GET /audit
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := &ListFilter{Limit: 50}

	q := r.URL.Query()
	if v := q.Get("operator_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(w, "Invalid operator ID")
			return
		}
		filter.OperatorID = &id
	}
	if v := q.Get("transaction_id"); v != "" {
		filter.TransactionID = v
	}
	if v := q.Get("action"); v != "" {
		filter.Action = Action(v)
	}
	if v := q.Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 && limit <= 200 {
			filter.Limit = limit
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	entries, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.WithMeta(w, entries, response.Meta{Total: total, Limit: filter.Limit})
}

// GetSummary returns cached decision counters
// GET /audit/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetSummary(r.Context())
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, summary)
}

// Routes returns audit routes (admin only)
func (h *Handler) Routes(authMiddleware, adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/summary", h.GetSummary)
	r.With(adminMiddleware).Get("/", h.List)

	return r
}

package actions

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/coinly/coinadmin-api/internal/domain/transaction"
	"github.com/coinly/coinadmin-api/internal/middleware"
	"github.com/coinly/coinadmin-api/internal/pkg/coins"
	"github.com/coinly/coinadmin-api/internal/pkg/response"
	"github.com/coinly/coinadmin-api/internal/pkg/validator"
)

// TransactionReader is the read side of the coins backend used by the
// triage endpoints
type TransactionReader interface {
	ListPendingTransactions(ctx context.Context, userID string, page, limit int) ([]*transaction.Transaction, coins.PageMeta, error)
	GetTransaction(ctx context.Context, id string) (*transaction.Transaction, error)
}

// PayRequest records a manual payout performed outside the portal
type PayRequest struct {
	PaymentReferenceID string `json:"payment_reference_id" validate:"required"`
	Notes              string `json:"notes"`
}

// TriageItem is a pending transaction with its attention flag
type TriageItem struct {
	Transaction    *transaction.Transaction `json:"transaction"`
	ActionRequired bool                     `json:"action_required"`
}

// Handler exposes triage listing and direct payment actions
type Handler struct {
	dispatcher *Dispatcher
	reader     TransactionReader
}

// NewHandler creates an actions handler
func NewHandler(dispatcher *Dispatcher, reader TransactionReader) *Handler {
	return &Handler{dispatcher: dispatcher, reader: reader}
}

// ListPending handles GET /users/{id}/transactions/pending
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		response.BadRequest(w, "User ID is required")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	txs, meta, err := h.reader.ListPendingTransactions(r.Context(), userID, page, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}

	items := make([]TriageItem, 0, len(txs))
	for _, tx := range txs {
		items = append(items, TriageItem{
			Transaction:    tx,
			ActionRequired: transaction.ActionRequired(tx),
		})
	}

	response.WithMeta(w, items, response.Meta{
		Total: meta.Total,
		Page:  meta.Page,
		Limit: meta.Limit,
	})
}

// Pay handles POST /transactions/{id}/pay, flipping UNPAID to PAID after
// a payout done through external channels
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	operatorID := middleware.GetOperatorID(r.Context())
	txID := chi.URLParam(r, "id")
	if txID == "" {
		response.BadRequest(w, "Transaction ID is required")
		return
	}

	var req PayRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	tx, err := h.reader.GetTransaction(r.Context(), txID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	updated, err := h.dispatcher.MarkPaid(r.Context(), operatorID, tx, req.PaymentReferenceID, req.Notes)
	if err != nil {
		h.respondError(w, err)
		return
	}
	response.OK(w, updated)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrReasonRequired), errors.Is(err, ErrPaymentRefRequired):
		response.ValidationError(w, map[string]string{"request": err.Error()})
	case errors.Is(err, transaction.ErrNotEligible),
		errors.Is(err, transaction.ErrNotPending),
		errors.Is(err, transaction.ErrPaymentNotEligible):
		response.Error(w, http.StatusConflict, "NOT_ELIGIBLE", err.Error())
	case errors.Is(err, coins.ErrUnauthorized):
		response.Error(w, http.StatusUnauthorized, "UPSTREAM_AUTH", "The coins service rejected our credentials. Please re-authenticate.")
	default:
		var apiErr *coins.APIError
		if errors.As(err, &apiErr) {
			if apiErr.StatusCode == http.StatusNotFound {
				response.NotFound(w, "Transaction not found")
				return
			}
			response.UpstreamError(w, apiErr.Message)
			return
		}
		var transportErr *coins.TransportError
		if errors.As(err, &transportErr) {
			response.UpstreamError(w, "")
			return
		}
		log.Error().Err(err).Msg("transaction action failed")
		response.InternalError(w)
	}
}

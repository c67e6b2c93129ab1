package verification

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coinly/coinadmin-api/internal/domain/transaction"
	"github.com/coinly/coinadmin-api/internal/middleware"
	"github.com/coinly/coinadmin-api/internal/pkg/coins"
	"github.com/coinly/coinadmin-api/internal/pkg/response"
	"github.com/coinly/coinadmin-api/internal/pkg/validator"
)

// ReceiptResolver looks up evidence links for a transaction
type ReceiptResolver interface {
	Resolve(ctx context.Context, tx *transaction.Transaction) (receiptURL, thumbnailURL string, err error)
}

// Handler exposes the verification workflow over HTTP
type Handler struct {
	service  *Service
	receipts ReceiptResolver
}

// NewHandler creates a verification handler
func NewHandler(service *Service, receipts ReceiptResolver) *Handler {
	return &Handler{service: service, receipts: receipts}
}

// OpenSession handles POST /verification/sessions
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	operatorID := middleware.GetOperatorID(r.Context())

	var req OpenSessionRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	snapshot, err := h.service.Open(r.Context(), operatorID, req.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	response.Created(w, snapshot)
}

// GetSession handles GET /verification/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	operatorID, sessionID, ok := h.sessionParams(w, r)
	if !ok {
		return
	}
	snapshot, err := h.service.Get(operatorID, sessionID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	response.OK(w, snapshot)
}

// UpdateForm handles PATCH /verification/sessions/{id}/form
func (h *Handler) UpdateForm(w http.ResponseWriter, r *http.Request) {
	operatorID, sessionID, ok := h.sessionParams(w, r)
	if !ok {
		return
	}

	var req UpdateFormRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	snapshot, err := h.service.UpdateForm(operatorID, sessionID, FormPatch{
		ObservedAmount:        req.ObservedAmount,
		ReceiptDateObserved:   req.ReceiptDateObserved,
		VerificationConfirmed: req.VerificationConfirmed,
		RejectionNote:         req.RejectionNote,
		AdminNotes:            req.AdminNotes,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	response.OK(w, snapshot)
}

// Next handles POST /verification/sessions/{id}/next
func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, h.service.Next)
}

// Previous handles POST /verification/sessions/{id}/previous
func (h *Handler) Previous(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, h.service.Previous)
}

func (h *Handler) navigate(w http.ResponseWriter, r *http.Request, move func(uuid.UUID, uuid.UUID) (*Snapshot, error)) {
	operatorID, sessionID, ok := h.sessionParams(w, r)
	if !ok {
		return
	}
	snapshot, err := move(operatorID, sessionID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	response.OK(w, snapshot)
}

// Approve handles POST /verification/sessions/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	operatorID, sessionID, ok := h.sessionParams(w, r)
	if !ok {
		return
	}
	snapshot, err := h.service.Approve(r.Context(), operatorID, sessionID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	response.OK(w, snapshot)
}

// Reject handles POST /verification/sessions/{id}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	operatorID, sessionID, ok := h.sessionParams(w, r)
	if !ok {
		return
	}
	snapshot, err := h.service.Reject(r.Context(), operatorID, sessionID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	response.OK(w, snapshot)
}

// ApproveAndPay handles POST /verification/sessions/{id}/approve-and-pay
func (h *Handler) ApproveAndPay(w http.ResponseWriter, r *http.Request) {
	operatorID, sessionID, ok := h.sessionParams(w, r)
	if !ok {
		return
	}

	var req ApproveAndPayRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	snapshot, err := h.service.ApproveAndPay(r.Context(), operatorID, sessionID, req.PaymentReferenceID, req.Method)
	if err != nil {
		h.respondError(w, err)
		return
	}
	response.OK(w, snapshot)
}

// Adjust handles POST /verification/sessions/{id}/adjust
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	operatorID, sessionID, ok := h.sessionParams(w, r)
	if !ok {
		return
	}

	var req AdjustRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	snapshot, err := h.service.Adjust(r.Context(), operatorID, sessionID, *req.NewRedeemedAmount, req.Notes)
	if err != nil {
		h.respondError(w, err)
		return
	}
	response.OK(w, snapshot)
}

// Refresh handles POST /verification/sessions/{id}/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	operatorID, sessionID, ok := h.sessionParams(w, r)
	if !ok {
		return
	}
	snapshot, err := h.service.Refresh(r.Context(), operatorID, sessionID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	response.OK(w, snapshot)
}

// CloseSession handles DELETE /verification/sessions/{id}
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	operatorID, sessionID, ok := h.sessionParams(w, r)
	if !ok {
		return
	}
	if err := h.service.Close(operatorID, sessionID); err != nil {
		h.respondError(w, err)
		return
	}
	response.NoContent(w)
}

// Receipt handles GET /verification/sessions/{id}/receipt
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request) {
	operatorID, sessionID, ok := h.sessionParams(w, r)
	if !ok {
		return
	}
	snapshot, err := h.service.Get(operatorID, sessionID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if snapshot.Current == nil {
		response.NotFound(w, "No transaction in focus")
		return
	}
	view := &ReceiptView{TransactionID: snapshot.Current.ID}
	if snapshot.Current.ReceiptURL != nil {
		view.ReceiptURL = *snapshot.Current.ReceiptURL
	}
	if h.receipts != nil {
		receiptURL, thumbURL, err := h.receipts.Resolve(r.Context(), snapshot.Current)
		if err != nil {
			log.Error().Err(err).Str("transaction_id", snapshot.Current.ID).Msg("failed to resolve receipt")
			response.InternalError(w)
			return
		}
		view.ReceiptURL = receiptURL
		view.ThumbnailURL = thumbURL
	}
	response.OK(w, view)
}

func (h *Handler) sessionParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	operatorID := middleware.GetOperatorID(r.Context())
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid session ID")
		return uuid.Nil, uuid.Nil, false
	}
	return operatorID, sessionID, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	switch {
	case errors.Is(err, ErrSessionNotFound):
		response.NotFound(w, "Session not found")
	case errors.Is(err, ErrSessionClosed):
		response.Error(w, http.StatusConflict, "SESSION_CLOSED", "Session is closed")
	case errors.Is(err, ErrSubmissionInFlight):
		response.Error(w, http.StatusConflict, "SUBMISSION_IN_FLIGHT", "Another submission is already in flight")
	case errors.Is(err, ErrNotReviewing):
		response.Conflict(w, "Session is not reviewing a transaction")
	case errors.Is(err, ErrNavigationBlocked):
		response.Conflict(w, "Cannot navigate to that position")
	case errors.As(err, &validationErr):
		response.ValidationError(w, map[string]string{validationErr.Field: validationErr.Message})
	case errors.Is(err, transaction.ErrNotEligible),
		errors.Is(err, transaction.ErrNotPending),
		errors.Is(err, transaction.ErrNotRedeem),
		errors.Is(err, transaction.ErrPaymentNotEligible):
		response.Error(w, http.StatusConflict, "NOT_ELIGIBLE", err.Error())
	case errors.Is(err, coins.ErrUnauthorized):
		response.Error(w, http.StatusUnauthorized, "UPSTREAM_AUTH", "The coins service rejected our credentials. Please re-authenticate.")
	default:
		var apiErr *coins.APIError
		if errors.As(err, &apiErr) {
			response.UpstreamError(w, apiErr.Message)
			return
		}
		var transportErr *coins.TransportError
		if errors.As(err, &transportErr) {
			response.UpstreamError(w, "")
			return
		}
		log.Error().Err(err).Msg("verification request failed")
		response.InternalError(w)
	}
}

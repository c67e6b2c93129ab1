package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coinly/coinadmin-api/internal/domain/transaction"
	"github.com/coinly/coinadmin-api/internal/middleware"
	"github.com/coinly/coinadmin-api/internal/pkg/coins"
)

func newTestHandler(t *testing.T, queue []*transaction.Transaction) (*Handler, uuid.UUID) {
	t.Helper()
	source := &fakeQueueSource{
		queue:   queue,
		profile: &coins.UserProfile{ID: "user-1", Name: "Asha", CoinBalance: 500},
	}
	manager := NewManager(time.Hour)
	service := NewService(source, &fakeDispatcher{}, manager, &recordingPublisher{}, nil, 0)
	return NewHandler(service, nil), uuid.New()
}

func doRequest(t *testing.T, handler *Handler, operatorID uuid.UUID, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reqBody = bytes.NewBuffer(payload)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	ctx := context.WithValue(req.Context(), middleware.OperatorIDKey, operatorID)
	ctx = context.WithValue(ctx, middleware.RoleKey, "operator")
	req = req.WithContext(ctx)

	router := chi.NewRouter()
	router.Mount("/verification", handler.Routes(passthrough))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func passthrough(next http.Handler) http.Handler {
	return next
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return env
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) *Snapshot {
	t.Helper()
	env := decodeEnvelope(t, rec)
	var snap Snapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return &snap
}

func TestHandlerOpenSession(t *testing.T) {
	handler, operatorID := newTestHandler(t, []*transaction.Transaction{pendingEarn("tx-1", 150)})

	rec := doRequest(t, handler, operatorID, http.MethodPost, "/verification/sessions", OpenSessionRequest{UserID: "user-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	snap := decodeSnapshot(t, rec)
	if snap.State != StateReviewing || snap.QueueSize != 1 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestHandlerOpenSessionRequiresUserID(t *testing.T) {
	handler, operatorID := newTestHandler(t, nil)

	rec := doRequest(t, handler, operatorID, http.MethodPost, "/verification/sessions", map[string]string{})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandlerSessionLifecycle(t *testing.T) {
	handler, operatorID := newTestHandler(t, []*transaction.Transaction{pendingEarn("tx-1", 150)})

	rec := doRequest(t, handler, operatorID, http.MethodPost, "/verification/sessions", OpenSessionRequest{UserID: "user-1"})
	snap := decodeSnapshot(t, rec)
	base := "/verification/sessions/" + snap.ID

	// Confirm the form, then approve
	confirmed := true
	rec = doRequest(t, handler, operatorID, http.MethodPatch, base+"/form", UpdateFormRequest{VerificationConfirmed: &confirmed})
	if rec.Code != http.StatusOK {
		t.Fatalf("form patch status=%d body=%s", rec.Code, rec.Body.String())
	}
	formSnap := decodeSnapshot(t, rec)
	if !formSnap.Form.VerificationConfirmed {
		t.Error("form patch not applied")
	}

	rec = doRequest(t, handler, operatorID, http.MethodPost, base+"/approve", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status=%d body=%s", rec.Code, rec.Body.String())
	}
	approved := decodeSnapshot(t, rec)
	if approved.State != StateEmpty {
		t.Errorf("expected empty after approving only item, got %s", approved.State)
	}

	rec = doRequest(t, handler, operatorID, http.MethodDelete, base, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("close status=%d", rec.Code)
	}

	rec = doRequest(t, handler, operatorID, http.MethodGet, base, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("closed session status=%d", rec.Code)
	}
}

func TestHandlerApproveUnconfirmedForm(t *testing.T) {
	handler, operatorID := newTestHandler(t, []*transaction.Transaction{pendingEarn("tx-1", 150)})

	rec := doRequest(t, handler, operatorID, http.MethodPost, "/verification/sessions", OpenSessionRequest{UserID: "user-1"})
	snap := decodeSnapshot(t, rec)

	rec = doRequest(t, handler, operatorID, http.MethodPost, "/verification/sessions/"+snap.ID+"/approve", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Error == nil || env.Error.Details["verification_confirmed"] == "" {
		t.Errorf("validation detail missing: %s", rec.Body.String())
	}
}

func TestHandlerAdjustOutOfRange(t *testing.T) {
	handler, operatorID := newTestHandler(t, []*transaction.Transaction{pendingRedeem("tx-r", 300)})

	rec := doRequest(t, handler, operatorID, http.MethodPost, "/verification/sessions", OpenSessionRequest{UserID: "user-1"})
	snap := decodeSnapshot(t, rec)

	amount := int64(301)
	rec = doRequest(t, handler, operatorID, http.MethodPost, "/verification/sessions/"+snap.ID+"/adjust", AdjustRequest{NewRedeemedAmount: &amount})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandlerNavigationConflict(t *testing.T) {
	handler, operatorID := newTestHandler(t, []*transaction.Transaction{pendingEarn("tx-1", 150)})

	rec := doRequest(t, handler, operatorID, http.MethodPost, "/verification/sessions", OpenSessionRequest{UserID: "user-1"})
	snap := decodeSnapshot(t, rec)

	rec = doRequest(t, handler, operatorID, http.MethodPost, "/verification/sessions/"+snap.ID+"/next", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandlerForeignSessionHidden(t *testing.T) {
	handler, operatorID := newTestHandler(t, []*transaction.Transaction{pendingEarn("tx-1", 150)})

	rec := doRequest(t, handler, operatorID, http.MethodPost, "/verification/sessions", OpenSessionRequest{UserID: "user-1"})
	snap := decodeSnapshot(t, rec)

	rec = doRequest(t, handler, uuid.New(), http.MethodGet, "/verification/sessions/"+snap.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestHandlerBadSessionID(t *testing.T) {
	handler, operatorID := newTestHandler(t, nil)

	rec := doRequest(t, handler, operatorID, http.MethodGet, "/verification/sessions/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
}

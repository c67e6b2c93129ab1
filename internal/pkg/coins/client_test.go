package coins

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coinly/coinadmin-api/internal/domain/transaction"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, retries int) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(Config{
		BaseURL:      server.URL,
		ServiceToken: "service-token",
		Timeout:      2 * time.Second,
		ReadRetries:  retries,
	})
	return client, server
}

func writeEnvelope(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": status < 300,
		"data":    data,
	})
}

func TestListPendingTransactions(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/admin/users/user-1/transactions/pending" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if r.URL.Query().Get("sort") != "oldest" {
			t.Errorf("sort=%s", r.URL.Query().Get("sort"))
		}
		if r.Header.Get("Authorization") != "Bearer service-token" {
			t.Errorf("auth=%s", r.Header.Get("Authorization"))
		}
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"transactions": []map[string]interface{}{
				{"id": "tx-1", "userId": "user-1", "type": "EARN", "status": "PENDING", "isOldestPending": true},
				{"id": "tx-2", "userId": "user-1", "type": "REDEEM", "status": "PENDING", "coinsRedeemed": 120},
			},
			"meta": map[string]int{"total": 2, "page": 1, "limit": 50},
		})
	}, 0)

	txs, meta, err := client.ListPendingTransactions(context.Background(), "user-1", 1, 50)
	if err != nil {
		t.Fatalf("ListPendingTransactions: %v", err)
	}
	if len(txs) != 2 || meta.Total != 2 {
		t.Fatalf("len=%d total=%d", len(txs), meta.Total)
	}
	if txs[0].IsOldestPending == nil || !*txs[0].IsOldestPending {
		t.Error("isOldestPending not decoded")
	}
	if txs[1].IsOldestPending != nil {
		t.Error("absent isOldestPending must stay nil, not false")
	}
	if txs[1].RedeemedCoins() != 120 {
		t.Errorf("coinsRedeemed=%d", txs[1].RedeemedCoins())
	}
}

func TestReadRetriesOn5xx(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"transactions": []map[string]interface{}{},
			"meta":         map[string]int{"total": 0},
		})
	}, 3)

	_, _, err := client.ListPendingTransactions(context.Background(), "user-1", 1, 50)
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls=%d", calls)
	}
}

func TestReadNotRetriedOn4xx(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   map[string]string{"code": "NOT_FOUND", "message": "User not found"},
		})
	}, 3)

	_, err := client.GetUserProfile(context.Background(), "nope")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "User not found" {
		t.Errorf("apiErr=%+v", apiErr)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("4xx must not be retried, calls=%d", calls)
	}
}

func TestMutationsNeverRetried(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}, 3)

	_, err := client.Approve(context.Background(), "tx-1", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("mutation retried, calls=%d", calls)
	}
}

func TestApproveSendsNotes(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/internal/admin/transactions/tx-1/approve" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["adminNotes"] != "verified in person" {
			t.Errorf("adminNotes=%q", body["adminNotes"])
		}
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"id": "tx-1", "userId": "user-1", "type": "EARN", "status": "APPROVED",
		})
	}, 0)

	tx, err := client.Approve(context.Background(), "tx-1", "verified in person")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if tx.Status != transaction.StatusApproved {
		t.Errorf("status=%s", tx.Status)
	}
}

func TestAdjustRedeemPayload(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/internal/admin/transactions/tx-r/redeem-amount" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["newRedeemedAmount"] != float64(75) {
			t.Errorf("newRedeemedAmount=%v", body["newRedeemedAmount"])
		}
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"id": "tx-r", "userId": "user-1", "type": "REDEEM", "status": "PENDING", "coinsRedeemed": 75,
		})
	}, 0)

	tx, err := client.AdjustRedeem(context.Background(), "tx-r", 75, "")
	if err != nil {
		t.Fatalf("AdjustRedeem: %v", err)
	}
	if tx.RedeemedCoins() != 75 {
		t.Errorf("coinsRedeemed=%d", tx.RedeemedCoins())
	}
}

func TestUnauthorizedSentinel(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   map[string]string{"code": "FORBIDDEN", "message": "Bad service token"},
		})
	}, 0)

	err := client.Reject(context.Background(), "tx-1", "reason", "")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestTransportErrorClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := NewClient(Config{BaseURL: server.URL, Timeout: time.Second})

	_, err := client.GetUserProfile(context.Background(), "user-1")
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestBareObjectResponse(t *testing.T) {
	// Some endpoints answer without the envelope
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "user-1", "name": "Asha", "coinBalance": 470,
		})
	}, 0)

	profile, err := client.GetUserProfile(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetUserProfile: %v", err)
	}
	if profile.Name != "Asha" || profile.CoinBalance != 470 {
		t.Errorf("profile=%+v", profile)
	}
}

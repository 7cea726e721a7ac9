package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		Endpoint: srv.URL,
		ApiKey:   "test-key",
		Asset:    "READ",
	})
}

func TestSubmitSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/transfers", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "addr1", req["recipient"])
		assert.Equal(t, float64(100), req["amount"])
		assert.Equal(t, "READ", req["asset"])
		assert.Equal(t, "book-42", req["memo"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"ref": "tx_1"})
	})

	ref, err := client.Submit(context.Background(), "addr1", 100, "book-42")
	assert.NoError(t, err)
	assert.Equal(t, "tx_1", ref)
}

func TestSubmitRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"message": "invalid recipient"})
	})

	_, err := client.Submit(context.Background(), "bogus", 100, "book-42")
	assert.True(t, IsRejected(err))
	assert.False(t, IsUnavailable(err))
	assert.Contains(t, err.Error(), "invalid recipient")
}

func TestSubmitServerErrorIsUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Submit(context.Background(), "addr1", 100, "book-42")
	assert.True(t, IsUnavailable(err))
	assert.False(t, IsRejected(err))
}

func TestSubmitTransportFailureIsUnavailable(t *testing.T) {
	// Endpoint nobody listens on: the request never completes.
	client := NewClient(Config{Endpoint: "http://127.0.0.1:1", TimeoutSeconds: 1})

	_, err := client.Submit(context.Background(), "addr1", 100, "book-42")
	assert.True(t, IsUnavailable(err))
}

func TestSubmitBrokenSuccessBodyIsUnavailable(t *testing.T) {
	// 2xx with an unreadable body: the transfer was accepted but the reference
	// is lost. Must classify as unknown so reconciliation can recover it.
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("not json"))
	})

	_, err := client.Submit(context.Background(), "addr1", 100, "book-42")
	assert.True(t, IsUnavailable(err))
}

func TestGetByReference(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transfers/tx_1", r.URL.Path)
		json.NewEncoder(w).Encode(Transaction{
			Ref:       "tx_1",
			Recipient: "addr1",
			Amount:    100,
			Confirmed: true,
		})
	})

	tx, err := client.GetByReference(context.Background(), "tx_1")
	assert.NoError(t, err)
	assert.Equal(t, "addr1", tx.Recipient)
	assert.True(t, tx.Confirmed)
}

func TestGetByReferenceNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetByReference(context.Background(), "tx_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindByIdentity(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "addr1", q.Get("recipient"))
		assert.Equal(t, "100", q.Get("amount"))
		assert.Equal(t, "book-42", q.Get("memo"))
		assert.Equal(t, "READ", q.Get("asset"))

		since, err := time.Parse(time.RFC3339, q.Get("since"))
		assert.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(-24*time.Hour), since, time.Minute)

		json.NewEncoder(w).Encode(map[string]any{
			"transfers": []Transaction{
				{Ref: "tx_a", Recipient: "addr1", Amount: 100, Confirmed: true},
				{Ref: "tx_b", Recipient: "addr1", Amount: 100, Confirmed: false},
			},
		})
	})

	txs, err := client.FindByIdentity(context.Background(), "addr1", 100, "book-42", 24*time.Hour)
	assert.NoError(t, err)
	assert.Len(t, txs, 2)
	assert.Equal(t, "tx_a", txs[0].Ref)
}

func TestFindByIdentityOutage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.FindByIdentity(context.Background(), "addr1", 100, "book-42", time.Hour)
	assert.True(t, IsUnavailable(err))
}

package algolab

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bisttrading/platform/internal/execution/model"
	"github.com/bisttrading/platform/internal/execution/venue"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL, APIKey: "test-key"}, zaptest.NewLogger(t))
}

func TestSubmitOrderSendsPayloadAndParsesReply(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders/place", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("APIKEY"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "AKBNK", payload["symbol"])
		assert.Equal(t, "15.75", payload["price"])
		assert.EqualValues(t, 1000, payload["quantity"])

		json.NewEncoder(w).Encode(map[string]any{
			"order_id":        "V-42",
			"client_order_id": payload["client_order_id"],
			"symbol":          "AKBNK",
			"status":          "NEW",
		})
	})

	resp, err := client.SubmitOrder(context.Background(), &model.OrderRequest{
		ClientOrderID: "ord-1",
		Symbol:        "AKBNK",
		Side:          model.OrderSideBuy,
		Type:          model.OrderTypeLimit,
		Quantity:      1000,
		Price:         decimal.NewFromFloat(15.75),
	})

	require.NoError(t, err)
	assert.Equal(t, "V-42", resp.VenueOrderID)
	assert.Equal(t, "ord-1", resp.ClientOrderID)
	assert.Equal(t, model.OrderStatusNew, resp.Status)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestRequestsCarryCheckerSignature(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		h := sha256.New()
		h.Write([]byte("test-secret"))
		h.Write([]byte(r.URL.Path))
		h.Write(body)
		assert.Equal(t, hex.EncodeToString(h.Sum(nil)), r.Header.Get("Checker"))

		json.NewEncoder(w).Encode(map[string]any{"order_id": "V-1", "status": "NEW"})
	}))
	t.Cleanup(server.Close)
	client := New(Config{BaseURL: server.URL, APIKey: "test-key", APISecret: "test-secret"}, zaptest.NewLogger(t))

	_, err := client.SubmitOrder(context.Background(), &model.OrderRequest{
		ClientOrderID: "ord-1",
		Symbol:        "GARAN",
		Side:          model.OrderSideSell,
		Type:          model.OrderTypeLimit,
		Quantity:      500,
		Price:         decimal.NewFromFloat(92.10),
	})
	require.NoError(t, err)

	// Bodyless requests sign the path alone.
	_, err = client.QueryOrder(context.Background(), "ord-1")
	require.NoError(t, err)
}

func TestCancelOrderUsesVenueIDPath(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/V-42/cancel", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"order_id": "V-42",
			"status":   "CANCELLED",
		})
	})

	resp, err := client.CancelOrder(context.Background(), "ord-1", "V-42")

	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, resp.Status)
}

func TestErrorStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   venue.ErrorKind
	}{
		{http.StatusServiceUnavailable, venue.KindUnavailable},
		{http.StatusTooManyRequests, venue.KindRateLimited},
		{http.StatusBadRequest, venue.KindValidation},
		{http.StatusUnauthorized, venue.KindAuth},
	}
	for _, tc := range cases {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			json.NewEncoder(w).Encode(map[string]string{"message": "nope"})
		})

		_, err := client.QueryOrder(context.Background(), "ord-1")

		require.Error(t, err, "status %d", tc.status)
		ve := venue.AsError(err)
		assert.Equal(t, tc.kind, ve.Kind, "status %d", tc.status)
		assert.Equal(t, tc.status, ve.Status)
		assert.Equal(t, "nope", ve.Message)
	}
}

func TestContextCancellationSurfacesTimeout(t *testing.T) {
	started := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := client.QueryOrder(ctx, "ord-1")
	require.Error(t, err)
}

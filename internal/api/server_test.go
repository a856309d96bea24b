package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bisttrading/platform/internal/execution"
	"github.com/bisttrading/platform/internal/execution/events"
	"github.com/bisttrading/platform/internal/execution/model"
	"github.com/bisttrading/platform/internal/execution/risk"
	"github.com/bisttrading/platform/internal/execution/tracker"
	"github.com/bisttrading/platform/internal/execution/venue"
)

type stubClient struct{}

func (stubClient) SubmitOrder(ctx context.Context, req *model.OrderRequest) (*model.OrderResponse, error) {
	return &model.OrderResponse{
		ClientOrderID: req.ClientOrderID,
		VenueOrderID:  "V-" + req.ClientOrderID,
		Status:        model.OrderStatusNew,
	}, nil
}

func (stubClient) ModifyOrder(ctx context.Context, req *venue.ModifyRequest) (*model.OrderResponse, error) {
	return &model.OrderResponse{ClientOrderID: req.ClientOrderID, Status: model.OrderStatusNew}, nil
}

func (stubClient) CancelOrder(ctx context.Context, clientOrderID, venueOrderID string) (*model.OrderResponse, error) {
	return &model.OrderResponse{ClientOrderID: clientOrderID, Status: model.OrderStatusCancelled}, nil
}

func (stubClient) QueryOrder(ctx context.Context, clientOrderID string) (*model.OrderResponse, error) {
	return &model.OrderResponse{ClientOrderID: clientOrderID, Status: model.OrderStatusNew}, nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(events.OrderEvent) {}

func newTestServer(t *testing.T, ready func() bool) *Server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	trk := tracker.New(tracker.Config{
		SweepInterval: 5 * time.Minute,
		StaleAfter:    time.Hour,
	}, nopPublisher{}, logger)
	gate := risk.NewGate(risk.DefaultLimits(), &risk.StaticProvider{}, logger)
	svc := execution.NewService(gate, stubClient{}, trk, logger)
	return NewServer(svc, ready, logger)
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, func() bool { return true })

	w := doJSON(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	notReady := newTestServer(t, func() bool { return false })
	w = doJSON(t, notReady, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSubmitOrderEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	w := doJSON(t, s, http.MethodPost, "/api/v1/orders", `{
		"client_order_id": "ord-1",
		"account_id": "acc-1",
		"symbol": "AKBNK",
		"side": "BUY",
		"type": "LIMIT",
		"quantity": 100,
		"price": "15.75"
	}`)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var reply map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	assert.Equal(t, true, reply["accepted"])

	// The order is queryable by client id and by venue id.
	w = doJSON(t, s, http.MethodGet, "/api/v1/orders/ord-1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, s, http.MethodGet, "/api/v1/orders/V-ord-1", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSubmitOrderRiskRejection(t *testing.T) {
	s := newTestServer(t, nil)

	// 10000 x 15.75 breaches the default 20000 order value ceiling.
	w := doJSON(t, s, http.MethodPost, "/api/v1/orders", `{
		"client_order_id": "ord-big",
		"account_id": "acc-1",
		"symbol": "AKBNK",
		"side": "BUY",
		"type": "LIMIT",
		"quantity": 10000,
		"price": "15.75"
	}`)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var reply map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	assert.Equal(t, false, reply["accepted"])
	assert.Contains(t, reply["reason"], "order value")
}

func TestSubmitOrderMalformedBody(t *testing.T) {
	s := newTestServer(t, nil)

	w := doJSON(t, s, http.MethodPost, "/api/v1/orders", `{not json`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelOrderEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	doJSON(t, s, http.MethodPost, "/api/v1/orders", `{
		"client_order_id": "ord-1",
		"account_id": "acc-1",
		"symbol": "AKBNK",
		"side": "BUY",
		"type": "LIMIT",
		"quantity": 100,
		"price": "15.75"
	}`)

	w := doJSON(t, s, http.MethodDelete, "/api/v1/orders/ord-1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodDelete, "/api/v1/orders/ord-1", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "cancelled order is gone")
}

func TestGetUnknownOrder(t *testing.T) {
	s := newTestServer(t, nil)

	w := doJSON(t, s, http.MethodGet, "/api/v1/orders/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListOrders(t *testing.T) {
	s := newTestServer(t, nil)

	for _, id := range []string{"a", "b"} {
		doJSON(t, s, http.MethodPost, "/api/v1/orders", `{
			"client_order_id": "`+id+`",
			"account_id": "acc-1",
			"symbol": "GARAN",
			"side": "BUY",
			"type": "LIMIT",
			"quantity": 10,
			"price": "10.00"
		}`)
	}

	w := doJSON(t, s, http.MethodGet, "/api/v1/orders", "")
	require.Equal(t, http.StatusOK, w.Code)

	var reply struct {
		Active int `json:"active"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	assert.Equal(t, 2, reply.Active)
}

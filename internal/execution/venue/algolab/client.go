// Package algolab implements the venue.Client contract against the AlgoLab
// brokerage REST API, plus the websocket stream that carries order updates.
package algolab

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/bisttrading/platform/internal/execution/model"
	"github.com/bisttrading/platform/internal/execution/venue"
)

// Config holds the AlgoLab connection settings.
type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
}

// Client is the AlgoLab REST client. It performs no retries and no
// resilience of its own; that is the gateway's job.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// New creates an AlgoLab client. The http.Client carries no timeout of its
// own; the gateway supplies a per-attempt deadline via context.
func New(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: logger,
	}
}

func (c *Client) SubmitOrder(ctx context.Context, req *model.OrderRequest) (*model.OrderResponse, error) {
	payload := orderPayload{
		ClientOrderID: req.ClientOrderID,
		AccountID:     req.AccountID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Quantity:      req.Quantity,
		TimeInForce:   req.TimeInForce,
		MarginBuy:     req.MarginBuy,
		ShortSale:     req.ShortSale,
	}
	if !req.Price.IsZero() {
		payload.Price = req.Price.String()
	}
	if !req.StopPrice.IsZero() {
		payload.StopPrice = req.StopPrice.String()
	}
	return c.do(ctx, http.MethodPost, "/orders/place", payload)
}

func (c *Client) ModifyOrder(ctx context.Context, req *venue.ModifyRequest) (*model.OrderResponse, error) {
	payload := modifyPayload{ClientOrderID: req.ClientOrderID}
	if !req.NewPrice.IsZero() {
		payload.Price = req.NewPrice.String()
	}
	if req.NewQuantity > 0 {
		payload.Quantity = req.NewQuantity
	}
	path := fmt.Sprintf("/orders/%s/modify", req.VenueOrderID)
	return c.do(ctx, http.MethodPost, path, payload)
}

func (c *Client) CancelOrder(ctx context.Context, clientOrderID, venueOrderID string) (*model.OrderResponse, error) {
	path := fmt.Sprintf("/orders/%s/cancel", venueOrderID)
	return c.do(ctx, http.MethodPost, path, map[string]string{
		"client_order_id": clientOrderID,
	})
}

func (c *Client) QueryOrder(ctx context.Context, clientOrderID string) (*model.OrderResponse, error) {
	path := fmt.Sprintf("/orders/%s", clientOrderID)
	return c.do(ctx, http.MethodGet, path, nil)
}

// checker computes the request signature AlgoLab verifies: the hex SHA-256
// of the api secret, the request path and the raw body.
func (c *Client) checker(path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(c.cfg.APISecret))
	h.Write([]byte(path))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*model.OrderResponse, error) {
	var buf []byte
	var body io.Reader
	if payload != nil {
		var err error
		buf, err = json.Marshal(payload)
		if err != nil {
			return nil, &venue.Error{Kind: venue.KindValidation, Message: err.Error(), Err: err}
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, &venue.Error{Kind: venue.KindValidation, Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("APIKEY", c.cfg.APIKey)
	req.Header.Set("Checker", c.checker(path, buf))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, venue.AsError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, venue.AsError(err)
	}

	if resp.StatusCode != http.StatusOK {
		kind := venue.ClassifyStatus(resp.StatusCode)
		msg := string(raw)
		var er errorReply
		if json.Unmarshal(raw, &er) == nil && er.Message != "" {
			msg = er.Message
		}
		c.logger.Debug("algolab request failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("kind", kind.String()))
		return nil, &venue.Error{Kind: kind, Status: resp.StatusCode, Message: msg}
	}

	var reply orderReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, &venue.Error{Kind: venue.KindUnavailable, Message: fmt.Sprintf("malformed venue reply: %s", err), Err: err}
	}
	return reply.toResponse(), nil
}

package algolab

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bisttrading/platform/internal/execution/model"
)

// streamMessage is the envelope AlgoLab pushes over the websocket. Only
// order messages are consumed here; tick and depth messages belong to the
// market-data service.
type streamMessage struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// StreamConfig holds websocket stream settings.
type StreamConfig struct {
	URL          string
	APIKey       string
	PingInterval time.Duration
	// ReconnectWait is the pause before re-dialing after a dropped
	// connection.
	ReconnectWait time.Duration
}

// Stream consumes AlgoLab's order-update feed and delivers each update as an
// OrderResponse to the handler. The handler is invoked from a single
// goroutine, so per-order ordering matches the wire ordering.
type Stream struct {
	cfg     StreamConfig
	handler func(*model.OrderResponse)
	logger  *zap.Logger
}

// NewStream creates a stream that feeds handler. Run must be called to
// start consuming.
func NewStream(cfg StreamConfig, handler func(*model.OrderResponse), logger *zap.Logger) *Stream {
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 5 * time.Second
	}
	return &Stream{cfg: cfg, handler: handler, logger: logger}
}

// Run connects and consumes until ctx is cancelled, reconnecting with a
// fixed pause on any failure.
func (s *Stream) Run(ctx context.Context) {
	for {
		if err := s.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("order stream disconnected, reconnecting",
				zap.Error(err),
				zap.Duration("wait", s.cfg.ReconnectWait))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.ReconnectWait):
		}
	}
}

func (s *Stream) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{}
	if s.cfg.APIKey != "" {
		header.Set("APIKEY", s.cfg.APIKey)
	}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	s.logger.Info("order stream connected", zap.String("url", s.cfg.URL))

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if s.cfg.PingInterval > 0 {
		go s.keepAlive(ctx, conn, done)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg streamMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Debug("dropping malformed stream message", zap.Error(err))
			continue
		}
		if msg.Type != "order" {
			continue
		}

		var reply orderReply
		if err := json.Unmarshal(msg.Content, &reply); err != nil {
			s.logger.Debug("dropping malformed order update", zap.Error(err))
			continue
		}
		s.handler(reply.toResponse())
	}
}

func (s *Stream) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

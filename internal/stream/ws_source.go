package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmittakarin8/solflow/internal/observability"
)

// WSConfig configures WebSocket source behavior.
type WSConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential backoff.
	MaxReconnectDelay time.Duration
	// ReadTimeout is the per-message read deadline.
	ReadTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
	}
}

// WSSource delivers decoded instruction envelopes from the upstream decoder
// gateway over a WebSocket, reconnecting with exponential backoff until
// closed.
type WSSource struct {
	endpoint string
	token    string
	config   WSConfig
	logger   *log.Logger
	closed   atomic.Bool
}

// NewWSSource creates a source for the given endpoint. token is sent as the
// X-Token header on connect; pass "" for unauthenticated endpoints.
func NewWSSource(endpoint, token string, config *WSConfig, logger *log.Logger) *WSSource {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}
	return &WSSource{
		endpoint: endpoint,
		token:    token,
		config:   cfg,
		logger:   logger,
	}
}

// Subscribe starts delivery. The returned channel closes when ctx is
// cancelled or the source is closed.
func (s *WSSource) Subscribe(ctx context.Context) (<-chan Envelope, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to stream: %w", err)
	}

	out := make(chan Envelope, 256)
	go s.readLoop(ctx, conn, out)
	return out, nil
}

// Close terminates the stream; the delivery channel closes after the current
// read returns.
func (s *WSSource) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *WSSource) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if s.token != "" {
		header.Set("X-Token", s.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.endpoint, header)
	return conn, err
}

// readLoop reads envelopes until cancelled, reconnecting on errors.
func (s *WSSource) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- Envelope) {
	defer close(out)
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	delay := s.config.ReconnectDelay

	for {
		if s.closed.Load() || ctx.Err() != nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			conn = nil

			// Reconnect with exponential backoff.
			for {
				if s.closed.Load() || ctx.Err() != nil {
					return
				}
				s.logger.Printf("stream read failed, reconnecting in %s: %v", delay, err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(delay):
				}

				observability.RecordStreamReconnect()
				conn, err = s.dial(ctx)
				if err == nil {
					delay = s.config.ReconnectDelay
					break
				}
				delay *= 2
				if delay > s.config.MaxReconnectDelay {
					delay = s.config.MaxReconnectDelay
				}
			}
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Printf("malformed stream message: %v", err)
			continue
		}

		select {
		case out <- env:
		case <-ctx.Done():
			return
		}
	}
}

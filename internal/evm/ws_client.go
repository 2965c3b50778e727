package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSConfig configures WebSocket client behavior.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// HeadSubscriber streams new block numbers from an EVM node via
// eth_subscribe("newHeads"). It reconnects with capped backoff and
// resubscribes after a drop. The treasury watcher uses it to refresh
// stale snapshots when a chain produces blocks.
type HeadSubscriber struct {
	endpoint string
	config   WSConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	heads chan int64
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewHeadSubscriber connects to the endpoint and starts streaming heads.
func NewHeadSubscriber(ctx context.Context, endpoint string, config *WSConfig) (*HeadSubscriber, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	s := &HeadSubscriber{
		endpoint: endpoint,
		config:   cfg,
		heads:    make(chan int64, 64),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	if err := s.subscribe(); err != nil {
		s.conn.Close()
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	return s, nil
}

// Heads returns the stream of new block numbers. Slow consumers lose
// heads rather than stall the reader.
func (s *HeadSubscriber) Heads() <-chan int64 {
	return s.heads
}

// Close shuts down the subscriber and closes the head channel.
func (s *HeadSubscriber) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.heads)
	return nil
}

// connect establishes the WebSocket connection.
func (s *HeadSubscriber) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

// subscribe sends the newHeads subscription request.
func (s *HeadSubscriber) subscribe() error {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      s.requestID.Add(1),
		Method:  "eth_subscribe",
		Params:  []interface{}{"newHeads"},
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("subscribe newHeads: %w", err)
	}
	return nil
}

// headNotification is the eth_subscription message payload.
type headNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Number string `json:"number"`
		} `json:"result"`
	} `json:"params"`
}

// readLoop reads notifications and reconnects on failure.
func (s *HeadSubscriber) readLoop() {
	defer s.wg.Done()

	delay := s.config.ReconnectDelay

	for {
		select {
		case <-s.done:
			return
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			// Reconnect with capped backoff, then resubscribe
			select {
			case <-s.done:
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > s.config.MaxReconnectDelay {
				delay = s.config.MaxReconnectDelay
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			reconnErr := s.connect(ctx)
			cancel()
			if reconnErr != nil {
				continue
			}
			if err := s.subscribe(); err != nil {
				continue
			}
			continue
		}

		delay = s.config.ReconnectDelay

		var note headNotification
		if err := json.Unmarshal(data, &note); err != nil {
			continue
		}
		if note.Method != "eth_subscription" || note.Params.Result.Number == "" {
			continue
		}

		n, err := parseQuantity(note.Params.Result.Number)
		if err != nil {
			continue
		}

		select {
		case s.heads <- n.Int64():
		default:
			// Drop when the consumer lags
		}
	}
}

package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// StreamHandler receives the payload of one stream message.
type StreamHandler func(data json.RawMessage)

// StreamClient consumes the spot venue's combined websocket streams. A
// lost connection is retried with exponential backoff up to a cap; after
// maxReconnects consecutive failures the client gives up and reports the
// feed as stopped.
type StreamClient struct {
	baseURL       string
	reconnectWait time.Duration
	maxReconnects int
	logger        *logrus.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	handlers  map[string]StreamHandler
}

type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

func NewStreamClient(baseURL string, reconnectWait time.Duration, maxReconnects int, logger *logrus.Logger) *StreamClient {
	return &StreamClient{
		baseURL:       baseURL,
		reconnectWait: reconnectWait,
		maxReconnects: maxReconnects,
		logger:        logger,
		handlers:      make(map[string]StreamHandler),
	}
}

// RegisterHandler routes messages for one stream name, e.g.
// "solusdt@bookTicker". Must be called before Run.
func (sc *StreamClient) RegisterHandler(stream string, handler StreamHandler) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.handlers[strings.ToLower(stream)] = handler
}

// Run connects and reads until the context is cancelled or the reconnect
// budget is exhausted.
func (sc *StreamClient) Run(ctx context.Context) error {
	attempts := 0
	for {
		if err := sc.connect(ctx); err != nil {
			attempts++
			if sc.maxReconnects > 0 && attempts > sc.maxReconnects {
				return fmt.Errorf("stream reconnect budget exhausted: %w", err)
			}

			wait := sc.backoff(attempts)
			sc.logger.WithError(err).WithFields(logrus.Fields{
				"attempt": attempts,
				"wait":    wait,
			}).Warn("Stream connection failed, retrying")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		attempts = 0
		err := sc.readLoop(ctx)
		sc.disconnect()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		sc.logger.WithError(err).Warn("Stream disconnected, reconnecting")
	}
}

func (sc *StreamClient) Connected() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.connected
}

func (sc *StreamClient) connect(ctx context.Context) error {
	sc.mu.Lock()
	streams := make([]string, 0, len(sc.handlers))
	for name := range sc.handlers {
		streams = append(streams, name)
	}
	sc.mu.Unlock()

	if len(streams) == 0 {
		return fmt.Errorf("no streams registered")
	}

	endpoint := fmt.Sprintf("%s/stream?streams=%s",
		strings.TrimRight(sc.baseURL, "/"),
		strings.Join(streams, "/"))

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to stream: %w", err)
	}

	sc.mu.Lock()
	sc.conn = conn
	sc.connected = true
	sc.mu.Unlock()

	sc.logger.WithField("streams", streams).Info("Stream connected")
	return nil
}

func (sc *StreamClient) readLoop(ctx context.Context) error {
	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case <-ctx.Done():
				sc.disconnect()
				return
			case <-done:
				return
			case <-pingTicker.C:
				sc.mu.Lock()
				if sc.connected {
					if err := sc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						sc.logger.WithError(err).Error("Failed to send ping")
					}
				}
				sc.mu.Unlock()
			}
		}
	}()

	for {
		var envelope streamEnvelope
		if err := sc.conn.ReadJSON(&envelope); err != nil {
			return err
		}

		sc.mu.Lock()
		handler, ok := sc.handlers[strings.ToLower(envelope.Stream)]
		sc.mu.Unlock()

		if ok {
			handler(envelope.Data)
		}
	}
}

func (sc *StreamClient) disconnect() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.connected = false
	if sc.conn != nil {
		sc.conn.Close()
		sc.conn = nil
	}
}

func (sc *StreamClient) backoff(attempt int) time.Duration {
	wait := sc.reconnectWait
	if wait <= 0 {
		wait = time.Second
	}
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= 60*time.Second {
			return 60 * time.Second
		}
	}
	return wait
}

package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"order_go/internal/domain"
	"order_go/internal/infra"

	"github.com/gorilla/websocket"
)

const (
	streamMaxRetries  = 10
	streamReadTimeout = 60 * time.Second
)

// StreamSource keeps the last quote per symbol from the pricing service's websocket feed.
// Quote never blocks on the network; freshness is enforced by the resolver's max age.
type StreamSource struct {
	url     string
	symbols []string
	backoff infra.Backoff

	quotesMu sync.RWMutex
	quotes   map[string]domain.Quote

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	logger    *slog.Logger
}

var _ domain.PriceSource = (*StreamSource)(nil)

// NewStreamSource creates a stream consumer for symbols.
func NewStreamSource(url string, symbols []string) *StreamSource {
	upper := make([]string, len(symbols))
	for i, s := range symbols {
		upper[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	return &StreamSource{
		url:     url,
		symbols: upper,
		backoff: infra.Backoff{Base: time.Second, Max: 60 * time.Second},
		quotes:  make(map[string]domain.Quote),
		logger:  slog.Default().With(slog.String("module", "price_stream")),
	}
}

// Connect starts the WebSocket connection with automatic reconnection
func (s *StreamSource) Connect(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.connectionLoop(ctx)

	return nil
}

// Quote returns the last streamed quote for symbol.
func (s *StreamSource) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return domain.Quote{}, fmt.Errorf("%w: %v", domain.ErrPriceUnavailable, err)
	}

	s.quotesMu.RLock()
	q, ok := s.quotes[symbol]
	s.quotesMu.RUnlock()

	if !ok {
		return domain.Quote{}, fmt.Errorf("%w: no streamed quote for %s", domain.ErrPriceUnavailable, symbol)
	}
	return q, nil
}

func (s *StreamSource) connectionLoop(ctx context.Context) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Price stream panic recovered", slog.Any("panic", r))
		}
	}()

	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Price stream connection loop stopped")
			return
		default:
		}

		if err := s.connect(ctx); err != nil {
			s.logger.Warn("Price stream connection failed",
				slog.Any("error", err),
				slog.Int("retry", retryCount),
			)

			delay := s.backoff.Delay(retryCount)
			retryCount++
			if retryCount > streamMaxRetries {
				s.logger.Error("Price stream max retries exceeded, resetting counter")
				retryCount = 0
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retryCount = 0
		s.readLoop(ctx)
	}
}

func (s *StreamSource) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	header := make(http.Header)
	header.Add("User-Agent", infra.DefaultUserAgent)

	conn, _, err := dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()

	if err := s.subscribe(); err != nil {
		s.closeConnection()
		return fmt.Errorf("subscribe failed: %w", err)
	}

	s.logger.Info("Price stream connected", slog.Int("symbols", len(s.symbols)))
	return nil
}

// subscribe sends {"action":"subscribe","symbols":[...]}
func (s *StreamSource) subscribe() error {
	msg, err := json.Marshal(map[string]any{
		"action":  "subscribe",
		"symbols": s.symbols,
	})
	if err != nil {
		return err
	}
	return s.threadSafeWrite(websocket.TextMessage, msg)
}

func (s *StreamSource) threadSafeWrite(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("connection is nil")
	}
	return conn.WriteMessage(messageType, data)
}

func (s *StreamSource) readLoop(ctx context.Context) {
	// unblock ReadMessage on shutdown
	stop := context.AfterFunc(ctx, s.closeConnection)
	defer stop()

	for {
		if ctx.Err() != nil {
			return
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Price stream read error", slog.Any("error", err))
			}
			s.closeConnection()
			return
		}

		s.handleMessage(message)
	}
}

func (s *StreamSource) handleMessage(message []byte) {
	q, err := decodeQuote(message, "stream", time.Now().UTC())
	if err != nil {
		s.logger.Debug("Price stream message parse error", slog.Any("error", err))
		return
	}
	if q.Symbol == "" {
		return
	}
	if !q.Price.IsPositive() {
		s.logger.Warn("Ignoring non-positive streamed price",
			slog.String("symbol", q.Symbol),
			slog.String("price", q.Price.String()),
		)
		return
	}

	s.quotesMu.Lock()
	prev, ok := s.quotes[q.Symbol]
	if !ok || !q.Timestamp.Before(prev.Timestamp) {
		s.quotes[q.Symbol] = q
	}
	s.quotesMu.Unlock()
}

func (s *StreamSource) closeConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connected = false
}

// Disconnect closes the WebSocket connection
func (s *StreamSource) Disconnect() {
	if s.cancel != nil {
		s.cancel()
	}
	s.closeConnection()
	s.wg.Wait()
	s.logger.Info("Price stream disconnected")
}

// IsConnected reports whether the stream currently holds a live connection.
func (s *StreamSource) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

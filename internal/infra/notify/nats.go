// Package notify holds the EventPublisher implementations.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"order_go/internal/domain"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is where settlement events are published.
const DefaultSubject = "order_filled"

type natsConn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes settlement events as JSON on a NATS subject.
type NATSPublisher struct {
	conn    natsConn
	nc      *nats.Conn
	subject string
}

var _ domain.EventPublisher = (*NATSPublisher)(nil)

// NewNATSPublisher connects to url.
func NewNATSPublisher(url, clientName, subject string) (*NATSPublisher, error) {
	logger := slog.Default().With(slog.String("module", "nats"))
	opts := []nats.Option{
		nats.Name(clientName),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", slog.Any("error", err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: nc, nc: nc, subject: subject}, nil
}

// Publish sends ev. It does not wait for subscribers.
func (p *NATSPublisher) Publish(ctx context.Context, ev domain.OrderSettledEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close drains and closes the NATS connection
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// Package event delivers settlement notifications off the order placement path.
package event

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"order_go/internal/domain"
	"order_go/internal/infra"
)

const (
	publishTimeout = 5 * time.Second
	drainTimeout   = 5 * time.Second
)

// Dispatcher buffers settlement events and publishes them from a single goroutine.
// Emit never blocks: when the buffer is full the event is dropped and counted.
type Dispatcher struct {
	inbox     chan domain.OrderSettledEvent
	publisher domain.EventPublisher
	metrics   *infra.Metrics
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

// NewDispatcher creates a dispatcher. metrics may be nil.
func NewDispatcher(bufferSize int, publisher domain.EventPublisher, metrics *infra.Metrics) *Dispatcher {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Dispatcher{
		inbox:     make(chan domain.OrderSettledEvent, bufferSize),
		publisher: publisher,
		metrics:   metrics,
		logger:    slog.Default().With(slog.String("module", "event_dispatcher")),
		done:      make(chan struct{}),
	}
}

// Emit queues ev for publishing and reports whether it was accepted.
func (d *Dispatcher) Emit(ev domain.OrderSettledEvent) bool {
	select {
	case d.inbox <- ev:
		return true
	default:
		d.metrics.RecordEventDropped()
		d.logger.Warn("Event buffer full, dropping settlement event",
			slog.String("order_id", ev.OrderID),
			slog.String("account", ev.AccountID),
		)
		return false
	}
}

// Run publishes events until ctx is cancelled, then flushes what is still buffered.
// It must run in a single goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	defer d.closeOnce.Do(func() { close(d.done) })
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Event dispatcher panic recovered", slog.Any("panic", r))
		}
	}()

	d.logger.Info("Event dispatcher started")

	for {
		select {
		case <-ctx.Done():
			d.drain()
			d.logger.Info("Event dispatcher stopped")
			return
		case ev := <-d.inbox:
			d.publish(context.WithoutCancel(ctx), ev)
		}
	}
}

// Done is closed once Run has returned.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case ev := <-d.inbox:
			if ctx.Err() != nil {
				d.metrics.RecordEventDropped()
				continue
			}
			d.publish(ctx, ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, ev domain.OrderSettledEvent) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := d.publisher.Publish(ctx, ev); err != nil {
		d.metrics.RecordEvent("failed")
		d.logger.Warn("Settlement event publish failed",
			slog.String("order_id", ev.OrderID),
			slog.Any("error", err),
		)
		return
	}
	d.metrics.RecordEvent("published")
}

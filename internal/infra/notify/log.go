package notify

import (
	"context"
	"log/slog"

	"order_go/internal/domain"
)

// LogPublisher writes settlement events to the structured log.
type LogPublisher struct {
	logger *slog.Logger
}

var _ domain.EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger.With(slog.String("module", "events"))}
}

func (p *LogPublisher) Publish(ctx context.Context, ev domain.OrderSettledEvent) error {
	p.logger.InfoContext(ctx, "Order settled",
		slog.String("order_id", ev.OrderID),
		slog.String("account", ev.AccountID),
		slog.String("symbol", ev.Symbol),
		slog.String("side", string(ev.Side)),
		slog.String("quantity", ev.Quantity.String()),
		slog.String("executed_price", ev.ExecutedPrice.String()),
		slog.Time("settled_at", ev.SettledAt),
	)
	return nil
}

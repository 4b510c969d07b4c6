// Package settlement moves funds for an order through the account ledger and
// reverses the movement when the order record cannot be completed.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"order_go/internal/domain"
	"order_go/internal/infra"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("order_go/internal/settlement")

const (
	opDebit    = "debit"
	opCredit   = "credit"
	opReversal = "reversal"

	stageSettlement = "settlement"
	stageReversal   = "reversal"
)

// Key returns the idempotency key of the settlement movement of orderID.
func Key(orderID string, side domain.Side) string {
	if side == domain.SideSell {
		return "order:" + orderID + ":" + opCredit
	}
	return "order:" + orderID + ":" + opDebit
}

// ReversalKey returns the idempotency key of the compensating movement of orderID.
func ReversalKey(orderID string) string {
	return "order:" + orderID + ":" + opReversal
}

// Request describes the funds movement for one order.
type Request struct {
	OrderID   string
	AccountID string
	Side      domain.Side
	Amount    decimal.Decimal
}

// Settlement is a completed funds movement.
type Settlement struct {
	Request
	Key       string
	SettledAt time.Time
}

// Config bounds retries and per-call latency.
type Config struct {
	MaxAttempts int
	CallTimeout time.Duration
	Backoff     infra.Backoff
}

// Coordinator settles order funds against an AccountLedger.
type Coordinator struct {
	ledger  domain.AccountLedger
	cfg     Config
	metrics *infra.Metrics
	logger  *slog.Logger
}

// NewCoordinator creates a coordinator. metrics may be nil.
func NewCoordinator(ledger domain.AccountLedger, cfg Config, metrics *infra.Metrics) *Coordinator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 3 * time.Second
	}
	return &Coordinator{
		ledger:  ledger,
		cfg:     cfg,
		metrics: metrics,
		logger:  slog.Default().With(slog.String("module", "settlement")),
	}
}

// Settle debits the account for a BUY or credits it for a SELL.
// ErrLedgerUnavailable is retried with backoff under the same key; ErrInsufficientFunds is final.
// Cancellation of ctx does not stop the movement; MaxAttempts and CallTimeout bound it.
// When attempts run out after a call whose outcome is unknown (a timeout or a
// transport failure after the request was sent) the movement may have been
// applied, and a *CompensationError is returned for reconciliation.
func (c *Coordinator) Settle(ctx context.Context, req Request) (*Settlement, error) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := tracer.Start(ctx, "settlement.Settle")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", req.OrderID),
		attribute.String("order.side", string(req.Side)),
		attribute.String("amount", req.Amount.String()),
	)

	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: settlement amount must be positive, got %s", domain.ErrInvalidOperation, req.Amount)
	}

	key := Key(req.OrderID, req.Side)
	op, move := opDebit, c.ledger.Debit
	if req.Side == domain.SideSell {
		op, move = opCredit, c.ledger.Credit
	}

	unknown, err := c.call(ctx, op, key, func(ctx context.Context) error {
		return move(ctx, req.AccountID, req.Amount, key)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if unknown && errors.Is(err, domain.ErrLedgerUnavailable) {
			return nil, c.reconcile(ctx, req, stageSettlement, key, err, domain.ErrOutcomeUnknown)
		}
		return nil, err
	}

	return &Settlement{Request: req, Key: key, SettledAt: time.Now().UTC()}, nil
}

// Compensate reverses s after the order record could not be completed.
// It is not aborted by cancellation of ctx. When the reversal itself fails the
// returned *CompensationError must reach an operator.
func (c *Coordinator) Compensate(ctx context.Context, s *Settlement, cause error) error {
	ctx = context.WithoutCancel(ctx)
	ctx, span := tracer.Start(ctx, "settlement.Compensate")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", s.OrderID))

	key := ReversalKey(s.OrderID)
	move := c.ledger.Credit
	if s.Side == domain.SideSell {
		move = c.ledger.Debit
	}

	_, err := c.call(ctx, opReversal, key, func(ctx context.Context) error {
		return move(ctx, s.AccountID, s.Amount, key)
	})
	if err == nil {
		c.logger.WarnContext(ctx, "Settlement reversed",
			slog.String("order_id", s.OrderID),
			slog.String("account", s.AccountID),
			slog.String("amount", s.Amount.String()),
			slog.Any("cause", cause),
		)
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "compensation_failure")
	return c.reconcile(ctx, s.Request, stageReversal, key, cause, err)
}

// reconcile reports a movement whose ledger state disagrees with the order record.
func (c *Coordinator) reconcile(ctx context.Context, req Request, stage, key string, cause, err error) error {
	c.metrics.RecordCompensationFailure()
	c.logger.ErrorContext(ctx, "compensation_failure",
		slog.Bool("compensation_failure", true),
		slog.String("stage", stage),
		slog.String("order_id", req.OrderID),
		slog.String("account", req.AccountID),
		slog.String("side", string(req.Side)),
		slog.String("amount", req.Amount.String()),
		slog.String("key", key),
		slog.Any("cause", cause),
		slog.Any("error", err),
	)

	return &domain.CompensationError{
		Stage:     stage,
		OrderID:   req.OrderID,
		AccountID: req.AccountID,
		Side:      req.Side,
		Amount:    req.Amount,
		Cause:     cause,
		Err:       err,
	}
}

// call runs fn up to MaxAttempts times, each bounded by CallTimeout.
// unknown reports whether any attempt ended without telling whether the
// movement was applied.
func (c *Coordinator) call(ctx context.Context, op, key string, fn func(context.Context) error) (unknown bool, err error) {
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if werr := wait(ctx, c.cfg.Backoff.Delay(attempt-1)); werr != nil {
				return unknown, fmt.Errorf("%w: %s aborted: %v (last error: %v)", domain.ErrLedgerUnavailable, op, werr, err)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		raw := fn(callCtx)
		cancel()
		if outcomeUnknown(raw) {
			unknown = true
		}
		err = classify(raw)

		switch {
		case err == nil:
			c.metrics.RecordSettlementCall(op, "ok")
			return false, nil
		case errors.Is(err, domain.ErrInsufficientFunds):
			c.metrics.RecordSettlementCall(op, "insufficient_funds")
			return unknown, err
		case errors.Is(err, domain.ErrLedgerUnavailable):
			c.metrics.RecordSettlementCall(op, "unavailable")
			c.logger.WarnContext(ctx, "Ledger unavailable",
				slog.String("op", op),
				slog.String("key", key),
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", c.cfg.MaxAttempts),
				slog.Bool("outcome_unknown", unknown),
				slog.Any("error", err),
			)
		default:
			c.metrics.RecordSettlementCall(op, "error")
			return unknown, err
		}
	}
	return unknown, err
}

// outcomeUnknown is true for failures after which the ledger may have applied
// the movement. An explicit ErrLedgerUnavailable means it did not.
func outcomeUnknown(err error) bool {
	if err == nil || errors.Is(err, domain.ErrLedgerUnavailable) || errors.Is(err, domain.ErrInsufficientFunds) {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || domain.IsRetriable(err)
}

// classify folds timeouts and retriable transport errors into ErrLedgerUnavailable.
func classify(err error) error {
	if err == nil || errors.Is(err, domain.ErrLedgerUnavailable) || errors.Is(err, domain.ErrInsufficientFunds) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || domain.IsRetriable(err) {
		return fmt.Errorf("%w: %w", domain.ErrLedgerUnavailable, err)
	}
	return err
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

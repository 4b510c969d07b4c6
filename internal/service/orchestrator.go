// Package service places orders: validation, pricing, settlement and the
// order record, plus the read side over the order history.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"order_go/internal/domain"
	"order_go/internal/infra"
	"order_go/internal/portfolio"
	"order_go/internal/settlement"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("order_go/internal/service")

// OrderService is what the transport layer needs.
type OrderService interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, account, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, account, status string, page, pageSize int) ([]domain.Order, int64, error)
	CancelOrder(ctx context.Context, account, orderID string) (*domain.Order, error)
	GetPortfolio(ctx context.Context, account string) (portfolio.Snapshot, error)
}

// Emitter accepts settlement events without blocking.
type Emitter interface {
	Emit(ev domain.OrderSettledEvent) bool
}

// Orchestrator runs the placement saga: PENDING record, execution price,
// holdings check, funds movement, FILLED record. Every failure after the
// PENDING append ends in a REJECTED record.
type Orchestrator struct {
	store   domain.OrderStore
	pricing *PricePolicy
	settler *settlement.Coordinator
	events  Emitter
	cache   *portfolio.Cache
	locks   *accountLocks
	metrics *infra.Metrics
	logger  *slog.Logger
}

var _ OrderService = (*Orchestrator)(nil)

// NewOrchestrator wires the saga. events and metrics may be nil.
func NewOrchestrator(store domain.OrderStore, pricing *PricePolicy, settler *settlement.Coordinator, events Emitter, metrics *infra.Metrics) *Orchestrator {
	return &Orchestrator{
		store:   store,
		pricing: pricing,
		settler: settler,
		events:  events,
		cache:   portfolio.NewCache(),
		locks:   newAccountLocks(),
		metrics: metrics,
		logger:  slog.Default().With(slog.String("module", "orders")),
	}
}

// CreateOrder places and immediately resolves an order.
// When the order is rejected after it was recorded, the REJECTED record is
// returned together with the error.
func (s *Orchestrator) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.CreateOrder")
	defer span.End()

	start := time.Now()
	v, err := Validate(req)
	if err != nil {
		span.SetStatus(codes.Error, "validation")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("account", v.AccountID),
		attribute.String("symbol", v.Symbol),
		attribute.String("order.side", string(v.Side)),
		attribute.String("order.type", string(v.Type)),
	)

	unlock := s.locks.Lock(v.AccountID)
	defer unlock()

	order, err := s.store.Append(ctx, v.Order())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to record order: %w", err)
	}
	span.SetAttributes(attribute.String("order.id", order.ID))

	order, err = s.place(ctx, v, order)

	s.metrics.RecordOrder(string(v.Side), string(v.Type), string(order.Status), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return order, err
	}
	return order, nil
}

// place runs the steps after the PENDING append. The caller holds the account lock.
func (s *Orchestrator) place(ctx context.Context, v ValidatedOrder, order *domain.Order) (*domain.Order, error) {
	price, err := s.pricing.ExecutionPrice(ctx, v)
	if errors.Is(err, domain.ErrLimitNotMarketable) {
		return s.reject(ctx, order, "limit price below market", err)
	}
	if err != nil {
		return s.reject(ctx, order, "price unavailable", err)
	}

	if v.Side == domain.SideSell {
		held, err := s.holdings(ctx, v.AccountID)
		if err != nil {
			return s.reject(ctx, order, "holdings lookup failed", err)
		}
		if held.Quantity(v.Symbol).LessThan(v.Quantity) {
			return s.reject(ctx, order, "insufficient holdings", fmt.Errorf("%w: %s held %s, requested %s",
				domain.ErrInsufficientHoldings, v.Symbol, held.Quantity(v.Symbol), v.Quantity))
		}
	}

	// Settle is not cancelled with ctx.
	settled, err := s.settler.Settle(ctx, settlement.Request{
		OrderID:   order.ID,
		AccountID: v.AccountID,
		Side:      v.Side,
		Amount:    domain.Notional(v.Quantity, price),
	})
	if err != nil {
		return s.reject(ctx, order, settlementReason(err), err)
	}

	filled, err := s.store.Resolve(context.WithoutCancel(ctx), order.ID, domain.Filled(price))
	if err != nil {
		cause := fmt.Errorf("failed to record fill: %w", err)
		if cerr := s.settler.Compensate(ctx, settled, cause); cerr != nil {
			rec, _ := s.reject(ctx, order, "fill not recorded, reversal failed", cerr)
			return rec, cerr
		}
		return s.reject(ctx, order, "fill not recorded, funds reversed", cause)
	}

	s.cache.Invalidate(v.AccountID)
	if s.events != nil {
		s.events.Emit(domain.NewOrderSettledEvent(filled))
	}

	s.logger.InfoContext(ctx, "Order filled",
		slog.String("order_id", filled.ID),
		slog.String("account", filled.AccountID),
		slog.String("symbol", filled.Symbol),
		slog.String("side", string(filled.Side)),
		slog.String("quantity", filled.Quantity.String()),
		slog.String("executed_price", price.String()),
	)
	return filled, nil
}

// reject records order as REJECTED and returns cause. If the record cannot be
// written the PENDING order is returned and the failure is logged.
func (s *Orchestrator) reject(ctx context.Context, order *domain.Order, reason string, cause error) (*domain.Order, error) {
	rec, err := s.store.Resolve(context.WithoutCancel(ctx), order.ID, domain.Rejected(reason))
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to record rejection",
			slog.String("order_id", order.ID),
			slog.String("account", order.AccountID),
			slog.String("reason", reason),
			slog.Any("cause", cause),
			slog.Any("error", err),
		)
		return order, cause
	}

	s.logger.InfoContext(ctx, "Order rejected",
		slog.String("order_id", rec.ID),
		slog.String("account", rec.AccountID),
		slog.String("reason", reason),
		slog.Any("error", cause),
	)
	return rec, cause
}

func settlementReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrCompensationFailure):
		return "settlement outcome unknown"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient funds"
	case errors.Is(err, domain.ErrLedgerUnavailable):
		return "ledger unavailable"
	default:
		return "settlement failed"
	}
}

// holdings returns the folded FILLED history of account, cached until the next fill.
// Readers without the account lock may race a fill; the cache drops their fold
// when an Invalidate happened after the generation was read.
func (s *Orchestrator) holdings(ctx context.Context, account string) (portfolio.Holdings, error) {
	h, gen, ok := s.cache.Get(account)
	if ok {
		return h, nil
	}
	history, err := s.store.FilledHistory(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to load order history: %w", err)
	}
	h = portfolio.Fold(history)
	s.cache.Put(account, h, gen)
	return h, nil
}

// GetOrder returns orderID if it belongs to account.
func (s *Orchestrator) GetOrder(ctx context.Context, account, orderID string) (*domain.Order, error) {
	if err := requireAccount(account); err != nil {
		return nil, err
	}
	return s.store.GetByID(ctx, orderID, account)
}

// ListOrders pages through the orders of account, newest first.
// status is matched case-insensitively; empty means all.
func (s *Orchestrator) ListOrders(ctx context.Context, account, status string, page, pageSize int) ([]domain.Order, int64, error) {
	if err := requireAccount(account); err != nil {
		return nil, 0, err
	}

	var filter domain.ListFilter
	if status = strings.TrimSpace(status); status != "" {
		st := domain.OrderStatus(strings.ToUpper(status))
		if !st.Valid() {
			verr := &domain.ValidationError{}
			verr.Add("status", fmt.Sprintf("unknown status %q", status))
			return nil, 0, verr
		}
		filter.Status = &st
	}

	return s.store.List(ctx, account, filter, domain.Page{Page: page, PageSize: pageSize}.Normalize())
}

// CancelOrder cancels a PENDING order of account. It waits for any placement
// in flight on the same account.
func (s *Orchestrator) CancelOrder(ctx context.Context, account, orderID string) (*domain.Order, error) {
	if err := requireAccount(account); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(account)
	defer unlock()

	order, err := s.store.Cancel(ctx, orderID, account)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Order cancelled",
		slog.String("order_id", order.ID),
		slog.String("account", account),
	)
	return order, nil
}

// GetPortfolio values the holdings of account at current prices.
func (s *Orchestrator) GetPortfolio(ctx context.Context, account string) (portfolio.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "orders.GetPortfolio")
	defer span.End()

	if err := requireAccount(account); err != nil {
		return portfolio.Snapshot{}, err
	}

	h, err := s.holdings(ctx, account)
	if err != nil {
		span.RecordError(err)
		return portfolio.Snapshot{}, err
	}
	prices := s.pricing.resolver.ResolveMany(ctx, h.Symbols())
	return portfolio.ValuateHoldings(account, h, prices), nil
}

func requireAccount(account string) error {
	if strings.TrimSpace(account) == "" {
		verr := &domain.ValidationError{}
		verr.Add("account_id", "account is required")
		return verr
	}
	return nil
}

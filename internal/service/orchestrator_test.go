package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"order_go/internal/domain"
	"order_go/internal/execution"
	"order_go/internal/infra"
	"order_go/internal/infra/storage"
	"order_go/internal/settlement"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingLedger records every call before delegating to a paper ledger.
type countingLedger struct {
	mu      sync.Mutex
	inner   *execution.PaperLedger
	debits  int
	credits int
	// lostAcks makes the next n calls apply the movement and then report the ledger unavailable
	lostAcks int
	// refuse makes the next n debits report the ledger unavailable without applying
	refuse     int
	creditFail error
	afterDebit func()
}

func (l *countingLedger) Debit(ctx context.Context, account string, amount decimal.Decimal, key string) error {
	l.mu.Lock()
	l.debits++
	lost := l.lostAcks > 0
	if lost {
		l.lostAcks--
	}
	refused := l.refuse > 0
	if refused {
		l.refuse--
	}
	after := l.afterDebit
	l.mu.Unlock()

	if refused {
		return fmt.Errorf("%w: wallet returned 503", domain.ErrLedgerUnavailable)
	}
	if err := l.inner.Debit(ctx, account, amount, key); err != nil {
		return err
	}
	if after != nil {
		after()
	}
	if lost {
		return domain.NewNetworkError("debit", errors.New("connection reset by peer"))
	}
	return nil
}

func (l *countingLedger) Credit(ctx context.Context, account string, amount decimal.Decimal, key string) error {
	l.mu.Lock()
	l.credits++
	fail := l.creditFail
	l.mu.Unlock()

	if fail != nil {
		return fail
	}
	return l.inner.Credit(ctx, account, amount, key)
}

func (l *countingLedger) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debits + l.credits
}

// failingFillStore refuses to record FILLED.
type failingFillStore struct {
	domain.OrderStore
}

func (s failingFillStore) Resolve(ctx context.Context, id string, res domain.Resolution) (*domain.Order, error) {
	if res.Status == domain.OrderStatusFilled {
		return nil, errors.New("disk I/O error")
	}
	return s.OrderStore.Resolve(ctx, id, res)
}

// pausingHistoryStore holds the first FilledHistory call made after arm until
// release is closed. The read itself has already happened.
type pausingHistoryStore struct {
	domain.OrderStore
	armed   atomic.Bool
	reached chan struct{}
	release chan struct{}
}

func (s *pausingHistoryStore) arm() {
	s.reached = make(chan struct{})
	s.release = make(chan struct{})
	s.armed.Store(true)
}

func (s *pausingHistoryStore) FilledHistory(ctx context.Context, owner string) ([]domain.Order, error) {
	history, err := s.OrderStore.FilledHistory(ctx, owner)
	if s.armed.CompareAndSwap(true, false) {
		close(s.reached)
		<-s.release
	}
	return history, err
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []domain.OrderSettledEvent
}

func (e *recordingEmitter) Emit(ev domain.OrderSettledEvent) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return true
}

type harness struct {
	svc     *Orchestrator
	store   *storage.Storage
	pausing *pausingHistoryStore
	paper   *execution.PaperLedger
	ledger  *countingLedger
	prices  *fakePriceSource
	events  *recordingEmitter
	metrics *infra.Metrics
}

type harnessOpt func(h *harness, store *domain.OrderStore)

func withFailingFill() harnessOpt {
	return func(h *harness, store *domain.OrderStore) {
		*store = failingFillStore{OrderStore: *store}
	}
}

func withPausingHistory() harnessOpt {
	return func(h *harness, store *domain.OrderStore) {
		h.pausing = &pausingHistoryStore{OrderStore: *store}
		*store = h.pausing
	}
}

func newHarness(t *testing.T, balance string, prices map[string]string, opts ...harnessOpt) *harness {
	t.Helper()

	st, err := storage.NewStorage(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := &harness{
		store:   st,
		paper:   execution.NewPaperLedger(map[string]decimal.Decimal{"acc-1": dec(balance)}),
		prices:  newFakePriceSource(prices),
		events:  &recordingEmitter{},
		metrics: infra.NewMetrics(prometheus.NewRegistry()),
	}
	h.ledger = &countingLedger{inner: h.paper}

	var store domain.OrderStore = st
	for _, opt := range opts {
		opt(h, &store)
	}

	coord := settlement.NewCoordinator(h.ledger, settlement.Config{
		MaxAttempts: 3,
		CallTimeout: time.Second,
		Backoff:     infra.Backoff{Base: time.Millisecond, Max: 5 * time.Millisecond},
	}, h.metrics)
	policy := NewPricePolicy(NewPriceResolver(h.prices, time.Second, 0, h.metrics), false, h.metrics)
	h.svc = NewOrchestrator(store, policy, coord, h.events, h.metrics)
	return h
}

func market(side domain.Side, symbol, qty string) CreateOrderRequest {
	return CreateOrderRequest{AccountID: "acc-1", Symbol: symbol, Side: side, Type: domain.OrderTypeMarket, Quantity: dec(qty)}
}

func limit(side domain.Side, symbol, qty, price string) CreateOrderRequest {
	return CreateOrderRequest{AccountID: "acc-1", Symbol: symbol, Side: side, Type: domain.OrderTypeLimit, Quantity: dec(qty), LimitPrice: decPtr(price)}
}

func TestCreateOrder_BuyFillsAndDebits(t *testing.T) {
	h := newHarness(t, "1000", map[string]string{"AAPL": "150"})

	order, err := h.svc.CreateOrder(context.Background(), market(domain.SideBuy, "aapl", "2"))
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusFilled, order.Status)
	assert.Equal(t, "AAPL", order.Symbol)
	require.True(t, order.ExecutedPrice.Valid)
	assert.True(t, order.ExecutedPrice.Decimal.Equal(dec("150")))
	assert.True(t, h.paper.Balance("acc-1").Equal(dec("700")), "balance = %s", h.paper.Balance("acc-1"))

	stored, err := h.store.GetByID(context.Background(), order.ID, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, stored.Status)

	require.Len(t, h.events.events, 1)
	assert.Equal(t, order.ID, h.events.events[0].OrderID)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.OrdersTotal.WithLabelValues("BUY", "MARKET", "FILLED")))
}

func TestCreateOrder_LimitBuyExecutesAtBetterPrice(t *testing.T) {
	h := newHarness(t, "1000", map[string]string{"AAPL": "90"})

	order, err := h.svc.CreateOrder(context.Background(), limit(domain.SideBuy, "AAPL", "1", "100"))
	require.NoError(t, err)
	assert.True(t, order.ExecutedPrice.Decimal.Equal(dec("90")))
	assert.True(t, h.paper.Balance("acc-1").Equal(dec("910")))
}

func TestCreateOrder_LimitBuyBelowMarketIsRejected(t *testing.T) {
	h := newHarness(t, "1000", map[string]string{"AAPL": "150"})

	order, err := h.svc.CreateOrder(context.Background(), limit(domain.SideBuy, "AAPL", "1", "100"))
	require.ErrorIs(t, err, domain.ErrLimitNotMarketable)
	require.NotNil(t, order)
	assert.Equal(t, domain.OrderStatusRejected, order.Status)
	assert.Equal(t, "limit price below market", order.RejectReason)
	assert.False(t, order.ExecutedPrice.Valid)
	assert.Zero(t, h.ledger.Calls())
	assert.True(t, h.paper.Balance("acc-1").Equal(dec("1000")))
}

func TestCreateOrder_ValidationHasNoSideEffects(t *testing.T) {
	h := newHarness(t, "1000", map[string]string{"AAPL": "150"})

	order, err := h.svc.CreateOrder(context.Background(), market(domain.SideBuy, "A", "0"))
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Nil(t, order)

	_, total, err := h.store.List(context.Background(), "acc-1", domain.ListFilter{}, domain.Page{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, h.ledger.Calls())
	assert.Zero(t, h.prices.Calls())
}

func TestCreateOrder_MarketWithoutPriceIsRejected(t *testing.T) {
	h := newHarness(t, "1000", nil)

	order, err := h.svc.CreateOrder(context.Background(), market(domain.SideBuy, "AAPL", "1"))
	require.ErrorIs(t, err, domain.ErrPriceUnavailable)
	require.NotNil(t, order)
	assert.Equal(t, domain.OrderStatusRejected, order.Status)
	assert.False(t, order.ExecutedPrice.Valid)
	assert.Zero(t, h.ledger.Calls(), "no ledger call may happen without a price")
	assert.True(t, h.paper.Balance("acc-1").Equal(dec("1000")))
	assert.Empty(t, h.events.events)
}

func TestCreateOrder_LimitSellBeyondHoldingsIsRejectedBeforeLedger(t *testing.T) {
	h := newHarness(t, "1000", map[string]string{"AAPL": "100"})

	_, err := h.svc.CreateOrder(context.Background(), market(domain.SideBuy, "AAPL", "1"))
	require.NoError(t, err)
	callsBefore := h.ledger.Calls()

	order, err := h.svc.CreateOrder(context.Background(), limit(domain.SideSell, "AAPL", "2", "120"))
	require.ErrorIs(t, err, domain.ErrInsufficientHoldings)
	assert.Equal(t, domain.OrderStatusRejected, order.Status)
	assert.Equal(t, callsBefore, h.ledger.Calls(), "ledger must not be called")

	// nothing held at all
	h2 := newHarness(t, "1000", nil)
	_, err = h2.svc.CreateOrder(context.Background(), limit(domain.SideSell, "MSFT", "1", "10"))
	require.ErrorIs(t, err, domain.ErrInsufficientHoldings)
	assert.Zero(t, h2.ledger.Calls())
}

func TestCreateOrder_InsufficientFunds(t *testing.T) {
	h := newHarness(t, "100", map[string]string{"AAPL": "150"})

	order, err := h.svc.CreateOrder(context.Background(), market(domain.SideBuy, "AAPL", "1"))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, domain.OrderStatusRejected, order.Status)
	assert.Equal(t, "insufficient funds", order.RejectReason)
	assert.True(t, h.paper.Balance("acc-1").Equal(dec("100")))
}

func TestCreateOrder_RetryAfterLostAckDebitsOnce(t *testing.T) {
	h := newHarness(t, "1000", map[string]string{"AAPL": "100"})
	h.ledger.lostAcks = 2

	order, err := h.svc.CreateOrder(context.Background(), market(domain.SideBuy, "AAPL", "3"))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, order.Status)

	assert.Equal(t, 3, h.ledger.debits, "two lost acks then success")
	assert.True(t, h.paper.Balance("acc-1").Equal(dec("700")), "balance = %s", h.paper.Balance("acc-1"))
	assert.Len(t, h.paper.Journal(), 1)
}

func TestCreateOrder_LedgerUnavailableLeavesFundsUntouched(t *testing.T) {
	h := newHarness(t, "1000", map[string]string{"AAPL": "100"})
	h.ledger.refuse = 3

	order, err := h.svc.CreateOrder(context.Background(), market(domain.SideBuy, "AAPL", "2"))
	require.ErrorIs(t, err, domain.ErrLedgerUnavailable)
	assert.False(t, errors.Is(err, domain.ErrCompensationFailure))
	assert.Equal(t, domain.OrderStatusRejected, order.Status)
	assert.Equal(t, "ledger unavailable", order.RejectReason)

	assert.Equal(t, 3, h.ledger.debits)
	assert.True(t, h.paper.Balance("acc-1").Equal(dec("1000")))
	assert.Empty(t, h.paper.Journal())
	assert.Zero(t, testutil.ToFloat64(h.metrics.CompensationFailures))
}

func TestCreateOrder_UnacknowledgedDebitNeedsReconciliation(t *testing.T) {
	h := newHarness(t, "1000", map[string]string{"AAPL": "100"})
	h.ledger.lostAcks = 3

	order, err := h.svc.CreateOrder(context.Background(), market(domain.SideBuy, "AAPL", "2"))
	require.ErrorIs(t, err, domain.ErrCompensationFailure)

	var cerr *domain.CompensationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, order.ID, cerr.OrderID)
	assert.ErrorIs(t, cerr.Err, domain.ErrOutcomeUnknown)
	assert.Equal(t, domain.OrderStatusRejected, order.Status)
	assert.Equal(t, "settlement outcome unknown", order.RejectReason)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CompensationFailures))
	assert.Empty(t, h.events.events)
}

func TestCreateOrder_CallerCancellationAfterDebit(t *testing.T) {
	h := newHarness(t, "1000", map[string]string{"AAPL": "100"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// the client goes away once the wallet has taken the money
	h.ledger.afterDebit = cancel
	h.ledger.lostAcks = 1

	order, err := h.svc.CreateOrder(ctx, market(domain.SideBuy, "AAPL", "2"))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, order.Status)

	assert.True(t, h.paper.Balance("acc-1").Equal(dec("800")), "balance = %s", h.paper.Balance("acc-1"))
	assert.Len(t, h.paper.Journal(), 1)
	stored, err := h.store.GetByID(context.Background(), order.ID, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, stored.Status)
}

func TestCreateOrder_ConcurrentBuysNeverOverdraw(t *testing.T) {
	h := newHarness(t, "100", map[string]string{"AAPL": "30"})

	var wg sync.WaitGroup
	var mu sync.Mutex
	statuses := map[domain.OrderStatus]int{}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := h.svc.CreateOrder(context.Background(), market(domain.SideBuy, "AAPL", "1"))
			if err != nil && !errors.Is(err, domain.ErrInsufficientFunds) {
				t.Errorf("unexpected error: %v", err)
				return
			}
			mu.Lock()
			statuses[order.Status]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, statuses[domain.OrderStatusFilled])
	assert.Equal(t, 7, statuses[domain.OrderStatusRejected])
	assert.True(t, h.paper.Balance("acc-1").Equal(dec("10")), "balance = %s", h.paper.Balance("acc-1"))
}

func TestCreateOrder_FillNotRecordedIsCompensated(t *testing.T) {
	h := newHarness(t, "1000", map[string]string{"AAPL": "100"}, withFailingFill())

	order, err := h.svc.CreateOrder(context.Background(), market(domain.SideBuy, "AAPL", "2"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrCompensationFailure))
	assert.Equal(t, domain.OrderStatusRejected, order.Status)

	assert.True(t, h.paper.Balance("acc-1").Equal(dec("1000")), "funds must be reversed, balance = %s", h.paper.Balance("acc-1"))
	journal := h.paper.Journal()
	require.Len(t, journal, 2)
	assert.Equal(t, settlement.Key(order.ID, domain.SideBuy), journal[0].Key)
	assert.Equal(t, settlement.ReversalKey(order.ID), journal[1].Key)
	assert.Empty(t, h.events.events)
}

func TestCreateOrder_FailedReversalIsCompensationFailure(t *testing.T) {
	h := newHarness(t, "1000", map[string]string{"AAPL": "100"}, withFailingFill())
	h.ledger.creditFail = errors.New("wallet rejected request")

	order, err := h.svc.CreateOrder(context.Background(), market(domain.SideBuy, "AAPL", "2"))
	require.ErrorIs(t, err, domain.ErrCompensationFailure)

	var cerr *domain.CompensationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, order.ID, cerr.OrderID)
	assert.True(t, cerr.Amount.Equal(dec("200")))
	assert.Equal(t, domain.OrderStatusRejected, order.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CompensationFailures))
}

func TestCancelOrder(t *testing.T) {
	h := newHarness(t, "1000", map[string]string{"AAPL": "100"})
	ctx := context.Background()

	t.Run("filled order cannot be cancelled", func(t *testing.T) {
		filled, err := h.svc.CreateOrder(ctx, market(domain.SideBuy, "AAPL", "1"))
		require.NoError(t, err)

		_, err = h.svc.CancelOrder(ctx, "acc-1", filled.ID)
		require.ErrorIs(t, err, domain.ErrInvalidOperation)

		got, err := h.svc.GetOrder(ctx, "acc-1", filled.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusFilled, got.Status)
	})

	t.Run("pending order is cancelled once", func(t *testing.T) {
		pending, err := h.store.Append(ctx, &domain.Order{
			AccountID:  "acc-1",
			Symbol:     "AAPL",
			Side:       domain.SideBuy,
			Type:       domain.OrderTypeLimit,
			Status:     domain.OrderStatusPending,
			Quantity:   dec("1"),
			LimitPrice: decimal.NewNullDecimal(dec("50")),
		})
		require.NoError(t, err)

		cancelled, err := h.svc.CancelOrder(ctx, "acc-1", pending.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)

		_, err = h.svc.CancelOrder(ctx, "acc-1", pending.ID)
		assert.True(t, errors.Is(err, domain.ErrInvalidOperation) || errors.Is(err, domain.ErrNotFound), "got %v", err)

		got, err := h.svc.GetOrder(ctx, "acc-1", pending.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCancelled, got.Status)
		assert.True(t, got.UpdatedAt.Equal(cancelled.UpdatedAt), "second cancel must not touch the record")
	})

	t.Run("other account", func(t *testing.T) {
		filled, err := h.svc.CreateOrder(ctx, market(domain.SideBuy, "AAPL", "1"))
		require.NoError(t, err)
		_, err = h.svc.CancelOrder(ctx, "acc-2", filled.ID)
		require.ErrorIs(t, err, domain.ErrNotFound)
		_, err = h.svc.GetOrder(ctx, "acc-2", filled.ID)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestGetPortfolio_AverageCost(t *testing.T) {
	h := newHarness(t, "10000", map[string]string{"AAPL": "100"})
	ctx := context.Background()

	_, err := h.svc.CreateOrder(ctx, limit(domain.SideBuy, "AAPL", "1", "100"))
	require.NoError(t, err)

	// warm the cache, the next fill must invalidate it
	_, err = h.svc.GetPortfolio(ctx, "acc-1")
	require.NoError(t, err)

	h.prices.mu.Lock()
	h.prices.quotes["AAPL"] = domain.Quote{Symbol: "AAPL", Price: dec("200")}
	h.prices.mu.Unlock()

	_, err = h.svc.CreateOrder(ctx, market(domain.SideBuy, "AAPL", "1"))
	require.NoError(t, err)
	_, err = h.svc.CreateOrder(ctx, limit(domain.SideSell, "AAPL", "1", "250"))
	require.NoError(t, err)

	snap, err := h.svc.GetPortfolio(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)

	item := snap.Items[0]
	assert.True(t, item.Quantity.Equal(dec("1")), "qty = %s", item.Quantity)
	assert.True(t, item.AverageBuyPrice.Equal(dec("150")), "avg = %s", item.AverageBuyPrice)
	assert.True(t, item.CostBasis.Equal(dec("150")), "cost = %s", item.CostBasis)
	assert.True(t, item.CurrentValue.Equal(dec("200")))
	assert.True(t, snap.TotalUnrealizedPnL.Equal(dec("50")))
}

func TestGetPortfolio_RacingSellCannotCacheStaleHoldings(t *testing.T) {
	h := newHarness(t, "1000", map[string]string{"AAPL": "100"}, withPausingHistory())
	ctx := context.Background()

	_, err := h.svc.CreateOrder(ctx, market(domain.SideBuy, "AAPL", "1"))
	require.NoError(t, err)

	h.pausing.arm()
	done := make(chan error, 1)
	go func() {
		_, err := h.svc.GetPortfolio(ctx, "acc-1")
		done <- err
	}()
	<-h.pausing.reached

	// the portfolio read holds a fold with 1 AAPL while the sell fills
	sold, err := h.svc.CreateOrder(ctx, limit(domain.SideSell, "AAPL", "1", "100"))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, sold.Status)

	close(h.pausing.release)
	require.NoError(t, <-done)

	again, err := h.svc.CreateOrder(ctx, limit(domain.SideSell, "AAPL", "1", "100"))
	require.ErrorIs(t, err, domain.ErrInsufficientHoldings)
	assert.Equal(t, domain.OrderStatusRejected, again.Status)
	assert.Equal(t, 1, h.ledger.credits)
	assert.True(t, h.paper.Balance("acc-1").Equal(dec("1000")), "balance = %s", h.paper.Balance("acc-1"))
}

func TestGetPortfolio_DustIsHidden(t *testing.T) {
	h := newHarness(t, "1000", map[string]string{"AAPL": "100", "MSFT": "10"})
	ctx := context.Background()

	_, err := h.svc.CreateOrder(ctx, market(domain.SideBuy, "AAPL", "1"))
	require.NoError(t, err)
	_, err = h.svc.CreateOrder(ctx, limit(domain.SideSell, "AAPL", "0.9999999", "100"))
	require.NoError(t, err)
	_, err = h.svc.CreateOrder(ctx, market(domain.SideBuy, "MSFT", "1"))
	require.NoError(t, err)

	snap, err := h.svc.GetPortfolio(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "MSFT", snap.Items[0].Symbol)
}

func TestGetPortfolio_RequiresAccount(t *testing.T) {
	h := newHarness(t, "1000", nil)
	_, err := h.svc.GetPortfolio(context.Background(), " ")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestListOrders(t *testing.T) {
	h := newHarness(t, "1000", map[string]string{"AAPL": "100"})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := h.svc.CreateOrder(ctx, market(domain.SideBuy, "AAPL", "1"))
		require.NoError(t, err)
	}
	_, err := h.svc.CreateOrder(ctx, market(domain.SideBuy, "GONE", "1"))
	require.ErrorIs(t, err, domain.ErrPriceUnavailable)

	items, total, err := h.svc.ListOrders(ctx, "acc-1", "", 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, items, 2)
	assert.Equal(t, "GONE", items[0].Symbol, "newest first")

	items, total, err = h.svc.ListOrders(ctx, "acc-1", "rejected", 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, items, 1)

	items, total, err = h.svc.ListOrders(ctx, "acc-1", "", math.MaxInt, 20)
	require.NoError(t, err, "huge page numbers are clamped")
	assert.EqualValues(t, 4, total)
	assert.Empty(t, items)

	_, _, err = h.svc.ListOrders(ctx, "acc-1", "resting", 1, 20)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, total, err = h.svc.ListOrders(ctx, "acc-2", "", 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
}

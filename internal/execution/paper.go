package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"order_go/internal/domain"

	"github.com/shopspring/decimal"
)

// Entry is one applied ledger movement.
type Entry struct {
	Key       string          `json:"key"`
	AccountID string          `json:"account_id"`
	Op        string          `json:"op"` // debit, credit
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// PaperLedger is an in-memory AccountLedger for local runs and tests.
// Each idempotency key is applied at most once; a debit is a check-and-act under the ledger lock.
type PaperLedger struct {
	mu      sync.Mutex
	book    *domain.BalanceBook
	applied map[string]Entry
	journal []Entry
	logger  *slog.Logger
}

var _ domain.AccountLedger = (*PaperLedger)(nil)

// NewPaperLedger creates a ledger seeded with initial balances.
func NewPaperLedger(initial map[string]decimal.Decimal) *PaperLedger {
	p := &PaperLedger{
		book:    domain.NewBalanceBook(),
		applied: make(map[string]Entry),
		logger:  slog.Default().With(slog.String("module", "paper_ledger")),
	}
	for account, amount := range initial {
		p.book.Get(account).Credit(amount, "seed")
	}
	return p
}

// Deposit adds funds outside of any order (seeding, tests).
func (p *PaperLedger) Deposit(accountID string, amount decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.book.Get(accountID).Credit(amount, "deposit")
}

// Debit withdraws amount from accountID once per key.
func (p *PaperLedger) Debit(ctx context.Context, accountID string, amount decimal.Decimal, key string) error {
	return p.apply(ctx, "debit", accountID, amount, key)
}

// Credit deposits amount to accountID once per key.
func (p *PaperLedger) Credit(ctx context.Context, accountID string, amount decimal.Decimal, key string) error {
	return p.apply(ctx, "credit", accountID, amount, key)
}

func (p *PaperLedger) apply(ctx context.Context, op, accountID string, amount decimal.Decimal, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s amount must be positive, got %s", domain.ErrInvalidOperation, op, amount)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if prev, ok := p.applied[key]; ok {
		if prev.Op != op || prev.AccountID != accountID || !prev.Amount.Equal(amount) {
			return fmt.Errorf("%w: idempotency key %s reused for a different movement", domain.ErrInvalidOperation, key)
		}
		p.logger.Debug("Replayed idempotency key", slog.String("key", key))
		return nil
	}

	bal := p.book.Get(accountID)
	switch op {
	case "debit":
		if err := bal.Debit(amount, key); err != nil {
			return err
		}
	default:
		bal.Credit(amount, key)
	}
	bal.VerifyInvariant()

	e := Entry{Key: key, AccountID: accountID, Op: op, Amount: amount, Timestamp: time.Now()}
	p.applied[key] = e
	p.journal = append(p.journal, e)

	p.logger.Info("Paper ledger movement",
		slog.String("op", op),
		slog.String("account", accountID),
		slog.String("amount", amount.String()),
		slog.String("key", key),
		slog.String("balance", bal.Amount.String()),
	)
	return nil
}

// Balance returns the current balance of accountID.
func (p *PaperLedger) Balance(accountID string) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.book.Get(accountID).Amount
}

// Journal returns a copy of all applied movements in order.
func (p *PaperLedger) Journal() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Entry, len(p.journal))
	copy(out, p.journal)
	return out
}

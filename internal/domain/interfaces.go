package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceSource is the external price feed. Implementations must return
// ErrPriceUnavailable (wrapped) instead of a zero or stale quote.
type PriceSource interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
}

// AccountLedger is the external funds ledger. Both calls are idempotent per key:
// replaying a key that already succeeded must not move funds again.
// Debit fails with ErrInsufficientFunds when the balance cannot cover amount;
// transport failures surface as ErrLedgerUnavailable.
type AccountLedger interface {
	Debit(ctx context.Context, accountID string, amount decimal.Decimal, idempotencyKey string) error
	Credit(ctx context.Context, accountID string, amount decimal.Decimal, idempotencyKey string) error
}

// OrderStore is the durable order ledger.
type OrderStore interface {
	Append(ctx context.Context, order *Order) (*Order, error)
	// GetByID returns ErrNotFound unless the order belongs to owner.
	// An empty owner is the administrative scope.
	GetByID(ctx context.Context, id, owner string) (*Order, error)
	List(ctx context.Context, owner string, filter ListFilter, page Page) ([]Order, int64, error)
	Cancel(ctx context.Context, id, owner string) (*Order, error)
	// Resolve moves a PENDING order to a terminal status.
	Resolve(ctx context.Context, id string, res Resolution) (*Order, error)
	// FilledHistory returns FILLED orders of owner, oldest first.
	FilledHistory(ctx context.Context, owner string) ([]Order, error)
}

// EventPublisher delivers settlement notifications. Delivery is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev OrderSettledEvent) error
}

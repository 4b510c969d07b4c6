package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Balance is the cash position of one account.
type Balance struct {
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	LastKey   string          `json:"last_key"` // Last idempotency key that modified this
}

// Credit adds funds to the balance.
func (b *Balance) Credit(amount decimal.Decimal, key string) {
	b.Amount = b.Amount.Add(amount)
	b.LastKey = key
}

// Debit removes funds, refusing to go negative.
func (b *Balance) Debit(amount decimal.Decimal, key string) error {
	if amount.GreaterThan(b.Amount) {
		return fmt.Errorf("%w: account %s needs %s, available %s",
			ErrInsufficientFunds, b.AccountID, amount, b.Amount)
	}
	b.Amount = b.Amount.Sub(amount)
	b.LastKey = key
	return nil
}

// VerifyInvariant checks that balance satisfies invariants.
// Call this after any state change to ensure data integrity.
func (b *Balance) VerifyInvariant() {
	if b.Amount.IsNegative() {
		panic(fmt.Sprintf("BALANCE_INVARIANT_NEGATIVE_AMOUNT: %s = %s", b.AccountID, b.Amount))
	}
}

// BalanceBook manages multiple balances. It is not safe for concurrent use;
// owners serialize access.
type BalanceBook struct {
	balances map[string]*Balance
}

// NewBalanceBook creates a new balance book.
func NewBalanceBook() *BalanceBook {
	return &BalanceBook{
		balances: make(map[string]*Balance),
	}
}

// Get returns the balance for an account, creating if not exists.
func (bb *BalanceBook) Get(accountID string) *Balance {
	b, ok := bb.balances[accountID]
	if !ok {
		b = &Balance{AccountID: accountID}
		bb.balances[accountID] = b
	}
	return b
}

package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a single price observation for a symbol.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
}

// Check rejects quotes that must never be used as an execution price:
// non-positive prices and, when maxAge > 0, quotes older than maxAge.
// A zero Timestamp means the source does not report one and skips the age check.
func (q Quote) Check(now time.Time, maxAge time.Duration) error {
	if !q.Price.IsPositive() {
		return fmt.Errorf("%w: %s quote from %s is not positive (%s)", ErrPriceUnavailable, q.Symbol, q.Source, q.Price)
	}
	if maxAge > 0 && !q.Timestamp.IsZero() && now.Sub(q.Timestamp) > maxAge {
		return fmt.Errorf("%w: %s quote from %s is stale (age %s > %s)",
			ErrPriceUnavailable, q.Symbol, q.Source, now.Sub(q.Timestamp).Truncate(time.Millisecond), maxAge)
	}
	return nil
}

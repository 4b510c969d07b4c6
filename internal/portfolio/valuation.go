// Package portfolio derives holdings and unrealized profit/loss from an account's
// FILLED order history using the average-cost method.
package portfolio

import (
	"sort"

	"order_go/internal/domain"

	"github.com/shopspring/decimal"
)

// DustThreshold is the largest quantity still treated as "no position".
var DustThreshold = decimal.New(1, -6)

var hundred = decimal.NewFromInt(100)

// Holding is the folded position in one symbol.
type Holding struct {
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	CostBasis decimal.Decimal `json:"cost_basis"`
}

// Holdings maps symbol to position.
type Holdings map[string]Holding

// Quantity returns the held quantity of symbol, zero when absent.
func (h Holdings) Quantity(symbol string) decimal.Decimal {
	return h[symbol].Quantity
}

// Symbols lists symbols with a non-dust position, sorted.
func (h Holdings) Symbols() []string {
	out := make([]string, 0, len(h))
	for s, hd := range h {
		if hd.Quantity.GreaterThan(DustThreshold) {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Item is one row of a snapshot.
type Item struct {
	Symbol               string          `json:"symbol"`
	Quantity             decimal.Decimal `json:"quantity"`
	AverageBuyPrice      decimal.Decimal `json:"average_buy_price"`
	CurrentPrice         decimal.Decimal `json:"current_price"`
	CostBasis            decimal.Decimal `json:"cost_basis"`
	CurrentValue         decimal.Decimal `json:"current_value"`
	UnrealizedPnL        decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPnLPercent decimal.Decimal `json:"unrealized_pnl_percent"`
}

// Snapshot is the valued portfolio of one account.
type Snapshot struct {
	AccountID          string          `json:"account_id"`
	Items              []Item          `json:"items"`
	TotalValue         decimal.Decimal `json:"total_value"`
	TotalUnrealizedPnL decimal.Decimal `json:"total_unrealized_pnl"`
}

// Fold replays FILLED orders in the given order.
// BUY adds quantity and quantity*price to the cost basis. SELL removes quantity and
// quantity*averageCost, where averageCost is zero for an empty position.
// Orders that are not FILLED or lack an executed price are skipped.
func Fold(orders []domain.Order) Holdings {
	h := make(Holdings)
	for i := range orders {
		o := &orders[i]
		if o.Status != domain.OrderStatusFilled || !o.ExecutedPrice.Valid {
			continue
		}

		cur := h[o.Symbol]
		cur.Symbol = o.Symbol

		switch o.Side {
		case domain.SideBuy:
			cur.Quantity = cur.Quantity.Add(o.Quantity)
			cur.CostBasis = cur.CostBasis.Add(domain.Notional(o.Quantity, o.ExecutedPrice.Decimal))
		case domain.SideSell:
			avg := decimal.Zero
			if cur.Quantity.IsPositive() {
				avg = cur.CostBasis.Div(cur.Quantity)
			}
			cur.Quantity = cur.Quantity.Sub(o.Quantity)
			cur.CostBasis = cur.CostBasis.Sub(o.Quantity.Mul(avg))
		}

		h[o.Symbol] = cur
	}
	return h
}

// Valuate folds owner's FILLED orders and values them at prices.
// Orders of other accounts are ignored. It has no side effects.
func Valuate(owner string, orders []domain.Order, prices map[string]decimal.Decimal) Snapshot {
	own := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if o.AccountID == owner {
			own = append(own, o)
		}
	}
	return ValuateHoldings(owner, Fold(own), prices)
}

// ValuateHoldings values already folded holdings. A symbol without a price is valued at zero.
func ValuateHoldings(owner string, h Holdings, prices map[string]decimal.Decimal) Snapshot {
	snap := Snapshot{
		AccountID:          owner,
		Items:              make([]Item, 0, len(h)),
		TotalValue:         decimal.Zero,
		TotalUnrealizedPnL: decimal.Zero,
	}

	for symbol, hd := range h {
		if hd.Quantity.LessThanOrEqual(DustThreshold) {
			continue
		}

		price := prices[symbol]
		value := hd.Quantity.Mul(price)
		pnl := value.Sub(hd.CostBasis)

		pct := decimal.Zero
		if hd.CostBasis.IsPositive() {
			pct = pnl.Div(hd.CostBasis).Mul(hundred)
		}

		snap.Items = append(snap.Items, Item{
			Symbol:               symbol,
			Quantity:             hd.Quantity,
			AverageBuyPrice:      hd.CostBasis.Div(hd.Quantity),
			CurrentPrice:         price,
			CostBasis:            hd.CostBasis,
			CurrentValue:         value,
			UnrealizedPnL:        pnl,
			UnrealizedPnLPercent: pct,
		})
		snap.TotalValue = snap.TotalValue.Add(value)
		snap.TotalUnrealizedPnL = snap.TotalUnrealizedPnL.Add(pnl)
	}

	sort.Slice(snap.Items, func(i, j int) bool {
		a, b := snap.Items[i], snap.Items[j]
		if c := a.CurrentValue.Cmp(b.CurrentValue); c != 0 {
			return c > 0
		}
		return a.Symbol < b.Symbol
	})

	return snap
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSettledEvent is published after an order reaches FILLED.
type OrderSettledEvent struct {
	AccountID     string          `json:"account_id"`
	OrderID       string          `json:"order_id"`
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	ExecutedPrice decimal.Decimal `json:"executed_price"`
	SettledAt     time.Time       `json:"settled_at"`
}

// NewOrderSettledEvent builds the event for a filled order.
func NewOrderSettledEvent(o *Order) OrderSettledEvent {
	return OrderSettledEvent{
		AccountID:     o.AccountID,
		OrderID:       o.ID,
		Symbol:        o.Symbol,
		Side:          o.Side,
		Quantity:      o.Quantity,
		ExecutedPrice: o.ExecutedPrice.Decimal,
		SettledAt:     o.UpdatedAt,
	}
}

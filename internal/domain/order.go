package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

// OrderType selects how the execution price is determined.
type OrderType string

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"

	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"

	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Valid reports whether t is a known order type.
func (t OrderType) Valid() bool {
	return t == OrderTypeMarket || t == OrderTypeLimit
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusFilled, OrderStatusRejected, OrderStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusRejected || s == OrderStatusCancelled
}

// CanTransition reports whether an order may move from s to next.
// Only PENDING has outgoing edges.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	return s == OrderStatusPending && next.IsTerminal()
}

// Order is the durable order record owned by the order store.
// Monetary values and quantities are decimals; LimitPrice and ExecutedPrice are
// nullable and follow the invariants checked by CheckInvariants.
type Order struct {
	ID            string              `gorm:"primaryKey;size:36" json:"id"`
	AccountID     string              `gorm:"size:64;not null;index:idx_orders_account_created,priority:1" json:"account_id"`
	Symbol        string              `gorm:"size:10;not null" json:"symbol"`
	Side          Side                `gorm:"size:4;not null" json:"side"`
	Type          OrderType           `gorm:"size:6;not null" json:"type"`
	Status        OrderStatus         `gorm:"size:9;not null;index" json:"status"`
	Quantity      decimal.Decimal     `gorm:"type:text;not null" json:"quantity"`
	LimitPrice    decimal.NullDecimal `gorm:"type:text" json:"limit_price"`
	ExecutedPrice decimal.NullDecimal `gorm:"type:text" json:"executed_price"`
	RejectReason  string              `gorm:"size:255" json:"reject_reason,omitempty"`
	CreatedAt     time.Time           `gorm:"index:idx_orders_account_created,priority:2" json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// Notional returns quantity × price.
func Notional(qty, price decimal.Decimal) decimal.Decimal {
	return qty.Mul(price)
}

// CheckInvariants verifies the record-level invariants of an order.
func (o *Order) CheckInvariants() error {
	if !o.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive, got %s", ErrInvalidOperation, o.Quantity)
	}
	switch o.Type {
	case OrderTypeLimit:
		if !o.LimitPrice.Valid || !o.LimitPrice.Decimal.IsPositive() {
			return fmt.Errorf("%w: limit order %s needs a positive limit price", ErrInvalidOperation, o.ID)
		}
	case OrderTypeMarket:
		if o.LimitPrice.Valid {
			return fmt.Errorf("%w: market order %s carries a limit price", ErrInvalidOperation, o.ID)
		}
	default:
		return fmt.Errorf("%w: unknown order type %q", ErrInvalidOperation, o.Type)
	}
	if (o.Status == OrderStatusFilled) != o.ExecutedPrice.Valid {
		return fmt.Errorf("%w: executed price must be set iff status is FILLED (status=%s)", ErrInvalidOperation, o.Status)
	}
	return nil
}

// IsOpen checks if the order can still be cancelled.
func (o *Order) IsOpen() bool {
	return o.Status.CanTransition(OrderStatusCancelled)
}

// ListFilter narrows an order listing.
type ListFilter struct {
	Status *OrderStatus
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps Offset far from int overflow.
	MaxPage = 1_000_000
)

// Page selects one page of a listing. Page numbers start at 1.
type Page struct {
	Page     int
	PageSize int
}

// Normalize applies defaults and bounds.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Resolution is the terminal outcome the orchestrator hands to the store.
type Resolution struct {
	Status        OrderStatus
	ExecutedPrice decimal.NullDecimal
	Reason        string
}

// Filled builds a FILLED resolution at price.
func Filled(price decimal.Decimal) Resolution {
	return Resolution{Status: OrderStatusFilled, ExecutedPrice: decimal.NewNullDecimal(price)}
}

// Rejected builds a REJECTED resolution with a reason.
func Rejected(reason string) Resolution {
	return Resolution{Status: OrderStatusRejected, Reason: reason}
}

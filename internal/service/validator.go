package service

import (
	"strings"
	"unicode/utf8"

	"order_go/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	minSymbolLen = 3
	maxSymbolLen = 10
)

// CreateOrderRequest is the caller's order intent. AccountID comes from the
// request context, never from the body.
type CreateOrderRequest struct {
	AccountID  string           `json:"-"`
	Symbol     string           `json:"symbol"`
	Side       domain.Side      `json:"side"`
	Type       domain.OrderType `json:"type"`
	Quantity   decimal.Decimal  `json:"quantity"`
	LimitPrice *decimal.Decimal `json:"limit_price,omitempty"`
}

// ValidatedOrder is a request that passed Validate, with the symbol normalised.
type ValidatedOrder struct {
	AccountID  string
	Symbol     string
	Side       domain.Side
	Type       domain.OrderType
	Quantity   decimal.Decimal
	LimitPrice decimal.NullDecimal
}

// Validate checks req and reports every violation in one *domain.ValidationError.
func Validate(req CreateOrderRequest) (ValidatedOrder, error) {
	verr := &domain.ValidationError{}

	account := strings.TrimSpace(req.AccountID)
	if account == "" {
		verr.Add("account_id", "account is required")
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	switch n := utf8.RuneCountInString(symbol); {
	case n == 0:
		verr.Add("symbol", "symbol is required")
	case n < minSymbolLen || n > maxSymbolLen:
		verr.Add("symbol", "symbol must be between 3 and 10 characters")
	}

	side := domain.Side(strings.ToUpper(string(req.Side)))
	if !side.Valid() {
		verr.Add("side", "side must be BUY or SELL")
	}

	orderType := domain.OrderType(strings.ToUpper(string(req.Type)))
	if !orderType.Valid() {
		verr.Add("type", "type must be MARKET or LIMIT")
	}

	if !req.Quantity.IsPositive() {
		verr.Add("quantity", "quantity must be greater than 0")
	}

	var limit decimal.NullDecimal
	switch orderType {
	case domain.OrderTypeLimit:
		if req.LimitPrice == nil || !req.LimitPrice.IsPositive() {
			verr.Add("limit_price", "limit price is required and must be greater than 0 for LIMIT orders")
		} else {
			limit = decimal.NewNullDecimal(*req.LimitPrice)
		}
	case domain.OrderTypeMarket:
		if req.LimitPrice != nil {
			verr.Add("limit_price", "limit price must be empty for MARKET orders")
		}
	}

	if err := verr.OrNil(); err != nil {
		return ValidatedOrder{}, err
	}

	return ValidatedOrder{
		AccountID:  account,
		Symbol:     symbol,
		Side:       side,
		Type:       orderType,
		Quantity:   req.Quantity,
		LimitPrice: limit,
	}, nil
}

// Order builds the PENDING record for v.
func (v ValidatedOrder) Order() *domain.Order {
	return &domain.Order{
		AccountID:  v.AccountID,
		Symbol:     v.Symbol,
		Side:       v.Side,
		Type:       v.Type,
		Status:     domain.OrderStatusPending,
		Quantity:   v.Quantity,
		LimitPrice: v.LimitPrice,
	}
}

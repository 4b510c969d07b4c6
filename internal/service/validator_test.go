package service

import (
	"errors"
	"testing"

	"order_go/internal/domain"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

func TestValidate(t *testing.T) {
	valid := CreateOrderRequest{
		AccountID:  "acc-1",
		Symbol:     " aapl ",
		Side:       domain.SideBuy,
		Type:       domain.OrderTypeLimit,
		Quantity:   dec("2"),
		LimitPrice: decPtr("150.25"),
	}

	tests := []struct {
		name       string
		mutate     func(r *CreateOrderRequest)
		wantFields []string
	}{
		{"valid limit", func(r *CreateOrderRequest) {}, nil},
		{"valid market", func(r *CreateOrderRequest) { r.Type = domain.OrderTypeMarket; r.LimitPrice = nil }, nil},
		{"lower case enums", func(r *CreateOrderRequest) { r.Side = "sell"; r.Type = "limit" }, nil},
		{"missing account", func(r *CreateOrderRequest) { r.AccountID = "  " }, []string{"account_id"}},
		{"empty symbol", func(r *CreateOrderRequest) { r.Symbol = "" }, []string{"symbol"}},
		{"short symbol", func(r *CreateOrderRequest) { r.Symbol = "AB" }, []string{"symbol"}},
		{"long symbol", func(r *CreateOrderRequest) { r.Symbol = "ABCDEFGHIJK" }, []string{"symbol"}},
		{"zero quantity", func(r *CreateOrderRequest) { r.Quantity = decimal.Zero }, []string{"quantity"}},
		{"negative quantity", func(r *CreateOrderRequest) { r.Quantity = dec("-1") }, []string{"quantity"}},
		{"limit without price", func(r *CreateOrderRequest) { r.LimitPrice = nil }, []string{"limit_price"}},
		{"limit with zero price", func(r *CreateOrderRequest) { r.LimitPrice = decPtr("0") }, []string{"limit_price"}},
		{"market with price", func(r *CreateOrderRequest) { r.Type = domain.OrderTypeMarket }, []string{"limit_price"}},
		{"unknown side", func(r *CreateOrderRequest) { r.Side = "HOLD" }, []string{"side"}},
		{"unknown type", func(r *CreateOrderRequest) { r.Type = "STOP"; r.LimitPrice = nil }, []string{"type"}},
		{"everything wrong", func(r *CreateOrderRequest) {
			r.AccountID = ""
			r.Symbol = "X"
			r.Quantity = decimal.Zero
			r.LimitPrice = nil
		}, []string{"account_id", "symbol", "quantity", "limit_price"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			got, err := Validate(req)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got.Symbol != "AAPL" {
					t.Errorf("symbol = %q, want AAPL", got.Symbol)
				}
				return
			}

			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if len(verr.Fields) != len(tt.wantFields) {
				t.Fatalf("fields = %+v, want %v", verr.Fields, tt.wantFields)
			}
			for i, f := range tt.wantFields {
				if verr.Fields[i].Field != f {
					t.Errorf("field[%d] = %s, want %s", i, verr.Fields[i].Field, f)
				}
			}
		})
	}
}

func TestValidatedOrder_Order(t *testing.T) {
	v, err := Validate(CreateOrderRequest{
		AccountID:  "acc-1",
		Symbol:     "msft",
		Side:       domain.SideBuy,
		Type:       domain.OrderTypeLimit,
		Quantity:   dec("1.5"),
		LimitPrice: decPtr("300"),
	})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	o := v.Order()
	if o.Status != domain.OrderStatusPending {
		t.Errorf("status = %s, want PENDING", o.Status)
	}
	if !o.LimitPrice.Valid || !o.LimitPrice.Decimal.Equal(dec("300")) {
		t.Errorf("limit price = %+v", o.LimitPrice)
	}
	if err := o.CheckInvariants(); err != nil {
		t.Errorf("pending order breaks invariants: %v", err)
	}
}

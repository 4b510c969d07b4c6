// Package pricing provides PriceSource implementations: the pricing service over
// HTTP, its Redis quote cache and its websocket price stream.
package pricing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"order_go/internal/domain"

	"github.com/shopspring/decimal"
)

// priceMessage is the JSON shape shared by the pricing API, the cache and the stream.
type priceMessage struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

func decodeQuote(data []byte, source string, fallback time.Time) (domain.Quote, error) {
	var msg priceMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.Quote{}, fmt.Errorf("%w: decode %s quote: %v", domain.ErrPriceUnavailable, source, err)
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = fallback
	}

	return domain.Quote{
		Symbol:    strings.ToUpper(msg.Symbol),
		Price:     msg.Price,
		Timestamp: ts,
		Source:    source,
	}, nil
}

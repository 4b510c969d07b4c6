package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"order_go/internal/domain"
	"order_go/internal/infra"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// maxConcurrentLookups bounds ResolveMany fan-out.
const maxConcurrentLookups = 8

// PriceResolver fetches quotes from a PriceSource and refuses anything that
// must not be used as an execution price.
type PriceResolver struct {
	source  domain.PriceSource
	timeout time.Duration
	maxAge  time.Duration
	metrics *infra.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewPriceResolver creates a resolver. maxAge <= 0 disables the staleness check.
func NewPriceResolver(source domain.PriceSource, timeout, maxAge time.Duration, metrics *infra.Metrics) *PriceResolver {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &PriceResolver{
		source:  source,
		timeout: timeout,
		maxAge:  maxAge,
		metrics: metrics,
		logger:  slog.Default().With(slog.String("module", "price_resolver")),
		now:     time.Now,
	}
}

type quoteResult struct {
	quote domain.Quote
	err   error
}

// Resolve returns a positive, fresh quote for symbol or an error wrapping ErrPriceUnavailable.
// The lookup is abandoned after the configured timeout even if the source ignores ctx.
func (r *PriceResolver) Resolve(ctx context.Context, symbol string) (domain.Quote, error) {
	ctx, span := tracer.Start(ctx, "price.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ch := make(chan quoteResult, 1)
	go func() {
		q, err := r.source.Quote(ctx, symbol)
		ch <- quoteResult{quote: q, err: err}
	}()

	var res quoteResult
	select {
	case res = <-ch:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	q, err := res.quote, res.err
	result := "ok"
	switch {
	case err != nil:
		result = "unavailable"
		if !errors.Is(err, domain.ErrPriceUnavailable) {
			err = fmt.Errorf("%w: %s: %w", domain.ErrPriceUnavailable, symbol, err)
		}
	default:
		if cerr := q.Check(r.now(), r.maxAge); cerr != nil {
			result, err = "invalid", cerr
		}
	}
	r.metrics.RecordPriceLookup(result, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Quote{}, err
	}
	span.SetAttributes(attribute.String("price", q.Price.String()))
	return q, nil
}

// ResolveMany looks up symbols concurrently. Symbols without a usable quote are
// absent from the result.
func (r *PriceResolver) ResolveMany(ctx context.Context, symbols []string) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(symbols))
	if len(symbols) == 0 {
		return prices
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, maxConcurrentLookups)
	)
	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			q, err := r.Resolve(ctx, symbol)
			if err != nil {
				r.logger.WarnContext(ctx, "No price for holding, valuing at zero",
					slog.String("symbol", symbol),
					slog.Any("error", err),
				)
				return
			}
			mu.Lock()
			prices[symbol] = q.Price
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()
	return prices
}

// PricePolicy turns an order into its execution price.
type PricePolicy struct {
	resolver *PriceResolver
	// LimitBuyRequiresQuote rejects a LIMIT BUY when no quote is available
	// instead of executing it at the limit price.
	LimitBuyRequiresQuote bool
	metrics               *infra.Metrics
	logger                *slog.Logger
}

// NewPricePolicy creates the execution price policy over resolver.
func NewPricePolicy(resolver *PriceResolver, limitBuyRequiresQuote bool, metrics *infra.Metrics) *PricePolicy {
	return &PricePolicy{
		resolver:              resolver,
		LimitBuyRequiresQuote: limitBuyRequiresQuote,
		metrics:               metrics,
		logger:                slog.Default().With(slog.String("module", "price_policy")),
	}
}

// ExecutionPrice applies the per-type rules:
// MARKET needs a quote; LIMIT BUY executes at the quote when it is at or below
// the limit, is not marketable above it, and takes the limit when no quote is
// available; LIMIT SELL executes at the limit without a lookup.
func (p *PricePolicy) ExecutionPrice(ctx context.Context, v ValidatedOrder) (decimal.Decimal, error) {
	if v.Type == domain.OrderTypeLimit && v.Side == domain.SideSell {
		return v.LimitPrice.Decimal, nil
	}

	q, err := p.resolver.Resolve(ctx, v.Symbol)
	if v.Type == domain.OrderTypeMarket {
		if err != nil {
			return decimal.Zero, err
		}
		return q.Price, nil
	}

	limit := v.LimitPrice.Decimal
	if err != nil {
		if p.LimitBuyRequiresQuote {
			return decimal.Zero, err
		}
		p.metrics.RecordQuoteBypass()
		p.logger.WarnContext(ctx, "No quote for LIMIT BUY, executing at limit price",
			slog.String("account", v.AccountID),
			slog.String("symbol", v.Symbol),
			slog.String("limit_price", limit.String()),
			slog.Any("error", err),
		)
		return limit, nil
	}
	if q.Price.GreaterThan(limit) {
		return decimal.Zero, fmt.Errorf("%w: %s quoted %s, limit %s", domain.ErrLimitNotMarketable, v.Symbol, q.Price, limit)
	}
	return q.Price, nil
}

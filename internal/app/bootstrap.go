package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"order_go/internal/api"
	"order_go/internal/domain"
	"order_go/internal/event"
	"order_go/internal/execution"
	"order_go/internal/infra"
	"order_go/internal/infra/notify"
	"order_go/internal/infra/pricing"
	"order_go/internal/infra/storage"
	"order_go/internal/infra/wallet"
	"order_go/internal/service"
	"order_go/internal/settlement"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config     *infra.Config
	Storage    *storage.Storage
	Metrics    *infra.Metrics
	Registry   *prometheus.Registry
	Dispatcher *event.Dispatcher
	Orders     *service.Orchestrator
	Prices     *service.PriceResolver

	stream  *pricing.StreamSource
	closers []func(context.Context) error
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and wires every component.
func (b *Bootstrap) Initialize(ctx context.Context, configPath string) error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	return b.InitializeWith(ctx, cfg)
}

// InitializeWith wires every component from an already loaded configuration.
func (b *Bootstrap) InitializeWith(ctx context.Context, cfg *infra.Config) error {
	b.Config = cfg

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))
	slog.Info("Bootstrapping order service", slog.String("version", cfg.App.Version))

	// 3. Tracing
	shutdownTracer, err := infra.InitTracer(ctx, cfg)
	if err != nil {
		slog.Warn("Tracing disabled", slog.Any("error", err))
	}
	b.closers = append(b.closers, shutdownTracer)

	// 4. Metrics
	b.Registry = prometheus.NewRegistry()
	b.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	b.Metrics = infra.NewMetrics(b.Registry)

	// 5. Storage
	store, err := storage.NewStorage(cfg.Database.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	b.closers = append(b.closers, func(context.Context) error { return store.Close() })
	slog.Info("Database initialized", slog.String("path", cfg.Database.Path))

	// 6. Price source
	source, err := b.priceSource(ctx)
	if err != nil {
		return err
	}
	b.Prices = service.NewPriceResolver(source, cfg.PriceTimeout(), cfg.PriceMaxAge(), b.Metrics)
	policy := service.NewPricePolicy(b.Prices, cfg.Pricing.LimitBuyRequiresQuote, b.Metrics)

	// 7. Account ledger
	ledger := b.accountLedger()
	coord := settlement.NewCoordinator(ledger, settlement.Config{
		MaxAttempts: cfg.Settlement.MaxAttempts,
		CallTimeout: cfg.SettlementCallTimeout(),
		Backoff:     cfg.SettlementBackoff(),
	}, b.Metrics)

	// 8. Events
	publisher, err := b.eventPublisher()
	if err != nil {
		return err
	}
	b.Dispatcher = event.NewDispatcher(cfg.Events.BufferSize, publisher, b.Metrics)

	b.Orders = service.NewOrchestrator(store, policy, coord, b.Dispatcher, b.Metrics)
	slog.Info("Order service ready",
		slog.String("pricing", cfg.Pricing.Source),
		slog.String("ledger", cfg.Ledger.Mode),
		slog.String("events", cfg.Events.Sink),
	)
	return nil
}

func (b *Bootstrap) priceSource(ctx context.Context) (domain.PriceSource, error) {
	cfg := b.Config
	switch cfg.Pricing.Source {
	case infra.PriceSourceRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Pricing.RedisAddr})
		b.closers = append(b.closers, func(context.Context) error { return client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Warn("Redis not reachable yet", slog.String("addr", cfg.Pricing.RedisAddr), slog.Any("error", err))
		}
		return pricing.NewRedisSource(client), nil
	case infra.PriceSourceStream:
		stream := pricing.NewStreamSource(cfg.Pricing.WSURL, cfg.Pricing.Symbols)
		if err := stream.Connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to start price stream: %w", err)
		}
		b.closers = append(b.closers, func(context.Context) error { stream.Disconnect(); return nil })
		b.stream = stream
		return stream, nil
	default:
		return pricing.NewHTTPSource(cfg.Pricing.BaseURL, cfg.PriceTimeout()), nil
	}
}

func (b *Bootstrap) accountLedger() domain.AccountLedger {
	if b.Config.Ledger.Mode == infra.LedgerModePaper {
		slog.Warn("Using in-memory paper ledger", slog.Int("accounts", len(b.Config.Ledger.InitialBalances)))
		return execution.NewPaperLedger(b.Config.Ledger.InitialBalances)
	}
	return wallet.NewClient(b.Config)
}

func (b *Bootstrap) eventPublisher() (domain.EventPublisher, error) {
	cfg := b.Config
	if cfg.Events.Sink != infra.EventSinkNATS {
		return notify.NewLogPublisher(slog.Default()), nil
	}
	pub, err := notify.NewNATSPublisher(cfg.Events.NATSURL, cfg.App.Name, cfg.Events.Subject)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, func(context.Context) error { pub.Close(); return nil })
	return pub, nil
}

// Serve runs the event dispatcher and the HTTP server until ctx is cancelled.
func (b *Bootstrap) Serve(ctx context.Context) error {
	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()
	go b.Dispatcher.Run(dispatchCtx)

	handler := api.NewHandler(b.Orders, b.Storage)
	if b.stream != nil {
		handler.WithPriceFeed(b.stream)
	}
	router := api.NewRouter(handler, b.Metrics, b.Registry)
	srv := &http.Server{
		Addr:              b.Config.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if err != nil {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), b.Config.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", slog.Any("error", err))
	}

	stopDispatch()
	select {
	case <-b.Dispatcher.Done():
	case <-shutdownCtx.Done():
		slog.Warn("Event dispatcher did not stop in time")
	}
	return serveErr
}

// Close releases resources in reverse order of acquisition.
func (b *Bootstrap) Close(ctx context.Context) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			slog.Warn("Close failed", slog.Any("error", err))
		}
	}
	b.closers = nil
}

package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"order_go/internal/domain"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent identifies this service to the price and wallet services
	DefaultUserAgent = "order_go/1.0"

	PriceSourceHTTP   = "http"
	PriceSourceRedis  = "redis"
	PriceSourceStream = "stream"

	LedgerModeHTTP  = "http"
	LedgerModePaper = "paper"

	EventSinkNATS = "nats"
	EventSinkLog  = "log"
)

// Config holds every setting of the service.
// LoadConfig reads it from YAML and then lets environment variables override secrets and endpoints.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr               string `yaml:"addr"`
		ShutdownTimeoutSec int    `yaml:"shutdown_timeout_sec"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Pricing struct {
		Source                string   `yaml:"source"` // http, redis, stream
		BaseURL               string   `yaml:"base_url"`
		WSURL                 string   `yaml:"ws_url"`
		RedisAddr             string   `yaml:"redis_addr"`
		Symbols               []string `yaml:"symbols"` // stream subscription
		TimeoutMS             int      `yaml:"timeout_ms"`
		MaxAgeSec             int      `yaml:"max_age_sec"`
		LimitBuyRequiresQuote bool     `yaml:"limit_buy_requires_quote"`
	} `yaml:"pricing"`

	Ledger struct {
		Mode            string                     `yaml:"mode"` // http, paper
		BaseURL         string                     `yaml:"base_url"`
		AccessKey       string                     `yaml:"access_key"`
		Secret          string                     `yaml:"secret"`
		InitialBalances map[string]decimal.Decimal `yaml:"initial_balances"` // paper mode seed
	} `yaml:"ledger"`

	Settlement struct {
		MaxAttempts      int `yaml:"max_attempts"`
		CallTimeoutMS    int `yaml:"call_timeout_ms"`
		RetryBaseDelayMS int `yaml:"retry_base_delay_ms"`
		RetryMaxDelayMS  int `yaml:"retry_max_delay_ms"`
	} `yaml:"settlement"`

	Events struct {
		Sink       string `yaml:"sink"` // nats, log
		NATSURL    string `yaml:"nats_url"`
		Subject    string `yaml:"subject"`
		BufferSize int    `yaml:"buffer_size"`
	} `yaml:"events"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`

	Telemetry struct {
		ServiceName  string `yaml:"service_name"`
		OTLPEndpoint string `yaml:"otlp_endpoint"`
	} `yaml:"telemetry"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML, applies defaults and env overrides, then validates.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "order_go"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeoutSec <= 0 {
		c.Server.ShutdownTimeoutSec = 10
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/orders.db"
	}
	if c.Pricing.Source == "" {
		c.Pricing.Source = PriceSourceHTTP
	}
	if c.Pricing.TimeoutMS <= 0 {
		c.Pricing.TimeoutMS = 2000
	}
	if c.Ledger.Mode == "" {
		c.Ledger.Mode = LedgerModeHTTP
	}
	if c.Settlement.MaxAttempts <= 0 {
		c.Settlement.MaxAttempts = 3
	}
	if c.Settlement.CallTimeoutMS <= 0 {
		c.Settlement.CallTimeoutMS = 3000
	}
	if c.Settlement.RetryBaseDelayMS <= 0 {
		c.Settlement.RetryBaseDelayMS = 100
	}
	if c.Settlement.RetryMaxDelayMS <= 0 {
		c.Settlement.RetryMaxDelayMS = 2000
	}
	if c.Events.Sink == "" {
		c.Events.Sink = EventSinkLog
	}
	if c.Events.Subject == "" {
		c.Events.Subject = "order_filled"
	}
	if c.Events.BufferSize <= 0 {
		c.Events.BufferSize = 1024
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = c.App.Name
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	switch c.Pricing.Source {
	case PriceSourceHTTP:
		if !hasPrefix(c.Pricing.BaseURL, "http://") && !hasPrefix(c.Pricing.BaseURL, "https://") {
			return &domain.ConfigError{Field: "pricing.base_url", Err: fmt.Errorf("invalid URL %q", c.Pricing.BaseURL)}
		}
	case PriceSourceRedis:
		if c.Pricing.RedisAddr == "" {
			return &domain.ConfigError{Field: "pricing.redis_addr", Err: errors.New("required for redis source")}
		}
	case PriceSourceStream:
		if !hasPrefix(c.Pricing.WSURL, "ws://") && !hasPrefix(c.Pricing.WSURL, "wss://") {
			return &domain.ConfigError{Field: "pricing.ws_url", Err: fmt.Errorf("invalid WS URL %q", c.Pricing.WSURL)}
		}
		if len(c.Pricing.Symbols) == 0 {
			return &domain.ConfigError{Field: "pricing.symbols", Err: errors.New("at least one symbol is required for stream source")}
		}
	default:
		return &domain.ConfigError{Field: "pricing.source", Err: fmt.Errorf("unknown source %q", c.Pricing.Source)}
	}

	switch c.Ledger.Mode {
	case LedgerModeHTTP:
		if !hasPrefix(c.Ledger.BaseURL, "http://") && !hasPrefix(c.Ledger.BaseURL, "https://") {
			return &domain.ConfigError{Field: "ledger.base_url", Err: fmt.Errorf("invalid URL %q", c.Ledger.BaseURL)}
		}
	case LedgerModePaper:
		for account, amount := range c.Ledger.InitialBalances {
			if amount.IsNegative() {
				return &domain.ConfigError{Field: "ledger.initial_balances." + account, Err: errors.New("must not be negative")}
			}
		}
	default:
		return &domain.ConfigError{Field: "ledger.mode", Err: fmt.Errorf("unknown mode %q", c.Ledger.Mode)}
	}

	switch c.Events.Sink {
	case EventSinkLog:
	case EventSinkNATS:
		if c.Events.NATSURL == "" {
			return &domain.ConfigError{Field: "events.nats_url", Err: errors.New("required for nats sink")}
		}
	default:
		return &domain.ConfigError{Field: "events.sink", Err: fmt.Errorf("unknown sink %q", c.Events.Sink)}
	}

	if c.Settlement.RetryMaxDelayMS < c.Settlement.RetryBaseDelayMS {
		return &domain.ConfigError{Field: "settlement.retry_max_delay_ms", Err: errors.New("must not be below retry_base_delay_ms")}
	}

	return nil
}

// PriceTimeout bounds a single price resolution.
func (c *Config) PriceTimeout() time.Duration {
	return time.Duration(c.Pricing.TimeoutMS) * time.Millisecond
}

// PriceMaxAge is the oldest quote accepted; zero disables the check.
func (c *Config) PriceMaxAge() time.Duration {
	return time.Duration(c.Pricing.MaxAgeSec) * time.Second
}

// SettlementCallTimeout bounds a single ledger call.
func (c *Config) SettlementCallTimeout() time.Duration {
	return time.Duration(c.Settlement.CallTimeoutMS) * time.Millisecond
}

// ShutdownTimeout bounds graceful shutdown of the HTTP server.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSec) * time.Second
}

func hasPrefix(s, prefix string) bool {
	return strings.HasPrefix(s, prefix)
}

// overrideWithEnv overwrites settings when the matching environment variable is set.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("ORDER_LEDGER_KEY"); v != "" {
		cfg.Ledger.AccessKey = v
	}
	if v := os.Getenv("ORDER_LEDGER_SECRET"); v != "" {
		cfg.Ledger.Secret = v
	}
	if v := os.Getenv("ORDER_LEDGER_URL"); v != "" {
		cfg.Ledger.BaseURL = v
	}
	if v := os.Getenv("ORDER_PRICING_URL"); v != "" {
		cfg.Pricing.BaseURL = v
	}
	if v := os.Getenv("ORDER_REDIS_ADDR"); v != "" {
		cfg.Pricing.RedisAddr = v
	}
	if v := os.Getenv("ORDER_NATS_URL"); v != "" {
		cfg.Events.NATSURL = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
}

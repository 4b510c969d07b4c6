package infra

import "time"

// Backoff is an exponential delay schedule capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before retry number retryCount (0-based): Base * 2^retryCount, capped.
func (b Backoff) Delay(retryCount int) time.Duration {
	if retryCount < 0 {
		return b.Base
	}

	// 2^30 * any sane base is already past any sane cap
	if retryCount > 30 {
		return b.Max
	}

	d := b.Base * time.Duration(1<<retryCount)
	if d > b.Max || d <= 0 {
		return b.Max
	}
	return d
}

// SettlementBackoff builds the ledger retry schedule from config.
func (c *Config) SettlementBackoff() Backoff {
	return Backoff{
		Base: time.Duration(c.Settlement.RetryBaseDelayMS) * time.Millisecond,
		Max:  time.Duration(c.Settlement.RetryMaxDelayMS) * time.Millisecond,
	}
}

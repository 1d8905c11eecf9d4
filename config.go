package x402

import "time"

// TimeoutConfig bounds the blocking operations of the protocol core.
// Values are copied on modification, so DefaultTimeouts is never mutated.
type TimeoutConfig struct {
	// VerifyTimeout bounds a single verification pass, including the
	// on-chain transaction lookup.
	VerifyTimeout time.Duration

	// SettleTimeout bounds transaction submission plus the confirmation wait.
	SettleTimeout time.Duration

	// RequestTimeout bounds a full client request/pay/retry cycle.
	RequestTimeout time.Duration
}

// DefaultTimeouts holds the standard protocol timeouts.
var DefaultTimeouts = TimeoutConfig{
	VerifyTimeout:  5 * time.Second,
	SettleTimeout:  60 * time.Second,
	RequestTimeout: 120 * time.Second,
}

// WithVerifyTimeout returns a copy with the verify timeout replaced.
func (c TimeoutConfig) WithVerifyTimeout(d time.Duration) TimeoutConfig {
	c.VerifyTimeout = d
	return c
}

// WithSettleTimeout returns a copy with the settle timeout replaced.
func (c TimeoutConfig) WithSettleTimeout(d time.Duration) TimeoutConfig {
	c.SettleTimeout = d
	return c
}

// WithRequestTimeout returns a copy with the request timeout replaced.
func (c TimeoutConfig) WithRequestTimeout(d time.Duration) TimeoutConfig {
	c.RequestTimeout = d
	return c
}

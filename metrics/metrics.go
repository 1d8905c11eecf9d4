// Package metrics defines the instrumentation interface for the payment
// pipeline, with prometheus and noop implementations.
package metrics

import "time"

// Event names recorded by the protocol core.
const (
	EventVerifyAccepted = "verify_accepted"
	EventVerifyRejected = "verify_rejected"
	EventPaymentBuilt   = "payment_built"
	EventPaymentFailed  = "payment_failed"
	EventReplayBlocked  = "replay_blocked"
)

// Recorder receives counters and latency observations from the pipeline.
// Implementations must be safe for concurrent use.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// NoopRecorder discards all observations. Default where none is injected.
type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}

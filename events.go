package x402

import "time"

// PaymentEventType identifies the stage of a payment attempt.
type PaymentEventType string

const (
	// PaymentEventAttempt fires when a payment is about to be built and sent.
	PaymentEventAttempt PaymentEventType = "attempt"

	// PaymentEventSuccess fires when a paid retry came back settled.
	PaymentEventSuccess PaymentEventType = "success"

	// PaymentEventFailure fires when building or sending the payment failed.
	PaymentEventFailure PaymentEventType = "failure"
)

// PaymentEvent describes one payment lifecycle event on the client side.
type PaymentEvent struct {
	Type      PaymentEventType
	Timestamp time.Time

	// Request context.
	Method string
	URL    string

	// Payment context, populated from the selected requirement.
	Network   string
	Scheme    string
	Amount    string
	Asset     string
	Recipient string

	// Outcome context.
	Transaction string
	Error       error
	Duration    time.Duration
}

// PaymentCallback observes payment lifecycle events. Callbacks run inline on
// the request path and must not block.
type PaymentCallback func(PaymentEvent)

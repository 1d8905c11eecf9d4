// Package http provides HTTP middleware for x402 payment gating over local
// verification: requests without a valid payment proof receive a 402
// challenge, requests with one are verified and passed through with a
// settlement receipt header.
package http

import (
	"context"
	"net/http"

	x402 "github.com/x402lab/x402-solana"
	"github.com/x402lab/x402-solana/encoding"
	"github.com/x402lab/x402-solana/http/internal/helpers"
	"github.com/x402lab/x402-solana/logger"
	"github.com/x402lab/x402-solana/metrics"
	"github.com/x402lab/x402-solana/verify"
)

// Config holds the configuration for the x402 middleware.
type Config struct {
	// Verifier runs the verification pipeline (required).
	Verifier *verify.Verifier

	// Requirements is the static accepts list for protected endpoints.
	Requirements []x402.PaymentRequirement

	// RequirementsFor, when set, derives the accepts list per request and
	// takes precedence over Requirements. Useful for per-route pricing.
	RequirementsFor func(r *http.Request) []x402.PaymentRequirement

	// Logger receives structured flow logs; nil means silent.
	Logger logger.Logger

	// Metrics receives pipeline counters; nil means discarded.
	Metrics metrics.Recorder

	// Timeouts bounds the verification pass. Zero value means DefaultTimeouts.
	Timeouts x402.TimeoutConfig
}

func (c *Config) logger() logger.Logger {
	if c.Logger == nil {
		return logger.NoopLogger{}
	}
	return c.Logger
}

func (c *Config) timeouts() x402.TimeoutConfig {
	if c.Timeouts == (x402.TimeoutConfig{}) {
		return x402.DefaultTimeouts
	}
	return c.Timeouts
}

func (c *Config) requirementsFor(r *http.Request) []x402.PaymentRequirement {
	if c.RequirementsFor != nil {
		return helpers.WithResource(c.RequirementsFor(r), r)
	}
	return helpers.WithResource(c.Requirements, r)
}

// VerifiedPayment is what a protected handler can read back about the
// payment that admitted the request.
type VerifiedPayment struct {
	Proof       x402.PaymentProof
	Requirement x402.PaymentRequirement
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// PaymentContextKey is the context key holding the *VerifiedPayment after
// successful verification.
const PaymentContextKey = contextKey("x402_payment")

// PaymentFromContext extracts the verified payment, if the request went
// through the payment gate.
func PaymentFromContext(ctx context.Context) (*VerifiedPayment, bool) {
	payment, ok := ctx.Value(PaymentContextKey).(*VerifiedPayment)
	return payment, ok
}

// GateResult is the framework-neutral outcome of gating one request. Each
// adapter translates it into its framework's response idiom.
type GateResult struct {
	// Allowed reports whether the request may reach the protected handler.
	Allowed bool

	// Status is the response status to send when not allowed (402, 400, 503).
	Status int

	// Challenge is the 402 body, set when Status is 402.
	Challenge *x402.PaymentChallenge

	// ErrorBody is the JSON body for 400/503 refusals.
	ErrorBody map[string]any

	// Payment describes the admitting proof, set when Allowed.
	Payment *VerifiedPayment

	// ReceiptHeader is the X-PAYMENT-RESPONSE value to attach, set when Allowed.
	ReceiptHeader string
}

// Gate runs the payment gate for one request: challenge when no proof is
// presented, 400 on a malformed header, verification otherwise.
func Gate(ctx context.Context, config *Config, r *http.Request) GateResult {
	log := config.logger()
	requirements := config.requirementsFor(r)
	if len(requirements) == 0 {
		log.Error("no payment requirements configured", map[string]any{"path": r.URL.Path})
		return GateResult{
			Status:    http.StatusServiceUnavailable,
			ErrorBody: helpers.MalformedHeaderBody("No payment requirements configured"),
		}
	}

	header := r.Header.Get(x402.HeaderPayment)
	if header == "" {
		log.Info("no payment header, issuing challenge", map[string]any{"path": r.URL.Path})
		challenge := x402.NewChallenge(requirements)
		return GateResult{Status: http.StatusPaymentRequired, Challenge: &challenge}
	}

	proof, err := encoding.DecodeProof(header)
	if err != nil {
		log.Warn("malformed payment header", map[string]any{"error": err.Error()})
		return GateResult{
			Status:    http.StatusBadRequest,
			ErrorBody: helpers.MalformedHeaderBody("Invalid payment header: " + err.Error()),
		}
	}

	// Route the proof to the requirement it claims to satisfy; a proof for
	// an unoffered scheme/network still goes through the pipeline so the
	// rejection reason comes out in pipeline order.
	requirement := requirements[0]
	if matched, merr := x402.MatchRequirement(proof, requirements); merr == nil {
		requirement = *matched
	}

	vctx, cancel := context.WithTimeout(ctx, config.timeouts().VerifyTimeout)
	defer cancel()

	result, err := config.Verifier.Verify(vctx, proof, requirement)
	if err != nil {
		log.Error("verification infrastructure failure", map[string]any{"error": err.Error()})
		return GateResult{
			Status:    http.StatusServiceUnavailable,
			ErrorBody: helpers.MalformedHeaderBody("Payment verification unavailable"),
		}
	}
	if !result.Accepted {
		challenge := x402.RejectedChallenge(requirements, result.Detail)
		return GateResult{Status: http.StatusPaymentRequired, Challenge: &challenge}
	}

	receipt := x402.SettlementReceipt{Success: true, NetworkID: requirement.Network}
	if config.Verifier.Mode() == x402.ModeOnChain {
		tx := proof.Payload.Signature
		receipt.TxHash = &tx
	}
	receiptHeader, err := encoding.EncodeReceipt(receipt)
	if err != nil {
		// Payment is already committed; the receipt is informational.
		log.Warn("failed to encode settlement receipt", map[string]any{"error": err.Error()})
		receiptHeader = ""
	}

	return GateResult{
		Allowed:       true,
		Payment:       &VerifiedPayment{Proof: proof, Requirement: requirement},
		ReceiptHeader: receiptHeader,
	}
}

// NewMiddleware creates the stdlib x402 payment middleware. Mount it only on
// routes that require payment; unwrapped routes never see the gate.
func NewMiddleware(config *Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := Gate(r.Context(), config, r)
			if !result.Allowed {
				WriteGateResult(w, result)
				return
			}

			if result.ReceiptHeader != "" {
				w.Header().Set(x402.HeaderPaymentResponse, result.ReceiptHeader)
			}
			ctx := context.WithValue(r.Context(), PaymentContextKey, result.Payment)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WriteGateResult renders a refusing GateResult onto a stdlib ResponseWriter.
func WriteGateResult(w http.ResponseWriter, result GateResult) {
	if result.Challenge != nil {
		helpers.WriteJSON(w, result.Status, result.Challenge)
		return
	}
	helpers.WriteJSON(w, result.Status, result.ErrorBody)
}

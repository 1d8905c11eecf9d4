// Package x402 implements the core types and helpers of the x402 HTTP
// micropayment protocol for Solana networks: the 402 challenge, the signed
// payment proof carried in the X-PAYMENT header, and the settlement receipt
// returned in X-PAYMENT-RESPONSE.
package x402

import "fmt"

// Protocol constants.
const (
	// ProtocolVersion is the x402 protocol version this implementation speaks.
	ProtocolVersion = 1

	// SchemeExact is the only payment scheme currently defined: the proof's
	// amount must equal the requirement's amount, with no overpayment credit.
	SchemeExact = "exact"

	// HeaderPayment is the request header carrying the encoded payment proof.
	HeaderPayment = "X-PAYMENT"

	// HeaderPaymentResponse is the response header carrying the settlement receipt.
	HeaderPaymentResponse = "X-PAYMENT-RESPONSE"

	// DefaultMaxTimeoutSeconds is the challenge validity window applied when a
	// requirement does not specify one.
	DefaultMaxTimeoutSeconds = 300
)

// SettlementMode selects how a payment proof is produced and verified.
type SettlementMode int

const (
	// ModeOffChain proves payment with an ed25519 signature over the canonical
	// message. No ledger round-trip is involved.
	ModeOffChain SettlementMode = iota

	// ModeOnChain proves payment with a confirmed ledger transaction whose
	// signature doubles as the proof signature.
	ModeOnChain
)

// String implements fmt.Stringer.
func (m SettlementMode) String() string {
	switch m {
	case ModeOffChain:
		return "off-chain"
	case ModeOnChain:
		return "on-chain"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// PaymentRequirement is one acceptable way to pay for a resource, emitted by
// the server inside a 402 challenge. It is immutable once emitted.
type PaymentRequirement struct {
	// Scheme is the payment scheme identifier (currently only "exact").
	Scheme string `json:"scheme"`

	// Network is the ledger network identifier (e.g. "solana", "solana-devnet").
	// Client and server must match exactly.
	Network string `json:"network"`

	// MaxAmountRequired is the payment amount in atomic units, as an unsigned
	// decimal string (10000 = 0.01 USDC for the 6-decimal reference asset).
	MaxAmountRequired string `json:"maxAmountRequired"`

	// Resource is the canonical path or URL being protected.
	Resource string `json:"resource"`

	// PayTo is the recipient address on the ledger.
	PayTo string `json:"payTo"`

	// Asset is the mint address of the required token.
	Asset string `json:"asset"`

	// Description is an optional human-readable payment description.
	Description string `json:"description,omitempty"`

	// MimeType is the content type of the protected resource.
	MimeType string `json:"mimeType,omitempty"`

	// OutputSchema optionally describes the protected response shape.
	OutputSchema map[string]interface{} `json:"outputSchema,omitempty"`

	// MaxTimeoutSeconds bounds the challenge's validity window.
	// Zero means DefaultMaxTimeoutSeconds.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds,omitempty"`
}

// TimeoutSeconds returns the effective validity window for the requirement.
func (r PaymentRequirement) TimeoutSeconds() int {
	if r.MaxTimeoutSeconds <= 0 {
		return DefaultMaxTimeoutSeconds
	}
	return r.MaxTimeoutSeconds
}

// PaymentChallenge is the full body of a 402 response. Error is nil on a
// fresh challenge and carries the rejection detail when a retried request is
// still refused, so it serializes as JSON null or a string.
type PaymentChallenge struct {
	X402Version int                  `json:"x402Version"`
	Accepts     []PaymentRequirement `json:"accepts"`
	Error       *string              `json:"error"`
}

// NewChallenge builds a fresh challenge (error null) for the given accepts list.
func NewChallenge(accepts []PaymentRequirement) PaymentChallenge {
	return PaymentChallenge{X402Version: ProtocolVersion, Accepts: accepts}
}

// RejectedChallenge builds a challenge that repeats the accepts list and
// explains why the presented proof was refused.
func RejectedChallenge(accepts []PaymentRequirement, detail string) PaymentChallenge {
	return PaymentChallenge{X402Version: ProtocolVersion, Accepts: accepts, Error: &detail}
}

// ProofPayload is the network-specific inner payload of a payment proof.
type ProofPayload struct {
	// Signature is the proof of payment: either a ledger transaction signature
	// (on-chain mode) or a base58 ed25519 signature over the canonical message
	// (off-chain mode). Reuse of a signature is the replay attack this
	// protocol defends against.
	Signature string `json:"signature"`

	// From is the payer's address, which must match the signer of Signature.
	From string `json:"from"`

	// Amount is the atomic units actually paid, as an unsigned decimal string.
	Amount string `json:"amount"`

	// Mint is the token mint actually used.
	Mint string `json:"mint"`

	// Timestamp is the unix-seconds creation time of the proof.
	Timestamp int64 `json:"timestamp"`
}

// PaymentProof is the payload the client constructs from a chosen requirement
// and sends back in the X-PAYMENT header.
type PaymentProof struct {
	X402Version int          `json:"x402Version"`
	Scheme      string       `json:"scheme"`
	Network     string       `json:"network"`
	Payload     ProofPayload `json:"payload"`
}

// SettlementReceipt is the optional X-PAYMENT-RESPONSE header body attached
// to a successfully paid response. Informational only.
type SettlementReceipt struct {
	Success   bool    `json:"success"`
	Error     *string `json:"error"`
	TxHash    *string `json:"txHash"`
	NetworkID string  `json:"networkId"`
}

// UsedSignatureRecord is the replay-store entry created the instant a proof
// passes full verification. Immutable thereafter.
type UsedSignatureRecord struct {
	Signature string `json:"signature"`
	UsedAt    int64  `json:"usedAt"` // unix milliseconds
	Endpoint  string `json:"endpoint"`
	Amount    string `json:"amount"`

	// WindowSeconds is the freshness window of the admitting requirement.
	// A record must never be pruned while a proof this old could still pass
	// the timestamp check.
	WindowSeconds int64 `json:"windowSeconds"`
}

// CanonicalMessage renders the deterministic byte string an off-chain proof
// signs. Builder and verifier must agree on this rendering bit for bit.
func CanonicalMessage(from, amount, mint string, timestamp int64) []byte {
	return []byte(fmt.Sprintf("x402:%s:%s:%s:%d", from, amount, mint, timestamp))
}

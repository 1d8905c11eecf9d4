// Package verify implements server-side payment verification: a fixed
// sequence of checks over a decoded payment proof, ending in an atomic
// replay-store commit so each signature is accepted at most once.
package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	x402 "github.com/x402lab/x402-solana"
	"github.com/x402lab/x402-solana/encoding"
	"github.com/x402lab/x402-solana/ledger"
	"github.com/x402lab/x402-solana/logger"
	"github.com/x402lab/x402-solana/metrics"
	"github.com/x402lab/x402-solana/replay"
)

// DefaultClockSkew is how far in the future a proof timestamp may sit before
// it is treated as invalid, absorbing client/server clock drift.
const DefaultClockSkew = 30 * time.Second

// Result is the outcome of verifying one payment proof. When Accepted is
// false, Reason identifies the first check that refused the proof and Detail
// is a human-readable explanation suitable for a challenge error field.
type Result struct {
	Accepted bool
	Reason   x402.RejectKind
	Detail   string
}

func reject(reason x402.RejectKind, detail string) Result {
	return Result{Reason: reason, Detail: detail}
}

// Verifier runs the verification pipeline. Checks run in a fixed order and
// the first failure wins; the replay store is only written after every other
// check has passed.
type Verifier struct {
	store     replay.Store
	ledger    ledger.Ledger
	mode      x402.SettlementMode
	clockSkew time.Duration
	now       func() time.Time
	log       logger.Logger
	rec       metrics.Recorder
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithMode selects off-chain or on-chain verification. Default is off-chain.
func WithMode(mode x402.SettlementMode) Option {
	return func(v *Verifier) { v.mode = mode }
}

// WithLedger injects the settlement ledger, required for on-chain mode.
func WithLedger(l ledger.Ledger) Option {
	return func(v *Verifier) { v.ledger = l }
}

// WithLogger sets the structured logger.
func WithLogger(log logger.Logger) Option {
	return func(v *Verifier) { v.log = log }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(rec metrics.Recorder) Option {
	return func(v *Verifier) { v.rec = rec }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// WithClockSkew overrides the allowed future-timestamp tolerance.
func WithClockSkew(skew time.Duration) Option {
	return func(v *Verifier) { v.clockSkew = skew }
}

// NewVerifier builds a Verifier over the given replay store.
func NewVerifier(store replay.Store, opts ...Option) (*Verifier, error) {
	if store == nil {
		return nil, errors.New("verify: replay store is required")
	}

	v := &Verifier{
		store:     store,
		mode:      x402.ModeOffChain,
		clockSkew: DefaultClockSkew,
		now:       time.Now,
		log:       logger.NoopLogger{},
		rec:       metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(v)
	}

	if v.mode == x402.ModeOnChain && v.ledger == nil {
		return nil, errors.New("verify: on-chain mode requires a ledger")
	}
	return v, nil
}

// Mode reports the verifier's settlement mode.
func (v *Verifier) Mode() x402.SettlementMode { return v.mode }

// VerifyHeader decodes a raw X-PAYMENT header value and verifies it against
// the requirement. Decode failures surface as an invalid_format rejection.
func (v *Verifier) VerifyHeader(ctx context.Context, header string, req x402.PaymentRequirement) (Result, error) {
	proof, err := encoding.DecodeProof(header)
	if err != nil {
		return reject(x402.RejectInvalidFormat, fmt.Sprintf("invalid payment header: %v", err)), nil
	}
	return v.Verify(ctx, proof, req)
}

// Verify runs the full pipeline over an already-decoded proof. The returned
// error is non-nil only for infrastructure failures (replay store I/O, ledger
// RPC transport); every protocol-level refusal is reported in the Result.
func (v *Verifier) Verify(ctx context.Context, proof x402.PaymentProof, req x402.PaymentRequirement) (Result, error) {
	start := v.now()
	res, err := v.run(ctx, proof, req)
	if err != nil {
		return res, err
	}

	labels := map[string]string{"network": req.Network}
	if res.Accepted {
		v.rec.IncCounter(metrics.EventVerifyAccepted, labels)
		v.log.Info("payment accepted", map[string]any{
			"signature": proof.Payload.Signature,
			"network":   req.Network,
			"amount":    proof.Payload.Amount,
			"resource":  req.Resource,
		})
	} else {
		labels["reason"] = string(res.Reason)
		v.rec.IncCounter(metrics.EventVerifyRejected, labels)
		if res.Reason == x402.RejectAlreadyProcessed {
			v.rec.IncCounter(metrics.EventReplayBlocked, labels)
		}
		v.log.Warn("payment rejected", map[string]any{
			"reason":   string(res.Reason),
			"detail":   res.Detail,
			"network":  proof.Network,
			"resource": req.Resource,
		})
	}
	v.rec.ObserveLatency("verify", v.now().Sub(start), map[string]string{"network": req.Network})
	return res, nil
}

func (v *Verifier) run(ctx context.Context, proof x402.PaymentProof, req x402.PaymentRequirement) (Result, error) {
	// Structural completeness first, before anything touches the store.
	if detail := structuralDetail(proof); detail != "" {
		return reject(x402.RejectInvalidFormat, detail), nil
	}

	// Replay pre-check. This is an optimistic fast path only; the
	// authoritative at-most-once decision is the MarkUsed commit below.
	used, err := v.store.IsUsed(ctx, proof.Payload.Signature)
	if err != nil {
		return Result{}, fmt.Errorf("replay store lookup: %w", err)
	}
	if used {
		return reject(x402.RejectAlreadyProcessed, "payment already processed"), nil
	}

	if proof.X402Version != x402.ProtocolVersion {
		return reject(x402.RejectUnsupportedVersion,
			fmt.Sprintf("unsupported x402 version %d", proof.X402Version)), nil
	}
	if proof.Scheme != x402.SchemeExact {
		return reject(x402.RejectUnsupportedScheme,
			fmt.Sprintf("unsupported scheme %q", proof.Scheme)), nil
	}
	if proof.Network != req.Network {
		return reject(x402.RejectNetworkMismatch,
			fmt.Sprintf("payment network %q does not match required %q", proof.Network, req.Network)), nil
	}
	if proof.Payload.Mint != req.Asset {
		return reject(x402.RejectInvalidAsset,
			fmt.Sprintf("payment asset %q does not match required %q", proof.Payload.Mint, req.Asset)), nil
	}

	required, err := x402.ParseAtomicAmount(req.MaxAmountRequired)
	if err != nil {
		return Result{}, fmt.Errorf("requirement has invalid amount %q: %w", req.MaxAmountRequired, err)
	}
	paid, err := x402.ParseAtomicAmount(proof.Payload.Amount)
	if err != nil {
		return reject(x402.RejectInvalidFormat,
			fmt.Sprintf("unparseable payment amount %q", proof.Payload.Amount)), nil
	}
	if paid.Cmp(required) != 0 {
		return reject(x402.RejectAmountMismatch,
			fmt.Sprintf("payment amount %s does not equal required amount %s", proof.Payload.Amount, req.MaxAmountRequired)), nil
	}

	if detail := v.freshnessDetail(proof.Payload.Timestamp, req.TimeoutSeconds()); detail != "" {
		return reject(x402.RejectExpired, detail), nil
	}

	switch v.mode {
	case x402.ModeOnChain:
		if res, err := v.verifyOnChain(ctx, proof, req); err != nil || !res.Accepted {
			return res, err
		}
	default:
		if res := v.verifyOffChain(proof); !res.Accepted {
			return res, nil
		}
	}

	// The commit is the serialization point: concurrent presentations of the
	// same signature race here and exactly one wins. The record carries the
	// requirement's freshness window so an expiring store keeps it at least
	// that long.
	err = v.store.MarkUsed(ctx, proof.Payload.Signature, req.Resource, proof.Payload.Amount,
		time.Duration(req.TimeoutSeconds())*time.Second)
	if errors.Is(err, replay.ErrAlreadyUsed) {
		return reject(x402.RejectAlreadyProcessed, "payment already processed"), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("replay store commit: %w", err)
	}

	return Result{Accepted: true}, nil
}

func structuralDetail(proof x402.PaymentProof) string {
	p := proof.Payload
	switch {
	case p.Signature == "":
		return "missing payload.signature"
	case p.From == "":
		return "missing payload.from"
	case p.Amount == "":
		return "missing payload.amount"
	case p.Mint == "":
		return "missing payload.mint"
	case p.Timestamp == 0:
		return "missing payload.timestamp"
	}
	return ""
}

// freshnessDetail checks the proof timestamp against the requirement's
// validity window. A timestamp exactly at the window edge is still fresh;
// one second past it is expired.
func (v *Verifier) freshnessDetail(timestamp int64, timeoutSeconds int) string {
	now := v.now().Unix()
	age := now - timestamp

	if age > int64(timeoutSeconds) {
		return fmt.Sprintf("payment timestamp is %d seconds old, limit is %d", age, timeoutSeconds)
	}
	if -age > int64(v.clockSkew.Seconds()) {
		return fmt.Sprintf("payment timestamp is %d seconds in the future", -age)
	}
	return ""
}

// verifyOffChain checks the ed25519 signature over the canonical message.
func (v *Verifier) verifyOffChain(proof x402.PaymentProof) Result {
	payer, err := solana.PublicKeyFromBase58(proof.Payload.From)
	if err != nil {
		return reject(x402.RejectInvalidFormat,
			fmt.Sprintf("invalid payer address %q", proof.Payload.From))
	}
	sig, err := solana.SignatureFromBase58(proof.Payload.Signature)
	if err != nil {
		return reject(x402.RejectInvalidSignature, "signature is not valid base58")
	}

	msg := x402.CanonicalMessage(proof.Payload.From, proof.Payload.Amount, proof.Payload.Mint, proof.Payload.Timestamp)
	if !sig.Verify(payer, msg) {
		return reject(x402.RejectInvalidSignature, "signature does not verify against payer address")
	}
	return Result{Accepted: true}
}

// verifyOnChain checks that the proof's signature names a finalized ledger
// transaction which transferred the required amount of the required asset to
// the requirement's recipient.
func (v *Verifier) verifyOnChain(ctx context.Context, proof x402.PaymentProof, req x402.PaymentRequirement) (Result, error) {
	tx, err := v.ledger.GetTransaction(ctx, proof.Payload.Signature)
	if errors.Is(err, ledger.ErrTransactionNotFound) {
		return reject(x402.RejectTransactionNotFound, "transaction not found on ledger"), nil
	}
	if err != nil {
		// RPC transport failure, not a verdict on the payment.
		return Result{}, fmt.Errorf("ledger lookup: %w", err)
	}

	if !tx.Confirmed {
		return reject(x402.RejectTransactionFailed, "transaction is not finalized"), nil
	}
	if tx.Err != "" {
		return reject(x402.RejectTransactionFailed,
			fmt.Sprintf("transaction failed on chain: %s", tx.Err)), nil
	}

	required, err := x402.ParseAtomicAmount(req.MaxAmountRequired)
	if err != nil {
		return Result{}, fmt.Errorf("requirement has invalid amount %q: %w", req.MaxAmountRequired, err)
	}

	var toRecipient bool
	for _, transfer := range tx.Transfers {
		if transfer.Mint != req.Asset || transfer.DestinationOwner != req.PayTo {
			continue
		}
		toRecipient = true
		if required.IsUint64() && transfer.Amount == required.Uint64() {
			return Result{Accepted: true}, nil
		}
	}

	if toRecipient {
		return reject(x402.RejectAmountMismatch,
			fmt.Sprintf("on-chain transfer amount does not equal required amount %s", req.MaxAmountRequired)), nil
	}
	return reject(x402.RejectRecipientMismatch,
		fmt.Sprintf("transaction contains no %s transfer to %s", req.Asset, req.PayTo)), nil
}

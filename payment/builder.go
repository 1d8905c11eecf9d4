// Package payment constructs payment proofs on the client side: it enforces
// the spending guardrail, produces the off-chain canonical-message signature
// or submits the on-chain transfer, and assembles the X-PAYMENT payload.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"

	x402 "github.com/x402lab/x402-solana"
	"github.com/x402lab/x402-solana/ledger"
	"github.com/x402lab/x402-solana/logger"
	"github.com/x402lab/x402-solana/metrics"
)

// Builder turns a chosen payment requirement into a signed payment proof.
type Builder struct {
	ledger          ledger.Ledger
	mode            x402.SettlementMode
	maxWillingToPay *big.Int
	timeouts        x402.TimeoutConfig
	now             func() time.Time
	log             logger.Logger
	rec             metrics.Recorder
}

// Option configures a Builder.
type Option func(*Builder) error

// WithMode selects off-chain or on-chain proof construction. Default is
// off-chain.
func WithMode(mode x402.SettlementMode) Option {
	return func(b *Builder) error {
		b.mode = mode
		return nil
	}
}

// WithLedger injects the settlement ledger, required for on-chain mode.
func WithLedger(l ledger.Ledger) Option {
	return func(b *Builder) error {
		b.ledger = l
		return nil
	}
}

// WithMaxPayment caps what the builder will ever pay, in atomic units. A
// requirement above the cap is refused before any key material is touched.
func WithMaxPayment(atomic string) Option {
	return func(b *Builder) error {
		max, err := x402.ParseAtomicAmount(atomic)
		if err != nil {
			return err
		}
		b.maxWillingToPay = max
		return nil
	}
}

// WithTimeouts overrides the default timeout configuration.
func WithTimeouts(t x402.TimeoutConfig) Option {
	return func(b *Builder) error {
		b.timeouts = t
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(log logger.Logger) Option {
	return func(b *Builder) error {
		b.log = log
		return nil
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(rec metrics.Recorder) Option {
	return func(b *Builder) error {
		b.rec = rec
		return nil
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) error {
		b.now = now
		return nil
	}
}

// NewBuilder constructs a Builder.
func NewBuilder(opts ...Option) (*Builder, error) {
	b := &Builder{
		mode:     x402.ModeOffChain,
		timeouts: x402.DefaultTimeouts,
		now:      time.Now,
		log:      logger.NoopLogger{},
		rec:      metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	if b.mode == x402.ModeOnChain && b.ledger == nil {
		return nil, errors.New("payment: on-chain mode requires a ledger")
	}
	return b, nil
}

// Build produces a payment proof satisfying the requirement, signed by the
// given signer. The guardrail runs first: if the requirement exceeds the
// configured cap, Build fails without invoking the signer or the ledger.
func (b *Builder) Build(ctx context.Context, req x402.PaymentRequirement, signer x402.Signer) (*x402.PaymentProof, error) {
	if signer == nil {
		return nil, errors.New("payment: signer is required")
	}

	amount, err := x402.ParseAtomicAmount(req.MaxAmountRequired)
	if err != nil {
		return nil, fmt.Errorf("requirement amount: %w", err)
	}

	if b.maxWillingToPay != nil && amount.Cmp(b.maxWillingToPay) > 0 {
		err := x402.NewBuildError(x402.BuildExceedsLimit,
			fmt.Sprintf("required amount %s exceeds configured maximum %s",
				req.MaxAmountRequired, b.maxWillingToPay.String()), nil)
		b.recordFailure(req.Network, err)
		return nil, err
	}

	start := b.now()
	timestamp := start.Unix()
	from := signer.PublicAddress()

	var signature string
	switch b.mode {
	case x402.ModeOnChain:
		signature, err = b.settleOnChain(ctx, req, signer, amount)
	default:
		signature, err = b.signOffChain(req, signer, from, timestamp)
	}
	if err != nil {
		b.recordFailure(req.Network, err)
		return nil, err
	}

	b.rec.IncCounter(metrics.EventPaymentBuilt, map[string]string{"network": req.Network})
	b.rec.ObserveLatency("build", b.now().Sub(start), map[string]string{"network": req.Network})
	b.log.Debug("payment proof built", map[string]any{
		"mode":    b.mode.String(),
		"network": req.Network,
		"amount":  req.MaxAmountRequired,
		"from":    from,
	})

	return &x402.PaymentProof{
		X402Version: x402.ProtocolVersion,
		Scheme:      x402.SchemeExact,
		Network:     req.Network,
		Payload: x402.ProofPayload{
			Signature: signature,
			From:      from,
			Amount:    req.MaxAmountRequired,
			Mint:      req.Asset,
			Timestamp: timestamp,
		},
	}, nil
}

// signOffChain signs the canonical message and returns the base58 signature.
func (b *Builder) signOffChain(req x402.PaymentRequirement, signer x402.Signer, from string, timestamp int64) (string, error) {
	msg := x402.CanonicalMessage(from, req.MaxAmountRequired, req.Asset, timestamp)
	sig, err := signer.Sign(msg)
	if err != nil {
		return "", x402.NewBuildError(x402.BuildSigningFailed, "failed to sign payment message", err)
	}
	return solana.SignatureFromBytes(sig).String(), nil
}

// settleOnChain submits the transfer and waits for finality; the resulting
// transaction signature becomes the proof signature.
func (b *Builder) settleOnChain(ctx context.Context, req x402.PaymentRequirement, signer x402.Signer, amount *big.Int) (string, error) {
	if !amount.IsUint64() {
		return "", x402.NewBuildError(x402.BuildSubmissionFailed,
			fmt.Sprintf("amount %s does not fit the ledger's integer range", amount.String()), nil)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeouts.SettleTimeout)
	defer cancel()

	sig, err := b.ledger.SubmitTransfer(ctx, ledger.TransferRequest{
		Signer:   signer,
		To:       req.PayTo,
		Asset:    req.Asset,
		Amount:   amount.Uint64(),
		Decimals: chainDecimals(req.Network),
	})
	if errors.Is(err, x402.ErrSettlementNotConfirmed) {
		return "", x402.NewBuildError(x402.BuildConfirmationTimeout,
			fmt.Sprintf("transaction %s did not reach finality in time", sig), err)
	}
	if err != nil {
		return "", x402.NewBuildError(x402.BuildSubmissionFailed, "transfer submission failed", err)
	}
	return sig, nil
}

// recordFailure counts a failed build, labelled with the BuildError kind
// when one is available.
func (b *Builder) recordFailure(network string, err error) {
	labels := map[string]string{"network": network}
	var buildErr *x402.BuildError
	if errors.As(err, &buildErr) {
		labels["reason"] = string(buildErr.Kind)
	}
	b.rec.IncCounter(metrics.EventPaymentFailed, labels)
}

func chainDecimals(network string) uint8 {
	switch network {
	case x402.SolanaMainnet.NetworkID:
		return uint8(x402.SolanaMainnet.Decimals)
	case x402.SolanaDevnet.NetworkID:
		return uint8(x402.SolanaDevnet.Decimals)
	default:
		return 6
	}
}

package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	x402 "github.com/x402lab/x402-solana"
	"github.com/x402lab/x402-solana/ledger"
	"github.com/x402lab/x402-solana/metrics"
)

var testNow = time.Unix(1700000000, 0)

// recordingSigner counts invocations so tests can prove the guardrail never
// reaches key material.
type recordingSigner struct {
	wallet    *solana.Wallet
	signCalls int
	signErr   error
}

func newRecordingSigner() *recordingSigner {
	return &recordingSigner{wallet: solana.NewWallet()}
}

func (s *recordingSigner) Network() string       { return "solana-devnet" }
func (s *recordingSigner) Scheme() string        { return x402.SchemeExact }
func (s *recordingSigner) PublicAddress() string { return s.wallet.PublicKey().String() }

func (s *recordingSigner) Sign(message []byte) ([]byte, error) {
	s.signCalls++
	if s.signErr != nil {
		return nil, s.signErr
	}
	sig, err := s.wallet.PrivateKey.Sign(message)
	if err != nil {
		return nil, err
	}
	return sig[:], nil
}

// recordingLedger counts submissions for the same purpose.
type recordingLedger struct {
	submitCalls int
	submitSig   string
	submitErr   error
	lastReq     ledger.TransferRequest
}

func (l *recordingLedger) SubmitTransfer(_ context.Context, req ledger.TransferRequest) (string, error) {
	l.submitCalls++
	l.lastReq = req
	return l.submitSig, l.submitErr
}

func (l *recordingLedger) GetTransaction(context.Context, string) (*ledger.TransactionInfo, error) {
	return nil, ledger.ErrTransactionNotFound
}

func (l *recordingLedger) GetBalance(context.Context, string, string) (uint64, error) {
	return 0, nil
}

func testRequirement() x402.PaymentRequirement {
	return x402.PaymentRequirement{
		Scheme:            x402.SchemeExact,
		Network:           "solana-devnet",
		MaxAmountRequired: "10000",
		Resource:          "/premium/data",
		PayTo:             "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
		Asset:             x402.SolanaDevnet.USDCMint,
	}
}

func TestBuildOffChainProof(t *testing.T) {
	signer := newRecordingSigner()
	b, err := NewBuilder(WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatal(err)
	}

	req := testRequirement()
	proof, err := b.Build(context.Background(), req, signer)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if proof.X402Version != 1 || proof.Scheme != x402.SchemeExact || proof.Network != req.Network {
		t.Errorf("envelope = %+v", proof)
	}
	if proof.Payload.From != signer.PublicAddress() {
		t.Errorf("From = %s", proof.Payload.From)
	}
	if proof.Payload.Amount != req.MaxAmountRequired || proof.Payload.Mint != req.Asset {
		t.Errorf("payload = %+v", proof.Payload)
	}
	if proof.Payload.Timestamp != testNow.Unix() {
		t.Errorf("Timestamp = %d", proof.Payload.Timestamp)
	}

	// The signature must verify against the canonical message.
	sig, err := solana.SignatureFromBase58(proof.Payload.Signature)
	if err != nil {
		t.Fatalf("signature is not base58: %v", err)
	}
	msg := x402.CanonicalMessage(proof.Payload.From, proof.Payload.Amount, proof.Payload.Mint, proof.Payload.Timestamp)
	if !sig.Verify(signer.wallet.PublicKey(), msg) {
		t.Error("signature does not verify against canonical message")
	}
}

// The guardrail refuses before touching the signer or the ledger.
func TestBuildGuardrailNeverInvokesSigner(t *testing.T) {
	signer := newRecordingSigner()
	fake := &recordingLedger{submitSig: "unused"}

	b, err := NewBuilder(
		WithMaxPayment("5000"),
		WithMode(x402.ModeOnChain),
		WithLedger(fake),
	)
	if err != nil {
		t.Fatal(err)
	}

	_, err = b.Build(context.Background(), testRequirement(), signer)

	var buildErr *x402.BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("error = %v, want *BuildError", err)
	}
	if buildErr.Kind != x402.BuildExceedsLimit {
		t.Errorf("Kind = %s, want exceeds_limit", buildErr.Kind)
	}
	if signer.signCalls != 0 {
		t.Errorf("signer invoked %d times despite guardrail", signer.signCalls)
	}
	if fake.submitCalls != 0 {
		t.Errorf("ledger invoked %d times despite guardrail", fake.submitCalls)
	}
}

func TestBuildGuardrailAllowsEqualAmount(t *testing.T) {
	signer := newRecordingSigner()
	b, err := NewBuilder(WithMaxPayment("10000"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Build(context.Background(), testRequirement(), signer); err != nil {
		t.Errorf("amount equal to cap should pass: %v", err)
	}
}

func TestBuildSigningFailure(t *testing.T) {
	signer := newRecordingSigner()
	signer.signErr = errors.New("hsm unavailable")

	b, err := NewBuilder()
	if err != nil {
		t.Fatal(err)
	}
	_, err = b.Build(context.Background(), testRequirement(), signer)

	var buildErr *x402.BuildError
	if !errors.As(err, &buildErr) || buildErr.Kind != x402.BuildSigningFailed {
		t.Errorf("error = %v, want signing_failed BuildError", err)
	}
}

func TestBuildOnChain(t *testing.T) {
	signer := newRecordingSigner()
	fake := &recordingLedger{submitSig: "3vZ67CGoRYkuT76TtpP2VrtTPBfnvG2xj6mUTvvux46q"}

	b, err := NewBuilder(WithMode(x402.ModeOnChain), WithLedger(fake))
	if err != nil {
		t.Fatal(err)
	}

	req := testRequirement()
	proof, err := b.Build(context.Background(), req, signer)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if proof.Payload.Signature != fake.submitSig {
		t.Errorf("Signature = %s, want the transaction signature", proof.Payload.Signature)
	}
	if fake.lastReq.To != req.PayTo || fake.lastReq.Asset != req.Asset || fake.lastReq.Amount != 10000 {
		t.Errorf("transfer request = %+v", fake.lastReq)
	}
	if fake.lastReq.Decimals != 6 {
		t.Errorf("Decimals = %d", fake.lastReq.Decimals)
	}
}

func TestBuildOnChainErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want x402.BuildErrorKind
	}{
		{"confirmation timeout", x402.ErrSettlementNotConfirmed, x402.BuildConfirmationTimeout},
		{"broadcast failure", errors.New("blockhash not found"), x402.BuildSubmissionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &recordingLedger{submitErr: tt.err}
			b, err := NewBuilder(WithMode(x402.ModeOnChain), WithLedger(fake))
			if err != nil {
				t.Fatal(err)
			}

			_, err = b.Build(context.Background(), testRequirement(), newRecordingSigner())

			var buildErr *x402.BuildError
			if !errors.As(err, &buildErr) || buildErr.Kind != tt.want {
				t.Errorf("error = %v, want %s BuildError", err, tt.want)
			}
		})
	}
}

// recordingRecorder captures counter increments for assertions.
type recordingRecorder struct {
	counts map[string]int
	labels map[string]map[string]string
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{
		counts: make(map[string]int),
		labels: make(map[string]map[string]string),
	}
}

func (r *recordingRecorder) IncCounter(name string, labels map[string]string) {
	r.counts[name]++
	r.labels[name] = labels
}

func (r *recordingRecorder) ObserveLatency(string, time.Duration, map[string]string) {}

func TestBuildRecordsMetrics(t *testing.T) {
	rec := newRecordingRecorder()
	b, err := NewBuilder(WithMetrics(rec))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := b.Build(context.Background(), testRequirement(), newRecordingSigner()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if rec.counts[metrics.EventPaymentBuilt] != 1 {
		t.Errorf("payment_built count = %d, want 1", rec.counts[metrics.EventPaymentBuilt])
	}
	if got := rec.labels[metrics.EventPaymentBuilt]["network"]; got != "solana-devnet" {
		t.Errorf("network label = %q", got)
	}
}

func TestBuildFailureRecordsMetrics(t *testing.T) {
	rec := newRecordingRecorder()
	b, err := NewBuilder(WithMetrics(rec), WithMaxPayment("5000"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := b.Build(context.Background(), testRequirement(), newRecordingSigner()); err == nil {
		t.Fatal("expected guardrail refusal")
	}
	if rec.counts[metrics.EventPaymentFailed] != 1 {
		t.Errorf("payment_failed count = %d, want 1", rec.counts[metrics.EventPaymentFailed])
	}
	if got := rec.labels[metrics.EventPaymentFailed]["reason"]; got != string(x402.BuildExceedsLimit) {
		t.Errorf("reason label = %q, want exceeds_limit", got)
	}
	if rec.counts[metrics.EventPaymentBuilt] != 0 {
		t.Errorf("payment_built count = %d, want 0", rec.counts[metrics.EventPaymentBuilt])
	}
}

func TestNewBuilderValidation(t *testing.T) {
	if _, err := NewBuilder(WithMode(x402.ModeOnChain)); err == nil {
		t.Error("on-chain mode without ledger should be refused")
	}
	if _, err := NewBuilder(WithMaxPayment("not-a-number")); err == nil {
		t.Error("invalid cap should be refused")
	}
}

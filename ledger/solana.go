package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	x402 "github.com/x402lab/x402-solana"
	"github.com/x402lab/x402-solana/logger"
	"github.com/x402lab/x402-solana/retry"
)

// SolanaLedger implements Ledger against a Solana JSON-RPC endpoint.
type SolanaLedger struct {
	network string
	client  *rpc.Client
	log     logger.Logger

	confirmPolicy retry.Policy
}

// SolanaOption configures a SolanaLedger.
type SolanaOption func(*SolanaLedger) error

// NewSolanaLedger connects to the RPC endpoint for the given network
// ("solana" or "solana-devnet"). The endpoint can be overridden with
// WithRPCEndpoint or the SOLANA_RPC_ENDPOINT environment variable.
func NewSolanaLedger(network string, opts ...SolanaOption) (*SolanaLedger, error) {
	l := &SolanaLedger{
		network: network,
		log:     logger.NoopLogger{},
		confirmPolicy: retry.Policy{
			Attempts:   10,
			Backoff:    3 * time.Second,
			MaxBackoff: 3 * time.Second,
			Factor:     1.0,
		},
	}

	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}

	if l.client == nil {
		url, err := rpcURLFor(network)
		if err != nil {
			return nil, err
		}
		l.client = rpc.New(url)
	}

	return l, nil
}

// WithRPCEndpoint points the ledger at a specific RPC URL.
func WithRPCEndpoint(url string) SolanaOption {
	return func(l *SolanaLedger) error {
		l.client = rpc.New(url)
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(log logger.Logger) SolanaOption {
	return func(l *SolanaLedger) error {
		l.log = log
		return nil
	}
}

// WithConfirmPolicy overrides the finalization polling policy.
func WithConfirmPolicy(p retry.Policy) SolanaOption {
	return func(l *SolanaLedger) error {
		l.confirmPolicy = p
		return nil
	}
}

func rpcURLFor(network string) (string, error) {
	if url := os.Getenv("SOLANA_RPC_ENDPOINT"); url != "" {
		return url, nil
	}
	switch strings.ToLower(network) {
	case "solana", "mainnet-beta":
		return rpc.MainNetBeta_RPC, nil
	case "solana-devnet", "devnet":
		return rpc.DevNet_RPC, nil
	default:
		return "", fmt.Errorf("%w: %s", x402.ErrInvalidNetwork, network)
	}
}

// SubmitTransfer implements Ledger. It builds a TransferChecked SPL
// instruction, signs the message through the supplied signer, broadcasts,
// and polls until the transaction is finalized.
func (l *SolanaLedger) SubmitTransfer(ctx context.Context, req TransferRequest) (string, error) {
	from, err := solana.PublicKeyFromBase58(req.Signer.PublicAddress())
	if err != nil {
		return "", fmt.Errorf("invalid sender address: %w", err)
	}
	to, err := solana.PublicKeyFromBase58(req.To)
	if err != nil {
		return "", fmt.Errorf("invalid recipient address: %w", err)
	}
	mint, err := solana.PublicKeyFromBase58(req.Asset)
	if err != nil {
		return "", fmt.Errorf("invalid mint address: %w", err)
	}

	sourceATA, _, err := solana.FindAssociatedTokenAddress(from, mint)
	if err != nil {
		return "", fmt.Errorf("failed to derive source token account: %w", err)
	}
	destATA, _, err := solana.FindAssociatedTokenAddress(to, mint)
	if err != nil {
		return "", fmt.Errorf("failed to derive destination token account: %w", err)
	}

	recent, err := l.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("failed to fetch blockhash: %w", err)
	}

	transferInst := token.NewTransferCheckedInstructionBuilder().
		SetAmount(req.Amount).
		SetDecimals(req.Decimals).
		SetSourceAccount(sourceATA).
		SetDestinationAccount(destATA).
		SetMintAccount(mint).
		SetOwnerAccount(from).
		Build()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{transferInst},
		recent.Value.Blockhash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return "", fmt.Errorf("failed to build transaction: %w", err)
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}
	sigBytes, err := req.Signer.Sign(msg)
	if err != nil {
		return "", fmt.Errorf("signing failed: %w", err)
	}
	tx.Signatures = []solana.Signature{solana.SignatureFromBytes(sigBytes)}

	sig, err := l.client.SendTransaction(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("broadcast failed: %w", err)
	}

	l.log.Info("transaction submitted", map[string]any{
		"signature": sig.String(),
		"network":   l.network,
		"amount":    req.Amount,
	})

	if err := l.awaitFinalized(ctx, sig); err != nil {
		return sig.String(), err
	}
	return sig.String(), nil
}

// awaitFinalized polls signature status until finalized commitment.
func (l *SolanaLedger) awaitFinalized(ctx context.Context, sig solana.Signature) error {
	_, err := retry.Do(ctx, l.confirmPolicy, retry.Always, func() (struct{}, error) {
		out, err := l.client.GetSignatureStatuses(ctx, false, sig)
		if err != nil {
			return struct{}{}, err
		}
		if len(out.Value) == 0 || out.Value[0] == nil {
			return struct{}{}, fmt.Errorf("signature %s not yet observed", sig)
		}
		status := out.Value[0]
		if status.Err != nil {
			return struct{}{}, fmt.Errorf("transaction failed on chain: %v", status.Err)
		}
		if status.ConfirmationStatus != rpc.ConfirmationStatusFinalized {
			return struct{}{}, fmt.Errorf("commitment %s, waiting for finalized", status.ConfirmationStatus)
		}
		return struct{}{}, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", x402.ErrSettlementNotConfirmed, ctx.Err())
		}
		return fmt.Errorf("%w: %v", x402.ErrSettlementNotConfirmed, err)
	}
	return nil
}

// GetTransaction implements Ledger. Token movements are reconstructed from
// the pre/post token balance deltas in the transaction meta.
func (l *SolanaLedger) GetTransaction(ctx context.Context, signature string) (*TransactionInfo, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction signature: %w", err)
	}

	maxVersion := uint64(0)
	out, err := l.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentFinalized,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("transaction lookup failed: %w", err)
	}
	if out == nil || out.Meta == nil {
		return nil, ErrTransactionNotFound
	}

	info := &TransactionInfo{Confirmed: true}
	if out.Meta.Err != nil {
		info.Err = fmt.Sprintf("%v", out.Meta.Err)
		return info, nil
	}

	// Decode the raw transaction so balance deltas with no owner in the
	// meta can still be attributed to the token account address.
	var accountKeys []solana.PublicKey
	if raw := out.Transaction.GetBinary(); len(raw) > 0 {
		tx, decErr := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
		if decErr == nil {
			accountKeys = tx.Message.AccountKeys
		}
	}

	pre := make(map[uint16]uint64, len(out.Meta.PreTokenBalances))
	for _, bal := range out.Meta.PreTokenBalances {
		pre[bal.AccountIndex] = atomicAmount(bal.UiTokenAmount)
	}

	for _, bal := range out.Meta.PostTokenBalances {
		post := atomicAmount(bal.UiTokenAmount)
		before := pre[bal.AccountIndex]
		if post <= before {
			continue
		}

		owner := ""
		if bal.Owner != nil {
			owner = bal.Owner.String()
		} else if int(bal.AccountIndex) < len(accountKeys) {
			owner = accountKeys[bal.AccountIndex].String()
		}

		info.Transfers = append(info.Transfers, TokenTransfer{
			DestinationOwner: owner,
			Amount:           post - before,
			Mint:             bal.Mint.String(),
		})
	}

	return info, nil
}

// GetBalance implements Ledger. It resolves the associated token account for
// address and reads its finalized balance. A missing token account reads
// as zero.
func (l *SolanaLedger) GetBalance(ctx context.Context, address, asset string) (uint64, error) {
	owner, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, fmt.Errorf("invalid address: %w", err)
	}
	mint, err := solana.PublicKeyFromBase58(asset)
	if err != nil {
		return 0, fmt.Errorf("invalid mint address: %w", err)
	}

	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return 0, fmt.Errorf("failed to derive token account: %w", err)
	}

	out, err := l.client.GetTokenAccountBalance(ctx, ata, rpc.CommitmentFinalized)
	if err != nil {
		if strings.Contains(err.Error(), "could not find account") {
			return 0, nil
		}
		return 0, fmt.Errorf("balance lookup failed: %w", err)
	}
	if out == nil || out.Value == nil {
		return 0, nil
	}

	amount, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable balance %q: %w", out.Value.Amount, err)
	}
	return amount, nil
}

func atomicAmount(ui *rpc.UiTokenAmount) uint64 {
	if ui == nil {
		return 0
	}
	amount, err := strconv.ParseUint(ui.Amount, 10, 64)
	if err != nil {
		return 0
	}
	return amount
}

var _ Ledger = (*SolanaLedger)(nil)

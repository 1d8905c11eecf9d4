// Package ledger abstracts the settlement chain behind a small interface so
// verification and payment construction can run against a real Solana RPC
// endpoint or an in-memory fake.
package ledger

import (
	"context"
	"errors"
)

// ErrTransactionNotFound is returned by GetTransaction when the ledger has no
// record of the given transaction signature.
var ErrTransactionNotFound = errors.New("transaction not found on ledger")

// TokenTransfer is one SPL token movement observed in a confirmed
// transaction, expressed as a destination-side balance delta.
type TokenTransfer struct {
	// DestinationOwner is the owner address of the receiving token account.
	DestinationOwner string
	// Amount is the atomic amount credited to the destination.
	Amount uint64
	// Mint is the token mint address.
	Mint string
}

// TransactionInfo is the verification-relevant view of a ledger transaction.
type TransactionInfo struct {
	// Confirmed reports whether the transaction reached finalized commitment.
	Confirmed bool
	// Err holds the on-chain execution error, empty on success.
	Err string
	// Transfers lists the token transfers the transaction performed.
	Transfers []TokenTransfer
}

// Ledger is the settlement-chain contract. Amounts are atomic units of the
// asset's mint (base units, not display units).
type Ledger interface {
	// SubmitTransfer builds, signs via the supplied signer, and submits a
	// token transfer, blocking until finalized or ctx expires. It returns
	// the transaction signature.
	SubmitTransfer(ctx context.Context, req TransferRequest) (string, error)

	// GetTransaction fetches a transaction by signature. A signature the
	// ledger has never seen yields ErrTransactionNotFound.
	GetTransaction(ctx context.Context, signature string) (*TransactionInfo, error)

	// GetBalance returns the atomic token balance of address for the asset.
	GetBalance(ctx context.Context, address, asset string) (uint64, error)
}

// TransferSigner signs raw messages and exposes the sending address. The
// root package's Signer satisfies it.
type TransferSigner interface {
	PublicAddress() string
	Sign(message []byte) ([]byte, error)
}

// TransferRequest describes a token transfer to submit.
type TransferRequest struct {
	Signer   TransferSigner
	To       string
	Asset    string
	Amount   uint64
	Decimals uint8
}

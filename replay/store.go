// Package replay provides at-most-once admission of payment signatures.
// The store is the only shared mutable state in the protocol core; MarkUsed
// is the serialization point that makes a proof unusable a second time.
package replay

import (
	"context"
	"errors"
	"time"

	x402 "github.com/x402lab/x402-solana"
)

var (
	// ErrAlreadyUsed is returned by MarkUsed when the signature was admitted
	// before. Exactly one concurrent caller wins; everyone else sees this.
	ErrAlreadyUsed = errors.New("signature already used")

	// ErrNotFound is returned by Info for unknown signatures.
	ErrNotFound = errors.New("signature not found")
)

// Stats summarizes the store's contents.
type Stats struct {
	Total   int                        `json:"total"`
	Records []x402.UsedSignatureRecord `json:"records"`
}

// Store tracks which payment signatures have been consumed. Implementations
// must be safe for concurrent use, and MarkUsed must be atomic per signature:
// of any number of concurrent callers for the same signature, exactly one
// succeeds and the rest observe ErrAlreadyUsed.
//
// Every operation takes a context so the interface can be satisfied by a
// remote backend (key-value store, relational table with a unique constraint
// on signature) as well as by process-local memory.
type Store interface {
	// IsUsed reports whether the signature has been admitted.
	IsUsed(ctx context.Context, signature string) (bool, error)

	// MarkUsed atomically records the signature as consumed, with the
	// endpoint and amount it paid for and the freshness window of the
	// admitting requirement. Implementations that expire records must keep
	// each one for at least its window, otherwise a pruned signature could
	// be replayed while its timestamp is still valid. Returns ErrAlreadyUsed
	// if any caller got there first.
	MarkUsed(ctx context.Context, signature, endpoint, amount string, window time.Duration) error

	// Info returns the record for an admitted signature, or ErrNotFound.
	Info(ctx context.Context, signature string) (x402.UsedSignatureRecord, error)

	// Stats returns the total count and all records.
	Stats(ctx context.Context) (Stats, error)

	// Reset clears all records. Test and tooling use only; never wire it
	// into a production verification path.
	Reset(ctx context.Context) error
}

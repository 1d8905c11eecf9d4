package replay

import (
	"context"
	"sort"
	"sync"
	"time"

	x402 "github.com/x402lab/x402-solana"
)

// MemoryStore is a mutex-guarded in-memory Store suitable for
// single-instance deployments. For load-balanced clusters, implement Store
// against a shared backend instead; per-process memory degrades replay
// protection to per-instance only.
type MemoryStore struct {
	mu        sync.Mutex
	records   map[string]x402.UsedSignatureRecord
	retention time.Duration
	now       func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithRetention enables pruning of records older than d. Pruning never
// removes a record before its own freshness window has elapsed, so a short
// retention can only shorten how long records are kept past the point where
// their proof could still verify.
func WithRetention(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.retention = d }
}

// WithClock overrides the time source. Test use.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates an in-memory store. Without WithRetention, records
// are kept until Reset.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]x402.UsedSignatureRecord),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsUsed implements Store.
func (s *MemoryStore) IsUsed(_ context.Context, signature string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[signature]
	return ok, nil
}

// MarkUsed implements Store. The check and the insert happen under one lock
// acquisition, so concurrent callers for the same signature serialize here.
func (s *MemoryStore) MarkUsed(_ context.Context, signature, endpoint, amount string, window time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[signature]; ok {
		return ErrAlreadyUsed
	}

	s.records[signature] = x402.UsedSignatureRecord{
		Signature:     signature,
		UsedAt:        s.now().UnixMilli(),
		Endpoint:      endpoint,
		Amount:        amount,
		WindowSeconds: windowSeconds(window),
	}

	s.pruneLocked()
	return nil
}

// Info implements Store.
func (s *MemoryStore) Info(_ context.Context, signature string) (x402.UsedSignatureRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[signature]
	if !ok {
		return x402.UsedSignatureRecord{}, ErrNotFound
	}
	return record, nil
}

// Stats implements Store. Records are returned oldest first.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]x402.UsedSignatureRecord, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].UsedAt < records[j].UsedAt })

	return Stats{Total: len(records), Records: records}, nil
}

// Reset implements Store.
func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]x402.UsedSignatureRecord)
	return nil
}

// pruneLocked drops records that have outlived both the retention window and
// their own freshness window. Must be called with the lock held. A record is
// never dropped while a proof with its timestamp could still pass the
// freshness check, regardless of how short retention is configured.
func (s *MemoryStore) pruneLocked() {
	if s.retention <= 0 {
		return
	}
	nowMs := s.now().UnixMilli()
	retentionMs := s.retention.Milliseconds()
	for signature, record := range s.records {
		keepMs := retentionMs
		if windowMs := record.WindowSeconds * 1000; windowMs > keepMs {
			keepMs = windowMs
		}
		if nowMs-record.UsedAt > keepMs {
			delete(s.records, signature)
		}
	}
}

// windowSeconds normalizes the freshness window carried on a record,
// defaulting to the protocol freshness window when the caller passed none.
func windowSeconds(window time.Duration) int64 {
	if window <= 0 {
		return int64(x402.DefaultMaxTimeoutSeconds)
	}
	return int64(window / time.Second)
}

var _ Store = (*MemoryStore)(nil)

package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	x402 "github.com/x402lab/x402-solana"
)

// FileStore is a Store backed by a JSON signature-ledger file, matching the
// reference deployments' on-disk layout. The file holds the full sequence of
// used-signature records and is rewritten atomically on every admission.
//
// The file is security-sensitive: it is written with 0600 permissions and
// must never be committed to version control or served by any API.
type FileStore struct {
	mu      sync.Mutex
	path    string
	records map[string]x402.UsedSignatureRecord
	now     func() time.Time
}

// NewFileStore opens (or creates) the signature-ledger file at path.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		records: make(map[string]x402.UsedSignatureRecord),
		now:     time.Now,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read signature ledger: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var records []x402.UsedSignatureRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("corrupt signature ledger %s: %w", path, err)
	}
	for _, record := range records {
		s.records[record.Signature] = record
	}
	return s, nil
}

// IsUsed implements Store.
func (s *FileStore) IsUsed(_ context.Context, signature string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[signature]
	return ok, nil
}

// MarkUsed implements Store. The in-memory check-and-set and the file
// rewrite happen under one lock acquisition; if the write fails the record
// is rolled back so memory and disk stay consistent.
func (s *FileStore) MarkUsed(_ context.Context, signature, endpoint, amount string, window time.Duration) error {
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

	if err := s.persistLocked(); err != nil {
		delete(s.records, signature)
		return fmt.Errorf("failed to persist signature ledger: %w", err)
	}
	return nil
}

// Info implements Store.
func (s *FileStore) Info(_ context.Context, signature string) (x402.UsedSignatureRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[signature]
	if !ok {
		return x402.UsedSignatureRecord{}, ErrNotFound
	}
	return record, nil
}

// Stats implements Store.
func (s *FileStore) Stats(_ context.Context) (Stats, error) {
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
func (s *FileStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]x402.UsedSignatureRecord)
	return s.persistLocked()
}

// persistLocked rewrites the ledger file via a temp file and rename so a
// crash mid-write never leaves a truncated ledger. Must be called with the
// lock held.
func (s *FileStore) persistLocked() error {
	records := make([]x402.UsedSignatureRecord, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].UsedAt < records[j].UsedAt })

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".sigledger-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, s.path)
}

var _ Store = (*FileStore)(nil)

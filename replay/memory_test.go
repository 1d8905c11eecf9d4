package replay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryStoreMarkUsed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	used, err := store.IsUsed(ctx, "sig-1")
	if err != nil {
		t.Fatalf("IsUsed: %v", err)
	}
	if used {
		t.Error("fresh signature reported as used")
	}

	if err := store.MarkUsed(ctx, "sig-1", "/premium", "10000", 300*time.Second); err != nil {
		t.Fatalf("MarkUsed: %v", err)
	}

	used, err = store.IsUsed(ctx, "sig-1")
	if err != nil {
		t.Fatalf("IsUsed: %v", err)
	}
	if !used {
		t.Error("marked signature not reported as used")
	}

	if err := store.MarkUsed(ctx, "sig-1", "/premium", "10000", 300*time.Second); !errors.Is(err, ErrAlreadyUsed) {
		t.Errorf("second MarkUsed error = %v, want ErrAlreadyUsed", err)
	}
}

func TestMemoryStoreInfo(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.Info(ctx, "unknown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Info(unknown) error = %v, want ErrNotFound", err)
	}

	if err := store.MarkUsed(ctx, "sig-1", "/premium", "10000", 300*time.Second); err != nil {
		t.Fatal(err)
	}
	record, err := store.Info(ctx, "sig-1")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if record.Signature != "sig-1" || record.Endpoint != "/premium" || record.Amount != "10000" {
		t.Errorf("record = %+v", record)
	}
	if record.UsedAt == 0 {
		t.Error("UsedAt not set")
	}
}

// Exactly one of any number of concurrent callers may win a signature.
func TestMemoryStoreAtMostOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	const goroutines = 50
	var wins atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.MarkUsed(ctx, "contested", "/premium", "10000", 300*time.Second)
			if err == nil {
				wins.Add(1)
			} else if !errors.Is(err, ErrAlreadyUsed) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("winners = %d, want exactly 1", wins.Load())
	}
}

func TestMemoryStoreStatsAndReset(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	store := NewMemoryStore(WithClock(func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	}))

	for i := 0; i < 3; i++ {
		if err := store.MarkUsed(ctx, fmt.Sprintf("sig-%d", i), "/premium", "10000", 300*time.Second); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Total = %d", stats.Total)
	}
	for i := 1; i < len(stats.Records); i++ {
		if stats.Records[i-1].UsedAt > stats.Records[i].UsedAt {
			t.Error("records not sorted oldest first")
		}
	}

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	stats, _ = store.Stats(ctx)
	if stats.Total != 0 {
		t.Errorf("Total after reset = %d", stats.Total)
	}
}

func TestMemoryStoreRetention(t *testing.T) {
	ctx := context.Background()
	current := time.Unix(1700000000, 0)
	store := NewMemoryStore(
		WithRetention(10*time.Minute),
		WithClock(func() time.Time { return current }),
	)

	if err := store.MarkUsed(ctx, "old", "/premium", "10000", 300*time.Second); err != nil {
		t.Fatal(err)
	}

	// Pruning is lazy; trigger it with a write far in the future.
	current = current.Add(11 * time.Minute)
	if err := store.MarkUsed(ctx, "new", "/premium", "10000", 300*time.Second); err != nil {
		t.Fatal(err)
	}

	used, _ := store.IsUsed(ctx, "old")
	if used {
		t.Error("record past retention window should be pruned")
	}
	used, _ = store.IsUsed(ctx, "new")
	if !used {
		t.Error("fresh record should survive pruning")
	}
}

// Records are kept for their own freshness window even when retention is
// shorter, otherwise a pruned signature could be replayed while its proof
// timestamp still verifies.
func TestMemoryStoreRetentionHonorsRecordWindow(t *testing.T) {
	ctx := context.Background()
	current := time.Unix(1700000000, 0)
	store := NewMemoryStore(
		WithRetention(5*time.Minute),
		WithClock(func() time.Time { return current }),
	)

	if err := store.MarkUsed(ctx, "sig", "/premium", "10000", 3600*time.Second); err != nil {
		t.Fatal(err)
	}

	// Past retention but well inside the record's one-hour window.
	current = current.Add(10 * time.Minute)
	if err := store.MarkUsed(ctx, "other", "/premium", "10000", 300*time.Second); err != nil {
		t.Fatal(err)
	}

	used, _ := store.IsUsed(ctx, "sig")
	if !used {
		t.Fatal("signature inside its freshness window was pruned")
	}
	if err := store.MarkUsed(ctx, "sig", "/premium", "10000", 3600*time.Second); !errors.Is(err, ErrAlreadyUsed) {
		t.Errorf("re-admission after pruning: error = %v, want ErrAlreadyUsed", err)
	}

	// Once the window has elapsed too, the record may go.
	current = current.Add(time.Hour)
	if err := store.MarkUsed(ctx, "late", "/premium", "10000", 300*time.Second); err != nil {
		t.Fatal(err)
	}
	used, _ = store.IsUsed(ctx, "sig")
	if used {
		t.Error("record past retention and past its window should be pruned")
	}
}

// A zero window on MarkUsed defaults to the protocol freshness window.
func TestMemoryStoreWindowDefault(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.MarkUsed(ctx, "sig", "/premium", "10000", 0); err != nil {
		t.Fatal(err)
	}
	record, err := store.Info(ctx, "sig")
	if err != nil {
		t.Fatal(err)
	}
	if record.WindowSeconds != 300 {
		t.Errorf("WindowSeconds = %d, want 300", record.WindowSeconds)
	}
}

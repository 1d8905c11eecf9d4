package x402

import (
	"errors"
	"testing"
)

func TestParseAtomicAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		wantErr bool
	}{
		{"valid", "10000", false},
		{"zero", "0", false},
		{"large", "184467440737095516150", false},
		{"empty", "", true},
		{"negative", "-1", true},
		{"decimal", "0.01", true},
		{"hex", "0x10", true},
		{"garbage", "abc", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAtomicAmount(tt.amount)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseAtomicAmount(%q) error = %v, wantErr %v", tt.amount, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("error should wrap ErrInvalidAmount, got %v", err)
			}
		})
	}
}

func TestDisplayToAtomic(t *testing.T) {
	tests := []struct {
		name    string
		display string
		want    string
		wantErr bool
	}{
		{"one cent", "0.01", "10000", false},
		{"whole", "5", "5000000", false},
		{"full precision", "0.000001", "1", false},
		{"zero", "0", "0", false},
		{"too precise", "0.0000001", "", true},
		{"negative", "-0.01", "", true},
		{"garbage", "ten", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DisplayToAtomic(tt.display, 6)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DisplayToAtomic(%q) error = %v, wantErr %v", tt.display, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("DisplayToAtomic(%q) = %q, want %q", tt.display, got, tt.want)
			}
		})
	}
}

func TestAtomicToDisplay(t *testing.T) {
	got, err := AtomicToDisplay("10000", 6)
	if err != nil {
		t.Fatalf("AtomicToDisplay: %v", err)
	}
	if got != "0.01" {
		t.Errorf("AtomicToDisplay(10000) = %q, want 0.01", got)
	}

	if _, err := AtomicToDisplay("0.5", 6); err == nil {
		t.Error("expected error for non-integer atomic amount")
	}
}

func TestDisplayAtomicRoundTrip(t *testing.T) {
	atomic, err := DisplayToAtomic("1.25", 6)
	if err != nil {
		t.Fatalf("DisplayToAtomic: %v", err)
	}
	display, err := AtomicToDisplay(atomic, 6)
	if err != nil {
		t.Fatalf("AtomicToDisplay: %v", err)
	}
	if display != "1.25" {
		t.Errorf("round trip = %q, want 1.25", display)
	}
}

package x402

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ParseAtomicAmount parses an atomic-unit amount string into a big.Int,
// rejecting anything that is not a plain unsigned decimal integer.
func ParseAtomicAmount(amount string) (*big.Int, error) {
	if amount == "" {
		return nil, fmt.Errorf("%w: empty amount", ErrInvalidAmount)
	}
	v, ok := new(big.Int).SetString(amount, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return v, nil
}

// DisplayToAtomic converts a display amount ("0.01") to atomic units
// ("10000" for a 6-decimal asset). Precision beyond the asset's decimals is
// rejected rather than rounded, so an amount can never silently change.
func DisplayToAtomic(display string, decimals int32) (string, error) {
	d, err := decimal.NewFromString(display)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, display)
	}
	if d.Sign() < 0 {
		return "", fmt.Errorf("%w: negative amount %q", ErrInvalidAmount, display)
	}

	atomic := d.Shift(decimals)
	if !atomic.Equal(atomic.Truncate(0)) {
		return "", fmt.Errorf("%w: %q exceeds %d decimal places", ErrInvalidAmount, display, decimals)
	}
	return atomic.StringFixed(0), nil
}

// AtomicToDisplay converts an atomic-unit amount string to display units
// (10000 atomic units of a 6-decimal asset renders as "0.01").
func AtomicToDisplay(atomic string, decimals int32) (string, error) {
	if _, err := ParseAtomicAmount(atomic); err != nil {
		return "", err
	}
	d, err := decimal.NewFromString(atomic)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, atomic)
	}
	return d.Shift(-decimals).String(), nil
}

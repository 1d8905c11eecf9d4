// Package validation checks payment requirements and proofs for structural
// sanity before they enter the protocol pipeline. Servers run it at startup
// so a misconfigured accepts list fails fast instead of emitting unusable
// challenges.
package validation

import (
	"fmt"

	x402 "github.com/x402lab/x402-solana"
)

// ValidateAmount validates that an amount string is a positive atomic
// integer. A zero price is a configuration error; free endpoints simply
// skip the payment gate.
func ValidateAmount(amount string) error {
	v, err := x402.ParseAtomicAmount(amount)
	if err != nil {
		return err
	}
	if v.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be greater than 0, got %s", x402.ErrInvalidAmount, amount)
	}
	return nil
}

// ValidateRequirement performs full structural validation of one payment
// requirement: scheme, network, amount, and both addresses.
func ValidateRequirement(req x402.PaymentRequirement) error {
	if req.Scheme == "" {
		return fmt.Errorf("invalid requirement: scheme cannot be empty")
	}
	if req.Scheme != x402.SchemeExact {
		return fmt.Errorf("invalid requirement: %w: %s", x402.ErrUnsupportedScheme, req.Scheme)
	}

	if err := x402.ValidateNetwork(req.Network); err != nil {
		return fmt.Errorf("invalid requirement: %w", err)
	}

	if err := ValidateAmount(req.MaxAmountRequired); err != nil {
		return fmt.Errorf("invalid requirement: %w", err)
	}

	if err := x402.ValidateAddress(req.PayTo); err != nil {
		return fmt.Errorf("invalid requirement: payTo: %w", err)
	}
	if err := x402.ValidateAddress(req.Asset); err != nil {
		return fmt.Errorf("invalid requirement: asset: %w", err)
	}

	if req.MaxTimeoutSeconds < 0 {
		return fmt.Errorf("invalid requirement: timeout cannot be negative: %d", req.MaxTimeoutSeconds)
	}

	return nil
}

// ValidateRequirements validates a whole accepts list, which must not be
// empty.
func ValidateRequirements(requirements []x402.PaymentRequirement) error {
	if len(requirements) == 0 {
		return fmt.Errorf("accepts list cannot be empty")
	}
	for i, req := range requirements {
		if err := ValidateRequirement(req); err != nil {
			return fmt.Errorf("accepts[%d]: %w", i, err)
		}
	}
	return nil
}

// ValidateProof validates the envelope of a payment proof beyond what the
// wire decoder enforces: a supported version and scheme, a known network,
// and plausible addresses.
func ValidateProof(proof x402.PaymentProof) error {
	if proof.X402Version != x402.ProtocolVersion {
		return fmt.Errorf("%w: %d", x402.ErrUnsupportedVersion, proof.X402Version)
	}
	if proof.Scheme != x402.SchemeExact {
		return fmt.Errorf("%w: %s", x402.ErrUnsupportedScheme, proof.Scheme)
	}
	if err := x402.ValidateNetwork(proof.Network); err != nil {
		return err
	}
	if err := x402.ValidateAddress(proof.Payload.From); err != nil {
		return fmt.Errorf("from: %w", err)
	}
	if err := x402.ValidateAddress(proof.Payload.Mint); err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	return ValidateAmount(proof.Payload.Amount)
}

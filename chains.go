package x402

import (
	"fmt"
	"regexp"
)

// ChainConfig carries per-network constants for the reference USDC asset.
type ChainConfig struct {
	// NetworkID is the x402 network identifier.
	NetworkID string

	// USDCMint is the official Circle USDC mint address on the network.
	USDCMint string

	// Decimals is the number of decimal places for USDC (always 6).
	Decimals int32
}

var (
	// SolanaMainnet is the configuration for Solana mainnet.
	SolanaMainnet = ChainConfig{
		NetworkID: "solana",
		USDCMint:  "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Decimals:  6,
	}

	// SolanaDevnet is the configuration for Solana devnet.
	SolanaDevnet = ChainConfig{
		NetworkID: "solana-devnet",
		USDCMint:  "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU",
		Decimals:  6,
	}
)

// base58AddressRegex matches Solana base58 addresses (32-44 chars, base58 charset).
var base58AddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// ValidateNetwork checks that a network identifier names a supported Solana
// network.
func ValidateNetwork(networkID string) error {
	switch networkID {
	case "":
		return fmt.Errorf("%w: empty network identifier", ErrInvalidNetwork)
	case SolanaMainnet.NetworkID, SolanaDevnet.NetworkID:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidNetwork, networkID)
	}
}

// ValidateAddress checks that an address is plausible base58 Solana material.
// It does not prove the address exists on chain.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}
	if !base58AddressRegex.MatchString(address) {
		return fmt.Errorf("%w: %q is not base58 (32-44 chars)", ErrInvalidAddress, address)
	}
	return nil
}

// USDCRequirementConfig configures NewUSDCPaymentRequirement.
type USDCRequirementConfig struct {
	// Chain selects the network and USDC mint (required).
	Chain ChainConfig

	// Amount is the human-readable USDC amount, e.g. "0.01" (required).
	Amount string

	// RecipientAddress receives the payment (required).
	RecipientAddress string

	// Resource is the protected path or URL (optional; middleware fills it in).
	Resource string

	// MaxTimeoutSeconds bounds the challenge validity window (optional,
	// defaults to DefaultMaxTimeoutSeconds).
	MaxTimeoutSeconds int

	// Description is an optional human-readable payment description.
	Description string
}

// NewUSDCPaymentRequirement builds an "exact"-scheme requirement for USDC on
// the configured chain, converting the display amount to atomic units.
func NewUSDCPaymentRequirement(config USDCRequirementConfig) (PaymentRequirement, error) {
	if err := ValidateNetwork(config.Chain.NetworkID); err != nil {
		return PaymentRequirement{}, err
	}
	if err := ValidateAddress(config.RecipientAddress); err != nil {
		return PaymentRequirement{}, fmt.Errorf("recipientAddress: %w", err)
	}

	atomic, err := DisplayToAtomic(config.Amount, config.Chain.Decimals)
	if err != nil {
		return PaymentRequirement{}, fmt.Errorf("amount: %w", err)
	}

	timeout := config.MaxTimeoutSeconds
	if timeout <= 0 {
		timeout = DefaultMaxTimeoutSeconds
	}

	return PaymentRequirement{
		Scheme:            SchemeExact,
		Network:           config.Chain.NetworkID,
		MaxAmountRequired: atomic,
		Resource:          config.Resource,
		PayTo:             config.RecipientAddress,
		Asset:             config.Chain.USDCMint,
		Description:       config.Description,
		MimeType:          "application/json",
		MaxTimeoutSeconds: timeout,
	}, nil
}

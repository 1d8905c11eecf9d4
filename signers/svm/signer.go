// Package svm implements the x402 Signer for Solana: an ed25519 keypair
// loaded from a base58 string, a Solana CLI keygen file, or a BIP-39
// mnemonic, signing raw payment messages and transaction messages alike.
//
// Private keys should be loaded from secure sources (env vars, key
// management systems). Never hardcode private keys in source code.
package svm

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	bip39 "github.com/tyler-smith/go-bip39"

	x402 "github.com/x402lab/x402-solana"
)

// Signer implements the x402.Signer interface for Solana networks.
type Signer struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
	network    string
}

// SignerOption configures a Signer.
type SignerOption func(*Signer) error

// NewSigner creates a Solana signer from the given options. Exactly one key
// source option and a network are required.
func NewSigner(opts ...SignerOption) (*Signer, error) {
	s := &Signer{}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if len(s.privateKey) == 0 {
		return nil, x402.ErrInvalidKey
	}
	if err := x402.ValidateNetwork(s.network); err != nil {
		return nil, err
	}

	s.publicKey = s.privateKey.PublicKey()
	return s, nil
}

// WithPrivateKey sets the private key from a base58 string.
func WithPrivateKey(base58Key string) SignerOption {
	return func(s *Signer) error {
		privateKey, err := solana.PrivateKeyFromBase58(base58Key)
		if err != nil {
			return x402.ErrInvalidKey
		}
		s.privateKey = privateKey
		return nil
	}
}

// WithKeygenFile loads a private key from a Solana CLI keygen JSON file,
// the `[1, 2, 3, ...]` 64-byte array format written by solana-keygen.
func WithKeygenFile(path string) SignerOption {
	return func(s *Signer) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%w: %v", x402.ErrInvalidKeystore, err)
		}

		// solana-keygen writes a JSON array of numbers, not base64.
		var raw []int
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("%w: invalid JSON format", x402.ErrInvalidKeystore)
		}
		if len(raw) != ed25519.PrivateKeySize {
			return fmt.Errorf("%w: invalid key length %d", x402.ErrInvalidKeystore, len(raw))
		}

		keyBytes := make([]byte, len(raw))
		for i, b := range raw {
			if b < 0 || b > 255 {
				return fmt.Errorf("%w: byte value out of range", x402.ErrInvalidKeystore)
			}
			keyBytes[i] = byte(b)
		}
		s.privateKey = solana.PrivateKey(keyBytes)
		return nil
	}
}

// WithMnemonic derives the keypair from a BIP-39 mnemonic phrase, using the
// first 32 bytes of the seed as the ed25519 seed.
func WithMnemonic(mnemonic, passphrase string) SignerOption {
	return func(s *Signer) error {
		if !bip39.IsMnemonicValid(mnemonic) {
			return fmt.Errorf("%w: invalid mnemonic", x402.ErrInvalidKey)
		}
		seed := bip39.NewSeed(mnemonic, passphrase)
		key := ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])
		s.privateKey = solana.PrivateKey(key)
		return nil
	}
}

// WithNetwork sets the Solana network the signer pays on.
func WithNetwork(network string) SignerOption {
	return func(s *Signer) error {
		s.network = network
		return nil
	}
}

// Network implements x402.Signer.
func (s *Signer) Network() string {
	return s.network
}

// Scheme implements x402.Signer.
func (s *Signer) Scheme() string {
	return x402.SchemeExact
}

// PublicAddress implements x402.Signer.
func (s *Signer) PublicAddress() string {
	return s.publicKey.String()
}

// Sign implements x402.Signer. It signs the message with the keypair and
// returns the raw 64-byte ed25519 signature.
func (s *Signer) Sign(message []byte) ([]byte, error) {
	sig, err := s.privateKey.Sign(message)
	if err != nil {
		return nil, fmt.Errorf("signing failed: %w", err)
	}
	return sig[:], nil
}

var _ x402.Signer = (*Signer)(nil)

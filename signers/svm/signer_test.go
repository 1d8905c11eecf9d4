package svm

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"

	x402 "github.com/x402lab/x402-solana"
)

// Standard BIP-39 test vector phrase.
const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestNewSignerFromBase58(t *testing.T) {
	wallet := solana.NewWallet()

	signer, err := NewSigner(
		WithPrivateKey(wallet.PrivateKey.String()),
		WithNetwork("solana-devnet"),
	)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	if signer.PublicAddress() != wallet.PublicKey().String() {
		t.Errorf("PublicAddress = %s, want %s", signer.PublicAddress(), wallet.PublicKey())
	}
	if signer.Network() != "solana-devnet" {
		t.Errorf("Network = %s", signer.Network())
	}
	if signer.Scheme() != x402.SchemeExact {
		t.Errorf("Scheme = %s", signer.Scheme())
	}
}

func TestNewSignerFromKeygenFile(t *testing.T) {
	wallet := solana.NewWallet()

	// The solana-keygen on-disk format: a JSON array of byte values.
	raw := make([]int, len(wallet.PrivateKey))
	for i, b := range wallet.PrivateKey {
		raw[i] = int(b)
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "id.json")
	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		t.Fatal(err)
	}

	signer, err := NewSigner(WithKeygenFile(path), WithNetwork("solana"))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	if signer.PublicAddress() != wallet.PublicKey().String() {
		t.Errorf("PublicAddress = %s, want %s", signer.PublicAddress(), wallet.PublicKey())
	}
}

func TestNewSignerFromMnemonic(t *testing.T) {
	first, err := NewSigner(WithMnemonic(testMnemonic, ""), WithNetwork("solana-devnet"))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	second, err := NewSigner(WithMnemonic(testMnemonic, ""), WithNetwork("solana-devnet"))
	if err != nil {
		t.Fatal(err)
	}

	// Derivation must be deterministic.
	if first.PublicAddress() != second.PublicAddress() {
		t.Errorf("same mnemonic derived %s and %s", first.PublicAddress(), second.PublicAddress())
	}

	// A passphrase changes the derived key.
	third, err := NewSigner(WithMnemonic(testMnemonic, "trezor"), WithNetwork("solana-devnet"))
	if err != nil {
		t.Fatal(err)
	}
	if third.PublicAddress() == first.PublicAddress() {
		t.Error("passphrase did not change the derived key")
	}
}

func TestSignVerifies(t *testing.T) {
	wallet := solana.NewWallet()
	signer, err := NewSigner(
		WithPrivateKey(wallet.PrivateKey.String()),
		WithNetwork("solana-devnet"),
	)
	if err != nil {
		t.Fatal(err)
	}

	message := x402.CanonicalMessage(signer.PublicAddress(), "10000", x402.SolanaDevnet.USDCMint, 1700000000)
	sigBytes, err := signer.Sign(message)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	sig := solana.SignatureFromBytes(sigBytes)
	if !sig.Verify(wallet.PublicKey(), message) {
		t.Error("signature does not verify against the public key")
	}
	if sig.Verify(wallet.PublicKey(), append(message, 'x')) {
		t.Error("signature verified against a tampered message")
	}
}

func TestNewSignerValidation(t *testing.T) {
	wallet := solana.NewWallet()

	tests := []struct {
		name string
		opts []SignerOption
		want error
	}{
		{"no key source", []SignerOption{WithNetwork("solana")}, x402.ErrInvalidKey},
		{"bad base58", []SignerOption{WithPrivateKey("not-base58-###"), WithNetwork("solana")}, x402.ErrInvalidKey},
		{"bad mnemonic", []SignerOption{WithMnemonic("not a valid phrase", ""), WithNetwork("solana")}, x402.ErrInvalidKey},
		{"missing network", []SignerOption{WithPrivateKey(wallet.PrivateKey.String())}, x402.ErrInvalidNetwork},
		{"unknown network", []SignerOption{WithPrivateKey(wallet.PrivateKey.String()), WithNetwork("base-sepolia")}, x402.ErrInvalidNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSigner(tt.opts...)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestKeygenFileErrors(t *testing.T) {
	dir := t.TempDir()

	badJSON := filepath.Join(dir, "bad.json")
	os.WriteFile(badJSON, []byte("{not json"), 0o600)

	shortKey := filepath.Join(dir, "short.json")
	os.WriteFile(shortKey, []byte("[1,2,3]"), 0o600)

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "nope.json")},
		{"invalid JSON", badJSON},
		{"wrong key length", shortKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSigner(WithKeygenFile(tt.path), WithNetwork("solana"))
			if !errors.Is(err, x402.ErrInvalidKeystore) {
				t.Errorf("error = %v, want ErrInvalidKeystore", err)
			}
		})
	}
}

package validation

import (
	"errors"
	"strings"
	"testing"

	x402 "github.com/x402lab/x402-solana"
)

func validRequirement() x402.PaymentRequirement {
	return x402.PaymentRequirement{
		Scheme:            x402.SchemeExact,
		Network:           "solana-devnet",
		MaxAmountRequired: "10000",
		PayTo:             "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
		Asset:             x402.SolanaDevnet.USDCMint,
		MaxTimeoutSeconds: 300,
	}
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		wantErr bool
	}{
		{"positive", "10000", false},
		{"one", "1", false},
		{"zero", "0", true},
		{"negative", "-5", true},
		{"empty", "", true},
		{"decimal", "10.5", true},
		{"not a number", "lots", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAmount(tt.amount)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAmount(%q) = %v, wantErr %v", tt.amount, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRequirement(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*x402.PaymentRequirement)
		want   error
	}{
		{"valid", func(*x402.PaymentRequirement) {}, nil},
		{"empty scheme", func(r *x402.PaymentRequirement) { r.Scheme = "" }, nil},
		{"unknown scheme", func(r *x402.PaymentRequirement) { r.Scheme = "upto" }, x402.ErrUnsupportedScheme},
		{"unknown network", func(r *x402.PaymentRequirement) { r.Network = "base" }, x402.ErrInvalidNetwork},
		{"zero amount", func(r *x402.PaymentRequirement) { r.MaxAmountRequired = "0" }, x402.ErrInvalidAmount},
		{"bad payTo", func(r *x402.PaymentRequirement) { r.PayTo = "0xdeadbeef" }, x402.ErrInvalidAddress},
		{"bad asset", func(r *x402.PaymentRequirement) { r.Asset = "nope" }, x402.ErrInvalidAddress},
		{"negative timeout", func(r *x402.PaymentRequirement) { r.MaxTimeoutSeconds = -1 }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequirement()
			tt.mutate(&req)
			err := ValidateRequirement(req)

			switch tt.name {
			case "valid":
				if err != nil {
					t.Errorf("valid requirement rejected: %v", err)
				}
			case "empty scheme", "negative timeout":
				if err == nil {
					t.Error("invalid requirement accepted")
				}
			default:
				if !errors.Is(err, tt.want) {
					t.Errorf("error = %v, want %v", err, tt.want)
				}
			}
		})
	}
}

func TestValidateRequirements(t *testing.T) {
	if err := ValidateRequirements(nil); err == nil {
		t.Error("empty accepts list accepted")
	}

	bad := validRequirement()
	bad.MaxAmountRequired = "0"
	err := ValidateRequirements([]x402.PaymentRequirement{validRequirement(), bad})
	if err == nil {
		t.Fatal("list with invalid entry accepted")
	}
	if !strings.Contains(err.Error(), "accepts[1]") {
		t.Errorf("error %q does not name the offending entry", err)
	}

	if err := ValidateRequirements([]x402.PaymentRequirement{validRequirement()}); err != nil {
		t.Errorf("valid list rejected: %v", err)
	}
}

func TestValidateProof(t *testing.T) {
	valid := x402.PaymentProof{
		X402Version: 1,
		Scheme:      x402.SchemeExact,
		Network:     "solana-devnet",
		Payload: x402.ProofPayload{
			Signature: "sig",
			From:      "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
			Amount:    "10000",
			Mint:      x402.SolanaDevnet.USDCMint,
			Timestamp: 1700000000,
		},
	}
	if err := ValidateProof(valid); err != nil {
		t.Errorf("valid proof rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*x402.PaymentProof)
		want   error
	}{
		{"wrong version", func(p *x402.PaymentProof) { p.X402Version = 2 }, x402.ErrUnsupportedVersion},
		{"wrong scheme", func(p *x402.PaymentProof) { p.Scheme = "upto" }, x402.ErrUnsupportedScheme},
		{"unknown network", func(p *x402.PaymentProof) { p.Network = "base" }, x402.ErrInvalidNetwork},
		{"bad from", func(p *x402.PaymentProof) { p.Payload.From = "!!" }, x402.ErrInvalidAddress},
		{"bad mint", func(p *x402.PaymentProof) { p.Payload.Mint = "!!" }, x402.ErrInvalidAddress},
		{"zero amount", func(p *x402.PaymentProof) { p.Payload.Amount = "0" }, x402.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proof := valid
			tt.mutate(&proof)
			if err := ValidateProof(proof); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

// Package encoding is the wire codec for x402 payment data: the 402
// challenge body, the base64 X-PAYMENT header, and the X-PAYMENT-RESPONSE
// settlement receipt. Decoding is strict — any structural deviation is a
// hard parse failure, never a best-effort value.
package encoding

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	x402 "github.com/x402lab/x402-solana"
)

// ParseError reports a structural decode failure. Callers map it to a
// 400-class response, distinct from a payment rejection.
type ParseError struct {
	// Field names the missing or malformed element, when known.
	Field string

	// Msg describes the failure.
	Msg string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse error: %s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("parse error: %s", e.Msg)
}

// Unwrap supports errors.Is/errors.As on the wrapped cause.
func (e *ParseError) Unwrap() error { return e.Err }

func parseErr(field, msg string, err error) *ParseError {
	return &ParseError{Field: field, Msg: msg, Err: err}
}

// EncodeChallenge serializes a challenge to its canonical JSON body.
func EncodeChallenge(challenge x402.PaymentChallenge) ([]byte, error) {
	body, err := json.Marshal(challenge)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal challenge: %w", err)
	}
	return body, nil
}

// DecodeChallenge parses and validates a 402 response body. It fails if the
// version is missing, the accepts list is missing or empty, or any
// requirement lacks a required field.
func DecodeChallenge(body []byte) (x402.PaymentChallenge, error) {
	var challenge x402.PaymentChallenge
	if err := json.Unmarshal(body, &challenge); err != nil {
		return x402.PaymentChallenge{}, parseErr("", "invalid challenge JSON", err)
	}

	if challenge.X402Version == 0 {
		return x402.PaymentChallenge{}, parseErr("x402Version", "missing", nil)
	}
	if len(challenge.Accepts) == 0 {
		return x402.PaymentChallenge{}, parseErr("accepts", "missing or empty", nil)
	}
	for i, req := range challenge.Accepts {
		if err := validateRequirement(req); err != nil {
			return x402.PaymentChallenge{}, parseErr(fmt.Sprintf("accepts[%d]", i), err.Error(), nil)
		}
	}

	return challenge, nil
}

// EncodeProof serializes a payment proof to its X-PAYMENT header value:
// canonical JSON, then standard base64.
func EncodeProof(proof x402.PaymentProof) (string, error) {
	body, err := json.Marshal(proof)
	if err != nil {
		return "", fmt.Errorf("failed to marshal proof: %w", err)
	}
	return base64.StdEncoding.EncodeToString(body), nil
}

// DecodeProof parses and validates an X-PAYMENT header value. It fails on
// invalid base64, invalid JSON, or any missing required proof field.
func DecodeProof(header string) (x402.PaymentProof, error) {
	if header == "" {
		return x402.PaymentProof{}, parseErr("", "empty payment header", nil)
	}

	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return x402.PaymentProof{}, parseErr("", "invalid base64", err)
	}

	var proof x402.PaymentProof
	if err := json.Unmarshal(raw, &proof); err != nil {
		return x402.PaymentProof{}, parseErr("", "invalid proof JSON", err)
	}

	switch {
	case proof.X402Version == 0:
		return x402.PaymentProof{}, parseErr("x402Version", "missing", nil)
	case proof.Scheme == "":
		return x402.PaymentProof{}, parseErr("scheme", "missing", nil)
	case proof.Network == "":
		return x402.PaymentProof{}, parseErr("network", "missing", nil)
	case proof.Payload.Signature == "":
		return x402.PaymentProof{}, parseErr("payload.signature", "missing", nil)
	case proof.Payload.From == "":
		return x402.PaymentProof{}, parseErr("payload.from", "missing", nil)
	case proof.Payload.Amount == "":
		return x402.PaymentProof{}, parseErr("payload.amount", "missing", nil)
	case proof.Payload.Mint == "":
		return x402.PaymentProof{}, parseErr("payload.mint", "missing", nil)
	case proof.Payload.Timestamp == 0:
		return x402.PaymentProof{}, parseErr("payload.timestamp", "missing", nil)
	}

	return proof, nil
}

// EncodeReceipt serializes a settlement receipt to its X-PAYMENT-RESPONSE
// header value: JSON, then standard base64.
func EncodeReceipt(receipt x402.SettlementReceipt) (string, error) {
	body, err := json.Marshal(receipt)
	if err != nil {
		return "", fmt.Errorf("failed to marshal receipt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(body), nil
}

// DecodeReceipt parses an X-PAYMENT-RESPONSE header value.
func DecodeReceipt(header string) (x402.SettlementReceipt, error) {
	if header == "" {
		return x402.SettlementReceipt{}, parseErr("", "empty receipt header", nil)
	}

	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return x402.SettlementReceipt{}, parseErr("", "invalid base64", err)
	}

	var receipt x402.SettlementReceipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return x402.SettlementReceipt{}, parseErr("", "invalid receipt JSON", err)
	}
	if receipt.NetworkID == "" {
		return x402.SettlementReceipt{}, parseErr("networkId", "missing", nil)
	}

	return receipt, nil
}

func validateRequirement(req x402.PaymentRequirement) error {
	switch {
	case req.Scheme == "":
		return fmt.Errorf("missing scheme")
	case req.Network == "":
		return fmt.Errorf("missing network")
	case req.MaxAmountRequired == "":
		return fmt.Errorf("missing maxAmountRequired")
	case req.Resource == "":
		return fmt.Errorf("missing resource")
	case req.PayTo == "":
		return fmt.Errorf("missing payTo")
	case req.Asset == "":
		return fmt.Errorf("missing asset")
	}
	return nil
}

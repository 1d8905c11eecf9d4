package x402

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the module.
var (
	// ErrMalformedHeader indicates the X-PAYMENT header could not be decoded.
	ErrMalformedHeader = errors.New("malformed payment header")

	// ErrMalformedChallenge indicates a 402 body could not be decoded.
	ErrMalformedChallenge = errors.New("malformed payment challenge")

	// ErrUnsupportedVersion indicates an unsupported x402 protocol version.
	ErrUnsupportedVersion = errors.New("unsupported x402 version")

	// ErrUnsupportedScheme indicates an unsupported payment scheme.
	ErrUnsupportedScheme = errors.New("unsupported payment scheme")

	// ErrNoFeasibleRequirement indicates no accepts entry matches the
	// client's signer.
	ErrNoFeasibleRequirement = errors.New("no feasible payment requirement")

	// ErrInvalidAmount indicates an amount string is not a valid unsigned integer.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidNetwork indicates an empty or unrecognized network identifier.
	ErrInvalidNetwork = errors.New("invalid network")

	// ErrInvalidAddress indicates a string is not plausible Solana address material.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidKey indicates signing material could not be parsed.
	ErrInvalidKey = errors.New("invalid private key")

	// ErrInvalidKeystore indicates a keygen/keystore file could not be loaded.
	ErrInvalidKeystore = errors.New("invalid keystore")

	// ErrVerificationFailed indicates payment verification failed.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrSettlementNotConfirmed indicates a submitted transaction did not
	// reach finality inside the allowed window.
	ErrSettlementNotConfirmed = errors.New("settlement not confirmed")
)

// RejectKind identifies which verification check refused a payment proof.
// The values are wire-stable strings surfaced in challenge error details.
type RejectKind string

const (
	RejectInvalidFormat       RejectKind = "invalid_format"
	RejectAlreadyProcessed    RejectKind = "already_processed"
	RejectUnsupportedVersion  RejectKind = "unsupported_version"
	RejectUnsupportedScheme   RejectKind = "unsupported_scheme"
	RejectNetworkMismatch     RejectKind = "network_mismatch"
	RejectInvalidAsset        RejectKind = "invalid_asset"
	RejectAmountMismatch      RejectKind = "amount_mismatch"
	RejectExpired             RejectKind = "expired"
	RejectRecipientMismatch   RejectKind = "recipient_mismatch"
	RejectTransactionNotFound RejectKind = "transaction_not_found"
	RejectTransactionFailed   RejectKind = "transaction_failed"
	RejectInvalidSignature    RejectKind = "invalid_signature"
)

// BuildErrorKind classifies payment-construction failures.
type BuildErrorKind string

const (
	BuildExceedsLimit        BuildErrorKind = "exceeds_limit"
	BuildSigningFailed       BuildErrorKind = "signing_failed"
	BuildSubmissionFailed    BuildErrorKind = "submission_failed"
	BuildConfirmationTimeout BuildErrorKind = "confirmation_timeout"
)

// BuildError is returned by the payment builder when a proof cannot be
// constructed. The Kind distinguishes guardrail refusals from signing and
// ledger failures so callers can decide whether a retry makes sense.
type BuildError struct {
	Kind    BuildErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment build failed (%s): %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("payment build failed (%s): %s", e.Kind, e.Message)
}

// Unwrap supports errors.Is/errors.As on the wrapped cause.
func (e *BuildError) Unwrap() error { return e.Err }

// NewBuildError constructs a BuildError.
func NewBuildError(kind BuildErrorKind, message string, err error) *BuildError {
	return &BuildError{Kind: kind, Message: message, Err: err}
}

// PaymentError is a structured error carrying a machine-readable code and
// optional key/value details, wrapping an underlying cause.
type PaymentError struct {
	Code    string
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface.
func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap supports errors.Is/errors.As on the wrapped cause.
func (e *PaymentError) Unwrap() error { return e.Err }

// WithDetails attaches a key/value detail and returns the error for chaining.
func (e *PaymentError) WithDetails(key string, value interface{}) *PaymentError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewPaymentError constructs a PaymentError wrapping err.
func NewPaymentError(code, message string, err error) *PaymentError {
	return &PaymentError{Code: code, Message: message, Err: err}
}

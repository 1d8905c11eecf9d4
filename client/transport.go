// Package client implements the paying HTTP client: a RoundTripper that
// answers 402 challenges automatically, and a fluent request runner for
// exercising paid endpoints with expectations.
package client

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	x402 "github.com/x402lab/x402-solana"
	"github.com/x402lab/x402-solana/encoding"
	"github.com/x402lab/x402-solana/logger"
	"github.com/x402lab/x402-solana/payment"
	"github.com/x402lab/x402-solana/validation"
)

// Transport is an http.RoundTripper that completes x402 payment flows. The
// first attempt goes out unmodified; on a 402 it selects a feasible
// requirement, builds a proof, and retries once with the X-PAYMENT header.
// Any other status passes through untouched.
type Transport struct {
	// Base is the underlying RoundTripper; nil means http.DefaultTransport.
	Base http.RoundTripper

	// Signer authorizes payments.
	Signer x402.Signer

	// Builder constructs payment proofs.
	Builder *payment.Builder

	// Logger receives structured flow logs; nil means silent.
	Logger logger.Logger

	// OnPaymentAttempt fires before the paid retry goes out.
	OnPaymentAttempt x402.PaymentCallback

	// OnPaymentSuccess fires when the retry came back with a settled receipt.
	OnPaymentSuccess x402.PaymentCallback

	// OnPaymentFailure fires when building or sending the payment failed.
	OnPaymentFailure x402.PaymentCallback
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	log := t.Logger
	if log == nil {
		log = logger.NoopLogger{}
	}

	// Buffer the body up front so it can be replayed on the paid retry.
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to buffer request body: %w", err)
		}
	}

	resp, err := base.RoundTrip(requestWithBody(req, body))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}

	challengeBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read challenge body: %w", err)
	}

	challenge, err := encoding.DecodeChallenge(challengeBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", x402.ErrMalformedChallenge, err)
	}

	chosen, err := x402.FirstFeasible(challenge.Accepts, t.Signer)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateRequirement(*chosen); err != nil {
		return nil, fmt.Errorf("%w: %v", x402.ErrMalformedChallenge, err)
	}

	log.Debug("payment required", map[string]any{
		"url":     req.URL.String(),
		"network": chosen.Network,
		"amount":  chosen.MaxAmountRequired,
	})

	start := time.Now()
	t.fire(t.OnPaymentAttempt, x402.PaymentEvent{
		Type:      x402.PaymentEventAttempt,
		Timestamp: start,
		Method:    req.Method,
		URL:       req.URL.String(),
		Network:   chosen.Network,
		Scheme:    chosen.Scheme,
		Amount:    chosen.MaxAmountRequired,
		Asset:     chosen.Asset,
		Recipient: chosen.PayTo,
	})

	proof, err := t.Builder.Build(req.Context(), *chosen, t.Signer)
	if err != nil {
		t.fire(t.OnPaymentFailure, x402.PaymentEvent{
			Type:      x402.PaymentEventFailure,
			Timestamp: time.Now(),
			Method:    req.Method,
			URL:       req.URL.String(),
			Error:     err,
			Duration:  time.Since(start),
		})
		return nil, err
	}

	header, err := encoding.EncodeProof(*proof)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment header: %w", err)
	}

	retryReq := requestWithBody(req, body)
	retryReq.Header.Set(x402.HeaderPayment, header)

	retryResp, err := base.RoundTrip(retryReq)
	duration := time.Since(start)
	if err != nil {
		t.fire(t.OnPaymentFailure, x402.PaymentEvent{
			Type:      x402.PaymentEventFailure,
			Timestamp: time.Now(),
			Method:    req.Method,
			URL:       req.URL.String(),
			Error:     err,
			Duration:  duration,
		})
		return nil, err
	}

	if receipt, rerr := encoding.DecodeReceipt(retryResp.Header.Get(x402.HeaderPaymentResponse)); rerr == nil && receipt.Success {
		event := x402.PaymentEvent{
			Type:      x402.PaymentEventSuccess,
			Timestamp: time.Now(),
			Method:    req.Method,
			URL:       req.URL.String(),
			Network:   chosen.Network,
			Scheme:    chosen.Scheme,
			Amount:    chosen.MaxAmountRequired,
			Asset:     chosen.Asset,
			Recipient: chosen.PayTo,
			Duration:  duration,
		}
		if receipt.TxHash != nil {
			event.Transaction = *receipt.TxHash
		}
		t.fire(t.OnPaymentSuccess, event)
	}

	return retryResp, nil
}

func (t *Transport) fire(cb x402.PaymentCallback, event x402.PaymentEvent) {
	if cb != nil {
		cb(event)
	}
}

// requestWithBody clones req with a fresh readable body. Bodies are
// single-read, so every attempt needs its own reader over the buffered bytes.
func requestWithBody(req *http.Request, body []byte) *http.Request {
	clone := req.Clone(req.Context())
	if body == nil {
		clone.Body = nil
		return clone
	}
	clone.Body = io.NopCloser(bytes.NewReader(body))
	clone.ContentLength = int64(len(body))
	return clone
}

package client

import (
	"bytes"
	"context"
	"errors"
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

// State tracks where a request is in the payment flow. Transitions are
// strictly forward: Idle → Requested → ChallengeReceived → Paying → Retried
// → Completed, with Failed reachable from any point.
type State string

const (
	StateIdle              State = "idle"
	StateRequested         State = "requested"
	StateChallengeReceived State = "challenge_received"
	StatePaying            State = "paying"
	StateRetried           State = "retried"
	StateCompleted         State = "completed"
	StateFailed            State = "failed"
)

// Outcome is the full result of one executed request, covering both the
// plain and the paid path.
type Outcome struct {
	// State is the terminal flow state.
	State State

	// StatusCode and Headers describe the final HTTP response.
	StatusCode int
	Headers    http.Header

	// Body is the final response body, fully read.
	Body []byte

	// Paid reports whether a payment was sent on this request.
	Paid bool

	// Proof is the payment proof that was sent, when Paid.
	Proof *x402.PaymentProof

	// Settlement is the decoded X-PAYMENT-RESPONSE receipt, when present.
	Settlement *x402.SettlementReceipt

	// Challenge is the decoded 402 body, when one was received.
	Challenge *x402.PaymentChallenge
}

// Client executes requests against x402-protected endpoints, paying
// challenges as they arrive and tracking the flow state.
type Client struct {
	httpClient *http.Client
	signer     x402.Signer
	builder    *payment.Builder
	log        logger.Logger
	timeouts   x402.TimeoutConfig

	onAttempt x402.PaymentCallback
	onSuccess x402.PaymentCallback
	onFailure x402.PaymentCallback
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithSigner sets the payment signer.
func WithSigner(s x402.Signer) ClientOption {
	return func(c *Client) { c.signer = s }
}

// WithBuilder sets the payment builder.
func WithBuilder(b *payment.Builder) ClientOption {
	return func(c *Client) { c.builder = b }
}

// WithLogger sets the structured logger.
func WithLogger(log logger.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// WithTimeouts overrides the default timeout configuration.
func WithTimeouts(t x402.TimeoutConfig) ClientOption {
	return func(c *Client) { c.timeouts = t }
}

// WithPaymentCallbacks registers lifecycle observers. Any callback may be nil.
func WithPaymentCallbacks(onAttempt, onSuccess, onFailure x402.PaymentCallback) ClientOption {
	return func(c *Client) {
		c.onAttempt = onAttempt
		c.onSuccess = onSuccess
		c.onFailure = onFailure
	}
}

// NewClient builds a Client. A signer and builder are required to pay
// challenges; without them the client can still exercise free endpoints.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		httpClient: http.DefaultClient,
		log:        logger.NoopLogger{},
		timeouts:   x402.DefaultTimeouts,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.builder == nil && c.signer != nil {
		b, err := payment.NewBuilder()
		if err != nil {
			return nil, err
		}
		c.builder = b
	}
	return c, nil
}

// NewRequest starts a fluent request description. Nothing is sent until
// Execute is called.
func (c *Client) NewRequest(method, url string) *Request {
	return &Request{
		client: c,
		method: method,
		url:    url,
		header: make(http.Header),
	}
}

// Request is a pending request plus its expectations.
type Request struct {
	client *Client
	method string
	url    string
	header http.Header
	body   []byte

	expectations []expectation
}

// WithHeader adds a request header.
func (r *Request) WithHeader(key, value string) *Request {
	r.header.Set(key, value)
	return r
}

// WithBody sets the request body.
func (r *Request) WithBody(body []byte) *Request {
	r.body = body
	return r
}

// Execute runs the request through the payment flow and then evaluates the
// registered expectations. Flow failures return the partial Outcome (terminal
// state StateFailed) together with the error, so callers can observe where
// the flow died; expectation failures return the completed Outcome together
// with the joined assertion errors.
func (r *Request) Execute(ctx context.Context) (*Outcome, error) {
	c := r.client
	outcome := &Outcome{State: StateIdle}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.RequestTimeout)
	defer cancel()

	resp, err := r.send(ctx, "")
	if err != nil {
		outcome.State = StateFailed
		return outcome, err
	}
	outcome.State = StateRequested

	if resp.StatusCode != http.StatusPaymentRequired {
		if err := finishOutcome(outcome, resp); err != nil {
			return outcome, err
		}
		return outcome, r.assert(outcome)
	}

	challengeBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		outcome.State = StateFailed
		return outcome, fmt.Errorf("failed to read challenge body: %w", err)
	}
	challenge, err := encoding.DecodeChallenge(challengeBody)
	if err != nil {
		outcome.State = StateFailed
		return outcome, fmt.Errorf("%w: %v", x402.ErrMalformedChallenge, err)
	}
	outcome.State = StateChallengeReceived
	outcome.Challenge = &challenge

	chosen, err := x402.FirstFeasible(challenge.Accepts, c.signer)
	if err != nil {
		outcome.State = StateFailed
		return outcome, err
	}
	if err := validation.ValidateRequirement(*chosen); err != nil {
		outcome.State = StateFailed
		return outcome, fmt.Errorf("%w: %v", x402.ErrMalformedChallenge, err)
	}

	outcome.State = StatePaying
	start := time.Now()
	c.fire(c.onAttempt, x402.PaymentEvent{
		Type:      x402.PaymentEventAttempt,
		Timestamp: start,
		Method:    r.method,
		URL:       r.url,
		Network:   chosen.Network,
		Scheme:    chosen.Scheme,
		Amount:    chosen.MaxAmountRequired,
		Asset:     chosen.Asset,
		Recipient: chosen.PayTo,
	})

	proof, err := c.builder.Build(ctx, *chosen, c.signer)
	if err != nil {
		outcome.State = StateFailed
		c.fire(c.onFailure, x402.PaymentEvent{
			Type:      x402.PaymentEventFailure,
			Timestamp: time.Now(),
			Method:    r.method,
			URL:       r.url,
			Error:     err,
			Duration:  time.Since(start),
		})
		return outcome, err
	}
	outcome.Proof = proof
	outcome.Paid = true

	header, err := encoding.EncodeProof(*proof)
	if err != nil {
		outcome.State = StateFailed
		return outcome, fmt.Errorf("failed to encode payment header: %w", err)
	}

	retryResp, err := r.send(ctx, header)
	if err != nil {
		outcome.State = StateFailed
		c.fire(c.onFailure, x402.PaymentEvent{
			Type:      x402.PaymentEventFailure,
			Timestamp: time.Now(),
			Method:    r.method,
			URL:       r.url,
			Error:     err,
			Duration:  time.Since(start),
		})
		return outcome, err
	}
	outcome.State = StateRetried

	if err := finishOutcome(outcome, retryResp); err != nil {
		return outcome, err
	}

	if outcome.Settlement != nil && outcome.Settlement.Success {
		event := x402.PaymentEvent{
			Type:      x402.PaymentEventSuccess,
			Timestamp: time.Now(),
			Method:    r.method,
			URL:       r.url,
			Network:   chosen.Network,
			Scheme:    chosen.Scheme,
			Amount:    chosen.MaxAmountRequired,
			Asset:     chosen.Asset,
			Recipient: chosen.PayTo,
			Duration:  time.Since(start),
		}
		if outcome.Settlement.TxHash != nil {
			event.Transaction = *outcome.Settlement.TxHash
		}
		c.fire(c.onSuccess, event)
	}

	return outcome, r.assert(outcome)
}

func (r *Request) send(ctx context.Context, paymentHeader string) (*http.Response, error) {
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, err
	}
	for key, values := range r.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if paymentHeader != "" {
		req.Header.Set(x402.HeaderPayment, paymentHeader)
	}
	return r.client.httpClient.Do(req)
}

func (r *Request) assert(outcome *Outcome) error {
	var errs []error
	for _, expect := range r.expectations {
		if err := expect.check(outcome); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) fire(cb x402.PaymentCallback, event x402.PaymentEvent) {
	if cb != nil {
		cb(event)
	}
}

// finishOutcome reads the final response into the outcome and decodes the
// settlement receipt header if one is present.
func finishOutcome(outcome *Outcome, resp *http.Response) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		outcome.State = StateFailed
		return fmt.Errorf("failed to read response body: %w", err)
	}

	outcome.StatusCode = resp.StatusCode
	outcome.Headers = resp.Header
	outcome.Body = body
	outcome.State = StateCompleted

	if header := resp.Header.Get(x402.HeaderPaymentResponse); header != "" {
		if receipt, err := encoding.DecodeReceipt(header); err == nil {
			outcome.Settlement = &receipt
		}
	}
	return nil
}

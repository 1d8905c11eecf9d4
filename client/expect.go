package client

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	x402 "github.com/x402lab/x402-solana"
	"github.com/x402lab/x402-solana/ledger"
)

// AssertionError reports one failed expectation against an Outcome.
type AssertionError struct {
	// Check names the expectation that failed.
	Check string

	// Want and Got describe the mismatch.
	Want string
	Got  string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("expectation %s failed: want %s, got %s", e.Check, e.Want, e.Got)
}

type expectation struct {
	name  string
	check func(*Outcome) error
}

func (r *Request) expect(name string, check func(*Outcome) error) *Request {
	r.expectations = append(r.expectations, expectation{name: name, check: check})
	return r
}

// ExpectStatus asserts the final response status code.
func (r *Request) ExpectStatus(status int) *Request {
	return r.expect("status", func(o *Outcome) error {
		if o.StatusCode != status {
			return &AssertionError{
				Check: "status",
				Want:  fmt.Sprintf("%d", status),
				Got:   fmt.Sprintf("%d", o.StatusCode),
			}
		}
		return nil
	})
}

// ExpectHeader asserts an exact final response header value.
func (r *Request) ExpectHeader(key, value string) *Request {
	return r.expect("header "+key, func(o *Outcome) error {
		if got := o.Headers.Get(key); got != value {
			return &AssertionError{Check: "header " + key, Want: value, Got: got}
		}
		return nil
	})
}

// ExpectHeaderMatches asserts a final response header against a regular
// expression. An invalid pattern fails the expectation.
func (r *Request) ExpectHeaderMatches(key, pattern string) *Request {
	return r.expect("header "+key, func(o *Outcome) error {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %q for header %s: %w", pattern, key, err)
		}
		if got := o.Headers.Get(key); !re.MatchString(got) {
			return &AssertionError{Check: "header " + key, Want: "match " + pattern, Got: got}
		}
		return nil
	})
}

// ExpectBody asserts the exact final response body.
func (r *Request) ExpectBody(body string) *Request {
	return r.expect("body", func(o *Outcome) error {
		if got := string(o.Body); got != body {
			return &AssertionError{Check: "body", Want: body, Got: got}
		}
		return nil
	})
}

// ExpectBodyContains asserts the final response body contains a substring.
func (r *Request) ExpectBodyContains(substr string) *Request {
	return r.expect("body contains", func(o *Outcome) error {
		if !strings.Contains(string(o.Body), substr) {
			return &AssertionError{
				Check: "body contains",
				Want:  substr,
				Got:   string(o.Body),
			}
		}
		return nil
	})
}

// ExpectSettledOnChain asserts everything ExpectSettled does and then
// re-checks the settlement against the ledger: the receipt's transaction must
// exist, be finalized, succeed, and contain the transfer the proof paid for.
// Use it for on-chain mode; off-chain receipts carry no transaction hash and
// fail this expectation by design.
func (r *Request) ExpectSettledOnChain(l ledger.Ledger) *Request {
	r.ExpectSettled()
	return r.expect("settled on chain", func(o *Outcome) error {
		if o.Settlement == nil || o.Settlement.TxHash == nil {
			return &AssertionError{Check: "settled on chain", Want: "transaction hash in receipt", Got: "none"}
		}

		ctx, cancel := context.WithTimeout(context.Background(), r.client.timeouts.VerifyTimeout)
		defer cancel()
		tx, err := l.GetTransaction(ctx, *o.Settlement.TxHash)
		if err != nil {
			return fmt.Errorf("ledger lookup for %s: %w", *o.Settlement.TxHash, err)
		}
		if !tx.Confirmed {
			return &AssertionError{Check: "settled on chain", Want: "finalized transaction", Got: "not finalized"}
		}
		if tx.Err != "" {
			return &AssertionError{Check: "settled on chain", Want: "successful transaction", Got: tx.Err}
		}
		if o.Proof == nil {
			return nil
		}

		paid, err := x402.ParseAtomicAmount(o.Proof.Payload.Amount)
		if err != nil || !paid.IsUint64() {
			return &AssertionError{Check: "settled on chain", Want: "parseable paid amount", Got: o.Proof.Payload.Amount}
		}
		for _, transfer := range tx.Transfers {
			if transfer.Mint == o.Proof.Payload.Mint && transfer.Amount == paid.Uint64() {
				return nil
			}
		}
		return &AssertionError{
			Check: "settled on chain",
			Want:  fmt.Sprintf("transfer of %s %s", o.Proof.Payload.Amount, o.Proof.Payload.Mint),
			Got:   "no matching transfer in transaction",
		}
	})
}

// ExpectSettled asserts that a payment was made and the server acknowledged
// it with a successful settlement receipt.
func (r *Request) ExpectSettled() *Request {
	return r.expect("settled", func(o *Outcome) error {
		if !o.Paid {
			return &AssertionError{Check: "settled", Want: "payment sent", Got: "no payment"}
		}
		if o.Settlement == nil {
			return &AssertionError{Check: "settled", Want: "settlement receipt", Got: "no receipt header"}
		}
		if !o.Settlement.Success {
			detail := "success=false"
			if o.Settlement.Error != nil {
				detail += ": " + *o.Settlement.Error
			}
			return &AssertionError{Check: "settled", Want: "success=true", Got: detail}
		}
		return nil
	})
}

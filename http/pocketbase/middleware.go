// Package pocketbase provides PocketBase-compatible middleware for x402
// payment gating. This package is a thin adapter that translates
// core.RequestEvent to stdlib http patterns and delegates all verification
// logic to the http package.
package pocketbase

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	x402 "github.com/x402lab/x402-solana"
	httpx402 "github.com/x402lab/x402-solana/http"
)

// PaymentKey is the request-store key holding the *httpx402.VerifiedPayment.
const PaymentKey = "x402_payment"

// NewMiddleware creates an x402 payment middleware for PocketBase.
//
// Example usage:
//
//	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
//		se.Router.GET("/api/premium/data", handler).BindFunc(pbx402.NewMiddleware(config))
//		return se.Next()
//	})
//
// After successful verification, handlers can read the payment via:
//
//	payment := e.Get(pbx402.PaymentKey).(*httpx402.VerifiedPayment)
func NewMiddleware(config *httpx402.Config) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if e.Request.Method == http.MethodOptions {
			return e.Next()
		}

		result := httpx402.Gate(e.Request.Context(), config, e.Request)
		if !result.Allowed {
			if result.Challenge != nil {
				return e.JSON(result.Status, result.Challenge)
			}
			return e.JSON(result.Status, result.ErrorBody)
		}

		if result.ReceiptHeader != "" {
			e.Response.Header().Set(x402.HeaderPaymentResponse, result.ReceiptHeader)
		}
		e.Set(PaymentKey, result.Payment)
		return e.Next()
	}
}

// Package chi provides Chi-compatible middleware for x402 payment gating.
// Chi consumes stdlib middleware directly; this adapter adds the CORS
// preflight bypass Chi routers conventionally expect.
package chi

import (
	"context"
	"net/http"

	x402 "github.com/x402lab/x402-solana"
	httpx402 "github.com/x402lab/x402-solana/http"
)

// NewMiddleware creates an x402 payment middleware for Chi routers.
//
// Example usage:
//
//	r := chi.NewRouter()
//	r.Route("/premium", func(r chi.Router) {
//		r.Use(chix402.NewMiddleware(config))
//		r.Get("/data", handler)
//	})
func NewMiddleware(config *httpx402.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// CORS preflight never carries payment.
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			result := httpx402.Gate(r.Context(), config, r)
			if !result.Allowed {
				httpx402.WriteGateResult(w, result)
				return
			}

			if result.ReceiptHeader != "" {
				w.Header().Set(x402.HeaderPaymentResponse, result.ReceiptHeader)
			}
			ctx := context.WithValue(r.Context(), httpx402.PaymentContextKey, result.Payment)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

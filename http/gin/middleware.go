// Package gin provides Gin-compatible middleware for x402 payment gating.
// This package is a thin adapter that translates gin.Context to stdlib http
// patterns and delegates all verification logic to the http package.
package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	x402 "github.com/x402lab/x402-solana"
	httpx402 "github.com/x402lab/x402-solana/http"
)

// PaymentKey is the gin context key holding the *httpx402.VerifiedPayment.
const PaymentKey = "x402_payment"

// NewMiddleware creates an x402 payment middleware for Gin.
//
// Example usage:
//
//	r := gin.Default()
//	r.Use(ginx402.NewMiddleware(config))
//	r.GET("/protected", func(c *gin.Context) {
//		payment := c.MustGet(ginx402.PaymentKey).(*httpx402.VerifiedPayment)
//		c.JSON(200, gin.H{"payer": payment.Proof.Payload.From})
//	})
func NewMiddleware(config *httpx402.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		result := httpx402.Gate(c.Request.Context(), config, c.Request)
		if !result.Allowed {
			if result.Challenge != nil {
				c.AbortWithStatusJSON(result.Status, result.Challenge)
			} else {
				c.AbortWithStatusJSON(result.Status, result.ErrorBody)
			}
			return
		}

		if result.ReceiptHeader != "" {
			c.Writer.Header().Set(x402.HeaderPaymentResponse, result.ReceiptHeader)
		}
		c.Set(PaymentKey, result.Payment)
		c.Next()
	}
}

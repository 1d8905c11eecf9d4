// Package helpers provides shared helper functions for the x402 HTTP
// middleware implementations, keeping the stdlib, Chi, Gin, and PocketBase
// adapters behaviorally identical.
package helpers

import (
	"encoding/json"
	"net/http"

	x402 "github.com/x402lab/x402-solana"
)

// ResourceURL reconstructs the absolute URL of the incoming request, used to
// stamp the resource field on challenge requirements.
func ResourceURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.RequestURI
}

// WithResource copies the requirements with the resource field set to the
// request URL, filling in a default description where none is configured.
func WithResource(requirements []x402.PaymentRequirement, r *http.Request) []x402.PaymentRequirement {
	url := ResourceURL(r)
	out := make([]x402.PaymentRequirement, len(requirements))
	for i, req := range requirements {
		out[i] = req
		out[i].Resource = url
		if out[i].Description == "" {
			out[i].Description = "Payment required for " + r.URL.Path
		}
	}
	return out
}

// WriteJSON writes a JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Encoding errors past this point cannot change the status line.
	_ = json.NewEncoder(w).Encode(body)
}

// MalformedHeaderBody is the 400 body returned for an undecodable
// X-PAYMENT header.
func MalformedHeaderBody(detail string) map[string]any {
	return map[string]any{
		"x402Version": x402.ProtocolVersion,
		"error":       detail,
	}
}

package http

import "net/http"

// Protect wraps a single handler with the payment gate. Equivalent to
// NewMiddleware(config)(handler) for one route.
func Protect(config *Config, handler http.Handler) http.Handler {
	return NewMiddleware(config)(handler)
}

// ProtectFunc wraps a handler function with the payment gate.
func ProtectFunc(config *Config, fn http.HandlerFunc) http.Handler {
	return Protect(config, fn)
}

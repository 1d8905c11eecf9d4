package http

import (
	"net/http"

	x402 "github.com/x402lab/x402-solana"
)

// ResponseSpec describes what a mock or real endpoint returns. Either a
// static body or a dynamic handler; the dynamic form wins when both are set.
type ResponseSpec struct {
	// Status is the response status for the static form (0 means 200).
	Status int

	// ContentType is the Content-Type for the static form.
	ContentType string

	// Body is the static response body.
	Body []byte

	// HandlerFunc, when set, produces the response dynamically.
	HandlerFunc http.HandlerFunc
}

// Static builds a fixed-body response spec.
func Static(status int, contentType string, body []byte) ResponseSpec {
	return ResponseSpec{Status: status, ContentType: contentType, Body: body}
}

// Dynamic builds a handler-backed response spec.
func Dynamic(fn http.HandlerFunc) ResponseSpec {
	return ResponseSpec{HandlerFunc: fn}
}

// Handler renders the spec as an http.Handler.
func (s ResponseSpec) Handler() http.Handler {
	if s.HandlerFunc != nil {
		return s.HandlerFunc
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.ContentType != "" {
			w.Header().Set("Content-Type", s.ContentType)
		}
		status := s.Status
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if len(s.Body) > 0 {
			_, _ = w.Write(s.Body)
		}
	})
}

// Mux routes free and paid endpoints on one server. Free routes serve their
// response directly and never consult the payment gate, so a stray X-PAYMENT
// header on them is ignored.
type Mux struct {
	mux    *http.ServeMux
	config *Config
}

// NewMux builds a Mux whose paid routes use the given gate configuration.
func NewMux(config *Config) *Mux {
	return &Mux{mux: http.NewServeMux(), config: config}
}

// HandleFree registers an endpoint that requires no payment.
func (m *Mux) HandleFree(pattern string, spec ResponseSpec) {
	m.mux.Handle(pattern, spec.Handler())
}

// HandlePaid registers a payment-gated endpoint. With no requirements given,
// the gate uses the config-level accepts list; otherwise the route gets its
// own accepts list (per-route pricing).
func (m *Mux) HandlePaid(pattern string, spec ResponseSpec, requirements ...x402.PaymentRequirement) {
	config := m.config
	if len(requirements) > 0 {
		derived := *m.config
		derived.Requirements = requirements
		derived.RequirementsFor = nil
		config = &derived
	}
	m.mux.Handle(pattern, NewMiddleware(config)(spec.Handler()))
}

// ServeHTTP implements http.Handler.
func (m *Mux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mux.ServeHTTP(w, r)
}

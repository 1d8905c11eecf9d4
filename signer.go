package x402

// Signer is the capability a client needs to authorize payments: a stable
// payer address and the ability to sign arbitrary bytes with the matching
// private key. Key custody is entirely the implementation's concern.
type Signer interface {
	// Network returns the ledger network identifier the signer pays on.
	Network() string

	// Scheme returns the payment scheme the signer supports (currently "exact").
	Scheme() string

	// PublicAddress returns the payer's address in the network's native encoding.
	PublicAddress() string

	// Sign signs the message with the payer's private key and returns the raw
	// signature bytes.
	Sign(message []byte) ([]byte, error)
}

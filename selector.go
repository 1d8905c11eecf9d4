package x402

import "fmt"

// FirstFeasible returns the first requirement in the ordered accepts list
// whose scheme and network the signer supports. Challenges may offer several
// payment options; the client takes the earliest one it can satisfy.
func FirstFeasible(accepts []PaymentRequirement, signer Signer) (*PaymentRequirement, error) {
	if len(accepts) == 0 {
		return nil, fmt.Errorf("%w: empty accepts list", ErrNoFeasibleRequirement)
	}
	if signer == nil {
		return nil, fmt.Errorf("%w: no signer configured", ErrNoFeasibleRequirement)
	}

	for i := range accepts {
		if accepts[i].Scheme == signer.Scheme() && accepts[i].Network == signer.Network() {
			return &accepts[i], nil
		}
	}

	return nil, fmt.Errorf("%w: signer supports %s/%s", ErrNoFeasibleRequirement,
		signer.Scheme(), signer.Network())
}

// MatchRequirement finds the configured requirement a presented proof claims
// to satisfy, by scheme and network. The server re-validates both fields
// during verification; this only routes the proof to the right requirement.
func MatchRequirement(proof PaymentProof, requirements []PaymentRequirement) (*PaymentRequirement, error) {
	for i := range requirements {
		if requirements[i].Scheme == proof.Scheme && requirements[i].Network == proof.Network {
			return &requirements[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no requirement for %s/%s", ErrUnsupportedScheme,
		proof.Scheme, proof.Network)
}

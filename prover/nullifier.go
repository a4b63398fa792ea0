package prover

import (
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
)

// Native twins of the in-circuit hash call sites. Witness preparation and
// tree construction go through these; the golden-vector tests pin them to
// the constrained implementations.

// ComputeLeaf hashes an identity commitment into its tree leaf.
func ComputeLeaf(identityCommitment *big.Int) (*big.Int, error) {
	return poseidon.Hash([]*big.Int{identityCommitment})
}

// ComputeNullifier derives the public replay token for one identity/action
// pair. Deterministic: the same triple always yields the same token, which
// is what lets the external registry detect reuse.
func ComputeNullifier(identityCommitment, actionId, templateTag *big.Int) (*big.Int, error) {
	return poseidon.Hash([]*big.Int{identityCommitment, actionId, templateTag})
}

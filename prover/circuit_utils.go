package prover

import (
	"fmt"
	"os"

	"district/district-prover/logging"
	"district/district-prover/prover/poseidon"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
)

type Proof struct {
	Proof groth16.Proof
}

type ProvingSystem struct {
	CircuitType      CircuitType
	TreeDepth        uint32
	GlobalTreeDepth  uint32
	ProvingKey       groth16.ProvingKey
	VerifyingKey     groth16.VerifyingKey
	ConstraintSystem constraint.ConstraintSystem
}

// ProveParentHash folds one Merkle level. Both orderings are hashed and the
// direction bit only selects between them, so the circuit shape does not
// depend on the witness.
type ProveParentHash struct {
	Bit     frontend.Variable
	Hash    frontend.Variable
	Sibling frontend.Variable
}

func (gadget ProveParentHash) DefineGadget(api frontend.API) frontend.Variable {
	api.AssertIsBoolean(gadget.Bit)
	d1 := api.Select(gadget.Bit, gadget.Sibling, gadget.Hash)
	d2 := api.Select(gadget.Bit, gadget.Hash, gadget.Sibling)
	return poseidon.HashPair{In1: d1, In2: d2}.DefineGadget(api)
}

// MerkleRootGadget recomputes a root from Hash at position Index.
//
// ToBinary is the index binding: it constrains every bit to be 0 or 1 and
// the weighted bit sum to equal Index, so the direction bits cannot be
// chosen independently of the witnessed position. An index >= 2^Depth has
// no satisfying assignment. Bits are least-significant first; Path[0] is
// the sibling at the leaf level.
type MerkleRootGadget struct {
	Hash  frontend.Variable
	Index frontend.Variable
	Path  []frontend.Variable
	Depth int
}

func (gadget MerkleRootGadget) DefineGadget(api frontend.API) frontend.Variable {
	currentPath := api.ToBinary(gadget.Index, gadget.Depth)
	for i := 0; i < gadget.Depth; i++ {
		gadget.Hash = ProveParentHash{Bit: currentPath[i], Hash: gadget.Hash, Sibling: gadget.Path[i]}.DefineGadget(api)
	}
	return gadget.Hash
}

// NullifierGadget derives the public replay token. The three-element
// absorption keeps it structurally distinct from the single-element leaf
// hash and the pair node hash.
type NullifierGadget struct {
	IdentityCommitment frontend.Variable
	ActionId           frontend.Variable
	TemplateTag        frontend.Variable
}

func (gadget NullifierGadget) DefineGadget(api frontend.API) frontend.Variable {
	return poseidon.HashTriple{
		In1: gadget.IdentityCommitment,
		In2: gadget.ActionId,
		In3: gadget.TemplateTag,
	}.DefineGadget(api)
}

// Trusted setup utility functions
// Taken from: https://github.com/bnb-chain/zkbnb/blob/master/common/prove/proof_keys.go#L19
func LoadProvingKey(filepath string) (pk groth16.ProvingKey, err error) {
	logging.Logger().Info().Msg("start reading proving key")
	pk = groth16.NewProvingKey(ecc.BN254)
	f, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	_, err = pk.ReadFrom(f)
	if err != nil {
		return pk, fmt.Errorf("read file error")
	}
	err = f.Close()
	if err != nil {
		return nil, err
	}
	return pk, nil
}

// Taken from: https://github.com/bnb-chain/zkbnb/blob/master/common/prove/proof_keys.go#L32
func LoadVerifyingKey(filepath string) (verifyingKey groth16.VerifyingKey, err error) {
	logging.Logger().Info().Msg("start reading verifying key")
	verifyingKey = groth16.NewVerifyingKey(ecc.BN254)
	f, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	_, err = verifyingKey.ReadFrom(f)
	if err != nil {
		return verifyingKey, fmt.Errorf("read file error")
	}
	err = f.Close()
	if err != nil {
		return nil, err
	}
	return verifyingKey, nil
}

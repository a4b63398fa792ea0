package prover

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"

	"district/district-prover/logging"
)

type MembershipParameters struct {
	DistrictRoot       big.Int
	ActionId           big.Int
	TemplateTag        big.Int
	IdentityCommitment big.Int
	LeafIndex          uint32
	PathElements       []big.Int
}

// PublicInputs is the fixed-order tuple bound to a proof. GlobalRoot is nil
// for the single-tier circuit.
type PublicInputs struct {
	DistrictRoot big.Int
	GlobalRoot   *big.Int
	Nullifier    big.Int
	ActionId     big.Int
}

type ProofResponse struct {
	Proof        *Proof
	PublicInputs PublicInputs
}

func (p *MembershipParameters) TreeDepth() uint32 {
	return uint32(len(p.PathElements))
}

func (p *MembershipParameters) ValidateShape(treeDepth uint32) error {
	if p.TreeDepth() != treeDepth {
		return fmt.Errorf("wrong merkle path length: expected %d, got %d", treeDepth, p.TreeDepth())
	}
	if treeDepth < 32 && uint64(p.LeafIndex) >= uint64(1)<<treeDepth {
		return fmt.Errorf("leaf index %d out of range for depth %d", p.LeafIndex, treeDepth)
	}
	return nil
}

// ComputePublicInputs derives the nullifier natively. The circuit recomputes
// it from the same witnesses and asserts equality, so a divergence between
// the two implementations fails proving instead of producing a wrong token.
func (p *MembershipParameters) ComputePublicInputs() (*PublicInputs, error) {
	nullifier, err := ComputeNullifier(&p.IdentityCommitment, &p.ActionId, &p.TemplateTag)
	if err != nil {
		return nil, err
	}
	return &PublicInputs{
		DistrictRoot: p.DistrictRoot,
		Nullifier:    *nullifier,
		ActionId:     p.ActionId,
	}, nil
}

func (ps *ProvingSystem) ProveMembership(params *MembershipParameters) (*ProofResponse, error) {
	if err := params.ValidateShape(ps.TreeDepth); err != nil {
		return nil, err
	}

	publicInputs, err := params.ComputePublicInputs()
	if err != nil {
		return nil, err
	}

	pathElements := make([]frontend.Variable, ps.TreeDepth)
	for i := 0; i < int(ps.TreeDepth); i++ {
		pathElements[i] = params.PathElements[i]
	}

	assignment := MembershipCircuit{
		DistrictRoot:       params.DistrictRoot,
		Nullifier:          publicInputs.Nullifier,
		ActionId:           params.ActionId,
		IdentityCommitment: params.IdentityCommitment,
		TemplateTag:        params.TemplateTag,
		LeafIndex:          params.LeafIndex,
		PathElements:       pathElements,
	}

	witness, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, err
	}

	logging.Logger().Info().Uint32("treeDepth", ps.TreeDepth).Msg("Proving membership")
	proof, err := groth16.Prove(ps.ConstraintSystem, ps.ProvingKey, witness)
	if err != nil {
		return nil, err
	}

	return &ProofResponse{Proof: &Proof{proof}, PublicInputs: *publicInputs}, nil
}

func (ps *ProvingSystem) VerifyMembership(publicInputs *PublicInputs, proof *Proof) error {
	publicAssignment := MembershipCircuit{
		DistrictRoot: publicInputs.DistrictRoot,
		Nullifier:    publicInputs.Nullifier,
		ActionId:     publicInputs.ActionId,
	}
	witness, err := frontend.NewWitness(&publicAssignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return err
	}
	return groth16.Verify(proof.Proof, ps.VerifyingKey, witness)
}

package prover

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"

	"district/district-prover/logging"
)

type TwoTierParameters struct {
	MembershipParameters

	GlobalRoot           big.Int
	DistrictIndex        uint32
	DistrictPathElements []big.Int
}

func (p *TwoTierParameters) GlobalTreeDepth() uint32 {
	return uint32(len(p.DistrictPathElements))
}

func (p *TwoTierParameters) ValidateShape(treeDepth uint32, globalTreeDepth uint32) error {
	if err := p.MembershipParameters.ValidateShape(treeDepth); err != nil {
		return err
	}
	if p.GlobalTreeDepth() != globalTreeDepth {
		return fmt.Errorf("wrong global merkle path length: expected %d, got %d", globalTreeDepth, p.GlobalTreeDepth())
	}
	if globalTreeDepth < 32 && uint64(p.DistrictIndex) >= uint64(1)<<globalTreeDepth {
		return fmt.Errorf("district index %d out of range for depth %d", p.DistrictIndex, globalTreeDepth)
	}
	return nil
}

func (p *TwoTierParameters) ComputePublicInputs() (*PublicInputs, error) {
	publicInputs, err := p.MembershipParameters.ComputePublicInputs()
	if err != nil {
		return nil, err
	}
	globalRoot := new(big.Int).Set(&p.GlobalRoot)
	publicInputs.GlobalRoot = globalRoot
	return publicInputs, nil
}

func (ps *ProvingSystem) ProveTwoTier(params *TwoTierParameters) (*ProofResponse, error) {
	if err := params.ValidateShape(ps.TreeDepth, ps.GlobalTreeDepth); err != nil {
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
	districtPathElements := make([]frontend.Variable, ps.GlobalTreeDepth)
	for i := 0; i < int(ps.GlobalTreeDepth); i++ {
		districtPathElements[i] = params.DistrictPathElements[i]
	}

	assignment := TwoTierCircuit{
		DistrictRoot:         params.DistrictRoot,
		GlobalRoot:           params.GlobalRoot,
		Nullifier:            publicInputs.Nullifier,
		ActionId:             params.ActionId,
		IdentityCommitment:   params.IdentityCommitment,
		TemplateTag:          params.TemplateTag,
		LeafIndex:            params.LeafIndex,
		PathElements:         pathElements,
		DistrictIndex:        params.DistrictIndex,
		DistrictPathElements: districtPathElements,
	}

	witness, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, err
	}

	logging.Logger().Info().
		Uint32("treeDepth", ps.TreeDepth).
		Uint32("globalTreeDepth", ps.GlobalTreeDepth).
		Msg("Proving two-tier membership")
	proof, err := groth16.Prove(ps.ConstraintSystem, ps.ProvingKey, witness)
	if err != nil {
		return nil, err
	}

	return &ProofResponse{Proof: &Proof{proof}, PublicInputs: *publicInputs}, nil
}

func (ps *ProvingSystem) VerifyTwoTier(publicInputs *PublicInputs, proof *Proof) error {
	if publicInputs.GlobalRoot == nil {
		return fmt.Errorf("missing global root")
	}
	publicAssignment := TwoTierCircuit{
		DistrictRoot: publicInputs.DistrictRoot,
		GlobalRoot:   *publicInputs.GlobalRoot,
		Nullifier:    publicInputs.Nullifier,
		ActionId:     publicInputs.ActionId,
	}
	witness, err := frontend.NewWitness(&publicAssignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return err
	}
	return groth16.Verify(proof.Proof, ps.VerifyingKey, witness)
}

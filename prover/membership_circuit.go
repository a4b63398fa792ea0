package prover

import (
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"district/district-prover/prover/poseidon"
)

// MembershipCircuit proves that a private identity commitment occupies a
// leaf of the district tree and binds the nullifier to it. The public tuple
// is (DistrictRoot, Nullifier, ActionId), declared in that order; everything
// else stays inside the proof envelope.
type MembershipCircuit struct {
	// public inputs
	DistrictRoot frontend.Variable `gnark:",public"`
	Nullifier    frontend.Variable `gnark:",public"`
	ActionId     frontend.Variable `gnark:",public"`

	// private inputs
	IdentityCommitment frontend.Variable   `gnark:"input"`
	TemplateTag        frontend.Variable   `gnark:"input"`
	LeafIndex          frontend.Variable   `gnark:"input"`
	PathElements       []frontend.Variable `gnark:"input"`

	Depth int
}

func (circuit *MembershipCircuit) Define(api frontend.API) error {
	leaf := poseidon.HashSingle{In: circuit.IdentityCommitment}.DefineGadget(api)

	root := MerkleRootGadget{
		Hash:  leaf,
		Index: circuit.LeafIndex,
		Path:  circuit.PathElements,
		Depth: circuit.Depth,
	}.DefineGadget(api)
	api.AssertIsEqual(root, circuit.DistrictRoot)

	nullifier := NullifierGadget{
		IdentityCommitment: circuit.IdentityCommitment,
		ActionId:           circuit.ActionId,
		TemplateTag:        circuit.TemplateTag,
	}.DefineGadget(api)
	api.AssertIsEqual(nullifier, circuit.Nullifier)

	return nil
}

func R1CSMembership(treeDepth uint32) (constraint.ConstraintSystem, error) {
	circuit := MembershipCircuit{
		Depth:        int(treeDepth),
		PathElements: make([]frontend.Variable, treeDepth),
	}
	return frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
}

func SetupMembership(treeDepth uint32) (*ProvingSystem, error) {
	ccs, err := R1CSMembership(treeDepth)
	if err != nil {
		return nil, err
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, err
	}
	return &ProvingSystem{Membership, treeDepth, 0, pk, vk, ccs}, nil
}

func ImportMembershipSetup(treeDepth uint32, pkPath string, vkPath string) (*ProvingSystem, error) {
	ccs, err := R1CSMembership(treeDepth)
	if err != nil {
		return nil, err
	}

	pk, err := LoadProvingKey(pkPath)
	if err != nil {
		return nil, err
	}

	vk, err := LoadVerifyingKey(vkPath)
	if err != nil {
		return nil, err
	}

	return &ProvingSystem{Membership, treeDepth, 0, pk, vk, ccs}, nil
}

package prover

import (
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"district/district-prover/prover/poseidon"
)

// TwoTierCircuit additionally proves that the district root is itself a leaf
// of the global district registry tree. The inner level is identity-in-
// district, the outer level is district-in-registry; both reuse the same
// Merkle gadget at their own fixed depth.
type TwoTierCircuit struct {
	// public inputs
	DistrictRoot frontend.Variable `gnark:",public"`
	GlobalRoot   frontend.Variable `gnark:",public"`
	Nullifier    frontend.Variable `gnark:",public"`
	ActionId     frontend.Variable `gnark:",public"`

	// private inputs
	IdentityCommitment   frontend.Variable   `gnark:"input"`
	TemplateTag          frontend.Variable   `gnark:"input"`
	LeafIndex            frontend.Variable   `gnark:"input"`
	PathElements         []frontend.Variable `gnark:"input"`
	DistrictIndex        frontend.Variable   `gnark:"input"`
	DistrictPathElements []frontend.Variable `gnark:"input"`

	Depth       int
	GlobalDepth int
}

func (circuit *TwoTierCircuit) Define(api frontend.API) error {
	leaf := poseidon.HashSingle{In: circuit.IdentityCommitment}.DefineGadget(api)

	districtRoot := MerkleRootGadget{
		Hash:  leaf,
		Index: circuit.LeafIndex,
		Path:  circuit.PathElements,
		Depth: circuit.Depth,
	}.DefineGadget(api)
	api.AssertIsEqual(districtRoot, circuit.DistrictRoot)

	globalRoot := MerkleRootGadget{
		Hash:  circuit.DistrictRoot,
		Index: circuit.DistrictIndex,
		Path:  circuit.DistrictPathElements,
		Depth: circuit.GlobalDepth,
	}.DefineGadget(api)
	api.AssertIsEqual(globalRoot, circuit.GlobalRoot)

	nullifier := NullifierGadget{
		IdentityCommitment: circuit.IdentityCommitment,
		ActionId:           circuit.ActionId,
		TemplateTag:        circuit.TemplateTag,
	}.DefineGadget(api)
	api.AssertIsEqual(nullifier, circuit.Nullifier)

	return nil
}

func R1CSTwoTier(treeDepth uint32, globalTreeDepth uint32) (constraint.ConstraintSystem, error) {
	circuit := TwoTierCircuit{
		Depth:                int(treeDepth),
		GlobalDepth:          int(globalTreeDepth),
		PathElements:         make([]frontend.Variable, treeDepth),
		DistrictPathElements: make([]frontend.Variable, globalTreeDepth),
	}
	return frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
}

func SetupTwoTier(treeDepth uint32, globalTreeDepth uint32) (*ProvingSystem, error) {
	ccs, err := R1CSTwoTier(treeDepth, globalTreeDepth)
	if err != nil {
		return nil, err
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, err
	}
	return &ProvingSystem{TwoTier, treeDepth, globalTreeDepth, pk, vk, ccs}, nil
}

func ImportTwoTierSetup(treeDepth uint32, globalTreeDepth uint32, pkPath string, vkPath string) (*ProvingSystem, error) {
	ccs, err := R1CSTwoTier(treeDepth, globalTreeDepth)
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

	return &ProvingSystem{TwoTier, treeDepth, globalTreeDepth, pk, vk, ccs}, nil
}

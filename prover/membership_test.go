package prover

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test"
	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/stretchr/testify/require"
)

// nativeTree is a minimal level-by-level fold used to derive roots and
// sibling paths for circuit assignments without going through the tree
// package.
type nativeTree struct {
	depth  int
	levels [][]*big.Int
}

func newNativeTree(t *testing.T, leaves []*big.Int, depth int) *nativeTree {
	capacity := 1 << depth
	require.LessOrEqual(t, len(leaves), capacity)

	levels := make([][]*big.Int, depth+1)
	levels[0] = make([]*big.Int, capacity)
	for i := 0; i < capacity; i++ {
		if i < len(leaves) {
			levels[0][i] = leaves[i]
		} else {
			levels[0][i] = big.NewInt(0)
		}
	}
	for level := 1; level <= depth; level++ {
		levels[level] = make([]*big.Int, capacity>>uint(level))
		for i := range levels[level] {
			hash, err := poseidon.Hash([]*big.Int{levels[level-1][2*i], levels[level-1][2*i+1]})
			require.NoError(t, err)
			levels[level][i] = hash
		}
	}
	return &nativeTree{depth: depth, levels: levels}
}

func (tr *nativeTree) root() *big.Int {
	return tr.levels[tr.depth][0]
}

func (tr *nativeTree) proofFor(index int) []*big.Int {
	proof := make([]*big.Int, tr.depth)
	for level := 0; level < tr.depth; level++ {
		proof[level] = tr.levels[level][(index>>uint(level))^1]
	}
	return proof
}

// identityTree fills a tree of the given depth with the leaves of
// identities 1..2^depth.
func identityTree(t *testing.T, depth int) *nativeTree {
	leaves := make([]*big.Int, 1<<depth)
	for i := range leaves {
		leaf, err := ComputeLeaf(big.NewInt(int64(i + 1)))
		require.NoError(t, err)
		leaves[i] = leaf
	}
	return newNativeTree(t, leaves, depth)
}

func toVariables(values []*big.Int) []frontend.Variable {
	variables := make([]frontend.Variable, len(values))
	for i, v := range values {
		variables[i] = v
	}
	return variables
}

func membershipAssignment(t *testing.T, tree *nativeTree, identity *big.Int, index int, actionId *big.Int, templateTag *big.Int) MembershipCircuit {
	nullifier, err := ComputeNullifier(identity, actionId, templateTag)
	require.NoError(t, err)
	return MembershipCircuit{
		DistrictRoot:       tree.root(),
		Nullifier:          nullifier,
		ActionId:           actionId,
		IdentityCommitment: identity,
		TemplateTag:        templateTag,
		LeafIndex:          index,
		PathElements:       toVariables(tree.proofFor(index)),
	}
}

func emptyMembershipCircuit(depth int) MembershipCircuit {
	return MembershipCircuit{
		Depth:        depth,
		PathElements: make([]frontend.Variable, depth),
	}
}

// Four identities in a depth-2 tree, proving the one at index 2. The sibling
// path is [leaf 3, parent of leaves 0 and 1].
func TestMembershipCircuit(t *testing.T) {
	assert := test.NewAssert(t)
	tree := identityTree(t, 2)
	circuit := emptyMembershipCircuit(2)
	assignment := membershipAssignment(t, tree, big.NewInt(3), 2, big.NewInt(100), big.NewInt(7))

	assert.ProverSucceeded(&circuit, &assignment, test.WithBackends(backend.GROTH16), test.WithCurves(ecc.BN254))
}

// A valid path presented under any other index must be unsatisfiable. The
// index decomposition forces the direction bits, so relabeling a proof is
// not possible.
func TestMembershipCircuitRejectsRelabeledIndex(t *testing.T) {
	const depth = 3
	tree := identityTree(t, depth)
	circuit := emptyMembershipCircuit(depth)

	for i := 0; i < 1<<depth; i++ {
		identity := big.NewInt(int64(i + 1))
		nullifier, err := ComputeNullifier(identity, big.NewInt(100), big.NewInt(7))
		require.NoError(t, err)

		for j := 0; j < 1<<depth; j++ {
			assignment := MembershipCircuit{
				DistrictRoot:       tree.root(),
				Nullifier:          nullifier,
				ActionId:           big.NewInt(100),
				IdentityCommitment: identity,
				TemplateTag:        big.NewInt(7),
				LeafIndex:          j,
				PathElements:       toVariables(tree.proofFor(i)),
			}
			err := test.IsSolved(&circuit, &assignment, ecc.BN254.ScalarField())
			if j == i {
				require.NoError(t, err, "leaf %d under its own index", i)
			} else {
				require.Error(t, err, "path for leaf %d accepted under index %d", i, j)
			}
		}
	}
}

// An index of at least 2^depth has no satisfying assignment regardless of
// the rest of the witness.
func TestMembershipCircuitRejectsIndexOutOfRange(t *testing.T) {
	tree := identityTree(t, 2)
	circuit := emptyMembershipCircuit(2)

	assignment := membershipAssignment(t, tree, big.NewInt(3), 2, big.NewInt(100), big.NewInt(7))
	assignment.LeafIndex = 6

	err := test.IsSolved(&circuit, &assignment, ecc.BN254.ScalarField())
	require.Error(t, err)
}

func TestMembershipCircuitRejectsWrongNullifier(t *testing.T) {
	tree := identityTree(t, 2)
	circuit := emptyMembershipCircuit(2)

	assignment := membershipAssignment(t, tree, big.NewInt(3), 2, big.NewInt(100), big.NewInt(7))
	wrong, err := ComputeNullifier(big.NewInt(3), big.NewInt(100), big.NewInt(8))
	require.NoError(t, err)
	assignment.Nullifier = wrong

	err = test.IsSolved(&circuit, &assignment, ecc.BN254.ScalarField())
	require.Error(t, err)
}

func TestMembershipCircuitRejectsForeignIdentity(t *testing.T) {
	tree := identityTree(t, 2)
	circuit := emptyMembershipCircuit(2)

	// Identity 9 is not in the tree; reusing leaf 2's path cannot help it.
	identity := big.NewInt(9)
	nullifier, err := ComputeNullifier(identity, big.NewInt(100), big.NewInt(7))
	require.NoError(t, err)
	assignment := MembershipCircuit{
		DistrictRoot:       tree.root(),
		Nullifier:          nullifier,
		ActionId:           big.NewInt(100),
		IdentityCommitment: identity,
		TemplateTag:        big.NewInt(7),
		LeafIndex:          2,
		PathElements:       toVariables(tree.proofFor(2)),
	}

	err = test.IsSolved(&circuit, &assignment, ecc.BN254.ScalarField())
	require.Error(t, err)
}

func membershipParameters(t *testing.T, tree *nativeTree, identity *big.Int, index uint32, actionId *big.Int, templateTag *big.Int) *MembershipParameters {
	proof := tree.proofFor(int(index))
	pathElements := make([]big.Int, len(proof))
	for i, p := range proof {
		pathElements[i] = *p
	}
	return &MembershipParameters{
		DistrictRoot:       *tree.root(),
		ActionId:           *actionId,
		TemplateTag:        *templateTag,
		IdentityCommitment: *identity,
		LeafIndex:          index,
		PathElements:       pathElements,
	}
}

func TestProveAndVerifyMembership(t *testing.T) {
	ps, err := SetupMembership(2)
	require.NoError(t, err)

	tree := identityTree(t, 2)
	params := membershipParameters(t, tree, big.NewInt(3), 2, big.NewInt(100), big.NewInt(7))

	response, err := ps.ProveMembership(params)
	require.NoError(t, err)

	expectedNullifier, err := ComputeNullifier(&params.IdentityCommitment, &params.ActionId, &params.TemplateTag)
	require.NoError(t, err)
	require.Equal(t, 0, expectedNullifier.Cmp(&response.PublicInputs.Nullifier))
	require.Nil(t, response.PublicInputs.GlobalRoot)

	require.NoError(t, ps.VerifyMembership(&response.PublicInputs, response.Proof))

	// A tampered public input must not verify.
	tampered := response.PublicInputs
	tampered.ActionId = *big.NewInt(101)
	require.Error(t, ps.VerifyMembership(&tampered, response.Proof))
}

func TestProveMembershipValidatesShape(t *testing.T) {
	ps, err := SetupMembership(2)
	require.NoError(t, err)

	tree := identityTree(t, 2)
	params := membershipParameters(t, tree, big.NewInt(3), 2, big.NewInt(100), big.NewInt(7))

	outOfRange := *params
	outOfRange.LeafIndex = 4
	_, err = ps.ProveMembership(&outOfRange)
	require.Error(t, err)

	shortPath := *params
	shortPath.PathElements = params.PathElements[:1]
	_, err = ps.ProveMembership(&shortPath)
	require.Error(t, err)
}

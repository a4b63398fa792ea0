package merkle_tree

import (
	"fmt"
	"math/big"

	"district/district-prover/prover"
)

// Witness builders bridge the externally built trees and the prover: they
// pick the sibling path for an identity and package it with the action
// inputs. The identity must actually occupy the claimed leaf; a mismatch is
// reported here instead of surfacing later as an unsatisfiable circuit.

func BuildMembershipParameters(tree *FlatTree, identityCommitment, actionId, templateTag *big.Int, leafIndex uint32) (*prover.MembershipParameters, error) {
	leaf, err := prover.ComputeLeaf(identityCommitment)
	if err != nil {
		return nil, err
	}
	treeLeaf := tree.Leaf(int(leafIndex))
	if leaf.Cmp(&treeLeaf) != 0 {
		return nil, fmt.Errorf("identity commitment does not occupy leaf %d", leafIndex)
	}

	pathElements, err := tree.ProofForIndex(int(leafIndex))
	if err != nil {
		return nil, err
	}

	return &prover.MembershipParameters{
		DistrictRoot:       tree.Root(),
		ActionId:           *actionId,
		TemplateTag:        *templateTag,
		IdentityCommitment: *identityCommitment,
		LeafIndex:          leafIndex,
		PathElements:       pathElements,
	}, nil
}

func BuildTwoTierParameters(districtTree *FlatTree, globalTree *FlatTree, districtIndex uint32, identityCommitment, actionId, templateTag *big.Int, leafIndex uint32) (*prover.TwoTierParameters, error) {
	membership, err := BuildMembershipParameters(districtTree, identityCommitment, actionId, templateTag, leafIndex)
	if err != nil {
		return nil, err
	}

	districtRoot := districtTree.Root()
	globalLeaf := globalTree.Leaf(int(districtIndex))
	if districtRoot.Cmp(&globalLeaf) != 0 {
		return nil, fmt.Errorf("district root is not leaf %d of the global tree", districtIndex)
	}

	districtPathElements, err := globalTree.ProofForIndex(int(districtIndex))
	if err != nil {
		return nil, err
	}

	return &prover.TwoTierParameters{
		MembershipParameters: *membership,
		GlobalRoot:           globalTree.Root(),
		DistrictIndex:        districtIndex,
		DistrictPathElements: districtPathElements,
	}, nil
}

// BuildTestParameters places a single known identity into an otherwise empty
// tree of the given depth, using the sparse tree so that federal-depth test
// data stays cheap to generate.
func BuildTestParameters(depth int, leafIndex uint32) (*prover.MembershipParameters, error) {
	identityCommitment := big.NewInt(1)
	actionId := big.NewInt(2)
	templateTag := big.NewInt(3)

	leaf, err := prover.ComputeLeaf(identityCommitment)
	if err != nil {
		return nil, err
	}

	tree := NewTree(depth)
	pathElements := tree.Update(int(leafIndex), *leaf)

	return &prover.MembershipParameters{
		DistrictRoot:       tree.RootValue(),
		ActionId:           *actionId,
		TemplateTag:        *templateTag,
		IdentityCommitment: *identityCommitment,
		LeafIndex:          leafIndex,
		PathElements:       pathElements,
	}, nil
}

package merkle_tree

import (
	"fmt"
	"math/big"
	"runtime"

	"github.com/iden3/go-iden3-crypto/poseidon"
	"golang.org/x/sync/errgroup"
)

// FlatTree is the dense level-by-level representation used when a whole
// district is (re)built from its leaf set. Building is the dominant cost of
// onboarding a district, so level hashing is parallelized across pairs.
type FlatTree struct {
	depth  int
	levels [][]big.Int
}

// HashPairs hashes adjacent pairs of nodes into their parents, in parallel.
func HashPairs(nodes []big.Int) ([]big.Int, error) {
	if len(nodes)%2 != 0 {
		return nil, fmt.Errorf("odd number of nodes: %d", len(nodes))
	}
	parents := make([]big.Int, len(nodes)/2)
	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for i := 0; i < len(parents); i++ {
		g.Go(func() error {
			hash, err := poseidon.Hash([]*big.Int{&nodes[2*i], &nodes[2*i+1]})
			if err != nil {
				return err
			}
			parents[i] = *hash
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parents, nil
}

// BuildFromLeaves constructs a perfect tree of the given depth. Missing
// leaves are zero, matching the empty-subtree values of PoseidonTree.
func BuildFromLeaves(leaves []big.Int, depth int) (*FlatTree, error) {
	if depth < 1 {
		return nil, fmt.Errorf("invalid tree depth: %d", depth)
	}
	capacity := 1 << depth
	if len(leaves) > capacity {
		return nil, fmt.Errorf("%d leaves exceed capacity %d of a depth-%d tree", len(leaves), capacity, depth)
	}

	levels := make([][]big.Int, depth+1)
	levels[0] = make([]big.Int, capacity)
	copy(levels[0], leaves)

	for level := 1; level <= depth; level++ {
		parents, err := HashPairs(levels[level-1])
		if err != nil {
			return nil, err
		}
		levels[level] = parents
	}

	return &FlatTree{depth: depth, levels: levels}, nil
}

func (t *FlatTree) Depth() int {
	return t.depth
}

func (t *FlatTree) Root() big.Int {
	return t.levels[t.depth][0]
}

func (t *FlatTree) Leaf(index int) big.Int {
	return t.levels[0][index]
}

// ProofForIndex returns the sibling path for a leaf, leaf level first.
func (t *FlatTree) ProofForIndex(index int) ([]big.Int, error) {
	if index < 0 || index >= 1<<t.depth {
		return nil, fmt.Errorf("leaf index %d out of range for depth %d", index, t.depth)
	}
	proof := make([]big.Int, t.depth)
	for level := 0; level < t.depth; level++ {
		sibling := (index >> uint(level)) ^ 1
		proof[level] = t.levels[level][sibling]
	}
	return proof, nil
}

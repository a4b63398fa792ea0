package poseidon

import (
	"github.com/consensys/gnark/frontend"
	circomlib "github.com/vocdoni/gnark-crypto-primitives/poseidon"
)

// Arity-specific Poseidon entry points. Each gadget fixes its absorption
// width at the type level, so a single-element hash can never collide with
// a pair hash: the underlying permutation instance differs (t = arity + 1).
// The round constants and MDS matrices are the circomlib tables embedded in
// the primitive; the native twin is iden3/go-iden3-crypto, which shares them.

type HashSingle struct {
	In frontend.Variable
}

func (g HashSingle) DefineGadget(api frontend.API) frontend.Variable {
	h := circomlib.NewPoseidon(api)
	h.Write(g.In)
	return h.Sum()
}

type HashPair struct {
	In1, In2 frontend.Variable
}

func (g HashPair) DefineGadget(api frontend.API) frontend.Variable {
	h := circomlib.NewPoseidon(api)
	h.Write(g.In1, g.In2)
	return h.Sum()
}

type HashTriple struct {
	In1, In2, In3 frontend.Variable
}

func (g HashTriple) DefineGadget(api frontend.API) frontend.Variable {
	h := circomlib.NewPoseidon(api)
	h.Write(g.In1, g.In2, g.In3)
	return h.Sum()
}

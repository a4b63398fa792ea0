package prover

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromHexAcceptsCanonicalValues(t *testing.T) {
	var v big.Int
	require.NoError(t, fromHex(&v, "0x"+strings.Repeat("0", 64)))
	assert.Equal(t, 0, v.Cmp(big.NewInt(0)))

	require.NoError(t, fromHex(&v, "0x"+strings.Repeat("0", 63)+"a"))
	assert.Equal(t, 0, v.Cmp(big.NewInt(10)))

	maxValue := new(big.Int).Sub(fieldModulus, big.NewInt(1))
	require.NoError(t, fromHex(&v, toHex(maxValue)))
	assert.Equal(t, 0, v.Cmp(maxValue))
}

func TestFromHexRejectsMalformedValues(t *testing.T) {
	cases := map[string]string{
		"missing prefix":     strings.Repeat("0", 64),
		"uppercase prefix":   "0X" + strings.Repeat("0", 64),
		"too short":          "0x" + strings.Repeat("0", 63),
		"too long":           "0x" + strings.Repeat("0", 65),
		"unpadded":           "0xa",
		"non-hex characters": "0x" + strings.Repeat("0", 63) + "g",
		"equal to modulus":   toHex(fieldModulus),
		"above modulus":      toHex(new(big.Int).Add(fieldModulus, big.NewInt(1))),
		"empty":              "",
	}
	for name, input := range cases {
		var v big.Int
		assert.Error(t, fromHex(&v, input), name)
	}
}

func TestToHexPadsTo64Characters(t *testing.T) {
	encoded := toHex(big.NewInt(255))
	assert.Equal(t, "0x"+strings.Repeat("0", 62)+"ff", encoded)
	assert.Len(t, encoded, 66)
}

func TestParseFieldElement(t *testing.T) {
	v, err := ParseFieldElement("0x" + strings.Repeat("0", 62) + "2a")
	require.NoError(t, err)
	assert.Equal(t, 0, v.Cmp(big.NewInt(42)))

	_, err = ParseFieldElement("42")
	assert.Error(t, err)
}

func TestMembershipParametersRoundTrip(t *testing.T) {
	params := MembershipParameters{
		DistrictRoot:       *big.NewInt(111),
		ActionId:           *big.NewInt(222),
		TemplateTag:        *big.NewInt(333),
		IdentityCommitment: *big.NewInt(444),
		LeafIndex:          5,
		PathElements:       []big.Int{*big.NewInt(1), *big.NewInt(2), *big.NewInt(3)},
	}

	encoded, err := json.Marshal(&params)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(encoded, []byte(`"membership"`)))

	decoded, err := ParseMembershipInput(encoded)
	require.NoError(t, err)
	assert.Equal(t, params, decoded)

	circuitType, err := ParseCircuitType(encoded)
	require.NoError(t, err)
	assert.Equal(t, Membership, circuitType)
}

func TestTwoTierParametersRoundTrip(t *testing.T) {
	params := TwoTierParameters{
		MembershipParameters: MembershipParameters{
			DistrictRoot:       *big.NewInt(111),
			ActionId:           *big.NewInt(222),
			TemplateTag:        *big.NewInt(333),
			IdentityCommitment: *big.NewInt(444),
			LeafIndex:          5,
			PathElements:       []big.Int{*big.NewInt(1), *big.NewInt(2)},
		},
		GlobalRoot:           *big.NewInt(555),
		DistrictIndex:        3,
		DistrictPathElements: []big.Int{*big.NewInt(4), *big.NewInt(5)},
	}

	encoded, err := json.Marshal(&params)
	require.NoError(t, err)

	decoded, err := ParseTwoTierInput(encoded)
	require.NoError(t, err)
	assert.Equal(t, params, decoded)

	circuitType, err := ParseCircuitType(encoded)
	require.NoError(t, err)
	assert.Equal(t, TwoTier, circuitType)
}

func TestParseMembershipInputRejectsBadRequests(t *testing.T) {
	_, err := ParseMembershipInput([]byte(`{"two-tier": {}}`))
	assert.Error(t, err)

	_, err = ParseMembershipInput([]byte(`{"membership": {"districtRoot": "0xzz"}}`))
	assert.Error(t, err)

	_, err = ParseMembershipInput([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseCircuitTypeRejectsAmbiguousRequests(t *testing.T) {
	_, err := ParseCircuitType([]byte(`{"membership": {}, "two-tier": {}}`))
	assert.Error(t, err)

	_, err = ParseCircuitType([]byte(`{"something": {}}`))
	assert.Error(t, err)
}

func TestPublicInputsRoundTrip(t *testing.T) {
	withoutGlobal := PublicInputs{
		DistrictRoot: *big.NewInt(1),
		Nullifier:    *big.NewInt(2),
		ActionId:     *big.NewInt(3),
	}
	encoded, err := json.Marshal(&withoutGlobal)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(encoded, []byte("globalRoot")))

	var decoded PublicInputs
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, withoutGlobal, decoded)

	withGlobal := withoutGlobal
	withGlobal.GlobalRoot = big.NewInt(4)
	encoded, err = json.Marshal(&withGlobal)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(encoded, []byte("globalRoot")))

	var decodedWithGlobal PublicInputs
	require.NoError(t, json.Unmarshal(encoded, &decodedWithGlobal))
	require.NotNil(t, decodedWithGlobal.GlobalRoot)
	assert.Equal(t, 0, withGlobal.GlobalRoot.Cmp(decodedWithGlobal.GlobalRoot))
}

func TestProvingSystemRoundTrip(t *testing.T) {
	ps, err := SetupMembership(2)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = ps.WriteTo(&buf)
	require.NoError(t, err)

	var read ProvingSystem
	_, err = read.UnsafeReadFrom(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, Membership, read.CircuitType)
	assert.Equal(t, uint32(2), read.TreeDepth)
	assert.Equal(t, uint32(0), read.GlobalTreeDepth)

	// A system read back from disk must still prove and verify.
	tree := identityTree(t, 2)
	params := membershipParameters(t, tree, big.NewInt(2), 1, big.NewInt(100), big.NewInt(7))
	response, err := read.ProveMembership(params)
	require.NoError(t, err)
	require.NoError(t, read.VerifyMembership(&response.PublicInputs, response.Proof))
}

func TestProvingSystemRejectsWrongVersion(t *testing.T) {
	ps, err := SetupMembership(2)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = ps.WriteTo(&buf)
	require.NoError(t, err)

	corrupted := buf.Bytes()
	corrupted[3] = byte(KeyFileVersion + 1)

	var read ProvingSystem
	_, err = read.UnsafeReadFrom(bytes.NewReader(corrupted))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestProofJSONRoundTrip(t *testing.T) {
	ps, err := SetupMembership(2)
	require.NoError(t, err)

	tree := identityTree(t, 2)
	params := membershipParameters(t, tree, big.NewInt(1), 0, big.NewInt(100), big.NewInt(7))
	response, err := ps.ProveMembership(params)
	require.NoError(t, err)

	encoded, err := json.Marshal(response)
	require.NoError(t, err)

	var decoded ProofResponse
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	// The decoded proof must verify against the decoded public inputs.
	require.NoError(t, ps.VerifyMembership(&decoded.PublicInputs, decoded.Proof))

	// A bare proof must survive the boundary too: the raw stream carries the
	// empty commitment section after ar/bs/krs, and unmarshalling has to
	// restore it for the decode to reach the end of the stream.
	proofEncoded, err := json.Marshal(response.Proof)
	require.NoError(t, err)

	var decodedProof Proof
	require.NoError(t, json.Unmarshal(proofEncoded, &decodedProof))
	require.NoError(t, ps.VerifyMembership(&response.PublicInputs, &decodedProof))
}

// Proof limbs are base-field coordinates; a coordinate in [r, p) is a legal
// proof limb even though it would be rejected as a public input.
func TestProofLimbsUseBaseFieldRange(t *testing.T) {
	betweenModuli := new(big.Int).Add(fieldModulus, big.NewInt(1))
	require.Equal(t, -1, betweenModuli.Cmp(baseFieldModulus))

	var v big.Int
	require.NoError(t, fromHexInField(&v, toHex(betweenModuli), baseFieldModulus))
	assert.Error(t, fromHex(&v, toHex(betweenModuli)))

	overBase := new(big.Int).Add(baseFieldModulus, big.NewInt(1))
	assert.Error(t, fromHexInField(&v, toHex(overBase), baseFieldModulus))
}

func TestGenerateKeyFilePath(t *testing.T) {
	assert.Equal(t, "keys/membership_16.key", GenerateKeyFilePath("keys", Membership, 16, 0))
	assert.Equal(t, "keys/two-tier_20_10.key", GenerateKeyFilePath("keys", TwoTier, 20, GlobalTreeDepth))
}

func TestDepthForTier(t *testing.T) {
	depths := map[Tier]uint32{TierMunicipal: 16, TierState: 20, TierFederal: 26}
	for tier, expected := range depths {
		depth, err := DepthForTier(tier)
		require.NoError(t, err)
		assert.Equal(t, expected, depth)
	}

	_, err := DepthForTier(Tier("county"))
	assert.Error(t, err)
}

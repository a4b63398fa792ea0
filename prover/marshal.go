package prover

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
)

// KeyFileVersion is bumped whenever the circuit shape or the public input
// arity changes. A key file written by a different version is rejected on
// read instead of silently producing proofs the deployed verifier rejects.
const KeyFileVersion uint32 = 1

const fieldHexLength = 64

var fieldModulus = ecc.BN254.ScalarField()

// Proof points are coordinates in the curve's base field, which is larger
// than the scalar field the public inputs live in.
var baseFieldModulus = ecc.BN254.BaseField()

// fromHex parses a scalar field element crossing the process boundary. The
// format is strict: "0x" followed by exactly 64 hex characters, value below
// the field modulus. Anything else is rejected before witness construction.
func fromHex(i *big.Int, s string) error {
	return fromHexInField(i, s, fieldModulus)
}

func fromHexInField(i *big.Int, s string, modulus *big.Int) error {
	if !strings.HasPrefix(s, "0x") {
		return fmt.Errorf("invalid field element %q: missing 0x prefix", s)
	}
	digits := s[2:]
	if len(digits) != fieldHexLength {
		return fmt.Errorf("invalid field element %q: expected %d hex characters, got %d", s, fieldHexLength, len(digits))
	}
	if _, ok := i.SetString(digits, 16); !ok {
		return fmt.Errorf("invalid field element %q: not a hex number", s)
	}
	if i.Cmp(modulus) >= 0 {
		return fmt.Errorf("invalid field element %q: not below the field modulus", s)
	}
	return nil
}

func toHex(i *big.Int) string {
	return fmt.Sprintf("0x%064x", i)
}

// ParseFieldElement parses a single field element in the boundary format.
func ParseFieldElement(s string) (*big.Int, error) {
	v := new(big.Int)
	if err := fromHex(v, s); err != nil {
		return nil, err
	}
	return v, nil
}

type ProofJSON struct {
	Ar  [2]string    `json:"ar"`
	Bs  [2][2]string `json:"bs"`
	Krs [2]string    `json:"krs"`
}

const fpSize = 32

// The raw proof stream is Ar | Bs | Krs followed by the commitment section.
// These circuits never commit, so the section is a fixed trailer: a zero
// commitment count and the zero proof-of-knowledge point.
var emptyCommitmentTrailer = make([]byte, 4+2*fpSize)

func (p *Proof) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	_, err := p.Proof.WriteRawTo(&buf)
	if err != nil {
		return nil, err
	}
	proofBytes := buf.Bytes()
	if len(proofBytes) != 8*fpSize+len(emptyCommitmentTrailer) || !bytes.Equal(proofBytes[8*fpSize:], emptyCommitmentTrailer) {
		return nil, fmt.Errorf("proof carries unexpected commitment data")
	}
	proofJson := ProofJSON{}
	proofHexNumbers := [8]string{}
	for i := 0; i < 8; i++ {
		proofHexNumbers[i] = toHex(new(big.Int).SetBytes(proofBytes[i*fpSize : (i+1)*fpSize]))
	}

	proofJson.Ar = [2]string{proofHexNumbers[0], proofHexNumbers[1]}
	proofJson.Bs = [2][2]string{
		{proofHexNumbers[2], proofHexNumbers[3]},
		{proofHexNumbers[4], proofHexNumbers[5]},
	}
	proofJson.Krs = [2]string{proofHexNumbers[6], proofHexNumbers[7]}

	return json.Marshal(proofJson)
}

func (p *Proof) UnmarshalJSON(data []byte) error {
	var proofJson ProofJSON
	err := json.Unmarshal(data, &proofJson)
	if err != nil {
		return err
	}
	proofHexNumbers := [8]string{
		proofJson.Ar[0],
		proofJson.Ar[1],
		proofJson.Bs[0][0],
		proofJson.Bs[0][1],
		proofJson.Bs[1][0],
		proofJson.Bs[1][1],
		proofJson.Krs[0],
		proofJson.Krs[1],
	}
	proofInts := [8]big.Int{}
	for i := 0; i < 8; i++ {
		err = fromHexInField(&proofInts[i], proofHexNumbers[i], baseFieldModulus)
		if err != nil {
			return err
		}
	}
	proofBytes := make([]byte, 8*fpSize+len(emptyCommitmentTrailer))
	for i := 0; i < 8; i++ {
		proofInts[i].FillBytes(proofBytes[i*fpSize : (i+1)*fpSize])
	}

	p.Proof = groth16.NewProof(ecc.BN254)

	_, err = p.Proof.ReadFrom(bytes.NewReader(proofBytes))
	if err != nil {
		return err
	}
	return nil
}

type PublicInputsJSON struct {
	DistrictRoot string  `json:"districtRoot"`
	GlobalRoot   *string `json:"globalRoot,omitempty"`
	Nullifier    string  `json:"nullifier"`
	ActionId     string  `json:"actionId"`
}

func (p *PublicInputs) MarshalJSON() ([]byte, error) {
	inputsJson := PublicInputsJSON{
		DistrictRoot: toHex(&p.DistrictRoot),
		Nullifier:    toHex(&p.Nullifier),
		ActionId:     toHex(&p.ActionId),
	}
	if p.GlobalRoot != nil {
		globalRoot := toHex(p.GlobalRoot)
		inputsJson.GlobalRoot = &globalRoot
	}
	return json.Marshal(inputsJson)
}

func (p *PublicInputs) UnmarshalJSON(data []byte) error {
	var inputsJson PublicInputsJSON
	err := json.Unmarshal(data, &inputsJson)
	if err != nil {
		return err
	}
	if err = fromHex(&p.DistrictRoot, inputsJson.DistrictRoot); err != nil {
		return err
	}
	if err = fromHex(&p.Nullifier, inputsJson.Nullifier); err != nil {
		return err
	}
	if err = fromHex(&p.ActionId, inputsJson.ActionId); err != nil {
		return err
	}
	if inputsJson.GlobalRoot != nil {
		p.GlobalRoot = new(big.Int)
		if err = fromHex(p.GlobalRoot, *inputsJson.GlobalRoot); err != nil {
			return err
		}
	}
	return nil
}

type ProofResponseJSON struct {
	Proof        *Proof        `json:"proof"`
	PublicInputs *PublicInputs `json:"publicInputs"`
}

func (r *ProofResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(ProofResponseJSON{Proof: r.Proof, PublicInputs: &r.PublicInputs})
}

func (r *ProofResponse) UnmarshalJSON(data []byte) error {
	response := ProofResponseJSON{Proof: &Proof{}, PublicInputs: &r.PublicInputs}
	if err := json.Unmarshal(data, &response); err != nil {
		return err
	}
	r.Proof = response.Proof
	return nil
}

func circuitTypeCode(circuit CircuitType) (uint32, error) {
	switch circuit {
	case Membership:
		return 1, nil
	case TwoTier:
		return 2, nil
	default:
		return 0, fmt.Errorf("invalid circuit: %s", circuit)
	}
}

func circuitTypeFromCode(code uint32) (CircuitType, error) {
	switch code {
	case 1:
		return Membership, nil
	case 2:
		return TwoTier, nil
	default:
		return "", fmt.Errorf("invalid circuit code: %d", code)
	}
}

func (ps *ProvingSystem) WriteTo(w io.Writer) (int64, error) {
	var totalWritten int64 = 0
	var intBuf [4]byte

	code, err := circuitTypeCode(ps.CircuitType)
	if err != nil {
		return 0, err
	}

	for _, value := range []uint32{KeyFileVersion, code, ps.TreeDepth, ps.GlobalTreeDepth} {
		binary.BigEndian.PutUint32(intBuf[:], value)
		written, err := w.Write(intBuf[:])
		totalWritten += int64(written)
		if err != nil {
			return totalWritten, err
		}
	}

	keyWritten, err := ps.ProvingKey.WriteTo(w)
	totalWritten += keyWritten
	if err != nil {
		return totalWritten, err
	}

	keyWritten, err = ps.VerifyingKey.WriteTo(w)
	totalWritten += keyWritten
	if err != nil {
		return totalWritten, err
	}

	keyWritten, err = ps.ConstraintSystem.WriteTo(w)
	totalWritten += keyWritten
	if err != nil {
		return totalWritten, err
	}

	return totalWritten, nil
}

func (ps *ProvingSystem) UnsafeReadFrom(r io.Reader) (int64, error) {
	var totalRead int64 = 0
	var intBuf [4]byte

	var header [4]uint32
	for i := range header {
		read, err := io.ReadFull(r, intBuf[:])
		totalRead += int64(read)
		if err != nil {
			return totalRead, err
		}
		header[i] = binary.BigEndian.Uint32(intBuf[:])
	}

	if header[0] != KeyFileVersion {
		return totalRead, fmt.Errorf("unsupported key file version %d, expected %d", header[0], KeyFileVersion)
	}
	circuit, err := circuitTypeFromCode(header[1])
	if err != nil {
		return totalRead, err
	}
	ps.CircuitType = circuit
	ps.TreeDepth = header[2]
	ps.GlobalTreeDepth = header[3]

	ps.ProvingKey = groth16.NewProvingKey(ecc.BN254)
	keyRead, err := ps.ProvingKey.UnsafeReadFrom(r)
	totalRead += keyRead
	if err != nil {
		return totalRead, err
	}

	ps.VerifyingKey = groth16.NewVerifyingKey(ecc.BN254)
	keyRead, err = ps.VerifyingKey.UnsafeReadFrom(r)
	totalRead += keyRead
	if err != nil {
		return totalRead, err
	}

	ps.ConstraintSystem = groth16.NewCS(ecc.BN254)
	keyRead, err = ps.ConstraintSystem.ReadFrom(r)
	totalRead += keyRead
	if err != nil {
		return totalRead, err
	}

	return totalRead, nil
}

func ReadSystemFromFile(path string) (ps *ProvingSystem, err error) {
	ps = new(ProvingSystem)
	file, err := os.Open(path)
	if err != nil {
		return
	}

	defer func() {
		closeErr := file.Close()
		if closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = ps.UnsafeReadFrom(file)
	if err != nil {
		return
	}
	return
}

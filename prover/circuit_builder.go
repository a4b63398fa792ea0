package prover

import (
	"encoding/json"
	"fmt"
)

type CircuitType string

const (
	Membership CircuitType = "membership"
	TwoTier    CircuitType = "two-tier"
)

// Jurisdiction granularity tiers. The tree depth is a circuit-time constant;
// each tier gets its own setup artifact and key file.
type Tier string

const (
	TierMunicipal Tier = "municipal"
	TierState     Tier = "state"
	TierFederal   Tier = "federal"
)

// GlobalTreeDepth is the depth of the registry tree that holds one leaf per
// district in the two-tier variant.
const GlobalTreeDepth uint32 = 10

func DepthForTier(tier Tier) (uint32, error) {
	switch tier {
	case TierMunicipal:
		return 16, nil
	case TierState:
		return 20, nil
	case TierFederal:
		return 26, nil
	default:
		return 0, fmt.Errorf("unknown tier: %s", tier)
	}
}

func SetupCircuit(circuit CircuitType, treeDepth uint32, globalTreeDepth uint32) (*ProvingSystem, error) {
	switch circuit {
	case Membership:
		return SetupMembership(treeDepth)
	case TwoTier:
		return SetupTwoTier(treeDepth, globalTreeDepth)
	default:
		return nil, fmt.Errorf("invalid circuit: %s", circuit)
	}
}

// ParseCircuitType infers the requested circuit from the request schema:
// the parameters sit under a top-level key named after the circuit.
func ParseCircuitType(data []byte) (CircuitType, error) {
	var inputs map[string]*json.RawMessage
	err := json.Unmarshal(data, &inputs)
	if err != nil {
		return "", err
	}

	_, hasMembership := inputs[string(Membership)]
	_, hasTwoTier := inputs[string(TwoTier)]

	if hasMembership && hasTwoTier {
		return "", fmt.Errorf("request contains both circuit types")
	} else if hasMembership {
		return Membership, nil
	} else if hasTwoTier {
		return TwoTier, nil
	}
	return "", fmt.Errorf("unknown schema")
}

func IsCircuitEnabled(s []CircuitType, e CircuitType) bool {
	for _, a := range s {
		if a == e {
			return true
		}
	}
	return false
}

func GenerateKeyFilePath(baseDir string, circuit CircuitType, treeDepth uint32, globalTreeDepth uint32) string {
	switch circuit {
	case Membership:
		return fmt.Sprintf("%s/membership_%d.key", baseDir, treeDepth)
	case TwoTier:
		return fmt.Sprintf("%s/two-tier_%d_%d.key", baseDir, treeDepth, globalTreeDepth)
	default:
		return ""
	}
}

func GetKeys(keysDir string, circuitTypes []CircuitType) []string {
	tiers := []Tier{TierMunicipal, TierState, TierFederal}

	var keys []string
	if IsCircuitEnabled(circuitTypes, Membership) {
		for _, tier := range tiers {
			depth, _ := DepthForTier(tier)
			keys = append(keys, GenerateKeyFilePath(keysDir, Membership, depth, 0))
		}
	}
	if IsCircuitEnabled(circuitTypes, TwoTier) {
		for _, tier := range tiers {
			depth, _ := DepthForTier(tier)
			keys = append(keys, GenerateKeyFilePath(keysDir, TwoTier, depth, GlobalTreeDepth))
		}
	}
	return keys
}

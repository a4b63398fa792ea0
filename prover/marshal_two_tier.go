package prover

import (
	"encoding/json"
	"fmt"
	"math/big"
)

type TwoTierParametersJSON struct {
	MembershipParametersJSON

	GlobalRoot           string   `json:"globalRoot"`
	DistrictIndex        uint32   `json:"districtIndex"`
	DistrictPathElements []string `json:"districtPathElements"`
}

type twoTierRequestJSON struct {
	TwoTier *TwoTierParametersJSON `json:"two-tier"`
}

func ParseTwoTierInput(inputJSON []byte) (TwoTierParameters, error) {
	var params TwoTierParameters
	err := json.Unmarshal(inputJSON, &params)
	if err != nil {
		return TwoTierParameters{}, fmt.Errorf("error parsing two-tier request: %v", err)
	}
	return params, nil
}

func (p *TwoTierParameters) MarshalJSON() ([]byte, error) {
	paramsJson := TwoTierParametersJSON{
		MembershipParametersJSON: *p.MembershipParameters.toJSON(),
		GlobalRoot:               toHex(&p.GlobalRoot),
		DistrictIndex:            p.DistrictIndex,
	}
	paramsJson.DistrictPathElements = make([]string, len(p.DistrictPathElements))
	for i := 0; i < len(p.DistrictPathElements); i++ {
		paramsJson.DistrictPathElements[i] = toHex(&p.DistrictPathElements[i])
	}
	return json.Marshal(twoTierRequestJSON{TwoTier: &paramsJson})
}

func (p *TwoTierParameters) UnmarshalJSON(data []byte) error {
	var request twoTierRequestJSON
	err := json.Unmarshal(data, &request)
	if err != nil {
		return err
	}
	if request.TwoTier == nil {
		return fmt.Errorf("missing two-tier key")
	}
	paramsJson := request.TwoTier
	if err := p.MembershipParameters.fromJSON(&paramsJson.MembershipParametersJSON); err != nil {
		return err
	}
	if err := fromHex(&p.GlobalRoot, paramsJson.GlobalRoot); err != nil {
		return err
	}
	p.DistrictIndex = paramsJson.DistrictIndex
	p.DistrictPathElements = make([]big.Int, len(paramsJson.DistrictPathElements))
	for i := 0; i < len(paramsJson.DistrictPathElements); i++ {
		if err := fromHex(&p.DistrictPathElements[i], paramsJson.DistrictPathElements[i]); err != nil {
			return err
		}
	}
	return nil
}

package prover

import (
	"encoding/json"
	"fmt"
	"math/big"
)

type MembershipParametersJSON struct {
	DistrictRoot       string   `json:"districtRoot"`
	ActionId           string   `json:"actionId"`
	TemplateTag        string   `json:"templateTag"`
	IdentityCommitment string   `json:"identityCommitment"`
	LeafIndex          uint32   `json:"leafIndex"`
	PathElements       []string `json:"pathElements"`
}

type membershipRequestJSON struct {
	Membership *MembershipParametersJSON `json:"membership"`
}

func ParseMembershipInput(inputJSON []byte) (MembershipParameters, error) {
	var params MembershipParameters
	err := json.Unmarshal(inputJSON, &params)
	if err != nil {
		return MembershipParameters{}, fmt.Errorf("error parsing membership request: %v", err)
	}
	return params, nil
}

func (p *MembershipParameters) toJSON() *MembershipParametersJSON {
	paramsJson := MembershipParametersJSON{
		DistrictRoot:       toHex(&p.DistrictRoot),
		ActionId:           toHex(&p.ActionId),
		TemplateTag:        toHex(&p.TemplateTag),
		IdentityCommitment: toHex(&p.IdentityCommitment),
		LeafIndex:          p.LeafIndex,
	}
	paramsJson.PathElements = make([]string, len(p.PathElements))
	for i := 0; i < len(p.PathElements); i++ {
		paramsJson.PathElements[i] = toHex(&p.PathElements[i])
	}
	return &paramsJson
}

func (p *MembershipParameters) fromJSON(paramsJson *MembershipParametersJSON) error {
	if err := fromHex(&p.DistrictRoot, paramsJson.DistrictRoot); err != nil {
		return err
	}
	if err := fromHex(&p.ActionId, paramsJson.ActionId); err != nil {
		return err
	}
	if err := fromHex(&p.TemplateTag, paramsJson.TemplateTag); err != nil {
		return err
	}
	if err := fromHex(&p.IdentityCommitment, paramsJson.IdentityCommitment); err != nil {
		return err
	}
	p.LeafIndex = paramsJson.LeafIndex
	p.PathElements = make([]big.Int, len(paramsJson.PathElements))
	for i := 0; i < len(paramsJson.PathElements); i++ {
		if err := fromHex(&p.PathElements[i], paramsJson.PathElements[i]); err != nil {
			return err
		}
	}
	return nil
}

func (p *MembershipParameters) MarshalJSON() ([]byte, error) {
	return json.Marshal(membershipRequestJSON{Membership: p.toJSON()})
}

func (p *MembershipParameters) UnmarshalJSON(data []byte) error {
	var request membershipRequestJSON
	err := json.Unmarshal(data, &request)
	if err != nil {
		return err
	}
	if request.Membership == nil {
		return fmt.Errorf("missing membership key")
	}
	return p.fromJSON(request.Membership)
}

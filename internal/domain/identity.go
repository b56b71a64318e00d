package domain

// IdentityResponse is the subset of the BigDataCorp /pessoas response used for counterparty checks.
type IdentityResponse struct {
	Result []IdentityResult `json:"Result"`
}

// IdentityResult is one matched person.
type IdentityResult struct {
	BasicData *IdentityBasicData `json:"BasicData,omitempty"`
	Processes *IdentityProcesses `json:"Processes,omitempty"`
	KycData   *IdentityKyc       `json:"KycData,omitempty"`
}

type IdentityBasicData struct {
	TaxIDNumber string `json:"TaxIdNumber"`
	Name        string `json:"Name"`
}

type IdentityProcesses struct {
	Lawsuits []IdentityLawsuit `json:"Lawsuits"`
}

type IdentityLawsuit struct {
	Number        string `json:"Number"`
	CourtName     string `json:"CourtName"`
	MainSubject   string `json:"MainSubject"`
	Type          string `json:"Type"`
	CourtLevel    string `json:"CourtLevel"`
	CourtType     string `json:"CourtType"`
	CourtDistrict string `json:"CourtDistrict"`
}

type IdentityKyc struct {
	PEPHistory            []IdentityPEP      `json:"PEPHistory"`
	SanctionsHistory      []IdentitySanction `json:"SanctionsHistory"`
	IsCurrentlyPEP        bool               `json:"IsCurrentlyPEP"`
	IsCurrentlySanctioned bool               `json:"IsCurrentlySanctioned"`
}

type IdentityPEP struct {
	Description string `json:"Description"`
}

type IdentitySanction struct {
	Type                     string                  `json:"Type"`
	StandardizedSanctionType string                  `json:"StandardizedSanctionType"`
	Source                   string                  `json:"Source"`
	MatchRate                float64                 `json:"MatchRate"`
	Details                  *IdentitySanctionDetail `json:"Details,omitempty"`
}

type IdentitySanctionDetail struct {
	WarrantDescription string `json:"WarrantDescription"`
	OriginalName       string `json:"OriginalName"`
	SanctionName       string `json:"SanctionName"`
}

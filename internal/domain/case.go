// Package domain defines the core interfaces and types for Lavandowski.
package domain

import (
	"time"
)

// Record is a single JSON-safe warehouse row.
type Record map[string]any

// SubjectKind distinguishes the two report shapes.
type SubjectKind string

const (
	SubjectMerchant   SubjectKind = "Merchant"
	SubjectCardholder SubjectKind = "Cardholder"
)

// FlaggedUser is a user selected for AML analysis.
type FlaggedUser struct {
	UserID             int64     `json:"user_id"`
	AlertType          string    `json:"alert_type"`
	AlertDate          time.Time `json:"alert_date"`
	Score              *float64  `json:"score,omitempty"`
	Features           string    `json:"features,omitempty"`
	BusinessValidation bool      `json:"business_validation"`
}

// CaseReport is the aggregated dossier for one user.
// Sequence fields are never nil; a missing source leaves them empty.
type CaseReport struct {
	UserID      int64       `json:"user_id"`
	Kind        SubjectKind `json:"kind"`
	SubjectInfo Record      `json:"subject_info"`

	TotalCashInPix               float64 `json:"total_cash_in_pix"`
	TotalCashOutPix              float64 `json:"total_cash_out_pix"`
	TotalCashInPixAtypicalHours  float64 `json:"total_cash_in_pix_atypical_hours"`
	TotalCashOutPixAtypicalHours float64 `json:"total_cash_out_pix_atypical_hours"`

	IssuingConcentration     []Record `json:"issuing_concentration"`
	TransactionConcentration []Record `json:"transaction_concentration"`
	PixCashIn                []Record `json:"pix_cash_in"`
	PixCashOut               []Record `json:"pix_cash_out"`
	OffenseHistory           []Record `json:"offense_history"`
	ProductsOnline           []Record `json:"products_online"`
	Contacts                 []Record `json:"contacts"`
	Devices                  []Record `json:"devices"`
	Lawsuits                 []Record `json:"lawsuits"`
	DeniedTransactions       []Record `json:"denied_transactions"`
	BusinessData             []Record `json:"business_data"`
	PrisonTransactions       []Record `json:"prison_transactions"`
	SanctionsHistory         []Record `json:"sanctions_history"`
	DeniedPixTransactions    []Record `json:"denied_pix_transactions"`
	BetsPixTransfers         []Record `json:"bets_pix_transfers"`

	CounterpartyAnalysis CounterpartyAnalysis `json:"counterparty_analysis"`
}

// NewCaseReport returns a report with every sequence initialized.
func NewCaseReport(userID int64, kind SubjectKind) *CaseReport {
	return &CaseReport{
		UserID:                   userID,
		Kind:                     kind,
		SubjectInfo:              Record{},
		IssuingConcentration:     []Record{},
		TransactionConcentration: []Record{},
		PixCashIn:                []Record{},
		PixCashOut:               []Record{},
		OffenseHistory:           []Record{},
		ProductsOnline:           []Record{},
		Contacts:                 []Record{},
		Devices:                  []Record{},
		Lawsuits:                 []Record{},
		DeniedTransactions:       []Record{},
		BusinessData:             []Record{},
		PrisonTransactions:       []Record{},
		SanctionsHistory:         []Record{},
		DeniedPixTransactions:    []Record{},
		BetsPixTransfers:         []Record{},
		CounterpartyAnalysis:     NewCounterpartyAnalysis(false),
	}
}

// RiskLevel is the counterparty risk classification.
type RiskLevel string

const (
	RiskLow       RiskLevel = "BAIXO"
	RiskLowMedium RiskLevel = "BAIXO-MÉDIO"
	RiskMedium    RiskLevel = "MÉDIO"
	RiskHigh      RiskLevel = "ALTO"
)

// TransactionDirection marks which side of the PIX flow a counterparty sits on.
type TransactionDirection string

const (
	CashIn  TransactionDirection = "CASH_IN"
	CashOut TransactionDirection = "CASH_OUT"
)

// ProcessRecord is a criminal lawsuit found for a counterparty.
type ProcessRecord struct {
	ProcessNumber string `json:"process_number"`
	Court         string `json:"court"`
	Subject       string `json:"subject"`
	Type          string `json:"type"`
	CourtLevel    string `json:"court_level"`
	CourtType     string `json:"court_type"`
	District      string `json:"district"`
}

// SanctionRecord is a PEP or sanctions hit for a counterparty.
type SanctionRecord struct {
	Type             string   `json:"type"`
	StandardizedType string   `json:"standardized_type,omitempty"`
	Source           string   `json:"source"`
	Description      string   `json:"description"`
	MatchRate        *float64 `json:"match_rate,omitempty"`
}

// CounterpartyRiskProfile is the lookup result for one top counterparty.
type CounterpartyRiskProfile struct {
	Document     *string          `json:"document"`
	Name         *string          `json:"name"`
	Processes    []ProcessRecord  `json:"processes"`
	Sanctions    []SanctionRecord `json:"sanctions"`
	HasProcesses bool             `json:"has_processes"`
	HasSanctions bool             `json:"has_sanctions"`
	RiskLevel    RiskLevel        `json:"risk_level"`

	TransactionAmount any                  `json:"transaction_amount"`
	TransactionDate   any                  `json:"transaction_date"`
	TransactionType   TransactionDirection `json:"transaction_type"`
	PartyName         any                  `json:"party_name"`
}

// CounterpartySummary counts analyzed counterparties.
type CounterpartySummary struct {
	TotalAnalyzed int `json:"total_counterparties_analyzed"`
	WithProcesses int `json:"counterparties_with_processes"`
	WithSanctions int `json:"counterparties_with_sanctions"`
	HighRisk      int `json:"high_risk_counterparties"`
}

// CounterpartyAnalysis holds the top cash-in and cash-out counterparty profiles.
type CounterpartyAnalysis struct {
	TopCashIn  []CounterpartyRiskProfile `json:"top_cash_in_analysis"`
	TopCashOut []CounterpartyRiskProfile `json:"top_cash_out_analysis"`
	Enabled    bool                      `json:"analysis_enabled"`
	Summary    CounterpartySummary       `json:"summary"`
}

// NewCounterpartyAnalysis returns an analysis with empty sequences.
func NewCounterpartyAnalysis(enabled bool) CounterpartyAnalysis {
	return CounterpartyAnalysis{
		TopCashIn:  []CounterpartyRiskProfile{},
		TopCashOut: []CounterpartyRiskProfile{},
		Enabled:    enabled,
	}
}

// Conclusion is the business outcome of an analysis.
type Conclusion string

const (
	ConclusionUndetermined Conclusion = ""
	ConclusionNormal       Conclusion = "normal"
	ConclusionSuspicious   Conclusion = "suspicious"
	ConclusionOffense      Conclusion = "offense"
)

// Priority is the case-management priority.
type Priority string

const (
	PriorityMid  Priority = "mid"
	PriorityHigh Priority = "high"
)

// ExportPayload is the case-management submission body.
type ExportPayload struct {
	UserID            int64      `json:"user_id"`
	Description       string     `json:"description"`
	AnalysisType      string     `json:"analysis_type"`
	Conclusion        Conclusion `json:"conclusion"`
	Priority          Priority   `json:"priority"`
	AutomaticPipeline bool       `json:"automatic_pipeline"`
	OffenseGroup      string     `json:"offense_group"`
	OffenseName       string     `json:"offense_name"`
	RelatedAnalyses   []int64    `json:"related_analyses"`
}

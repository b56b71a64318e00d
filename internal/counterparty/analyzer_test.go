package counterparty

import (
	"context"
	"errors"
	"testing"

	"github.com/opensource-finance/lavandowski/internal/domain"
)

type fakeLookup struct {
	responses map[string]*domain.IdentityResponse
	err       error
	calls     []string
}

func (f *fakeLookup) Lookup(ctx context.Context, document string) (*domain.IdentityResponse, error) {
	f.calls = append(f.calls, document)
	if f.err != nil {
		return nil, f.err
	}
	if resp, ok := f.responses[document]; ok {
		return resp, nil
	}
	return &domain.IdentityResponse{Result: []domain.IdentityResult{}}, nil
}

func person(doc, name string, lawsuits int, kyc *domain.IdentityKyc) *domain.IdentityResponse {
	r := domain.IdentityResult{
		BasicData: &domain.IdentityBasicData{TaxIDNumber: doc, Name: name},
		Processes: &domain.IdentityProcesses{},
		KycData:   kyc,
	}
	for i := 0; i < lawsuits; i++ {
		r.Processes.Lawsuits = append(r.Processes.Lawsuits, domain.IdentityLawsuit{Number: "P", CourtType: "CRIMINAL"})
	}
	return &domain.IdentityResponse{Result: []domain.IdentityResult{r}}
}

func TestTop(t *testing.T) {
	rows := []domain.Record{
		{"party": "a", "pix_amount": 10.0},
		{"party": "b", "pix_amount": nil},
		{"party": "c", "pix_amount": 50.0},
		{"party": "d", "pix_amount": 10.0},
		{"party": "e", "pix_amount": 30.0},
	}

	got := Top(rows, 3)
	want := []string{"c", "e", "a"}
	if len(got) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i]["party"] != w {
			t.Errorf("position %d: got %v, want %s", i, got[i]["party"], w)
		}
	}
	if rows[0]["party"] != "a" {
		t.Error("input slice was reordered")
	}
}

func TestDocument(t *testing.T) {
	tests := []struct {
		name string
		row  domain.Record
		want string
	}{
		{"PartyDocumentFirst", domain.Record{"party_document_number": "111", "cpf": "222"}, "111"},
		{"SkipsEmpty", domain.Record{"party_document_number": "", "gateway_document_number": nil, "cnpj": " 333 "}, "333"},
		{"DestinationLast", domain.Record{"destination_document": "444"}, "444"},
		{"Numeric", domain.Record{"cpf": float64(12345678901)}, "12345678901"},
		{"None", domain.Record{"party": "x"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Document(tt.row); got != tt.want {
				t.Errorf("Document() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		sanctions bool
		processes int
		want      domain.RiskLevel
	}{
		{true, 0, domain.RiskHigh},
		{true, 5, domain.RiskHigh},
		{false, 4, domain.RiskMedium},
		{false, 3, domain.RiskLowMedium},
		{false, 1, domain.RiskLowMedium},
		{false, 0, domain.RiskLow},
	}
	for _, tt := range tests {
		if got := Level(tt.sanctions, tt.processes); got != tt.want {
			t.Errorf("Level(%v, %d) = %s, want %s", tt.sanctions, tt.processes, got, tt.want)
		}
	}
}

func TestProfile(t *testing.T) {
	t.Run("EmptyResponse", func(t *testing.T) {
		p := Profile(&domain.IdentityResponse{}, nil)
		if p.RiskLevel != domain.RiskLow || p.Document != nil || p.Name != nil {
			t.Errorf("unexpected profile: %+v", p)
		}
		if p.Processes == nil || p.Sanctions == nil {
			t.Error("sequences must not be nil")
		}
	})

	t.Run("CapsProcessesAtTen", func(t *testing.T) {
		p := Profile(person("1", "X", 12, nil), nil)
		if len(p.Processes) != 10 {
			t.Errorf("expected 10 processes, got %d", len(p.Processes))
		}
		if !p.HasProcesses || p.RiskLevel != domain.RiskMedium {
			t.Errorf("has=%v level=%s", p.HasProcesses, p.RiskLevel)
		}
	})

	t.Run("SanctionOrderAndMatchRate", func(t *testing.T) {
		kyc := &domain.IdentityKyc{
			PEPHistory: []domain.IdentityPEP{{Description: "Vereador"}},
			SanctionsHistory: []domain.IdentitySanction{
				{Type: "arrest warrants", Source: "CNJ", MatchRate: 100, Details: &domain.IdentitySanctionDetail{WarrantDescription: "mandado"}},
				{Type: "homonym", Source: "CNJ", MatchRate: 87},
			},
			IsCurrentlyPEP:        true,
			IsCurrentlySanctioned: true,
		}
		p := Profile(person("1", "X", 0, kyc), nil)

		wantTypes := []string{"PEP", "arrest warrants", "Current PEP", "Current Sanction"}
		if len(p.Sanctions) != len(wantTypes) {
			t.Fatalf("expected %d sanctions, got %+v", len(wantTypes), p.Sanctions)
		}
		for i, w := range wantTypes {
			if p.Sanctions[i].Type != w {
				t.Errorf("sanction %d type = %s, want %s", i, p.Sanctions[i].Type, w)
			}
		}
		if p.Sanctions[1].Description != "mandado" || p.Sanctions[1].MatchRate == nil || *p.Sanctions[1].MatchRate != 100 {
			t.Errorf("unexpected matched sanction: %+v", p.Sanctions[1])
		}
		if p.Sanctions[0].Source != "PEP Database" || p.Sanctions[3].Source != "Sanctions Database" {
			t.Errorf("unexpected sources: %+v", p.Sanctions)
		}
		if p.RiskLevel != domain.RiskHigh {
			t.Errorf("level = %s", p.RiskLevel)
		}
	})
}

func TestAnalyze(t *testing.T) {
	ctx := context.Background()

	cashIn := []domain.Record{
		{"party": "Alpha", "party_document_number": "111", "pix_amount": 500.0, "created_at": "2025-06-01"},
		{"party": "NoDoc", "pix_amount": 400.0},
		{"party": "Beta", "party_document_number": "222", "pix_amount": 300.0},
		{"party": "Gamma", "party_document_number": "333", "pix_amount": 1.0},
	}
	cashOut := []domain.Record{
		{"party": "Delta", "party_document_number": "444", "pix_amount": 900.0},
	}

	t.Run("Disabled", func(t *testing.T) {
		a := NewAnalyzer(nil, nil)
		got := a.Analyze(ctx, cashIn, cashOut, 1)
		if got.Enabled || len(got.TopCashIn) != 0 || len(got.TopCashOut) != 0 {
			t.Errorf("expected empty disabled analysis, got %+v", got)
		}
		if got.TopCashIn == nil {
			t.Error("sequences must not be nil")
		}
	})

	t.Run("ScreensTopThree", func(t *testing.T) {
		lookup := &fakeLookup{responses: map[string]*domain.IdentityResponse{
			"111": person("111", "ALPHA", 2, nil),
			"222": person("222", "BETA", 5, nil),
			"444": person("444", "DELTA", 0, &domain.IdentityKyc{IsCurrentlySanctioned: true}),
		}}
		a := NewAnalyzer(lookup, nil)
		got := a.Analyze(ctx, cashIn, cashOut, 42)

		if !got.Enabled {
			t.Error("expected enabled analysis")
		}
		// Gamma falls outside the top three; NoDoc is skipped
		if len(got.TopCashIn) != 2 {
			t.Fatalf("expected 2 cash-in profiles, got %d", len(got.TopCashIn))
		}
		alpha := got.TopCashIn[0]
		if alpha.RiskLevel != domain.RiskLowMedium || alpha.TransactionType != domain.CashIn {
			t.Errorf("alpha = %+v", alpha)
		}
		if alpha.PartyName != "Alpha" || alpha.TransactionAmount != 500.0 || alpha.TransactionDate != "2025-06-01" {
			t.Errorf("alpha extras = %v %v %v", alpha.PartyName, alpha.TransactionAmount, alpha.TransactionDate)
		}
		if got.TopCashIn[1].TransactionDate != "" {
			t.Errorf("missing created_at should be empty string, got %v", got.TopCashIn[1].TransactionDate)
		}
		if got.TopCashOut[0].RiskLevel != domain.RiskHigh || got.TopCashOut[0].TransactionType != domain.CashOut {
			t.Errorf("delta = %+v", got.TopCashOut[0])
		}

		want := domain.CounterpartySummary{TotalAnalyzed: 3, WithProcesses: 2, WithSanctions: 1, HighRisk: 2}
		if got.Summary != want {
			t.Errorf("summary = %+v, want %+v", got.Summary, want)
		}
		if len(lookup.calls) != 3 {
			t.Errorf("expected 3 lookups, got %v", lookup.calls)
		}
	})

	t.Run("NoDocumentsNoLookups", func(t *testing.T) {
		undocumented := make([]domain.Record, 5)
		for i := range undocumented {
			undocumented[i] = domain.Record{"party": "Sem Documento", "pix_amount": float64(100 * (i + 1))}
		}
		lookup := &fakeLookup{}
		got := NewAnalyzer(lookup, nil).Analyze(ctx, undocumented, nil, 11)

		if !got.Enabled || got.Summary.TotalAnalyzed != 0 || len(got.TopCashIn) != 0 {
			t.Errorf("expected nothing analyzed, got %+v", got)
		}
		if len(lookup.calls) != 0 {
			t.Errorf("expected no lookups, got %v", lookup.calls)
		}
	})

	t.Run("LookupErrorStillCounted", func(t *testing.T) {
		a := NewAnalyzer(&fakeLookup{err: errors.New("timeout")}, nil)
		got := a.Analyze(ctx, cashIn[:1], nil, 7)

		if got.Summary.TotalAnalyzed != 1 {
			t.Errorf("expected failed lookup to be counted, got %+v", got.Summary)
		}
		p := got.TopCashIn[0]
		if p.RiskLevel != domain.RiskLow || p.HasProcesses || p.HasSanctions {
			t.Errorf("expected clean BAIXO profile, got %+v", p)
		}
	})
}

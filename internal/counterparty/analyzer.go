// Package counterparty screens a user's largest PIX counterparties against
// the identity registry for criminal lawsuits and sanctions.
package counterparty

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/opensource-finance/lavandowski/internal/domain"
	"github.com/opensource-finance/lavandowski/internal/normalize"
)

// TopN is how many counterparties are screened per direction.
const TopN = 3

// maxProcesses caps the lawsuits kept per counterparty.
const maxProcesses = 10

// documentFields are tried in order; the first non-empty one is the document.
var documentFields = []string{
	"party_document_number",
	"gateway_document_number",
	"document_number",
	"cpf",
	"cnpj",
	"counterparty_document",
	"payer_document",
	"receiver_document",
	"origin_document",
	"destination_document",
}

// Lookup resolves a document to its registry entry.
type Lookup interface {
	Lookup(ctx context.Context, document string) (*domain.IdentityResponse, error)
}

// Analyzer builds counterparty risk profiles.
type Analyzer struct {
	lookup Lookup
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer. A nil lookup yields disabled analyses.
func NewAnalyzer(lookup Lookup, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{lookup: lookup, logger: logger}
}

// Enabled reports whether lookups are configured.
func (a *Analyzer) Enabled() bool {
	return a != nil && a.lookup != nil
}

// Analyze screens the top cash-in and cash-out counterparties of a user.
func (a *Analyzer) Analyze(ctx context.Context, cashIn, cashOut []domain.Record, userID int64) domain.CounterpartyAnalysis {
	if !a.Enabled() {
		if a != nil {
			a.logger.Warn("counterparty lookup not configured", "user_id", userID)
		}
		return domain.NewCounterpartyAnalysis(false)
	}

	out := domain.NewCounterpartyAnalysis(true)
	out.TopCashIn = a.screen(ctx, cashIn, domain.CashIn, userID, &out.Summary)
	out.TopCashOut = a.screen(ctx, cashOut, domain.CashOut, userID, &out.Summary)

	a.logger.Info("counterparty analysis complete",
		"user_id", userID,
		"analyzed", out.Summary.TotalAnalyzed,
		"with_processes", out.Summary.WithProcesses,
		"with_sanctions", out.Summary.WithSanctions,
		"high_risk", out.Summary.HighRisk,
	)
	return out
}

func (a *Analyzer) screen(ctx context.Context, rows []domain.Record, dir domain.TransactionDirection, userID int64, summary *domain.CounterpartySummary) []domain.CounterpartyRiskProfile {
	profiles := []domain.CounterpartyRiskProfile{}

	for i, row := range Top(rows, TopN) {
		if ctx.Err() != nil {
			break
		}

		document := Document(row)
		if document == "" {
			a.logger.Warn("no document for counterparty", "user_id", userID, "direction", dir, "position", i+1)
			continue
		}

		resp, err := a.lookup.Lookup(ctx, document)
		if err != nil {
			a.logger.Error("counterparty lookup failed",
				"user_id", userID,
				"direction", dir,
				"error", err,
			)
			resp = nil
		}

		profile := Profile(resp, a.logger)
		profile.TransactionAmount = valueOr(row, "pix_amount", 0)
		profile.TransactionDate = valueOr(row, "created_at", "")
		profile.TransactionType = dir
		profile.PartyName = valueOr(row, "party", "")

		summary.TotalAnalyzed++
		if profile.HasProcesses {
			summary.WithProcesses++
		}
		if profile.HasSanctions {
			summary.WithSanctions++
		}
		if profile.RiskLevel == domain.RiskHigh || profile.RiskLevel == domain.RiskMedium {
			summary.HighRisk++
		}

		profiles = append(profiles, profile)
	}
	return profiles
}

// Top returns the n rows with the largest pix_amount, keeping input order on ties.
func Top(rows []domain.Record, n int) []domain.Record {
	sorted := make([]domain.Record, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return normalize.Float(sorted[i], "pix_amount") > normalize.Float(sorted[j], "pix_amount")
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Document returns the first non-empty document field of a row.
func Document(row domain.Record) string {
	for _, field := range documentFields {
		v, ok := row[field]
		if !ok || v == nil {
			continue
		}
		if s := strings.TrimSpace(normalize.String(row, field)); s != "" {
			return s
		}
	}
	return ""
}

// Profile extracts lawsuits and sanctions from a registry response.
// A nil or empty response yields a BAIXO profile with no findings.
func Profile(resp *domain.IdentityResponse, logger *slog.Logger) domain.CounterpartyRiskProfile {
	if logger == nil {
		logger = slog.Default()
	}
	p := domain.CounterpartyRiskProfile{
		Processes: []domain.ProcessRecord{},
		Sanctions: []domain.SanctionRecord{},
		RiskLevel: domain.RiskLow,
	}
	if resp == nil || len(resp.Result) == 0 {
		return p
	}
	person := resp.Result[0]

	if person.BasicData != nil {
		doc, name := person.BasicData.TaxIDNumber, person.BasicData.Name
		p.Document, p.Name = &doc, &name
	}

	if person.Processes != nil && len(person.Processes.Lawsuits) > 0 {
		p.HasProcesses = true
		lawsuits := person.Processes.Lawsuits
		if len(lawsuits) > maxProcesses {
			lawsuits = lawsuits[:maxProcesses]
		}
		for _, l := range lawsuits {
			p.Processes = append(p.Processes, domain.ProcessRecord{
				ProcessNumber: l.Number,
				Court:         l.CourtName,
				Subject:       l.MainSubject,
				Type:          l.Type,
				CourtLevel:    l.CourtLevel,
				CourtType:     l.CourtType,
				District:      l.CourtDistrict,
			})
		}
	}

	if kyc := person.KycData; kyc != nil {
		for _, pep := range kyc.PEPHistory {
			p.Sanctions = append(p.Sanctions, domain.SanctionRecord{
				Type:        "PEP",
				Description: pep.Description,
				Source:      "PEP Database",
			})
		}

		for _, s := range kyc.SanctionsHistory {
			// only exact matches count
			if s.MatchRate != 100 {
				var original, sanctioned string
				if s.Details != nil {
					original, sanctioned = s.Details.OriginalName, s.Details.SanctionName
				}
				logger.Warn("sanction rejected by match rate",
					"type", s.Type,
					"source", s.Source,
					"match_rate", s.MatchRate,
					"original_name", original,
					"sanction_name", sanctioned,
				)
				continue
			}
			rate := s.MatchRate
			rec := domain.SanctionRecord{
				Type:             s.Type,
				StandardizedType: s.StandardizedSanctionType,
				Source:           s.Source,
				MatchRate:        &rate,
			}
			if s.Details != nil {
				rec.Description = s.Details.WarrantDescription
			}
			p.Sanctions = append(p.Sanctions, rec)
		}

		if kyc.IsCurrentlyPEP {
			p.Sanctions = append(p.Sanctions, domain.SanctionRecord{
				Type:        "Current PEP",
				Description: "Currently a Politically Exposed Person",
				Source:      "PEP Database",
			})
		}
		if kyc.IsCurrentlySanctioned {
			p.Sanctions = append(p.Sanctions, domain.SanctionRecord{
				Type:        "Current Sanction",
				Description: "Currently under sanctions",
				Source:      "Sanctions Database",
			})
		}
	}
	p.HasSanctions = len(p.Sanctions) > 0

	p.RiskLevel = Level(p.HasSanctions, len(p.Processes))
	return p
}

// Level classifies a counterparty by its findings.
func Level(hasSanctions bool, processes int) domain.RiskLevel {
	switch {
	case hasSanctions:
		return domain.RiskHigh
	case processes > 3:
		return domain.RiskMedium
	case processes > 0:
		return domain.RiskLowMedium
	default:
		return domain.RiskLow
	}
}

func valueOr(row domain.Record, key string, fallback any) any {
	if v, ok := row[key]; ok && v != nil {
		return v
	}
	return fallback
}

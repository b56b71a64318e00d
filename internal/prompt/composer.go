// Package prompt renders a case report into the analyst instructions sent to
// the language model.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/opensource-finance/lavandowski/internal/domain"
)

// Extras carries alert-specific context that is not part of the report.
type Extras struct {
	// BettingHouses is the reference list for betting alerts. Nil means unavailable.
	BettingHouses []domain.Record

	// PEPRecords are the user's transactions with PEPs. Nil means unavailable.
	PEPRecords []domain.Record

	// AIFeatures is the anomaly description attached to model alerts.
	AIFeatures string
}

// blockFunc renders an alert block, or "" when its inputs are missing.
type blockFunc func(Extras) string

// Composer builds prompts.
type Composer struct {
	blocks map[string]blockFunc
}

// NewComposer creates a composer with the standard alert blocks.
func NewComposer() *Composer {
	return &Composer{blocks: alertBlocks()}
}

// AlertTypes lists the alert types that have a dedicated block.
func (c *Composer) AlertTypes() []string {
	out := make([]string, 0, len(c.blocks))
	for k := range c.blocks {
		out = append(out, k)
	}
	return out
}

// Compose renders the full prompt for a report.
func (c *Composer) Compose(r *domain.CaseReport, alertType string, extras Extras) string {
	var b strings.Builder

	fmt.Fprintf(&b, preamble, alertType, r.Kind, toJSON(r.SubjectInfo))

	if r.Kind == domain.SubjectMerchant {
		fmt.Fprintf(&b, merchantBody,
			BRL(r.TotalCashInPix), BRL(r.TotalCashOutPix),
			BRL(r.TotalCashInPixAtypicalHours), BRL(r.TotalCashOutPixAtypicalHours),
			toJSON(r.TransactionConcentration),
			toJSON(r.IssuingConcentration),
			toJSON(r.DeniedTransactions),
			toJSON(r.BusinessData),
			toJSON(r.PrisonTransactions),
			toJSON(r.Contacts),
			toJSON(r.Devices),
			toJSON(r.ProductsOnline),
			toJSON(r.SanctionsHistory),
			toJSON(r.DeniedPixTransactions),
			toJSON(r.PixCashIn), toJSON(r.PixCashOut),
			toJSON(r.Lawsuits),
			toJSON(r.OffenseHistory),
			toJSON(r.BetsPixTransfers),
			counterpartyInstructions,
			toJSON(r.CounterpartyAnalysis),
		)
	} else {
		fmt.Fprintf(&b, cardholderBody,
			BRL(r.TotalCashInPix), BRL(r.TotalCashOutPix),
			BRL(r.TotalCashInPixAtypicalHours), BRL(r.TotalCashOutPixAtypicalHours),
			toJSON(r.IssuingConcentration),
			toJSON(r.Contacts),
			toJSON(r.Devices),
			toJSON(r.SanctionsHistory),
			toJSON(r.DeniedPixTransactions),
			toJSON(r.PixCashIn), toJSON(r.PixCashOut),
			toJSON(r.BusinessData),
			toJSON(r.Lawsuits),
			toJSON(r.PrisonTransactions),
			toJSON(r.OffenseHistory),
			toJSON(r.BetsPixTransfers),
			counterpartyInstructions,
			toJSON(r.CounterpartyAnalysis),
		)
	}

	if block, ok := c.blocks[alertType]; ok {
		b.WriteString(block(extras))
	}

	b.WriteString(closing)
	return b.String()
}

// BRL formats an amount as R$1,234.56.
func BRL(v float64) string {
	return "R$" + humanize.FormatFloat("#,###.##", v)
}

// toJSON renders v with two-space indentation and without HTML escaping.
func toJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "[]"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

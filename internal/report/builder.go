// Package report assembles the case dossier for a flagged user from the
// warehouse tables.
package report

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/lavandowski/internal/counterparty"
	"github.com/opensource-finance/lavandowski/internal/domain"
	"github.com/opensource-finance/lavandowski/internal/normalize"
	"github.com/opensource-finance/lavandowski/internal/warehouse"
)

// PIX concentration transaction types.
const (
	pixCashIn  = "Cash In"
	pixCashOut = "Cash Out"
)

// bettingHousesLimit caps the reference list shown in betting alerts.
const bettingHousesLimit = 10

// Builder fetches dossier sections and screens counterparties.
type Builder struct {
	wh       domain.Warehouse
	catalog  *warehouse.Catalog
	analyzer *counterparty.Analyzer
	logger   *slog.Logger
}

// NewBuilder creates a report builder.
func NewBuilder(wh domain.Warehouse, catalog *warehouse.Catalog, analyzer *counterparty.Analyzer, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		wh:       wh,
		catalog:  catalog,
		analyzer: analyzer,
		logger:   logger,
	}
}

// BuildAuto builds a merchant report when the user has a merchant profile,
// otherwise a cardholder report.
func (b *Builder) BuildAuto(ctx context.Context, userID int64) (*domain.CaseReport, error) {
	profile := b.profile(ctx, warehouse.TableMerchantReport, userID)
	if len(profile) > 0 {
		return b.build(ctx, userID, domain.SubjectMerchant, profile)
	}
	return b.Build(ctx, userID, domain.SubjectCardholder)
}

// Build assembles a report of the given kind. Source failures leave the
// corresponding section empty.
func (b *Builder) Build(ctx context.Context, userID int64, kind domain.SubjectKind) (*domain.CaseReport, error) {
	var profile domain.Record
	switch kind {
	case domain.SubjectMerchant:
		profile = b.profile(ctx, warehouse.TableMerchantReport, userID)
	case domain.SubjectCardholder:
		profile = b.profile(ctx, warehouse.TableCardholderReport, userID)
	default:
		return nil, fmt.Errorf("unknown subject kind %q", kind)
	}
	return b.build(ctx, userID, kind, profile)
}

func (b *Builder) build(ctx context.Context, userID int64, kind domain.SubjectKind, profile domain.Record) (*domain.CaseReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r := domain.NewCaseReport(userID, kind)
	r.SubjectInfo = profile

	if kind == domain.SubjectMerchant {
		r.IssuingConcentration = b.fetch(ctx, "issuing_concentration", userID,
			"SELECT * FROM %s WHERE user_id = ?", warehouse.TableIssuingPayments)
		r.TransactionConcentration = normalize.Omit(b.fetch(ctx, "transaction_concentration", userID,
			"SELECT * FROM %s WHERE merchant_id = ? ORDER BY total_approved_by_ch DESC", warehouse.TableCardholderConcentration),
			"merchant_id")
		r.ProductsOnline = b.fetch(ctx, "products_online", userID,
			"SELECT * FROM %s WHERE user_id = ?", warehouse.TableOnlineStore)
		r.DeniedTransactions = b.fetch(ctx, "denied_transactions", userID,
			"SELECT * FROM %s WHERE merchant_id = ? ORDER BY card_number", warehouse.TableRiskTransactions)
	} else {
		r.IssuingConcentration = normalize.Omit(b.fetch(ctx, "issuing_concentration", userID,
			"SELECT * FROM %s WHERE user_id = ?", warehouse.TableIssuingConcentration),
			"user_id")
	}

	pix := b.fetch(ctx, "pix_concentration", userID, "SELECT * FROM %s WHERE user_id = ?", warehouse.TablePixConcentration)
	r.PixCashIn, r.PixCashOut = SplitPix(pix)
	r.TotalCashInPix = Sum(r.PixCashIn, "pix_amount")
	r.TotalCashOutPix = Sum(r.PixCashOut, "pix_amount")
	r.TotalCashInPixAtypicalHours = Sum(r.PixCashIn, "pix_amount_atypical_hours")
	r.TotalCashOutPixAtypicalHours = Sum(r.PixCashOut, "pix_amount_atypical_hours")

	r.OffenseHistory = b.fetch(ctx, "offense_history", userID,
		"SELECT * FROM %s WHERE user_id = ? ORDER BY id DESC", warehouse.TableOffenseHistory)
	r.Contacts = b.fetch(ctx, "contacts", userID,
		"SELECT * FROM %s WHERE user_id = ?", warehouse.TablePhonecast)
	r.Devices = normalize.Omit(b.fetch(ctx, "devices", userID,
		"SELECT * FROM %s WHERE user_id = ?", warehouse.TableUserDevice), "user_id")
	r.Lawsuits = b.fetch(ctx, "lawsuits", userID,
		"SELECT * FROM %s WHERE user_id = ?", warehouse.TableLawsuits)
	r.BusinessData = b.fetch(ctx, "business_data", userID,
		"SELECT * FROM %s WHERE user_id = ?", warehouse.TableBusinessRelationships)
	r.PrisonTransactions = normalize.Omit(b.fetch(ctx, "prison_transactions", userID,
		"SELECT * FROM %s WHERE user_id = ?", warehouse.TablePrisonTransactions), "user_id")
	r.SanctionsHistory = b.fetch(ctx, "sanctions_history", userID,
		"SELECT * FROM %s WHERE user_id = ?", warehouse.TableSanctionsHistory)
	r.DeniedPixTransactions = b.query(ctx, "denied_pix_transactions",
		fmt.Sprintf("SELECT * FROM %s WHERE debitor_user_id = ? ORDER BY str_pix_transfer_id DESC",
			b.catalog.Table(warehouse.TableRiskPixTransfers)),
		fmt.Sprintf("%d", userID))
	r.BetsPixTransfers = b.query(ctx, "bets_pix_transfers",
		fmt.Sprintf(`SELECT transfer_type, pix_status, user_id, user_name, gateway,
			gateway_document_number, gateway_pix_key, gateway_name,
			SUM(transfer_amount) AS total_amount, COUNT(pix_transfer_id) AS count_transactions
			FROM %s WHERE user_id = ?
			GROUP BY transfer_type, pix_status, user_id, user_name, gateway,
			gateway_document_number, gateway_pix_key, gateway_name`,
			b.catalog.Table(warehouse.TableBetsPixTransfers)),
		userID)

	r.CounterpartyAnalysis = b.analyzer.Analyze(ctx, r.PixCashIn, r.PixCashOut, userID)

	b.logger.Debug("report built",
		"user_id", userID,
		"kind", kind,
		"pix_cash_in", len(r.PixCashIn),
		"pix_cash_out", len(r.PixCashOut),
		"counterparties", r.CounterpartyAnalysis.Summary.TotalAnalyzed,
	)
	return r, nil
}

// BettingHouses returns the reference list of known betting houses.
func (b *Builder) BettingHouses(ctx context.Context) []domain.Record {
	return b.query(ctx, "betting_houses",
		fmt.Sprintf("SELECT * FROM %s LIMIT %d", b.catalog.Table(warehouse.TableBettingHouses), bettingHousesLimit))
}

// PEPTransactions returns transactions between the user and politically exposed persons.
func (b *Builder) PEPTransactions(ctx context.Context, userID int64) []domain.Record {
	return b.fetch(ctx, "pep_transactions", userID, "SELECT * FROM %s WHERE user_id = ?", warehouse.TablePEPTransactions)
}

func (b *Builder) profile(ctx context.Context, table string, userID int64) domain.Record {
	rows := b.fetch(ctx, table, userID, "SELECT * FROM %s WHERE user_id = ? LIMIT 1", table)
	if len(rows) == 0 {
		return domain.Record{}
	}
	return rows[0]
}

func (b *Builder) fetch(ctx context.Context, section string, userID int64, format, table string) []domain.Record {
	return b.query(ctx, section, fmt.Sprintf(format, b.catalog.Table(table)), userID)
}

// query runs a section query and degrades failures to an empty section.
func (b *Builder) query(ctx context.Context, section, query string, args ...any) []domain.Record {
	rows, err := b.wh.Query(ctx, query, args...)
	if err != nil {
		b.logger.Warn("report section unavailable", "section", section, "error", err)
		return []domain.Record{}
	}
	if rows == nil {
		return []domain.Record{}
	}
	return rows
}

// SplitPix separates PIX concentration rows into cash-in and cash-out,
// rounded to cents.
func SplitPix(rows []domain.Record) (cashIn, cashOut []domain.Record) {
	cashIn, cashOut = []domain.Record{}, []domain.Record{}
	for _, row := range rows {
		switch normalize.String(row, "transaction_type") {
		case pixCashIn:
			cashIn = append(cashIn, normalize.Round(row, 2))
		case pixCashOut:
			cashOut = append(cashOut, normalize.Round(row, 2))
		}
	}
	return cashIn, cashOut
}

// Sum adds a numeric column with decimal arithmetic. Nulls count as zero.
func Sum(rows []domain.Record, key string) float64 {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(normalize.Decimal(row, key))
	}
	return total.InexactFloat64()
}

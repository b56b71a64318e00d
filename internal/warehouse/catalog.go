package warehouse

// Logical table names. Physical names are resolved through a Catalog.
const (
	TableMerchantReport          = "merchant_report"
	TableCardholderReport        = "cardholder_report"
	TableIssuingPayments         = "issuing_payments"
	TableIssuingConcentration    = "issuing_concentration"
	TablePixConcentration        = "pix_concentration"
	TableCardholderConcentration = "cardholder_concentration"
	TableOffenseHistory          = "offense_history"
	TableOnlineStore             = "online_store"
	TablePhonecast               = "phonecast"
	TableUserDevice              = "user_device"
	TableLawsuits                = "lawsuits"
	TableBusinessRelationships   = "business_relationships"
	TableSanctionsHistory        = "sanctions_history"
	TableRiskTransactions        = "risk_transactions"
	TableRiskPixTransfers        = "risk_pix_transfers"
	TablePrisonTransactions      = "prison_transactions"
	TableBetsPixTransfers        = "bets_pix_transfers"
	TablePEPTransactions         = "pep_transactions"
	TableBettingHouses           = "betting_houses"
	TableOffenseAnalyses         = "offense_analyses"
	TableOffenses                = "offenses"
	TablePredictions             = "predictions"
	TableTransactions            = "transactions"
	TableAnalysisLog             = "analysis_log"
)

var bigQueryTables = map[string]string{
	TableMerchantReport:          "`infinitepay-production.metrics_amlft.merchant_report`",
	TableCardholderReport:        "`infinitepay-production.metrics_amlft.cardholder_report`",
	TableIssuingPayments:         "`infinitepay-production.metrics_amlft.lavandowski_issuing_payments_data`",
	TableIssuingConcentration:    "`infinitepay-production.metrics_amlft.issuing_concentration`",
	TablePixConcentration:        "`infinitepay-production.metrics_amlft.pix_concentration`",
	TableCardholderConcentration: "`infinitepay-production.metrics_amlft.cardholder_concentration`",
	TableOffenseHistory:          "`infinitepay-production.metrics_amlft.lavandowski_offense_analysis_data`",
	TableOnlineStore:             "`infinitepay-production.metrics_amlft.lavandowski_online_store_data`",
	TablePhonecast:               "`infinitepay-production.metrics_amlft.lavandowski_phonecast_data`",
	TableUserDevice:              "`infinitepay-production.metrics_amlft.user_device`",
	TableLawsuits:                "`infinitepay-production.metrics_amlft.lavandowski_lawsuits_data`",
	TableBusinessRelationships:   "`infinitepay-production.metrics_amlft.lavandowski_business_relationships_data`",
	TableSanctionsHistory:        "`infinitepay-production.metrics_amlft.sanctions_history`",
	TableRiskTransactions:        "`infinitepay-production.metrics_amlft.lavandowski_risk_transactions_data`",
	TableRiskPixTransfers:        "`infinitepay-production.metrics_amlft.lavandowski_risk_pix_transfers_data`",
	TablePrisonTransactions:      "`infinitepay-production.metrics_amlft.prison_transactions`",
	TableBetsPixTransfers:        "`infinitepay-production.metrics_amlft.bets_pix_transfers`",
	TablePEPTransactions:         "`infinitepay-production.metrics_amlft.lavandowski_pep_transactions_data`",
	TableBettingHouses:           "`infinitepay-production.external_sources.betting_houses_document_numbers`",
	TableOffenseAnalyses:         "`infinitepay-production.maindb.offense_analyses`",
	TableOffenses:                "`infinitepay-production.maindb.offenses`",
	TablePredictions:             "`ai-services-sae.aml_model.predictions`",
	TableTransactions:            "`infinitepay-production.maindb.transactions`",
	TableAnalysisLog:             "`infinitepay-production.metrics_amlft.lavandowski_offense_analysis`",
}

// Catalog maps logical table names to physical ones.
type Catalog struct {
	tables map[string]string
}

// NewCatalog returns the default names for driver with overrides applied.
// BigQuery uses dataset-qualified names; SQL replicas use the logical names.
func NewCatalog(driver string, overrides map[string]string) *Catalog {
	tables := make(map[string]string, len(bigQueryTables))
	if driver == "bigquery" {
		for k, v := range bigQueryTables {
			tables[k] = v
		}
	}
	for k, v := range overrides {
		tables[k] = v
	}
	return &Catalog{tables: tables}
}

// Table returns the physical name for a logical table.
func (c *Catalog) Table(logical string) string {
	if c == nil {
		return logical
	}
	if name, ok := c.tables[logical]; ok {
		return name
	}
	return logical
}

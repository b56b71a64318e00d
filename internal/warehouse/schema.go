package warehouse

// Local replica schema for development and tests.
// Compatible with both SQLite and PostgreSQL. Production tables live in BigQuery.

const schemaProfiles = `
CREATE TABLE IF NOT EXISTS merchant_report (
    user_id BIGINT NOT NULL,
    name TEXT,
    document_number TEXT,
    mcc TEXT,
    status TEXT,
    total_tpv NUMERIC,
    created_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS cardholder_report (
    user_id BIGINT NOT NULL,
    name TEXT,
    document_number TEXT,
    status TEXT,
    total_issuing NUMERIC,
    created_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_merchant_report_user ON merchant_report(user_id);
CREATE INDEX IF NOT EXISTS idx_cardholder_report_user ON cardholder_report(user_id);
`

const schemaConcentration = `
CREATE TABLE IF NOT EXISTS issuing_payments (
    user_id BIGINT NOT NULL,
    merchant_name TEXT,
    merchant_mcc TEXT,
    total_amount NUMERIC,
    count_transactions INTEGER
);

CREATE TABLE IF NOT EXISTS issuing_concentration (
    user_id BIGINT NOT NULL,
    merchant_name TEXT,
    total_amount NUMERIC,
    count_transactions INTEGER
);

CREATE TABLE IF NOT EXISTS pix_concentration (
    user_id BIGINT NOT NULL,
    transaction_type TEXT NOT NULL,
    party TEXT,
    party_document_number TEXT,
    pix_amount NUMERIC,
    pix_amount_atypical_hours NUMERIC,
    pix_count INTEGER,
    created_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS cardholder_concentration (
    merchant_id BIGINT NOT NULL,
    cardholder_name TEXT,
    card_number TEXT,
    total_approved_by_ch NUMERIC,
    count_transactions INTEGER
);

CREATE INDEX IF NOT EXISTS idx_pix_concentration_user ON pix_concentration(user_id);
`

const schemaHistory = `
CREATE TABLE IF NOT EXISTS offense_history (
    id BIGINT NOT NULL,
    user_id BIGINT NOT NULL,
    offense_name TEXT,
    conclusion TEXT,
    priority TEXT,
    description TEXT,
    created_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS online_store (
    user_id BIGINT NOT NULL,
    product_name TEXT,
    price NUMERIC,
    created_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS phonecast (
    user_id BIGINT NOT NULL,
    contact_name TEXT,
    phone_number TEXT,
    is_blocked BOOLEAN
);

CREATE TABLE IF NOT EXISTS user_device (
    user_id BIGINT NOT NULL,
    device_model TEXT,
    os TEXT,
    ip_address TEXT,
    last_seen_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS lawsuits (
    user_id BIGINT NOT NULL,
    process_number TEXT,
    court TEXT,
    subject TEXT,
    status TEXT
);

CREATE TABLE IF NOT EXISTS business_relationships (
    user_id BIGINT NOT NULL,
    partner_name TEXT,
    partner_document TEXT,
    relationship TEXT
);

CREATE TABLE IF NOT EXISTS sanctions_history (
    user_id BIGINT NOT NULL,
    source TEXT,
    sanction_type TEXT,
    description TEXT,
    created_at TIMESTAMP
);
`

const schemaRisk = `
CREATE TABLE IF NOT EXISTS risk_transactions (
    merchant_id BIGINT NOT NULL,
    card_number TEXT,
    amount NUMERIC,
    denial_reason TEXT,
    created_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS risk_pix_transfers (
    debitor_user_id TEXT NOT NULL,
    str_pix_transfer_id TEXT,
    amount NUMERIC,
    reason TEXT,
    created_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS prison_transactions (
    user_id BIGINT NOT NULL,
    prison_name TEXT,
    amount NUMERIC,
    count_transactions INTEGER
);

CREATE TABLE IF NOT EXISTS bets_pix_transfers (
    pix_transfer_id TEXT NOT NULL,
    transfer_type TEXT,
    pix_status TEXT,
    user_id BIGINT NOT NULL,
    user_name TEXT,
    gateway TEXT,
    gateway_document_number TEXT,
    gateway_pix_key TEXT,
    gateway_name TEXT,
    transfer_amount NUMERIC,
    created_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS pep_transactions (
    user_id BIGINT NOT NULL,
    pep_name TEXT,
    pep_document TEXT,
    role TEXT,
    amount NUMERIC,
    created_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS betting_houses (
    document_number TEXT NOT NULL,
    name TEXT
);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS offenses (
    id BIGINT PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS offense_analyses (
    id BIGINT PRIMARY KEY,
    user_id BIGINT NOT NULL,
    offense_id BIGINT NOT NULL,
    analyst_id BIGINT,
    conclusion TEXT,
    priority TEXT,
    automatic_pipeline BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS predictions (
    user_id BIGINT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    label INTEGER NOT NULL,
    score NUMERIC,
    features TEXT
);

CREATE TABLE IF NOT EXISTS transactions (
    id BIGINT PRIMARY KEY,
    merchant_id BIGINT NOT NULL,
    amount NUMERIC NOT NULL,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS analysis_log (
    user_id BIGINT NOT NULL,
    alert_type TEXT,
    risk_score INTEGER,
    conclusion TEXT,
    processing_time REAL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_offense_analyses_created ON offense_analyses(created_at);
CREATE INDEX IF NOT EXISTS idx_transactions_merchant ON transactions(merchant_id, status);
CREATE INDEX IF NOT EXISTS idx_analysis_log_created ON analysis_log(created_at);
`

// AllSchemas returns all schema definitions in order.
func AllSchemas() []string {
	return []string{
		schemaProfiles,
		schemaConcentration,
		schemaHistory,
		schemaRisk,
		schemaAlerts,
	}
}

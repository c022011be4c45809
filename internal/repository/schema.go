package repository

// Schema definitions for the Harrier database.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    merchant_id TEXT,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    channel TEXT NOT NULL,
    occurred_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL,
    device_id TEXT,
    ip_address TEXT,
    country TEXT,
    label_fraud INTEGER
);

CREATE INDEX IF NOT EXISTS idx_transactions_customer ON transactions(customer_id, occurred_at);
CREATE INDEX IF NOT EXISTS idx_transactions_merchant ON transactions(merchant_id);
`

const schemaBehaviorProfiles = `
CREATE TABLE IF NOT EXISTS behavior_profiles (
    customer_id TEXT PRIMARY KEY,
    tx_count_10m INTEGER NOT NULL DEFAULT 0,
    tx_count_30m INTEGER NOT NULL DEFAULT 0,
    tx_count_24h INTEGER NOT NULL DEFAULT 0,
    avg_amount_24h REAL NOT NULL DEFAULT 0,
    usual_country TEXT,
    usual_ip TEXT,
    usual_hour_band TEXT,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaRules = `
CREATE TABLE IF NOT EXISTS rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    expression TEXT NOT NULL,
    severity TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    created_by TEXT,
    updated_at TIMESTAMP NOT NULL,
    updated_by TEXT
);

CREATE INDEX IF NOT EXISTS idx_rules_enabled ON rules(enabled, created_at);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL,
    transaction_occurred_at TIMESTAMP NOT NULL,
    action TEXT NOT NULL,
    ml_score REAL NOT NULL,
    final_score REAL NOT NULL,
    rule_hits TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    created_by TEXT
);

CREATE INDEX IF NOT EXISTS idx_alerts_transaction ON alerts(transaction_id);
CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at);
`

// One case per alert, enforced at the storage layer.
const schemaCases = `
CREATE TABLE IF NOT EXISTS cases (
    id TEXT PRIMARY KEY,
    alert_id TEXT NOT NULL UNIQUE,
    analyst_id TEXT NOT NULL,
    decision TEXT NOT NULL,
    notes TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cases_analyst ON cases(analyst_id);
CREATE INDEX IF NOT EXISTS idx_cases_decision ON cases(decision);
`

const schemaAnalysts = `
CREATE TABLE IF NOT EXISTS analysts (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    role TEXT
);
`

const schemaCustomers = `
CREATE TABLE IF NOT EXISTS customers (
    id TEXT PRIMARY KEY,
    full_name TEXT NOT NULL,
    document_number TEXT,
    segment TEXT,
    age INTEGER,
    risk_profile TEXT
);
`

const schemaMerchants = `
CREATE TABLE IF NOT EXISTS merchants (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    category TEXT,
    risk_level TEXT,
    is_whitelisted INTEGER NOT NULL DEFAULT 0,
    is_blacklisted INTEGER NOT NULL DEFAULT 0
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaBehaviorProfiles,
		schemaRules,
		schemaAlerts,
		schemaCases,
		schemaAnalysts,
		schemaCustomers,
		schemaMerchants,
	}
}

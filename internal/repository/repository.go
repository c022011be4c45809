// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a transaction.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("%w: transaction id is required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO transactions (
			id, customer_id, merchant_id, amount, currency, channel,
			occurred_at, created_at, device_id, ip_address, country, label_fraud
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tx.CustomerID, tx.MerchantID,
		tx.Amount, tx.Currency, string(tx.Channel),
		tx.OccurredAt, tx.CreatedAt,
		tx.DeviceID, tx.IPAddress, tx.Country,
		boolPtrToNull(tx.LabelFraud),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: transaction %s", domain.ErrAlreadyExists, tx.ID)
	}
	return err
}

// GetTransaction retrieves a transaction by ID.
func (r *SQLRepository) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	query := `
		SELECT id, customer_id, merchant_id, amount, currency, channel,
			   occurred_at, created_at, device_id, ip_address, country, label_fraud
		FROM transactions
		WHERE id = ?
	`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, r.rebind(query), txID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return tx, err
}

// ListTransactionsByCustomer retrieves a customer's transactions since a
// point in time, most recent first.
func (r *SQLRepository) ListTransactionsByCustomer(ctx context.Context, customerID string, since time.Time) ([]*domain.Transaction, error) {
	query := `
		SELECT id, customer_id, merchant_id, amount, currency, channel,
			   occurred_at, created_at, device_id, ip_address, country, label_fraud
		FROM transactions
		WHERE customer_id = ? AND occurred_at >= ?
		ORDER BY occurred_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), customerID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var merchantID, deviceID, ipAddress, country sql.NullString
	var labelFraud sql.NullInt64

	err := row.Scan(
		&tx.ID, &tx.CustomerID, &merchantID,
		&tx.Amount, &tx.Currency, &tx.Channel,
		&tx.OccurredAt, &tx.CreatedAt,
		&deviceID, &ipAddress, &country,
		&labelFraud,
	)
	if err != nil {
		return nil, err
	}

	tx.MerchantID = merchantID.String
	tx.DeviceID = deviceID.String
	tx.IPAddress = ipAddress.String
	tx.Country = country.String
	if labelFraud.Valid {
		label := labelFraud.Int64 == 1
		tx.LabelFraud = &label
	}

	return &tx, nil
}

// GetBehaviorProfile retrieves a customer's behavior profile.
func (r *SQLRepository) GetBehaviorProfile(ctx context.Context, customerID string) (*domain.BehaviorProfile, error) {
	if customerID == "" {
		return nil, fmt.Errorf("%w: customerID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT customer_id, tx_count_10m, tx_count_30m, tx_count_24h,
			   avg_amount_24h, usual_country, usual_ip, usual_hour_band, updated_at
		FROM behavior_profiles
		WHERE customer_id = ?
	`

	var p domain.BehaviorProfile
	var usualCountry, usualIP, usualHourBand sql.NullString

	err := r.db.QueryRowContext(ctx, r.rebind(query), customerID).Scan(
		&p.CustomerID, &p.TxCount10m, &p.TxCount30m, &p.TxCount24h,
		&p.AvgAmount24h, &usualCountry, &usualIP, &usualHourBand, &p.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.UsualCountry = usualCountry.String
	p.UsualIP = usualIP.String
	p.UsualHourBand = usualHourBand.String

	return &p, nil
}

// SaveBehaviorProfile upserts a customer's behavior profile. The single
// statement makes concurrent refreshes for one customer last-writer-wins
// instead of duplicating rows.
func (r *SQLRepository) SaveBehaviorProfile(ctx context.Context, profile *domain.BehaviorProfile) (*domain.BehaviorProfile, error) {
	if profile.CustomerID == "" {
		return nil, fmt.Errorf("%w: customerID is required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO behavior_profiles (
			customer_id, tx_count_10m, tx_count_30m, tx_count_24h,
			avg_amount_24h, usual_country, usual_ip, usual_hour_band, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(customer_id) DO UPDATE SET
			tx_count_10m = excluded.tx_count_10m,
			tx_count_30m = excluded.tx_count_30m,
			tx_count_24h = excluded.tx_count_24h,
			avg_amount_24h = excluded.avg_amount_24h,
			usual_country = excluded.usual_country,
			usual_ip = excluded.usual_ip,
			usual_hour_band = excluded.usual_hour_band,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		profile.CustomerID, profile.TxCount10m, profile.TxCount30m, profile.TxCount24h,
		profile.AvgAmount24h, profile.UsualCountry, profile.UsualIP, profile.UsualHourBand,
		profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// ComputeRecentAggregates recomputes a customer's rolling aggregates
// from the transaction history. The window counts come from a single
// 24h scan; the usual country and IP consider the full history.
func (r *SQLRepository) ComputeRecentAggregates(ctx context.Context, customerID string) (*domain.BehaviorStats, error) {
	if customerID == "" {
		return nil, fmt.Errorf("%w: customerID is required", domain.ErrInvalidInput)
	}

	now := time.Now().UTC()

	query := `
		SELECT amount, occurred_at
		FROM transactions
		WHERE customer_id = ? AND occurred_at >= ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), customerID, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats domain.BehaviorStats
	var total float64
	for rows.Next() {
		var amount float64
		var occurredAt time.Time
		if err := rows.Scan(&amount, &occurredAt); err != nil {
			return nil, err
		}

		age := now.Sub(occurredAt)
		stats.TxCount24h++
		total += amount
		if age <= 30*time.Minute {
			stats.TxCount30m++
		}
		if age <= 10*time.Minute {
			stats.TxCount10m++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if stats.TxCount24h > 0 {
		stats.AvgAmount24h = total / float64(stats.TxCount24h)
	}

	stats.UsualCountry, err = r.mostFrequent(ctx, customerID, "country")
	if err != nil {
		return nil, err
	}
	stats.UsualIP, err = r.mostFrequent(ctx, customerID, "ip_address")
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

// mostFrequent returns the customer's most frequent non-empty value for
// a transaction column, breaking count ties by value for determinism.
func (r *SQLRepository) mostFrequent(ctx context.Context, customerID, column string) (string, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM transactions
		WHERE customer_id = ? AND %s IS NOT NULL AND %s != ''
		GROUP BY %s
		ORDER BY COUNT(*) DESC, %s ASC
		LIMIT 1
	`, column, column, column, column, column)

	var value string
	err := r.db.QueryRowContext(ctx, r.rebind(query), customerID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SaveRule upserts a rule by ID. A name collision with another rule is
// surfaced as domain.ErrAlreadyExists.
func (r *SQLRepository) SaveRule(ctx context.Context, rule *domain.Rule) error {
	if rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", domain.ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	query := `
		INSERT INTO rules (
			id, name, expression, severity, enabled,
			created_at, created_by, updated_at, updated_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			expression = excluded.expression,
			severity = excluded.severity,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at,
			updated_by = excluded.updated_by
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Expression, string(rule.Severity), enabled,
		rule.CreatedAt, rule.CreatedBy, rule.UpdatedAt, rule.UpdatedBy,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: rule named %q", domain.ErrAlreadyExists, rule.Name)
	}
	return err
}

// GetRule retrieves a rule by ID.
func (r *SQLRepository) GetRule(ctx context.Context, ruleID string) (*domain.Rule, error) {
	query := `
		SELECT id, name, expression, severity, enabled,
			   created_at, created_by, updated_at, updated_by
		FROM rules
		WHERE id = ?
	`

	rule, err := scanRule(r.db.QueryRowContext(ctx, r.rebind(query), ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rule, err
}

// ListRules retrieves all rules, oldest first.
func (r *SQLRepository) ListRules(ctx context.Context) ([]*domain.Rule, error) {
	return r.listRules(ctx, `
		SELECT id, name, expression, severity, enabled,
			   created_at, created_by, updated_at, updated_by
		FROM rules
		ORDER BY created_at ASC, id ASC
	`)
}

// ListEnabledRules retrieves the enabled rules in their stable
// evaluation order (creation order).
func (r *SQLRepository) ListEnabledRules(ctx context.Context) ([]*domain.Rule, error) {
	return r.listRules(ctx, `
		SELECT id, name, expression, severity, enabled,
			   created_at, created_by, updated_at, updated_by
		FROM rules
		WHERE enabled = 1
		ORDER BY created_at ASC, id ASC
	`)
}

func (r *SQLRepository) listRules(ctx context.Context, query string) ([]*domain.Rule, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

func scanRule(row rowScanner) (*domain.Rule, error) {
	var rule domain.Rule
	var enabled int
	var createdBy, updatedBy sql.NullString

	err := row.Scan(
		&rule.ID, &rule.Name, &rule.Expression, &rule.Severity, &enabled,
		&rule.CreatedAt, &createdBy, &rule.UpdatedAt, &updatedBy,
	)
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled == 1
	rule.CreatedBy = createdBy.String
	rule.UpdatedBy = updatedBy.String

	return &rule, nil
}

// CreateAlert stores a new alert. The rule hits travel as a JSON
// payload inside the row.
func (r *SQLRepository) CreateAlert(ctx context.Context, alert *domain.Alert) (*domain.Alert, error) {
	if alert.ID == "" {
		return nil, fmt.Errorf("%w: alert id is required", domain.ErrInvalidInput)
	}

	hits, err := json.Marshal(alert.RuleHits)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rule hits: %w", err)
	}

	query := `
		INSERT INTO alerts (
			id, transaction_id, transaction_occurred_at,
			action, ml_score, final_score, rule_hits, created_at, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		alert.ID, alert.TransactionID, alert.TransactionOccurredAt,
		string(alert.Action), alert.MLScore, alert.FinalScore,
		string(hits), alert.CreatedAt, alert.CreatedBy,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: alert %s", domain.ErrAlreadyExists, alert.ID)
	}
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// GetAlert retrieves an alert by ID.
func (r *SQLRepository) GetAlert(ctx context.Context, alertID string) (*domain.Alert, error) {
	query := `
		SELECT id, transaction_id, transaction_occurred_at,
			   action, ml_score, final_score, rule_hits, created_at, created_by
		FROM alerts
		WHERE id = ?
	`

	alert, err := scanAlert(r.db.QueryRowContext(ctx, r.rebind(query), alertID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return alert, err
}

// ListRecentAlerts retrieves the newest alerts, up to limit.
func (r *SQLRepository) ListRecentAlerts(ctx context.Context, limit int) ([]*domain.Alert, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, transaction_id, transaction_occurred_at,
			   action, ml_score, final_score, rule_hits, created_at, created_by
		FROM alerts
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}

	return alerts, rows.Err()
}

func scanAlert(row rowScanner) (*domain.Alert, error) {
	var alert domain.Alert
	var hits string
	var createdBy sql.NullString

	err := row.Scan(
		&alert.ID, &alert.TransactionID, &alert.TransactionOccurredAt,
		&alert.Action, &alert.MLScore, &alert.FinalScore,
		&hits, &alert.CreatedAt, &createdBy,
	)
	if err != nil {
		return nil, err
	}

	alert.CreatedBy = createdBy.String
	if err := json.Unmarshal([]byte(hits), &alert.RuleHits); err != nil {
		return nil, fmt.Errorf("failed to parse rule hits for alert %s: %w", alert.ID, err)
	}

	return &alert, nil
}

// CreateCase stores a new case. The UNIQUE constraint on alert_id makes
// a second case for the same alert fail with domain.ErrAlreadyExists.
func (r *SQLRepository) CreateCase(ctx context.Context, c *domain.Case) (*domain.Case, error) {
	if c.ID == "" {
		return nil, fmt.Errorf("%w: case id is required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO cases (
			id, alert_id, analyst_id, decision, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		c.ID, c.AlertID, c.AnalystID, string(c.Decision), c.Notes,
		c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: case for alert %s", domain.ErrAlreadyExists, c.AlertID)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetCase retrieves a case by ID.
func (r *SQLRepository) GetCase(ctx context.Context, caseID string) (*domain.Case, error) {
	query := `
		SELECT id, alert_id, analyst_id, decision, notes, created_at, updated_at
		FROM cases
		WHERE id = ?
	`
	return r.getCase(ctx, query, caseID)
}

// GetCaseByAlert retrieves the case opened for an alert.
func (r *SQLRepository) GetCaseByAlert(ctx context.Context, alertID string) (*domain.Case, error) {
	query := `
		SELECT id, alert_id, analyst_id, decision, notes, created_at, updated_at
		FROM cases
		WHERE alert_id = ?
	`
	return r.getCase(ctx, query, alertID)
}

func (r *SQLRepository) getCase(ctx context.Context, query, arg string) (*domain.Case, error) {
	c, err := scanCase(r.db.QueryRowContext(ctx, r.rebind(query), arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return c, err
}

// UpdateCase persists a case's decision and notes.
func (r *SQLRepository) UpdateCase(ctx context.Context, c *domain.Case) (*domain.Case, error) {
	query := `
		UPDATE cases
		SET decision = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		string(c.Decision), c.Notes, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return nil, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, domain.ErrNotFound
	}

	return c, nil
}

// ListCases retrieves cases newest first, with limit/offset paging.
func (r *SQLRepository) ListCases(ctx context.Context, limit, offset int) ([]*domain.Case, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, alert_id, analyst_id, decision, notes, created_at, updated_at
		FROM cases
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []*domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}

	return cases, rows.Err()
}

func scanCase(row rowScanner) (*domain.Case, error) {
	var c domain.Case
	err := row.Scan(
		&c.ID, &c.AlertID, &c.AnalystID, &c.Decision, &c.Notes,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveAnalyst upserts an analyst.
func (r *SQLRepository) SaveAnalyst(ctx context.Context, analyst *domain.Analyst) error {
	query := `
		INSERT INTO analysts (id, name, email, role)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		analyst.ID, analyst.Name, analyst.Email, analyst.Role,
	)
	return err
}

// ListAnalysts retrieves all analysts in a stable order.
func (r *SQLRepository) ListAnalysts(ctx context.Context) ([]*domain.Analyst, error) {
	query := `
		SELECT id, name, email, role
		FROM analysts
		ORDER BY name ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analysts []*domain.Analyst
	for rows.Next() {
		var a domain.Analyst
		var role sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &role); err != nil {
			return nil, err
		}
		a.Role = role.String
		analysts = append(analysts, &a)
	}

	return analysts, rows.Err()
}

// SaveCustomer upserts a customer.
func (r *SQLRepository) SaveCustomer(ctx context.Context, customer *domain.Customer) error {
	query := `
		INSERT INTO customers (id, full_name, document_number, segment, age, risk_profile)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			full_name = excluded.full_name,
			document_number = excluded.document_number,
			segment = excluded.segment,
			age = excluded.age,
			risk_profile = excluded.risk_profile
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		customer.ID, customer.FullName, customer.DocumentNumber,
		customer.Segment, customer.Age, customer.RiskProfile,
	)
	return err
}

// GetCustomer retrieves a customer by ID.
func (r *SQLRepository) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	query := `
		SELECT id, full_name, document_number, segment, age, risk_profile
		FROM customers
		WHERE id = ?
	`

	var c domain.Customer
	var document, segment, riskProfile sql.NullString
	var age sql.NullInt64

	err := r.db.QueryRowContext(ctx, r.rebind(query), customerID).Scan(
		&c.ID, &c.FullName, &document, &segment, &age, &riskProfile,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.DocumentNumber = document.String
	c.Segment = segment.String
	c.Age = int(age.Int64)
	c.RiskProfile = riskProfile.String

	return &c, nil
}

// SaveMerchant upserts a merchant.
func (r *SQLRepository) SaveMerchant(ctx context.Context, merchant *domain.Merchant) error {
	whitelisted := 0
	if merchant.IsWhitelisted {
		whitelisted = 1
	}
	blacklisted := 0
	if merchant.IsBlacklisted {
		blacklisted = 1
	}

	query := `
		INSERT INTO merchants (id, name, category, risk_level, is_whitelisted, is_blacklisted)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			risk_level = excluded.risk_level,
			is_whitelisted = excluded.is_whitelisted,
			is_blacklisted = excluded.is_blacklisted
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		merchant.ID, merchant.Name, merchant.Category, merchant.RiskLevel,
		whitelisted, blacklisted,
	)
	return err
}

// GetMerchant retrieves a merchant by ID.
func (r *SQLRepository) GetMerchant(ctx context.Context, merchantID string) (*domain.Merchant, error) {
	query := `
		SELECT id, name, category, risk_level, is_whitelisted, is_blacklisted
		FROM merchants
		WHERE id = ?
	`

	var m domain.Merchant
	var category, riskLevel sql.NullString
	var whitelisted, blacklisted int

	err := r.db.QueryRowContext(ctx, r.rebind(query), merchantID).Scan(
		&m.ID, &m.Name, &category, &riskLevel, &whitelisted, &blacklisted,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	m.Category = category.String
	m.RiskLevel = riskLevel.String
	m.IsWhitelisted = whitelisted == 1
	m.IsBlacklisted = blacklisted == 1

	return &m, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

// isUniqueViolation recognizes unique constraint errors from both
// drivers without depending on driver error types.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // modernc.org/sqlite
		strings.Contains(msg, "duplicate key value") // lib/pq
}

func boolPtrToNull(b *bool) any {
	if b == nil {
		return nil
	}
	if *b {
		return 1
	}
	return 0
}

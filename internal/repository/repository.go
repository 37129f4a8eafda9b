// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
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

// SaveApplication upserts an application with tenant isolation.
func (r *SQLRepository) SaveApplication(ctx context.Context, tenantID string, app *domain.Application) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO applications (
			id, tenant_id, first_name, last_name, email, pan, aadhaar,
			company_name, monthly_salary, existing_emi, loan_amount,
			property_valuation, credit_score, is_rented, has_own_property,
			is_non_agricultural, has_existing_mortgage, status,
			interest_rate, tenure_years, emi_amount, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			interest_rate = excluded.interest_rate,
			tenure_years = excluded.tenure_years,
			emi_amount = excluded.emi_amount,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		app.ID, tenantID, app.FirstName, app.LastName, app.Email, app.PAN, app.Aadhaar,
		app.CompanyName, app.MonthlySalary, app.ExistingEMI, app.LoanAmount,
		app.PropertyValuation, app.CreditScore, boolInt(app.IsRented), boolInt(app.HasOwnProperty),
		boolInt(app.IsNonAgricultural), boolInt(app.HasExistingMortgage), app.Status,
		app.InterestRate, app.TenureYears, app.EMIAmount, app.CreatedAt, app.UpdatedAt,
	)
	return err
}

// GetApplication retrieves an application by ID with tenant isolation.
func (r *SQLRepository) GetApplication(ctx context.Context, tenantID string, appID string) (*domain.Application, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, first_name, last_name, email, pan, aadhaar,
			   company_name, monthly_salary, existing_emi, loan_amount,
			   property_valuation, credit_score, is_rented, has_own_property,
			   is_non_agricultural, has_existing_mortgage, status,
			   interest_rate, tenure_years, emi_amount, created_at, updated_at
		FROM applications
		WHERE tenant_id = ? AND id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, appID)
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return app, err
}

// GetApplicationsByPAN retrieves recent applications for a PAN with
// tenant isolation.
func (r *SQLRepository) GetApplicationsByPAN(ctx context.Context, tenantID string, pan string, since time.Time) ([]*domain.Application, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, first_name, last_name, email, pan, aadhaar,
			   company_name, monthly_salary, existing_emi, loan_amount,
			   property_valuation, credit_score, is_rented, has_own_property,
			   is_non_agricultural, has_existing_mortgage, status,
			   interest_rate, tenure_years, emi_amount, created_at, updated_at
		FROM applications
		WHERE tenant_id = ? AND pan = ? AND created_at >= ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, pan, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []*domain.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*domain.Application, error) {
	var app domain.Application
	var isRented, hasOwn, isNA, hasMortgage int
	var email, aadhaar, company sql.NullString
	var rate, emi sql.NullFloat64
	var tenure sql.NullInt64

	err := row.Scan(
		&app.ID, &app.TenantID, &app.FirstName, &app.LastName, &email, &app.PAN, &aadhaar,
		&company, &app.MonthlySalary, &app.ExistingEMI, &app.LoanAmount,
		&app.PropertyValuation, &app.CreditScore, &isRented, &hasOwn,
		&isNA, &hasMortgage, &app.Status,
		&rate, &tenure, &emi, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	app.Email = email.String
	app.Aadhaar = aadhaar.String
	app.CompanyName = company.String
	app.IsRented = isRented == 1
	app.HasOwnProperty = hasOwn == 1
	app.IsNonAgricultural = isNA == 1
	app.HasExistingMortgage = hasMortgage == 1
	app.InterestRate = rate.Float64
	app.TenureYears = int(tenure.Int64)
	app.EMIAmount = emi.Float64
	return &app, nil
}

// SaveDocument stores a document with tenant isolation.
func (r *SQLRepository) SaveDocument(ctx context.Context, tenantID string, doc *domain.Document) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO documents (
			id, tenant_id, application_id, type, filename, content_ref, size_bytes, uploaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		doc.ID, tenantID, doc.ApplicationID, doc.Type,
		doc.Filename, doc.ContentRef, doc.SizeBytes, doc.UploadedAt,
	)
	return err
}

// ListDocuments retrieves the documents for an application.
func (r *SQLRepository) ListDocuments(ctx context.Context, tenantID string, appID string) ([]domain.Document, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, application_id, type, filename, content_ref, size_bytes, uploaded_at
		FROM documents
		WHERE tenant_id = ? AND application_id = ?
		ORDER BY uploaded_at
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var doc domain.Document
		var contentRef sql.NullString
		if err := rows.Scan(
			&doc.ID, &doc.ApplicationID, &doc.Type,
			&doc.Filename, &contentRef, &doc.SizeBytes, &doc.UploadedAt,
		); err != nil {
			return nil, err
		}
		doc.ContentRef = contentRef.String
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// SaveReports stores one evaluation's facet reports atomically.
func (r *SQLRepository) SaveReports(ctx context.Context, tenantID string, reports []*domain.VerificationReport) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO verification_reports (
			id, tenant_id, application_id, facet, status, risk_score,
			issues, detail, process_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, rep := range reports {
		issues, _ := json.Marshal(rep.Issues)
		detail, _ := json.Marshal(rep.Detail)
		if _, err := tx.ExecContext(ctx, r.rebind(query),
			rep.ID, tenantID, rep.ApplicationID, rep.Facet, rep.Status, rep.RiskScore,
			string(issues), string(detail), rep.ProcessMs, rep.CreatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListReports retrieves the most recent report per facet for an
// application, in canonical facet order.
func (r *SQLRepository) ListReports(ctx context.Context, tenantID string, appID string) ([]*domain.VerificationReport, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, application_id, facet, status, risk_score, issues, detail, process_ms, created_at
		FROM verification_reports
		WHERE tenant_id = ? AND application_id = ?
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	latest := make(map[string]*domain.VerificationReport)
	for rows.Next() {
		var rep domain.VerificationReport
		var issues, detail string
		if err := rows.Scan(
			&rep.ID, &rep.ApplicationID, &rep.Facet, &rep.Status, &rep.RiskScore,
			&issues, &detail, &rep.ProcessMs, &rep.CreatedAt,
		); err != nil {
			return nil, err
		}
		if issues != "" {
			json.Unmarshal([]byte(issues), &rep.Issues)
		}
		if detail != "" && detail != "null" {
			var d any
			json.Unmarshal([]byte(detail), &d)
			rep.Detail = d
		}
		latest[rep.Facet] = &rep
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var reports []*domain.VerificationReport
	for _, facet := range domain.Facets() {
		if rep, ok := latest[facet]; ok {
			reports = append(reports, rep)
		}
	}
	return reports, nil
}

// SaveDecision stores a decision result with tenant isolation.
func (r *SQLRepository) SaveDecision(ctx context.Context, tenantID string, dec *domain.DecisionResult) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	terms, _ := json.Marshal(dec.Terms)
	contributions, _ := json.Marshal(dec.Contributions)
	knockouts, _ := json.Marshal(dec.Knockouts)
	metadata, _ := json.Marshal(dec.Metadata)

	query := `
		INSERT INTO decisions (
			id, tenant_id, application_id, status, risk_score, risk_level,
			reason, terms, contributions, knockouts, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		dec.ID, tenantID, dec.ApplicationID, dec.Status, dec.RiskScore, dec.RiskLevel,
		dec.Reason, string(terms), string(contributions), string(knockouts),
		string(metadata), dec.CreatedAt,
	)
	return err
}

// GetDecision retrieves a decision by ID with tenant isolation.
func (r *SQLRepository) GetDecision(ctx context.Context, tenantID string, decisionID string) (*domain.DecisionResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, application_id, status, risk_score, risk_level,
			   reason, terms, contributions, knockouts, metadata, created_at
		FROM decisions
		WHERE tenant_id = ? AND id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, decisionID)
	dec, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return dec, err
}

// LatestDecision retrieves the newest decision for an application.
func (r *SQLRepository) LatestDecision(ctx context.Context, tenantID string, appID string) (*domain.DecisionResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, application_id, status, risk_score, risk_level,
			   reason, terms, contributions, knockouts, metadata, created_at
		FROM decisions
		WHERE tenant_id = ? AND application_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, appID)
	dec, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return dec, err
}

func scanDecision(row rowScanner) (*domain.DecisionResult, error) {
	var dec domain.DecisionResult
	var terms, contributions, knockouts, metadata string

	err := row.Scan(
		&dec.ID, &dec.TenantID, &dec.ApplicationID, &dec.Status, &dec.RiskScore, &dec.RiskLevel,
		&dec.Reason, &terms, &contributions, &knockouts, &metadata, &dec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if terms != "" && terms != "null" {
		var t domain.LoanTerms
		if err := json.Unmarshal([]byte(terms), &t); err == nil {
			dec.Terms = &t
		}
	}
	json.Unmarshal([]byte(contributions), &dec.Contributions)
	json.Unmarshal([]byte(knockouts), &dec.Knockouts)
	json.Unmarshal([]byte(metadata), &dec.Metadata)
	return &dec, nil
}

// ReplaceSchedule deletes any existing schedule for the application
// before inserting, so re-evaluation never duplicates installments.
func (r *SQLRepository) ReplaceSchedule(ctx context.Context, tenantID string, appID string, entries []domain.AmortizationEntry) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	del := `DELETE FROM amortization_entries WHERE tenant_id = ? AND application_id = ?`
	if _, err := tx.ExecContext(ctx, r.rebind(del), tenantID, appID); err != nil {
		return err
	}

	ins := `
		INSERT INTO amortization_entries (
			tenant_id, application_id, month, due_date, emi, principal_part, interest_part, remaining_balance
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, r.rebind(ins),
			tenantID, appID, e.Month, e.DueDate, e.EMI, e.PrincipalPart, e.InterestPart, e.RemainingBalance,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListSchedule retrieves the amortization schedule for an application.
func (r *SQLRepository) ListSchedule(ctx context.Context, tenantID string, appID string) ([]domain.AmortizationEntry, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT month, due_date, emi, principal_part, interest_part, remaining_balance
		FROM amortization_entries
		WHERE tenant_id = ? AND application_id = ?
		ORDER BY month
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AmortizationEntry
	for rows.Next() {
		var e domain.AmortizationEntry
		if err := rows.Scan(&e.Month, &e.DueDate, &e.EMI, &e.PrincipalPart, &e.InterestPart, &e.RemainingBalance); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
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

package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaApplications = `
CREATE TABLE IF NOT EXISTS applications (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL,
    email TEXT,
    pan TEXT NOT NULL,
    aadhaar TEXT,
    company_name TEXT,
    monthly_salary REAL NOT NULL,
    existing_emi REAL NOT NULL DEFAULT 0,
    loan_amount REAL NOT NULL,
    property_valuation REAL NOT NULL,
    credit_score INTEGER NOT NULL,
    is_rented INTEGER NOT NULL DEFAULT 0,
    has_own_property INTEGER NOT NULL DEFAULT 0,
    is_non_agricultural INTEGER NOT NULL DEFAULT 0,
    has_existing_mortgage INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    interest_rate REAL,
    tenure_years INTEGER,
    emi_amount REAL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_applications_tenant ON applications(tenant_id);
CREATE INDEX IF NOT EXISTS idx_applications_pan ON applications(tenant_id, pan);
CREATE INDEX IF NOT EXISTS idx_applications_status ON applications(tenant_id, status);
`

const schemaDocuments = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    application_id TEXT NOT NULL,
    type TEXT NOT NULL,
    filename TEXT NOT NULL,
    content_ref TEXT,
    size_bytes INTEGER NOT NULL DEFAULT 0,
    uploaded_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_tenant ON documents(tenant_id);
CREATE INDEX IF NOT EXISTS idx_documents_application ON documents(tenant_id, application_id);
`

const schemaReports = `
CREATE TABLE IF NOT EXISTS verification_reports (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    application_id TEXT NOT NULL,
    facet TEXT NOT NULL,
    status TEXT NOT NULL,
    risk_score REAL NOT NULL,
    issues TEXT,
    detail TEXT,
    process_ms INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_tenant ON verification_reports(tenant_id);
CREATE INDEX IF NOT EXISTS idx_reports_application ON verification_reports(tenant_id, application_id);
CREATE INDEX IF NOT EXISTS idx_reports_facet ON verification_reports(tenant_id, application_id, facet);
`

const schemaDecisions = `
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    application_id TEXT NOT NULL,
    status TEXT NOT NULL,
    risk_score REAL NOT NULL,
    risk_level TEXT NOT NULL,
    reason TEXT NOT NULL,
    terms TEXT,
    contributions TEXT,
    knockouts TEXT,
    metadata TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_tenant ON decisions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_decisions_application ON decisions(tenant_id, application_id);
CREATE INDEX IF NOT EXISTS idx_decisions_status ON decisions(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_decisions_created ON decisions(tenant_id, created_at);
`

const schemaSchedules = `
CREATE TABLE IF NOT EXISTS amortization_entries (
    tenant_id TEXT NOT NULL,
    application_id TEXT NOT NULL,
    month INTEGER NOT NULL,
    due_date TIMESTAMP NOT NULL,
    emi REAL NOT NULL,
    principal_part REAL NOT NULL,
    interest_part REAL NOT NULL,
    remaining_balance REAL NOT NULL,
    PRIMARY KEY (tenant_id, application_id, month)
);

CREATE INDEX IF NOT EXISTS idx_schedule_application ON amortization_entries(tenant_id, application_id);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaApplications,
		schemaDocuments,
		schemaReports,
		schemaDecisions,
		schemaSchedules,
	}
}

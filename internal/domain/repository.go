// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Application operations
	SaveApplication(ctx context.Context, tenantID string, app *Application) error
	GetApplication(ctx context.Context, tenantID string, appID string) (*Application, error)
	GetApplicationsByPAN(ctx context.Context, tenantID string, pan string, since time.Time) ([]*Application, error)

	// Document operations
	SaveDocument(ctx context.Context, tenantID string, doc *Document) error
	ListDocuments(ctx context.Context, tenantID string, appID string) ([]Document, error)

	// Verification reports
	SaveReports(ctx context.Context, tenantID string, reports []*VerificationReport) error
	ListReports(ctx context.Context, tenantID string, appID string) ([]*VerificationReport, error)

	// Decisions
	SaveDecision(ctx context.Context, tenantID string, dec *DecisionResult) error
	GetDecision(ctx context.Context, tenantID string, decisionID string) (*DecisionResult, error)
	LatestDecision(ctx context.Context, tenantID string, appID string) (*DecisionResult, error)

	// Repayment schedule. ReplaceSchedule removes any prior schedule
	// for the application before inserting, so re-evaluation is
	// idempotent.
	ReplaceSchedule(ctx context.Context, tenantID string, appID string, entries []AmortizationEntry) error
	ListSchedule(ctx context.Context, tenantID string, appID string) ([]AmortizationEntry, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

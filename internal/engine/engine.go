// Package engine orchestrates the instant credit decision: facet
// fan-out, aggregation, knockout screening, pricing, persistence and
// event publication.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/finance"
	"github.com/opensource-finance/kestrel/internal/policy"
	"github.com/opensource-finance/kestrel/internal/verify"

	"github.com/opensource-finance/kestrel/internal/notify"
)

const Version = "1.0.0"

// ErrInvalidApplication marks input errors that are fatal to the
// application's processing. They are never silently defaulted into the
// decision math.
var ErrInvalidApplication = errors.New("invalid application")

// Engine runs the full evaluation pipeline for one application per
// Evaluate call. Each invocation is short-lived and atomic; re-running
// on unchanged inputs yields the same decision and replaces, rather
// than duplicates, derived records.
type Engine struct {
	verifiers []verify.Verifier
	primary   *decision.Aggregator
	maker     *decision.Maker
	summaries *decision.SummaryBuilder
	knockouts *policy.Engine

	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	notifier notify.Sink

	maxConcurrent   int
	verifierTimeout time.Duration
	logger          *slog.Logger
}

// Options configures optional collaborators. Repo, cache, bus and
// notifier may each be nil; the pipeline still decides without them.
type Options struct {
	Repo          domain.Repository
	Cache         domain.Cache
	Bus           domain.EventBus
	Notifier      notify.Sink
	MaxConcurrent int
	Timeout       time.Duration
	Logger        *slog.Logger
}

// New wires the engine from its collaborators. Verifiers must cover
// every facet weighted by the primary aggregation.
func New(verifiers []verify.Verifier, knockouts *policy.Engine, opts Options) *Engine {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 6
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		verifiers:       verifiers,
		primary:         decision.NewAggregator(domain.PrimaryWeights),
		maker:           decision.NewStandardMaker(),
		summaries:       decision.NewSummaryBuilder(),
		knockouts:       knockouts,
		repo:            opts.Repo,
		cache:           opts.Cache,
		bus:             opts.Bus,
		notifier:        opts.Notifier,
		maxConcurrent:   opts.MaxConcurrent,
		verifierTimeout: opts.Timeout,
		logger:          opts.Logger,
	}
}

// Result bundles one evaluation's outputs.
type Result struct {
	Decision *domain.DecisionResult
	Summary  *domain.Summary
	Reports  []*domain.VerificationReport
	Schedule []domain.AmortizationEntry
}

// Evaluate runs the pipeline for an application. All facet verifiers
// run concurrently and are joined before aggregation; there is no
// partial decision.
func (e *Engine) Evaluate(ctx context.Context, tenantID string, app *domain.Application, docs []domain.Document) (*Result, error) {
	start := time.Now()

	if err := validate(app); err != nil {
		return nil, err
	}

	traceID := uuid.NewString()
	reports := e.runVerifiers(ctx, app, docs)
	verifyMs := time.Since(start).Milliseconds()

	decideStart := time.Now()
	score, contributions, err := e.primary.Aggregate(reports)
	if err != nil {
		return nil, fmt.Errorf("aggregate facets: %w", err)
	}

	var knockoutReasons []string
	if e.knockouts != nil {
		knockoutReasons = e.knockouts.Evaluate(app, reports)
	}

	dec := e.maker.Decide(app, score, knockoutReasons)
	dec.ID = uuid.NewString()
	dec.Contributions = contributions
	dec.CreatedAt = time.Now().UTC()
	dec.Metadata = domain.DecisionMetadata{
		TraceID:        traceID,
		VerifyMs:       verifyMs,
		DecisionMs:     time.Since(decideStart).Milliseconds(),
		TotalMs:        time.Since(start).Milliseconds(),
		FacetsVerified: len(reports),
		EngineVersion:  Version,
	}

	summary, err := e.summaries.Build(app.ID, reports)
	if err != nil {
		return nil, fmt.Errorf("build summary: %w", err)
	}

	result := &Result{Decision: dec, Summary: summary, Reports: reports}
	if dec.Status == domain.DecisionApproved {
		result.Schedule = finance.Schedule(app.LoanAmount, dec.Terms.InterestRate, dec.Terms.TenureMonths, dec.CreatedAt)
	}

	e.applyDecision(app, dec)
	if err := e.persist(ctx, tenantID, app, result); err != nil {
		return nil, err
	}
	e.publish(ctx, tenantID, app, dec)

	e.logger.Info("application evaluated",
		"application_id", app.ID,
		"tenant_id", tenantID,
		"status", dec.Status,
		"risk_score", dec.RiskScore,
		"duration_ms", dec.Metadata.TotalMs,
	)
	return result, nil
}

// Reevaluate reloads an application and its documents and runs the
// pipeline again. Derived records from earlier runs are replaced.
func (e *Engine) Reevaluate(ctx context.Context, tenantID, appID string) (*Result, error) {
	if e.repo == nil {
		return nil, errors.New("reevaluation requires a repository")
	}
	app, err := e.repo.GetApplication(ctx, tenantID, appID)
	if err != nil {
		return nil, err
	}
	docs, err := e.repo.ListDocuments(ctx, tenantID, appID)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		_ = e.cache.Delete(ctx, tenantID, "decision:"+appID)
	}
	return e.Evaluate(ctx, tenantID, app, docs)
}

// runVerifiers fans the facet checks out with bounded concurrency and
// joins them all before returning. A verifier error or panic degrades
// that facet to ERROR with maximal risk; it never aborts the run.
func (e *Engine) runVerifiers(ctx context.Context, app *domain.Application, docs []domain.Document) []*domain.VerificationReport {
	input := &verify.Input{App: app, Documents: docs}
	reports := make([]*domain.VerificationReport, len(e.verifiers))

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxConcurrent)

	for i, v := range e.verifiers {
		wg.Add(1)
		go func(idx int, v verify.Verifier) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			reports[idx] = e.runOne(ctx, v, input)
		}(i, v)
	}

	wg.Wait()

	now := time.Now().UTC()
	for _, rep := range reports {
		rep.ID = uuid.NewString()
		rep.ApplicationID = app.ID
		rep.CreatedAt = now
	}
	return reports
}

func (e *Engine) runOne(ctx context.Context, v verify.Verifier, input *verify.Input) (rep *domain.VerificationReport) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("verifier panicked",
				"facet", v.Facet(),
				"application_id", input.App.ID,
				"panic", r,
			)
			rep = errorReport(input.App.ID, v.Facet(), fmt.Sprintf("internal failure: %v", r))
		}
		rep.ProcessMs = time.Since(start).Milliseconds()
	}()

	ctx, cancel := context.WithTimeout(ctx, e.verifierTimeout)
	defer cancel()

	result, err := v.Verify(ctx, input)
	if err != nil {
		e.logger.Warn("verifier failed",
			"facet", v.Facet(),
			"application_id", input.App.ID,
			"error", err,
		)
		return errorReport(input.App.ID, v.Facet(), err.Error())
	}
	return result
}

func errorReport(appID, facet, issue string) *domain.VerificationReport {
	return &domain.VerificationReport{
		ApplicationID: appID,
		Facet:         facet,
		Status:        domain.ReportError,
		RiskScore:     100,
		Issues:        []string{issue},
	}
}

// applyDecision copies the sanctioned terms back onto the application.
func (e *Engine) applyDecision(app *domain.Application, dec *domain.DecisionResult) {
	app.Status = dec.Status
	app.UpdatedAt = time.Now().UTC()
	if dec.Terms != nil {
		app.InterestRate = dec.Terms.InterestRate
		app.TenureYears = dec.Terms.TenureYears
		app.EMIAmount = dec.Terms.EMI
	} else {
		app.InterestRate = 0
		app.TenureYears = 0
		app.EMIAmount = 0
	}
}

func (e *Engine) persist(ctx context.Context, tenantID string, app *domain.Application, result *Result) error {
	if e.repo == nil {
		return nil
	}

	if err := e.repo.SaveApplication(ctx, tenantID, app); err != nil {
		return fmt.Errorf("save application: %w", err)
	}
	if err := e.repo.SaveReports(ctx, tenantID, result.Reports); err != nil {
		return fmt.Errorf("save reports: %w", err)
	}
	if err := e.repo.SaveDecision(ctx, tenantID, result.Decision); err != nil {
		return fmt.Errorf("save decision: %w", err)
	}
	// Replace, never append: re-evaluation must not duplicate the
	// installment schedule.
	if err := e.repo.ReplaceSchedule(ctx, tenantID, app.ID, result.Schedule); err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}

	if e.cache != nil {
		if err := e.cache.SetDecision(ctx, tenantID, app.ID, result.Decision, 10*time.Minute); err != nil {
			e.logger.Warn("failed to cache decision",
				"application_id", app.ID,
				"error", err,
			)
		}
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, tenantID string, app *domain.Application, dec *domain.DecisionResult) {
	if e.bus != nil {
		payload, _ := json.Marshal(dec)
		if err := e.bus.Publish(ctx, tenantID, domain.TopicDecision, payload); err != nil {
			e.logger.Error("failed to publish decision",
				"application_id", app.ID,
				"error", err,
			)
		}
		if dec.Status == domain.DecisionRejected {
			if err := e.bus.Publish(ctx, tenantID, domain.TopicDecisionRejected, payload); err != nil {
				e.logger.Error("failed to publish rejection",
					"application_id", app.ID,
					"error", err,
				)
			}
		}
	}

	if e.notifier != nil {
		n := &notify.Notification{
			ApplicationID: app.ID,
			Email:         app.Email,
			Status:        dec.Status,
			Reason:        dec.Reason,
			SentAt:        time.Now().UTC(),
		}
		if err := e.notifier.Notify(ctx, tenantID, n); err != nil {
			// Notification failure never fails the decision.
			e.logger.Warn("failed to deliver notification",
				"application_id", app.ID,
				"error", err,
			)
		}
	}
}

func validate(app *domain.Application) error {
	if app == nil {
		return fmt.Errorf("%w: application is required", ErrInvalidApplication)
	}
	if app.ID == "" {
		return fmt.Errorf("%w: application ID is required", ErrInvalidApplication)
	}
	if app.MonthlySalary <= 0 {
		return fmt.Errorf("%w: monthly salary must be positive", ErrInvalidApplication)
	}
	if app.LoanAmount <= 0 {
		return fmt.Errorf("%w: loan amount must be positive", ErrInvalidApplication)
	}
	if app.PropertyValuation <= 0 {
		return fmt.Errorf("%w: property valuation must be positive", ErrInvalidApplication)
	}
	if app.CreditScore <= 0 {
		return fmt.Errorf("%w: credit score is required", ErrInvalidApplication)
	}
	if app.ExistingEMI < 0 {
		return fmt.Errorf("%w: existing EMI cannot be negative", ErrInvalidApplication)
	}
	return nil
}

// Package ai implements the bucketed risk estimator behind the
// ai_prediction facet, plus the optional external-model enhancement
// layer. The estimator is fully local; the external call only adds
// narrative and can never fail the decision.
package ai

import (
	"context"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/retry"
	"github.com/opensource-finance/kestrel/internal/verify"
)

// estimatorConfidence is fixed: the bucketed model reports the same
// confidence for every estimate.
const estimatorConfidence = 0.92

// Recommendation thresholds over the averaged feature score.
const (
	recommendApproveMax = 40
	recommendReviewMax  = 70
)

// Estimator derives four normalized features from the application and
// averages their bucketed risks. It satisfies verify.Verifier so the
// engine fans it out with the other facets.
type Estimator struct {
	enhancer Enhancer
	policy   retry.Policy
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithEnhancer attaches an external model for narrative enhancement.
func WithEnhancer(e Enhancer, timeout time.Duration, maxAttempts int) Option {
	return func(est *Estimator) {
		est.enhancer = e
		est.timeout = timeout
		est.policy = retry.Policy{MaxAttempts: maxAttempts}
	}
}

func NewEstimator(logger *slog.Logger, opts ...Option) *Estimator {
	est := &Estimator{
		logger:  logger,
		timeout: 500 * time.Millisecond,
		policy:  retry.Policy{MaxAttempts: 3},
	}
	for _, opt := range opts {
		opt(est)
	}
	if est.logger == nil {
		est.logger = slog.Default()
	}
	return est
}

func (e *Estimator) Facet() string { return domain.FacetAI }

func (e *Estimator) Verify(ctx context.Context, in *verify.Input) (*domain.VerificationReport, error) {
	app := in.App

	creditRisk, creditFactor := creditBucket(app.CreditScore)
	dtiRisk, dtiFactor := dtiBucket(app.DebtToIncome())
	ltvRisk, ltvFactor := ltvBucket(app.LoanToValue())
	adequacyRisk, adequacyFactor := adequacyBucket(app.MonthlySalary, app.LoanAmount)

	score := (creditRisk + dtiRisk + ltvRisk + adequacyRisk) / 4 * 100

	recommendation := "REJECT"
	switch {
	case score <= recommendApproveMax:
		recommendation = "APPROVE"
	case score <= recommendReviewMax:
		recommendation = "REVIEW"
	}

	detail := &domain.AIDetail{
		Recommendation: recommendation,
		Confidence:     estimatorConfidence,
		KeyFactors:     []string{creditFactor, dtiFactor, ltvFactor, adequacyFactor},
	}

	// Enhancement is additive narrative only. Any failure falls back
	// to the local estimate.
	if e.enhancer != nil {
		if commentary, ok := e.enhance(ctx, app, score, recommendation); ok {
			detail.Enhanced = true
			detail.KeyFactors = append(detail.KeyFactors, commentary)
		}
	}

	status := domain.ReportVerified
	switch {
	case score > recommendReviewMax:
		status = domain.ReportHighRisk
	case score > recommendApproveMax:
		status = domain.ReportReviewNeeded
	}

	rep := &domain.VerificationReport{
		ApplicationID: app.ID,
		Facet:         domain.FacetAI,
		Status:        status,
		RiskScore:     score,
		Detail:        detail,
	}
	return rep, nil
}

func (e *Estimator) enhance(ctx context.Context, app *domain.Application, score float64, recommendation string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var commentary string
	err := retry.Do(ctx, e.policy, func() error {
		var callErr error
		commentary, callErr = e.enhancer.Enhance(ctx, &Summary{
			ApplicationID:  app.ID,
			RiskScore:      score,
			Recommendation: recommendation,
			CreditScore:    app.CreditScore,
			DebtToIncome:   app.DebtToIncome(),
			LoanToValue:    app.LoanToValue(),
		})
		return callErr
	})
	if err != nil {
		e.logger.Warn("model enhancement unavailable, using local estimate",
			"applicationId", app.ID,
			"error", err)
		return "", false
	}
	return commentary, true
}

func creditBucket(score int) (float64, string) {
	switch {
	case score >= 800:
		return 0.1, "exceptional credit history"
	case score >= 750:
		return 0.3, "strong credit history"
	case score >= 700:
		return 0.5, "fair credit history"
	default:
		return 0.8, "weak credit history"
	}
}

func dtiBucket(dti float64) (float64, string) {
	switch {
	case dti <= 30:
		return 0.2, "comfortable debt-to-income ratio"
	case dti <= 50:
		return 0.4, "elevated debt-to-income ratio"
	default:
		return 0.8, "strained debt-to-income ratio"
	}
}

func ltvBucket(ltv float64) (float64, string) {
	switch {
	case ltv <= 60:
		return 0.1, "well-collateralized loan"
	case ltv <= 80:
		return 0.3, "adequately collateralized loan"
	default:
		return 0.7, "thinly collateralized loan"
	}
}

// adequacyBucket measures salary per lakh of requested loan.
func adequacyBucket(salary, loan float64) (float64, string) {
	if loan <= 0 {
		return 0.8, "no loan amount declared"
	}
	perLakh := salary / (loan / 100000)
	switch {
	case perLakh >= 5000:
		return 0.2, "income well matched to loan size"
	case perLakh >= 3000:
		return 0.4, "income adequate for loan size"
	default:
		return 0.8, "income thin for loan size"
	}
}

package verify

import (
	"context"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Fraud pattern weights. Each triggered pattern contributes its weight
// to an average; the baseline applies when nothing triggers, since
// absence of signal is not proof of absence of fraud.
const (
	fraudBaselineRisk = 15

	weightImplausibleIncome = 0.3
	weightExcessCollateral  = 0.2
	weightScoreIncomeGap    = 0.4
)

// FraudDetector runs pattern checks over declared figures only. It
// consults no external data.
type FraudDetector struct{}

func NewFraudDetector() *FraudDetector { return &FraudDetector{} }

func (v *FraudDetector) Facet() string { return domain.FacetFraud }

func (v *FraudDetector) Verify(ctx context.Context, in *Input) (*domain.VerificationReport, error) {
	app := in.App

	var patterns []domain.FraudPattern
	var issues []string

	if app.MonthlySalary > 500000 {
		patterns = append(patterns, domain.FraudPattern{Name: "implausible-declared-income", Weight: weightImplausibleIncome})
		issues = append(issues, "declared monthly salary implausibly high")
	}
	if app.LoanAmount > 0 && app.PropertyValuation/app.LoanAmount > 10 {
		patterns = append(patterns, domain.FraudPattern{Name: "excess-collateral-ratio", Weight: weightExcessCollateral})
		issues = append(issues, "collateral valuation disproportionate to requested loan")
	}
	if app.CreditScore >= 800 && app.MonthlySalary < 50000 {
		patterns = append(patterns, domain.FraudPattern{Name: "credit-income-mismatch", Weight: weightScoreIncomeGap})
		issues = append(issues, "high credit score inconsistent with low declared income")
	}

	score := float64(fraudBaselineRisk)
	if len(patterns) > 0 {
		var sum float64
		for _, p := range patterns {
			sum += p.Weight
		}
		score = sum / float64(len(patterns)) * 100
	}

	status := domain.ReportVerified
	switch {
	case score > 60:
		status = domain.ReportHighRisk
	case score > 25:
		status = domain.ReportReviewNeeded
	}

	rep := report(app.ID, domain.FacetFraud, status, score)
	rep.Issues = issues
	rep.Detail = &domain.FraudDetail{Patterns: patterns}
	return rep, nil
}

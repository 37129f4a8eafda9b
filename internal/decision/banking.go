package decision

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Debt-service thresholds for the instant banking snapshot.
const (
	healthyServiceRatio    = 50
	acceptableServiceRatio = 60
)

// AnalyzeBanking produces the instant debt-service snapshot for the
// decision dossier. A zero salary is treated as a maximal ratio.
func AnalyzeBanking(app *domain.Application) *domain.BankingAnalysis {
	ratio := 100.0
	if app.MonthlySalary > 0 {
		ratio = app.ExistingEMI / app.MonthlySalary * 100
	}

	status := "HEALTHY"
	if ratio > healthyServiceRatio {
		status = "MODERATE"
	}
	recommendation := "ACCEPTABLE"
	if ratio > acceptableServiceRatio {
		recommendation = "REVIEW"
	}

	return &domain.BankingAnalysis{
		Status:           status,
		DebtServiceRatio: ratio,
		Recommendation:   recommendation,
	}
}

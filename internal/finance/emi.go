// Package finance implements EMI and amortization math for sanctioned
// loans. All monetary results are rounded to two decimal places.
package finance

import (
	"math"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// round2 rounds to two decimal places, half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// EMI returns the equated monthly installment for a principal at an
// annual rate (percent) over the given number of months. A zero rate
// degenerates to straight principal division. Non-positive principal
// or months yields 0.
func EMI(principal, annualRate float64, months int) float64 {
	if principal <= 0 || months <= 0 {
		return 0
	}
	if annualRate == 0 {
		return round2(principal / float64(months))
	}
	r := annualRate / 12 / 100
	pow := math.Pow(1+r, float64(months))
	return round2(principal * r * pow / (pow - 1))
}

// Schedule returns the full month-by-month amortization for the loan,
// with installment m falling due m months after start. The final entry
// absorbs rounding drift: its principal component is the remaining
// balance exactly, so the schedule always closes at zero.
func Schedule(principal, annualRate float64, months int, start time.Time) []domain.AmortizationEntry {
	if principal <= 0 || months <= 0 {
		return nil
	}
	emi := EMI(principal, annualRate, months)
	r := annualRate / 12 / 100

	entries := make([]domain.AmortizationEntry, 0, months)
	balance := principal
	for m := 1; m <= months; m++ {
		interest := round2(balance * r)
		principalPart := round2(emi - interest)
		monthEMI := emi
		if m == months {
			// Close out the loan exactly.
			principalPart = round2(balance)
			monthEMI = round2(principalPart + interest)
		}
		balance = round2(balance - principalPart)
		if balance < 0 {
			balance = 0
		}
		entries = append(entries, domain.AmortizationEntry{
			Month:            m,
			DueDate:          start.AddDate(0, m, 0),
			EMI:              monthEMI,
			PrincipalPart:    principalPart,
			InterestPart:     interest,
			RemainingBalance: balance,
		})
	}
	return entries
}

// TotalInterest sums the interest components of a schedule.
func TotalInterest(entries []domain.AmortizationEntry) float64 {
	var total float64
	for _, e := range entries {
		total += e.InterestPart
	}
	return round2(total)
}

// TotalPayment sums the installments of a schedule.
func TotalPayment(entries []domain.AmortizationEntry) float64 {
	var total float64
	for _, e := range entries {
		total += e.EMI
	}
	return round2(total)
}

package finance

import (
	"math"
	"testing"
	"time"
)

var scheduleStart = time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC)

func TestEMIKnownValue(t *testing.T) {
	// 100,000 at 12% over 12 months is the textbook annuity case.
	got := EMI(100000, 12, 12)
	if math.Abs(got-8884.88) > 0.01 {
		t.Errorf("EMI(100000, 12%%, 12) = %.2f, want 8884.88", got)
	}
}

func TestEMIReferenceTerms(t *testing.T) {
	// 28 lakh at 10.5% over 180 months, against the closed-form annuity
	// value computed by hand: P*r*(1+r)^n / ((1+r)^n - 1) with
	// r = 0.00875 gives 30951.17.
	got := EMI(2800000, 10.5, 180)
	if math.Abs(got-30951.17) > 0.01 {
		t.Errorf("EMI(2800000, 10.5%%, 180) = %.2f, want 30951.17", got)
	}
}

func TestEMIZeroRate(t *testing.T) {
	got := EMI(1200, 0, 12)
	if got != 100 {
		t.Errorf("zero-rate EMI = %.2f, want 100.00", got)
	}
}

func TestEMIDegenerateInputs(t *testing.T) {
	if got := EMI(0, 10, 120); got != 0 {
		t.Errorf("zero principal: got %.2f, want 0", got)
	}
	if got := EMI(100000, 10, 0); got != 0 {
		t.Errorf("zero months: got %.2f, want 0", got)
	}
	if got := EMI(-5000, 10, 12); got != 0 {
		t.Errorf("negative principal: got %.2f, want 0", got)
	}
}

func TestScheduleClosesAtZero(t *testing.T) {
	months := 180
	entries := Schedule(2800000, 10.5, months, scheduleStart)
	if len(entries) != months {
		t.Fatalf("schedule length = %d, want %d", len(entries), months)
	}
	if last := entries[months-1].RemainingBalance; last != 0 {
		t.Errorf("final balance = %.2f, want 0", last)
	}
	// Principal components must sum back to the principal.
	var principal float64
	for _, e := range entries {
		principal += e.PrincipalPart
	}
	if math.Abs(principal-2800000) > 0.01 {
		t.Errorf("principal components sum to %.2f, want 2800000", principal)
	}
}

func TestScheduleDueDates(t *testing.T) {
	entries := Schedule(120000, 9.0, 24, scheduleStart)
	for _, e := range entries {
		want := scheduleStart.AddDate(0, e.Month, 0)
		if !e.DueDate.Equal(want) {
			t.Fatalf("month %d due %v, want %v", e.Month, e.DueDate, want)
		}
	}
	if first := entries[0].DueDate; !first.Equal(time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first installment due %v, want one month after start", first)
	}
}

func TestScheduleBalanceMonotonic(t *testing.T) {
	entries := Schedule(500000, 8.0, 240, scheduleStart)
	prev := math.Inf(1)
	for _, e := range entries {
		if e.RemainingBalance > prev {
			t.Fatalf("balance rose at month %d: %.2f > %.2f", e.Month, e.RemainingBalance, prev)
		}
		prev = e.RemainingBalance
	}
}

func TestScheduleEMIStableExceptFinal(t *testing.T) {
	entries := Schedule(1000000, 9.5, 120, scheduleStart)
	emi := entries[0].EMI
	for _, e := range entries[:len(entries)-1] {
		if e.EMI != emi {
			t.Fatalf("EMI drifted at month %d: %.2f != %.2f", e.Month, e.EMI, emi)
		}
	}
	// Final installment only absorbs rounding drift; it stays within a
	// rupee of the regular EMI.
	final := entries[len(entries)-1].EMI
	if math.Abs(final-emi) > 1.0 {
		t.Errorf("final EMI %.2f too far from regular %.2f", final, emi)
	}
}

func TestScheduleZeroRate(t *testing.T) {
	entries := Schedule(1200, 0, 12, scheduleStart)
	for _, e := range entries {
		if e.InterestPart != 0 {
			t.Fatalf("month %d has interest %.2f on zero-rate loan", e.Month, e.InterestPart)
		}
		if e.EMI != 100 {
			t.Fatalf("month %d EMI = %.2f, want 100", e.Month, e.EMI)
		}
	}
	if got := TotalInterest(entries); got != 0 {
		t.Errorf("total interest = %.2f, want 0", got)
	}
	if got := TotalPayment(entries); got != 1200 {
		t.Errorf("total payment = %.2f, want 1200", got)
	}
}

func TestTotalsConsistent(t *testing.T) {
	entries := Schedule(750000, 10.5, 180, scheduleStart)
	interest := TotalInterest(entries)
	payment := TotalPayment(entries)
	if interest <= 0 {
		t.Fatalf("total interest = %.2f, want > 0", interest)
	}
	if math.Abs(payment-(750000+interest)) > 0.5 {
		t.Errorf("payment %.2f != principal + interest %.2f", payment, 750000+interest)
	}
}

package verify

import (
	"context"
	"strings"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

type fakeDirectory struct {
	records map[string]*domain.EmploymentRecord
}

func (f *fakeDirectory) Lookup(pan string) (*domain.EmploymentRecord, error) {
	return f.records[pan], nil
}

func baseApplication() *domain.Application {
	return &domain.Application{
		ID:                "app-1",
		FirstName:         "Priya",
		LastName:          "Sharma",
		PAN:               "ABCDE1234F",
		CompanyName:       "Infosys",
		MonthlySalary:     85000,
		ExistingEMI:       12000,
		LoanAmount:        2800000,
		PropertyValuation: 3500000,
		CreditScore:       790,
		IsNonAgricultural: true,
	}
}

func allDocuments() []domain.Document {
	var docs []domain.Document
	for _, dt := range domain.RequiredDocumentTypes() {
		docs = append(docs, domain.Document{
			ApplicationID: "app-1",
			Type:          dt,
			Filename:      "doc.pdf",
			SizeBytes:     1024,
		})
	}
	return docs
}

func TestEmploymentDirectoryMatch(t *testing.T) {
	dir := &fakeDirectory{records: map[string]*domain.EmploymentRecord{
		"ABCDE1234F": {
			PAN:           "ABCDE1234F",
			FullName:      "Priya Sharma",
			CompanyName:   "Infosys",
			MonthlySalary: 85000,
		},
	}}
	v := NewEmploymentVerifier(dir)

	rep, err := v.Verify(context.Background(), &Input{App: baseApplication()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Status != domain.ReportVerified {
		t.Errorf("status = %s, want VERIFIED", rep.Status)
	}
	if rep.RiskScore != 0 {
		t.Errorf("risk = %.1f, want 0", rep.RiskScore)
	}
}

func TestEmploymentDirectoryMismatches(t *testing.T) {
	record := &domain.EmploymentRecord{
		PAN:           "ABCDE1234F",
		FullName:      "Priya Sharma",
		CompanyName:   "Infosys",
		MonthlySalary: 85000,
	}
	dir := &fakeDirectory{records: map[string]*domain.EmploymentRecord{"ABCDE1234F": record}}
	v := NewEmploymentVerifier(dir)

	tests := []struct {
		name       string
		mutate     func(app *domain.Application)
		wantRisk   float64
		wantStatus string
	}{
		{
			name:       "salary outside tolerance",
			mutate:     func(a *domain.Application) { a.MonthlySalary = 120000 },
			wantRisk:   20,
			wantStatus: domain.ReportVerified,
		},
		{
			name:       "company mismatch",
			mutate:     func(a *domain.Application) { a.CompanyName = "Unknown Corp" },
			wantRisk:   30,
			wantStatus: domain.ReportVerifiedWithNotes,
		},
		{
			name: "name and company mismatch",
			mutate: func(a *domain.Application) {
				a.FirstName = "Rohan"
				a.LastName = "Gupta"
				a.CompanyName = "Unknown Corp"
			},
			wantRisk:   70,
			wantStatus: domain.ReportUnderReview,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := baseApplication()
			tt.mutate(app)
			rep, err := v.Verify(context.Background(), &Input{App: app})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rep.RiskScore != tt.wantRisk {
				t.Errorf("risk = %.1f, want %.1f", rep.RiskScore, tt.wantRisk)
			}
			if rep.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", rep.Status, tt.wantStatus)
			}
		})
	}
}

func TestEmploymentNameMatchAllowsMiddleNames(t *testing.T) {
	dir := &fakeDirectory{records: map[string]*domain.EmploymentRecord{
		"ABCDE1234F": {
			PAN:           "ABCDE1234F",
			FullName:      "Priya Kumari Sharma",
			CompanyName:   "Infosys",
			MonthlySalary: 85000,
		},
	}}
	v := NewEmploymentVerifier(dir)

	rep, err := v.Verify(context.Background(), &Input{App: baseApplication()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Two of three name parts match; no penalty.
	if rep.RiskScore != 0 {
		t.Errorf("risk = %.1f, want 0 (middle name tolerated)", rep.RiskScore)
	}
}

func TestEmploymentMissingPAN(t *testing.T) {
	v := NewEmploymentVerifier(nil)
	app := baseApplication()
	app.PAN = "  "

	rep, err := v.Verify(context.Background(), &Input{App: app})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Status != domain.ReportFailed || rep.RiskScore != 100 {
		t.Errorf("got %s/%.1f, want FAILED/100", rep.Status, rep.RiskScore)
	}
}

func TestEmploymentFallbackBlend(t *testing.T) {
	v := NewEmploymentVerifier(&fakeDirectory{})
	app := baseApplication()
	docs := allDocuments()

	rep, err := v.Verify(context.Background(), &Input{App: app, Documents: docs})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// salary 85k -> 0.2 band, Infosys listed -> 0.2, slips present -> 0.2:
	// (0.2*0.4 + 0.2*0.4 + 0.2*0.2) * 100 = 20
	if rep.RiskScore != 20 {
		t.Errorf("fallback risk = %.1f, want 20", rep.RiskScore)
	}
	if rep.Status != domain.ReportVerifiedWithNotes {
		t.Errorf("status = %s, want VERIFIED_WITH_NOTES", rep.Status)
	}
}

func TestEmploymentFallbackHighRisk(t *testing.T) {
	v := NewEmploymentVerifier(nil)
	app := baseApplication()
	app.MonthlySalary = 15000
	app.CompanyName = ""

	rep, err := v.Verify(context.Background(), &Input{App: app})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// (0.8*0.4 + 0.9*0.4 + 0.8*0.2) * 100 = 84
	if rep.RiskScore != 84 {
		t.Errorf("fallback risk = %.1f, want 84", rep.RiskScore)
	}
	if rep.Status != domain.ReportHighRisk {
		t.Errorf("status = %s, want HIGH_RISK", rep.Status)
	}
}

func TestDocumentsAllPresent(t *testing.T) {
	v := NewDocumentVerifier()
	rep, err := v.Verify(context.Background(), &Input{App: baseApplication(), Documents: allDocuments()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Status != domain.ReportVerified {
		t.Errorf("status = %s, want VERIFIED", rep.Status)
	}
	if rep.RiskScore != 10 {
		t.Errorf("risk = %.1f, want 10", rep.RiskScore)
	}
}

func TestDocumentsMissingRaisesRisk(t *testing.T) {
	v := NewDocumentVerifier()
	app := baseApplication()
	docs := allDocuments()

	prev := -1.0
	for len(docs) > 0 {
		rep, err := v.Verify(context.Background(), &Input{App: app, Documents: docs})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rep.RiskScore < prev {
			t.Fatalf("risk dropped to %.1f after removing a document (was %.1f)", rep.RiskScore, prev)
		}
		prev = rep.RiskScore
		docs = docs[:len(docs)-1]
	}

	rep, err := v.Verify(context.Background(), &Input{App: app})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.RiskScore != 100 {
		t.Errorf("risk with no documents = %.1f, want 100", rep.RiskScore)
	}
	if rep.Status != domain.ReportPending {
		t.Errorf("status = %s, want PENDING", rep.Status)
	}
}

func TestNADocAbsent(t *testing.T) {
	v := NewNADocVerifier()
	app := baseApplication()

	rep, err := v.Verify(context.Background(), &Input{App: app})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Status != domain.ReportPending || rep.RiskScore != 100 {
		t.Errorf("got %s/%.1f, want PENDING/100", rep.Status, rep.RiskScore)
	}
	found := false
	for _, issue := range rep.Issues {
		if strings.Contains(issue, "document required for property classification verification") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing classification issue, got %v", rep.Issues)
	}
}

func TestNADocChecklist(t *testing.T) {
	v := NewNADocVerifier()

	tests := []struct {
		name       string
		doc        domain.Document
		docs       []domain.Document
		nonAgri    bool
		wantRisk   float64
		wantStatus string
	}{
		{
			name:       "clean certificate",
			doc:        domain.Document{Type: domain.DocNADeclaration, Filename: "na.pdf", SizeBytes: 1 << 20},
			docs:       allDocuments(),
			nonAgri:    true,
			wantRisk:   10,
			wantStatus: domain.ReportVerified,
		},
		{
			name:       "bad format",
			doc:        domain.Document{Type: domain.DocNADeclaration, Filename: "na.docx", SizeBytes: 1 << 20},
			docs:       allDocuments(),
			nonAgri:    true,
			wantRisk:   50,
			wantStatus: domain.ReportReviewNeeded,
		},
		{
			name:       "oversized",
			doc:        domain.Document{Type: domain.DocNADeclaration, Filename: "na.pdf", SizeBytes: 11 << 20},
			docs:       allDocuments(),
			nonAgri:    true,
			wantRisk:   25,
			wantStatus: domain.ReportVerifiedWithNotes,
		},
		{
			name:       "no property cross-reference",
			doc:        domain.Document{Type: domain.DocNADeclaration, Filename: "na.pdf", SizeBytes: 1 << 20},
			nonAgri:    true,
			wantRisk:   25,
			wantStatus: domain.ReportVerifiedWithNotes,
		},
		{
			name:       "legal clearance anchors the cross-reference",
			doc:        domain.Document{Type: domain.DocNADeclaration, Filename: "na.pdf", SizeBytes: 1 << 20},
			docs:       []domain.Document{{ApplicationID: "app-1", Type: domain.DocLegalClearance, Filename: "legal.pdf", SizeBytes: 1024}},
			nonAgri:    true,
			wantRisk:   10,
			wantStatus: domain.ReportVerified,
		},
		{
			name:       "flag inconsistent",
			doc:        domain.Document{Type: domain.DocNADeclaration, Filename: "na.pdf", SizeBytes: 1 << 20},
			docs:       allDocuments(),
			nonAgri:    false,
			wantRisk:   25,
			wantStatus: domain.ReportVerifiedWithNotes,
		},
		{
			name:       "everything wrong",
			doc:        domain.Document{Type: domain.DocNADeclaration, Filename: "na.exe", SizeBytes: 20 << 20},
			nonAgri:    false,
			wantRisk:   75,
			wantStatus: domain.ReportPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := baseApplication()
			app.IsNonAgricultural = tt.nonAgri
			docs := tt.docs
			// Replace any NA placeholder from allDocuments with the case's doc.
			var filtered []domain.Document
			for _, d := range docs {
				if d.Type != domain.DocNADeclaration {
					filtered = append(filtered, d)
				}
			}
			filtered = append(filtered, tt.doc)

			rep, err := v.Verify(context.Background(), &Input{App: app, Documents: filtered})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rep.RiskScore != tt.wantRisk {
				t.Errorf("risk = %.1f, want %.1f", rep.RiskScore, tt.wantRisk)
			}
			if rep.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", rep.Status, tt.wantStatus)
			}
		})
	}
}

func TestFraudDefaultBaseline(t *testing.T) {
	v := NewFraudDetector()
	rep, err := v.Verify(context.Background(), &Input{App: baseApplication()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.RiskScore != 15 {
		t.Errorf("baseline risk = %.1f, want 15", rep.RiskScore)
	}
	if rep.Status != domain.ReportVerified {
		t.Errorf("status = %s, want VERIFIED", rep.Status)
	}
}

func TestFraudPatterns(t *testing.T) {
	v := NewFraudDetector()

	tests := []struct {
		name     string
		mutate   func(a *domain.Application)
		wantRisk float64
	}{
		{
			name:     "implausible income",
			mutate:   func(a *domain.Application) { a.MonthlySalary = 600000 },
			wantRisk: 30,
		},
		{
			name: "excess collateral",
			mutate: func(a *domain.Application) {
				a.LoanAmount = 100000
				a.PropertyValuation = 2000000
			},
			wantRisk: 20,
		},
		{
			name: "credit score out of line with income",
			mutate: func(a *domain.Application) {
				a.CreditScore = 810
				a.MonthlySalary = 30000
			},
			wantRisk: 40,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := baseApplication()
			tt.mutate(app)
			rep, err := v.Verify(context.Background(), &Input{App: app})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rep.RiskScore != tt.wantRisk {
				t.Errorf("risk = %.1f, want %.1f", rep.RiskScore, tt.wantRisk)
			}
		})
	}
}

func TestFinancialBuckets(t *testing.T) {
	v := NewFinancialScorer()

	t.Run("healthy profile", func(t *testing.T) {
		rep, err := v.Verify(context.Background(), &Input{App: baseApplication()})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// DTI 14.1% -> 10, LTV 80% -> 15, credit 790 -> 5.
		if rep.RiskScore != 30 {
			t.Errorf("risk = %.1f, want 30", rep.RiskScore)
		}
	})

	t.Run("stressed profile", func(t *testing.T) {
		app := baseApplication()
		app.MonthlySalary = 20000
		app.ExistingEMI = 15000
		app.CreditScore = 550
		app.LoanAmount = 3000000
		app.PropertyValuation = 2500000
		rep, err := v.Verify(context.Background(), &Input{App: app})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// DTI 75% -> 40, LTV 120% -> 30, credit 550 -> 30.
		if rep.RiskScore != 100 {
			t.Errorf("risk = %.1f, want 100", rep.RiskScore)
		}
		if rep.Status != domain.ReportHighRisk {
			t.Errorf("status = %s, want HIGH_RISK", rep.Status)
		}
	})

	t.Run("zero salary treated as maximal ratio", func(t *testing.T) {
		app := baseApplication()
		app.MonthlySalary = 0
		rep, err := v.Verify(context.Background(), &Input{App: app})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// DTI treated as 100% -> 40.
		if rep.RiskScore < 40 {
			t.Errorf("risk = %.1f, want >= 40 for zero salary", rep.RiskScore)
		}
	})

	t.Run("credit score monotonicity", func(t *testing.T) {
		prev := 200.0
		for score := 600; score <= 820; score += 10 {
			app := baseApplication()
			app.CreditScore = score
			rep, err := v.Verify(context.Background(), &Input{App: app})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rep.RiskScore > prev {
				t.Fatalf("risk rose to %.1f at credit score %d", rep.RiskScore, score)
			}
			prev = rep.RiskScore
		}
	})
}

package verify

import (
	"context"
	"math"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Employers considered reputable for the declared-data fallback path.
// Substring match, case-insensitive.
var reputableEmployers = []string{
	"TCS", "INFOSYS", "WIPRO", "HCL", "TECH MAHINDRA",
	"GOOGLE", "MICROSOFT", "AMAZON",
	"NEXTGEN ANALYTICS", "QUANTUM IT SOLUTIONS",
}

// Fixed penalties for directory mismatches.
const (
	penaltyNameMismatch    = 40
	penaltyCompanyMismatch = 30
	penaltySalaryMismatch  = 20

	salaryTolerance = 0.10
)

// EmploymentVerifier checks declared employment against the reference
// directory, falling back to declared-data heuristics when the PAN has
// no directory record. A directory miss is an expected condition, not
// an error.
type EmploymentVerifier struct {
	dir domain.EmploymentDirectory
}

func NewEmploymentVerifier(dir domain.EmploymentDirectory) *EmploymentVerifier {
	return &EmploymentVerifier{dir: dir}
}

func (v *EmploymentVerifier) Facet() string { return domain.FacetEmployment }

func (v *EmploymentVerifier) Verify(ctx context.Context, in *Input) (*domain.VerificationReport, error) {
	app := in.App

	pan := strings.ToUpper(strings.TrimSpace(app.PAN))
	if pan == "" {
		rep := report(app.ID, domain.FacetEmployment, domain.ReportFailed, 100)
		rep.Issues = []string{"PAN not provided for employment verification"}
		return rep, nil
	}

	var record *domain.EmploymentRecord
	if v.dir != nil {
		var err error
		record, err = v.dir.Lookup(pan)
		if err != nil {
			return nil, err
		}
	}
	if record == nil {
		return v.verifyDeclared(app, in.Documents), nil
	}
	return v.verifyAgainstRecord(app, record), nil
}

// verifyAgainstRecord compares the declared name, employer and salary
// against the directory record, adding a fixed penalty per mismatch.
func (v *EmploymentVerifier) verifyAgainstRecord(app *domain.Application, rec *domain.EmploymentRecord) *domain.VerificationReport {
	nameMatch := namesMatch(app.FullName(), rec.FullName)
	companyMatch := companyEquals(app.CompanyName, rec.CompanyName)
	salaryMatch := salaryWithinTolerance(app.MonthlySalary, rec.MonthlySalary)

	var score float64
	var issues []string
	if !nameMatch {
		score += penaltyNameMismatch
		issues = append(issues, "declared name does not match employment records")
	}
	if !companyMatch {
		score += penaltyCompanyMismatch
		issues = append(issues, "declared employer does not match employment records")
	}
	if !salaryMatch {
		score += penaltySalaryMismatch
		issues = append(issues, "declared salary outside 10% tolerance of employment records")
	}

	status := domain.ReportUnderReview
	switch {
	case score <= 20:
		status = domain.ReportVerified
	case score <= 50:
		status = domain.ReportVerifiedWithNotes
	}

	rep := report(app.ID, domain.FacetEmployment, status, score)
	rep.Issues = issues
	rep.Detail = &domain.EmploymentDetail{
		Source:       "directory",
		NameMatch:    nameMatch,
		CompanyMatch: companyMatch,
		SalaryMatch:  salaryMatch,
		DirectoryHit: true,
	}
	return rep
}

// verifyDeclared is the fallback when the PAN has no directory record.
// It blends salary-band, employer-reputation and salary-slip presence
// signals (40/40/20).
func (v *EmploymentVerifier) verifyDeclared(app *domain.Application, docs []domain.Document) *domain.VerificationReport {
	salaryRisk := salaryBandRisk(app.MonthlySalary)
	companyRisk, listed := companyReputationRisk(app.CompanyName)
	docRisk := 0.8
	if domain.FindDocument(docs, domain.DocSalarySlips) != nil {
		docRisk = 0.2
	}

	score := (salaryRisk*0.4 + companyRisk*0.4 + docRisk*0.2) * 100
	// The weighted blend picks up binary float dust (0.2*0.4 three
	// times is not exactly 0.2); keep the reported risk at two decimals.
	score = math.Round(score*100) / 100

	status := domain.ReportHighRisk
	switch {
	case score <= 30:
		status = domain.ReportVerifiedWithNotes
	case score <= 60:
		status = domain.ReportUnderReview
	}

	rep := report(app.ID, domain.FacetEmployment, status, score)
	rep.Issues = []string{"employment not verified against reference directory"}
	rep.Detail = &domain.EmploymentDetail{
		Source:        "declared",
		DirectoryHit:  false,
		CompanyListed: listed,
	}
	return rep
}

// namesMatch treats names as equal when they match exactly, or when at
// least two name parts coincide (middle names, initials).
func namesMatch(a, b string) bool {
	a = strings.ToUpper(strings.TrimSpace(a))
	b = strings.ToUpper(strings.TrimSpace(b))
	if a == b {
		return a != ""
	}
	aParts := strings.Fields(a)
	common := 0
	for _, p := range aParts {
		for _, q := range strings.Fields(b) {
			if p == q {
				common++
				break
			}
		}
	}
	return common >= 2
}

func companyEquals(declared, record string) bool {
	declared = strings.ToUpper(strings.TrimSpace(declared))
	if declared == "" {
		return false
	}
	return declared == strings.ToUpper(strings.TrimSpace(record))
}

func salaryWithinTolerance(declared, record float64) bool {
	if record == 0 {
		return false
	}
	return math.Abs(declared-record)/record <= salaryTolerance
}

func salaryBandRisk(salary float64) float64 {
	switch {
	case salary >= 100000:
		return 0.1
	case salary >= 50000:
		return 0.2
	case salary >= 25000:
		return 0.4
	default:
		return 0.8
	}
}

func companyReputationRisk(name string) (risk float64, listed bool) {
	if strings.TrimSpace(name) == "" {
		return 0.9, false
	}
	upper := strings.ToUpper(name)
	for _, rep := range reputableEmployers {
		if strings.Contains(upper, rep) {
			return 0.2, true
		}
	}
	return 0.6, false
}

package autofill

import (
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestParseText(t *testing.T) {
	t.Run("StandardForm", func(t *testing.T) {
		content := `Applicant Details
First Name: Priya
Last Name: Nair
Email: priya.nair@example.com
PAN Number: fmppk3487l
Aadhaar Number: 4821 9034 1178

Financial Information
Monthly Salary (INR): 85,000
Company Name: Meridian Textiles
Existing EMI (if any, INR): ₹12,000
CIBIL Score: 790

Loan Details
Loan Amount Requested (INR): 28,00,000
Property Valuation (INR): 35,00,000
Is the property non-agricultural: Yes
Is there an existing mortgage on this property: No`

		f := ParseText(content)

		if f.FirstName != "Priya" {
			t.Errorf("expected first name 'Priya', got '%s'", f.FirstName)
		}
		if f.PAN != "FMPPK3487L" {
			t.Errorf("expected PAN uppercased, got '%s'", f.PAN)
		}
		if f.MonthlySalary == nil || *f.MonthlySalary != 85000 {
			t.Errorf("expected salary 85000, got %v", f.MonthlySalary)
		}
		if f.ExistingEMI == nil || *f.ExistingEMI != 12000 {
			t.Errorf("expected EMI 12000, got %v", f.ExistingEMI)
		}
		if f.LoanAmount == nil || *f.LoanAmount != 2800000 {
			t.Errorf("expected loan 2800000, got %v", f.LoanAmount)
		}
		if f.CreditScore == nil || *f.CreditScore != 790 {
			t.Errorf("expected credit score 790, got %v", f.CreditScore)
		}
		if f.IsNonAgricultural == nil || !*f.IsNonAgricultural {
			t.Errorf("expected non-agricultural true, got %v", f.IsNonAgricultural)
		}
		if f.HasMortgage == nil || *f.HasMortgage {
			t.Errorf("expected mortgage false, got %v", f.HasMortgage)
		}
		if f.CompanyName != "Meridian Textiles" {
			t.Errorf("expected company 'Meridian Textiles', got '%s'", f.CompanyName)
		}
	})

	t.Run("AlternateSeparators", func(t *testing.T) {
		content := "salary = 60000\ncibil | 710\nemployer - Quantum IT Solutions"

		f := ParseText(content)

		if f.MonthlySalary == nil || *f.MonthlySalary != 60000 {
			t.Errorf("expected salary 60000, got %v", f.MonthlySalary)
		}
		if f.CreditScore == nil || *f.CreditScore != 710 {
			t.Errorf("expected credit score 710, got %v", f.CreditScore)
		}
		if f.CompanyName != "Quantum IT Solutions" {
			t.Errorf("expected company parsed, got '%s'", f.CompanyName)
		}
	})

	t.Run("UnrecognizedInput", func(t *testing.T) {
		f := ParseText("lorem ipsum\nno separators here\njust prose")
		if f.Matched != 0 {
			t.Errorf("expected no matches, got %d", f.Matched)
		}
	})

	t.Run("EmptyInput", func(t *testing.T) {
		f := ParseText("")
		if f.Matched != 0 {
			t.Errorf("expected no matches for empty input, got %d", f.Matched)
		}
	})

	t.Run("CompanyNameKeepsPANIntact", func(t *testing.T) {
		f := ParseText("PAN Number: fmppk3487l\nCompany Name: Meridian Textiles")
		if f.PAN != "FMPPK3487L" {
			t.Errorf("expected PAN 'FMPPK3487L', got '%s'", f.PAN)
		}
		if f.CompanyName != "Meridian Textiles" {
			t.Errorf("expected company 'Meridian Textiles', got '%s'", f.CompanyName)
		}
	})

	t.Run("HeadersWithColonsDoNotSwallowData", func(t *testing.T) {
		content := "Property:\nProperty Valuation (INR): 35,00,000\nIs the property non-agricultural: Yes"
		f := ParseText(content)
		if f.PropertyValuation == nil || *f.PropertyValuation != 3500000 {
			t.Errorf("expected valuation 3500000, got %v", f.PropertyValuation)
		}
		if f.IsNonAgricultural == nil || !*f.IsNonAgricultural {
			t.Errorf("expected non-agricultural true, got %v", f.IsNonAgricultural)
		}
	})

	t.Run("ResidenceStatus", func(t *testing.T) {
		f := ParseText("Current Residence Status: Rented Apartment")
		if f.IsRented == nil || !*f.IsRented {
			t.Errorf("expected rented true, got %v", f.IsRented)
		}

		f = ParseText("Current Residence Status: Owned")
		if f.IsRented == nil || *f.IsRented {
			t.Errorf("expected rented false, got %v", f.IsRented)
		}
	})
}

func TestMapFieldName(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"Company Name", "company"},
		{"PAN", "pan"},
		{"PAN Number", "pan"},
		{"Monthly Salary (INR)", "salary"},
		{"Is the property non-agricultural", "non_agricultural"},
		{"Is there an existing mortgage on this property", "mortgage"},
		{"Loan Amount Requested (INR)", "loan_amount"},
		{"Monthly income of applicant", "salary"},
		{"Unrelated Label", ""},
	}
	for _, tt := range tests {
		if got := mapFieldName(tt.key); got != tt.want {
			t.Errorf("mapFieldName(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestFieldsApply(t *testing.T) {
	salary := 72000.0
	score := 755
	nonAg := true

	f := &Fields{
		FirstName:         "Arjun",
		PAN:               "BQRPS8812C",
		MonthlySalary:     &salary,
		CreditScore:       &score,
		IsNonAgricultural: &nonAg,
	}

	app := &domain.Application{
		LastName:   "Menon",
		LoanAmount: 1500000,
	}
	f.Apply(app)

	if app.FirstName != "Arjun" {
		t.Errorf("expected first name applied, got '%s'", app.FirstName)
	}
	if app.LastName != "Menon" {
		t.Errorf("expected untouched last name, got '%s'", app.LastName)
	}
	if app.LoanAmount != 1500000 {
		t.Errorf("expected untouched loan amount, got %.0f", app.LoanAmount)
	}
	if app.MonthlySalary != 72000 {
		t.Errorf("expected salary applied, got %.0f", app.MonthlySalary)
	}
	if app.CreditScore != 755 {
		t.Errorf("expected credit score applied, got %d", app.CreditScore)
	}
	if !app.IsNonAgricultural {
		t.Error("expected non-agricultural flag applied")
	}
}

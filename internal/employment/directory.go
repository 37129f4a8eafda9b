// Package employment loads the employer reference directory used by
// the employment verifier. The directory is read once at startup and
// is immutable afterwards.
package employment

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Directory is an in-memory reference lookup keyed by PAN. It
// satisfies domain.EmploymentDirectory.
type Directory struct {
	records map[string]*domain.EmploymentRecord
}

// LoadCSV reads the directory from a CSV file with a header row. The
// required columns are pan, name, company and monthly_salary; column
// order is free. Rows with an unparsable salary are skipped.
func LoadCSV(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open employment directory: %w", err)
	}
	defer f.Close()
	return load(f)
}

func load(r io.Reader) (*Directory, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read directory header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"pan", "name", "company", "monthly_salary"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("employment directory missing column %q", required)
		}
	}

	records := make(map[string]*domain.EmploymentRecord)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read directory row: %w", err)
		}

		pan := strings.ToUpper(strings.TrimSpace(row[cols["pan"]]))
		if pan == "" {
			continue
		}
		salary, err := strconv.ParseFloat(strings.TrimSpace(row[cols["monthly_salary"]]), 64)
		if err != nil {
			continue
		}

		rec := &domain.EmploymentRecord{
			PAN:           pan,
			FullName:      strings.TrimSpace(row[cols["name"]]),
			CompanyName:   strings.TrimSpace(row[cols["company"]]),
			MonthlySalary: salary,
			Verified:      true,
		}
		if i, ok := cols["verified"]; ok && i < len(row) {
			rec.Verified = strings.EqualFold(strings.TrimSpace(row[i]), "true")
		}
		records[pan] = rec
	}

	return &Directory{records: records}, nil
}

// Lookup returns the record for a PAN, or nil when absent. Absence is
// an expected condition, not an error.
func (d *Directory) Lookup(pan string) (*domain.EmploymentRecord, error) {
	return d.records[strings.ToUpper(strings.TrimSpace(pan))], nil
}

// Size returns the number of loaded records.
func (d *Directory) Size() int {
	return len(d.records)
}

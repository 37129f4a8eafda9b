// Benchmark tool for replaying labeled loan applications against Kestrel.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/applications.csv -url http://localhost:8080
//
// This tool:
//   1. Reads a CSV of applications with expected outcomes (approved/rejected)
//   2. Submits each application to Kestrel for a decision
//   3. Compares Kestrel's decision with the expected label
//   4. Calculates precision, recall, F1-score, and confusion matrix
//
// Expected CSV columns (header row required, order-insensitive):
//   first_name, pan, company_name, monthly_salary, existing_emi,
//   loan_amount, property_valuation, credit_score, approved
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledApplication represents a row from the replay dataset
type LabeledApplication struct {
	FirstName         string
	PAN               string
	CompanyName       string
	MonthlySalary     float64
	ExistingEMI       float64
	LoanAmount        float64
	PropertyValuation float64
	CreditScore       int
	Approved          bool
}

// SubmitRequest is the Kestrel API request format
type SubmitRequest struct {
	FirstName         string  `json:"firstName"`
	PAN               string  `json:"pan"`
	CompanyName       string  `json:"companyName,omitempty"`
	MonthlySalary     float64 `json:"monthlySalary"`
	ExistingEMI       float64 `json:"existingEmi"`
	LoanAmount        float64 `json:"loanAmount"`
	PropertyValuation float64 `json:"propertyValuation"`
	CreditScore       int     `json:"creditScore"`
}

// SubmitResponse is the Kestrel API response format
type SubmitResponse struct {
	ApplicationID string   `json:"applicationId"`
	Status        string   `json:"status"` // "APPROVED" or "REJECTED"
	RiskScore     float64  `json:"riskScore"`
	Knockouts     []string `json:"knockouts"`
}

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int64 // Approvable decided APPROVED
	FalsePositives int64 // Unapprovable decided APPROVED
	TrueNegatives  int64 // Unapprovable decided REJECTED
	FalseNegatives int64 // Approvable decided REJECTED

	TotalProcessed int64
	TotalApproved  int64
	TotalRejected  int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled application CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum applications to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each application result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/applications.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║          KESTREL BENCHMARK - Credit Decision Replay           ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Kestrel URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Println()

	// Check Kestrel is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  cd kestrel && go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	// Read dataset
	fmt.Printf("\nReading applications from %s...\n", *csvPath)
	applications, err := readApplicationCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d applications\n", len(applications))

	// Count label balance
	approvedCount := 0
	for _, app := range applications {
		if app.Approved {
			approvedCount++
		}
	}
	fmt.Printf("  - Approvable: %d (%.2f%%)\n", approvedCount, 100*float64(approvedCount)/float64(len(applications)))
	fmt.Printf("  - Rejectable: %d (%.2f%%)\n", len(applications)-approvedCount, 100*float64(len(applications)-approvedCount)/float64(len(applications)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(applications, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readApplicationCSV(path string, limit int) ([]LabeledApplication, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	var applications []LabeledApplication

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		salary, _ := strconv.ParseFloat(record[colIndex["monthly_salary"]], 64)
		emi, _ := strconv.ParseFloat(record[colIndex["existing_emi"]], 64)
		loan, _ := strconv.ParseFloat(record[colIndex["loan_amount"]], 64)
		valuation, _ := strconv.ParseFloat(record[colIndex["property_valuation"]], 64)
		creditScore, _ := strconv.Atoi(record[colIndex["credit_score"]])
		approved := record[colIndex["approved"]] == "1" ||
			strings.EqualFold(record[colIndex["approved"]], "true")

		app := LabeledApplication{
			FirstName:         record[colIndex["first_name"]],
			PAN:               record[colIndex["pan"]],
			CompanyName:       record[colIndex["company_name"]],
			MonthlySalary:     salary,
			ExistingEMI:       emi,
			LoanAmount:        loan,
			PropertyValuation: valuation,
			CreditScore:       creditScore,
			Approved:          approved,
		}

		applications = append(applications, app)

		if limit > 0 && len(applications) >= limit {
			break
		}
	}

	return applications, nil
}

func runBenchmark(applications []LabeledApplication, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan LabeledApplication, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for app := range work {
				start := time.Now()
				result, err := submitApplication(client, baseURL, tenantID, app)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", app.PAN, err)
					}
					continue
				}

				// Track actual labels
				if app.Approved {
					atomic.AddInt64(&metrics.TotalApproved, 1)
				} else {
					atomic.AddInt64(&metrics.TotalRejected, 1)
				}

				// Calculate confusion matrix
				predicted := result.Status == "APPROVED"
				actual := app.Approved

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if predicted != actual {
						status = "✗"
					}
					fmt.Printf("%s %-10s | Loan: ₹%12.0f | CIBIL: %3d | Expected: %-5v | Kestrel: %-8s (%.1f) | Knockouts: %d\n",
						status,
						app.PAN,
						app.LoanAmount,
						app.CreditScore,
						app.Approved,
						result.Status,
						result.RiskScore,
						len(result.Knockouts),
					)
				}
			}
		}()
	}

	// Send work
	for _, app := range applications {
		work <- app
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func submitApplication(client *http.Client, baseURL, tenantID string, app LabeledApplication) (*SubmitResponse, error) {
	req := SubmitRequest{
		FirstName:         app.FirstName,
		PAN:               app.PAN,
		CompanyName:       app.CompanyName,
		MonthlySalary:     app.MonthlySalary,
		ExistingEMI:       app.ExistingEMI,
		LoanAmount:        app.LoanAmount,
		PropertyValuation: app.PropertyValuation,
		CreditScore:       app.CreditScore,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/applications", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:   %d\n", m.TotalProcessed)
	fmt.Printf("   Total Approvable:  %d\n", m.TotalApproved)
	fmt.Printf("   Total Rejectable:  %d\n", m.TotalRejected)
	fmt.Printf("   Errors:            %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                 APPROVED     REJECTED")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  A  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           R  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DECISION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of approvals, how many were approvable)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of approvable, how many were approved)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct decisions)\n", accuracy)

	fmt.Printf("\n🔍 DECISION ANALYSIS\n")
	if m.TotalApproved > 0 {
		approvalRate := float64(m.TruePositives) / float64(m.TotalApproved) * 100
		declineRate := float64(m.FalseNegatives) / float64(m.TotalApproved) * 100
		fmt.Printf("   Good loans approved:  %d / %d (%.2f%%)\n", m.TruePositives, m.TotalApproved, approvalRate)
		fmt.Printf("   Good loans declined:  %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalApproved, declineRate)
	}
	if m.TotalRejected > 0 {
		badApprovalRate := float64(m.FalsePositives) / float64(m.TotalRejected) * 100
		fmt.Printf("   Bad loans approved:   %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalRejected, badApprovalRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		aps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f applications/sec\n", aps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - approving most good loans")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but declining some good loans")
	} else {
		fmt.Println("   ❌ Poor recall - too many good loans declined")
	}

	if precision >= 0.9 {
		fmt.Println("   ✅ High precision - approvals are sound")
	} else if precision >= 0.7 {
		fmt.Println("   ⚠️  Moderate precision - some risky approvals")
	} else {
		fmt.Println("   ❌ Low precision - approving too many bad loans")
	}

	fmt.Println()
}

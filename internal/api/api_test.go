package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opensource-finance/kestrel/internal/ai"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
	"github.com/opensource-finance/kestrel/internal/policy"
	"github.com/opensource-finance/kestrel/internal/verify"
)

// createTestServer wires a sync-mode server with the full verifier set,
// an in-memory cache and no repository.
func createTestServer(t *testing.T, cfg domain.ServerConfig) *Server {
	t.Helper()

	knockouts, err := policy.NewEngine(nil)
	if err != nil {
		t.Fatalf("policy.NewEngine failed: %v", err)
	}

	verifiers := []verify.Verifier{
		verify.NewEmploymentVerifier(nil),
		verify.NewDocumentVerifier(),
		verify.NewNADocVerifier(),
		verify.NewFraudDetector(),
		verify.NewFinancialScorer(),
		ai.NewEstimator(nil),
	}

	memCache := cache.NewLRUCache(100)
	eng := engine.New(verifiers, knockouts, engine.Options{Cache: memCache})

	return NewServer(cfg, nil, memCache, nil, eng, knockouts, "test-v1", domain.ModeSync)
}

func defaultServerConfig() domain.ServerConfig {
	return domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}
}

func creditworthyRequest() ApplicationRequest {
	return ApplicationRequest{
		FirstName:         "Ravi",
		LastName:          "Deshmukh",
		PAN:               "FMPPK3487L",
		CompanyName:       "Meridian Textiles",
		MonthlySalary:     85000,
		ExistingEMI:       12000,
		LoanAmount:        2800000,
		PropertyValuation: 3500000,
		CreditScore:       790,
	}
}

func postJSON(server *Server, path string, body any, tenantID string) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(data))
	req.Header.Set("Content-Type", "application/json")
	if tenantID != "" {
		req.Header.Set(TenantIDHeader, tenantID)
	}

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestSubmitEndpoint(t *testing.T) {
	server := createTestServer(t, defaultServerConfig())

	t.Run("ApprovedDecision", func(t *testing.T) {
		rr := postJSON(server, "/applications", creditworthyRequest(), "tenant-001")

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp DecisionResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.ApplicationID == "" {
			t.Error("expected applicationId in response")
		}
		if resp.Status != domain.DecisionApproved {
			t.Errorf("expected APPROVED, got %s (%s)", resp.Status, resp.Reason)
		}
		if resp.Terms == nil || resp.Terms.InterestRate != 10.5 || resp.Terms.TenureYears != 15 {
			t.Errorf("unexpected terms: %+v", resp.Terms)
		}
		if len(resp.Reports) != 6 {
			t.Errorf("expected 6 facet reports, got %d", len(resp.Reports))
		}
		if resp.Summary == nil {
			t.Error("expected verification summary")
		}
		if resp.Banking == nil || resp.Banking.Status != "HEALTHY" {
			t.Errorf("unexpected banking snapshot: %+v", resp.Banking)
		}
		if resp.ScheduleSize != 180 {
			t.Errorf("expected 180 schedule entries, got %d", resp.ScheduleSize)
		}
		if resp.Metadata.Version != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp.Metadata.Version)
		}
		if resp.Metadata.TraceID == "" {
			t.Error("expected traceId in metadata")
		}
	})

	t.Run("RejectedDecision", func(t *testing.T) {
		reqBody := ApplicationRequest{
			MonthlySalary:     20000,
			LoanAmount:        3000000,
			PropertyValuation: 2500000,
			CreditScore:       550,
		}
		rr := postJSON(server, "/applications", reqBody, "tenant-001")

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp DecisionResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.Status != domain.DecisionRejected {
			t.Errorf("expected REJECTED, got %s", resp.Status)
		}
		if resp.Terms != nil {
			t.Error("expected no terms on rejection")
		}
		if resp.ScheduleSize != 0 {
			t.Errorf("expected no schedule on rejection, got %d", resp.ScheduleSize)
		}
	})

	t.Run("MissingTenantID", func(t *testing.T) {
		rr := postJSON(server, "/applications", creditworthyRequest(), "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/applications", bytes.NewBufferString("not-json"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(TenantIDHeader, "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidFinancials", func(t *testing.T) {
		cases := []struct {
			name   string
			mutate func(*ApplicationRequest)
		}{
			{"ZeroSalary", func(r *ApplicationRequest) { r.MonthlySalary = 0 }},
			{"NegativeLoan", func(r *ApplicationRequest) { r.LoanAmount = -1 }},
			{"ZeroValuation", func(r *ApplicationRequest) { r.PropertyValuation = 0 }},
			{"MissingCreditScore", func(r *ApplicationRequest) { r.CreditScore = 0 }},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				reqBody := creditworthyRequest()
				tc.mutate(&reqBody)
				rr := postJSON(server, "/applications", reqBody, "tenant-001")
				if rr.Code != http.StatusBadRequest {
					t.Errorf("expected status 400, got %d", rr.Code)
				}
			})
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		rr := postJSON(server, "/applications", creditworthyRequest(), "tenant-001")

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header in response")
		}
		if rr.Header().Get("X-Trace-ID") == "" {
			t.Error("expected X-Trace-ID header in response")
		}
		if rr.Header().Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type: application/json")
		}
	})
}

func TestDecisionEndpoint(t *testing.T) {
	server := createTestServer(t, defaultServerConfig())

	// Submit first so the decision lands in the cache.
	rr := postJSON(server, "/applications", creditworthyRequest(), "tenant-001")
	if rr.Code != http.StatusOK {
		t.Fatalf("submit failed: %d", rr.Code)
	}
	var submitted DecisionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("failed to parse submit response: %v", err)
	}

	t.Run("ServedFromCache", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/applications/"+submitted.ApplicationID+"/decision", nil)
		req.Header.Set(TenantIDHeader, "tenant-001")

		getRR := httptest.NewRecorder()
		server.Router().ServeHTTP(getRR, req)

		if getRR.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", getRR.Code, getRR.Body.String())
		}

		var dec domain.DecisionResult
		if err := json.Unmarshal(getRR.Body.Bytes(), &dec); err != nil {
			t.Fatalf("failed to parse decision: %v", err)
		}
		if dec.Status != submitted.Status {
			t.Errorf("expected status %s, got %s", submitted.Status, dec.Status)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/applications/"+submitted.ApplicationID+"/decision", nil)
		req.Header.Set(TenantIDHeader, "tenant-other")

		getRR := httptest.NewRecorder()
		server.Router().ServeHTTP(getRR, req)

		// No repository is wired, so a cache miss is terminal.
		if getRR.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503 for other tenant without repository, got %d", getRR.Code)
		}
	})
}

func TestAutofillEndpoint(t *testing.T) {
	server := createTestServer(t, defaultServerConfig())

	t.Run("ParsesForm", func(t *testing.T) {
		body := map[string]string{
			"content": "First Name: Priya\nMonthly Salary (INR): 85,000\nCIBIL Score: 790",
		}
		rr := postJSON(server, "/applications/autofill", body, "tenant-001")

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var fields struct {
			FirstName     string   `json:"firstName"`
			MonthlySalary *float64 `json:"monthlySalary"`
			CreditScore   *int     `json:"creditScore"`
			Matched       int      `json:"matched"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &fields); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if fields.FirstName != "Priya" {
			t.Errorf("expected first name 'Priya', got '%s'", fields.FirstName)
		}
		if fields.MonthlySalary == nil || *fields.MonthlySalary != 85000 {
			t.Errorf("expected salary 85000, got %v", fields.MonthlySalary)
		}
		if fields.Matched != 3 {
			t.Errorf("expected 3 matched fields, got %d", fields.Matched)
		}
	})

	t.Run("EmptyContent", func(t *testing.T) {
		rr := postJSON(server, "/applications/autofill", map[string]string{}, "tenant-001")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestPolicyEndpoints(t *testing.T) {
	server := createTestServer(t, defaultServerConfig())

	getPolicy := func() (int, map[string]any) {
		req := httptest.NewRequest(http.MethodGet, "/policy", nil)
		req.Header.Set(TenantIDHeader, "tenant-001")
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		var resp map[string]any
		json.Unmarshal(rr.Body.Bytes(), &resp)
		return rr.Code, resp
	}

	t.Run("ListDefaults", func(t *testing.T) {
		code, resp := getPolicy()
		if code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", code)
		}
		if count, ok := resp["count"].(float64); !ok || count != 3 {
			t.Errorf("expected 3 default rules, got %v", resp["count"])
		}
	})

	t.Run("RejectInvalidExpression", func(t *testing.T) {
		body := UpdatePolicyRequest{
			Rules: []domain.KnockoutRule{
				{ID: "bad", Name: "broken", Expr: "this is not CEL", Reason: "n/a"},
			},
		}
		rr := postJSON(server, "/policy", body, "tenant-001")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}

		// Previous rule set must remain active.
		_, resp := getPolicy()
		if count, ok := resp["count"].(float64); !ok || count != 3 {
			t.Errorf("expected rule set unchanged, got %v", resp["count"])
		}
	})

	t.Run("ReplaceRules", func(t *testing.T) {
		body := UpdatePolicyRequest{
			Rules: []domain.KnockoutRule{
				{
					ID:     "KO-CREDIT-FLOOR",
					Name:   "credit-floor",
					Expr:   "credit_score < 500",
					Reason: "credit score below the lending floor",
				},
			},
		}
		rr := postJSON(server, "/policy", body, "tenant-001")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		_, resp := getPolicy()
		if count, ok := resp["count"].(float64); !ok || count != 1 {
			t.Errorf("expected 1 rule after replacement, got %v", resp["count"])
		}
	})

	t.Run("RejectEmptyRuleSet", func(t *testing.T) {
		rr := postJSON(server, "/policy", UpdatePolicyRequest{}, "tenant-001")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestRateLimiting(t *testing.T) {
	cfg := defaultServerConfig()
	cfg.RateLimit = 2
	cfg.RateLimitWindow = 60
	server := createTestServer(t, cfg)

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/policy", nil)
		req.Header.Set(TenantIDHeader, "tenant-limited")
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		last = rr.Code

		if i < 2 && rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i+1, rr.Code)
		}
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("expected status 429 on third request, got %d", last)
	}

	// Another tenant is counted separately.
	req := httptest.NewRequest(http.MethodGet, "/policy", nil)
	req.Header.Set(TenantIDHeader, "tenant-fresh")
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200 for separate tenant, got %d", rr.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := createTestServer(t, defaultServerConfig())

	t.Run("HealthCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp["status"] != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version 'test-v1', got '%s'", resp["version"])
		}
	})

	t.Run("ReadyCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("TenantMiddlewareExtractsID", func(t *testing.T) {
		var capturedTenantID string

		handler := TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedTenantID = GetTenantID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(TenantIDHeader, "my-tenant-123")

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedTenantID != "my-tenant-123" {
			t.Errorf("expected tenant ID 'my-tenant-123', got '%s'", capturedTenantID)
		}
	})

	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var capturedRequestID string

		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v, ok := r.Context().Value(RequestIDKey).(string); ok {
				capturedRequestID = v
			}
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedRequestID == "" {
			t.Error("expected request ID to be set")
		}

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		// Should not panic
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})

	t.Run("RateLimitDisabledWithoutCache", func(t *testing.T) {
		handler := RateLimitMiddleware(nil, 1, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		for i := 0; i < 5; i++ {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != http.StatusOK {
				t.Fatalf("request %d: expected status 200, got %d", i+1, rr.Code)
			}
		}
	})
}

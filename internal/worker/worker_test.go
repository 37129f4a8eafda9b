package worker

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/ai"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
	"github.com/opensource-finance/kestrel/internal/policy"
	"github.com/opensource-finance/kestrel/internal/verify"
)

func newTestEngine(t *testing.T, eventBus domain.EventBus) *engine.Engine {
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

	return engine.New(verifiers, knockouts, engine.Options{Bus: eventBus})
}

func testApplication(id string) *domain.Application {
	return &domain.Application{
		ID:                id,
		FirstName:         "Asha",
		LastName:          "Pillai",
		PAN:               "BHYPP2741K",
		CompanyName:       "Crescent Logistics",
		MonthlySalary:     85000,
		ExistingEMI:       12000,
		LoanAmount:        2800000,
		PropertyValuation: 3500000,
		CreditScore:       790,
		Status:            domain.AppStatusPending,
	}
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	eng := newTestEngine(t, eventBus)
	worker := NewWorker(eventBus, nil, eng)

	t.Run("StartAndStop", func(t *testing.T) {
		cfg := Config{
			TenantIDs:   []string{"tenant-001"},
			WorkerCount: 1,
		}

		err := worker.Start(cfg)
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := worker.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}

		err = worker.Stop()
		if err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = worker.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("ProcessSubmission", func(t *testing.T) {
		w := NewWorker(eventBus, nil, eng)

		cfg := Config{
			TenantIDs: []string{"tenant-test"},
		}
		w.Start(cfg)
		defer w.Stop()

		// Track decision results
		var decisionReceived atomic.Bool
		var decisionPayload []byte

		eventBus.Subscribe(context.Background(), "tenant-test", domain.TopicDecision, func(ctx context.Context, msg *domain.Message) error {
			decisionPayload = msg.Payload
			decisionReceived.Store(true)
			return nil
		})

		// Allow subscriptions to be active
		time.Sleep(50 * time.Millisecond)

		subMsg := SubmissionMessage{
			ApplicationID: "app-001",
			TenantID:      "tenant-test",
			Application:   testApplication("app-001"),
		}

		payload, _ := json.Marshal(subMsg)
		err := eventBus.Publish(context.Background(), "tenant-test", domain.TopicApplicationSubmitted, payload)
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Wait for processing
		time.Sleep(200 * time.Millisecond)

		if !decisionReceived.Load() {
			t.Error("expected decision to be published")
		}

		if decisionPayload != nil {
			var dec domain.DecisionResult
			if err := json.Unmarshal(decisionPayload, &dec); err != nil {
				t.Fatalf("failed to parse decision: %v", err)
			}

			if dec.ApplicationID != "app-001" {
				t.Errorf("expected applicationID 'app-001', got '%s'", dec.ApplicationID)
			}
			if dec.Status != domain.DecisionApproved {
				t.Errorf("expected APPROVED, got '%s'", dec.Status)
			}
			if dec.Terms == nil {
				t.Error("expected loan terms on approved decision")
			}
		}
	})

	t.Run("RejectionPublished", func(t *testing.T) {
		w := NewWorker(eventBus, nil, eng)

		cfg := Config{
			TenantIDs: []string{"tenant-reject"},
		}
		w.Start(cfg)
		defer w.Stop()

		var rejectionReceived atomic.Bool

		eventBus.Subscribe(context.Background(), "tenant-reject", domain.TopicDecisionRejected, func(ctx context.Context, msg *domain.Message) error {
			rejectionReceived.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		// Over-extended application: loan above 150% of the collateral.
		app := testApplication("app-reject")
		app.CreditScore = 550
		app.MonthlySalary = 20000
		app.LoanAmount = 6000000
		app.PropertyValuation = 2500000

		subMsg := SubmissionMessage{
			ApplicationID: app.ID,
			TenantID:      "tenant-reject",
			Application:   app,
		}

		payload, _ := json.Marshal(subMsg)
		eventBus.Publish(context.Background(), "tenant-reject", domain.TopicApplicationSubmitted, payload)

		time.Sleep(200 * time.Millisecond)

		if !rejectionReceived.Load() {
			t.Error("expected rejection to be published for over-extended application")
		}
	})

	t.Run("MultiTenant", func(t *testing.T) {
		w := NewWorker(eventBus, nil, eng)

		cfg := Config{
			TenantIDs: []string{"tenant-a", "tenant-b"},
		}
		w.Start(cfg)
		defer w.Stop()

		stats := w.GetStats()
		if stats.SubscriptionCount != 2 {
			t.Errorf("expected 2 subscriptions for 2 tenants, got %d", stats.SubscriptionCount)
		}
	})
}

func TestSubmissionMessageParsing(t *testing.T) {
	msg := SubmissionMessage{
		ApplicationID: "app-123",
		TenantID:      "tenant-001",
		TraceID:       "trace-456",
		Application:   testApplication("app-123"),
		Documents: []domain.Document{
			{ID: "doc-1", ApplicationID: "app-123", Type: domain.DocSalarySlips, Filename: "slip.pdf"},
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var parsed SubmissionMessage
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if parsed.ApplicationID != msg.ApplicationID {
		t.Errorf("expected ApplicationID '%s', got '%s'", msg.ApplicationID, parsed.ApplicationID)
	}
	if parsed.Application == nil || parsed.Application.LoanAmount != 2800000 {
		t.Errorf("application lost on round trip: %+v", parsed.Application)
	}
	if len(parsed.Documents) != 1 || parsed.Documents[0].Type != domain.DocSalarySlips {
		t.Errorf("documents lost on round trip: %+v", parsed.Documents)
	}
}

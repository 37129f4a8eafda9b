// Package worker provides async application processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
)

// Worker evaluates submitted applications asynchronously from the
// EventBus. The decision and its derived records are persisted and
// published by the engine; the worker only drives it.
type Worker struct {
	bus    domain.EventBus
	repo   domain.Repository
	engine *engine.Engine

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, eng *engine.Engine) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		engine: eng,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing submissions for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicApplicationSubmitted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicApplicationSubmitted, func(ctx context.Context, msg *domain.Message) error {
		return w.processSubmission(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicApplicationSubmitted,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processSubmission(ctx, msg.TenantID, msg)
}

// SubmissionMessage is the payload for application processing. The
// application and its documents may be carried inline; when only the
// ID is present the worker loads them from the repository.
type SubmissionMessage struct {
	ApplicationID string              `json:"applicationId"`
	TenantID      string              `json:"tenantId"`
	TraceID       string              `json:"traceId,omitempty"`
	Application   *domain.Application `json:"application,omitempty"`
	Documents     []domain.Document   `json:"documents,omitempty"`
}

// processSubmission runs one application through the decision pipeline.
func (w *Worker) processSubmission(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var subMsg SubmissionMessage
	if err := json.Unmarshal(msg.Payload, &subMsg); err != nil {
		slog.Error("failed to parse submission message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if subMsg.TenantID != "" {
		tenantID = subMsg.TenantID
	}

	appID := subMsg.ApplicationID
	if appID == "" && subMsg.Application != nil {
		appID = subMsg.Application.ID
	}

	slog.Debug("processing application",
		"application_id", appID,
		"tenant_id", tenantID,
	)

	app := subMsg.Application
	docs := subMsg.Documents
	if app == nil {
		if w.repo == nil {
			slog.Error("submission carries no application and no repository is configured",
				"application_id", appID,
			)
			return errors.New("submission payload has no application")
		}
		var err error
		app, err = w.repo.GetApplication(ctx, tenantID, appID)
		if err != nil {
			slog.Error("failed to load application",
				"application_id", appID,
				"error", err,
			)
			return err
		}
		docs, err = w.repo.ListDocuments(ctx, tenantID, appID)
		if err != nil {
			slog.Error("failed to load documents",
				"application_id", appID,
				"error", err,
			)
			return err
		}
	}

	result, err := w.engine.Evaluate(ctx, tenantID, app, docs)
	if err != nil {
		slog.Error("application evaluation failed",
			"application_id", appID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	slog.Info("application processed",
		"application_id", appID,
		"tenant_id", tenantID,
		"status", result.Decision.Status,
		"risk_score", result.Decision.RiskScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}

// Package notify delivers decision notifications. The engine publishes
// through a Sink and never depends on delivery success.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Notification is the applicant-facing decision event.
type Notification struct {
	ApplicationID string    `json:"applicationId"`
	Email         string    `json:"email,omitempty"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason"`
	SentAt        time.Time `json:"sentAt"`
}

// Sink receives decision notifications. Implementations must be safe
// for concurrent use.
type Sink interface {
	Notify(ctx context.Context, tenantID string, n *Notification) error
}

// BusSink publishes notifications onto the event bus, where delivery
// channels (email, SMS) consume them downstream.
type BusSink struct {
	bus domain.EventBus
}

func NewBusSink(bus domain.EventBus) *BusSink {
	return &BusSink{bus: bus}
}

func (s *BusSink) Notify(ctx context.Context, tenantID string, n *Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.bus.Publish(ctx, tenantID, domain.TopicNotification, payload)
}

// LogSink writes notifications to the structured log. Used when no bus
// is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(ctx context.Context, tenantID string, n *Notification) error {
	s.logger.Info("decision notification",
		"tenant_id", tenantID,
		"application_id", n.ApplicationID,
		"status", n.Status,
		"reason", n.Reason,
	)
	return nil
}

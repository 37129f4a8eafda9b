package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/autofill"
	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
	"github.com/opensource-finance/kestrel/internal/policy"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/worker"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	engine    *engine.Engine
	knockouts *policy.Engine
	version   string
	mode      domain.EvaluationMode
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, knockouts *policy.Engine, version string, mode domain.EvaluationMode) *Handler {
	if mode == "" {
		mode = domain.ModeSync
	}
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		engine:    eng,
		knockouts: knockouts,
		version:   version,
		mode:      mode,
	}
}

// ApplicationRequest is the request body for POST /applications.
type ApplicationRequest struct {
	FirstName         string  `json:"firstName"`
	LastName          string  `json:"lastName"`
	Email             string  `json:"email,omitempty"`
	PAN               string  `json:"pan"`
	Aadhaar           string  `json:"aadhaar,omitempty"`
	CompanyName       string  `json:"companyName,omitempty"`
	MonthlySalary     float64 `json:"monthlySalary"`
	ExistingEMI       float64 `json:"existingEmi"`
	LoanAmount        float64 `json:"loanAmount"`
	PropertyValuation float64 `json:"propertyValuation"`
	CreditScore       int     `json:"creditScore"`

	IsRented            bool `json:"isRented"`
	HasOwnProperty      bool `json:"hasOwnProperty"`
	IsNonAgricultural   bool `json:"isNonAgricultural"`
	HasExistingMortgage bool `json:"hasExistingMortgage"`

	Documents []DocumentInfo `json:"documents,omitempty"`
}

// DocumentInfo references one uploaded document.
type DocumentInfo struct {
	Type       string `json:"type"`
	Filename   string `json:"filename"`
	ContentRef string `json:"contentRef"`
	SizeBytes  int64  `json:"sizeBytes"`
}

// DecisionResponse is the dossier returned for a synchronous decision.
type DecisionResponse struct {
	ApplicationID string                       `json:"applicationId"`
	Status        string                       `json:"status"`
	RiskScore     float64                      `json:"riskScore"`
	RiskLevel     string                       `json:"riskLevel"`
	Reason        string                       `json:"reason"`
	Terms         *domain.LoanTerms            `json:"terms,omitempty"`
	Knockouts     []string                     `json:"knockouts,omitempty"`
	Reports       []*domain.VerificationReport `json:"reports"`
	Summary       *domain.Summary              `json:"summary"`
	Banking       *domain.BankingAnalysis      `json:"banking"`
	ScheduleSize  int                          `json:"scheduleSize"`
	Metadata      struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// SubmitApplication handles POST /applications. In sync mode it returns
// the full decision dossier; in async mode it enqueues the submission
// and returns 202.
func (h *Handler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req ApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.MonthlySalary <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "monthlySalary must be positive",
		})
		return
	}
	if req.LoanAmount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "loanAmount must be positive",
		})
		return
	}
	if req.PropertyValuation <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "propertyValuation must be positive",
		})
		return
	}
	if req.CreditScore <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "creditScore is required",
		})
		return
	}

	now := time.Now().UTC()
	app := &domain.Application{
		ID:                  uuid.New().String(),
		TenantID:            tenantID,
		FirstName:           req.FirstName,
		LastName:            req.LastName,
		Email:               req.Email,
		PAN:                 req.PAN,
		Aadhaar:             req.Aadhaar,
		CompanyName:         req.CompanyName,
		MonthlySalary:       req.MonthlySalary,
		ExistingEMI:         req.ExistingEMI,
		LoanAmount:          req.LoanAmount,
		PropertyValuation:   req.PropertyValuation,
		CreditScore:         req.CreditScore,
		IsRented:            req.IsRented,
		HasOwnProperty:      req.HasOwnProperty,
		IsNonAgricultural:   req.IsNonAgricultural,
		HasExistingMortgage: req.HasExistingMortgage,
		Status:              domain.AppStatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	docs := make([]domain.Document, 0, len(req.Documents))
	for _, d := range req.Documents {
		docs = append(docs, domain.Document{
			ID:            uuid.New().String(),
			ApplicationID: app.ID,
			Type:          d.Type,
			Filename:      d.Filename,
			ContentRef:    d.ContentRef,
			SizeBytes:     d.SizeBytes,
			UploadedAt:    now,
		})
	}

	if h.repo != nil {
		for i := range docs {
			if err := h.repo.SaveDocument(ctx, tenantID, &docs[i]); err != nil {
				slog.Error("failed to save document",
					"application_id", app.ID,
					"error", err,
				)
			}
		}
	}

	if h.mode == domain.ModeAsync && h.bus != nil {
		h.submitAsync(w, r, tenantID, app, docs)
		return
	}

	result, err := h.engine.Evaluate(ctx, tenantID, app, docs)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidApplication) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("evaluation failed",
			"application_id", app.ID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "evaluation failed",
		})
		return
	}

	resp := DecisionResponse{
		ApplicationID: app.ID,
		Status:        result.Decision.Status,
		RiskScore:     result.Decision.RiskScore,
		RiskLevel:     result.Decision.RiskLevel,
		Reason:        result.Decision.Reason,
		Terms:         result.Decision.Terms,
		Knockouts:     result.Decision.Knockouts,
		Reports:       result.Reports,
		Summary:       result.Summary,
		Banking:       decision.AnalyzeBanking(app),
		ScheduleSize:  len(result.Schedule),
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// submitAsync persists the application and hands it to the worker
// through the bus.
func (h *Handler) submitAsync(w http.ResponseWriter, r *http.Request, tenantID string, app *domain.Application, docs []domain.Document) {
	ctx := r.Context()

	if h.repo != nil {
		if err := h.repo.SaveApplication(ctx, tenantID, app); err != nil {
			slog.Error("failed to save application",
				"application_id", app.ID,
				"error", err,
			)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save application",
			})
			return
		}
	}

	msg := worker.SubmissionMessage{
		ApplicationID: app.ID,
		TenantID:      tenantID,
		TraceID:       GetTraceID(ctx),
		Application:   app,
		Documents:     docs,
	}
	payload, _ := json.Marshal(msg)
	if err := h.bus.Publish(ctx, tenantID, domain.TopicApplicationSubmitted, payload); err != nil {
		slog.Error("failed to enqueue submission",
			"application_id", app.ID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to enqueue submission",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"applicationId": app.ID,
		"status":        domain.AppStatusPending,
	})
}

// Reevaluate handles POST /applications/{id}/reevaluate. Prior derived
// records are replaced, never duplicated.
func (h *Handler) Reevaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	appID := chi.URLParam(r, "id")

	result, err := h.engine.Reevaluate(ctx, tenantID, appID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "application not found",
			})
			return
		}
		slog.Error("re-evaluation failed",
			"application_id", appID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "re-evaluation failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, result.Decision)
}

// Autofill handles POST /applications/autofill: parses a pasted
// key:value form into structured application fields.
func (h *Handler) Autofill(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "content is required",
		})
		return
	}

	fields := autofill.ParseText(req.Content)
	writeJSON(w, http.StatusOK, fields)
}

// GetApplication retrieves an application by ID.
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	appID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	app, err := h.repo.GetApplication(ctx, tenantID, appID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "application not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, app)
}

// GetDecision retrieves the latest decision for an application,
// serving from the cache when possible.
func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	appID := chi.URLParam(r, "id")

	if h.cache != nil {
		if dec, err := h.cache.GetDecision(ctx, tenantID, appID); err == nil && dec != nil {
			writeJSON(w, http.StatusOK, dec)
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dec, err := h.repo.LatestDecision(ctx, tenantID, appID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "decision not found",
		})
		return
	}

	if h.cache != nil {
		if err := h.cache.SetDecision(ctx, tenantID, appID, dec, 10*time.Minute); err != nil {
			slog.Warn("failed to cache decision", "application_id", appID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, dec)
}

// ListReports returns the latest verification report per facet.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	appID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	reports, err := h.repo.ListReports(ctx, tenantID, appID)
	if err != nil {
		slog.Error("failed to list reports", "application_id", appID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list reports",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reports": reports,
		"count":   len(reports),
	})
}

// GetSchedule returns the amortization schedule for an approved
// application. Unapproved applications have an empty schedule.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	appID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	schedule, err := h.repo.ListSchedule(ctx, tenantID, appID)
	if err != nil {
		slog.Error("failed to list schedule", "application_id", appID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list schedule",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"schedule": schedule,
		"months":   len(schedule),
	})
}

// ListPolicy returns the loaded knockout rules.
func (h *Handler) ListPolicy(w http.ResponseWriter, r *http.Request) {
	if h.knockouts == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "policy engine not available",
		})
		return
	}

	rules := h.knockouts.Rules()
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// UpdatePolicyRequest is the request body for replacing knockout rules.
type UpdatePolicyRequest struct {
	Rules []domain.KnockoutRule `json:"rules"`
}

// UpdatePolicy replaces the knockout rule set. A compile failure leaves
// the previous rules active.
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	if h.knockouts == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "policy engine not available",
		})
		return
	}

	var req UpdatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Rules) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "at least one rule is required",
		})
		return
	}
	for _, rule := range req.Rules {
		if rule.ID == "" || rule.Expr == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "rule id and expr are required",
			})
			return
		}
	}

	if err := h.knockouts.Load(req.Rules); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule expression: " + err.Error(),
		})
		return
	}

	slog.Info("knockout rules replaced", "count", len(req.Rules))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "policy updated",
		"count":   len(req.Rules),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

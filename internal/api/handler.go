package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/behavior"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/opensource-finance/harrier/internal/scoring"
)

// Scorer runs the decisioning pipeline for one transaction. Satisfied
// by scoring.Service.
type Scorer interface {
	Score(ctx context.Context, tx *domain.Transaction) (*scoring.Result, error)
}

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	scorer    Scorer
	profiles  *behavior.Service
	evaluator rules.Evaluator
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, scorer Scorer, profiles *behavior.Service, evaluator rules.Evaluator, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		scorer:    scorer,
		profiles:  profiles,
		evaluator: evaluator,
		version:   version,
	}
}

// TransactionRequest is the request body for POST /score and the
// payload accepted by POST /transactions.
type TransactionRequest struct {
	CustomerID string  `json:"customerId"`
	MerchantID string  `json:"merchantId,omitempty"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	Channel    string  `json:"channel"`

	OccurredAt time.Time `json:"occurredAt,omitempty"`

	DeviceID  string `json:"deviceId,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
	Country   string `json:"country,omitempty"`
}

func (req *TransactionRequest) toTransaction() *domain.Transaction {
	now := time.Now().UTC()
	tx := &domain.Transaction{
		ID:         uuid.New().String(),
		CustomerID: req.CustomerID,
		MerchantID: req.MerchantID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Channel:    domain.Channel(req.Channel),
		OccurredAt: req.OccurredAt,
		CreatedAt:  now,
		DeviceID:   req.DeviceID,
		IPAddress:  req.IPAddress,
		Country:    req.Country,
	}
	if tx.OccurredAt.IsZero() {
		tx.OccurredAt = now
	}
	return tx
}

// ScoreResponse is the response for POST /score.
type ScoreResponse struct {
	TxID       string           `json:"txId"`
	Action     domain.Action    `json:"action"`
	MLScore    float64          `json:"mlScore"`
	FinalScore float64          `json:"finalScore"`
	RuleHits   []domain.RuleHit `json:"ruleHits"`
	AlertID    string           `json:"alertId,omitempty"`
	CaseID     string           `json:"caseId,omitempty"`
	Metadata   struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Score handles POST /score: synchronous scoring of one transaction.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	tx := req.toTransaction()
	if err := tx.Validate(); err != nil {
		writeError(w, err)
		return
	}

	if err := h.repo.SaveTransaction(ctx, tx); err != nil {
		slog.Error("failed to save transaction", "tx_id", tx.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save transaction",
		})
		return
	}

	result, err := h.scorer.Score(ctx, tx)
	if err != nil {
		slog.Error("scoring failed", "tx_id", tx.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "scoring failed",
		})
		return
	}

	resp := ScoreResponse{
		TxID:       tx.ID,
		Action:     result.Action,
		MLScore:    result.MLScore,
		FinalScore: result.FinalScore,
		RuleHits:   result.RuleHits,
		AlertID:    result.AlertID,
		CaseID:     result.CaseID,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// Ingest handles POST /transactions: asynchronous ingestion through the
// event bus. The transaction is validated, queued and scored by the
// worker.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	tx := req.toTransaction()
	if err := tx.Validate(); err != nil {
		writeError(w, err)
		return
	}

	// Payload shape matches worker.TransactionMessage.
	payload, err := json.Marshal(map[string]any{
		"txId":       tx.ID,
		"customerId": tx.CustomerID,
		"merchantId": tx.MerchantID,
		"amount":     tx.Amount,
		"currency":   tx.Currency,
		"channel":    tx.Channel,
		"occurredAt": tx.OccurredAt,
		"deviceId":   tx.DeviceID,
		"ipAddress":  tx.IPAddress,
		"country":    tx.Country,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode transaction",
		})
		return
	}

	if err := h.bus.Publish(r.Context(), domain.TopicTransactionIngested, payload); err != nil {
		slog.Error("failed to publish transaction", "tx_id", tx.ID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "failed to queue transaction",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"txId":   tx.ID,
		"status": "queued",
	})
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.repo.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// GetProfile retrieves a customer's behavior profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profiles.Profile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// ListRules returns all rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	ruleSet, err := h.repo.ListRules(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": ruleSet,
		"count": len(ruleSet),
	})
}

// GetRule retrieves a rule by ID.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.repo.GetRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// RuleRequest is the request body for creating or updating a rule.
type RuleRequest struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Severity   string `json:"severity"`
	Enabled    *bool  `json:"enabled,omitempty"`
	Author     string `json:"author,omitempty"`
}

// CreateRule creates a new rule. The expression is compiled before the
// rule is accepted, so a rule that cannot evaluate never reaches the
// store.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	severity, err := domain.ParseSeverity(req.Severity)
	if err != nil {
		writeError(w, err)
		return
	}

	rule, err := domain.NewRule(req.Name, req.Expression, severity, req.Author)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}

	if err := h.evaluator.Validate(rule.Expression); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule expression: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveRule(r.Context(), rule); err != nil {
		writeError(w, err)
		return
	}

	slog.Info("rule created", "rule_id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, rule)
}

// UpdateRule updates an existing rule's expression, severity or
// enabled flag.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rule, err := h.repo.GetRule(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Name != "" {
		rule.Name = req.Name
	}
	if req.Expression != "" {
		rule.Expression = req.Expression
	}
	if req.Severity != "" {
		severity, err := domain.ParseSeverity(req.Severity)
		if err != nil {
			writeError(w, err)
			return
		}
		rule.Severity = severity
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	rule.UpdatedAt = time.Now().UTC()
	rule.UpdatedBy = req.Author

	if err := rule.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if err := h.evaluator.Validate(rule.Expression); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule expression: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveRule(ctx, rule); err != nil {
		writeError(w, err)
		return
	}

	slog.Info("rule updated", "rule_id", rule.ID, "enabled", rule.Enabled)
	writeJSON(w, http.StatusOK, rule)
}

// ListAlerts returns the most recent alerts.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	alerts, err := h.repo.ListRecentAlerts(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GetAlert retrieves an alert by ID.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := h.repo.GetAlert(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// ListCases returns cases with limit/offset paging.
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	cases, err := h.repo.ListCases(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cases": cases,
		"count": len(cases),
	})
}

// GetCase retrieves a case by ID.
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	c, err := h.repo.GetCase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ResolveCaseRequest is the request body for POST /cases/{id}/resolve.
type ResolveCaseRequest struct {
	Decision string `json:"decision"`
	Note     string `json:"note,omitempty"`
	Analyst  string `json:"analyst,omitempty"`
}

// ResolveCase closes a case with a terminal decision. Resolving an
// already resolved case returns 409.
func (h *Handler) ResolveCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	c, err := h.repo.GetCase(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req ResolveCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Note != "" {
		c.AddNote(req.Note, req.Analyst)
	}
	if err := c.Resolve(domain.CaseDecision(req.Decision)); err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.repo.UpdateCase(ctx, c)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("case resolved", "case_id", updated.ID, "decision", updated.Decision)
	writeJSON(w, http.StatusOK, updated)
}

// CaseNoteRequest is the request body for POST /cases/{id}/notes.
type CaseNoteRequest struct {
	Note    string `json:"note"`
	Analyst string `json:"analyst,omitempty"`
}

// AddCaseNote appends an investigation note to a case.
func (h *Handler) AddCaseNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	c, err := h.repo.GetCase(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req CaseNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Note == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "note is required",
		})
		return
	}

	c.AddNote(req.Note, req.Analyst)

	updated, err := h.repo.UpdateCase(ctx, c)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
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

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps domain sentinel errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrCaseResolved):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		writeJSON(w, status, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

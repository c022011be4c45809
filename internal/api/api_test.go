package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/opensource-finance/harrier/internal/behavior"
	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/decision"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/opensource-finance/harrier/internal/scoring"
)

// createTestServer wires a server against a throwaway SQLite database.
func createTestServer(t *testing.T, eventBus domain.EventBus) (*Server, domain.Repository) {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "harrier-api-*.db")
	if err != nil {
		t.Fatalf("failed to create temp db: %v", err)
	}
	f.Close()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: f.Name(),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	evaluator, err := rules.NewCELEvaluator()
	if err != nil {
		t.Fatalf("failed to create evaluator: %v", err)
	}

	profileCache := cache.NewLRUCache(100)
	profiles := behavior.NewService(repo, profileCache)
	scorer := scoring.NewService(
		profiles, repo, repo, repo, repo, repo,
		scoring.NewHeuristicScorer(), decision.NewService(), evaluator, eventBus,
	)

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	return NewServer(cfg, repo, profileCache, eventBus, scorer, profiles, evaluator, "test-v1"), repo
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestScoreEndpoint(t *testing.T) {
	server, _ := createTestServer(t, nil)

	t.Run("ApprovesLowRiskTransaction", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/score", TransactionRequest{
			CustomerID: "cust-001",
			MerchantID: "merch-001",
			Amount:     100,
			Currency:   "USD",
			Channel:    "ECOM",
			Country:    "EC",
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp ScoreResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.TxID == "" {
			t.Error("expected txId in response")
		}
		if resp.Action != domain.ActionApprove {
			t.Errorf("expected APPROVE for low-risk transaction, got %s", resp.Action)
		}
		if resp.AlertID != "" || resp.CaseID != "" {
			t.Errorf("approve must not raise an alert or case: %+v", resp)
		}
		if resp.Metadata.Version != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp.Metadata.Version)
		}
		if resp.Metadata.TraceID == "" {
			t.Error("expected traceId in metadata")
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/score", bytes.NewBufferString("not-json"))
		req.Header.Set("Content-Type", "application/json")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("RejectsNegativeAmount", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/score", TransactionRequest{
			CustomerID: "cust-001",
			Amount:     -10,
			Currency:   "USD",
			Channel:    "ECOM",
		})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("RejectsUnknownChannel", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/score", TransactionRequest{
			CustomerID: "cust-001",
			Amount:     10,
			Currency:   "USD",
			Channel:    "WIRE",
		})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/score", TransactionRequest{
			CustomerID: "cust-001",
			Amount:     10,
			Currency:   "USD",
			Channel:    "POS",
		})

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

func TestScoreDeclineFlow(t *testing.T) {
	server, repo := createTestServer(t, nil)
	ctx := context.Background()

	// A critical rule forces DECLINE regardless of the model score.
	rule, err := domain.NewRule("Huge Amount Hard Block", "amount > 9000.0", domain.SeverityCritical, "tester")
	if err != nil {
		t.Fatalf("failed to build rule: %v", err)
	}
	if err := repo.SaveRule(ctx, rule); err != nil {
		t.Fatalf("failed to save rule: %v", err)
	}
	if err := repo.SaveAnalyst(ctx, &domain.Analyst{ID: "analyst-1", Name: "Ana", Email: "ana@example.com"}); err != nil {
		t.Fatalf("failed to save analyst: %v", err)
	}

	rr := doJSON(t, server, http.MethodPost, "/score", TransactionRequest{
		CustomerID: "cust-decline",
		MerchantID: "merch-001",
		Amount:     9500,
		Currency:   "USD",
		Channel:    "ECOM",
		Country:    "EC",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp ScoreResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if resp.Action != domain.ActionDecline {
		t.Fatalf("expected DECLINE, got %s", resp.Action)
	}
	if resp.FinalScore != 1.0 {
		t.Errorf("critical hit must pin final score to 1.0, got %f", resp.FinalScore)
	}
	if len(resp.RuleHits) != 1 || resp.RuleHits[0].RuleName != "Huge Amount Hard Block" {
		t.Errorf("unexpected rule hits: %+v", resp.RuleHits)
	}
	if resp.AlertID == "" || resp.CaseID == "" {
		t.Fatalf("decline must raise an alert and a case: %+v", resp)
	}

	t.Run("AlertRetrievable", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/alerts/"+resp.AlertID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var alert domain.Alert
		json.Unmarshal(rr.Body.Bytes(), &alert)
		if alert.TransactionID != resp.TxID {
			t.Errorf("alert references wrong transaction: %s", alert.TransactionID)
		}
	})

	t.Run("TransactionRetrievable", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/transactions/"+resp.TxID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("ProfileRefreshed", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/customers/cust-decline/profile", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var profile domain.BehaviorProfile
		json.Unmarshal(rr.Body.Bytes(), &profile)
		if profile.TxCount24h != 1 {
			t.Errorf("expected 1 transaction in 24h window, got %d", profile.TxCount24h)
		}
	})

	t.Run("CaseLifecycle", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/cases/"+resp.CaseID+"/notes", CaseNoteRequest{
			Note:    "checked device history",
			Analyst: "Ana",
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("note failed: %d: %s", rr.Code, rr.Body.String())
		}

		rr = doJSON(t, server, http.MethodPost, "/cases/"+resp.CaseID+"/resolve", ResolveCaseRequest{
			Decision: "CONFIRMED_FRAUD",
			Note:     "cardholder confirmed",
			Analyst:  "Ana",
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("resolve failed: %d: %s", rr.Code, rr.Body.String())
		}

		var resolved domain.Case
		json.Unmarshal(rr.Body.Bytes(), &resolved)
		if resolved.Decision != domain.CaseConfirmedFraud {
			t.Errorf("expected CONFIRMED_FRAUD, got %s", resolved.Decision)
		}

		// Second resolution hits a conflict.
		rr = doJSON(t, server, http.MethodPost, "/cases/"+resp.CaseID+"/resolve", ResolveCaseRequest{
			Decision: "FALSE_POSITIVE",
		})
		if rr.Code != http.StatusConflict {
			t.Errorf("expected status 409 for double resolution, got %d", rr.Code)
		}
	})

	t.Run("InvalidResolutionDecision", func(t *testing.T) {
		// Decline a second transaction to get a fresh pending case.
		rr := doJSON(t, server, http.MethodPost, "/score", TransactionRequest{
			CustomerID: "cust-decline-2",
			Amount:     9600,
			Currency:   "USD",
			Channel:    "ECOM",
		})
		var resp2 ScoreResponse
		json.Unmarshal(rr.Body.Bytes(), &resp2)
		if resp2.CaseID == "" {
			t.Fatalf("expected a case: %s", rr.Body.String())
		}

		rr = doJSON(t, server, http.MethodPost, "/cases/"+resp2.CaseID+"/resolve", ResolveCaseRequest{
			Decision: "MAYBE",
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 for unknown decision, got %d", rr.Code)
		}
	})

	t.Run("ListAlertsAndCases", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/alerts", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var alerts struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &alerts)
		if alerts.Count < 2 {
			t.Errorf("expected at least 2 alerts, got %d", alerts.Count)
		}

		rr = doJSON(t, server, http.MethodGet, "/cases?limit=1", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var cases struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &cases)
		if cases.Count != 1 {
			t.Errorf("expected 1 case with limit=1, got %d", cases.Count)
		}
	})
}

func TestRuleEndpoints(t *testing.T) {
	server, _ := createTestServer(t, nil)

	t.Run("CreateAndGet", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/rules", RuleRequest{
			Name:       "High Amount Transaction",
			Expression: "amount > 2000.0",
			Severity:   "high",
			Author:     "tester",
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		var created domain.Rule
		json.Unmarshal(rr.Body.Bytes(), &created)
		if created.ID == "" || !created.Enabled {
			t.Errorf("unexpected created rule: %+v", created)
		}

		rr = doJSON(t, server, http.MethodGet, "/rules/"+created.ID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("DuplicateNameConflicts", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/rules", RuleRequest{
			Name:       "High Amount Transaction",
			Expression: "amount > 3000.0",
			Severity:   "high",
		})
		if rr.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("RejectsBadExpression", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/rules", RuleRequest{
			Name:       "Broken Expression Rule",
			Expression: "amount >>> oops(",
			Severity:   "medium",
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("RejectsUnknownSeverity", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/rules", RuleRequest{
			Name:       "Bad Severity Rule",
			Expression: "amount > 100.0 && true",
			Severity:   "catastrophic",
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("UpdateDisablesRule", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/rules", RuleRequest{
			Name:       "Velocity Check (4x/10m)",
			Expression: "tx_count_10m >= 4",
			Severity:   "high",
		})
		var created domain.Rule
		json.Unmarshal(rr.Body.Bytes(), &created)

		enabled := false
		rr = doJSON(t, server, http.MethodPut, "/rules/"+created.ID, RuleRequest{
			Enabled:  &enabled,
			Severity: "medium",
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var updated domain.Rule
		json.Unmarshal(rr.Body.Bytes(), &updated)
		if updated.Enabled {
			t.Error("expected rule to be disabled")
		}
		if updated.Severity != domain.SeverityMedium {
			t.Errorf("expected severity medium, got %s", updated.Severity)
		}
	})

	t.Run("UpdateMissingRule", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPut, "/rules/no-such-rule", RuleRequest{
			Expression: "amount > 1.0 && true",
		})
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("List", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/rules", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 2 {
			t.Errorf("expected 2 rules, got %d", resp.Count)
		}
	})
}

func TestIngestEndpoint(t *testing.T) {
	t.Run("QueuesOnBus", func(t *testing.T) {
		eventBus := bus.NewChannelBus(100)
		defer eventBus.Close()

		server, _ := createTestServer(t, eventBus)

		rr := doJSON(t, server, http.MethodPost, "/transactions", TransactionRequest{
			CustomerID: "cust-async",
			Amount:     75,
			Currency:   "USD",
			Channel:    "ECOM",
		})
		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp["txId"] == "" || resp["status"] != "queued" {
			t.Errorf("unexpected response: %v", resp)
		}
	})

	t.Run("UnavailableWithoutBus", func(t *testing.T) {
		server, _ := createTestServer(t, nil)

		rr := doJSON(t, server, http.MethodPost, "/transactions", TransactionRequest{
			CustomerID: "cust-async",
			Amount:     75,
			Currency:   "USD",
			Channel:    "ECOM",
		})
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", rr.Code)
		}
	})
}

func TestNotFoundMapping(t *testing.T) {
	server, _ := createTestServer(t, nil)

	for _, path := range []string{
		"/transactions/missing",
		"/rules/missing",
		"/alerts/missing",
		"/cases/missing",
		"/customers/missing/profile",
	} {
		rr := doJSON(t, server, http.MethodGet, path, nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", path, rr.Code)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := createTestServer(t, nil)

	t.Run("HealthCheck", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/health", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
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
		rr := doJSON(t, server, http.MethodGet, "/ready", nil)
		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
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

	t.Run("TracingMiddlewareKeepsSuppliedRequestID", func(t *testing.T) {
		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-supplied")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if got := rr.Header().Get("X-Request-ID"); got != "req-supplied" {
			t.Errorf("expected supplied request id to be kept, got %q", got)
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

	t.Run("CORSPreflight", func(t *testing.T) {
		handler := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("preflight must not reach the handler")
		}))

		req := httptest.NewRequest(http.MethodOptions, "/score", nil)
		req.Header.Set("Origin", "https://console.example.com")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusNoContent {
			t.Errorf("expected status 204, got %d", rr.Code)
		}
		if rr.Header().Get("Access-Control-Allow-Origin") != "https://console.example.com" {
			t.Errorf("unexpected allow-origin: %s", rr.Header().Get("Access-Control-Allow-Origin"))
		}
	})
}

//go:build integration
// +build integration

// Package integration exercises a running Lavandowski server end to end:
//
//	POST /runs → worker → dossier → prompt → LLM → decision → registry → export
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// The server under test must be started with a reachable warehouse and
// OPENAI_API_KEY. Runs are always queued as dry runs, so nothing is submitted
// to case management. LAVANDOWSKI_TEST_USER_ID selects the user analyzed by
// TestDryRunSingleUser; the test is skipped when it is unset.
package integration

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL string
	UserID  int64
	Timeout time.Duration
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("LAVANDOWSKI_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	userID, _ := strconv.ParseInt(os.Getenv("LAVANDOWSKI_TEST_USER_ID"), 10, 64)
	return TestConfig{
		BaseURL: baseURL,
		UserID:  userID,
		Timeout: 5 * time.Minute,
	}
}

// RunResponse mirrors GET /runs/{id}.
type RunResponse struct {
	RunID            string       `json:"run_id"`
	Status           string       `json:"status"`
	Total            int          `json:"total"`
	Done             int          `json:"done"`
	DryRun           bool         `json:"dry_run"`
	Results          []CaseResult `json:"results"`
	Summary          *RunSummary  `json:"summary"`
	Percent          float64      `json:"percent"`
	RemainingSeconds int64        `json:"remaining_seconds"`
}

type CaseResult struct {
	UserID          int64  `json:"user_id"`
	AlertType       string `json:"alert_type"`
	RiskScore       int    `json:"risk_score"`
	ConclusionLabel string `json:"conclusion_label"`
	APIResponse     string `json:"api_response"`
	Error           string `json:"error"`
	Payload         struct {
		UserID      int64  `json:"user_id"`
		Description string `json:"description"`
		Conclusion  string `json:"conclusion"`
		Priority    string `json:"priority"`
	} `json:"payload"`
}

type RunSummary struct {
	Total        int     `json:"total"`
	Analyzed     int     `json:"analyzed"`
	Failed       int     `json:"failed"`
	AverageScore float64 `json:"average_score"`
	Error        string  `json:"error"`
}

var client = &http.Client{Timeout: 30 * time.Second}

func do(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	return resp, respBody
}

func TestHealthAndReadiness(t *testing.T) {
	config := getTestConfig()

	resp, body := do(t, http.MethodGet, config.BaseURL+"/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from /health, got %d: %s", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodGet, config.BaseURL+"/ready", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Server not ready: %s", body)
	}
}

func TestDashboardStats(t *testing.T) {
	config := getTestConfig()

	resp, body := do(t, http.MethodGet, config.BaseURL+"/stats?days=7", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from /stats, got %d: %s", resp.StatusCode, body)
	}
	var stats struct {
		Days          int   `json:"days"`
		TotalAnalyses int64 `json:"total_analyses"`
	}
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("Invalid stats body: %v", err)
	}
	if stats.Days != 7 {
		t.Errorf("Expected days=7, got %d", stats.Days)
	}

	resp, _ = do(t, http.MethodGet, config.BaseURL+"/stats?days=90", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for days=90, got %d", resp.StatusCode)
	}
}

func TestDryRunSingleUser(t *testing.T) {
	config := getTestConfig()
	if config.UserID == 0 {
		t.Skip("LAVANDOWSKI_TEST_USER_ID not set")
	}

	resp, body := do(t, http.MethodPost, config.BaseURL+"/runs", map[string]any{
		"user_id": config.UserID,
		"dry_run": true,
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", resp.StatusCode, body)
	}
	var created struct {
		RunID string `json:"run_id"`
	}
	json.Unmarshal(body, &created)
	if created.RunID == "" {
		t.Fatal("Expected run_id in response")
	}

	run := waitForRun(t, config, created.RunID)

	if run.Status != "completed" {
		t.Fatalf("Expected completed run, got %s (summary %+v)", run.Status, run.Summary)
	}
	if len(run.Results) != 1 {
		t.Fatalf("Expected 1 case result, got %d", len(run.Results))
	}

	result := run.Results[0]
	if result.Error != "" {
		t.Fatalf("Case failed: %s", result.Error)
	}
	if result.UserID != config.UserID || result.Payload.UserID != config.UserID {
		t.Errorf("Unexpected user in result: %+v", result)
	}
	if result.RiskScore < 0 || result.RiskScore > 10 {
		t.Errorf("Risk score out of range: %d", result.RiskScore)
	}
	if result.APIResponse != `{"dry_run": true}` {
		t.Errorf("Dry run submitted a case: %s", result.APIResponse)
	}
	if result.Payload.Description == "" {
		t.Error("Expected a narrative description")
	}

	t.Logf("✓ user %d: risk %d/10, conclusion %q, priority %q",
		result.UserID, result.RiskScore, result.Payload.Conclusion, result.Payload.Priority)

	resp, body = do(t, http.MethodGet, fmt.Sprintf("%s/runs/%s/export?format=csv", config.BaseURL, created.RunID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Export failed: %d %s", resp.StatusCode, body)
	}
	rows, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	if err != nil {
		t.Fatalf("Invalid CSV export: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("Expected header plus 1 row, got %d rows", len(rows))
	}
}

func TestUnknownRun(t *testing.T) {
	config := getTestConfig()

	resp, _ := do(t, http.MethodGet, config.BaseURL+"/runs/does-not-exist", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func waitForRun(t *testing.T, config TestConfig, runID string) RunResponse {
	t.Helper()

	deadline := time.Now().Add(config.Timeout)
	for time.Now().Before(deadline) {
		resp, body := do(t, http.MethodGet, config.BaseURL+"/runs/"+runID, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200 for run, got %d: %s", resp.StatusCode, body)
		}
		var run RunResponse
		if err := json.Unmarshal(body, &run); err != nil {
			t.Fatalf("Invalid run body: %v", err)
		}
		if run.Status == "completed" || run.Status == "failed" {
			return run
		}
		t.Logf("run %s: %s %d/%d", runID, run.Status, run.Done, run.Total)
		time.Sleep(2 * time.Second)
	}
	t.Fatalf("Run %s did not finish within %s", runID, config.Timeout)
	return RunResponse{}
}

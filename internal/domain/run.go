package domain

import (
	"context"
	"time"
)

// Warehouse is the read-only query layer over the analytics warehouse.
// Queries use positional "?" placeholders and return normalized rows.
type Warehouse interface {
	Query(ctx context.Context, query string, args ...any) ([]Record, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// Window is the alert lookback used to select flagged users.
type Window struct {
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
}

// RunRequest asks the orchestrator to analyze one batch.
type RunRequest struct {
	RunID  string `json:"run_id"`
	Days   int    `json:"days"`
	UserID int64  `json:"user_id,omitempty"`
	DryRun bool   `json:"dry_run"`
}

// CaseResult is the outcome for one flagged user.
type CaseResult struct {
	RunID           string        `json:"run_id"`
	UserID          int64         `json:"user_id"`
	AlertType       string        `json:"alert_type"`
	SubjectKind     SubjectKind   `json:"subject_kind,omitempty"`
	RiskScore       int           `json:"risk_score"`
	ScoreFound      bool          `json:"score_found"`
	RiskLabel       string        `json:"risk_label,omitempty"`
	ConclusionLabel string        `json:"conclusion_label,omitempty"`
	Payload         ExportPayload `json:"payload"`
	APIResponse     string        `json:"api_response,omitempty"`
	Error           string        `json:"error,omitempty"`
	DurationMs      int64         `json:"duration_ms"`
	CompletedAt     time.Time     `json:"completed_at"`
}

// Suspicious reports whether the case ended above normal.
func (r *CaseResult) Suspicious() bool {
	return r.Payload.Conclusion == ConclusionSuspicious || r.Payload.Conclusion == ConclusionOffense
}

// RunStarted announces the size of a batch.
type RunStarted struct {
	RunID     string    `json:"run_id"`
	Total     int       `json:"total"`
	DryRun    bool      `json:"dry_run"`
	StartedAt time.Time `json:"started_at"`
}

// RunSummary aggregates a finished batch.
type RunSummary struct {
	RunID        string    `json:"run_id"`
	Total        int       `json:"total"`
	Analyzed     int       `json:"analyzed"`
	Suspicious   int       `json:"suspicious"`
	Failed       int       `json:"failed"`
	AverageScore float64   `json:"average_score"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	TotalMs      int64     `json:"total_ms"`
	AvgMsPerUser int64     `json:"avg_ms_per_user"`
	Cancelled    bool      `json:"cancelled,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// DashboardStats summarizes past analyses for the operator dashboard.
type DashboardStats struct {
	Days             int           `json:"days"`
	TotalAnalyses    int64         `json:"total_analyses"`
	SuspiciousCount  int64         `json:"suspicious_count"`
	AverageRiskScore float64       `json:"average_risk_score"`
	AverageTimeSec   float64       `json:"average_processing_time"`
	CurrentWeek      int64         `json:"current_week"`
	PreviousWeek     int64         `json:"previous_week"`
	WeeklyChangePct  float64       `json:"weekly_change_pct"`
	TopAlertTypes    []CountBucket `json:"top_alert_types"`
	RiskLevels       []CountBucket `json:"risk_levels"`
	DailyTrend       []CountBucket `json:"daily_trend"`
}

// CountBucket is a labelled count.
type CountBucket struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// RunStatus is the lifecycle state of a batch.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunRecord is the registry view of a batch: its progress, case results and summary.
type RunRecord struct {
	RunID       string       `json:"run_id"`
	Status      RunStatus    `json:"status"`
	Total       int          `json:"total"`
	Done        int          `json:"done"`
	DryRun      bool         `json:"dry_run"`
	RequestedAt time.Time    `json:"requested_at"`
	StartedAt   time.Time    `json:"started_at,omitempty"`
	Results     []CaseResult `json:"results"`
	Summary     *RunSummary  `json:"summary,omitempty"`
}

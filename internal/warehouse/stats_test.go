package warehouse

import (
	"context"
	"testing"
	"time"
)

func TestStats(t *testing.T) {
	wh := newTestWarehouse(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)

	entries := []struct {
		daysAgo    int
		alertType  string
		score      int
		conclusion string
	}{
		{0, "CH Alert", 2, "normal"},
		{1, "CH Alert", 8, "suspicious"},
		{2, "AI Alert", 5, "normal"},
		{3, "AI Alert", 10, "offense"},
		{9, "GAFI Alert", 9, "suspicious"},
		{40, "GAFI Alert", 1, "normal"},
	}
	for _, e := range entries {
		err := wh.Exec(ctx, `INSERT INTO analysis_log (user_id, alert_type, risk_score, conclusion, processing_time, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`, int64(1), e.alertType, e.score, e.conclusion, 30.0, now.AddDate(0, 0, -e.daysAgo))
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	stats, err := Stats(ctx, wh, NewCatalog("sqlite", nil), 7, now)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.TotalAnalyses != 4 {
		t.Errorf("TotalAnalyses = %d, want 4", stats.TotalAnalyses)
	}
	if stats.SuspiciousCount != 1 {
		t.Errorf("SuspiciousCount = %d, want 1", stats.SuspiciousCount)
	}
	if stats.AverageRiskScore != 6.25 {
		t.Errorf("AverageRiskScore = %v, want 6.25", stats.AverageRiskScore)
	}
	if stats.CurrentWeek != 4 || stats.PreviousWeek != 1 {
		t.Errorf("weekly = %d/%d, want 4/1", stats.CurrentWeek, stats.PreviousWeek)
	}
	if stats.WeeklyChangePct != 300 {
		t.Errorf("WeeklyChangePct = %v, want 300", stats.WeeklyChangePct)
	}
	if len(stats.TopAlertTypes) != 2 {
		t.Fatalf("TopAlertTypes = %v", stats.TopAlertTypes)
	}
	if len(stats.DailyTrend) != 4 {
		t.Errorf("DailyTrend has %d days, want 4", len(stats.DailyTrend))
	}
	if stats.DailyTrend[0].Label != "2025-06-17" {
		t.Errorf("first day = %s, want 2025-06-17", stats.DailyTrend[0].Label)
	}

	wantLevels := map[string]int64{"Baixo": 1, "Médio": 1, "Alto": 2}
	for _, b := range stats.RiskLevels {
		if wantLevels[b.Label] != b.Count {
			t.Errorf("risk level %s = %d, want %d", b.Label, b.Count, wantLevels[b.Label])
		}
	}
}

func TestWeeklyChange(t *testing.T) {
	tests := []struct {
		current, previous int64
		want              float64
	}{
		{10, 0, 0},
		{10, 10, 0},
		{15, 10, 50},
		{5, 10, -50},
		{1, 3, -67},
	}
	for _, tt := range tests {
		if got := WeeklyChange(tt.current, tt.previous); got != tt.want {
			t.Errorf("WeeklyChange(%d, %d) = %v, want %v", tt.current, tt.previous, got, tt.want)
		}
	}
}

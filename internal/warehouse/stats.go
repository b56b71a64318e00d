package warehouse

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/opensource-finance/lavandowski/internal/domain"
	"github.com/opensource-finance/lavandowski/internal/normalize"
)

// Risk buckets used by the dashboard, in display order.
var riskBuckets = []string{"Baixo", "Médio", "Alto"}

// Stats summarizes the analysis log for the last days, relative to now.
func Stats(ctx context.Context, wh domain.Warehouse, catalog *Catalog, days int, now time.Time) (*domain.DashboardStats, error) {
	if days <= 0 {
		days = 7
	}
	table := catalog.Table(TableAnalysisLog)
	today := now.UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -days)

	stats := &domain.DashboardStats{
		Days:          days,
		TopAlertTypes: []domain.CountBucket{},
		RiskLevels:    []domain.CountBucket{},
		DailyTrend:    []domain.CountBucket{},
	}

	totals, err := wh.Query(ctx, fmt.Sprintf(`
		SELECT
			COUNT(*) AS total,
			SUM(CASE WHEN conclusion = 'suspicious' THEN 1 ELSE 0 END) AS suspicious,
			AVG(risk_score) AS avg_score,
			AVG(processing_time) AS avg_time
		FROM %s
		WHERE DATE(created_at) >= DATE(?)`, table), since)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	if len(totals) > 0 {
		stats.TotalAnalyses = int64(normalize.Float(totals[0], "total"))
		stats.SuspiciousCount = int64(normalize.Float(totals[0], "suspicious"))
		stats.AverageRiskScore = normalize.Float(totals[0], "avg_score")
		stats.AverageTimeSec = normalize.Float(totals[0], "avg_time")
	}

	weekStart := today.AddDate(0, 0, -7)
	prevStart := today.AddDate(0, 0, -14)
	weekly, err := wh.Query(ctx, fmt.Sprintf(`
		SELECT
			SUM(CASE WHEN DATE(created_at) >= DATE(?) THEN 1 ELSE 0 END) AS current_week,
			SUM(CASE WHEN DATE(created_at) < DATE(?) THEN 1 ELSE 0 END) AS previous_week
		FROM %s
		WHERE DATE(created_at) >= DATE(?)`, table), weekStart, weekStart, prevStart)
	if err != nil {
		return nil, fmt.Errorf("failed to query weekly trend: %w", err)
	}
	if len(weekly) > 0 {
		stats.CurrentWeek = int64(normalize.Float(weekly[0], "current_week"))
		stats.PreviousWeek = int64(normalize.Float(weekly[0], "previous_week"))
	}
	stats.WeeklyChangePct = WeeklyChange(stats.CurrentWeek, stats.PreviousWeek)

	alertRows, err := wh.Query(ctx, fmt.Sprintf(`
		SELECT alert_type, COUNT(*) AS total
		FROM %s
		WHERE DATE(created_at) >= DATE(?)
		GROUP BY alert_type
		ORDER BY total DESC
		LIMIT 5`, table), since)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert types: %w", err)
	}
	for _, row := range alertRows {
		stats.TopAlertTypes = append(stats.TopAlertTypes, domain.CountBucket{
			Label: normalize.String(row, "alert_type"),
			Count: int64(normalize.Float(row, "total")),
		})
	}

	riskRows, err := wh.Query(ctx, fmt.Sprintf(`
		SELECT
			CASE
				WHEN risk_score BETWEEN 1 AND 3 THEN 'Baixo'
				WHEN risk_score BETWEEN 4 AND 7 THEN 'Médio'
				ELSE 'Alto'
			END AS risk_level,
			COUNT(*) AS total
		FROM %s
		WHERE DATE(created_at) >= DATE(?)
		GROUP BY 1`, table), since)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk levels: %w", err)
	}
	counts := make(map[string]int64, len(riskRows))
	for _, row := range riskRows {
		counts[normalize.String(row, "risk_level")] = int64(normalize.Float(row, "total"))
	}
	for _, label := range riskBuckets {
		if n, ok := counts[label]; ok {
			stats.RiskLevels = append(stats.RiskLevels, domain.CountBucket{Label: label, Count: n})
		}
	}

	dailyRows, err := wh.Query(ctx, fmt.Sprintf(`
		SELECT DATE(created_at) AS day, COUNT(*) AS total
		FROM %s
		WHERE DATE(created_at) >= DATE(?)
		GROUP BY DATE(created_at)
		ORDER BY day`, table), since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily trend: %w", err)
	}
	for _, row := range dailyRows {
		day := normalize.String(row, "day")
		if len(day) > 10 {
			day = day[:10]
		}
		stats.DailyTrend = append(stats.DailyTrend, domain.CountBucket{
			Label: day,
			Count: int64(normalize.Float(row, "total")),
		})
	}

	return stats, nil
}

// WeeklyChange returns the rounded percent change, or 0 without a baseline.
func WeeklyChange(current, previous int64) float64 {
	if previous <= 0 {
		return 0
	}
	return math.Round(float64(current-previous) / float64(previous) * 100)
}

package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"github.com/opensource-finance/lavandowski/internal/batch"
	"github.com/opensource-finance/lavandowski/internal/domain"
)

var (
	boldRed     = color.New(color.FgRed, color.Bold).SprintFunc()
	brightGreen = color.New(color.FgGreen, color.Bold).SprintFunc()
	yellow      = color.New(color.FgYellow, color.Bold).SprintFunc()
	magenta     = color.New(color.FgMagenta, color.Bold).SprintFunc()
)

// consoleObserver drives the progress bar and keeps the case results for export.
type consoleObserver struct {
	bar     *pterm.ProgressbarPrinter
	started domain.RunStarted
	results []domain.CaseResult
}

func (o *consoleObserver) Started(s domain.RunStarted) {
	o.started = s
	pterm.Info.Printfln("Run %s: %d flagged users (dry run: %t)", s.RunID, s.Total, s.DryRun)
	if s.Total == 0 {
		return
	}
	o.bar, _ = pterm.DefaultProgressbar.
		WithTotal(s.Total).
		WithTitle("Analyzing cases").
		WithShowElapsedTime(true).
		WithShowCount(true).
		WithRemoveWhenDone(false).
		Start()
}

func (o *consoleObserver) CaseDone(r domain.CaseResult, p batch.Progress) {
	o.results = append(o.results, r)
	pterm.Println(caseLine(r))
	if o.bar != nil {
		o.bar.UpdateTitle(fmt.Sprintf("Analyzing cases (~%s left)", p.Remaining().Round(time.Second)))
		o.bar.Increment()
	}
}

func (o *consoleObserver) stop() {
	if o.bar != nil {
		o.bar.Stop()
	}
}

// record assembles the run for export.
func (o *consoleObserver) record(s *domain.RunSummary) *domain.RunRecord {
	status := domain.RunCompleted
	if s.Error != "" {
		status = domain.RunFailed
	}
	results := o.results
	if results == nil {
		results = []domain.CaseResult{}
	}
	return &domain.RunRecord{
		RunID:       s.RunID,
		Status:      status,
		Total:       s.Total,
		Done:        len(results),
		DryRun:      o.started.DryRun,
		RequestedAt: s.StartedAt,
		StartedAt:   s.StartedAt,
		Results:     results,
		Summary:     s,
	}
}

func caseLine(r domain.CaseResult) string {
	user := magenta(fmt.Sprintf("user %d", r.UserID))
	if r.Error != "" {
		return fmt.Sprintf("%s %s %s", boldRed("✗"), user, r.Error)
	}
	return fmt.Sprintf("%s %s [%s] risk %d/10 %s", brightGreen("✓"), user, r.AlertType, r.RiskScore, conclusionText(r))
}

func conclusionText(r domain.CaseResult) string {
	label := r.ConclusionLabel
	if label == "" {
		label = string(r.Payload.Conclusion)
	}
	switch r.Payload.Conclusion {
	case domain.ConclusionOffense:
		return boldRed(label)
	case domain.ConclusionSuspicious:
		return yellow(label)
	case domain.ConclusionNormal:
		return brightGreen(label)
	default:
		return label
	}
}

func printSummary(s *domain.RunSummary) {
	data := pterm.TableData{
		{"Metric", "Value"},
		{"Run", s.RunID},
		{"Flagged users", strconv.Itoa(s.Total)},
		{"Analyzed", strconv.Itoa(s.Analyzed)},
		{"Suspicious", strconv.Itoa(s.Suspicious)},
		{"Failed", strconv.Itoa(s.Failed)},
		{"Average risk", fmt.Sprintf("%.1f/10", s.AverageScore)},
		{"Total time", (time.Duration(s.TotalMs) * time.Millisecond).Round(time.Second).String()},
		{"Per user", (time.Duration(s.AvgMsPerUser) * time.Millisecond).Round(time.Millisecond).String()},
	}
	if s.Cancelled {
		data = append(data, []string{"Cancelled", "yes"})
	}
	pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan)).
		WithData(data).
		Render()
}

func printStats(st *domain.DashboardStats) {
	pterm.DefaultSection.Printfln("Last %d days", st.Days)

	change := fmt.Sprintf("%+.1f%%", st.WeeklyChangePct)
	switch {
	case st.WeeklyChangePct > 0:
		change = pterm.FgRed.Sprint("⬆ " + change)
	case st.WeeklyChangePct < 0:
		change = pterm.FgGreen.Sprint("⬇ " + change)
	}

	pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(pterm.TableData{
		{"Metric", "Value"},
		{"Analyses", humanize.Comma(st.TotalAnalyses)},
		{"Suspicious", humanize.Comma(st.SuspiciousCount)},
		{"Average risk", fmt.Sprintf("%.1f/10", st.AverageRiskScore)},
		{"Average time", fmt.Sprintf("%.1fs", st.AverageTimeSec)},
		{"This week", humanize.Comma(st.CurrentWeek)},
		{"Previous week", humanize.Comma(st.PreviousWeek)},
		{"Weekly change", change},
	}).Render()

	buckets := func(title string, bs []domain.CountBucket) {
		if len(bs) == 0 {
			return
		}
		data := pterm.TableData{{title, "Count"}}
		for _, b := range bs {
			data = append(data, []string{b.Label, humanize.Comma(b.Count)})
		}
		pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	}
	buckets("Alert type", st.TopAlertTypes)
	buckets("Risk level", st.RiskLevels)
	buckets("Day", st.DailyTrend)
}

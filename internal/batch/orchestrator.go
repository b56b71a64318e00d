// Package batch runs the analysis pipeline over a set of flagged users.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/lavandowski/internal/bus"
	"github.com/opensource-finance/lavandowski/internal/decision"
	"github.com/opensource-finance/lavandowski/internal/domain"
	"github.com/opensource-finance/lavandowski/internal/prompt"
	"github.com/opensource-finance/lavandowski/internal/warehouse"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("a run is already in progress")

// DryRunResponse is recorded as the API response when submission is skipped.
const DryRunResponse = `{"dry_run": true}`

var tracer = otel.Tracer("lavandowski-batch")

// Source provides the users to analyze.
type Source interface {
	Flagged(ctx context.Context, w domain.Window) ([]domain.FlaggedUser, error)
	ForUser(userID int64) []domain.FlaggedUser
	Window(days int) domain.Window
}

// Reports builds case dossiers and the auxiliary prompt data.
type Reports interface {
	BuildAuto(ctx context.Context, userID int64) (*domain.CaseReport, error)
	BettingHouses(ctx context.Context) []domain.Record
	PEPTransactions(ctx context.Context, userID int64) []domain.Record
}

// Analyst produces the narrative for a prompt. Failures are returned as text.
type Analyst interface {
	Analyze(ctx context.Context, prompt string) string
}

// Submitter delivers payloads to case management.
type Submitter interface {
	Submit(ctx context.Context, payload domain.ExportPayload) (string, error)
}

// Recorder appends rows to the analysis log. Optional.
type Recorder interface {
	Exec(ctx context.Context, stmt string, args ...any) error
}

// Progress is the running state of a batch after a case completes.
type Progress struct {
	Done       int
	Total      int
	Analyzed   int
	Suspicious int
	Failed     int
	Elapsed    time.Duration
	AvgPerUser time.Duration
}

// Remaining estimates the time left from the per-user average.
func (p Progress) Remaining() time.Duration {
	left := p.Total - p.Done
	if left <= 0 {
		return 0
	}
	return time.Duration(left) * p.AvgPerUser
}

// Observer receives batch callbacks. Calls happen on the batch goroutine.
type Observer interface {
	Started(domain.RunStarted)
	CaseDone(domain.CaseResult, Progress)
}

type nopObserver struct{}

func (nopObserver) Started(domain.RunStarted)            {}
func (nopObserver) CaseDone(domain.CaseResult, Progress) {}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Source    Source
	Reports   Reports
	Composer  *prompt.Composer
	Analyst   Analyst
	Mapper    *decision.Mapper
	Submitter Submitter
	Bus       domain.EventBus
	Recorder  Recorder
	Catalog   *warehouse.Catalog
	Logger    *slog.Logger
}

// Orchestrator runs one batch at a time.
type Orchestrator struct {
	deps    Deps
	dryRun  bool
	running atomic.Bool
	now     func() time.Time
	logger  *slog.Logger
}

// NewOrchestrator creates an orchestrator. dryRun forces every run to skip submission.
func NewOrchestrator(deps Deps, dryRun bool) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Composer == nil {
		deps.Composer = prompt.NewComposer()
	}
	if deps.Mapper == nil {
		deps.Mapper = decision.NewMapper(logger)
	}
	return &Orchestrator{
		deps:   deps,
		dryRun: dryRun,
		now:    time.Now,
		logger: logger,
	}
}

// Running reports whether a batch is active.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Run analyzes every flagged user sequentially. Per-user failures are
// recorded and the batch continues; cancellation stops between users.
func (o *Orchestrator) Run(ctx context.Context, req domain.RunRequest, obs Observer) (*domain.RunSummary, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer o.running.Store(false)

	if obs == nil {
		obs = nopObserver{}
	}
	if req.RunID == "" {
		req.RunID = uuid.New().String()
	}
	dryRun := req.DryRun || o.dryRun

	ctx, span := tracer.Start(ctx, "batch.run",
		trace.WithAttributes(
			attribute.String("run.id", req.RunID),
			attribute.Bool("run.dry_run", dryRun),
		),
	)
	defer span.End()

	start := o.now()
	summary := &domain.RunSummary{RunID: req.RunID, StartedAt: start}
	logger := o.logger.With("run_id", req.RunID)

	users, err := o.users(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		summary.Error = err.Error()
		o.finish(ctx, summary, nil)
		return summary, err
	}
	summary.Total = len(users)
	span.SetAttributes(attribute.Int("run.total", len(users)))

	started := domain.RunStarted{RunID: req.RunID, Total: len(users), DryRun: dryRun, StartedAt: start}
	obs.Started(started)
	o.publish(ctx, domain.TopicBatchStarted, started)
	logger.Info("batch started", "total", len(users), "dry_run", dryRun)

	var houses []domain.Record
	if len(users) > 0 {
		houses = o.deps.Reports.BettingHouses(ctx)
		if len(houses) == 0 {
			houses = nil
		}
	}

	var scores []int
	progress := Progress{Total: len(users)}
	for _, u := range users {
		if ctx.Err() != nil {
			summary.Cancelled = true
			logger.Warn("batch cancelled", "done", progress.Done, "total", progress.Total)
			break
		}

		result, err := o.process(ctx, req.RunID, u, houses, dryRun)
		progress.Done++
		if err != nil {
			result.Error = err.Error()
			progress.Failed++
			logger.Error("case failed", "user_id", u.UserID, "alert_type", u.AlertType, "error", err)
			o.publish(ctx, domain.TopicCaseFailed, result)
		} else {
			progress.Analyzed++
			scores = append(scores, result.RiskScore)
			if result.Suspicious() {
				progress.Suspicious++
			}
			o.record(ctx, result)
			o.publish(ctx, domain.TopicCaseAnalyzed, result)
		}

		progress.Elapsed = o.now().Sub(start)
		progress.AvgPerUser = progress.Elapsed / time.Duration(progress.Done)
		obs.CaseDone(result, progress)
	}

	summary.Analyzed = progress.Analyzed
	summary.Suspicious = progress.Suspicious
	summary.Failed = progress.Failed
	summary.AverageScore = average(scores)
	o.finish(ctx, summary, &progress)

	logger.Info("batch completed",
		"analyzed", summary.Analyzed,
		"suspicious", summary.Suspicious,
		"failed", summary.Failed,
		"average_score", summary.AverageScore,
		"total_ms", summary.TotalMs,
	)
	return summary, nil
}

func (o *Orchestrator) users(ctx context.Context, req domain.RunRequest) ([]domain.FlaggedUser, error) {
	if req.UserID != 0 {
		return o.deps.Source.ForUser(req.UserID), nil
	}
	users, err := o.deps.Source.Flagged(ctx, o.deps.Source.Window(req.Days))
	if err != nil {
		return nil, fmt.Errorf("failed to load flagged users: %w", err)
	}
	return users, nil
}

// process runs the pipeline for one user. The returned result is populated
// as far as the pipeline got, even on error. A panic in any stage fails
// only this user.
func (o *Orchestrator) process(ctx context.Context, runID string, u domain.FlaggedUser, houses []domain.Record, dryRun bool) (res domain.CaseResult, err error) {
	ctx, span := tracer.Start(ctx, "batch.case",
		trace.WithAttributes(
			attribute.Int64("user_id", u.UserID),
			attribute.String("alert_type", u.AlertType),
		),
	)
	defer span.End()

	start := o.now()
	result := domain.CaseResult{RunID: runID, UserID: u.UserID, AlertType: u.AlertType}
	done := func(err error) (domain.CaseResult, error) {
		result.CompletedAt = o.now()
		result.DurationMs = result.CompletedAt.Sub(start).Milliseconds()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return result, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("case panicked",
				"run_id", runID,
				"user_id", u.UserID,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			res, err = done(fmt.Errorf("panic: %v", rec))
		}
	}()

	pep := o.deps.Reports.PEPTransactions(ctx, u.UserID)
	if len(pep) == 0 {
		pep = nil
	}

	report, err := o.deps.Reports.BuildAuto(ctx, u.UserID)
	if err != nil {
		return done(fmt.Errorf("failed to build report: %w", err))
	}
	result.SubjectKind = report.Kind

	text := o.deps.Composer.Compose(report, u.AlertType, prompt.Extras{
		BettingHouses: houses,
		PEPRecords:    pep,
		AIFeatures:    u.Features,
	})

	narrative := o.deps.Analyst.Analyze(ctx, text)
	if err := ctx.Err(); err != nil {
		return done(err)
	}

	d := o.deps.Mapper.Decide(u.UserID, narrative)
	result.Payload = decision.Payload(u.UserID, d)
	result.RiskScore = d.Score
	result.ScoreFound = d.ScoreFound
	result.RiskLabel = decision.RiskLabel(d.Score)
	result.ConclusionLabel = decision.ConclusionLabel(result.Payload)
	span.SetAttributes(
		attribute.Int("risk_score", d.Score),
		attribute.String("conclusion", string(d.Conclusion)),
	)

	if dryRun {
		result.APIResponse = DryRunResponse
		return done(nil)
	}

	body, err := o.deps.Submitter.Submit(ctx, result.Payload)
	result.APIResponse = body
	if err != nil {
		return done(fmt.Errorf("failed to submit analysis: %w", err))
	}
	return done(nil)
}

func (o *Orchestrator) record(ctx context.Context, r domain.CaseResult) {
	if o.deps.Recorder == nil {
		return
	}
	err := o.deps.Recorder.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (user_id, alert_type, risk_score, conclusion, processing_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, o.deps.Catalog.Table(warehouse.TableAnalysisLog)),
		r.UserID, r.AlertType, r.RiskScore, string(r.Payload.Conclusion),
		float64(r.DurationMs)/1000, r.CompletedAt.UTC())
	if err != nil {
		o.logger.Warn("failed to record analysis", "user_id", r.UserID, "error", err)
	}
}

func (o *Orchestrator) finish(ctx context.Context, summary *domain.RunSummary, p *Progress) {
	summary.FinishedAt = o.now()
	summary.TotalMs = summary.FinishedAt.Sub(summary.StartedAt).Milliseconds()
	if p != nil && p.Done > 0 {
		summary.AvgMsPerUser = p.AvgPerUser.Milliseconds()
	}
	o.publish(ctx, domain.TopicBatchComplete, summary)
}

// publish logs and drops bus errors.
func (o *Orchestrator) publish(ctx context.Context, topic string, v any) {
	if o.deps.Bus == nil {
		return
	}
	if err := bus.PublishJSON(context.WithoutCancel(ctx), o.deps.Bus, topic, v); err != nil {
		o.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

func average(scores []int) float64 {
	if len(scores) == 0 {
		return 0
	}
	total := 0
	for _, s := range scores {
		total += s
	}
	return float64(total) / float64(len(scores))
}

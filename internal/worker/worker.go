// Package worker executes run requests received from the EventBus.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/lavandowski/internal/batch"
	"github.com/opensource-finance/lavandowski/internal/bus"
	"github.com/opensource-finance/lavandowski/internal/domain"
)

// Runner executes one batch.
type Runner interface {
	Run(ctx context.Context, req domain.RunRequest, obs batch.Observer) (*domain.RunSummary, error)
}

// Worker consumes run requests and executes them one at a time.
type Worker struct {
	bus    domain.EventBus
	runner Runner
	logger *slog.Logger

	mu            sync.Mutex // serializes runs
	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a run worker.
func NewWorker(b domain.EventBus, runner Runner, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    b,
		runner: runner,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to run requests.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicRunRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	w.logger.Info("run worker started", "topic", domain.TopicRunRequested)
	return nil
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	var req domain.RunRequest
	if err := bus.Decode(msg, &req); err != nil {
		w.logger.Error("failed to parse run request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if req.RunID == "" {
		req.RunID = msg.ID
	}
	if rid := msg.Metadata["request_id"]; rid != "" {
		w.logger.Info("run request received", "run_id", req.RunID, "request_id", rid)
	}
	return w.Execute(ctx, req)
}

// Execute runs req synchronously, waiting for any active run to finish.
// Stop cancels an in-flight run between users.
func (w *Worker) Execute(ctx context.Context, req domain.RunRequest) error {
	w.wg.Add(1)
	defer w.wg.Done()

	w.mu.Lock()
	defer w.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(w.ctx, cancel)
	defer stop()

	start := time.Now()
	summary, err := w.runner.Run(ctx, req, &progressLogger{logger: w.logger.With("run_id", req.RunID)})
	if err != nil {
		if errors.Is(err, batch.ErrRunInProgress) {
			w.logger.Warn("run rejected", "run_id", req.RunID, "error", err)
		} else {
			w.logger.Error("run failed", "run_id", req.RunID, "error", err)
		}
		return err
	}

	w.logger.Info("run finished",
		"run_id", summary.RunID,
		"total", summary.Total,
		"analyzed", summary.Analyzed,
		"suspicious", summary.Suspicious,
		"failed", summary.Failed,
		"cancelled", summary.Cancelled,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Stop cancels in-flight runs and unsubscribes.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	w.logger.Info("run worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscription_count"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}

// progressLogger logs batch progress with a time-left estimate.
type progressLogger struct {
	logger *slog.Logger
}

func (p *progressLogger) Started(s domain.RunStarted) {
	p.logger.Info("run started", "total", s.Total, "dry_run", s.DryRun)
}

func (p *progressLogger) CaseDone(r domain.CaseResult, pr batch.Progress) {
	p.logger.Info("case done",
		"user_id", r.UserID,
		"conclusion", r.ConclusionLabel,
		"risk_score", r.RiskScore,
		"done", pr.Done,
		"total", pr.Total,
		"remaining_sec", int64(pr.Remaining().Seconds()),
	)
}

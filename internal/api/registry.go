package api

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/opensource-finance/lavandowski/internal/bus"
	"github.com/opensource-finance/lavandowski/internal/domain"
)

// ErrRunNotFound is returned for unknown run ids.
var ErrRunNotFound = errors.New("run not found")

// DefaultRunHistory is how many runs a registry keeps.
const DefaultRunHistory = 100

// Registry keeps the state of runs requested through this process, fed by
// batch events on the bus. Events on different topics may arrive out of order.
// Past the history limit the oldest finished run is forgotten; queued and
// running runs are never dropped.
type Registry struct {
	mu    sync.RWMutex
	runs  map[string]*domain.RunRecord
	limit int
	now   func() time.Time
}

// NewRegistry creates an empty run registry.
func NewRegistry() *Registry {
	return &Registry{
		runs:  make(map[string]*domain.RunRecord),
		limit: DefaultRunHistory,
		now:   time.Now,
	}
}

// Subscribe wires the registry to the batch topics.
func (g *Registry) Subscribe(ctx context.Context, b domain.EventBus) ([]domain.Subscription, error) {
	handlers := map[string]domain.MessageHandler{
		domain.TopicBatchStarted: func(ctx context.Context, msg *domain.Message) error {
			var s domain.RunStarted
			if err := bus.Decode(msg, &s); err != nil {
				return err
			}
			g.Started(s)
			return nil
		},
		domain.TopicCaseAnalyzed: g.handleCase,
		domain.TopicCaseFailed:   g.handleCase,
		domain.TopicBatchComplete: func(ctx context.Context, msg *domain.Message) error {
			var s domain.RunSummary
			if err := bus.Decode(msg, &s); err != nil {
				return err
			}
			g.Completed(s)
			return nil
		},
	}

	subs := make([]domain.Subscription, 0, len(handlers))
	for _, topic := range []string{domain.TopicBatchStarted, domain.TopicCaseAnalyzed, domain.TopicCaseFailed, domain.TopicBatchComplete} {
		sub, err := b.Subscribe(ctx, topic, handlers[topic])
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			return nil, err
		}
		subs = append(subs, sub)
	}
	slog.Debug("run registry subscribed", "topics", len(subs))
	return subs, nil
}

func (g *Registry) handleCase(ctx context.Context, msg *domain.Message) error {
	var r domain.CaseResult
	if err := bus.Decode(msg, &r); err != nil {
		return err
	}
	g.CaseDone(r)
	return nil
}

// Requested records a queued run.
func (g *Registry) Requested(req domain.RunRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec := g.record(req.RunID)
	rec.DryRun = req.DryRun
}

// Started marks a run as running.
func (g *Registry) Started(s domain.RunStarted) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec := g.record(s.RunID)
	rec.Total = s.Total
	rec.DryRun = s.DryRun
	rec.StartedAt = s.StartedAt
	if rec.Status == domain.RunQueued {
		rec.Status = domain.RunRunning
	}
}

// CaseDone appends a case result.
func (g *Registry) CaseDone(r domain.CaseResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec := g.record(r.RunID)
	rec.Results = append(rec.Results, r)
	rec.Done = len(rec.Results)
	if rec.Status == domain.RunQueued {
		rec.Status = domain.RunRunning
	}
}

// Completed stores the run summary.
func (g *Registry) Completed(s domain.RunSummary) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec := g.record(s.RunID)
	rec.Summary = &s
	rec.Total = s.Total
	if rec.StartedAt.IsZero() {
		rec.StartedAt = s.StartedAt
	}
	if s.Error != "" {
		rec.Status = domain.RunFailed
	} else {
		rec.Status = domain.RunCompleted
	}
}

// Failed marks a run that never reached a worker.
func (g *Registry) Failed(runID, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec := g.record(runID)
	rec.Status = domain.RunFailed
	rec.Summary = &domain.RunSummary{RunID: runID, Error: reason}
}

// record returns the run, creating it when an event arrives first. Callers hold mu.
func (g *Registry) record(runID string) *domain.RunRecord {
	rec, ok := g.runs[runID]
	if !ok {
		rec = &domain.RunRecord{
			RunID:       runID,
			Status:      domain.RunQueued,
			RequestedAt: g.now().UTC(),
			Results:     []domain.CaseResult{},
		}
		g.runs[runID] = rec
		g.trim(runID)
	}
	return rec
}

// trim drops the oldest finished runs until the registry fits its limit.
// keep is never dropped. Callers hold mu.
func (g *Registry) trim(keep string) {
	for g.limit > 0 && len(g.runs) > g.limit {
		var oldest *domain.RunRecord
		for id, rec := range g.runs {
			if id == keep || (rec.Status != domain.RunCompleted && rec.Status != domain.RunFailed) {
				continue
			}
			if oldest == nil || rec.RequestedAt.Before(oldest.RequestedAt) ||
				(rec.RequestedAt.Equal(oldest.RequestedAt) && rec.RunID < oldest.RunID) {
				oldest = rec
			}
		}
		if oldest == nil {
			return
		}
		delete(g.runs, oldest.RunID)
	}
}

// Get returns a copy of the run.
func (g *Registry) Get(runID string) (*domain.RunRecord, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rec, ok := g.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return snapshot(rec), nil
}

// List returns every run, most recently requested first.
func (g *Registry) List() []*domain.RunRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*domain.RunRecord, 0, len(g.runs))
	for _, rec := range g.runs {
		out = append(out, snapshot(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RunID < out[j].RunID
		}
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	return out
}

func snapshot(rec *domain.RunRecord) *domain.RunRecord {
	cp := *rec
	cp.Results = append([]domain.CaseResult(nil), rec.Results...)
	if cp.Results == nil {
		cp.Results = []domain.CaseResult{}
	}
	if rec.Summary != nil {
		s := *rec.Summary
		cp.Summary = &s
	}
	return &cp
}

// Remaining estimates the time left for a running batch from its average pace.
func Remaining(rec *domain.RunRecord, now time.Time) time.Duration {
	if rec.Status != domain.RunRunning || rec.Done == 0 || rec.StartedAt.IsZero() || rec.Done >= rec.Total {
		return 0
	}
	avg := now.Sub(rec.StartedAt) / time.Duration(rec.Done)
	return avg * time.Duration(rec.Total-rec.Done)
}

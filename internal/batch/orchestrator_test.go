package batch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/lavandowski/internal/domain"
	"github.com/opensource-finance/lavandowski/internal/prompt"
)

type fakeSource struct {
	users []domain.FlaggedUser
	err   error
	days  int
}

func (f *fakeSource) Flagged(ctx context.Context, w domain.Window) ([]domain.FlaggedUser, error) {
	return f.users, f.err
}

func (f *fakeSource) ForUser(userID int64) []domain.FlaggedUser {
	return []domain.FlaggedUser{{UserID: userID, AlertType: "Custom Alert", BusinessValidation: true}}
}

func (f *fakeSource) Window(days int) domain.Window {
	f.days = days
	return domain.Window{}
}

type fakeReports struct {
	houses     []domain.Record
	houseCalls int
	failFor    int64
	panicFor   int64
}

func (f *fakeReports) BuildAuto(ctx context.Context, userID int64) (*domain.CaseReport, error) {
	if userID == f.failFor {
		return nil, errors.New("warehouse unavailable")
	}
	if userID == f.panicFor {
		var row domain.Record
		row["document_number"] = "123"
	}
	r := domain.NewCaseReport(userID, domain.SubjectMerchant)
	r.SubjectInfo = domain.Record{"user_id": float64(userID)}
	return r, nil
}

func (f *fakeReports) BettingHouses(ctx context.Context) []domain.Record {
	f.houseCalls++
	return f.houses
}

func (f *fakeReports) PEPTransactions(ctx context.Context, userID int64) []domain.Record {
	return []domain.Record{}
}

// fakeAnalyst answers with a narrative keyed by the user id found in the prompt.
type fakeAnalyst struct {
	mu      sync.Mutex
	prompts []string
	replies map[string]string
}

func (f *fakeAnalyst) Analyze(ctx context.Context, p string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
	for marker, reply := range f.replies {
		if strings.Contains(p, marker) {
			return reply
		}
	}
	return "Risco de Lavagem de Dinheiro: 1/10"
}

type fakeSubmitter struct {
	payloads []domain.ExportPayload
	failFor  int64
}

func (f *fakeSubmitter) Submit(ctx context.Context, p domain.ExportPayload) (string, error) {
	f.payloads = append(f.payloads, p)
	if p.UserID == f.failFor {
		return `{"error":"boom"}`, errors.New("submission rejected")
	}
	return `{"id": 1}`, nil
}

type fakeRecorder struct {
	rows [][]any
}

func (f *fakeRecorder) Exec(ctx context.Context, stmt string, args ...any) error {
	f.rows = append(f.rows, args)
	return nil
}

type fakeBus struct {
	mu     sync.Mutex
	topics []string
}

func (b *fakeBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	return nil, errors.New("not supported")
}

func (b *fakeBus) Ping(ctx context.Context) error { return nil }
func (b *fakeBus) Close() error                   { return nil }

func (b *fakeBus) count(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, t := range b.topics {
		if t == topic {
			n++
		}
	}
	return n
}

type recordingObserver struct {
	started  []domain.RunStarted
	results  []domain.CaseResult
	progress []Progress
	onCase   func()
}

func (r *recordingObserver) Started(s domain.RunStarted) { r.started = append(r.started, s) }

func (r *recordingObserver) CaseDone(c domain.CaseResult, p Progress) {
	r.results = append(r.results, c)
	r.progress = append(r.progress, p)
	if r.onCase != nil {
		r.onCase()
	}
}

type fixture struct {
	source    *fakeSource
	reports   *fakeReports
	analyst   *fakeAnalyst
	submitter *fakeSubmitter
	recorder  *fakeRecorder
	bus       *fakeBus
	orch      *Orchestrator
}

func newFixture(users []domain.FlaggedUser) *fixture {
	f := &fixture{
		source:  &fakeSource{users: users},
		reports: &fakeReports{houses: []domain.Record{{"name": "BET X", "document_number": "999"}}},
		analyst: &fakeAnalyst{replies: map[string]string{
			`"user_id": 2`: "Risco de Lavagem de Dinheiro: 9/10",
			`"user_id": 3`: "Risco de Lavagem de Dinheiro: 5/10",
		}},
		submitter: &fakeSubmitter{},
		recorder:  &fakeRecorder{},
		bus:       &fakeBus{},
	}
	f.orch = NewOrchestrator(Deps{
		Source:    f.source,
		Reports:   f.reports,
		Analyst:   f.analyst,
		Submitter: f.submitter,
		Bus:       f.bus,
		Recorder:  f.recorder,
	}, false)
	return f
}

func flagged() []domain.FlaggedUser {
	return []domain.FlaggedUser{
		{UserID: 1, AlertType: "CH Alert"},
		{UserID: 2, AlertType: prompt.AlertBettingHouses},
		{UserID: 3, AlertType: prompt.AlertAI, Features: "pix_in_ratio=0.93"},
	}
}

func TestRun(t *testing.T) {
	f := newFixture(flagged())
	obs := &recordingObserver{}

	summary, err := f.orch.Run(context.Background(), domain.RunRequest{RunID: "run-1", Days: 2}, obs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.RunID != "run-1" || summary.Total != 3 || summary.Analyzed != 3 || summary.Failed != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if summary.Suspicious != 1 {
		t.Errorf("suspicious = %d, want 1", summary.Suspicious)
	}
	if summary.AverageScore != 5 {
		t.Errorf("average score = %v, want 5", summary.AverageScore)
	}
	if f.source.days != 2 {
		t.Errorf("window days = %d", f.source.days)
	}
	if f.reports.houseCalls != 1 {
		t.Errorf("betting houses fetched %d times, want once per run", f.reports.houseCalls)
	}

	if len(f.submitter.payloads) != 3 || len(f.recorder.rows) != 3 {
		t.Errorf("submitted %d, recorded %d", len(f.submitter.payloads), len(f.recorder.rows))
	}
	if f.submitter.payloads[1].Conclusion != domain.ConclusionSuspicious {
		t.Errorf("user 2 conclusion = %s", f.submitter.payloads[1].Conclusion)
	}

	if !strings.Contains(f.analyst.prompts[1], "BET X") {
		t.Error("betting houses should reach the betting prompt")
	}
	if !strings.Contains(f.analyst.prompts[2], "pix_in_ratio=0.93") {
		t.Error("AI features should reach the AI prompt")
	}

	if len(obs.started) != 1 || obs.started[0].Total != 3 {
		t.Errorf("observer start = %+v", obs.started)
	}
	if len(obs.results) != 3 || obs.progress[2].Done != 3 || obs.progress[2].Remaining() != 0 {
		t.Errorf("observer progress = %+v", obs.progress)
	}
	r := obs.results[1]
	if r.RiskScore != 9 || r.RiskLabel != "Alto Risco" || r.ConclusionLabel != "Suspicious High" || r.APIResponse != `{"id": 1}` {
		t.Errorf("case result = %+v", r)
	}

	if f.bus.count(domain.TopicBatchStarted) != 1 ||
		f.bus.count(domain.TopicCaseAnalyzed) != 3 ||
		f.bus.count(domain.TopicBatchComplete) != 1 {
		t.Errorf("bus topics = %v", f.bus.topics)
	}
}

func TestRunFailuresContinue(t *testing.T) {
	f := newFixture(flagged())
	f.reports.failFor = 1
	f.submitter.failFor = 2
	obs := &recordingObserver{}

	summary, err := f.orch.Run(context.Background(), domain.RunRequest{}, obs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.RunID == "" {
		t.Error("run id should be generated")
	}
	if summary.Failed != 2 || summary.Analyzed != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if !strings.Contains(obs.results[0].Error, "warehouse unavailable") {
		t.Errorf("report failure not captured: %q", obs.results[0].Error)
	}
	if obs.results[1].APIResponse != `{"error":"boom"}` || obs.results[1].Error == "" {
		t.Errorf("submit failure not captured: %+v", obs.results[1])
	}
	if f.bus.count(domain.TopicCaseFailed) != 2 {
		t.Errorf("bus topics = %v", f.bus.topics)
	}
	if len(f.recorder.rows) != 1 {
		t.Errorf("only successful cases are recorded, got %d", len(f.recorder.rows))
	}
}

func TestRunPanicFailsOnlyThatUser(t *testing.T) {
	f := newFixture(flagged())
	f.reports.panicFor = 2
	obs := &recordingObserver{}

	summary, err := f.orch.Run(context.Background(), domain.RunRequest{RunID: "run-p"}, obs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Total != 3 || summary.Analyzed != 2 || summary.Failed != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if len(obs.results) != 3 {
		t.Fatalf("expected 3 case results, got %d", len(obs.results))
	}
	if r := obs.results[1]; r.UserID != 2 || !strings.Contains(r.Error, "panic:") {
		t.Errorf("panicking case = %+v", r)
	}
	if obs.results[2].UserID != 3 || obs.results[2].Error != "" {
		t.Errorf("user after the panic was not analyzed: %+v", obs.results[2])
	}
	if f.bus.count(domain.TopicCaseFailed) != 1 ||
		f.bus.count(domain.TopicCaseAnalyzed) != 2 ||
		f.bus.count(domain.TopicBatchComplete) != 1 {
		t.Errorf("bus topics = %v", f.bus.topics)
	}
}

func TestRunDryRun(t *testing.T) {
	f := newFixture(flagged())
	obs := &recordingObserver{}

	if _, err := f.orch.Run(context.Background(), domain.RunRequest{DryRun: true}, obs); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(f.submitter.payloads) != 0 {
		t.Errorf("dry run submitted %d payloads", len(f.submitter.payloads))
	}
	for _, r := range obs.results {
		if r.APIResponse != DryRunResponse {
			t.Errorf("api response = %q", r.APIResponse)
		}
	}
}

func TestRunUserOverride(t *testing.T) {
	f := newFixture(flagged())
	obs := &recordingObserver{}

	summary, err := f.orch.Run(context.Background(), domain.RunRequest{UserID: 42}, obs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Total != 1 || obs.results[0].UserID != 42 || obs.results[0].AlertType != "Custom Alert" {
		t.Errorf("unexpected override run: %+v %+v", summary, obs.results)
	}
}

func TestRunSourceError(t *testing.T) {
	f := newFixture(nil)
	f.source.err = errors.New("bigquery down")

	summary, err := f.orch.Run(context.Background(), domain.RunRequest{}, nil)
	if err == nil || !strings.Contains(summary.Error, "bigquery down") {
		t.Fatalf("expected source error, got %v / %+v", err, summary)
	}
	if f.bus.count(domain.TopicBatchComplete) != 1 {
		t.Error("completion event should still be published")
	}
}

func TestRunEmptyBatch(t *testing.T) {
	f := newFixture([]domain.FlaggedUser{})

	summary, err := f.orch.Run(context.Background(), domain.RunRequest{}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Total != 0 || summary.AverageScore != 0 || f.reports.houseCalls != 0 {
		t.Errorf("unexpected empty summary: %+v", summary)
	}
}

func TestRunCancellation(t *testing.T) {
	f := newFixture(flagged())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	obs := &recordingObserver{onCase: cancel}

	summary, err := f.orch.Run(ctx, domain.RunRequest{}, obs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !summary.Cancelled || len(obs.results) != 1 {
		t.Errorf("expected stop after first case: %+v, %d results", summary, len(obs.results))
	}
}

func TestRunInProgress(t *testing.T) {
	f := newFixture(flagged())
	f.orch.running.Store(true)

	if _, err := f.orch.Run(context.Background(), domain.RunRequest{}, nil); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("expected ErrRunInProgress, got %v", err)
	}
}

func TestProgressRemaining(t *testing.T) {
	p := Progress{Done: 2, Total: 5, AvgPerUser: 10 * time.Second}
	if got := p.Remaining(); got != 30*time.Second {
		t.Errorf("Remaining = %v", got)
	}
}

package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/option"

	"github.com/opensource-finance/lavandowski/internal/domain"
)

func testRun() *domain.RunRecord {
	at := time.Date(2025, 6, 20, 10, 30, 0, 0, time.UTC)
	return &domain.RunRecord{
		RunID:  "run-1",
		Status: domain.RunCompleted,
		Total:  2,
		Done:   2,
		Results: []domain.CaseResult{
			{
				RunID: "run-1", UserID: 42, AlertType: "CH Alert", SubjectKind: domain.SubjectMerchant,
				RiskScore: 9, RiskLabel: "Alto Risco", ConclusionLabel: "Suspicious High",
				Payload: domain.ExportPayload{
					UserID: 42, Conclusion: domain.ConclusionSuspicious, Priority: domain.PriorityHigh,
					Description: "Transações atípicas, \"fracionadas\".\nRisco de Lavagem de Dinheiro: 9/10",
				},
				APIResponse: `{"id": 1}`, DurationMs: 1500, CompletedAt: at,
			},
			{
				RunID: "run-1", UserID: 43, AlertType: "AI Alert",
				Error: "failed to build report: timeout", DurationMs: 20, CompletedAt: at,
			},
		},
		Summary: &domain.RunSummary{RunID: "run-1", Total: 2, Analyzed: 1, Suspicious: 1, Failed: 1, AverageScore: 9, TotalMs: 1520, AvgMsPerUser: 760},
	}
}

func TestParseFormat(t *testing.T) {
	for name, want := range map[string]Format{"csv": CSV, "JSON": JSON, " pdf ": PDF} {
		got, err := ParseFormat(name)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", name, got, err)
		}
	}
	if _, err := ParseFormat("xlsx"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, testRun()); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][1] != "user_id" || rows[1][1] != "42" || rows[1][6] != "suspicious" {
		t.Errorf("unexpected rows: %v", rows[:2])
	}
	if !strings.Contains(rows[1][13], "\"fracionadas\"") {
		t.Errorf("description should round-trip: %q", rows[1][13])
	}
	if rows[2][10] != "failed to build report: timeout" || rows[2][12] != "2025-06-20T10:30:00Z" {
		t.Errorf("unexpected failure row: %v", rows[2])
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, testRun()); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var got domain.RunRecord
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.RunID != "run-1" || len(got.Results) != 2 || got.Summary.Suspicious != 1 {
		t.Errorf("unexpected record: %+v", got)
	}
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePDF(&buf, testRun()); err != nil {
		t.Fatalf("WritePDF failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Errorf("output is not a PDF: %.20q", buf.String())
	}
}

func TestSaveAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	now := time.Date(2025, 6, 20, 18, 5, 0, 0, time.UTC)

	paths, err := SaveAll(dir, testRun(), []string{"csv", "json", "pdf"}, now)
	if err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("expected 3 files, got %d", len(paths))
	}
	if filepath.Base(paths[0]) != "lavandowski_run-1_20250620_1805.csv" {
		t.Errorf("unexpected file name %s", paths[0])
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.Size() == 0 {
			t.Errorf("missing or empty export %s: %v", p, err)
		}
	}

	if _, err := SaveAll(dir, testRun(), []string{"xml"}, now); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

// fakeGCS accepts multipart and resumable uploads.
type fakeGCS struct {
	mu     sync.Mutex
	paths  []string
	bodies bytes.Buffer
}

func (f *fakeGCS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	f.bodies.Write(body)
	f.mu.Unlock()

	if r.Method == http.MethodPost && r.URL.Query().Get("uploadType") == "resumable" {
		w.Header().Set("Location", fmt.Sprintf("http://%s%s?upload_id=1", r.Host, r.URL.Path))
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"bucket": "exports", "name": "runs/report.csv", "size": "4"}`))
}

func TestUpload(t *testing.T) {
	fake := &fakeGCS{}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	t.Setenv("STORAGE_EMULATOR_HOST", strings.TrimPrefix(srv.URL, "http://"))

	local := filepath.Join(t.TempDir(), "report.csv")
	if err := os.WriteFile(local, []byte("a,b\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	u, err := NewUploader(context.Background(), "exports", "runs", "", option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("NewUploader failed: %v", err)
	}
	defer u.Close()

	uri, err := u.Upload(context.Background(), local)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if uri != "gs://exports/runs/report.csv" {
		t.Errorf("uri = %s", uri)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.paths) == 0 || !strings.Contains(fake.paths[0], "/b/exports/o") {
		t.Errorf("unexpected upload paths: %v", fake.paths)
	}
	if !strings.Contains(fake.bodies.String(), "a,b") {
		t.Error("file content was not uploaded")
	}
}

func TestContentTypeFor(t *testing.T) {
	if got := contentTypeFor("x/report.pdf"); got != "application/pdf" {
		t.Errorf("pdf content type = %s", got)
	}
	if got := contentTypeFor("x/report.bin"); got != "application/octet-stream" {
		t.Errorf("unknown content type = %s", got)
	}
}

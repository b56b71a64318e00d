package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/opensource-finance/lavandowski/internal/cache"
	"github.com/opensource-finance/lavandowski/internal/domain"
)

const sampleResponse = `{
  "Result": [{
    "BasicData": {"TaxIdNumber": "12345678901", "Name": "FULANO DE TAL"},
    "Processes": {"Lawsuits": [{"Number": "0001", "CourtName": "TJSP", "MainSubject": "ROUBO", "Type": "ACAO PENAL", "CourtLevel": "1", "CourtType": "CRIMINAL", "CourtDistrict": "SAO PAULO"}]},
    "KycData": {"SanctionsHistory": [{"Type": "arrest warrants", "Source": "Conselho Nacional de Justiça", "MatchRate": 92.5}]}
  }]
}`

func newServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		if r.Method != http.MethodPost || r.URL.Path != "/pessoas" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("AccessToken") != "access" || r.Header.Get("TokenId") != "token" {
			t.Errorf("missing credentials headers: %v", r.Header)
		}

		var req lookupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Q != "doc{12345678901}" {
			t.Errorf("q = %q", req.Q)
		}
		if req.Datasets != Datasets {
			t.Errorf("Datasets = %q", req.Datasets)
		}

		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testConfig(url string) domain.IdentityConfig {
	return domain.IdentityConfig{
		BaseURL:        url,
		AccessToken:    "access",
		TokenID:        "token",
		TimeoutSeconds: 5,
	}
}

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"123.456.789-01":     "12345678901",
		"12.345.678/0001-90": "12345678000190",
		"abc":                "",
		"":                   "",
	}
	for in, want := range tests {
		if got := Sanitize(in); got != want {
			t.Errorf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLookup(t *testing.T) {
	ctx := context.Background()

	t.Run("DecodesResponse", func(t *testing.T) {
		srv, _ := newServer(t, http.StatusOK, sampleResponse)
		c := NewClient(testConfig(srv.URL), nil)

		resp, err := c.Lookup(ctx, "123.456.789-01")
		if err != nil {
			t.Fatalf("Lookup failed: %v", err)
		}
		if len(resp.Result) != 1 {
			t.Fatalf("expected 1 result, got %d", len(resp.Result))
		}
		r := resp.Result[0]
		if r.BasicData.Name != "FULANO DE TAL" {
			t.Errorf("name = %q", r.BasicData.Name)
		}
		if len(r.Processes.Lawsuits) != 1 || r.Processes.Lawsuits[0].CourtType != "CRIMINAL" {
			t.Errorf("lawsuits = %+v", r.Processes.Lawsuits)
		}
		if r.KycData.SanctionsHistory[0].MatchRate != 92.5 {
			t.Errorf("match rate = %v", r.KycData.SanctionsHistory[0].MatchRate)
		}
	})

	t.Run("CachesByDigits", func(t *testing.T) {
		srv, calls := newServer(t, http.StatusOK, sampleResponse)
		c := NewClient(testConfig(srv.URL), cache.NewLRUCache(10))

		for _, doc := range []string{"123.456.789-01", "12345678901"} {
			if _, err := c.Lookup(ctx, doc); err != nil {
				t.Fatalf("Lookup(%q) failed: %v", doc, err)
			}
		}
		if calls.Load() != 1 {
			t.Errorf("expected 1 upstream call, got %d", calls.Load())
		}
	})

	t.Run("InvalidDocument", func(t *testing.T) {
		c := NewClient(testConfig("http://127.0.0.1:1"), nil)
		if _, err := c.Lookup(ctx, "---"); !errors.Is(err, ErrInvalidDocument) {
			t.Errorf("expected ErrInvalidDocument, got %v", err)
		}
	})

	t.Run("UnexpectedStatus", func(t *testing.T) {
		srv, _ := newServer(t, http.StatusUnauthorized, `{"message":"bad token"}`)
		c := NewClient(testConfig(srv.URL), nil)

		if _, err := c.Lookup(ctx, "12345678901"); !errors.Is(err, ErrUnexpectedStatus) {
			t.Errorf("expected ErrUnexpectedStatus, got %v", err)
		}
	})

	t.Run("EmptyResultIsNotNil", func(t *testing.T) {
		srv, _ := newServer(t, http.StatusOK, `{}`)
		c := NewClient(testConfig(srv.URL), nil)

		resp, err := c.Lookup(ctx, "12345678901")
		if err != nil {
			t.Fatalf("Lookup failed: %v", err)
		}
		if resp.Result == nil || len(resp.Result) != 0 {
			t.Errorf("expected empty non-nil result, got %#v", resp.Result)
		}
	})

	t.Run("DailyQuota", func(t *testing.T) {
		srv, calls := newServer(t, http.StatusOK, sampleResponse)
		cfg := testConfig(srv.URL)
		cfg.DailyQuota = 1
		lru := cache.NewLRUCache(10)
		c := NewClient(cfg, lru)

		if _, err := c.Lookup(ctx, "12345678901"); err != nil {
			t.Fatalf("first lookup failed: %v", err)
		}
		// served from cache, no budget used
		if _, err := c.Lookup(ctx, "12345678901"); err != nil {
			t.Fatalf("cached lookup failed: %v", err)
		}
		if calls.Load() != 1 {
			t.Fatalf("expected 1 upstream call, got %d", calls.Load())
		}

		_ = lru.Delete(ctx, domain.NamespaceIdentity, "doc:12345678901")
		if _, err := c.Lookup(ctx, "12345678901"); !errors.Is(err, ErrQuotaExceeded) {
			t.Errorf("expected ErrQuotaExceeded, got %v", err)
		}
	})
}

// Package identity looks up people and companies in the BigDataCorp registry.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/opensource-finance/lavandowski/internal/cache"
	"github.com/opensource-finance/lavandowski/internal/domain"
	"github.com/opensource-finance/lavandowski/internal/quota"
)

var (
	// ErrInvalidDocument is returned when a document has no digits.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrQuotaExceeded is returned when the daily lookup budget is spent.
	ErrQuotaExceeded = quota.ErrExceeded

	// ErrUnexpectedStatus is returned for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected status from identity provider")
)

// Datasets requested for every lookup: basic data, passive criminal lawsuits
// and CNJ sanctions.
const Datasets = "basic_data, processes.filter(partypolarity = PASSIVE, courttype = CRIMINAL), " +
	"kyc.filter(standardized_type, standardized_sanction_type, type, sanctions_source = Conselho Nacional de Justiça)"

var nonDigits = regexp.MustCompile(`\D`)

// Sanitize strips every non-digit character from a CPF or CNPJ.
func Sanitize(document string) string {
	return nonDigits.ReplaceAllString(document, "")
}

// Client queries the /pessoas endpoint.
type Client struct {
	baseURL     string
	accessToken string
	tokenID     string
	httpClient  *http.Client
	lookups     *cache.Loader[*domain.IdentityResponse]
	limiter     *quota.Limiter
}

// NewClient creates a client. cache may be nil to disable response caching.
func NewClient(cfg domain.IdentityConfig, c domain.Cache) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ttl := time.Duration(cfg.CacheTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	logCacheError := func(op string, err error) {
		slog.Warn("identity cache "+op+" failed", "error", err)
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		tokenID:     cfg.TokenID,
		httpClient:  &http.Client{Timeout: timeout},
		lookups:     cache.NewLoader[*domain.IdentityResponse](c, domain.NamespaceIdentity, ttl, logCacheError),
		limiter:     quota.NewLimiter(c, "bigdatacorp", cfg.DailyQuota),
	}
}

type lookupRequest struct {
	Q        string `json:"q"`
	Datasets string `json:"Datasets"`
}

// Lookup returns the registry entry for a document.
// Cached responses do not count against the daily quota, and concurrent
// lookups of the same document share one provider call.
func (c *Client) Lookup(ctx context.Context, document string) (*domain.IdentityResponse, error) {
	digits := Sanitize(document)
	if digits == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDocument, document)
	}
	resp, _, err := c.lookups.Get(ctx, "doc:"+digits, func(ctx context.Context) (*domain.IdentityResponse, error) {
		if _, err := c.limiter.Take(ctx); err != nil {
			return nil, err
		}
		return c.fetch(ctx, digits)
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) fetch(ctx context.Context, digits string) (*domain.IdentityResponse, error) {
	body, err := json.Marshal(lookupRequest{Q: "doc{" + digits + "}", Datasets: Datasets})
	if err != nil {
		return nil, fmt.Errorf("failed to encode lookup: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pessoas", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("AccessToken", c.accessToken)
	req.Header.Set("TokenId", c.tokenID)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity lookup failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, res.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out domain.IdentityResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode identity response: %w", err)
	}
	if out.Result == nil {
		out.Result = []domain.IdentityResult{}
	}
	return &out, nil
}

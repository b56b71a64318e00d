// Package alerts selects the users flagged for money-laundering review.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/lavandowski/internal/decision"
	"github.com/opensource-finance/lavandowski/internal/domain"
	"github.com/opensource-finance/lavandowski/internal/normalize"
	"github.com/opensource-finance/lavandowski/internal/warehouse"
)

// Alert types produced outside the analyst catalogue.
const (
	AIAlert     = "AI Alert"
	CustomAlert = "Custom Alert"
)

// ErrInvalidFilter is returned when the filter expression does not compile
// to a boolean.
var ErrInvalidFilter = errors.New("invalid alert filter")

// analystAlerts maps the analyst account that raised a traditional alert to
// its alert type.
var analystAlerts = map[int64]string{
	8423054:  "CH Alert",
	8832903:  "Pep_Pix Alert",
	15858378: "GAFI Alert",
	16368511: "Merchant_Pix Alert",
	18758930: "International_Cards_Alert",
	19897830: "Bank_Slips_Alert",
	20583019: "Goverment_Corporate_Cards_Alert",
	20698248: "Betting_Houses_Alert",
	25071066: "GAFI Alert [US]",
	25261377: "international_cards_alert [US]",
	24954170: "ted_transfers_alert",
	34767121: "Pf_Merchant_Pix Alert",
	25769012: "Issuing Transactions Alert",
	27951634: "Foreigners_Alert",
	28279057: "acquiring_jim_us_alert [US]",
	28320827: "aml_acquiring_prohibited_countries_jim_us_alert [US]",
	29865856: "international_location_attempts_alert",
	29842685: "aml_prison_areas_alert",
	30046553: "aml_pix_change_atm_alert",
	29840096: "aml_blocked_contacts_alert",
}

// AlertType resolves an analyst id through the catalogue.
func AlertType(analystID int64) (string, bool) {
	t, ok := analystAlerts[analystID]
	return t, ok
}

// Source reads flagged users from the warehouse.
type Source struct {
	wh      domain.Warehouse
	catalog *warehouse.Catalog
	cfg     domain.AlertsConfig
	filter  cel.Program
	now     func() time.Time
	logger  *slog.Logger
}

// NewSource creates an alert source. The optional filter expression is
// compiled once here.
func NewSource(wh domain.Warehouse, catalog *warehouse.Catalog, cfg domain.AlertsConfig, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Source{
		wh:      wh,
		catalog: catalog,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger,
	}

	if expr := strings.TrimSpace(cfg.Filter); expr != "" {
		prg, err := compileFilter(expr)
		if err != nil {
			return nil, err
		}
		s.filter = prg
	}
	return s, nil
}

func compileFilter(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("user_id", cel.IntType),
		cel.Variable("alert_type", cel.StringType),
		cel.Variable("score", cel.DoubleType),
		cel.Variable("has_score", cel.BoolType),
		cel.Variable("features", cel.StringType),
		cel.Variable("business_validation", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, issues.Err())
	}
	if ast.OutputType() != types.BoolType {
		return nil, fmt.Errorf("%w: expression must return bool, got %s", ErrInvalidFilter, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return prg, nil
}

// Window returns the lookback window ending now. days <= 0 uses the configured lookback.
func (s *Source) Window(days int) domain.Window {
	if days <= 0 {
		days = s.cfg.LookbackDays
	}
	if days <= 0 {
		days = 1
	}
	now := s.now().UTC()
	return domain.Window{Since: now.AddDate(0, 0, -days), Until: now}
}

// Flagged returns the users to analyze, most recent alert first.
func (s *Source) Flagged(ctx context.Context, w domain.Window) ([]domain.FlaggedUser, error) {
	if s.cfg.UserID != 0 {
		return s.ForUser(s.cfg.UserID), nil
	}
	return s.flagged(ctx, w)
}

// ForUser returns the single-user override for userID.
func (s *Source) ForUser(userID int64) []domain.FlaggedUser {
	return []domain.FlaggedUser{{
		UserID:             userID,
		AlertType:          CustomAlert,
		AlertDate:          s.now().UTC().Truncate(24 * time.Hour),
		BusinessValidation: true,
	}}
}

func (s *Source) flagged(ctx context.Context, w domain.Window) ([]domain.FlaggedUser, error) {
	since := w.Since.UTC()
	until := w.Until.UTC()
	if until.IsZero() {
		until = s.now().UTC()
	}

	traditional, err := s.traditional(ctx, since, until)
	if err != nil {
		return nil, err
	}
	predicted, err := s.predicted(ctx, since, until)
	if err != nil {
		return nil, err
	}
	excluded, err := s.excluded(ctx)
	if err != nil {
		return nil, err
	}

	all := append(traditional, predicted...)
	users := make([]domain.FlaggedUser, 0, len(all))
	for _, u := range all {
		if _, skip := excluded[u.UserID]; skip {
			continue
		}
		keep, err := s.accept(u)
		if err != nil {
			return nil, err
		}
		if keep {
			users = append(users, u)
		}
	}

	sort.SliceStable(users, func(i, j int) bool {
		return users[i].AlertDate.After(users[j].AlertDate)
	})

	s.logger.Info("flagged users selected",
		"traditional", len(traditional),
		"ai", len(predicted),
		"excluded", len(excluded),
		"selected", len(users),
	)
	return users, nil
}

// traditional returns analyst-raised alerts, one per user, day and alert type.
func (s *Source) traditional(ctx context.Context, since, until time.Time) ([]domain.FlaggedUser, error) {
	rows, err := s.wh.Query(ctx, fmt.Sprintf(`
		SELECT DISTINCT an.user_id, an.created_at, an.analyst_id
		FROM %s an
		JOIN %s o ON an.offense_id = o.id
		WHERE o.name = ?
		  AND an.created_at >= ?
		  AND an.created_at < ?
		  AND an.analyst_id IS NOT NULL
		ORDER BY an.created_at DESC`,
		s.catalog.Table(warehouse.TableOffenseAnalyses),
		s.catalog.Table(warehouse.TableOffenses)),
		decision.OffenseName, since, until)
	if err != nil {
		return nil, fmt.Errorf("failed to query traditional alerts: %w", err)
	}

	type key struct {
		user  int64
		day   time.Time
		alert string
	}
	seen := make(map[key]struct{}, len(rows))
	users := make([]domain.FlaggedUser, 0, len(rows))
	for _, row := range rows {
		alertType, ok := AlertType(int64(normalize.Float(row, "analyst_id")))
		if !ok {
			continue
		}
		u := domain.FlaggedUser{
			UserID:    int64(normalize.Float(row, "user_id")),
			AlertType: alertType,
			AlertDate: day(row["created_at"]),
		}
		k := key{u.UserID, u.AlertDate, u.AlertType}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		users = append(users, u)
	}
	return users, nil
}

// predicted returns positive model predictions.
func (s *Source) predicted(ctx context.Context, since, until time.Time) ([]domain.FlaggedUser, error) {
	rows, err := s.wh.Query(ctx, fmt.Sprintf(`
		SELECT user_id, timestamp, score, features
		FROM %s
		WHERE timestamp >= ?
		  AND timestamp < ?
		  AND label = 1
		ORDER BY timestamp DESC`,
		s.catalog.Table(warehouse.TablePredictions)),
		since, until)
	if err != nil {
		return nil, fmt.Errorf("failed to query AI alerts: %w", err)
	}

	users := make([]domain.FlaggedUser, 0, len(rows))
	for _, row := range rows {
		u := domain.FlaggedUser{
			UserID:    int64(normalize.Float(row, "user_id")),
			AlertType: AIAlert,
			AlertDate: day(row["timestamp"]),
			Features:  normalize.String(row, "features"),
		}
		if row["score"] != nil {
			score := normalize.Float(row, "score")
			u.Score = &score
		}
		users = append(users, u)
	}
	return users, nil
}

// excluded returns users with a recent automated analysis or a high approved volume.
func (s *Source) excluded(ctx context.Context) (map[int64]struct{}, error) {
	now := s.now().UTC()
	out := make(map[int64]struct{})

	exclusionDays := s.cfg.ExclusionDays
	if exclusionDays < 0 {
		exclusionDays = 0
	}
	analyzed, err := s.wh.Query(ctx, fmt.Sprintf(`
		SELECT DISTINCT a.user_id
		FROM %s a
		JOIN %s o ON a.offense_id = o.id
		WHERE o.name = ?
		  AND (
		    (a.conclusion = 'normal' AND a.priority IN ('low', 'mid', 'high'))
		    OR (a.conclusion = 'suspicious' AND a.priority IN ('mid', 'high'))
		    OR (a.conclusion = 'offense' AND a.priority IN ('mid', 'high'))
		  )
		  AND a.created_at >= ?
		  AND a.automatic_pipeline = ?`,
		s.catalog.Table(warehouse.TableOffenseAnalyses),
		s.catalog.Table(warehouse.TableOffenses)),
		decision.OffenseName, now.AddDate(0, 0, -exclusionDays), true)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyzed users: %w", err)
	}
	addUsers(out, analyzed, "user_id")

	transactions := s.catalog.Table(warehouse.TableTransactions)
	if s.cfg.LifetimeVolumeThreshold > 0 {
		rows, err := s.wh.Query(ctx, fmt.Sprintf(`
			SELECT merchant_id
			FROM %s
			WHERE status = 'approved'
			GROUP BY merchant_id
			HAVING SUM(amount) >= ?`, transactions),
			s.cfg.LifetimeVolumeThreshold)
		if err != nil {
			return nil, fmt.Errorf("failed to query lifetime volume: %w", err)
		}
		addUsers(out, rows, "merchant_id")
	}

	if s.cfg.RecentVolumeThreshold > 0 {
		days := s.cfg.RecentVolumeDays
		if days <= 0 {
			days = 90
		}
		rows, err := s.wh.Query(ctx, fmt.Sprintf(`
			SELECT merchant_id
			FROM %s
			WHERE status = 'approved'
			  AND created_at >= ?
			GROUP BY merchant_id
			HAVING SUM(amount) >= ?`, transactions),
			now.AddDate(0, 0, -days), s.cfg.RecentVolumeThreshold)
		if err != nil {
			return nil, fmt.Errorf("failed to query recent volume: %w", err)
		}
		addUsers(out, rows, "merchant_id")
	}

	return out, nil
}

func (s *Source) accept(u domain.FlaggedUser) (bool, error) {
	if s.filter == nil {
		return true, nil
	}
	var score float64
	if u.Score != nil {
		score = *u.Score
	}
	out, _, err := s.filter.Eval(map[string]any{
		"user_id":             u.UserID,
		"alert_type":          u.AlertType,
		"score":               score,
		"has_score":           u.Score != nil,
		"features":            u.Features,
		"business_validation": u.BusinessValidation,
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate alert filter for user %d: %w", u.UserID, err)
	}
	keep, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: non-boolean result %v", ErrInvalidFilter, out.Value())
	}
	return keep, nil
}

func addUsers(set map[int64]struct{}, rows []domain.Record, col string) {
	for _, row := range rows {
		set[int64(normalize.Float(row, col))] = struct{}{}
	}
}

// day truncates a warehouse timestamp to its UTC date.
func day(v any) time.Time {
	var t time.Time
	switch x := v.(type) {
	case time.Time:
		t = x
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05", time.DateOnly} {
			if parsed, err := time.Parse(layout, x); err == nil {
				t = parsed
				break
			}
		}
	}
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(24 * time.Hour)
}

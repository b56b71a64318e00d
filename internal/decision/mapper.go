// Package decision turns a model narrative into a risk score and a
// case-management conclusion.
package decision

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/opensource-finance/lavandowski/internal/domain"
)

// Submission constants shared by every automated analysis.
const (
	AnalysisType = "manual"
	OffenseGroup = "illegal_activity"
	OffenseName  = "money_laundering"
)

// Notes appended to the description for mid-range scores.
const (
	MonitoringNote       = "\n\nOBS: Caso de médio risco que requer monitoramento contínuo."
	monitoringMarker     = "Caso de médio risco"
	BusinessReviewNote   = "\n\nOBS: Caso de risco médio-alto que requer validação do negócio, sem necessidade de bloqueio temporário."
	businessReviewMarker = "Caso de risco médio-alto"
	normalizePhrase      = "normalizar o caso"
)

// errorMarkers identify narratives that are failure messages rather than analyses.
var errorMarkers = []string{
	"não consigo tankar este caso",
	"an error occurred",
	"muitas transações",
	"context_length_exceeded",
	"token limit",
	"chame um analista humano",
}

var (
	markdown     = regexp.MustCompile(`[#*_]`)
	scorePattern = regexp.MustCompile(`(?:[Rr]isco\s+(?:de\s+[Ll]avagem\s+(?:de\s+)?[Dd]inheiro)?|[Cc]lassificação\s+(?:de\s+)?[Rr]isco):?\s*(\d+)(?:/|\s*de\s*)10`)
	altPattern   = regexp.MustCompile(`[Ss]core:?\s*(\d+)(?:/|\s*de\s*)10`)
)

// Band maps a score range to an outcome. Lower is inclusive, Upper exclusive;
// nil bounds are open.
type Band struct {
	Lower      *int
	Upper      *int
	Conclusion domain.Conclusion
	Priority   domain.Priority
	Note       string
	NoteMarker string
}

func (b Band) contains(score int) bool {
	if b.Lower != nil && score < *b.Lower {
		return false
	}
	if b.Upper != nil && score >= *b.Upper {
		return false
	}
	return true
}

func bound(v int) *int { return &v }

// DefaultBands is the score policy for money-laundering cases.
func DefaultBands() []Band {
	return []Band{
		{Upper: bound(6), Conclusion: domain.ConclusionNormal, Priority: domain.PriorityHigh},
		{Lower: bound(6), Upper: bound(7), Conclusion: domain.ConclusionNormal, Priority: domain.PriorityHigh,
			Note: MonitoringNote, NoteMarker: monitoringMarker},
		{Lower: bound(7), Upper: bound(9), Conclusion: domain.ConclusionSuspicious, Priority: domain.PriorityMid,
			Note: BusinessReviewNote, NoteMarker: businessReviewMarker},
		{Lower: bound(9), Upper: bound(10), Conclusion: domain.ConclusionSuspicious, Priority: domain.PriorityHigh},
		{Lower: bound(10), Conclusion: domain.ConclusionOffense, Priority: domain.PriorityHigh},
	}
}

// Decision is the outcome of mapping one narrative.
type Decision struct {
	Description   string
	Score         int
	ScoreFound    bool
	Conclusion    domain.Conclusion
	Priority      domain.Priority
	ErrorDetected bool
	Overridden    bool
}

// Mapper applies the band policy to narratives.
type Mapper struct {
	bands  []Band
	logger *slog.Logger
}

// NewMapper creates a mapper with the default bands.
func NewMapper(logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{bands: DefaultBands(), logger: logger}
}

// Map builds the case-management payload for a narrative.
// businessValidation is accepted for parity with the alert record and does not affect the payload.
func (m *Mapper) Map(userID int64, rawDescription string, businessValidation bool) domain.ExportPayload {
	d := m.Decide(userID, rawDescription)
	return Payload(userID, d)
}

// Payload wraps a decision in the submission envelope.
func Payload(userID int64, d Decision) domain.ExportPayload {
	return domain.ExportPayload{
		UserID:            userID,
		Description:       d.Description,
		AnalysisType:      AnalysisType,
		Conclusion:        d.Conclusion,
		Priority:          d.Priority,
		AutomaticPipeline: true,
		OffenseGroup:      OffenseGroup,
		OffenseName:       OffenseName,
		RelatedAnalyses:   []int64{},
	}
}

// Decide sanitizes a narrative and classifies it.
func (m *Mapper) Decide(userID int64, rawDescription string) Decision {
	d := Decision{Description: Sanitize(rawDescription)}

	if HasErrorMarker(d.Description) {
		d.ErrorDetected = true
		d.Conclusion = domain.ConclusionUndetermined
		d.Priority = domain.PriorityHigh
		m.logger.Warn("narrative is an error message, leaving conclusion empty", "user_id", userID)
		return d
	}

	d.Score, d.ScoreFound = ExtractScore(d.Description)
	if !d.ScoreFound {
		m.logger.Warn("risk score not found in narrative",
			"user_id", userID,
			"fail_open", true,
		)
	}

	band := m.band(d.Score)
	d.Conclusion, d.Priority = band.Conclusion, band.Priority
	if band.Note != "" && !strings.Contains(d.Description, band.NoteMarker) {
		d.Description += band.Note
	}

	if d.Conclusion != domain.ConclusionOffense &&
		strings.Contains(strings.ToLower(d.Description), normalizePhrase) {
		if d.Conclusion != domain.ConclusionNormal {
			m.logger.Info("narrative asks to normalize the case",
				"user_id", userID,
				"score", d.Score,
				"original_conclusion", d.Conclusion,
			)
			d.Overridden = true
		}
		d.Conclusion = domain.ConclusionNormal
	}

	return d
}

func (m *Mapper) band(score int) Band {
	for _, b := range m.bands {
		if b.contains(score) {
			return b
		}
	}
	return m.bands[len(m.bands)-1]
}

// Sanitize strips Markdown emphasis and heading characters.
func Sanitize(text string) string {
	return markdown.ReplaceAllString(text, "")
}

// HasErrorMarker reports whether text contains a known failure message.
func HasErrorMarker(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range errorMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ExtractScore finds the first "X/10" risk score. The second result is false
// when no score is present, in which case the score is 0.
func ExtractScore(text string) (int, bool) {
	for _, re := range []*regexp.Regexp{scorePattern, altPattern} {
		if m := re.FindStringSubmatch(text); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			return n, true
		}
	}
	return 0, false
}

// RiskLabel is the dashboard label for a score.
func RiskLabel(score int) string {
	switch {
	case score <= 5:
		return "Baixo Risco"
	case score == 6:
		return "Médio Risco"
	case score <= 8:
		return "Médio-Alto Risco"
	case score == 9:
		return "Alto Risco"
	default:
		return "Risco Extremo"
	}
}

// ConclusionLabel is the dashboard label for a payload outcome.
func ConclusionLabel(p domain.ExportPayload) string {
	switch p.Conclusion {
	case domain.ConclusionNormal:
		if strings.Contains(p.Description, monitoringMarker) {
			return "Normal (monitorar)"
		}
		return "Normal"
	case domain.ConclusionSuspicious:
		if strings.Contains(p.Description, businessReviewMarker) ||
			strings.Contains(strings.ToLower(p.Description), "suspicious mid") {
			return "Suspicious Mid"
		}
		return "Suspicious High"
	case domain.ConclusionOffense:
		return "Offense High"
	default:
		return "Indefinido"
	}
}

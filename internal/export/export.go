// Package export renders run reports as CSV, JSON or PDF.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/opensource-finance/lavandowski/internal/domain"
)

// Format is an export file format.
type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
	PDF  Format = "pdf"
)

// ErrUnsupportedFormat is returned for unknown format names.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat resolves a case-insensitive format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case CSV, JSON, PDF:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// ContentType is the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv; charset=utf-8"
	case PDF:
		return "application/pdf"
	default:
		return "application/json"
	}
}

// Write renders run in format f.
func Write(w io.Writer, run *domain.RunRecord, f Format) error {
	switch f {
	case CSV:
		return WriteCSV(w, run)
	case JSON:
		return WriteJSON(w, run)
	case PDF:
		return WritePDF(w, run)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}

var csvHeader = []string{
	"run_id", "user_id", "alert_type", "subject_kind", "risk_score", "risk_label",
	"conclusion", "conclusion_label", "priority", "api_response", "error",
	"duration_ms", "completed_at", "description",
}

// WriteCSV writes one row per case result.
func WriteCSV(w io.Writer, run *domain.RunRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range run.Results {
		completed := ""
		if !r.CompletedAt.IsZero() {
			completed = r.CompletedAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			r.RunID,
			strconv.FormatInt(r.UserID, 10),
			r.AlertType,
			string(r.SubjectKind),
			strconv.Itoa(r.RiskScore),
			r.RiskLabel,
			string(r.Payload.Conclusion),
			r.ConclusionLabel,
			string(r.Payload.Priority),
			r.APIResponse,
			r.Error,
			strconv.FormatInt(r.DurationMs, 10),
			completed,
			r.Payload.Description,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the full run record, indented.
func WriteJSON(w io.Writer, run *domain.RunRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(run); err != nil {
		return fmt.Errorf("error encoding JSON data: %w", err)
	}
	return nil
}

// WritePDF writes a report with a run summary and one section per case.
func WritePDF(w io.Writer, run *domain.RunRecord) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFillColor(40, 40, 40)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 12, tr("  Lavandowski - Relatório de Análises AML"), "", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.SetFillColor(240, 240, 240)
	pdf.SetTextColor(50, 50, 50)
	pdf.CellFormat(0, 8, tr("  Execução: "+run.RunID), "", 1, "L", true, 0, "")
	pdf.Ln(6)

	section(pdf, tr, "Resumo")
	for _, row := range summaryRows(run) {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(60, 7, tr(row[0]), "B", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, tr(row[1]), "B", 1, "L", false, 0, "")
	}
	pdf.Ln(8)

	for _, r := range run.Results {
		section(pdf, tr, fmt.Sprintf("Usuário %d - %s", r.UserID, r.AlertType))

		pdf.SetFont("Arial", "", 10)
		lines := []string{
			fmt.Sprintf("Risco: %d/10 (%s)", r.RiskScore, r.RiskLabel),
			fmt.Sprintf("Conclusão: %s", r.ConclusionLabel),
			fmt.Sprintf("Prioridade: %s", r.Payload.Priority),
			fmt.Sprintf("Tempo: %.1fs", float64(r.DurationMs)/1000),
		}
		if r.Error != "" {
			lines = append(lines, "Erro: "+r.Error)
		}
		for _, line := range lines {
			pdf.CellFormat(0, 6, tr(line), "", 1, "L", false, 0, "")
		}
		if r.Payload.Description != "" {
			pdf.Ln(2)
			pdf.SetFont("Arial", "", 9)
			pdf.MultiCell(190, 5, tr(r.Payload.Description), "", "L", false)
		}
		pdf.Ln(6)
	}

	return pdf.Output(w)
}

func section(pdf *gofpdf.Fpdf, tr func(string) string, title string) {
	pdf.SetFont("Arial", "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.Cell(0, 8, tr(title))
	pdf.Ln(7)
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(pdf.GetX(), pdf.GetY(), pdf.GetX()+190, pdf.GetY())
	pdf.Ln(4)
	pdf.SetTextColor(50, 50, 50)
}

func summaryRows(run *domain.RunRecord) [][2]string {
	rows := [][2]string{
		{"Status", string(run.Status)},
		{"Progresso", fmt.Sprintf("%d/%d", run.Done, run.Total)},
		{"Dry run", strconv.FormatBool(run.DryRun)},
	}
	if s := run.Summary; s != nil {
		rows = append(rows,
			[2]string{"Analisados", strconv.Itoa(s.Analyzed)},
			[2]string{"Suspeitos", strconv.Itoa(s.Suspicious)},
			[2]string{"Falhas", strconv.Itoa(s.Failed)},
			[2]string{"Score médio", fmt.Sprintf("%.2f", s.AverageScore)},
			[2]string{"Tempo total", fmt.Sprintf("%.1fs", float64(s.TotalMs)/1000)},
			[2]string{"Tempo médio por usuário", fmt.Sprintf("%.1fs", float64(s.AvgMsPerUser)/1000)},
		)
	}
	return rows
}

// Filename is the export file name for run in format f at t.
func Filename(runID string, f Format, t time.Time) string {
	return fmt.Sprintf("lavandowski_%s_%s.%s", runID, t.Format("20060102_1504"), f)
}

// SaveAll writes run to dir once per format and returns the absolute paths.
func SaveAll(dir string, run *domain.RunRecord, formats []string, now time.Time) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating export directory: %w", err)
	}

	paths := make([]string, 0, len(formats))
	for _, name := range formats {
		f, err := ParseFormat(name)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(dir, Filename(run.RunID, f, now))
		if err := saveFile(path, run, f); err != nil {
			return paths, err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		paths = append(paths, abs)
	}
	return paths, nil
}

func saveFile(path string, run *domain.RunRecord, f Format) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s file: %w", f, err)
	}
	if err := Write(file, run, f); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

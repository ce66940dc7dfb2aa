package export

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
)

const (
	SheetRecords   = "Records"
	SheetAnomalies = "Anomalies"
	SheetDocuments = "Documents"
	SheetEvents    = "Events"
)

// Report is everything one analysis run produced.
type Report struct {
	Specs     []entity.FieldSpec
	Records   []entity.ExtractedRecord
	Findings  []entity.AnomalyFinding
	Documents []entity.DocumentResult
	Events    []entity.Event
}

// Service renders analysis reports as XLSX workbooks.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// WorkbookXLSX returns the report as XLSX bytes. Numeric values are written as numbers so
// spreadsheet formulas keep working; sentinels are written as text.
func (s *Service) WorkbookXLSX(r Report) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetRecords); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	for _, name := range []string{SheetAnomalies, SheetDocuments, SheetEvents} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("xlsx sheet %s: %w", name, err)
		}
	}

	writeRecords(f, r)
	writeAnomalies(f, r.Findings)
	writeDocuments(f, r.Documents)
	writeEvents(f, r.Events)

	idx, _ := f.GetSheetIndex(SheetRecords)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(r.Records),
		"findings", len(r.Findings),
		"documents", len(r.Documents),
		"events", len(r.Events),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WriteFile renders the report and writes it to path.
func (s *Service) WriteFile(path string, r Report) error {
	b, err := s.WorkbookXLSX(r)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("xlsx save: %w", err)
	}
	return nil
}

func writeRecords(f *excelize.File, r Report) {
	keys := columns(r)
	header := append([]any{"Document"}, toAny(keys)...)
	header = append(header, "Validation Error")
	writeRow(f, SheetRecords, 1, header)

	for i, rec := range r.Records {
		row := make([]any, 0, len(keys)+2)
		row = append(row, rec.SourceID)
		for _, k := range keys {
			row = append(row, cellValue(rec.Get(k)))
		}
		row = append(row, rec.ValidationError)
		writeRow(f, SheetRecords, i+2, row)
	}

	_ = f.SetColWidth(SheetRecords, "A", "A", 32)
	if len(keys) > 0 {
		last, _ := excelize.ColumnNumberToName(len(keys) + 1)
		_ = f.SetColWidth(SheetRecords, "B", last, 20)
	}
	_ = f.SetPanes(SheetRecords, &excelize.Panes{Freeze: true, XSplit: 1, YSplit: 1, TopLeftCell: "B2", ActivePane: "bottomRight"})
}

func writeAnomalies(f *excelize.File, findings []entity.AnomalyFinding) {
	writeRow(f, SheetAnomalies, 1, []any{"Kind", "Severity", "Field", "Document", "Observed", "Reference", "Message"})
	for i, a := range findings {
		writeRow(f, SheetAnomalies, i+2, []any{
			string(a.Kind), string(a.Severity), a.FieldKey, a.SourceID, a.Observed, a.Reference, a.Message,
		})
	}
	_ = f.SetColWidth(SheetAnomalies, "C", "D", 24)
	_ = f.SetColWidth(SheetAnomalies, "F", "G", 60)
}

func writeDocuments(f *excelize.File, docs []entity.DocumentResult) {
	writeRow(f, SheetDocuments, 1, []any{"Document", "Status", "Method", "Pages", "Duration (ms)", "Error", "Warnings"})
	for i, d := range docs {
		warnings := strings.Join(d.Warnings, "; ")
		writeRow(f, SheetDocuments, i+2, []any{
			d.SourceID, string(d.Status), string(d.Method), d.Pages, d.Duration.Milliseconds(), d.Err, truncate(warnings, 500),
		})
	}
	_ = f.SetColWidth(SheetDocuments, "A", "A", 32)
	_ = f.SetColWidth(SheetDocuments, "F", "G", 60)
}

func writeEvents(f *excelize.File, events []entity.Event) {
	writeRow(f, SheetEvents, 1, []any{"Document", "Date", "Description", "Excerpt"})
	for i, e := range events {
		writeRow(f, SheetEvents, i+2, []any{e.SourceID, e.Date, e.Description, truncate(e.Excerpt, 500)})
	}
	_ = f.SetColWidth(SheetEvents, "A", "A", 32)
	_ = f.SetColWidth(SheetEvents, "B", "B", 12)
	_ = f.SetColWidth(SheetEvents, "C", "D", 60)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	_ = f.SetSheetRow(sheet, cell, &values)
}

// columns prefers the field spec order and falls back to the first record's keys.
func columns(r Report) []string {
	if len(r.Specs) > 0 {
		out := make([]string, len(r.Specs))
		for i, s := range r.Specs {
			out[i] = s.Key
		}
		return out
	}
	if len(r.Records) > 0 {
		return r.Records[0].Keys
	}
	return nil
}

func cellValue(v entity.Value) any {
	switch v.Kind {
	case entity.KindNumber:
		return v.Num
	case entity.KindInteger:
		return v.Int
	default:
		return v.String()
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

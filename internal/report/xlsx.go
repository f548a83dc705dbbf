package report

import (
	"fmt"
	"io"
	"time"

	"dam-stability/internal/assessment"
	"dam-stability/internal/dam"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet WriteXLSX fills.
const SheetName = "Assessment"

// WriteXLSX writes rec as a one-sheet workbook: header, inputs, quantities,
// result, calculation steps and analysis.
func WriteXLSX(w io.Writer, rec assessment.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	fixed, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	sw := &sheetWriter{f: f, bold: bold, fixed: fixed}
	ev := rec.Evaluation

	sw.heading("Dam Stability Assessment")
	sw.row("Assessment", rec.ID)
	sw.row("Date", rec.CreatedAt.Format(time.RFC3339))
	sw.row("Source", string(rec.Source))
	sw.row("Factor mode", string(ev.Mode))
	sw.skip()

	sw.heading("Inputs")
	for _, r := range inputRows(ev.Input) {
		sw.row(r[0], r[1])
	}
	sw.skip()

	sw.heading("Quantities")
	sw.quantity("Weight (kg)", ev.Quantities.Weight)
	sw.quantity("Water pressure (N/m²)", ev.Quantities.WaterPressure)
	sw.quantity("Resisting moment (Nm)", ev.Quantities.ResistingMoment)
	sw.skip()

	sw.heading("Result")
	sw.quantity("Sliding factor", ev.Result.SlidingFactor)
	sw.quantity("Overturning factor", ev.Result.OverturningFactor)
	sw.row("Status", ev.Result.Status)
	sw.skip()

	sw.heading("Calculation steps")
	for _, step := range ev.Steps {
		sw.row(step.Title, step.Calculation)
	}
	sw.skip()

	sw.heading("Analysis")
	sw.row(narrativeText(rec), "")

	if sw.err != nil {
		return fmt.Errorf("fill sheet: %w", sw.err)
	}
	if err := f.SetColWidth(SheetName, "A", "A", 28); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(SheetName, "B", "B", 80); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// sheetWriter appends label/value rows and keeps the first error.
type sheetWriter struct {
	f           *excelize.File
	line        int
	bold, fixed int
	err         error
}

func (s *sheetWriter) next() string {
	s.line++
	cell, err := excelize.CoordinatesToCellName(1, s.line)
	if err != nil && s.err == nil {
		s.err = err
	}
	return cell
}

func (s *sheetWriter) set(fn func() error) {
	if s.err == nil {
		s.err = fn()
	}
}

func (s *sheetWriter) skip() { s.line++ }

func (s *sheetWriter) heading(title string) {
	cell := s.next()
	s.set(func() error { return s.f.SetCellValue(SheetName, cell, title) })
	s.set(func() error { return s.f.SetCellStyle(SheetName, cell, cell, s.bold) })
}

func (s *sheetWriter) row(label, value string) {
	cell := s.next()
	s.set(func() error { return s.f.SetSheetRow(SheetName, cell, &[]any{label, value}) })
}

// quantity writes finite values as numbers shown with two decimals and
// non-finite values as text.
func (s *sheetWriter) quantity(label string, q dam.Quantity) {
	cell := s.next()
	if !q.IsFinite() {
		s.set(func() error { return s.f.SetSheetRow(SheetName, cell, &[]any{label, q.String()}) })
		return
	}
	s.set(func() error { return s.f.SetSheetRow(SheetName, cell, &[]any{label, q.Float()}) })

	valueCell := fmt.Sprintf("B%d", s.line)
	s.set(func() error { return s.f.SetCellStyle(SheetName, valueCell, valueCell, s.fixed) })
}

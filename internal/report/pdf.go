// Package report renders assessment records as PDF and XLSX documents and
// reads batches of dam inputs from XLSX workbooks.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"dam-stability/internal/assessment"
	"dam-stability/internal/dam"

	"github.com/phpdave11/gofpdf"
)

const dateLayout = "2006-01-02 15:04 MST"

// glyphs outside cp1252 that appear in step traces.
var pdfReplacer = strings.NewReplacer("μ", "µ", "ρ", "rho")

// WritePDF writes rec as a single-document PDF report.
func WritePDF(w io.Writer, rec assessment.Record) error {
	ev := rec.Evaluation

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(pdfReplacer.Replace(s)) }

	pdf.SetTitle("Dam Stability Assessment", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Dam Stability Assessment")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Assessment: %s", rec.ID))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", rec.CreatedAt.Format(dateLayout)))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Source: %s    Factor mode: %s", rec.Source, ev.Mode))
	pdf.Ln(10)

	section(pdf, "Inputs")
	for _, row := range inputRows(ev.Input) {
		keyValue(pdf, text, row[0], row[1])
	}
	pdf.Ln(4)

	section(pdf, "Quantities")
	for _, row := range quantityRows(ev.Quantities) {
		keyValue(pdf, text, row[0], row[1])
	}
	pdf.Ln(4)

	section(pdf, "Result")
	keyValue(pdf, text, "Sliding factor", ev.Result.SlidingFactor.String())
	keyValue(pdf, text, "Overturning factor", ev.Result.OverturningFactor.String())
	keyValue(pdf, text, "Status", ev.Result.Status)
	pdf.Ln(4)

	if png, err := FactorChart(ev.Result); err == nil {
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("factors", opts, bytes.NewReader(png))
		pdf.ImageOptions("factors", pdf.GetX(), pdf.GetY(), 160, 0, true, opts, 0, "")
		pdf.Ln(4)
	} else {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.Cell(0, 6, "Factor chart unavailable: factors are not finite.")
		pdf.Ln(10)
	}

	section(pdf, "Calculation steps")
	for _, step := range ev.Steps {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.Cell(0, 6, text(step.Title))
		pdf.Ln(6)
		pdf.SetFont("Courier", "", 9)
		pdf.MultiCell(0, 5, text(step.Calculation), "", "L", false)
		pdf.Ln(2)
	}
	pdf.Ln(2)

	section(pdf, "Analysis")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, text(narrativeText(rec)), "", "L", false)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, title)
	pdf.Ln(9)
}

func keyValue(pdf *gofpdf.Fpdf, text func(string) string, key, value string) {
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(60, 6, text(key), "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, text(value), "", 1, "L", false, 0, "")
}

func inputRows(in dam.InputState) [][2]string {
	return [][2]string{
		{"Height (m)", in.Height},
		{"Width (m)", in.Width},
		{"Water level (m)", in.WaterLevel},
		{"Material density (kg/m³)", in.MaterialDensity},
		{"Friction coefficient", in.FrictionCoefficient},
	}
}

func quantityRows(q dam.Quantities) [][2]string {
	return [][2]string{
		{"Weight (kg)", q.Weight.Fixed()},
		{"Water pressure (N/m²)", q.WaterPressure.Fixed()},
		{"Resisting moment (Nm)", q.ResistingMoment.Fixed()},
	}
}

func narrativeText(rec assessment.Record) string {
	switch {
	case rec.Narrative != "":
		return rec.Narrative
	case rec.AnalysisError != "":
		return "Analysis unavailable: " + rec.AnalysisError
	default:
		return "No analysis was requested."
	}
}

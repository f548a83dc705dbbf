package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"dam-stability/internal/dam"

	"github.com/xuri/excelize/v2"
)

// ErrEmptySheet is returned when a workbook has no data rows.
var ErrEmptySheet = errors.New("sheet has no data rows")

// importColumns is the column order of an import sheet.
var importColumns = []dam.Field{
	dam.FieldHeight,
	dam.FieldWidth,
	dam.FieldWaterLevel,
	dam.FieldMaterialDensity,
	dam.FieldFrictionCoefficient,
}

// ImportedRow is one data row of an import workbook.
type ImportedRow struct {
	// Line is the 1-based spreadsheet row number.
	Line  int            `json:"line"`
	Input dam.InputState `json:"input"`
}

// ImportXLSX reads the first sheet of an xlsx workbook. The first row is a
// header and is skipped; blank rows are ignored. Cell text is kept as typed,
// so a cell that is not a number evaluates to NaN like any other input.
func ImportXLSX(r io.Reader) ([]ImportedRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ErrEmptySheet
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	var out []ImportedRow
	for i := 1; i < len(rows); i++ {
		in, ok := parseRow(rows[i])
		if !ok {
			continue
		}
		out = append(out, ImportedRow{Line: i + 1, Input: in})
	}
	if len(out) == 0 {
		return nil, ErrEmptySheet
	}
	return out, nil
}

func parseRow(cells []string) (dam.InputState, bool) {
	var (
		in    dam.InputState
		blank = true
	)
	for i, field := range importColumns {
		if i >= len(cells) {
			break
		}
		v := strings.TrimSpace(cells[i])
		if v != "" {
			blank = false
		}
		in, _ = in.With(field, v)
	}
	return in, !blank
}

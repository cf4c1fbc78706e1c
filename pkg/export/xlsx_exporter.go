package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Grades"

// XLSXExporter renders datasets into a single-sheet workbook.
type XLSXExporter struct {
	Sheet string
}

// NewXLSXExporter constructs an XLSX exporter writing to the "Grades" sheet.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{Sheet: xlsxSheet}
}

// ContentType implements Renderer.
func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension implements Renderer.
func (e *XLSXExporter) Extension() string { return "xlsx" }

// Render writes title and meta rows followed by the header row and data rows.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	sheet := e.Sheet
	if sheet == "" {
		sheet = xlsxSheet
	}

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if sheet != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, fmt.Errorf("drop default sheet: %w", err)
		}
	}

	row := 1
	if data.Title != "" {
		if err := setRow(f, sheet, row, []string{data.Title}); err != nil {
			return nil, err
		}
		row++
	}
	for _, pair := range data.Meta {
		if err := setRow(f, sheet, row, pair[:]); err != nil {
			return nil, err
		}
		row++
	}
	if data.Title != "" || len(data.Meta) > 0 {
		row++
	}

	if err := setRow(f, sheet, row, data.Headers); err != nil {
		return nil, err
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		first, _ := excelize.CoordinatesToCellName(1, row)
		last, _ := excelize.CoordinatesToCellName(len(data.Headers), row)
		_ = f.SetCellStyle(sheet, first, last, style)
	}
	row++

	for i := range data.Rows {
		if err := setRow(f, sheet, row, data.Row(i)); err != nil {
			return nil, err
		}
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	return nil
}

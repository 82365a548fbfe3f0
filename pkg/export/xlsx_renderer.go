package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/sma-internship-api/internal/models"
)

const xlsxSheet = "Preferences"

var xlsxColumnWidths = []float64{15, 12, 20, 20, 20, 20, 20}

// XLSXRenderer renders the report as an Excel workbook.
type XLSXRenderer struct{}

// NewXLSXRenderer constructs an XLSX renderer.
func NewXLSXRenderer() *XLSXRenderer {
	return &XLSXRenderer{}
}

// Format implements Renderer.
func (r *XLSXRenderer) Format() models.ExportFormat { return models.ExportFormatXLSX }

// ContentType implements Renderer.
func (r *XLSXRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Render writes title, timestamp, header, roster and the company tally.
func (r *XLSXRenderer) Render(report *models.PreferenceReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	styles, err := newXLSXStyles(f)
	if err != nil {
		return nil, err
	}

	w := &sheetWriter{f: f, sheet: xlsxSheet}
	w.merge("A1", "G1")
	w.set(1, 1, Title(report), styles.title)
	w.merge("A2", "G2")
	w.set(1, 2, generatedStamp(report), styles.stamp)

	for i, header := range rosterHeaders {
		w.set(i+1, 4, header, styles.header)
	}

	loc := reportLocation(report)
	row := 5
	for _, student := range report.Roster {
		w.set(1, row, student.StudentName, styles.cell)
		w.set(2, row, student.StudentNumber, styles.cell)
		for i, slot := range student.Slots {
			w.set(3+i, row, CellText(slot, loc), styles.wrap)
		}
		w.rowHeight(row, 40)
		row++
	}

	row++
	w.set(1, row, statisticsTitle, styles.bold)
	row++
	w.set(1, row, "Company", styles.bold)
	w.set(2, row, "Times Chosen", styles.bold)
	for _, entry := range report.CompanyTally {
		row++
		w.set(1, row, entry.Company, 0)
		w.set(2, row, entry.Count, 0)
	}

	for i, width := range xlsxColumnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		w.colWidth(col, width)
	}
	if w.err != nil {
		return nil, fmt.Errorf("render xlsx: %w", w.err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

type xlsxStyles struct {
	title  int
	stamp  int
	header int
	cell   int
	wrap   int
	bold   int
}

func newXLSXStyles(f *excelize.File) (xlsxStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	defs := []*excelize.Style{
		{Font: &excelize.Font{Bold: true, Size: 16, Color: "0066CC"}, Alignment: &excelize.Alignment{Horizontal: "center"}},
		{Alignment: &excelize.Alignment{Horizontal: "center"}},
		{
			Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"0066CC"}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
			Border:    border,
		},
		{Border: border},
		{Border: border, Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}},
		{Font: &excelize.Font{Bold: true}},
	}
	ids := make([]int, len(defs))
	for i, def := range defs {
		id, err := f.NewStyle(def)
		if err != nil {
			return xlsxStyles{}, fmt.Errorf("create xlsx style: %w", err)
		}
		ids[i] = id
	}
	return xlsxStyles{title: ids[0], stamp: ids[1], header: ids[2], cell: ids[3], wrap: ids[4], bold: ids[5]}, nil
}

// sheetWriter keeps the first error so rendering code stays linear.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) set(col, row int, value interface{}, style int) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	if w.err = w.f.SetCellValue(w.sheet, cell, value); w.err != nil {
		return
	}
	if style > 0 {
		w.err = w.f.SetCellStyle(w.sheet, cell, cell, style)
	}
}

func (w *sheetWriter) merge(from, to string) {
	if w.err == nil {
		w.err = w.f.MergeCell(w.sheet, from, to)
	}
}

func (w *sheetWriter) rowHeight(row int, height float64) {
	if w.err == nil {
		w.err = w.f.SetRowHeight(w.sheet, row, height)
	}
}

func (w *sheetWriter) colWidth(col string, width float64) {
	if w.err == nil {
		w.err = w.f.SetColWidth(w.sheet, col, col, width)
	}
}

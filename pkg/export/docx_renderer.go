package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"

	"github.com/noah-isme/sma-internship-api/internal/models"
)

const docxTableStyle = "LightList-Accent4"

// DOCXRenderer renders the report as a Word document.
type DOCXRenderer struct{}

// NewDOCXRenderer constructs a DOCX renderer.
func NewDOCXRenderer() *DOCXRenderer {
	return &DOCXRenderer{}
}

// Format implements Renderer.
func (r *DOCXRenderer) Format() models.ExportFormat { return models.ExportFormatDOCX }

// ContentType implements Renderer.
func (r *DOCXRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}

// Render writes heading, timestamp, roster grid and the statistics table.
func (r *DOCXRenderer) Render(report *models.PreferenceReport) ([]byte, error) {
	document, err := godocx.NewDocument()
	if err != nil {
		return nil, fmt.Errorf("new docx: %w", err)
	}
	if _, err := document.AddHeading(Title(report), 0); err != nil {
		return nil, fmt.Errorf("docx title: %w", err)
	}
	document.AddParagraph(generatedStamp(report))

	loc := reportLocation(report)
	rows := make([][]string, 0, len(report.Roster)+1)
	rows = append(rows, rosterHeaders)
	for _, student := range report.Roster {
		row := []string{student.StudentName, student.StudentNumber}
		for _, slot := range student.Slots {
			row = append(row, CellText(slot, loc))
		}
		rows = append(rows, row)
	}
	addDOCXTable(document, rows)

	if len(report.CompanyTally) > 0 {
		if _, err := document.AddHeading(statisticsTitle, 1); err != nil {
			return nil, fmt.Errorf("docx statistics heading: %w", err)
		}
		stats := [][]string{{"Company", "Times Chosen"}}
		for _, entry := range report.CompanyTally {
			stats = append(stats, []string{entry.Company, strconv.Itoa(entry.Count)})
		}
		addDOCXTable(document, stats)
	}

	buf := &bytes.Buffer{}
	if err := document.Write(buf); err != nil {
		return nil, fmt.Errorf("write docx: %w", err)
	}
	return buf.Bytes(), nil
}

// addDOCXTable appends a styled table; the first row is the header. Multi-line
// cell text becomes one paragraph per line.
func addDOCXTable(document *docx.RootDoc, rows [][]string) {
	table := document.AddTable()
	table.Style(docxTableStyle)
	for _, values := range rows {
		row := table.AddRow()
		for _, value := range values {
			cell := row.AddCell()
			for _, line := range strings.Split(value, "\n") {
				cell.AddParagraph(line)
			}
		}
	}
}

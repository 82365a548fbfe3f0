package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/noah-isme/sma-internship-api/internal/models"
)

// CSVRenderer renders the roster followed by the company tally.
type CSVRenderer struct{}

// NewCSVRenderer builds a CSV renderer.
func NewCSVRenderer() *CSVRenderer {
	return &CSVRenderer{}
}

// Format implements Renderer.
func (r *CSVRenderer) Format() models.ExportFormat { return models.ExportFormatCSV }

// ContentType implements Renderer.
func (r *CSVRenderer) ContentType() string { return "text/csv; charset=utf-8" }

// Render produces CSV encoded bytes for the report.
func (r *CSVRenderer) Render(report *models.PreferenceReport) ([]byte, error) {
	buf := &bytes.Buffer{}
	// BOM so spreadsheet apps detect UTF-8 names.
	buf.WriteString("\ufeff")
	writer := csv.NewWriter(buf)

	records := [][]string{rosterHeaders}
	loc := reportLocation(report)
	for _, student := range report.Roster {
		record := []string{student.StudentName, student.StudentNumber}
		for _, slot := range student.Slots {
			record = append(record, CellText(slot, loc))
		}
		records = append(records, record)
	}
	records = append(records, []string{}, []string{"Company", "Times Chosen"})
	for _, entry := range report.CompanyTally {
		records = append(records, []string{entry.Company, strconv.Itoa(entry.Count)})
	}

	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

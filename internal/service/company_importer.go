package service

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/sma-internship-api/internal/models"
	appErrors "github.com/noah-isme/sma-internship-api/pkg/errors"
)

// importColumn is one required spreadsheet column with its accepted headers.
type importColumn struct {
	zh  string
	en  string
	set func(c *models.Company, v string)
}

func (c importColumn) missing() string {
	return fmt.Sprintf("missing column: %s (%s)", c.zh, c.en)
}

var companyImportColumns = []importColumn{
	{zh: "公司名稱", en: "Company Name", set: func(c *models.Company, v string) { c.Name = v }},
	{zh: "公司描述", en: "Description", set: func(c *models.Company, v string) { c.Description = v }},
	{zh: "公司地點", en: "Location", set: func(c *models.Company, v string) { c.Location = v }},
	{zh: "聯絡人", en: "Contact Person", set: func(c *models.Company, v string) { c.ContactPerson = v }},
	{zh: "聯絡人職稱", en: "Contact Title", set: func(c *models.Company, v string) { c.ContactTitle = v }},
	{zh: "聯絡電子郵件", en: "Contact Email", set: func(c *models.Company, v string) { c.ContactEmail = v }},
	{zh: "聯絡電話", en: "Contact Phone", set: func(c *models.Company, v string) { c.ContactPhone = v }},
}

// CompanyImporter reads company rows from the first sheet of an XLSX upload.
type CompanyImporter struct{}

// NewCompanyImporter constructs a CompanyImporter.
func NewCompanyImporter() *CompanyImporter {
	return &CompanyImporter{}
}

// Parse returns one company per data row. Rows without a company name are
// skipped and counted.
func (i *CompanyImporter) Parse(r io.Reader) ([]models.Company, int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "company_file is not a valid xlsx workbook")
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read worksheet")
	}
	if len(rows) == 0 {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, companyImportColumns[0].missing())
	}

	index, err := headerIndex(rows[0])
	if err != nil {
		return nil, 0, err
	}

	companies := make([]models.Company, 0, len(rows)-1)
	skipped := 0
	for _, row := range rows[1:] {
		var company models.Company
		for col, def := range companyImportColumns {
			pos := index[col]
			if pos < len(row) {
				def.set(&company, strings.TrimSpace(row[pos]))
			}
		}
		if company.Name == "" {
			if !blankRow(row) {
				skipped++
			}
			continue
		}
		companies = append(companies, company)
	}
	return companies, skipped, nil
}

func headerIndex(header []string) ([]int, error) {
	positions := make(map[string]int, len(header))
	for pos, cell := range header {
		positions[strings.ToLower(strings.TrimSpace(cell))] = pos
	}
	index := make([]int, len(companyImportColumns))
	for col, def := range companyImportColumns {
		pos, ok := positions[def.zh]
		if !ok {
			pos, ok = positions[strings.ToLower(def.en)]
		}
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, def.missing())
		}
		index[col] = pos
	}
	return index, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

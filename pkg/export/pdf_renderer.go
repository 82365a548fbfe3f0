package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/noah-isme/sma-internship-api/internal/models"
)

const pdfFontFamily = "report"

var (
	pdfHeaders      = []string{"Student Name", "Number", "Class", "Rank", "Company", "Job", "Address", "Contact", "Phone", "Submitted"}
	pdfColumnWidths = []float64{25, 22, 20, 12, 38, 35, 45, 22, 25, 33}
	pdfTallyHeaders = []string{"Company", "Job", "Times Chosen"}
	pdfTallyWidths  = []float64{90, 70, 30}
)

// PDFRenderer renders the report as a landscape A4 table.
type PDFRenderer struct {
	fontPath string
}

// NewPDFRenderer constructs a PDF renderer. When fontPath names a TTF file it
// is embedded so CJK names render; otherwise the core Arial font is used.
func NewPDFRenderer(fontPath string) *PDFRenderer {
	return &PDFRenderer{fontPath: fontPath}
}

// Format implements Renderer.
func (r *PDFRenderer) Format() models.ExportFormat { return models.ExportFormatPDF }

// ContentType implements Renderer.
func (r *PDFRenderer) ContentType() string { return "application/pdf" }

// Render writes one row per student and rank followed by the company/job tally.
func (r *PDFRenderer) Render(report *models.PreferenceReport) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)

	family, tr := r.setupFont(pdf)
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("load pdf font: %w", err)
	}
	pdf.AddPage()

	pdf.SetFont(family, "B", 16)
	pdf.SetTextColor(0, 102, 204)
	pdf.CellFormat(0, 10, tr(Title(report)), "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont(family, "", 9)
	pdf.CellFormat(0, 6, tr(generatedStamp(report)), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	writeHeader := func(headers []string, widths []float64) {
		pdf.SetFont(family, "B", 9)
		pdf.SetFillColor(0, 102, 204)
		pdf.SetTextColor(255, 255, 255)
		for i, header := range headers {
			pdf.CellFormat(widths[i], 7, tr(header), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont(family, "", 8)
	}

	writeHeader(pdfHeaders, pdfColumnWidths)
	loc := reportLocation(report)
	rowIndex := 0
	for _, student := range report.Roster {
		for rank, slot := range student.Slots {
			cells := []string{student.StudentName, student.StudentNumber, report.ClassName, rankLabel(rank + 1), "", "", "", "", "", ""}
			if slot != nil {
				cells[4] = slot.Company
				cells[5] = slot.Job
				cells[6] = slot.Address
				cells[7] = slot.Contact
				cells[8] = slot.Phone
				if slot.SubmittedAt != nil {
					cells[9] = inLocation(*slot.SubmittedAt, loc).Format(longTimeLayout)
				}
			}
			fill := rowIndex%2 == 1
			pdf.SetFillColor(249, 249, 249)
			for i, cell := range cells {
				pdf.CellFormat(pdfColumnWidths[i], 6, fit(pdf, tr(cell), pdfColumnWidths[i]), "1", 0, "L", fill, 0, "")
			}
			pdf.Ln(-1)
			rowIndex++
		}
	}
	if len(report.Roster) == 0 {
		pdf.CellFormat(sum(pdfColumnWidths), 6, tr("No data to display"), "1", 1, "L", false, 0, "")
	}

	if len(report.CompanyJobTally) > 0 {
		pdf.Ln(5)
		pdf.SetFont(family, "B", 11)
		pdf.CellFormat(0, 8, tr(statisticsTitle+": company (job) times chosen"), "", 1, "L", false, 0, "")
		writeHeader(pdfTallyHeaders, pdfTallyWidths)
		for _, entry := range report.CompanyJobTally {
			cells := []string{entry.Company, entry.Job, strconv.Itoa(entry.Count)}
			for i, cell := range cells {
				pdf.CellFormat(pdfTallyWidths[i], 6, fit(pdf, tr(cell), pdfTallyWidths[i]), "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) setupFont(pdf *gofpdf.Fpdf) (string, func(string) string) {
	if r.fontPath != "" {
		pdf.AddUTF8Font(pdfFontFamily, "", r.fontPath)
		pdf.AddUTF8Font(pdfFontFamily, "B", r.fontPath)
		return pdfFontFamily, func(s string) string { return s }
	}
	return "Arial", pdf.UnicodeTranslatorFromDescriptor("")
}

func rankLabel(rank int) string {
	return fmt.Sprintf("#%d", rank)
}

// fit truncates text with an ellipsis so it stays inside a cell of width w.
func fit(pdf *gofpdf.Fpdf, text string, w float64) string {
	text = strings.ReplaceAll(text, "\n", " ")
	limit := w - 2
	if pdf.GetStringWidth(text) <= limit {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > limit {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

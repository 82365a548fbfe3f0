package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/noah-isme/sma-internship-api/internal/models"
)

const (
	reportTitleSuffix = "Student Internship Preferences"
	statisticsTitle   = "Statistics"
	cellTimeLayout    = "01/02 15:04"
	longTimeLayout    = "2006/01/02 15:04"
	stampLayout       = "2006-01-02 15:04:05"
	filenameLayout    = "20060102_150405"
)

var rosterHeaders = []string{"Student Name", "Student Number", "1st Choice", "2nd Choice", "3rd Choice", "4th Choice", "5th Choice"}

// Renderer serialises a preference report into one document format.
type Renderer interface {
	Format() models.ExportFormat
	ContentType() string
	Render(report *models.PreferenceReport) ([]byte, error)
}

// Registry resolves renderers by format.
type Registry struct {
	renderers map[models.ExportFormat]Renderer
}

// NewRegistry indexes the provided renderers by their format.
func NewRegistry(renderers ...Renderer) *Registry {
	reg := &Registry{renderers: make(map[models.ExportFormat]Renderer, len(renderers))}
	for _, r := range renderers {
		reg.renderers[r.Format()] = r
	}
	return reg
}

// DefaultRegistry returns every built-in renderer. fontPath optionally points
// at a TTF used by the PDF renderer for non-Latin text.
func DefaultRegistry(fontPath string) *Registry {
	return NewRegistry(NewXLSXRenderer(), NewDOCXRenderer(), NewPDFRenderer(fontPath), NewCSVRenderer())
}

// Get returns the renderer for format.
func (r *Registry) Get(format models.ExportFormat) (Renderer, error) {
	renderer, ok := r.renderers[format]
	if !ok {
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	return renderer, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[\\/:*?"<>|\s]+`)

// Filename builds {class}_student_preferences_{YYYYMMDD_HHMMSS}.{ext}.
func Filename(className string, format models.ExportFormat, at time.Time) string {
	name := strings.Trim(unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(className), "_"), "_.")
	if name == "" {
		name = "class"
	}
	return fmt.Sprintf("%s_student_preferences_%s.%s", name, at.Format(filenameLayout), format)
}

// Title is the heading shared by every document format.
func Title(report *models.PreferenceReport) string {
	return fmt.Sprintf("%s - %s", report.ClassName, reportTitleSuffix)
}

// CellText renders a roster slot as "company" or "company\n(MM/DD HH:MM)".
func CellText(slot *models.ReportSlot, loc *time.Location) string {
	if slot == nil {
		return ""
	}
	if slot.SubmittedAt == nil {
		return slot.Company
	}
	return fmt.Sprintf("%s\n(%s)", slot.Company, inLocation(*slot.SubmittedAt, loc).Format(cellTimeLayout))
}

func generatedStamp(report *models.PreferenceReport) string {
	return "Exported at: " + report.GeneratedAt.Format(stampLayout)
}

func inLocation(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t
	}
	return t.In(loc)
}

func reportLocation(report *models.PreferenceReport) *time.Location {
	if report.GeneratedAt.IsZero() {
		return time.UTC
	}
	return report.GeneratedAt.Location()
}

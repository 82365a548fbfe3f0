package models

import "time"

// MaxPreferences is the number of ranked slots a student can fill.
const MaxPreferences = 5

// Preference is a row of student_preferences.
type Preference struct {
	ID              string    `db:"id" json:"id"`
	StudentID       string    `db:"student_id" json:"student_id"`
	PreferenceOrder int       `db:"preference_order" json:"preference_order"`
	CompanyID       string    `db:"company_id" json:"company_id"`
	JobID           *string   `db:"job_id" json:"job_id,omitempty"`
	SubmittedAt     time.Time `db:"submitted_at" json:"submitted_at"`
}

// PreferenceEntry is one ranked choice in a submission.
type PreferenceEntry struct {
	Rank      int     `json:"rank"`
	CompanyID string  `json:"company_id"`
	JobID     *string `json:"job_id,omitempty"`
}

// PreferenceReportRow is one flat row of the class report query: a student
// joined to zero or one of their preferences. Preference columns are NULL for
// students without preferences and company columns are NULL when the
// referenced company no longer exists.
type PreferenceReportRow struct {
	StudentID       string     `db:"student_id"`
	StudentName     string     `db:"student_name"`
	StudentNumber   string     `db:"student_number"`
	PreferenceOrder *int       `db:"preference_order"`
	CompanyName     *string    `db:"company_name"`
	CompanyAddress  *string    `db:"company_address"`
	ContactPerson   *string    `db:"contact_person"`
	ContactPhone    *string    `db:"contact_phone"`
	JobTitle        *string    `db:"job_title"`
	SubmittedAt     *time.Time `db:"submitted_at"`
}

// ReportSlot is a filled preference cell in the roster.
type ReportSlot struct {
	Company     string     `json:"company"`
	Job         string     `json:"job,omitempty"`
	Address     string     `json:"address,omitempty"`
	Contact     string     `json:"contact,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
}

// RosterRow is one student's line in a class report. Slots are indexed by rank-1.
type RosterRow struct {
	StudentID     string                      `json:"student_id"`
	StudentName   string                      `json:"student_name"`
	StudentNumber string                      `json:"student_number"`
	Slots         [MaxPreferences]*ReportSlot `json:"slots"`
}

// Filled returns the number of non-empty slots.
func (r RosterRow) Filled() int {
	n := 0
	for _, slot := range r.Slots {
		if slot != nil {
			n++
		}
	}
	return n
}

// TallyEntry counts how often a company (and optionally job) was chosen.
type TallyEntry struct {
	Company string `json:"company"`
	Job     string `json:"job,omitempty"`
	Count   int    `json:"count"`
}

// PreferenceReport is the rendered-format independent class report.
type PreferenceReport struct {
	ClassID         string       `json:"class_id"`
	ClassName       string       `json:"class_name"`
	GeneratedAt     time.Time    `json:"generated_at"`
	Roster          []RosterRow  `json:"roster"`
	CompanyTally    []TallyEntry `json:"company_tally"`
	CompanyJobTally []TallyEntry `json:"company_job_tally"`
}

// PreferenceForm is what a student sees when filling preferences.
type PreferenceForm struct {
	Companies []CompanyWithJobs       `json:"companies"`
	Selected  [MaxPreferences]*string `json:"selected"`
	Jobs      [MaxPreferences]*string `json:"selected_jobs"`
}

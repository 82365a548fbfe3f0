package service

import (
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/sma-internship-api/internal/models"
)

// BuildPreferenceReport folds the flat report rows of one class into a roster
// with five rank slots per student plus company and company/job tallies.
// Rows with a missing rank, a rank outside 1..5 or a deleted company leave
// their slot empty.
func BuildPreferenceReport(class models.Class, rows []models.PreferenceReportRow, generatedAt time.Time) *models.PreferenceReport {
	index := make(map[string]int)
	roster := make([]models.RosterRow, 0)
	for _, row := range rows {
		pos, ok := index[row.StudentID]
		if !ok {
			pos = len(roster)
			index[row.StudentID] = pos
			roster = append(roster, models.RosterRow{
				StudentID:     row.StudentID,
				StudentName:   row.StudentName,
				StudentNumber: row.StudentNumber,
			})
		}
		if row.PreferenceOrder == nil || row.CompanyName == nil {
			continue
		}
		rank := *row.PreferenceOrder
		if rank < 1 || rank > models.MaxPreferences {
			continue
		}
		roster[pos].Slots[rank-1] = &models.ReportSlot{
			Company:     *row.CompanyName,
			Job:         deref(row.JobTitle),
			Address:     deref(row.CompanyAddress),
			Contact:     deref(row.ContactPerson),
			Phone:       deref(row.ContactPhone),
			SubmittedAt: row.SubmittedAt,
		}
	}

	sort.SliceStable(roster, func(i, j int) bool {
		a, b := roster[i], roster[j]
		if a.StudentName != b.StudentName {
			return a.StudentName < b.StudentName
		}
		if a.StudentNumber != b.StudentNumber {
			return a.StudentNumber < b.StudentNumber
		}
		return a.StudentID < b.StudentID
	})

	companies := newTally()
	companyJobs := newTally()
	for _, student := range roster {
		for _, slot := range student.Slots {
			if slot == nil {
				continue
			}
			companies.add(slot.Company, "")
			companyJobs.add(slot.Company, slot.Job)
		}
	}

	return &models.PreferenceReport{
		ClassID:         class.ID,
		ClassName:       class.Name,
		GeneratedAt:     generatedAt,
		Roster:          roster,
		CompanyTally:    companies.sorted(),
		CompanyJobTally: companyJobs.sorted(),
	}
}

// tally counts keys while remembering first-seen order for tie breaks.
type tally struct {
	index   map[string]int
	entries []models.TallyEntry
}

func newTally() *tally {
	return &tally{index: make(map[string]int)}
}

func (t *tally) add(company, job string) {
	key := company + "\x00" + job
	if pos, ok := t.index[key]; ok {
		t.entries[pos].Count++
		return
	}
	t.index[key] = len(t.entries)
	t.entries = append(t.entries, models.TallyEntry{Company: company, Job: job, Count: 1})
}

func (t *tally) sorted() []models.TallyEntry {
	out := make([]models.TallyEntry, len(t.entries))
	copy(out, t.entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

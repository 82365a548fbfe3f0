package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-internship-api/internal/models"
	"github.com/noah-isme/sma-internship-api/pkg/database"
)

// PreferenceRepository persists student preference sets.
type PreferenceRepository struct {
	db *sqlx.DB
}

// NewPreferenceRepository constructs a PreferenceRepository.
func NewPreferenceRepository(db *sqlx.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// ListByStudent returns the student's preferences ordered by rank.
func (r *PreferenceRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Preference, error) {
	const query = `SELECT id, student_id, preference_order, company_id, job_id, submitted_at
FROM student_preferences WHERE student_id = $1 ORDER BY preference_order ASC`
	var prefs []models.Preference
	if err := r.db.SelectContext(ctx, &prefs, query, studentID); err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	return prefs, nil
}

// Replace swaps the student's whole preference set in one transaction.
// An empty set clears the student's preferences.
func (r *PreferenceRepository) Replace(ctx context.Context, studentID string, prefs []models.Preference) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM student_preferences WHERE student_id = $1`, studentID); err != nil {
			return fmt.Errorf("delete preferences: %w", err)
		}
		if len(prefs) == 0 {
			return nil
		}
		const insert = `INSERT INTO student_preferences (id, student_id, preference_order, company_id, job_id, submitted_at)
VALUES (:id, :student_id, :preference_order, :company_id, :job_id, :submitted_at)`
		if _, err := tx.NamedExecContext(ctx, insert, prefs); err != nil {
			return fmt.Errorf("insert preferences: %w", err)
		}
		return nil
	})
}

// ReportRows returns one row per student of the class and preference. Students
// without preferences yield a single row with NULL preference columns; a
// preference whose company was deleted yields NULL company columns.
func (r *PreferenceRepository) ReportRows(ctx context.Context, classID string) ([]models.PreferenceReportRow, error) {
	const query = `
SELECT
	u.id AS student_id,
	u.name AS student_name,
	u.username AS student_number,
	sp.preference_order,
	ic.company_name,
	ic.location AS company_address,
	ic.contact_person,
	COALESCE(NULLIF(ic.contact_phone, ''), ic.contact_email) AS contact_phone,
	ij.title AS job_title,
	sp.submitted_at
FROM users u
LEFT JOIN student_preferences sp ON sp.student_id = u.id
LEFT JOIN internship_companies ic ON ic.id = sp.company_id
LEFT JOIN internship_jobs ij ON ij.id = sp.job_id
WHERE u.class_id = $1 AND u.role = $2
ORDER BY u.name ASC, sp.preference_order ASC`
	var rows []models.PreferenceReportRow
	if err := r.db.SelectContext(ctx, &rows, query, classID, models.RoleStudent); err != nil {
		return nil, fmt.Errorf("list preference report rows: %w", err)
	}
	return rows, nil
}

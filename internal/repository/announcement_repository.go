package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-internship-api/internal/models"
	"github.com/noah-isme/sma-internship-api/pkg/database"
)

const announcementColumns = `id, title, content, start_time, end_time, is_published, created_by, created_at, updated_at`

// AnnouncementRepository provides persistence for announcements.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository creates the repository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// ListActive returns published announcements whose window contains now.
func (r *AnnouncementRepository) ListActive(ctx context.Context, now time.Time) ([]models.Announcement, error) {
	query := `SELECT ` + announcementColumns + `
FROM announcement
WHERE is_published = TRUE
	AND (start_time IS NULL OR start_time <= $1)
	AND (end_time IS NULL OR end_time >= $1)
ORDER BY created_at DESC`
	var items []models.Announcement
	if err := r.db.SelectContext(ctx, &items, query, now); err != nil {
		return nil, fmt.Errorf("list active announcements: %w", err)
	}
	return items, nil
}

// List returns a page of all announcements for management.
func (r *AnnouncementRepository) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s
FROM announcement
ORDER BY created_at DESC
LIMIT %d OFFSET %d`, announcementColumns, size, offset)
	var items []models.Announcement
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, 0, fmt.Errorf("list announcements: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM announcement"); err != nil {
		return nil, 0, fmt.Errorf("count announcements: %w", err)
	}
	return items, total, nil
}

// GetByID returns an announcement by identifier.
func (r *AnnouncementRepository) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	query := `SELECT ` + announcementColumns + ` FROM announcement WHERE id = $1`
	var announcement models.Announcement
	if err := r.db.GetContext(ctx, &announcement, query, id); err != nil {
		return nil, err
	}
	return &announcement, nil
}

// Create inserts an announcement. When it is published and buildNotice is
// set, every user receives a notification in the same transaction. Returns
// the number of notifications written.
func (r *AnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement, buildNotice func(*models.Announcement) models.BroadcastNotice) (int64, error) {
	if announcement.ID == "" {
		announcement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if announcement.CreatedAt.IsZero() {
		announcement.CreatedAt = now
	}
	announcement.UpdatedAt = now

	const query = `INSERT INTO announcement (id, title, content, start_time, end_time, is_published, created_by, created_at, updated_at)
VALUES (:id, :title, :content, :start_time, :end_time, :is_published, :created_by, :created_at, :updated_at)`
	var sent int64
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, query, announcement); err != nil {
			return fmt.Errorf("create announcement: %w", err)
		}
		var err error
		sent, err = r.fanOut(ctx, tx, announcement, buildNotice)
		return err
	})
	if err != nil {
		return 0, err
	}
	return sent, nil
}

// Update modifies an announcement, fanning out like Create when published.
// Returns sql.ErrNoRows when the id is unknown.
func (r *AnnouncementRepository) Update(ctx context.Context, announcement *models.Announcement, buildNotice func(*models.Announcement) models.BroadcastNotice) (int64, error) {
	announcement.UpdatedAt = time.Now().UTC()
	const query = `UPDATE announcement SET title = :title, content = :content, start_time = :start_time, end_time = :end_time,
is_published = :is_published, updated_at = :updated_at
WHERE id = :id`
	var sent int64
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, query, announcement)
		if err != nil {
			return fmt.Errorf("update announcement: %w", err)
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		sent, err = r.fanOut(ctx, tx, announcement, buildNotice)
		return err
	})
	if err != nil {
		return 0, err
	}
	return sent, nil
}

// fanOut writes one notification per user with a single INSERT ... SELECT.
func (r *AnnouncementRepository) fanOut(ctx context.Context, tx *sqlx.Tx, announcement *models.Announcement, buildNotice func(*models.Announcement) models.BroadcastNotice) (int64, error) {
	if !announcement.IsPublished || buildNotice == nil {
		return 0, nil
	}
	notice := buildNotice(announcement)
	const query = `INSERT INTO notifications (id, user_id, title, message, link_url, is_read, created_at)
SELECT gen_random_uuid(), u.id, $1, $2, $3, FALSE, $4 FROM users u`
	res, err := tx.ExecContext(ctx, query, notice.Title, notice.Message, notice.LinkURL, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("broadcast announcement: %w", err)
	}
	sent, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("broadcast rows affected: %w", err)
	}
	return sent, nil
}

// Delete removes an announcement. Returns sql.ErrNoRows when absent.
func (r *AnnouncementRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM announcement WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	return requireAffected(res)
}

// pqStringArray helper ensures we pass string arrays consistently.
func pqStringArray(values []string) interface{} {
	return pq.Array(values)
}

package models

import "time"

// Announcement represents a persisted announcement row. Nil bounds leave the
// visibility window open on that side.
type Announcement struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Content     string     `db:"content" json:"content"`
	StartTime   *time.Time `db:"start_time" json:"start_time,omitempty"`
	EndTime     *time.Time `db:"end_time" json:"end_time,omitempty"`
	IsPublished bool       `db:"is_published" json:"is_published"`
	CreatedBy   string     `db:"created_by" json:"created_by"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	LinkURL     string     `db:"-" json:"link_url,omitempty"`
}

// ActiveAt reports whether the announcement is visible at t.
func (a Announcement) ActiveAt(t time.Time) bool {
	if !a.IsPublished {
		return false
	}
	if a.StartTime != nil && t.Before(*a.StartTime) {
		return false
	}
	if a.EndTime != nil && t.After(*a.EndTime) {
		return false
	}
	return true
}

// AnnouncementFilter pages the management listing.
type AnnouncementFilter struct {
	Page     int
	PageSize int
}

// BroadcastNotice is the notification fanned out to every user.
type BroadcastNotice struct {
	Title   string
	Message string
	LinkURL string
}

package dto

import "time"

// AnnouncementRequest captures create and update payloads.
type AnnouncementRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Content     string     `json:"content" validate:"required"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	IsPublished bool       `json:"is_published"`
}

// AnnouncementListQuery pages the management listing.
type AnnouncementListQuery struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

// AnnouncementSaveResult carries the fan-out size alongside the record.
type AnnouncementSaveResult struct {
	ID                string `json:"id"`
	NotificationsSent int64  `json:"notifications_sent"`
}

package dto

import (
	"time"

	"github.com/noah-isme/sma-internship-api/internal/models"
)

// ExportRequest captures POST /preferences/exports payload.
type ExportRequest struct {
	ClassID *string             `json:"classId,omitempty"`
	Format  models.ExportFormat `json:"format" validate:"required"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID         string              `json:"id"`
	ClassID    string              `json:"classId"`
	Format     models.ExportFormat `json:"format"`
	Status     models.ExportStatus `json:"status"`
	Progress   int                 `json:"progress"`
	ResultURL  *string             `json:"resultUrl,omitempty"`
	FinishedAt *time.Time          `json:"finishedAt,omitempty"`
	Error      *string             `json:"error,omitempty"`
}

package dto

import "github.com/noah-isme/sma-internship-api/internal/models"

// SubmitPreferencesRequest captures PUT /preferences/me.
type SubmitPreferencesRequest struct {
	Preferences []models.PreferenceEntry `json:"preferences"`
}

// PreferenceSubmitResponse echoes the stored preference set.
type PreferenceSubmitResponse struct {
	Message     string              `json:"message"`
	Preferences []models.Preference `json:"preferences"`
}

// ClassReportQuery selects the class for report endpoints.
type ClassReportQuery struct {
	ClassID string              `form:"classId"`
	Format  models.ExportFormat `form:"format"`
}

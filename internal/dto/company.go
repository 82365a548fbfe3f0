package dto

import "github.com/noah-isme/sma-internship-api/internal/models"

// CompanyJobInput describes one job submitted with a company.
type CompanyJobInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Department  string `json:"department"`
	Period      string `json:"period"`
	WorkTime    string `json:"work_time"`
	Slots       int    `json:"slots" validate:"gte=0"`
	Remark      string `json:"remark"`
}

// CreateCompanyRequest captures the manual company form.
type CreateCompanyRequest struct {
	Name          string            `json:"company_name" form:"company_name" validate:"required"`
	Description   string            `json:"description" form:"description"`
	Location      string            `json:"location" form:"location"`
	ContactPerson string            `json:"contact_person" form:"contact_person"`
	ContactTitle  string            `json:"contact_title" form:"contact_title"`
	ContactEmail  string            `json:"contact_email" form:"contact_email" validate:"omitempty,email"`
	ContactPhone  string            `json:"contact_phone" form:"contact_phone"`
	Jobs          []CompanyJobInput `json:"internship_jobs" validate:"dive"`
}

// BulkCreateCompaniesRequest captures POST /companies/bulk. Entries are kept
// loosely typed because several field aliases are accepted.
type BulkCreateCompaniesRequest struct {
	Companies []map[string]interface{} `json:"companies"`
}

// CompanyImportResult reports how many rows were stored.
type CompanyImportResult struct {
	Companies int `json:"companies"`
	Jobs      int `json:"jobs"`
	Skipped   int `json:"skipped"`
}

// ReviewCompanyRequest captures POST /companies/:id/review.
type ReviewCompanyRequest struct {
	Status models.CompanyStatus `json:"status" validate:"required,oneof=approved rejected"`
	Reason string               `json:"reason"`
}

// ReviewCompanyResponse echoes the applied decision.
type ReviewCompanyResponse struct {
	ID     string               `json:"id"`
	Status models.CompanyStatus `json:"status"`
	Reason *string              `json:"reason,omitempty"`
}

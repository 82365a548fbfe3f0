package models

import "time"

// CompanyStatus is the review state of an internship company.
type CompanyStatus string

const (
	CompanyStatusPending  CompanyStatus = "pending"
	CompanyStatusApproved CompanyStatus = "approved"
	CompanyStatusRejected CompanyStatus = "rejected"
)

// Label returns the display label used in downloads.
func (s CompanyStatus) Label() string {
	switch s {
	case CompanyStatusPending:
		return "Pending review"
	case CompanyStatusApproved:
		return "Approved"
	case CompanyStatusRejected:
		return "Rejected"
	}
	return string(s)
}

// Company is a row of internship_companies.
type Company struct {
	ID               string        `db:"id" json:"id"`
	Name             string        `db:"company_name" json:"company_name"`
	Description      string        `db:"description" json:"description"`
	Location         string        `db:"location" json:"location"`
	ContactPerson    string        `db:"contact_person" json:"contact_person"`
	ContactTitle     string        `db:"contact_title" json:"contact_title"`
	ContactEmail     string        `db:"contact_email" json:"contact_email"`
	ContactPhone     string        `db:"contact_phone" json:"contact_phone"`
	UploadedByUserID string        `db:"uploaded_by_user_id" json:"uploaded_by_user_id"`
	UploadedByRole   UserRole      `db:"uploaded_by_role" json:"uploaded_by_role"`
	Status           CompanyStatus `db:"status" json:"status"`
	RejectReason     *string       `db:"reject_reason" json:"reject_reason,omitempty"`
	SubmittedAt      time.Time     `db:"submitted_at" json:"submitted_at"`
	ReviewedAt       *time.Time    `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewedBy       *string       `db:"reviewed_by" json:"reviewed_by,omitempty"`
	UploaderName     *string       `db:"uploader_name" json:"uploader_name,omitempty"`
	ReviewerName     *string       `db:"reviewer_name" json:"reviewer_name,omitempty"`
}

// InternshipJob is a row of internship_jobs.
type InternshipJob struct {
	ID          string `db:"id" json:"id"`
	CompanyID   string `db:"company_id" json:"company_id"`
	Title       string `db:"title" json:"title"`
	Description string `db:"description" json:"description"`
	Department  string `db:"department" json:"department"`
	Period      string `db:"period" json:"period"`
	WorkTime    string `db:"work_time" json:"work_time"`
	Slots       int    `db:"slots" json:"slots"`
	Remark      string `db:"remark" json:"remark"`
}

// CompanyWithJobs bundles a company with its jobs.
type CompanyWithJobs struct {
	Company
	Jobs []InternshipJob `json:"jobs"`
}

// CompanySummary is the uploader's view of a submission, with the first job
// flattened for list rendering.
type CompanySummary struct {
	CompanyWithJobs
	JobTitle      string `json:"internship_unit"`
	JobDepartment string `json:"department"`
	JobPeriod     string `json:"internship_period"`
	JobWorkTime   string `json:"internship_time"`
	JobSlots      int    `json:"internship_quota"`
}

// CompanyReviewStatus is the lightweight status view of a company.
type CompanyReviewStatus struct {
	ID           string        `db:"id" json:"id"`
	Name         string        `db:"company_name" json:"company_name"`
	Status       CompanyStatus `db:"status" json:"status"`
	RejectReason *string       `db:"reject_reason" json:"reject_reason,omitempty"`
	ReviewedAt   *time.Time    `db:"reviewed_at" json:"reviewed_at,omitempty"`
}

// ReviewDecision is the outcome applied by a reviewer.
type ReviewDecision struct {
	Status     CompanyStatus
	Reason     *string
	ReviewerID string
	ReviewedAt time.Time
}

package dto

// ResumeRejectionRequest captures POST /notifications/resume-rejections.
type ResumeRejectionRequest struct {
	StudentID   string `json:"student_id" validate:"required"`
	TeacherName string `json:"teacher_name"`
	Reason      string `json:"reason" validate:"required"`
}

// MarkAllReadResponse reports how many notifications changed.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

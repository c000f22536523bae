package models

// PromotionDirective is one student's next-year placement inside a bulk
// promotion batch. Grade is caller-supplied and not constrained here.
type PromotionDirective struct {
	StudentID        string `json:"student_id" validate:"required"`
	Grade            int    `json:"grade" validate:"required,gt=0"`
	ClassLabel       string `json:"class_label" validate:"required"`
	AttendanceNumber int    `json:"attendance_number" validate:"required,gt=0"`
}

// PromotionPlanEntry is one row of the editable promotion draft: the current
// placement next to the proposed one. The draft is a pure value, the server
// keeps no state between plan and submission.
type PromotionPlanEntry struct {
	StudentID     string `json:"student_id"`
	SNumber       string `json:"s_number"`
	LegalName     string `json:"legal_name"`
	CurrentGrade  int    `json:"current_grade"`
	CurrentClass  string `json:"current_class"`
	CurrentNumber int    `json:"current_number"`
	NextGrade     int    `json:"next_grade"`
	NextClass     string `json:"next_class"`
	NextNumber    int    `json:"next_number"`
	IsRetained    bool   `json:"is_retained"`
}

// PromotionOverride edits one plan entry before submission.
type PromotionOverride struct {
	StudentID  string  `json:"student_id"`
	IsRetained *bool   `json:"is_retained,omitempty"`
	NextClass  *string `json:"next_class,omitempty"`
	NextNumber *int    `json:"next_number,omitempty"`
}

// CurrentPlacement pairs a student with their latest enrollment record,
// as read by the promotion planner.
type CurrentPlacement struct {
	StudentID        string `db:"student_id" json:"student_id"`
	SNumber          string `db:"s_number" json:"s_number"`
	LegalName        string `db:"legal_name" json:"legal_name"`
	FiscalYear       int    `db:"fiscal_year" json:"fiscal_year"`
	Grade            int    `db:"grade" json:"grade"`
	ClassLabel       string `db:"class_label" json:"class_label"`
	AttendanceNumber int    `db:"attendance_number" json:"attendance_number"`
}

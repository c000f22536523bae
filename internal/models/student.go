package models

import "time"

// Student is the identity root of the register. SNumber is the school's
// registration number; it is assigned once at intake and never reassigned.
// Name and address fields are mutated only through the field-update engine so
// every change leaves a FieldHistoryEntry behind.
type Student struct {
	ID           string    `db:"id" json:"id"`
	SNumber      string    `db:"s_number" json:"s_number"`
	LegalName    string    `db:"legal_name" json:"legal_name"`
	AliasName    *string   `db:"alias_name" json:"alias_name,omitempty"`
	UseAliasFlag bool      `db:"use_alias_flag" json:"use_alias_flag"`
	BirthDate    time.Time `db:"birth_date" json:"birth_date"`
	Gender       string    `db:"gender" json:"gender"`
	Address      string    `db:"address" json:"address"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayName applies the alias-over-legal display rule.
func (s Student) DisplayName() string {
	if s.UseAliasFlag && s.AliasName != nil && *s.AliasName != "" {
		return *s.AliasName
	}
	return s.LegalName
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentSummary is a directory row: the student plus the placement for the
// current fiscal year and the open status interval, when present.
type StudentSummary struct {
	Student
	CurrentFiscalYear *int    `db:"current_fiscal_year" json:"current_fiscal_year,omitempty"`
	CurrentGrade      *int    `db:"current_grade" json:"current_grade,omitempty"`
	CurrentClass      *string `db:"current_class" json:"current_class,omitempty"`
	CurrentNumber     *int    `db:"current_number" json:"current_number,omitempty"`
	CurrentStatus     *string `db:"current_status" json:"current_status,omitempty"`
}

// StudentRecord is the full temporal view of one student, all logs newest first.
type StudentRecord struct {
	Student
	Enrollments     []EnrollmentRecord  `json:"enrollments"`
	FieldHistory    []FieldHistoryEntry `json:"field_history"`
	StatusIntervals []StatusInterval    `json:"status_intervals"`
}

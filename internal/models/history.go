package models

import (
	"fmt"
	"strconv"
	"time"
)

// FieldHistoryEntry is one entry in the append-only field-change log.
// Old and new values are stored as text whatever the field's native type;
// the field schema below recovers typing on read. Applied tracks whether the
// change has reached the live student attribute: immediate for effective
// dates in the past, deferred to the activation sweep for future dates.
type FieldHistoryEntry struct {
	ID            string     `db:"id" json:"id"`
	StudentID     string     `db:"student_id" json:"student_id"`
	FieldName     string     `db:"field_name" json:"field_name"`
	OldValue      string     `db:"old_value" json:"old_value"`
	NewValue      string     `db:"new_value" json:"new_value"`
	EffectiveDate time.Time  `db:"effective_date" json:"effective_date"`
	Reason        string     `db:"reason" json:"reason"`
	Applied       bool       `db:"applied" json:"applied"`
	AppliedAt     *time.Time `db:"applied_at" json:"applied_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// FieldKind tags the native type of a tracked field.
type FieldKind string

const (
	FieldKindText    FieldKind = "text"
	FieldKindNumber  FieldKind = "number"
	FieldKindBoolean FieldKind = "boolean"
	FieldKindDate    FieldKind = "date"
)

// FieldDef describes one student attribute the field-update engine may touch.
type FieldDef struct {
	Kind   FieldKind
	Column string
}

// fieldSchema whitelists the mutable student attributes. The column names
// double as the only identifiers ever interpolated into UPDATE statements.
var fieldSchema = map[string]FieldDef{
	"legal_name":     {Kind: FieldKindText, Column: "legal_name"},
	"alias_name":     {Kind: FieldKindText, Column: "alias_name"},
	"use_alias_flag": {Kind: FieldKindBoolean, Column: "use_alias_flag"},
	"address":        {Kind: FieldKindText, Column: "address"},
	"gender":         {Kind: FieldKindText, Column: "gender"},
	"birth_date":     {Kind: FieldKindDate, Column: "birth_date"},
}

const fieldDateLayout = "2006-01-02"

// LookupField returns the schema entry for a field name.
func LookupField(name string) (FieldDef, bool) {
	def, ok := fieldSchema[name]
	return def, ok
}

// ValidateFieldValue checks that raw parses as the field's native kind.
func ValidateFieldValue(name, raw string) error {
	def, ok := fieldSchema[name]
	if !ok {
		return fmt.Errorf("unknown field %q", name)
	}
	switch def.Kind {
	case FieldKindNumber:
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return fmt.Errorf("field %s expects a number: %w", name, err)
		}
	case FieldKindBoolean:
		if _, err := strconv.ParseBool(raw); err != nil {
			return fmt.Errorf("field %s expects a boolean: %w", name, err)
		}
	case FieldKindDate:
		if _, err := time.Parse(fieldDateLayout, raw); err != nil {
			return fmt.Errorf("field %s expects a %s date: %w", name, fieldDateLayout, err)
		}
	}
	return nil
}

// DecodeFieldValue converts a stored text value back to its native type.
func DecodeFieldValue(name, raw string) (interface{}, error) {
	def, ok := fieldSchema[name]
	if !ok {
		return nil, fmt.Errorf("unknown field %q", name)
	}
	switch def.Kind {
	case FieldKindNumber:
		return strconv.ParseFloat(raw, 64)
	case FieldKindBoolean:
		return strconv.ParseBool(raw)
	case FieldKindDate:
		return time.Parse(fieldDateLayout, raw)
	default:
		return raw, nil
	}
}

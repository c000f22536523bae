package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gakuseki-api/internal/models"
	appErrors "github.com/noah-isme/gakuseki-api/pkg/errors"
)

// StudentRepository manages persistence for student identity records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns directory rows matching the provided filters, each annotated
// with the placement for the given fiscal year and the open status interval.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter, fiscalYear int) ([]models.StudentSummary, int, error) {
	base := `FROM students s
LEFT JOIN enrollment_records e ON e.student_id = s.id AND e.fiscal_year = $1
LEFT JOIN status_intervals si ON si.student_id = s.id AND si.end_date IS NULL`
	args := []interface{}{fiscalYear}
	conditions := []string{"1=1"}

	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(s.legal_name) LIKE $%d OR LOWER(COALESCE(s.alias_name, '')) LIKE $%d OR LOWER(s.s_number) LIKE $%d)", idx, idx, idx))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"s_number":   "s.s_number",
		"legal_name": "s.legal_name",
		"created_at": "s.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "s.s_number"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.s_number, s.legal_name, s.alias_name, s.use_alias_flag, s.birth_date, s.gender, s.address, s.created_at, s.updated_at,
        e.fiscal_year AS current_fiscal_year, e.grade AS current_grade, e.class_label AS current_class, e.attendance_number AS current_number,
        si.status AS current_status
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var students []models.StudentSummary
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(DISTINCT s.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, s_number, legal_name, alias_name, use_alias_flag, birth_date, gender, address, created_at, updated_at
        FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsBySNumber checks whether a registration number is already taken.
func (r *StudentRepository) ExistsBySNumber(ctx context.Context, sNumber string) (bool, error) {
	const query = `SELECT 1 FROM students WHERE s_number = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, sNumber); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check s_number: %w", err)
	}
	return true, nil
}

// CreateWithInitialRecords inserts the student together with the first-year
// enrollment record and the initial open status interval, all or nothing.
func (r *StudentRepository) CreateWithInitialRecords(ctx context.Context, student *models.Student, enrollment *models.EnrollmentRecord, interval *models.StatusInterval) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create student: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	student.CreatedAt = now
	student.UpdatedAt = now

	const insertStudent = `INSERT INTO students (id, s_number, legal_name, alias_name, use_alias_flag, birth_date, gender, address, created_at, updated_at)
        VALUES (:id, :s_number, :legal_name, :alias_name, :use_alias_flag, :birth_date, :gender, :address, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, tx, insertStudent, student); err != nil {
		if isUniqueViolation(err) {
			err = appErrors.Wrap(err, appErrors.ErrDuplicateKey.Code, appErrors.ErrDuplicateKey.Status, "registration number already used")
			return err
		}
		return fmt.Errorf("insert student: %w", err)
	}

	enrollment.ID = uuid.NewString()
	enrollment.StudentID = student.ID
	enrollment.CreatedAt = now
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	const insertEnrollment = `INSERT INTO enrollment_records (id, student_id, fiscal_year, grade, class_label, attendance_number, status, created_at)
        VALUES (:id, :student_id, :fiscal_year, :grade, :class_label, :attendance_number, :status, :created_at)`
	if _, err = sqlx.NamedExecContext(ctx, tx, insertEnrollment, enrollment); err != nil {
		return fmt.Errorf("insert initial enrollment: %w", err)
	}

	interval.ID = uuid.NewString()
	interval.StudentID = student.ID
	interval.CreatedAt = now
	const insertInterval = `INSERT INTO status_intervals (id, student_id, status, start_date, end_date, created_at)
        VALUES (:id, :student_id, :status, :start_date, :end_date, :created_at)`
	if _, err = sqlx.NamedExecContext(ctx, tx, insertInterval, interval); err != nil {
		return fmt.Errorf("insert initial status interval: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create student: %w", err)
	}
	return nil
}

// Delete removes a student and all owned temporal records in one transaction.
func (r *StudentRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete student: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"field_history", "status_intervals", "enrollment_records"} {
		if _, err = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE student_id = $1", table), id); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete student result: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete student: %w", err)
	}
	return nil
}

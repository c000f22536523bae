package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gakuseki-api/internal/models"
	appErrors "github.com/noah-isme/gakuseki-api/pkg/errors"
)

func newStudentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func studentSummaryColumns() []string {
	return []string{"id", "s_number", "legal_name", "alias_name", "use_alias_flag", "birth_date", "gender", "address", "created_at", "updated_at",
		"current_fiscal_year", "current_grade", "current_class", "current_number", "current_status"}
}

func TestStudentRepositoryListWithSearch(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(studentSummaryColumns()).
		AddRow("stu-1", "S-001", "Sato Hanako", nil, false, now.AddDate(-15, 0, 0), "F", "Nagoya", now, now,
			2025, 1, "A", 3, "ACTIVE")
	mock.ExpectQuery(regexp.QuoteMeta("LOWER(s.legal_name) LIKE $2")).
		WithArgs(2025, "%sato%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT s.id)")).
		WithArgs(2025, "%sato%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{Search: "Sato"}, 2025)
	require.NoError(t, err)
	require.Len(t, students, 1)
	require.Equal(t, 1, total)
	require.NotNil(t, students[0].CurrentGrade)
	require.Equal(t, 1, *students[0].CurrentGrade)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateWithInitialRecords(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollment_records")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO status_intervals")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	student := &models.Student{SNumber: "S-010", LegalName: "Suzuki Taro", BirthDate: time.Now().AddDate(-15, 0, 0)}
	enrollment := &models.EnrollmentRecord{FiscalYear: 2025, Grade: 1, ClassLabel: "A", AttendanceNumber: 7}
	interval := &models.StatusInterval{Status: models.StatusActive, StartDate: time.Now()}

	err := repo.CreateWithInitialRecords(context.Background(), student, enrollment, interval)
	require.NoError(t, err)
	require.NotEmpty(t, student.ID)
	require.Equal(t, student.ID, enrollment.StudentID)
	require.Equal(t, student.ID, interval.StudentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateDuplicateSNumber(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.CreateWithInitialRecords(context.Background(),
		&models.Student{SNumber: "S-010", LegalName: "Suzuki Taro"},
		&models.EnrollmentRecord{FiscalYear: 2025, Grade: 1, ClassLabel: "A", AttendanceNumber: 7},
		&models.StatusInterval{Status: models.StatusActive, StartDate: time.Now()})
	require.Error(t, err)
	require.True(t, errors.Is(err, appErrors.ErrDuplicateKey))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDeleteCascadesOwnedRecords(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM field_history WHERE student_id = $1")).
		WithArgs("stu-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM status_intervals WHERE student_id = $1")).
		WithArgs("stu-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollment_records WHERE student_id = $1")).
		WithArgs("stu-1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM students WHERE id = $1")).
		WithArgs("stu-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), "stu-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM field_history WHERE student_id = $1")).
		WithArgs("ghost").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM status_intervals WHERE student_id = $1")).
		WithArgs("ghost").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollment_records WHERE student_id = $1")).
		WithArgs("ghost").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM students WHERE id = $1")).
		WithArgs("ghost").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "ghost")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryExistsBySNumber(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students WHERE s_number = $1")).
		WithArgs("S-001").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students WHERE s_number = $1")).
		WithArgs("S-999").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	taken, err := repo.ExistsBySNumber(context.Background(), "S-001")
	require.NoError(t, err)
	require.True(t, taken)

	free, err := repo.ExistsBySNumber(context.Background(), "S-999")
	require.NoError(t, err)
	require.False(t, free)
	require.NoError(t, mock.ExpectationsWereMet())
}

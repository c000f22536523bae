package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/gakuseki-api/internal/models"
	appErrors "github.com/noah-isme/gakuseki-api/pkg/errors"
)

type mockStudentRepo struct {
	students    map[string]*models.Student
	taken       map[string]bool
	listResult  []models.StudentSummary
	listTotal   int
	created     []models.Student
	deleted     []string
	deleteErr   error
	enrollments []models.EnrollmentRecord
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter, fiscalYear int) ([]models.StudentSummary, int, error) {
	return m.listResult, m.listTotal, nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if student, ok := m.students[id]; ok {
		cp := *student
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsBySNumber(ctx context.Context, sNumber string) (bool, error) {
	return m.taken[sNumber], nil
}

func (m *mockStudentRepo) CreateWithInitialRecords(ctx context.Context, student *models.Student, enrollment *models.EnrollmentRecord, interval *models.StatusInterval) error {
	if student.ID == "" {
		student.ID = "generated"
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	enrollment.StudentID = student.ID
	interval.StudentID = student.ID
	m.created = append(m.created, *student)
	m.enrollments = append(m.enrollments, *enrollment)
	return nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type mockEnrollmentReader struct {
	records    []models.EnrollmentRecord
	placements []models.CurrentPlacement
}

func (m *mockEnrollmentReader) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentRecord, error) {
	return m.records, nil
}

func (m *mockEnrollmentReader) ListCurrentPlacements(ctx context.Context) ([]models.CurrentPlacement, error) {
	return m.placements, nil
}

type mockHistoryReader struct {
	entries []models.FieldHistoryEntry
}

func (m *mockHistoryReader) ListByStudent(ctx context.Context, studentID string) ([]models.FieldHistoryEntry, error) {
	return m.entries, nil
}

type mockStatusReader struct {
	intervals []models.StatusInterval
}

func (m *mockStatusReader) ListByStudent(ctx context.Context, studentID string) ([]models.StatusInterval, error) {
	return m.intervals, nil
}

func newStudentService(repo *mockStudentRepo, enrollments *mockEnrollmentReader) *StudentService {
	return NewStudentService(repo, enrollments, &mockHistoryReader{}, &mockStatusReader{},
		disabledCache(), validator.New(), zap.NewNop(), time.April)
}

func TestStudentServiceCreate(t *testing.T) {
	repo := &mockStudentRepo{taken: map[string]bool{}}
	svc := newStudentService(repo, &mockEnrollmentReader{})

	record, err := svc.Create(context.Background(), CreateStudentRequest{
		SNumber:          "S-100",
		LegalName:        "Sato Hanako",
		BirthDate:        time.Date(2010, 6, 1, 0, 0, 0, 0, time.UTC),
		Gender:           "F",
		Grade:            1,
		ClassLabel:       "A",
		AttendanceNumber: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "S-100", record.SNumber)
	require.Len(t, record.Enrollments, 1)
	assert.Equal(t, svc.CurrentFiscalYear(), record.Enrollments[0].FiscalYear)
	assert.Equal(t, models.EnrollmentStatusActive, record.Enrollments[0].Status)
	require.Len(t, record.StatusIntervals, 1)
	assert.Equal(t, models.StatusActive, record.StatusIntervals[0].Status)
	assert.Nil(t, record.StatusIntervals[0].EndDate)
	require.Len(t, repo.created, 1)
}

func TestStudentServiceCreateDuplicateSNumber(t *testing.T) {
	repo := &mockStudentRepo{taken: map[string]bool{"S-100": true}}
	svc := newStudentService(repo, &mockEnrollmentReader{})

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		SNumber:          "S-100",
		LegalName:        "Sato Hanako",
		BirthDate:        time.Date(2010, 6, 1, 0, 0, 0, 0, time.UTC),
		Gender:           "F",
		Grade:            1,
		ClassLabel:       "A",
		AttendanceNumber: 3,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrDuplicateKey))
	assert.Empty(t, repo.created)
}

func TestStudentServiceGetAssemblesTemporalRecord(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", SNumber: "S-001", LegalName: "Sato Hanako"},
	}}
	enrollments := &mockEnrollmentReader{records: []models.EnrollmentRecord{
		{ID: "enr-2", FiscalYear: 2025, Grade: 2},
		{ID: "enr-1", FiscalYear: 2024, Grade: 1},
	}}
	svc := NewStudentService(repo, enrollments,
		&mockHistoryReader{entries: []models.FieldHistoryEntry{{ID: "fh-1", FieldName: "address"}}},
		&mockStatusReader{intervals: []models.StatusInterval{{ID: "si-1", Status: models.StatusActive}}},
		disabledCache(), validator.New(), zap.NewNop(), time.April)

	record, err := svc.Get(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "S-001", record.SNumber)
	assert.Len(t, record.Enrollments, 2)
	assert.Len(t, record.FieldHistory, 1)
	assert.Len(t, record.StatusIntervals, 1)
}

func TestStudentServiceGetNotFound(t *testing.T) {
	svc := newStudentService(&mockStudentRepo{}, &mockEnrollmentReader{})

	_, err := svc.Get(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestStudentServiceDeleteNotFound(t *testing.T) {
	repo := &mockStudentRepo{deleteErr: sql.ErrNoRows}
	svc := newStudentService(repo, &mockEnrollmentReader{})

	err := svc.Delete(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestStudentServiceExportCSV(t *testing.T) {
	enrollments := &mockEnrollmentReader{placements: []models.CurrentPlacement{
		{StudentID: "stu-1", SNumber: "S-001", LegalName: "Sato Hanako", FiscalYear: 2025, Grade: 1, ClassLabel: "A", AttendanceNumber: 3},
	}}
	svc := newStudentService(&mockStudentRepo{}, enrollments)

	payload, contentType, filename, err := svc.Export(context.Background(), "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, filename, ".csv")
	assert.True(t, bytes.HasPrefix(payload, []byte{0xEF, 0xBB, 0xBF}))
	assert.Contains(t, string(payload), "Sato Hanako")
}

func TestStudentServiceExportRejectsUnknownFormat(t *testing.T) {
	svc := newStudentService(&mockStudentRepo{}, &mockEnrollmentReader{})

	_, _, _, err := svc.Export(context.Background(), "xlsx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

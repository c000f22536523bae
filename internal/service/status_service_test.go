package service

import (
	"context"
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

type openedInterval struct {
	studentID string
	status    models.StudentStatus
	startDate time.Time
}

type mockStatusRepo struct {
	open   []models.StatusInterval
	opened []openedInterval
}

func (m *mockStatusRepo) FindOpen(ctx context.Context, studentID string) ([]models.StatusInterval, error) {
	return m.open, nil
}

func (m *mockStatusRepo) OpenInterval(ctx context.Context, studentID string, status models.StudentStatus, startDate time.Time) (*models.StatusInterval, error) {
	m.opened = append(m.opened, openedInterval{studentID: studentID, status: status, startDate: startDate})
	return &models.StatusInterval{
		ID:        "si-new",
		StudentID: studentID,
		Status:    status,
		StartDate: startDate,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func newStatusService(repo *mockStatusRepo, students *mockStudentFinder) *StatusService {
	return NewStatusService(repo, students, disabledCache(), NewMetricsService(), validator.New(), zap.NewNop())
}

func TestStatusServiceCurrentStatusUnknownWithoutInterval(t *testing.T) {
	svc := newStatusService(&mockStatusRepo{}, &mockStudentFinder{})

	status, err := svc.CurrentStatus(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnknown, status)
}

func TestStatusServiceCurrentStatusDetectsCorruption(t *testing.T) {
	repo := &mockStatusRepo{open: []models.StatusInterval{
		{ID: "si-1", Status: models.StatusActive},
		{ID: "si-2", Status: models.StatusSuspended},
	}}
	svc := newStatusService(repo, &mockStudentFinder{})

	_, err := svc.CurrentStatus(context.Background(), "stu-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrDataIntegrity))
}

func TestStatusServiceChangeStatus(t *testing.T) {
	repo := &mockStatusRepo{open: []models.StatusInterval{{ID: "si-1", Status: models.StatusActive}}}
	students := &mockStudentFinder{students: map[string]*models.Student{"stu-1": {ID: "stu-1"}}}
	svc := newStatusService(repo, students)

	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	interval, err := svc.ChangeStatus(context.Background(), "stu-1", ChangeStatusRequest{
		Status:    models.StatusSuspended,
		StartDate: start,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuspended, interval.Status)
	require.Len(t, repo.opened, 1)
	assert.Equal(t, start, repo.opened[0].startDate)
}

func TestStatusServiceChangeStatusDefaultsStartDate(t *testing.T) {
	repo := &mockStatusRepo{}
	students := &mockStudentFinder{students: map[string]*models.Student{"stu-1": {ID: "stu-1"}}}
	svc := newStatusService(repo, students)

	_, err := svc.ChangeStatus(context.Background(), "stu-1", ChangeStatusRequest{Status: models.StatusWithdrawn})
	require.NoError(t, err)
	require.Len(t, repo.opened, 1)
	assert.False(t, repo.opened[0].startDate.IsZero())
}

func TestStatusServiceChangeStatusRejectsUnknownValue(t *testing.T) {
	repo := &mockStatusRepo{}
	students := &mockStudentFinder{students: map[string]*models.Student{"stu-1": {ID: "stu-1"}}}
	svc := newStatusService(repo, students)

	_, err := svc.ChangeStatus(context.Background(), "stu-1", ChangeStatusRequest{Status: "PAROLE"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, repo.opened)
}

func TestStatusServiceChangeStatusUnknownStudent(t *testing.T) {
	svc := newStatusService(&mockStatusRepo{}, &mockStudentFinder{})

	_, err := svc.ChangeStatus(context.Background(), "ghost", ChangeStatusRequest{Status: models.StatusGraduated})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

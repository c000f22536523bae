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

type appendedChange struct {
	entry      models.FieldHistoryEntry
	liveColumn string
	liveValue  interface{}
}

type mockHistoryRepo struct {
	appends      []appendedChange
	pendingIDs   []string
	applyResults map[string]int
	applyErrs    map[string]error
}

func (m *mockHistoryRepo) Append(ctx context.Context, entry *models.FieldHistoryEntry, liveColumn string, liveValue interface{}) error {
	m.appends = append(m.appends, appendedChange{entry: *entry, liveColumn: liveColumn, liveValue: liveValue})
	return nil
}

func (m *mockHistoryRepo) PendingStudentIDs(ctx context.Context, now time.Time) ([]string, error) {
	return m.pendingIDs, nil
}

func (m *mockHistoryRepo) ApplyPendingForStudent(ctx context.Context, studentID string, now time.Time) (int, error) {
	if err := m.applyErrs[studentID]; err != nil {
		return 0, err
	}
	return m.applyResults[studentID], nil
}

func newFieldUpdateService(history *mockHistoryRepo, students *mockStudentFinder) *FieldUpdateService {
	return NewFieldUpdateService(history, students, disabledCache(), NewMetricsService(), validator.New(), zap.NewNop(), time.Second)
}

func TestFieldUpdateServiceProposeChangePastDateApplies(t *testing.T) {
	history := &mockHistoryRepo{}
	students := &mockStudentFinder{students: map[string]*models.Student{"stu-1": {ID: "stu-1"}}}
	svc := newFieldUpdateService(history, students)

	entry, err := svc.ProposeChange(context.Background(), "stu-1", ProposeChangeRequest{
		FieldName:     "legal_name",
		OldValue:      "Sato Hanako",
		NewValue:      "Tanaka Hanako",
		EffectiveDate: time.Now().Add(-24 * time.Hour),
		Reason:        "family register update",
	})
	require.NoError(t, err)
	assert.True(t, entry.Applied)
	require.Len(t, history.appends, 1)
	assert.Equal(t, "legal_name", history.appends[0].liveColumn)
	assert.Equal(t, "Tanaka Hanako", history.appends[0].liveValue)
}

func TestFieldUpdateServiceProposeChangeFutureDateStages(t *testing.T) {
	history := &mockHistoryRepo{}
	students := &mockStudentFinder{students: map[string]*models.Student{"stu-1": {ID: "stu-1"}}}
	svc := newFieldUpdateService(history, students)

	entry, err := svc.ProposeChange(context.Background(), "stu-1", ProposeChangeRequest{
		FieldName:     "address",
		NewValue:      "2-1 Sakura-dori",
		EffectiveDate: time.Now().Add(72 * time.Hour),
	})
	require.NoError(t, err)
	assert.False(t, entry.Applied)
	require.Len(t, history.appends, 1)
	assert.Nil(t, history.appends[0].liveValue)
}

func TestFieldUpdateServiceProposeChangeUntrackedField(t *testing.T) {
	history := &mockHistoryRepo{}
	students := &mockStudentFinder{students: map[string]*models.Student{"stu-1": {ID: "stu-1"}}}
	svc := newFieldUpdateService(history, students)

	_, err := svc.ProposeChange(context.Background(), "stu-1", ProposeChangeRequest{
		FieldName:     "shoe_size",
		NewValue:      "28",
		EffectiveDate: time.Now(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, history.appends)
}

func TestFieldUpdateServiceProposeChangeRejectsBadTypedValue(t *testing.T) {
	history := &mockHistoryRepo{}
	students := &mockStudentFinder{students: map[string]*models.Student{"stu-1": {ID: "stu-1"}}}
	svc := newFieldUpdateService(history, students)

	_, err := svc.ProposeChange(context.Background(), "stu-1", ProposeChangeRequest{
		FieldName:     "use_alias_flag",
		NewValue:      "maybe",
		EffectiveDate: time.Now(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, history.appends)
}

func TestFieldUpdateServiceProposeChangeUnknownStudent(t *testing.T) {
	svc := newFieldUpdateService(&mockHistoryRepo{}, &mockStudentFinder{})

	_, err := svc.ProposeChange(context.Background(), "ghost", ProposeChangeRequest{
		FieldName:     "address",
		NewValue:      "2-1 Sakura-dori",
		EffectiveDate: time.Now(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestFieldUpdateServiceActivatePendingContinuesPastFailures(t *testing.T) {
	history := &mockHistoryRepo{
		pendingIDs:   []string{"stu-1", "stu-2", "stu-3"},
		applyResults: map[string]int{"stu-1": 2, "stu-3": 1},
		applyErrs:    map[string]error{"stu-2": appErrors.Clone(appErrors.ErrDataIntegrity, "corrupted entry")},
	}
	svc := newFieldUpdateService(history, &mockStudentFinder{})

	total, err := svc.ActivatePending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

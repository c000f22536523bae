package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gakuseki-api/internal/models"
	"github.com/noah-isme/gakuseki-api/internal/service"
	appErrors "github.com/noah-isme/gakuseki-api/pkg/errors"
)

type promotionLedgerMock struct {
	placements []models.CurrentPlacement
	appendErr  error
	appended   int
}

func (m *promotionLedgerMock) ListCurrentPlacements(ctx context.Context) ([]models.CurrentPlacement, error) {
	return m.placements, nil
}

func (m *promotionLedgerMock) BulkAppend(ctx context.Context, records []models.EnrollmentRecord) (int, error) {
	if m.appendErr != nil {
		return 0, m.appendErr
	}
	m.appended = len(records)
	return len(records), nil
}

type studentFinderMock struct {
	known map[string]bool
}

func (m *studentFinderMock) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if m.known[id] {
		return &models.Student{ID: id}, nil
	}
	return nil, sql.ErrNoRows
}

func newPromotionHandler(ledger *promotionLedgerMock, finder *studentFinderMock) *PromotionHandler {
	svc := service.NewPromotionService(ledger, finder, nil, nil, nil, nil, time.Second)
	return NewPromotionHandler(svc)
}

func TestPromotionHandlerPlan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := &promotionLedgerMock{placements: []models.CurrentPlacement{
		{StudentID: "stu-1", SNumber: "S-001", LegalName: "Sato Hanako", Grade: 1, ClassLabel: "A", AttendanceNumber: 3},
	}}
	handler := newPromotionHandler(ledger, &studentFinderMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/promotions/plan", nil)
	c.Request = req

	handler.Plan(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"next_grade":2`)
}

func TestPromotionHandlerPromote(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := &promotionLedgerMock{}
	handler := newPromotionHandler(ledger, &studentFinderMock{known: map[string]bool{"stu-1": true}})

	payload, _ := json.Marshal(service.PromoteRequest{
		TargetFiscalYear: 2026,
		Directives: []models.PromotionDirective{
			{StudentID: "stu-1", Grade: 2, ClassLabel: "A", AttendanceNumber: 3},
		},
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/promotions", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Promote(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, ledger.appended)
}

func TestPromotionHandlerPromoteInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newPromotionHandler(&promotionLedgerMock{}, &studentFinderMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/promotions", bytes.NewBufferString(`{"target_fiscal_year":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Promote(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPromotionHandlerPromoteDuplicateEnrollment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := &promotionLedgerMock{appendErr: appErrors.Clone(appErrors.ErrDuplicateKey, "already promoted")}
	handler := newPromotionHandler(ledger, &studentFinderMock{known: map[string]bool{"stu-1": true}})

	payload, _ := json.Marshal(service.PromoteRequest{
		TargetFiscalYear: 2026,
		Directives: []models.PromotionDirective{
			{StudentID: "stu-1", Grade: 2, ClassLabel: "A", AttendanceNumber: 3},
		},
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/promotions", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Promote(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

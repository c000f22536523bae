package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gakuseki-api/internal/service"
	appErrors "github.com/noah-isme/gakuseki-api/pkg/errors"
	"github.com/noah-isme/gakuseki-api/pkg/response"
)

// StatusHandler exposes the status timeline endpoints.
type StatusHandler struct {
	statuses *service.StatusService
}

// NewStatusHandler constructs StatusHandler.
func NewStatusHandler(statuses *service.StatusService) *StatusHandler {
	return &StatusHandler{statuses: statuses}
}

// Current godoc
// @Summary Current status of a student
// @Tags Status
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/status [get]
func (h *StatusHandler) Current(c *gin.Context) {
	status, err := h.statuses.CurrentStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"status": status}, nil)
}

// Change godoc
// @Summary Transition a student to a new status
// @Tags Status
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.ChangeStatusRequest true "Status payload"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/status [post]
func (h *StatusHandler) Change(c *gin.Context) {
	var req service.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	interval, err := h.statuses.ChangeStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, interval)
}

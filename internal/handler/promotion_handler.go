package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gakuseki-api/internal/service"
	appErrors "github.com/noah-isme/gakuseki-api/pkg/errors"
	"github.com/noah-isme/gakuseki-api/pkg/response"
)

// PromotionHandler exposes the bulk promotion endpoints.
type PromotionHandler struct {
	promotions *service.PromotionService
}

// NewPromotionHandler constructs PromotionHandler.
func NewPromotionHandler(promotions *service.PromotionService) *PromotionHandler {
	return &PromotionHandler{promotions: promotions}
}

// Plan godoc
// @Summary Draft next-year placements for all active students
// @Tags Promotions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /promotions/plan [get]
func (h *PromotionHandler) Plan(c *gin.Context) {
	entries, err := h.promotions.Plan(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Promote godoc
// @Summary Commit a bulk promotion batch, all or nothing
// @Tags Promotions
// @Accept json
// @Produce json
// @Param payload body service.PromoteRequest true "Promotion batch"
// @Success 201 {object} response.Envelope
// @Router /promotions [post]
func (h *PromotionHandler) Promote(c *gin.Context) {
	var req service.PromoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	count, err := h.promotions.Promote(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"count": count})
}

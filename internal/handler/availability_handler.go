package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/service"
)

type availabilityService interface {
	Preview(ctx context.Context, req service.AvailabilityRequest) ([]model.SlotSeed, error)
	Submit(ctx context.Context, req service.AvailabilityRequest) (*service.SubmitAvailabilityResult, error)
	Active(ctx context.Context, instructorID int64) (*model.AvailabilityTemplate, error)
}

// AvailabilityHandler шаблоны доступности инструкторов
type AvailabilityHandler struct {
	service availabilityService
}

func NewAvailabilityHandler(svc availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// Preview разворачивает шаблон без сохранения
func (h *AvailabilityHandler) Preview(c *gin.Context) {
	var req service.AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "invalid payload")
		return
	}

	seeds, err := h.service.Preview(c.Request.Context(), req)
	if err != nil {
		Error(c, err)
		return
	}
	JSON(c, http.StatusOK, seeds, map[string]any{"count": len(seeds)})
}

// Submit сохраняет шаблон инструктора из пути и генерирует слоты
func (h *AvailabilityHandler) Submit(c *gin.Context) {
	instructorID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req service.AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "invalid payload")
		return
	}
	req.InstructorID = instructorID

	result, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, result)
}

// Active действующий шаблон
func (h *AvailabilityHandler) Active(c *gin.Context) {
	instructorID, ok := pathID(c, "id")
	if !ok {
		return
	}

	tmpl, err := h.service.Active(c.Request.Context(), instructorID)
	if err != nil {
		Error(c, err)
		return
	}
	JSON(c, http.StatusOK, tmpl)
}

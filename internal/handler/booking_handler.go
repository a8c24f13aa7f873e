package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
)

type bookingService interface {
	BookSingle(ctx context.Context, studentCourseID, slotID int64, createdBy string) (*model.ClassAssignment, error)
	BookBatch(ctx context.Context, studentCourseID int64, slotIDs []int64, createdBy string) ([]*model.ClassAssignment, error)
	Classes(ctx context.Context, studentCourseID int64, status model.AssignmentStatus) ([]*model.ClassAssignment, error)
}

type workflowService interface {
	Submit(ctx context.Context, req model.RescheduleCancelRequest) (*model.ChangeOutcome, error)
}

// BookingHandler запись на занятия, перенос и отмена
type BookingHandler struct {
	booking  bookingService
	workflow workflowService
}

func NewBookingHandler(booking bookingService, workflow workflowService) *BookingHandler {
	return &BookingHandler{booking: booking, workflow: workflow}
}

type bookSingleBody struct {
	StudentCourseID int64  `json:"student_course_id" binding:"required"`
	SlotID          int64  `json:"slot_id" binding:"required"`
	CreatedBy       string `json:"created_by"`
}

type bookBatchBody struct {
	StudentCourseID int64   `json:"student_course_id" binding:"required"`
	SlotIDs         []int64 `json:"slot_ids" binding:"required"`
	CreatedBy       string  `json:"created_by"`
}

// Book записывает на один слот
func (h *BookingHandler) Book(c *gin.Context) {
	var body bookSingleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err, "invalid payload")
		return
	}

	assignment, err := h.booking.BookSingle(c.Request.Context(), body.StudentCourseID, body.SlotID, body.CreatedBy)
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, assignment)
}

// BookBatch записывает на несколько слотов: все или ни одного
func (h *BookingHandler) BookBatch(c *gin.Context) {
	var body bookBatchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err, "invalid payload")
		return
	}

	assignments, err := h.booking.BookBatch(c.Request.Context(), body.StudentCourseID, body.SlotIDs, body.CreatedBy)
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, assignments)
}

// Classes занятия курса студента вместе со слотами
func (h *BookingHandler) Classes(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	classes, err := h.booking.Classes(c.Request.Context(), id, model.AssignmentStatus(c.Query("status")))
	if err != nil {
		Error(c, err)
		return
	}
	JSON(c, http.StatusOK, classes, map[string]any{"count": len(classes)})
}

// ChangeClass перенос или отмена занятия
func (h *BookingHandler) ChangeClass(c *gin.Context) {
	var req model.RescheduleCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "invalid payload")
		return
	}
	// время запроса ставит сервер
	req.RequestedAt = time.Time{}

	outcome, err := h.workflow.Submit(c.Request.Context(), req)
	if err != nil {
		Error(c, err)
		return
	}
	JSON(c, http.StatusOK, outcome)
}

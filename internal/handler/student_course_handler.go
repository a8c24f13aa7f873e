package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/service"
)

type ledgerService interface {
	Remaining(ctx context.Context, studentCourseID int64) (int, error)
	ListStudentCourses(ctx context.Context, studentID int64) ([]*model.StudentCourse, error)
	AssignCourses(ctx context.Context, req service.AssignCoursesRequest) ([]*model.StudentCourse, error)
	UpdateStudentCourse(ctx context.Context, id int64, req service.UpdateStudentCourseRequest) (*model.StudentCourse, error)
}

// StudentCourseHandler курсы студентов и остаток занятий
type StudentCourseHandler struct {
	ledger ledgerService
}

func NewStudentCourseHandler(ledger ledgerService) *StudentCourseHandler {
	return &StudentCourseHandler{ledger: ledger}
}

// List курсы студента; перед выдачей применяется правило неактивности
func (h *StudentCourseHandler) List(c *gin.Context) {
	studentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	courses, err := h.ledger.ListStudentCourses(c.Request.Context(), studentID)
	if err != nil {
		Error(c, err)
		return
	}
	JSON(c, http.StatusOK, courses)
}

type assignCoursesBody struct {
	Courses   []service.CourseAssignment `json:"courses"`
	CreatedBy string                     `json:"created_by"`
}

// Assign назначает студенту курсы
func (h *StudentCourseHandler) Assign(c *gin.Context) {
	studentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var body assignCoursesBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err, "invalid payload")
		return
	}

	courses, err := h.ledger.AssignCourses(c.Request.Context(), service.AssignCoursesRequest{
		StudentID: studentID,
		Courses:   body.Courses,
		CreatedBy: body.CreatedBy,
	})
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, courses)
}

// Update меняет состояние/результат курса
func (h *StudentCourseHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req service.UpdateStudentCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "invalid payload")
		return
	}

	course, err := h.ledger.UpdateStudentCourse(c.Request.Context(), id, req)
	if err != nil {
		Error(c, err)
		return
	}
	JSON(c, http.StatusOK, course)
}

// Credit остаток занятий
func (h *StudentCourseHandler) Credit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	remaining, err := h.ledger.Remaining(c.Request.Context(), id)
	if err != nil {
		Error(c, err)
		return
	}
	JSON(c, http.StatusOK, gin.H{"student_course_id": id, "remaining_classes": remaining})
}

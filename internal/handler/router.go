package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/service"
)

// RouterDeps всё, что нужно для сборки HTTP API
type RouterDeps struct {
	APIPrefix    string
	Logger       *zap.Logger
	Metrics      *service.MetricsService
	Availability *AvailabilityHandler
	Slots        *SlotHandler
	Courses      *StudentCourseHandler
	Bookings     *BookingHandler
}

func NewRouter(deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logger(logger))
	r.Use(Metrics(deps.Metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	prefix := deps.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)

	api.POST("/availability/preview", deps.Availability.Preview)
	api.POST("/instructors/:id/availability", deps.Availability.Submit)
	api.GET("/instructors/:id/availability", deps.Availability.Active)
	api.GET("/instructors/:id/week.png", deps.Slots.WeekImage)

	api.GET("/slots", deps.Slots.List)
	api.GET("/slots/available-dates", deps.Slots.AvailableDates)
	api.GET("/slots/by-date", deps.Slots.ByDate)

	api.GET("/students/:id/courses", deps.Courses.List)
	api.POST("/students/:id/courses", deps.Courses.Assign)
	api.PATCH("/student-courses/:id", deps.Courses.Update)
	api.GET("/student-courses/:id/credit", deps.Courses.Credit)
	api.GET("/student-courses/:id/classes", deps.Bookings.Classes)

	api.POST("/bookings", deps.Bookings.Book)
	api.POST("/bookings/batch", deps.Bookings.BookBatch)
	api.POST("/class-changes", deps.Bookings.ChangeClass)

	return r
}

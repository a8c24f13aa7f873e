package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/apperr"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/calendar"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/service"
)

type slotDirectory interface {
	Query(ctx context.Context, filter model.SlotFilter) ([]*model.Slot, error)
	AvailableDates(ctx context.Context, months []time.Time, instructorID *int64) ([]time.Time, error)
	FreeSlotsOn(ctx context.Context, date time.Time, instructorID *int64) ([]*model.Slot, error)
}

// SlotHandler чтение слотов для календарей
type SlotHandler struct {
	directory slotDirectory
	loc       *time.Location
	now       func() time.Time
}

func NewSlotHandler(directory slotDirectory, loc *time.Location) *SlotHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &SlotHandler{directory: directory, loc: loc, now: time.Now}
}

// List выборка по фильтру ?instructor_id&student_id&time_bucket&availability&from&to
func (h *SlotHandler) List(c *gin.Context) {
	filter, err := h.parseFilter(c)
	if err != nil {
		Error(c, err)
		return
	}

	slots, err := h.directory.Query(c.Request.Context(), filter)
	if err != nil {
		Error(c, err)
		return
	}
	JSON(c, http.StatusOK, slots, map[string]any{"count": len(slots)})
}

// AvailableDates ?months=2024-01,2024-02
func (h *SlotHandler) AvailableDates(c *gin.Context) {
	months, err := parseMonths(c.Query("months"), h.loc)
	if err != nil {
		Error(c, err)
		return
	}
	instructorID, err := queryInt64(c, "instructor_id")
	if err != nil {
		Error(c, err)
		return
	}

	dates, err := h.directory.AvailableDates(c.Request.Context(), months, instructorID)
	if err != nil {
		Error(c, err)
		return
	}

	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format(service.DateLayout))
	}
	JSON(c, http.StatusOK, out)
}

// ByDate свободные слоты на ?date=2024-01-15
func (h *SlotHandler) ByDate(c *gin.Context) {
	date, err := time.ParseInLocation(service.DateLayout, c.Query("date"), h.loc)
	if err != nil {
		Error(c, apperr.Clone(apperr.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}
	instructorID, err := queryInt64(c, "instructor_id")
	if err != nil {
		Error(c, err)
		return
	}

	slots, err := h.directory.FreeSlotsOn(c.Request.Context(), date, instructorID)
	if err != nil {
		Error(c, err)
		return
	}
	JSON(c, http.StatusOK, slots, map[string]any{"count": len(slots)})
}

// WeekImage PNG недели инструктора, ?date=2024-03-06 (по умолчанию сегодня)
func (h *SlotHandler) WeekImage(c *gin.Context) {
	instructorID, ok := pathID(c, "id")
	if !ok {
		return
	}

	now := h.now().In(h.loc)
	date := now
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.ParseInLocation(service.DateLayout, raw, h.loc)
		if err != nil {
			Error(c, apperr.Clone(apperr.ErrValidation, "date must be YYYY-MM-DD"))
			return
		}
		date = parsed
	}

	from := calendar.WeekStart(date)
	to := from.AddDate(0, 0, 7)
	slots, err := h.directory.Query(c.Request.Context(), model.SlotFilter{
		InstructorID: &instructorID,
		From:         &from,
		To:           &to,
	})
	if err != nil {
		Error(c, err)
		return
	}

	img, err := calendar.RenderWeek(calendar.WeekView{
		InstructorID: instructorID,
		Date:         from,
		Slots:        slots,
		Loc:          h.loc,
		Now:          now,
	})
	if err != nil {
		Error(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", img)
}

func (h *SlotHandler) parseFilter(c *gin.Context) (model.SlotFilter, error) {
	var (
		filter model.SlotFilter
		err    error
	)

	if filter.InstructorID, err = queryInt64(c, "instructor_id"); err != nil {
		return filter, err
	}
	if filter.StudentID, err = queryInt64(c, "student_id"); err != nil {
		return filter, err
	}
	if filter.TimeBucket, err = model.ParseTimeBucket(c.Query("time_bucket")); err != nil {
		return filter, apperr.Clone(apperr.ErrValidation, err.Error())
	}

	switch availability := model.Availability(c.Query("availability")); availability {
	case "", model.AvailabilityFree, model.AvailabilityBooked:
		filter.Availability = availability
	default:
		return filter, apperr.Clone(apperr.ErrValidation, "availability must be free or booked")
	}

	if filter.From, err = queryTime(c, "from", h.loc); err != nil {
		return filter, err
	}
	if filter.To, err = queryTime(c, "to", h.loc); err != nil {
		return filter, err
	}

	return filter, nil
}

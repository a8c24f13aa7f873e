package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CourseState estado_curso
type CourseState int

const (
	CourseStateActive   CourseState = 1
	CourseStateInactive CourseState = 2
)

func (s CourseState) Valid() bool {
	return s == CourseStateActive || s == CourseStateInactive
}

// CourseResult resultado_curso
type CourseResult int

const (
	CourseResultPending   CourseResult = 1
	CourseResultPassed    CourseResult = 2
	CourseResultFailed    CourseResult = 3
	CourseResultSuspended CourseResult = 4
)

func (r CourseResult) Valid() bool {
	return r >= CourseResultPending && r <= CourseResultSuspended
}

func (r CourseResult) String() string {
	switch r {
	case CourseResultPending:
		return "pending"
	case CourseResultPassed:
		return "passed"
	case CourseResultFailed:
		return "failed"
	case CourseResultSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// StudentCourse запись кредитного реестра: купленные и оставшиеся занятия курса студента
type StudentCourse struct {
	ID               int64           `json:"id"`
	StudentID        int64           `json:"student_id"`
	CourseID         int64           `json:"course_id"`
	TotalClasses     int             `json:"total_classes"`     // cantidad_clases
	RemainingClasses int             `json:"remaining_classes"` // clases_restantes
	State            CourseState     `json:"state"`
	Result           CourseResult    `json:"result"`
	RegisteredValue  decimal.Decimal `json:"registered_value"`
	Comment          string          `json:"comment"`
	CreatedBy        string          `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// IsActive курс активен и по нему можно записываться
func (c *StudentCourse) IsActive() bool {
	return c.State == CourseStateActive
}

// ConsumedClasses сколько занятий уже израсходовано
func (c *StudentCourse) ConsumedClasses() int {
	return c.TotalClasses - c.RemainingClasses
}

// InactivityCutoff граница, раньше которой приостановленный курс считается проваленным
func InactivityCutoff(now time.Time) time.Time {
	return now.AddDate(-1, 0, 0)
}

// ApplyInactivityRule переводит курс, приостановленный более года назад, в failed.
// Возвращает true если запись изменилась; повторный вызов ничего не меняет.
func ApplyInactivityRule(c *StudentCourse, now time.Time) bool {
	if c.Result != CourseResultSuspended {
		return false
	}
	if !c.CreatedAt.Before(InactivityCutoff(now)) {
		return false
	}
	c.Result = CourseResultFailed
	return true
}

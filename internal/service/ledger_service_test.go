package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/apperr"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
)

// counterValue сумма всех серий счётчика name в реестре метрик
func counterValue(t *testing.T, m *MetricsService, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func TestLedger_ReserveAndRelease(t *testing.T) {
	e := newEngine(t)
	course := e.store.addCourse(7, 5, 5)
	ctx := context.Background()

	require.NoError(t, e.ledger.Reserve(ctx, course, 3))
	remaining, err := e.ledger.Remaining(ctx, course)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	err = e.ledger.Reserve(ctx, course, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInsufficientCredit))
	assert.Equal(t, map[string]int{"requested": 3, "remaining": 2}, apperr.FromError(err).Details)

	require.NoError(t, e.ledger.Release(ctx, course, 3))
	assert.Equal(t, 5, e.remaining(course))
}

func TestLedger_OverRelease(t *testing.T) {
	e := newEngine(t)
	course := e.store.addCourse(7, 5, 4)

	err := e.ledger.Release(context.Background(), course, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrOverRelease))
	assert.Equal(t, 4, e.remaining(course))
	assert.Equal(t, float64(1), counterValue(t, e.metrics, "scheduler_ledger_over_release_total"))
}

func TestLedger_InvalidCount(t *testing.T) {
	e := newEngine(t)
	course := e.store.addCourse(7, 5, 5)

	assert.True(t, errors.Is(e.ledger.Reserve(context.Background(), course, 0), apperr.ErrValidation))
	assert.True(t, errors.Is(e.ledger.Release(context.Background(), course, -1), apperr.ErrValidation))
}

func TestLedger_RemainingNotFound(t *testing.T) {
	e := newEngine(t)

	_, err := e.ledger.Remaining(context.Background(), 31337)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestLedger_ListAppliesInactivityRule(t *testing.T) {
	e := newEngine(t)
	now := e.clock.Now()

	stale := e.store.addCourse(7, 10, 4)
	recent := e.store.addCourse(7, 10, 4)
	exactlyYear := e.store.addCourse(7, 10, 4)
	pending := e.store.addCourse(7, 10, 4)
	foreign := e.store.addCourse(8, 10, 4)

	setCourse := func(id int64, result model.CourseResult, createdAt time.Time) {
		sc := e.store.courses[id]
		sc.Result = result
		sc.CreatedAt = createdAt
		e.store.courses[id] = sc
	}
	setCourse(stale, model.CourseResultSuspended, now.AddDate(-2, 0, 0))
	setCourse(recent, model.CourseResultSuspended, now.AddDate(0, -6, 0))
	setCourse(exactlyYear, model.CourseResultSuspended, now.AddDate(-1, 0, 0))
	setCourse(pending, model.CourseResultPending, now.AddDate(-3, 0, 0))
	setCourse(foreign, model.CourseResultSuspended, now.AddDate(-2, 0, 0))

	courses, err := e.ledger.ListStudentCourses(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, courses, 4)

	results := make(map[int64]model.CourseResult, len(courses))
	for _, sc := range courses {
		results[sc.ID] = sc.Result
	}
	assert.Equal(t, model.CourseResultFailed, results[stale])
	assert.Equal(t, model.CourseResultSuspended, results[recent])
	assert.Equal(t, model.CourseResultSuspended, results[exactlyYear])
	assert.Equal(t, model.CourseResultPending, results[pending])

	// другой студент не затронут
	assert.Equal(t, model.CourseResultSuspended, e.store.courses[foreign].Result)

	n, err := e.ledger.ApplyInactivityCorrection(context.Background(), 7)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLedger_AssignCourses(t *testing.T) {
	e := newEngine(t)

	created, err := e.ledger.AssignCourses(context.Background(), AssignCoursesRequest{
		StudentID: 7,
		Courses: []CourseAssignment{
			{CourseID: 1, TotalClasses: 10, RegisteredValue: decimal.RequireFromString("450000.00")},
			{CourseID: 2, TotalClasses: 4},
		},
		CreatedBy: "secretary",
	})
	require.NoError(t, err)
	require.Len(t, created, 2)

	for _, sc := range created {
		stored := e.store.courses[sc.ID]
		assert.Equal(t, stored.TotalClasses, stored.RemainingClasses)
		assert.Equal(t, model.CourseStateActive, stored.State)
		assert.Equal(t, model.CourseResultPending, stored.Result)
		assert.Equal(t, "secretary", stored.CreatedBy)
	}
	assert.True(t, created[0].RegisteredValue.Equal(decimal.NewFromInt(450000)))
}

func TestLedger_AssignCoursesValidation(t *testing.T) {
	tests := []struct {
		name string
		req  AssignCoursesRequest
	}{
		{name: "no student", req: AssignCoursesRequest{Courses: []CourseAssignment{{CourseID: 1, TotalClasses: 1}}}},
		{name: "no courses", req: AssignCoursesRequest{StudentID: 7}},
		{name: "zero classes", req: AssignCoursesRequest{StudentID: 7, Courses: []CourseAssignment{{CourseID: 1}}}},
		{name: "negative value", req: AssignCoursesRequest{StudentID: 7, Courses: []CourseAssignment{{CourseID: 1, TotalClasses: 2, RegisteredValue: decimal.NewFromInt(-1)}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t)
			_, err := e.ledger.AssignCourses(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrValidation))
			assert.Empty(t, e.store.courses)
		})
	}
}

func TestLedger_AssignCoursesRollsBack(t *testing.T) {
	e := newEngine(t)
	e.store.failOn = "courses.create"

	_, err := e.ledger.AssignCourses(context.Background(), AssignCoursesRequest{
		StudentID: 7,
		Courses:   []CourseAssignment{{CourseID: 1, TotalClasses: 3}},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.ErrInternal.Code, apperr.FromError(err).Code)
	assert.Empty(t, e.store.courses)
}

func TestLedger_UpdateStudentCourse(t *testing.T) {
	e := newEngine(t)
	course := e.store.addCourse(7, 10, 6)

	result := model.CourseResultPassed
	state := model.CourseStateInactive
	comment := "examen aprobado"

	updated, err := e.ledger.UpdateStudentCourse(context.Background(), course, UpdateStudentCourseRequest{
		State:   &state,
		Result:  &result,
		Comment: &comment,
	})
	require.NoError(t, err)
	assert.Equal(t, model.CourseResultPassed, updated.Result)
	assert.Equal(t, model.CourseStateInactive, updated.State)

	stored := e.store.courses[course]
	assert.Equal(t, model.CourseResultPassed, stored.Result)
	assert.Equal(t, comment, stored.Comment)
	// остаток не меняется
	assert.Equal(t, 6, stored.RemainingClasses)
}

func TestLedger_UpdateStudentCourseErrors(t *testing.T) {
	e := newEngine(t)
	course := e.store.addCourse(7, 10, 6)
	badResult := model.CourseResult(9)
	passed := model.CourseResultPassed

	_, err := e.ledger.UpdateStudentCourse(context.Background(), course, UpdateStudentCourseRequest{})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = e.ledger.UpdateStudentCourse(context.Background(), course, UpdateStudentCourseRequest{Result: &badResult})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = e.ledger.UpdateStudentCourse(context.Background(), 999, UpdateStudentCourseRequest{Result: &passed})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/apperr"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/repository"
)

func TestSlotDirectory_QueryUsesCache(t *testing.T) {
	e := newEngine(t)
	instructor := int64(1)
	e.store.addSlot(instructor, e.at(48*time.Hour))

	filter := model.SlotFilter{InstructorID: &instructor, Availability: model.AvailabilityFree}

	first, err := e.directory.Query(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// запись мимо сервисов: кэш отдаёт старый ответ
	e.store.addSlot(instructor, e.at(72*time.Hour))
	cached, err := e.directory.Query(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, cached, 1)
	assert.Equal(t, float64(1), counterValue(t, e.metrics, "cache_hits_total"))

	e.directory.Invalidate(context.Background())
	fresh, err := e.directory.Query(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
}

func TestSlotDirectory_BookingInvalidatesCache(t *testing.T) {
	e := newEngine(t)
	course := e.store.addCourse(7, 10, 10)
	slot := e.store.addSlot(1, e.at(48*time.Hour))
	filter := model.SlotFilter{Availability: model.AvailabilityFree}

	free, err := e.directory.Query(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, free, 1)

	_, err = e.booking.BookSingle(context.Background(), course, slot, "")
	require.NoError(t, err)

	free, err = e.directory.Query(context.Background(), filter)
	require.NoError(t, err)
	assert.Empty(t, free)
}

func TestSlotDirectory_QueryFilters(t *testing.T) {
	e := newEngine(t)
	day := time.Date(2024, 3, 6, 0, 0, 0, 0, testLoc)
	morning := e.store.addSlot(1, day.Add(8*time.Hour+20*time.Minute))
	afternoon := e.store.addSlot(1, day.Add(13*time.Hour))
	evening := e.store.addSlot(2, day.Add(18*time.Hour))

	course := e.store.addCourse(7, 10, 10)
	_, err := e.booking.BookSingle(context.Background(), course, afternoon, "")
	require.NoError(t, err)

	ids := func(slots []*model.Slot) []int64 {
		out := make([]int64, 0, len(slots))
		for _, s := range slots {
			out = append(out, s.ID)
		}
		return out
	}

	instructor := int64(2)
	student := int64(7)

	tests := []struct {
		name   string
		filter model.SlotFilter
		want   []int64
	}{
		{name: "all", filter: model.SlotFilter{}, want: []int64{morning, afternoon, evening}},
		{name: "instructor", filter: model.SlotFilter{InstructorID: &instructor}, want: []int64{evening}},
		{name: "booked", filter: model.SlotFilter{Availability: model.AvailabilityBooked}, want: []int64{afternoon}},
		{name: "free", filter: model.SlotFilter{Availability: model.AvailabilityFree}, want: []int64{morning, evening}},
		{name: "student", filter: model.SlotFilter{StudentID: &student}, want: []int64{afternoon}},
		{name: "morning bucket", filter: model.SlotFilter{TimeBucket: model.TimeBucketMorning}, want: []int64{morning}},
		{name: "evening bucket", filter: model.SlotFilter{TimeBucket: model.TimeBucketEvening}, want: []int64{evening}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots, err := e.directory.Query(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(slots))
		})
	}
}

func TestSlotDirectory_QueryRejectsInvertedRange(t *testing.T) {
	e := newEngine(t)
	from := e.at(time.Hour)
	to := e.at(-time.Hour)

	_, err := e.directory.Query(context.Background(), model.SlotFilter{From: &from, To: &to})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestSlotDirectory_AvailableDates(t *testing.T) {
	e := newEngine(t)
	// сейчас 2024-03-04 10:00
	e.store.addSlot(1, time.Date(2024, 3, 4, 8, 20, 0, 0, testLoc)) // уже прошёл
	e.store.addSlot(1, time.Date(2024, 3, 4, 15, 0, 0, 0, testLoc))
	e.store.addSlot(1, time.Date(2024, 3, 20, 9, 0, 0, 0, testLoc))
	e.store.addSlot(1, time.Date(2024, 3, 20, 10, 0, 0, 0, testLoc))
	e.store.addSlot(1, time.Date(2024, 4, 2, 9, 0, 0, 0, testLoc))
	booked := e.store.addSlot(1, time.Date(2024, 4, 9, 9, 0, 0, 0, testLoc))

	course := e.store.addCourse(7, 10, 10)
	_, err := e.booking.BookSingle(context.Background(), course, booked, "")
	require.NoError(t, err)

	months := []time.Time{
		time.Date(2024, 4, 15, 0, 0, 0, 0, testLoc),
		time.Date(2024, 3, 1, 0, 0, 0, 0, testLoc),
		time.Date(2024, 3, 31, 0, 0, 0, 0, testLoc),
		time.Date(2024, 2, 1, 0, 0, 0, 0, testLoc),
	}
	dates, err := e.directory.AvailableDates(context.Background(), months, nil)
	require.NoError(t, err)

	got := make([]string, 0, len(dates))
	for _, d := range dates {
		got = append(got, d.Format(DateLayout))
		assert.Equal(t, testLoc, d.Location())
	}
	assert.Equal(t, []string{"2024-03-04", "2024-03-20", "2024-04-02"}, got)
}

func TestSlotDirectory_AvailableDatesValidation(t *testing.T) {
	e := newEngine(t)

	_, err := e.directory.AvailableDates(context.Background(), nil, nil)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	months := make([]time.Time, 13)
	for i := range months {
		months[i] = time.Date(2024, time.Month(i+1), 1, 0, 0, 0, 0, testLoc)
	}
	_, err = e.directory.AvailableDates(context.Background(), months, nil)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestSlotDirectory_FreeSlotsOn(t *testing.T) {
	e := newEngine(t)
	e.store.addSlot(1, time.Date(2024, 3, 4, 8, 20, 0, 0, testLoc))
	later := e.store.addSlot(1, time.Date(2024, 3, 4, 15, 0, 0, 0, testLoc))
	e.store.addSlot(1, time.Date(2024, 3, 5, 8, 20, 0, 0, testLoc))

	slots, err := e.directory.FreeSlotsOn(context.Background(), time.Date(2024, 3, 4, 0, 0, 0, 0, testLoc), nil)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, later, slots[0].ID)

	past, err := e.directory.FreeSlotsOn(context.Background(), time.Date(2024, 3, 1, 0, 0, 0, 0, testLoc), nil)
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestSlotDirectory_WithoutCache(t *testing.T) {
	store := newMemStore()
	tx := &fakeTxManager{store: store}
	store.addSlot(1, time.Now().Add(48*time.Hour))

	directory := NewSlotDirectory(tx.slots(), nil, nil, nil, nil)
	slots, err := directory.Query(context.Background(), model.SlotFilter{})
	require.NoError(t, err)
	assert.Len(t, slots, 1)

	directory.Invalidate(context.Background())
}

// slotRepoWithHook выполняет during один раз между чтением строк и возвратом ответа
type slotRepoWithHook struct {
	repository.SlotRepository
	during func()
}

func (r *slotRepoWithHook) Query(ctx context.Context, filter model.SlotFilter) ([]*model.Slot, error) {
	slots, err := r.SlotRepository.Query(ctx, filter)
	if r.during != nil {
		during := r.during
		r.during = nil
		during()
	}
	return slots, err
}

func TestSlotDirectory_BookingDuringQueryIsNotCached(t *testing.T) {
	e := newEngine(t)
	course := e.store.addCourse(7, 10, 10)
	slot := e.store.addSlot(1, e.at(48*time.Hour))
	filter := model.SlotFilter{Availability: model.AvailabilityFree}

	repo := &slotRepoWithHook{SlotRepository: e.tx.slots()}
	repo.during = func() {
		_, err := e.booking.BookSingle(context.Background(), course, slot, "")
		require.NoError(t, err)
	}
	directory := NewSlotDirectory(repo, e.slotCache, testLoc, e.clock.Now, nil)

	// чтение началось до брони и видит слот свободным
	inFlight, err := directory.Query(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, inFlight, 1)
	require.Equal(t, model.SlotStatusBooked, e.slotStatus(slot))

	assert.Equal(t, 1.0, counterValue(t, e.metrics, "scheduler_slot_cache_stale_writes_total"))
	assert.Empty(t, e.cache.keys())

	free, err := directory.Query(context.Background(), filter)
	require.NoError(t, err)
	assert.Empty(t, free)

	free, err = e.directory.Query(context.Background(), filter)
	require.NoError(t, err)
	assert.Empty(t, free)
}

func TestSlotDirectory_InvalidateHidesOlderGeneration(t *testing.T) {
	e := newEngine(t)
	e.store.addSlot(1, e.at(48*time.Hour))
	filter := model.SlotFilter{}

	_, err := e.directory.Query(context.Background(), filter)
	require.NoError(t, err)
	require.Equal(t, []string{"slots:g0:q"}, e.cache.keys())

	e.directory.Invalidate(context.Background())
	e.store.addSlot(1, e.at(72*time.Hour))

	slots, err := e.directory.Query(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, slots, 2)
	assert.Equal(t, []string{"slots:g0:q", "slots:g1:q"}, e.cache.keys())
}

func TestSlotDirectory_FreeSlotsOnCachesWholeDay(t *testing.T) {
	e := newEngine(t)
	// сейчас 2024-03-04 10:00
	first := e.store.addSlot(1, time.Date(2024, 3, 4, 10, 30, 0, 0, testLoc))
	second := e.store.addSlot(1, time.Date(2024, 3, 4, 15, 0, 0, 0, testLoc))
	date := time.Date(2024, 3, 4, 0, 0, 0, 0, testLoc)

	slots, err := e.directory.FreeSlotsOn(context.Background(), date, nil)
	require.NoError(t, err)
	require.Len(t, slots, 2)

	e.clock.Set(e.at(time.Minute))
	slots, err = e.directory.FreeSlotsOn(context.Background(), date, nil)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, 1.0, counterValue(t, e.metrics, "cache_hits_total"))
	assert.Len(t, e.cache.keys(), 1)

	// начавшийся слот отсекается и при ответе из кэша
	e.clock.Set(time.Date(2024, 3, 4, 10, 31, 0, 0, testLoc))
	slots, err = e.directory.FreeSlotsOn(context.Background(), date, nil)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, second, slots[0].ID)
	assert.NotEqual(t, first, slots[0].ID)
	assert.Equal(t, 2.0, counterValue(t, e.metrics, "cache_hits_total"))
	assert.Len(t, e.cache.keys(), 1)
}

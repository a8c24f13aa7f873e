package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/apperr"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/repository"
)

// не больше года за один запрос календаря
const maxCalendarMonths = 12

// SlotDirectory чтение слотов для календарей; сам ничего не меняет
type SlotDirectory struct {
	slots  repository.SlotRepository
	cache  *SlotCache
	loc    *time.Location
	clock  func() time.Time
	logger *zap.Logger
}

func NewSlotDirectory(
	slots repository.SlotRepository,
	cache *SlotCache,
	loc *time.Location,
	clock func() time.Time,
	logger *zap.Logger,
) *SlotDirectory {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotDirectory{slots: slots, cache: cache, loc: loc, clock: clock, logger: logger}
}

// Query выборка слотов по фильтру; ответ может прийти из кэша
func (d *SlotDirectory) Query(ctx context.Context, filter model.SlotFilter) ([]*model.Slot, error) {
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, apperr.Clone(apperr.ErrValidation, "from must be before to")
	}

	cached, ticket, hit := d.cache.Lookup(ctx, slotCacheKey(filter))
	if hit {
		return cached, nil
	}

	slots, err := d.slots.Query(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to query slots")
	}

	// бронь, зафиксированная во время чтения, сменила поколение: ответ не сохранится
	d.cache.Store(ctx, ticket, slots)

	return slots, nil
}

// AvailableDates даты выбранных месяцев, на которые ещё есть свободные слоты
func (d *SlotDirectory) AvailableDates(ctx context.Context, months []time.Time, instructorID *int64) ([]time.Time, error) {
	if len(months) == 0 {
		return nil, apperr.Clone(apperr.ErrValidation, "at least one month is required")
	}
	if len(months) > maxCalendarMonths {
		return nil, apperr.Clone(apperr.ErrValidation, fmt.Sprintf("at most %d months per request", maxCalendarMonths))
	}

	starts := make([]time.Time, 0, len(months))
	seen := make(map[time.Time]struct{}, len(months))
	for _, m := range months {
		start := time.Date(m.Year(), m.Month(), 1, 0, 0, 0, 0, d.loc)
		if _, ok := seen[start]; ok {
			continue
		}
		seen[start] = struct{}{}
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	now := d.clock()
	dates := make([]time.Time, 0)
	for _, from := range starts {
		to := from.AddDate(0, 1, 0)
		if !to.After(now) {
			continue
		}
		if from.Before(now) {
			from = now
		}

		found, err := d.slots.FreeDates(ctx, from, to, instructorID)
		if err != nil {
			return nil, internalError(err, "failed to load available dates")
		}
		for _, day := range found {
			dates = append(dates, time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, d.loc))
		}
	}

	return dates, nil
}

// FreeSlotsOn свободные слоты на дату, уже начавшиеся не возвращаются.
// Кэшируется весь день, начавшиеся слоты отсекаются после чтения
func (d *SlotDirectory) FreeSlotsOn(ctx context.Context, date time.Time, instructorID *int64) ([]*model.Slot, error) {
	from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, d.loc)
	to := from.AddDate(0, 0, 1)

	now := d.clock()
	if !to.After(now) {
		return []*model.Slot{}, nil
	}

	day, err := d.Query(ctx, model.SlotFilter{
		InstructorID: instructorID,
		Availability: model.AvailabilityFree,
		From:         &from,
		To:           &to,
	})
	if err != nil {
		return nil, err
	}

	upcoming := make([]*model.Slot, 0, len(day))
	for _, slot := range day {
		if !slot.StartTime.Before(now) {
			upcoming = append(upcoming, slot)
		}
	}
	return upcoming, nil
}

// Invalidate сбрасывает кэш после изменения занятости
func (d *SlotDirectory) Invalidate(ctx context.Context) {
	if err := d.cache.Invalidate(ctx); err != nil {
		d.logger.Warn("Failed to invalidate slot cache", zap.Error(err))
	}
}

func slotCacheKey(filter model.SlotFilter) string {
	parts := []string{"q"}
	if filter.InstructorID != nil {
		parts = append(parts, fmt.Sprintf("i=%d", *filter.InstructorID))
	}
	if filter.StudentID != nil {
		parts = append(parts, fmt.Sprintf("s=%d", *filter.StudentID))
	}
	if filter.TimeBucket != "" {
		parts = append(parts, "b="+string(filter.TimeBucket))
	}
	if filter.Availability != "" {
		parts = append(parts, "a="+string(filter.Availability))
	}
	if filter.From != nil {
		parts = append(parts, fmt.Sprintf("f=%d", filter.From.Unix()))
	}
	if filter.To != nil {
		parts = append(parts, fmt.Sprintf("t=%d", filter.To.Unix()))
	}
	return strings.Join(parts, ":")
}

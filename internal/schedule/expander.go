package schedule

import (
	"fmt"
	"iter"
	"time"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/apperr"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
)

// Validate проверяет шаблон целиком до сохранения
func Validate(t *model.AvailabilityTemplate) error {
	if t == nil {
		return apperr.Clone(apperr.ErrInvalidTemplate, "template is required")
	}
	if t.InstructorID <= 0 {
		return apperr.Clone(apperr.ErrInvalidTemplate, "instructor is required")
	}
	if dateOf(t.ValidTo, time.UTC).Before(dateOf(t.ValidFrom, time.UTC)) {
		return apperr.Clone(apperr.ErrInvalidTemplate, "valid_from must not be after valid_to")
	}

	for wd, raws := range t.Days {
		if wd < time.Sunday || wd > time.Saturday {
			return apperr.Clone(apperr.ErrInvalidTemplate, fmt.Sprintf("unknown weekday %d", wd))
		}

		var parsed []Interval
		for _, raw := range raws {
			if raw == "" {
				continue
			}
			if wd == time.Sunday {
				return apperr.Clone(apperr.ErrInvalidTemplate, "sunday classes are not supported")
			}

			interval, err := ParseInterval(raw)
			if err != nil {
				return err
			}

			for _, prev := range parsed {
				if prev == interval {
					return apperr.WithDetails(apperr.ErrInvalidTemplate,
						fmt.Sprintf("duplicate interval %s on %s", interval, wd),
						map[string]string{"interval": raw, "weekday": wd.String()})
				}
				if prev.Overlaps(interval) {
					return apperr.WithDetails(apperr.ErrInvalidTemplate,
						fmt.Sprintf("interval %s overlaps %s on %s", interval, prev, wd),
						map[string]string{"interval": raw, "weekday": wd.String()})
				}
			}
			parsed = append(parsed, interval)
		}
	}

	return nil
}

// Slots лениво разворачивает шаблон в слоты: даты по возрастанию, внутри дня в порядке объявления.
// Воскресенье и пустые строки пропускаются; на битом интервале отдаёт ошибку и останавливается.
// Последовательность можно обходить повторно, результат каждый раз одинаковый.
func Slots(t *model.AvailabilityTemplate, loc *time.Location) iter.Seq2[model.SlotSeed, error] {
	return func(yield func(model.SlotSeed, error) bool) {
		if loc == nil {
			loc = time.UTC
		}

		from := dateOf(t.ValidFrom, loc)
		to := dateOf(t.ValidTo, loc)

		for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
			wd := date.Weekday()
			if wd == time.Sunday {
				continue
			}

			for _, raw := range t.IntervalsFor(wd) {
				if raw == "" {
					continue
				}

				interval, err := ParseInterval(raw)
				if err != nil {
					yield(model.SlotSeed{}, err)
					return
				}

				seed := model.SlotSeed{
					InstructorID: t.InstructorID,
					TemplateID:   t.ID,
					Start:        interval.Start.On(date),
					End:          interval.End.On(date),
				}
				if !yield(seed, nil) {
					return
				}
			}
		}
	}
}

// Expand собирает все слоты шаблона в срез
func Expand(t *model.AvailabilityTemplate, loc *time.Location) ([]model.SlotSeed, error) {
	var seeds []model.SlotSeed
	for seed, err := range Slots(t, loc) {
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, seed)
	}
	return seeds, nil
}

// dateOf календарная дата момента, перенесённая в полночь указанной зоны
func dateOf(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

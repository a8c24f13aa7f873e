package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/apperr"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
)

// Interval разобранная строка "HH:MM-HH:MM" из шаблона
type Interval struct {
	Start model.ClockTime
	End   model.ClockTime
}

func (i Interval) String() string {
	return i.Start.String() + "-" + i.End.String()
}

// Duration длительность интервала
func (i Interval) Duration() time.Duration {
	return time.Duration(i.End.Minutes()-i.Start.Minutes()) * time.Minute
}

// Overlaps пересечение полуоткрытых интервалов [start, end)
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Minutes() < other.End.Minutes() && other.Start.Minutes() < i.End.Minutes()
}

// ParseInterval разбирает "HH:MM-HH:MM" (пробелы вокруг "-" допускаются)
func ParseInterval(raw string) (Interval, error) {
	startRaw, endRaw, ok := strings.Cut(raw, "-")
	if !ok {
		return Interval{}, invalidInterval(raw, "missing '-'")
	}

	start, err := parseClock(strings.TrimSpace(startRaw))
	if err != nil {
		return Interval{}, invalidInterval(raw, err.Error())
	}

	end, err := parseClock(strings.TrimSpace(endRaw))
	if err != nil {
		return Interval{}, invalidInterval(raw, err.Error())
	}

	interval := Interval{Start: start, End: end}
	if end.Minutes() <= start.Minutes() {
		return Interval{}, invalidInterval(raw, "end must be after start")
	}
	if interval.Duration() != model.ClassDuration {
		return Interval{}, invalidInterval(raw, fmt.Sprintf("duration must be %s", model.ClassDuration))
	}

	return interval, nil
}

func parseClock(raw string) (model.ClockTime, error) {
	hh, mm, ok := strings.Cut(raw, ":")
	if !ok {
		return model.ClockTime{}, fmt.Errorf("time %q is not HH:MM", raw)
	}
	if len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return model.ClockTime{}, fmt.Errorf("time %q is not HH:MM", raw)
	}

	hour, err := strconv.Atoi(hh)
	if err != nil {
		return model.ClockTime{}, fmt.Errorf("hour %q is not numeric", hh)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil {
		return model.ClockTime{}, fmt.Errorf("minute %q is not numeric", mm)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return model.ClockTime{}, fmt.Errorf("time %q out of range", raw)
	}

	return model.ClockTime{Hour: hour, Minute: minute}, nil
}

func invalidInterval(raw, reason string) error {
	return apperr.WithDetails(apperr.ErrInvalidTemplate,
		fmt.Sprintf("invalid interval %q: %s", raw, reason),
		map[string]string{"interval": raw})
}

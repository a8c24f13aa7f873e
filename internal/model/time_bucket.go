package model

import (
	"fmt"
	"strings"
	"time"
)

// TimeBucket часть учебного дня (08:20–21:00)
type TimeBucket string

const (
	TimeBucketMorning   TimeBucket = "morning"
	TimeBucketAfternoon TimeBucket = "afternoon"
	TimeBucketEvening   TimeBucket = "evening"
)

// ClockTime время суток без даты
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Minutes количество минут от полуночи
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

// On возвращает момент времени на указанную дату
func (c ClockTime) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour, c.Minute, 0, 0, date.Location())
}

// BucketRange полуоткрытый интервал [Start, End) по времени начала слота
type BucketRange struct {
	Start ClockTime
	End   ClockTime
}

var bucketRanges = map[TimeBucket]BucketRange{
	TimeBucketMorning:   {Start: ClockTime{8, 20}, End: ClockTime{13, 0}},
	TimeBucketAfternoon: {Start: ClockTime{13, 0}, End: ClockTime{18, 0}},
	TimeBucketEvening:   {Start: ClockTime{18, 0}, End: ClockTime{21, 0}},
}

// ParseTimeBucket разбирает значение фильтра; "night" из старого интерфейса = evening
func ParseTimeBucket(raw string) (TimeBucket, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return "", nil
	case "morning", "manana", "mañana":
		return TimeBucketMorning, nil
	case "afternoon", "tarde":
		return TimeBucketAfternoon, nil
	case "evening", "night", "noche":
		return TimeBucketEvening, nil
	default:
		return "", fmt.Errorf("unknown time bucket %q", raw)
	}
}

// Range возвращает границы части дня
func (b TimeBucket) Range() (BucketRange, bool) {
	r, ok := bucketRanges[b]
	return r, ok
}

// Contains проверяет попадает ли время начала в часть дня
func (b TimeBucket) Contains(t time.Time) bool {
	r, ok := bucketRanges[b]
	if !ok {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	return m >= r.Start.Minutes() && m < r.End.Minutes()
}

// BucketOf определяет часть дня для времени начала; false вне учебного дня
func BucketOf(t time.Time) (TimeBucket, bool) {
	for _, b := range []TimeBucket{TimeBucketMorning, TimeBucketAfternoon, TimeBucketEvening} {
		if b.Contains(t) {
			return b, true
		}
	}
	return "", false
}

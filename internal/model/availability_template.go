package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ClassDuration длительность одного занятия; другой гранулярности пока нет
const ClassDuration = 40 * time.Minute

// TemplateWeekdays дни недели, для которых в шаблоне есть строки (воскресенья нет)
var TemplateWeekdays = []time.Weekday{
	time.Monday,
	time.Tuesday,
	time.Wednesday,
	time.Thursday,
	time.Friday,
	time.Saturday,
}

// AvailabilityTemplate недельный шаблон доступности инструктора
type AvailabilityTemplate struct {
	ID           uuid.UUID                 `json:"id"`
	InstructorID int64                     `json:"instructor_id"`
	ValidFrom    time.Time                 `json:"valid_from"` // включительно
	ValidTo      time.Time                 `json:"valid_to"`   // включительно
	Days         map[time.Weekday][]string `json:"days"`       // "HH:MM-HH:MM", "" = пустая строка формы
	CreatedBy    string                    `json:"created_by"`
	CreatedAt    time.Time                 `json:"created_at"`
	SupersededAt *time.Time                `json:"superseded_at,omitempty"`
}

// IsActive шаблон не заменён более новым
func (t *AvailabilityTemplate) IsActive() bool {
	return t.SupersededAt == nil
}

// IntervalsFor возвращает интервалы дня недели в порядке объявления
func (t *AvailabilityTemplate) IntervalsFor(wd time.Weekday) []string {
	if t.Days == nil {
		return nil
	}
	return t.Days[wd]
}

// ParseWeekday разбирает английское название дня недели без учёта регистра
func ParseWeekday(name string) (time.Weekday, bool) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.EqualFold(wd.String(), name) {
			return wd, true
		}
	}
	return 0, false
}

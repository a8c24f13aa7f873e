package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
)

// FormatDateTime форматирует дату и время
func FormatDateTime(t time.Time) string {
	return t.Format("02.01.2006 15:04")
}

// FormatTimeRange форматирует диапазон времени
func FormatTimeRange(start, end time.Time) string {
	return fmt.Sprintf("%s-%s", start.Format("15:04"), end.Format("15:04"))
}

// GetWeekdayShortName возвращает краткое название дня недели на русском
func GetWeekdayShortName(weekday time.Weekday) string {
	names := []string{"Вс", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб"}
	if weekday >= 0 && int(weekday) < len(names) {
		return names[weekday]
	}
	return "?"
}

// PluralizeClasses возвращает правильное склонение слова "занятие"
func PluralizeClasses(count int) string {
	if count%10 == 1 && count%100 != 11 {
		return "занятие"
	}
	if count%10 >= 2 && count%10 <= 4 && (count%100 < 10 || count%100 >= 20) {
		return "занятия"
	}
	return "занятий"
}

// formatSlot "Пн 04.03.2024 08:20-09:00 (инструктор 3)"
func formatSlot(slot *model.Slot, loc *time.Location) string {
	start := slot.StartTime.In(loc)
	end := slot.EndTime.In(loc)
	return fmt.Sprintf("%s %s %s (инструктор %d)",
		GetWeekdayShortName(start.Weekday()),
		start.Format("02.01.2006"),
		FormatTimeRange(start, end),
		slot.InstructorID,
	)
}

// BookingMessage текст оповещения о новых записях
func BookingMessage(course *model.StudentCourse, assignments []*model.ClassAssignment, loc *time.Location) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "✅ <b>Новая запись</b>\n\n")
	fmt.Fprintf(&sb, "👤 Студент: %d, курс %d\n", course.StudentID, course.CourseID)
	fmt.Fprintf(&sb, "📚 Записано: %d %s\n", len(assignments), PluralizeClasses(len(assignments)))

	for _, a := range assignments {
		if a.Slot == nil {
			fmt.Fprintf(&sb, "• слот %d\n", a.SlotID)
			continue
		}
		fmt.Fprintf(&sb, "• %s\n", formatSlot(a.Slot, loc))
	}

	fmt.Fprintf(&sb, "\n🎟 Осталось: %d из %d", course.RemainingClasses, course.TotalClasses)

	return sb.String()
}

// ChangeMessage текст оповещения о переносе или отмене
func ChangeMessage(outcome *model.ChangeOutcome, loc *time.Location) string {
	var sb strings.Builder

	switch outcome.Outcome {
	case model.OutcomeRescheduled:
		sb.WriteString("🔁 <b>Занятие перенесено</b>\n\n")
	case model.OutcomeCancelled:
		sb.WriteString("❌ <b>Занятие отменено</b>\n\n")
	case model.OutcomeForfeited:
		sb.WriteString("⚠️ <b>Поздняя отмена: занятие сгорело</b>\n\n")
	}

	if outcome.Assignment != nil {
		fmt.Fprintf(&sb, "📋 Занятие %d, курс студента %d\n", outcome.Assignment.ID, outcome.Assignment.StudentCourseID)
	}
	if outcome.ReleasedSlot != nil {
		fmt.Fprintf(&sb, "🕐 Было: %s\n", formatSlot(outcome.ReleasedSlot, loc))
	}
	if outcome.NewSlot != nil {
		fmt.Fprintf(&sb, "🕐 Стало: %s\n", formatSlot(outcome.NewSlot, loc))
	}
	if outcome.CreditRestored {
		sb.WriteString("🎟 Занятие возвращено на баланс\n")
	}
	fmt.Fprintf(&sb, "🎟 Осталось: %d %s", outcome.RemainingClasses, PluralizeClasses(outcome.RemainingClasses))

	if outcome.Change != nil {
		if outcome.Change.Comment != "" {
			fmt.Fprintf(&sb, "\n💬 %s", html.EscapeString(outcome.Change.Comment))
		}
		if outcome.Change.RequestedBy != "" {
			fmt.Fprintf(&sb, "\n👤 %s, %s", html.EscapeString(outcome.Change.RequestedBy), FormatDateTime(outcome.Change.RequestedAt.In(loc)))
		}
	}

	return sb.String()
}

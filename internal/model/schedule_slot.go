package model

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotStatusFree   SlotStatus = "free"
	SlotStatusBooked SlotStatus = "booked"
)

// Slot конкретный слот занятия инструктора, сгенерированный из шаблона доступности
type Slot struct {
	ID              int64      `json:"id"`
	InstructorID    int64      `json:"instructor_id"`
	TemplateID      *uuid.UUID `json:"template_id,omitempty"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         time.Time  `json:"end_time"`
	Status          SlotStatus `json:"status"`
	StudentCourseID *int64     `json:"student_course_id"` // указатель - может быть nil
	CreatedAt       time.Time  `json:"created_at"`

	// Заполняется только при чтении через справочник слотов (не из schedule_slots)
	StudentID *int64 `json:"student_id,omitempty"`
}

// IsFree проверяет свободен ли слот
func (s *Slot) IsFree() bool {
	return s.Status == SlotStatusFree
}

// LeadTime возвращает сколько времени осталось до начала слота
func (s *Slot) LeadTime(now time.Time) time.Duration {
	return s.StartTime.Sub(now)
}

// SlotSeed результат разворачивания шаблона, ещё не сохранённый слот
type SlotSeed struct {
	InstructorID int64     `json:"instructor_id"`
	TemplateID   uuid.UUID `json:"template_id"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
}

// Availability фильтр занятости для справочника слотов
type Availability string

const (
	AvailabilityFree   Availability = "free"
	AvailabilityBooked Availability = "booked"
)

// SlotFilter параметры выборки слотов; все поля необязательные
type SlotFilter struct {
	InstructorID *int64
	StudentID    *int64
	TimeBucket   TimeBucket
	Availability Availability
	From         *time.Time
	To           *time.Time
}

package model

import "time"

type AssignmentStatus string

const (
	AssignmentStatusBooked    AssignmentStatus = "booked"    // Занятие назначено
	AssignmentStatusCancelled AssignmentStatus = "cancelled" // Отменено вовремя, кредит возвращён
	AssignmentStatusForfeited AssignmentStatus = "forfeited" // Отменено поздно, занятие сгорело
)

// ClassAssignment привязка слота к курсу студента
type ClassAssignment struct {
	ID              int64            `json:"id"`
	SlotID          int64            `json:"slot_id"`
	StudentCourseID int64            `json:"student_course_id"`
	Status          AssignmentStatus `json:"status"`
	RescheduleCount int              `json:"reschedule_count"`
	CreatedBy       string           `json:"created_by"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`

	// Дополнительные поля для удобства (не из БД)
	Slot *Slot `json:"slot,omitempty"`
}

// IsBooked проверяет что занятие активно
func (a *ClassAssignment) IsBooked() bool {
	return a.Status == AssignmentStatusBooked
}

package model

import "time"

// ChangeAction действие запроса: перенос или отмена
type ChangeAction int

const (
	ChangeActionReschedule ChangeAction = 1
	ChangeActionCancel     ChangeAction = 2
)

func (a ChangeAction) String() string {
	switch a {
	case ChangeActionReschedule:
		return "reschedule"
	case ChangeActionCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// ChangeOutcomeKind итоговый переход занятия
type ChangeOutcomeKind string

const (
	OutcomeRescheduled ChangeOutcomeKind = "rescheduled"
	OutcomeCancelled   ChangeOutcomeKind = "cancelled"
	OutcomeForfeited   ChangeOutcomeKind = "forfeited"
)

// RescheduleCancelRequest разовая команда на перенос/отмену занятия
type RescheduleCancelRequest struct {
	Action          ChangeAction `json:"action"`
	ClassID         int64        `json:"class_id"`
	StudentCourseID int64        `json:"student_course_id"`
	NewSlotID       *int64       `json:"new_slot_id,omitempty"`
	Comment         string       `json:"comment"`
	RequestedAt     time.Time    `json:"requested_at"`
	RequestedBy     string       `json:"requested_by"`
	// Явное согласие на потерю занятия при поздней отмене
	AcceptForfeiture bool `json:"accept_forfeiture"`
}

// ClassChange запись журнала переносов и отмен (только добавление)
type ClassChange struct {
	ID             int64             `json:"id"`
	AssignmentID   int64             `json:"assignment_id"`
	Action         ChangeAction      `json:"action"`
	Outcome        ChangeOutcomeKind `json:"outcome"`
	OldSlotID      int64             `json:"old_slot_id"`
	NewSlotID      *int64            `json:"new_slot_id,omitempty"`
	CreditRestored bool              `json:"credit_restored"`
	Comment        string            `json:"comment"`
	RequestedAt    time.Time         `json:"requested_at"`
	RequestedBy    string            `json:"requested_by"`
	CreatedAt      time.Time         `json:"created_at"`
}

// ChangeOutcome ответ workflow вызывающей стороне
type ChangeOutcome struct {
	Outcome          ChangeOutcomeKind `json:"outcome"`
	Assignment       *ClassAssignment  `json:"assignment"`
	ReleasedSlot     *Slot             `json:"released_slot"`
	NewSlot          *Slot             `json:"new_slot,omitempty"`
	CreditRestored   bool              `json:"credit_restored"`
	RemainingClasses int               `json:"remaining_classes"`
	Change           *ClassChange      `json:"change"`
}

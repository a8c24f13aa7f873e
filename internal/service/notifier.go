package service

import (
	"context"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
)

// Notifier оповещает персонал о зафиксированных изменениях; вызывается после коммита
type Notifier interface {
	ClassesBooked(ctx context.Context, course *model.StudentCourse, assignments []*model.ClassAssignment) error
	ClassChanged(ctx context.Context, outcome *model.ChangeOutcome) error
}

// NopNotifier используется когда оповещения выключены
type NopNotifier struct{}

func (NopNotifier) ClassesBooked(context.Context, *model.StudentCourse, []*model.ClassAssignment) error {
	return nil
}

func (NopNotifier) ClassChanged(context.Context, *model.ChangeOutcome) error {
	return nil
}

package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/apperr"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/repository"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/repository/base"
)

// BookingService движок бронирования: слот + списание кредита + назначение в одной транзакции
type BookingService struct {
	tx        repository.TxManager
	directory *SlotDirectory
	notifier  Notifier
	metrics   *MetricsService
	clock     func() time.Time
	logger    *zap.Logger
}

func NewBookingService(
	tx repository.TxManager,
	directory *SlotDirectory,
	notifier Notifier,
	metrics *MetricsService,
	clock func() time.Time,
	logger *zap.Logger,
) *BookingService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		tx:        tx,
		directory: directory,
		notifier:  notifier,
		metrics:   metrics,
		clock:     clock,
		logger:    logger,
	}
}

// BookSingle записывает курс студента на один свободный слот
func (s *BookingService) BookSingle(ctx context.Context, studentCourseID, slotID int64, createdBy string) (*model.ClassAssignment, error) {
	if studentCourseID <= 0 || slotID <= 0 {
		return nil, apperr.Clone(apperr.ErrValidation, "student_course_id and slot_id are required")
	}

	now := s.clock()

	var (
		assignment *model.ClassAssignment
		course     *model.StudentCourse
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		// Блокируем слот первым: порядок блокировок слоты -> реестр
		slot, err := repos.Slots.GetByIDForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		if err := checkBookable(slot, slotID, now); err != nil {
			return err
		}

		course, err = lockBookableCourse(ctx, repos.Courses, studentCourseID, 1)
		if err != nil {
			return err
		}

		booked, err := repos.Slots.Book(ctx, slotID, studentCourseID)
		if err != nil {
			return err
		}
		if !booked {
			return apperr.Clone(apperr.ErrSlotNotFree, fmt.Sprintf("slot %d is not free", slotID))
		}

		if err := reserveCredit(ctx, repos.Courses, studentCourseID, 1); err != nil {
			return err
		}
		course.RemainingClasses--

		assignment = &model.ClassAssignment{
			SlotID:          slotID,
			StudentCourseID: studentCourseID,
			Status:          model.AssignmentStatusBooked,
			CreatedBy:       createdBy,
		}
		if err := repos.Assignments.Create(ctx, assignment); err != nil {
			if base.IsUniqueViolation(err) {
				return apperr.Clone(apperr.ErrSlotNotFree, fmt.Sprintf("slot %d is not free", slotID))
			}
			return err
		}
		slot.Status = model.SlotStatusBooked
		slot.StudentCourseID = &studentCourseID
		assignment.Slot = slot

		return nil
	})
	s.metrics.RecordBooking("single", err, 1)
	if err != nil {
		s.logger.Info("Booking rejected",
			zap.Int64("student_course_id", studentCourseID),
			zap.Int64("slot_id", slotID),
			zap.Error(err),
		)
		return nil, internalError(err, "failed to book slot")
	}

	s.logger.Info("Slot booked",
		zap.Int64("assignment_id", assignment.ID),
		zap.Int64("student_course_id", studentCourseID),
		zap.Int64("slot_id", slotID),
		zap.Int("remaining_classes", course.RemainingClasses),
		zap.String("created_by", createdBy),
	)

	s.afterCommit(ctx, course, []*model.ClassAssignment{assignment})

	return assignment, nil
}

// BookBatch записывает на несколько слотов сразу: либо все, либо ни одного
func (s *BookingService) BookBatch(ctx context.Context, studentCourseID int64, slotIDs []int64, createdBy string) ([]*model.ClassAssignment, error) {
	if studentCourseID <= 0 {
		return nil, apperr.Clone(apperr.ErrValidation, "student_course_id is required")
	}
	if len(slotIDs) == 0 {
		return nil, apperr.Clone(apperr.ErrValidation, "slot_ids must not be empty")
	}

	sorted := slices.Clone(slotIDs)
	slices.Sort(sorted)
	for i := range sorted {
		if sorted[i] <= 0 {
			return nil, apperr.Clone(apperr.ErrValidation, "slot ids must be positive")
		}
		if i > 0 && sorted[i] == sorted[i-1] {
			return nil, apperr.WithDetails(apperr.ErrValidation,
				fmt.Sprintf("slot %d is listed twice", sorted[i]),
				map[string]any{"slot_id": sorted[i]})
		}
	}

	now := s.clock()

	var (
		assignments []*model.ClassAssignment
		course      *model.StudentCourse
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		locked, err := repos.Slots.LockByIDs(ctx, sorted)
		if err != nil {
			return err
		}

		byID := make(map[int64]*model.Slot, len(locked))
		for _, slot := range locked {
			byID[slot.ID] = slot
		}

		var conflicts []int64
		for _, id := range slotIDs {
			slot, ok := byID[id]
			if !ok || !slot.IsFree() || !slot.StartTime.After(now) {
				conflicts = append(conflicts, id)
			}
		}
		if len(conflicts) > 0 {
			return apperr.WithDetails(apperr.ErrOverlappingBatchConflict, "",
				map[string]any{"conflicting_slot_ids": conflicts})
		}

		course, err = lockBookableCourse(ctx, repos.Courses, studentCourseID, len(slotIDs))
		if err != nil {
			return err
		}

		assignments = make([]*model.ClassAssignment, 0, len(slotIDs))
		for _, id := range slotIDs {
			booked, err := repos.Slots.Book(ctx, id, studentCourseID)
			if err != nil {
				return err
			}
			if !booked {
				return apperr.WithDetails(apperr.ErrOverlappingBatchConflict, "",
					map[string]any{"conflicting_slot_ids": []int64{id}})
			}
		}

		if err := reserveCredit(ctx, repos.Courses, studentCourseID, len(slotIDs)); err != nil {
			return err
		}
		course.RemainingClasses -= len(slotIDs)

		for _, id := range slotIDs {
			a := &model.ClassAssignment{
				SlotID:          id,
				StudentCourseID: studentCourseID,
				Status:          model.AssignmentStatusBooked,
				CreatedBy:       createdBy,
			}
			if err := repos.Assignments.Create(ctx, a); err != nil {
				if base.IsUniqueViolation(err) {
					return apperr.WithDetails(apperr.ErrOverlappingBatchConflict, "",
						map[string]any{"conflicting_slot_ids": []int64{id}})
				}
				return err
			}
			slot := byID[id]
			slot.Status = model.SlotStatusBooked
			slot.StudentCourseID = &studentCourseID
			a.Slot = slot
			assignments = append(assignments, a)
		}

		return nil
	})
	s.metrics.RecordBooking("batch", err, len(slotIDs))
	if err != nil {
		s.logger.Info("Batch booking rejected",
			zap.Int64("student_course_id", studentCourseID),
			zap.Int64s("slot_ids", slotIDs),
			zap.Error(err),
		)
		return nil, internalError(err, "failed to book slots")
	}

	s.logger.Info("Slots booked in batch",
		zap.Int64("student_course_id", studentCourseID),
		zap.Int64s("slot_ids", slotIDs),
		zap.Int("remaining_classes", course.RemainingClasses),
		zap.String("created_by", createdBy),
	)

	s.afterCommit(ctx, course, assignments)

	return assignments, nil
}

// Classes занятия курса студента со слотами; status "" = все.
// id занятия отсюда нужен для переноса и отмены
func (s *BookingService) Classes(ctx context.Context, studentCourseID int64, status model.AssignmentStatus) ([]*model.ClassAssignment, error) {
	if studentCourseID <= 0 {
		return nil, apperr.Clone(apperr.ErrValidation, "student_course_id is required")
	}
	switch status {
	case "", model.AssignmentStatusBooked, model.AssignmentStatusCancelled, model.AssignmentStatusForfeited:
	default:
		return nil, apperr.Clone(apperr.ErrValidation, fmt.Sprintf("unknown class status %q", status))
	}

	var classes []*model.ClassAssignment
	err := s.tx.WithTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		course, err := repos.Courses.GetByID(ctx, studentCourseID)
		if err != nil {
			return err
		}
		if course == nil {
			return apperr.Clone(apperr.ErrNotFound, "student course not found")
		}

		all, err := repos.Assignments.ListByStudentCourse(ctx, studentCourseID)
		if err != nil {
			return err
		}

		classes = make([]*model.ClassAssignment, 0, len(all))
		for _, a := range all {
			if status != "" && a.Status != status {
				continue
			}
			if a.Slot, err = repos.Slots.GetByID(ctx, a.SlotID); err != nil {
				return err
			}
			classes = append(classes, a)
		}
		return nil
	})
	if err != nil {
		return nil, internalError(err, "failed to list classes")
	}

	return classes, nil
}

// afterCommit кэш, оповещение; ошибки только логируются, бронь уже зафиксирована
func (s *BookingService) afterCommit(ctx context.Context, course *model.StudentCourse, assignments []*model.ClassAssignment) {
	if s.directory != nil {
		s.directory.Invalidate(ctx)
	}
	if err := s.notifier.ClassesBooked(ctx, course, assignments); err != nil {
		s.logger.Warn("Failed to notify staff about booking",
			zap.Int64("student_course_id", course.ID),
			zap.Error(err),
		)
	}
}

// checkBookable проверки заблокированного слота перед записью
func checkBookable(slot *model.Slot, slotID int64, now time.Time) error {
	if slot == nil {
		return apperr.Clone(apperr.ErrNotFound, fmt.Sprintf("slot %d not found", slotID))
	}
	if !slot.StartTime.After(now) {
		return apperr.Clone(apperr.ErrSlotInPast, fmt.Sprintf("slot %d has already started", slotID))
	}
	if !slot.IsFree() {
		return apperr.Clone(apperr.ErrSlotNotFree, fmt.Sprintf("slot %d is not free", slotID))
	}
	return nil
}

// lockBookableCourse блокирует запись реестра и проверяет что на count занятий хватает кредита
func lockBookableCourse(ctx context.Context, courses repository.StudentCourseRepository, id int64, count int) (*model.StudentCourse, error) {
	course, err := courses.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, apperr.Clone(apperr.ErrNotFound, "student course not found")
	}
	if !course.IsActive() {
		return nil, apperr.ErrCourseInactive
	}
	if course.RemainingClasses < count {
		return nil, apperr.WithDetails(apperr.ErrInsufficientCredit, "", map[string]int{
			"requested": count,
			"remaining": course.RemainingClasses,
		})
	}
	return course, nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/apperr"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/repository"
)

// DefaultNoticeCutoff минимальный запас до начала занятия для переноса/отмены
const DefaultNoticeCutoff = 24 * time.Hour

// WorkflowService перенос и отмена назначенных занятий
type WorkflowService struct {
	tx           repository.TxManager
	assignments  repository.AssignmentRepository
	directory    *SlotDirectory
	notifier     Notifier
	metrics      *MetricsService
	clock        func() time.Time
	noticeCutoff time.Duration
	logger       *zap.Logger
}

func NewWorkflowService(
	tx repository.TxManager,
	assignments repository.AssignmentRepository,
	directory *SlotDirectory,
	notifier Notifier,
	metrics *MetricsService,
	clock func() time.Time,
	noticeCutoff time.Duration,
	logger *zap.Logger,
) *WorkflowService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if clock == nil {
		clock = time.Now
	}
	if noticeCutoff <= 0 {
		noticeCutoff = DefaultNoticeCutoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{
		tx:           tx,
		assignments:  assignments,
		directory:    directory,
		notifier:     notifier,
		metrics:      metrics,
		clock:        clock,
		noticeCutoff: noticeCutoff,
		logger:       logger,
	}
}

// NoticeCutoff действующий порог уведомления
func (s *WorkflowService) NoticeCutoff() time.Duration {
	return s.noticeCutoff
}

// Submit выполняет запрос на перенос или отмену.
// Порог проверяется на каждый запрос по текущему времени, для любого инициатора.
func (s *WorkflowService) Submit(ctx context.Context, req model.RescheduleCancelRequest) (*model.ChangeOutcome, error) {
	if err := validateChangeRequest(req); err != nil {
		s.metrics.RecordClassChange(req.Action.String(), resultLabel(err))
		return nil, err
	}

	now := s.clock()
	if req.RequestedAt.IsZero() {
		req.RequestedAt = now
	}

	// Читаем без блокировки только чтобы узнать слот; дальше слоты блокируются первыми
	current, err := s.assignments.GetByID(ctx, req.ClassID)
	if err != nil {
		return nil, internalError(err, "failed to load class")
	}
	if err := checkChangeable(current, req); err != nil {
		s.metrics.RecordClassChange(req.Action.String(), resultLabel(err))
		return nil, err
	}

	var outcome *model.ChangeOutcome
	err = s.tx.WithTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		var err error
		switch req.Action {
		case model.ChangeActionReschedule:
			outcome, err = s.reschedule(ctx, repos, req, current.SlotID, now)
		case model.ChangeActionCancel:
			outcome, err = s.cancel(ctx, repos, req, current.SlotID, now)
		}
		return err
	})
	if err != nil {
		s.metrics.RecordClassChange(req.Action.String(), resultLabel(err))
		s.logger.Info("Class change rejected",
			zap.Int64("class_id", req.ClassID),
			zap.String("action", req.Action.String()),
			zap.String("requested_by", req.RequestedBy),
			zap.Error(err),
		)
		return nil, internalError(err, "failed to change class")
	}
	s.metrics.RecordClassChange(req.Action.String(), string(outcome.Outcome))

	s.logger.Info("Class changed",
		zap.Int64("class_id", req.ClassID),
		zap.String("outcome", string(outcome.Outcome)),
		zap.Int64("released_slot_id", outcome.ReleasedSlot.ID),
		zap.Bool("credit_restored", outcome.CreditRestored),
		zap.Int("remaining_classes", outcome.RemainingClasses),
		zap.String("requested_by", req.RequestedBy),
	)

	if s.directory != nil {
		s.directory.Invalidate(ctx)
	}
	if err := s.notifier.ClassChanged(ctx, outcome); err != nil {
		s.logger.Warn("Failed to notify staff about class change",
			zap.Int64("class_id", req.ClassID),
			zap.Error(err),
		)
	}

	return outcome, nil
}

func (s *WorkflowService) reschedule(ctx context.Context, repos repository.TxRepositories, req model.RescheduleCancelRequest, oldSlotID int64, now time.Time) (*model.ChangeOutcome, error) {
	newSlotID := *req.NewSlotID

	ids := []int64{oldSlotID, newSlotID}
	if newSlotID < oldSlotID {
		ids = []int64{newSlotID, oldSlotID}
	}
	locked, err := repos.Slots.LockByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	oldSlot, newSlot := pickSlot(locked, oldSlotID), pickSlot(locked, newSlotID)
	if oldSlot == nil {
		return nil, fmt.Errorf("slot %d of class %d is missing", oldSlotID, req.ClassID)
	}

	if err := s.checkNotice(oldSlot, now); err != nil {
		return nil, err
	}
	if err := checkBookable(newSlot, newSlotID, now); err != nil {
		return nil, err
	}

	assignment, err := lockActiveAssignment(ctx, repos.Assignments, req, oldSlotID)
	if err != nil {
		return nil, err
	}

	booked, err := repos.Slots.Book(ctx, newSlotID, assignment.StudentCourseID)
	if err != nil {
		return nil, err
	}
	if !booked {
		return nil, apperr.Clone(apperr.ErrSlotNotFree, fmt.Sprintf("slot %d is not free", newSlotID))
	}

	if err := releaseSlot(ctx, repos.Slots, oldSlot, assignment.StudentCourseID); err != nil {
		return nil, err
	}

	if err := repos.Assignments.Rebind(ctx, assignment, newSlotID); err != nil {
		return nil, err
	}

	course, err := repos.Courses.GetByID(ctx, assignment.StudentCourseID)
	if err != nil {
		return nil, err
	}

	change := &model.ClassChange{
		AssignmentID: assignment.ID,
		Action:       req.Action,
		Outcome:      model.OutcomeRescheduled,
		OldSlotID:    oldSlotID,
		NewSlotID:    &newSlotID,
		Comment:      req.Comment,
		RequestedAt:  req.RequestedAt,
		RequestedBy:  req.RequestedBy,
	}
	if err := repos.Changes.Create(ctx, change); err != nil {
		return nil, err
	}

	newSlot.Status = model.SlotStatusBooked
	newSlot.StudentCourseID = &assignment.StudentCourseID
	assignment.Slot = newSlot

	return &model.ChangeOutcome{
		Outcome:          model.OutcomeRescheduled,
		Assignment:       assignment,
		ReleasedSlot:     oldSlot,
		NewSlot:          newSlot,
		RemainingClasses: remainingOf(course),
		Change:           change,
	}, nil
}

func (s *WorkflowService) cancel(ctx context.Context, repos repository.TxRepositories, req model.RescheduleCancelRequest, slotID int64, now time.Time) (*model.ChangeOutcome, error) {
	slot, err := repos.Slots.GetByIDForUpdate(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, fmt.Errorf("slot %d of class %d is missing", slotID, req.ClassID)
	}

	noticeErr := s.checkNotice(slot, now)
	late := noticeErr != nil
	if late && !req.AcceptForfeiture {
		return nil, noticeErr
	}

	assignment, err := lockActiveAssignment(ctx, repos.Assignments, req, slotID)
	if err != nil {
		return nil, err
	}

	if err := releaseSlot(ctx, repos.Slots, slot, assignment.StudentCourseID); err != nil {
		return nil, err
	}

	outcome := model.OutcomeCancelled
	status := model.AssignmentStatusCancelled
	if late {
		outcome = model.OutcomeForfeited
		status = model.AssignmentStatusForfeited
	} else if err := releaseCredit(ctx, repos.Courses, assignment.StudentCourseID, 1, s.metrics, s.logger); err != nil {
		return nil, err
	}

	if err := repos.Assignments.UpdateStatus(ctx, assignment, status); err != nil {
		return nil, err
	}

	course, err := repos.Courses.GetByID(ctx, assignment.StudentCourseID)
	if err != nil {
		return nil, err
	}

	change := &model.ClassChange{
		AssignmentID:   assignment.ID,
		Action:         req.Action,
		Outcome:        outcome,
		OldSlotID:      slotID,
		CreditRestored: !late,
		Comment:        req.Comment,
		RequestedAt:    req.RequestedAt,
		RequestedBy:    req.RequestedBy,
	}
	if err := repos.Changes.Create(ctx, change); err != nil {
		return nil, err
	}

	assignment.Slot = slot

	return &model.ChangeOutcome{
		Outcome:          outcome,
		Assignment:       assignment,
		ReleasedSlot:     slot,
		CreditRestored:   !late,
		RemainingClasses: remainingOf(course),
		Change:           change,
	}, nil
}

// checkNotice slot.start - now >= cutoff
func (s *WorkflowService) checkNotice(slot *model.Slot, now time.Time) error {
	lead := slot.LeadTime(now)
	if lead >= s.noticeCutoff {
		return nil
	}
	return apperr.WithDetails(apperr.ErrNoticeWindowExpired, "", map[string]any{
		"slot_start":     slot.StartTime,
		"lead_time":      lead.Truncate(time.Minute).String(),
		"required_lead":  s.noticeCutoff.String(),
		"forfeit_option": "set accept_forfeiture to cancel and lose the class",
	})
}

func validateChangeRequest(req model.RescheduleCancelRequest) error {
	if req.ClassID <= 0 || req.StudentCourseID <= 0 {
		return apperr.Clone(apperr.ErrValidation, "class_id and student_course_id are required")
	}
	switch req.Action {
	case model.ChangeActionReschedule:
		if req.NewSlotID == nil || *req.NewSlotID <= 0 {
			return apperr.Clone(apperr.ErrValidation, "new_slot_id is required to reschedule")
		}
	case model.ChangeActionCancel:
	default:
		return apperr.Clone(apperr.ErrValidation, fmt.Sprintf("unknown action %d", req.Action))
	}
	return nil
}

// checkChangeable занятие существует, принадлежит курсу и ещё активно
func checkChangeable(a *model.ClassAssignment, req model.RescheduleCancelRequest) error {
	if a == nil {
		return apperr.Clone(apperr.ErrNotFound, fmt.Sprintf("class %d not found", req.ClassID))
	}
	if a.StudentCourseID != req.StudentCourseID {
		return apperr.Clone(apperr.ErrValidation, "class does not belong to the student course")
	}
	if !a.IsBooked() {
		return apperr.Clone(apperr.ErrClassNotActive, fmt.Sprintf("class %d is %s", a.ID, a.Status))
	}
	if req.NewSlotID != nil && *req.NewSlotID == a.SlotID {
		return apperr.Clone(apperr.ErrValidation, "new slot is the current slot")
	}
	return nil
}

// lockActiveAssignment блокирует занятие и проверяет что оно всё ещё на ожидаемом слоте
func lockActiveAssignment(ctx context.Context, assignments repository.AssignmentRepository, req model.RescheduleCancelRequest, slotID int64) (*model.ClassAssignment, error) {
	a, err := assignments.GetByIDForUpdate(ctx, req.ClassID)
	if err != nil {
		return nil, err
	}
	if err := checkChangeable(a, req); err != nil {
		return nil, err
	}
	if a.SlotID != slotID {
		return nil, apperr.Clone(apperr.ErrClassNotActive, fmt.Sprintf("class %d was changed concurrently", a.ID))
	}
	return a, nil
}

func releaseSlot(ctx context.Context, slots repository.SlotRepository, slot *model.Slot, studentCourseID int64) error {
	released, err := slots.Release(ctx, slot.ID, studentCourseID)
	if err != nil {
		return err
	}
	if !released {
		return fmt.Errorf("slot %d is not bound to student course %d", slot.ID, studentCourseID)
	}
	slot.Status = model.SlotStatusFree
	slot.StudentCourseID = nil
	return nil
}

func pickSlot(slots []*model.Slot, id int64) *model.Slot {
	for _, slot := range slots {
		if slot.ID == id {
			return slot
		}
	}
	return nil
}

func remainingOf(course *model.StudentCourse) int {
	if course == nil {
		return 0
	}
	return course.RemainingClasses
}

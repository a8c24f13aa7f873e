package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/apperr"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/repository"
)

// CourseAssignment один курс в запросе на назначение
type CourseAssignment struct {
	CourseID        int64           `json:"course_id" validate:"required,gt=0"`
	TotalClasses    int             `json:"total_classes" validate:"required,gt=0"`
	RegisteredValue decimal.Decimal `json:"registered_value"`
}

// AssignCoursesRequest назначение курсов студенту (lista_cursos)
type AssignCoursesRequest struct {
	StudentID int64              `json:"student_id" validate:"required,gt=0"`
	Courses   []CourseAssignment `json:"courses" validate:"required,min=1,dive"`
	CreatedBy string             `json:"created_by"`
}

// UpdateStudentCourseRequest изменение состояния и результата курса
type UpdateStudentCourseRequest struct {
	State   *model.CourseState  `json:"state" validate:"omitempty,oneof=1 2"`
	Result  *model.CourseResult `json:"result" validate:"omitempty,oneof=1 2 3 4"`
	Comment *string             `json:"comment" validate:"omitempty,max=1000"`
}

// LedgerService кредитный реестр: остаток занятий по курсам студентов
type LedgerService struct {
	courses   repository.StudentCourseRepository
	tx        repository.TxManager
	validator *validator.Validate
	metrics   *MetricsService
	clock     func() time.Time
	logger    *zap.Logger
}

func NewLedgerService(
	courses repository.StudentCourseRepository,
	tx repository.TxManager,
	validate *validator.Validate,
	metrics *MetricsService,
	clock func() time.Time,
	logger *zap.Logger,
) *LedgerService {
	if validate == nil {
		validate = validator.New()
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{courses: courses, tx: tx, validator: validate, metrics: metrics, clock: clock, logger: logger}
}

// Remaining остаток занятий курса
func (s *LedgerService) Remaining(ctx context.Context, studentCourseID int64) (int, error) {
	sc, err := s.courses.GetByID(ctx, studentCourseID)
	if err != nil {
		return 0, internalError(err, "failed to load student course")
	}
	if sc == nil {
		return 0, apperr.Clone(apperr.ErrNotFound, "student course not found")
	}
	return sc.RemainingClasses, nil
}

// Reserve списывает count занятий одним условным UPDATE
func (s *LedgerService) Reserve(ctx context.Context, studentCourseID int64, count int) error {
	return reserveCredit(ctx, s.courses, studentCourseID, count)
}

// Release возвращает count занятий; превышение купленного это дефект и логируется как ERROR
func (s *LedgerService) Release(ctx context.Context, studentCourseID int64, count int) error {
	return releaseCredit(ctx, s.courses, studentCourseID, count, s.metrics, s.logger)
}

// ApplyInactivityCorrection переводит давно приостановленные курсы студента в failed
func (s *LedgerService) ApplyInactivityCorrection(ctx context.Context, studentID int64) (int64, error) {
	now := s.clock()

	n, err := s.courses.FailInactive(ctx, studentID, model.InactivityCutoff(now))
	if err != nil {
		return 0, internalError(err, "failed to apply inactivity correction")
	}

	if n > 0 {
		s.logger.Info("Suspended courses failed by inactivity",
			zap.Int64("student_id", studentID),
			zap.Int64("count", n),
		)
	}

	return n, nil
}

// ListStudentCourses курсы студента после коррекции по неактивности
func (s *LedgerService) ListStudentCourses(ctx context.Context, studentID int64) ([]*model.StudentCourse, error) {
	if _, err := s.ApplyInactivityCorrection(ctx, studentID); err != nil {
		return nil, err
	}

	courses, err := s.courses.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, internalError(err, "failed to list student courses")
	}

	return courses, nil
}

// AssignCourses создаёт записи реестра с полным остатком
func (s *LedgerService) AssignCourses(ctx context.Context, req AssignCoursesRequest) ([]*model.StudentCourse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid course assignment payload")
	}
	for _, c := range req.Courses {
		if c.RegisteredValue.IsNegative() {
			return nil, apperr.Clone(apperr.ErrValidation, "registered value must not be negative")
		}
	}

	created := make([]*model.StudentCourse, 0, len(req.Courses))
	err := s.tx.WithTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		for _, c := range req.Courses {
			sc := &model.StudentCourse{
				StudentID:        req.StudentID,
				CourseID:         c.CourseID,
				TotalClasses:     c.TotalClasses,
				RemainingClasses: c.TotalClasses,
				State:            model.CourseStateActive,
				Result:           model.CourseResultPending,
				RegisteredValue:  c.RegisteredValue,
				CreatedBy:        req.CreatedBy,
			}
			if err := repos.Courses.Create(ctx, sc); err != nil {
				return err
			}
			created = append(created, sc)
		}
		return nil
	})
	if err != nil {
		return nil, internalError(err, "failed to assign courses")
	}

	s.logger.Info("Courses assigned",
		zap.Int64("student_id", req.StudentID),
		zap.Int("count", len(created)),
		zap.String("created_by", req.CreatedBy),
	)

	return created, nil
}

// UpdateStudentCourse меняет состояние/результат курса
func (s *LedgerService) UpdateStudentCourse(ctx context.Context, id int64, req UpdateStudentCourseRequest) (*model.StudentCourse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student course payload")
	}
	if req.State == nil && req.Result == nil && req.Comment == nil {
		return nil, apperr.Clone(apperr.ErrValidation, "nothing to update")
	}

	var updated *model.StudentCourse
	err := s.tx.WithTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		sc, err := repos.Courses.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if sc == nil {
			return apperr.Clone(apperr.ErrNotFound, "student course not found")
		}

		if req.State != nil {
			sc.State = *req.State
		}
		if req.Result != nil {
			sc.Result = *req.Result
		}
		if req.Comment != nil {
			sc.Comment = *req.Comment
		}

		if err := repos.Courses.UpdateStatus(ctx, sc); err != nil {
			return err
		}
		updated = sc
		return nil
	})
	if err != nil {
		return nil, internalError(err, "failed to update student course")
	}

	s.logger.Info("Student course updated",
		zap.Int64("student_course_id", id),
		zap.Int("state", int(updated.State)),
		zap.String("result", updated.Result.String()),
	)

	return updated, nil
}

// reserveCredit общая логика списания для реестра и движка бронирования
func reserveCredit(ctx context.Context, courses repository.StudentCourseRepository, id int64, count int) error {
	if count <= 0 {
		return apperr.Clone(apperr.ErrValidation, "count must be positive")
	}

	ok, err := courses.Debit(ctx, id, count)
	if err != nil {
		return internalError(err, "failed to reserve credit")
	}
	if ok {
		return nil
	}

	sc, err := courses.GetByID(ctx, id)
	if err != nil {
		return internalError(err, "failed to load student course")
	}
	if sc == nil {
		return apperr.Clone(apperr.ErrNotFound, "student course not found")
	}
	return apperr.WithDetails(apperr.ErrInsufficientCredit, "", map[string]int{
		"requested": count,
		"remaining": sc.RemainingClasses,
	})
}

func releaseCredit(ctx context.Context, courses repository.StudentCourseRepository, id int64, count int, metrics *MetricsService, logger *zap.Logger) error {
	if count <= 0 {
		return apperr.Clone(apperr.ErrValidation, "count must be positive")
	}

	ok, err := courses.Credit(ctx, id, count)
	if err != nil {
		return internalError(err, "failed to release credit")
	}
	if ok {
		return nil
	}

	sc, err := courses.GetByID(ctx, id)
	if err != nil {
		return internalError(err, "failed to load student course")
	}
	if sc == nil {
		return apperr.Clone(apperr.ErrNotFound, "student course not found")
	}

	metrics.RecordOverRelease()
	logger.Error("Credit release exceeds purchased classes",
		zap.Int64("student_course_id", id),
		zap.Int("count", count),
		zap.Int("remaining", sc.RemainingClasses),
		zap.Int("total", sc.TotalClasses),
	)
	return apperr.ErrOverRelease
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/apperr"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/repository"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/schedule"
)

// DateLayout формат календарных дат в запросах
const DateLayout = "2006-01-02"

// AvailabilityRequest форма недельной доступности инструктора
type AvailabilityRequest struct {
	InstructorID int64               `json:"instructor_id" validate:"required,gt=0"`
	ValidFrom    string              `json:"valid_from" validate:"required,datetime=2006-01-02"`
	ValidTo      string              `json:"valid_to" validate:"required,datetime=2006-01-02"`
	Days         map[string][]string `json:"days" validate:"required"` // "monday": ["08:20-09:00", ""]
	CreatedBy    string              `json:"created_by"`
}

// SubmitAvailabilityResult сохранённый шаблон и число созданных слотов
type SubmitAvailabilityResult struct {
	Template       *model.AvailabilityTemplate `json:"template"`
	SlotsGenerated int                         `json:"slots_generated"`
	SlotsExisting  int                         `json:"slots_existing"`
	SlotsSkipped   int                         `json:"slots_skipped_past"`
}

// AvailabilityService шаблоны доступности и генерация слотов
type AvailabilityService struct {
	templates repository.TemplateRepository
	tx        repository.TxManager
	directory *SlotDirectory
	validator *validator.Validate
	metrics   *MetricsService
	loc       *time.Location
	clock     func() time.Time
	logger    *zap.Logger
}

func NewAvailabilityService(
	templates repository.TemplateRepository,
	tx repository.TxManager,
	directory *SlotDirectory,
	validate *validator.Validate,
	metrics *MetricsService,
	loc *time.Location,
	clock func() time.Time,
	logger *zap.Logger,
) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		templates: templates,
		tx:        tx,
		directory: directory,
		validator: validate,
		metrics:   metrics,
		loc:       loc,
		clock:     clock,
		logger:    logger,
	}
}

// Preview разворачивает шаблон без сохранения
func (s *AvailabilityService) Preview(ctx context.Context, req AvailabilityRequest) ([]model.SlotSeed, error) {
	tmpl, err := s.buildTemplate(req)
	if err != nil {
		return nil, err
	}

	seeds, err := schedule.Expand(tmpl, s.loc)
	if err != nil {
		return nil, err
	}
	if seeds == nil {
		seeds = []model.SlotSeed{}
	}

	return seeds, nil
}

// Submit сохраняет шаблон, заменяя действующий, и создаёт будущие слоты.
// Уже существующие слоты (в том числе занятые) не трогаются.
func (s *AvailabilityService) Submit(ctx context.Context, req AvailabilityRequest) (*SubmitAvailabilityResult, error) {
	tmpl, err := s.buildTemplate(req)
	if err != nil {
		return nil, err
	}

	seeds, err := schedule.Expand(tmpl, s.loc)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	future := make([]model.SlotSeed, 0, len(seeds))
	for _, seed := range seeds {
		// Пропускаем прошедшие слоты
		if !seed.Start.After(now) {
			continue
		}
		future = append(future, seed)
	}

	result := &SubmitAvailabilityResult{Template: tmpl, SlotsSkipped: len(seeds) - len(future)}
	err = s.tx.WithTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		superseded, err := repos.Templates.SupersedeActive(ctx, tmpl.InstructorID, now)
		if err != nil {
			return err
		}
		if superseded > 0 {
			s.logger.Info("Previous availability template superseded",
				zap.Int64("instructor_id", tmpl.InstructorID),
			)
		}

		if err := repos.Templates.Create(ctx, tmpl); err != nil {
			return err
		}

		// id шаблона появляется только после Create
		for i := range future {
			future[i].TemplateID = tmpl.ID
		}

		created, err := repos.Slots.CreateSeeds(ctx, future)
		if err != nil {
			return err
		}
		result.SlotsGenerated = created
		result.SlotsExisting = len(future) - created
		return nil
	})
	if err != nil {
		return nil, internalError(err, "failed to save availability template")
	}

	s.metrics.RecordSlotsGenerated(result.SlotsGenerated)
	if s.directory != nil {
		s.directory.Invalidate(ctx)
	}

	s.logger.Info("Availability template submitted",
		zap.String("template_id", tmpl.ID.String()),
		zap.Int64("instructor_id", tmpl.InstructorID),
		zap.Time("valid_from", tmpl.ValidFrom),
		zap.Time("valid_to", tmpl.ValidTo),
		zap.Int("slots_generated", result.SlotsGenerated),
		zap.Int("slots_existing", result.SlotsExisting),
		zap.Int("slots_skipped_past", result.SlotsSkipped),
	)

	return result, nil
}

// Active действующий шаблон инструктора
func (s *AvailabilityService) Active(ctx context.Context, instructorID int64) (*model.AvailabilityTemplate, error) {
	tmpl, err := s.templates.GetActiveByInstructor(ctx, instructorID)
	if err != nil {
		return nil, internalError(err, "failed to load availability template")
	}
	if tmpl == nil {
		return nil, apperr.Clone(apperr.ErrNotFound, fmt.Sprintf("instructor %d has no active availability", instructorID))
	}
	return tmpl, nil
}

// buildTemplate проверяет форму и собирает шаблон
func (s *AvailabilityService) buildTemplate(req AvailabilityRequest) (*model.AvailabilityTemplate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperr.Wrap(err, apperr.ErrInvalidTemplate.Code, apperr.ErrInvalidTemplate.Status, "invalid availability payload")
	}

	from, err := time.ParseInLocation(DateLayout, req.ValidFrom, s.loc)
	if err != nil {
		return nil, apperr.Clone(apperr.ErrInvalidTemplate, "valid_from must be YYYY-MM-DD")
	}
	to, err := time.ParseInLocation(DateLayout, req.ValidTo, s.loc)
	if err != nil {
		return nil, apperr.Clone(apperr.ErrInvalidTemplate, "valid_to must be YYYY-MM-DD")
	}

	days := make(map[time.Weekday][]string, len(req.Days))
	for name, intervals := range req.Days {
		wd, ok := model.ParseWeekday(name)
		if !ok {
			return nil, apperr.Clone(apperr.ErrInvalidTemplate, fmt.Sprintf("unknown weekday %q", name))
		}
		days[wd] = intervals
	}

	tmpl := &model.AvailabilityTemplate{
		InstructorID: req.InstructorID,
		ValidFrom:    from,
		ValidTo:      to,
		Days:         days,
		CreatedBy:    req.CreatedBy,
	}
	if err := schedule.Validate(tmpl); err != nil {
		return nil, err
	}

	return tmpl, nil
}

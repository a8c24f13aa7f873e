package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TemplateRepository шаблоны доступности инструкторов
type TemplateRepository interface {
	Create(ctx context.Context, t *model.AvailabilityTemplate) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.AvailabilityTemplate, error)
	GetActiveByInstructor(ctx context.Context, instructorID int64) (*model.AvailabilityTemplate, error)
	SupersedeActive(ctx context.Context, instructorID int64, at time.Time) (int64, error)
}

const templateColumns = `id, instructor_id, valid_from, valid_to, days, created_by, created_at, superseded_at`

type TemplatePostgresRepository struct {
	*base.Repository
	logger *zap.Logger
}

func NewTemplateRepository(db base.Querier, logger *zap.Logger) *TemplatePostgresRepository {
	return &TemplatePostgresRepository{Repository: base.NewRepository(db), logger: logger}
}

// Create сохраняет новый шаблон; id генерируется если не задан
func (r *TemplatePostgresRepository) Create(ctx context.Context, t *model.AvailabilityTemplate) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	days, err := encodeDays(t.Days)
	if err != nil {
		return fmt.Errorf("encode template days: %w", err)
	}

	query := `
		INSERT INTO availability_templates (id, instructor_id, valid_from, valid_to, days, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err = r.QueryRow(
		ctx, query,
		t.ID,
		t.InstructorID,
		t.ValidFrom,
		t.ValidTo,
		days,
		t.CreatedBy,
	).Scan(&t.CreatedAt)

	if err != nil {
		return fmt.Errorf("create availability template: %w", err)
	}

	return nil
}

// GetByID получает шаблон по ID
func (r *TemplatePostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.AvailabilityTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM availability_templates WHERE id = $1`

	t, err := r.scanTemplate(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get availability template: %w", err)
	}

	return t, nil
}

// GetActiveByInstructor действующий (не заменённый) шаблон инструктора
func (r *TemplatePostgresRepository) GetActiveByInstructor(ctx context.Context, instructorID int64) (*model.AvailabilityTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM availability_templates WHERE instructor_id = $1 AND superseded_at IS NULL`

	t, err := r.scanTemplate(r.QueryRow(ctx, query, instructorID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active availability template: %w", err)
	}

	return t, nil
}

// SupersedeActive помечает действующий шаблон инструктора заменённым
func (r *TemplatePostgresRepository) SupersedeActive(ctx context.Context, instructorID int64, at time.Time) (int64, error) {
	query := `
		UPDATE availability_templates
		SET superseded_at = $1
		WHERE instructor_id = $2 AND superseded_at IS NULL
	`

	affected, err := r.ExecAffected(ctx, query, at, instructorID)
	if err != nil {
		return 0, fmt.Errorf("supersede availability template: %w", err)
	}

	return affected, nil
}

func (r *TemplatePostgresRepository) scanTemplate(row rowScanner) (*model.AvailabilityTemplate, error) {
	var (
		t    model.AvailabilityTemplate
		days []byte
	)
	err := row.Scan(
		&t.ID,
		&t.InstructorID,
		&t.ValidFrom,
		&t.ValidTo,
		&days,
		&t.CreatedBy,
		&t.CreatedAt,
		&t.SupersededAt,
	)
	if err != nil {
		return nil, err
	}

	t.Days, err = decodeDays(days)
	if err != nil {
		r.logger.Error("Corrupted template days",
			zap.String("template_id", t.ID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("decode template days: %w", err)
	}

	return &t, nil
}

// encodeDays хранит дни недели по именам: {"monday": [...], ...}
func encodeDays(days map[time.Weekday][]string) ([]byte, error) {
	named := make(map[string][]string, len(days))
	for wd, intervals := range days {
		named[strings.ToLower(wd.String())] = intervals
	}
	return json.Marshal(named)
}

func decodeDays(raw []byte) (map[time.Weekday][]string, error) {
	var named map[string][]string
	if err := json.Unmarshal(raw, &named); err != nil {
		return nil, err
	}

	days := make(map[time.Weekday][]string, len(named))
	for name, intervals := range named {
		wd, ok := model.ParseWeekday(name)
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		days[wd] = intervals
	}
	return days, nil
}

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/repository/base"
)

// SlotRepository доступ к слотам занятий
type SlotRepository interface {
	CreateSeeds(ctx context.Context, seeds []model.SlotSeed) (int, error)
	GetByID(ctx context.Context, id int64) (*model.Slot, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Slot, error)
	LockByIDs(ctx context.Context, ids []int64) ([]*model.Slot, error)
	Book(ctx context.Context, slotID, studentCourseID int64) (bool, error)
	Release(ctx context.Context, slotID, studentCourseID int64) (bool, error)
	Query(ctx context.Context, filter model.SlotFilter) ([]*model.Slot, error)
	FreeDates(ctx context.Context, from, to time.Time, instructorID *int64) ([]time.Time, error)
}

const slotColumns = `s.id, s.instructor_id, s.template_id, s.start_time, s.end_time, s.status, s.student_course_id, s.created_at, sc.student_id`

const slotFrom = `
		FROM schedule_slots s
		LEFT JOIN student_courses sc ON sc.id = s.student_course_id
`

type SlotPostgresRepository struct {
	*base.Repository
	timezone string
}

// NewSlotRepository timezone нужен для фильтра по части дня (время инструктора)
func NewSlotRepository(db base.Querier, timezone string) *SlotPostgresRepository {
	return &SlotPostgresRepository{Repository: base.NewRepository(db), timezone: timezone}
}

// CreateSeeds сохраняет сгенерированные слоты; уже существующие (instructor_id, start_time) пропускаются
func (r *SlotPostgresRepository) CreateSeeds(ctx context.Context, seeds []model.SlotSeed) (int, error) {
	query := `
		INSERT INTO schedule_slots (instructor_id, template_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, 'free')
		ON CONFLICT (instructor_id, start_time) DO NOTHING
	`

	created := 0
	for _, seed := range seeds {
		affected, err := r.ExecAffected(ctx, query, seed.InstructorID, seed.TemplateID, seed.Start, seed.End)
		if err != nil {
			return created, fmt.Errorf("create slot %s: %w", seed.Start.Format(time.RFC3339), err)
		}
		created += int(affected)
	}

	return created, nil
}

// GetByID получает слот по ID
func (r *SlotPostgresRepository) GetByID(ctx context.Context, id int64) (*model.Slot, error) {
	query := `SELECT ` + slotColumns + slotFrom + ` WHERE s.id = $1`

	slot, err := scanSlot(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return slot, nil
}

// GetByIDForUpdate получает слот с блокировкой строки до конца транзакции
func (r *SlotPostgresRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Slot, error) {
	query := `
		SELECT id, instructor_id, template_id, start_time, end_time, status, student_course_id, created_at
		FROM schedule_slots
		WHERE id = $1
		FOR UPDATE
	`

	var slot model.Slot
	err := r.QueryRow(ctx, query, id).Scan(
		&slot.ID,
		&slot.InstructorID,
		&slot.TemplateID,
		&slot.StartTime,
		&slot.EndTime,
		&slot.Status,
		&slot.StudentCourseID,
		&slot.CreatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock slot: %w", err)
	}

	return &slot, nil
}

// LockByIDs блокирует слоты в порядке возрастания id; отсутствующие id в результат не попадают
func (r *SlotPostgresRepository) LockByIDs(ctx context.Context, ids []int64) ([]*model.Slot, error) {
	query := `
		SELECT id, instructor_id, template_id, start_time, end_time, status, student_course_id, created_at
		FROM schedule_slots
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`

	rows, err := r.DB().Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("lock slots: %w", err)
	}
	defer rows.Close()

	var slots []*model.Slot
	for rows.Next() {
		var slot model.Slot
		err := rows.Scan(
			&slot.ID,
			&slot.InstructorID,
			&slot.TemplateID,
			&slot.StartTime,
			&slot.EndTime,
			&slot.Status,
			&slot.StudentCourseID,
			&slot.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, &slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock slots: %w", err)
	}

	return slots, nil
}

// Book занимает слот; false если слот уже занят или не существует
func (r *SlotPostgresRepository) Book(ctx context.Context, slotID, studentCourseID int64) (bool, error) {
	query := `
		UPDATE schedule_slots
		SET status = 'booked', student_course_id = $1
		WHERE id = $2 AND status = 'free'
	`

	affected, err := r.ExecAffected(ctx, query, studentCourseID, slotID)
	if err != nil {
		return false, fmt.Errorf("book slot: %w", err)
	}

	return affected == 1, nil
}

// Release освобождает слот, занятый указанным курсом
func (r *SlotPostgresRepository) Release(ctx context.Context, slotID, studentCourseID int64) (bool, error) {
	query := `
		UPDATE schedule_slots
		SET status = 'free', student_course_id = NULL
		WHERE id = $1 AND status = 'booked' AND student_course_id = $2
	`

	affected, err := r.ExecAffected(ctx, query, slotID, studentCourseID)
	if err != nil {
		return false, fmt.Errorf("release slot: %w", err)
	}

	return affected == 1, nil
}

// Query выборка слотов по любому сочетанию фильтров
func (r *SlotPostgresRepository) Query(ctx context.Context, filter model.SlotFilter) ([]*model.Slot, error) {
	where, args := r.buildFilter(filter)

	query := `SELECT ` + slotColumns + slotFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY s.start_time, s.instructor_id"

	rows, err := r.DB().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	slots := make([]*model.Slot, 0)
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}

	return slots, nil
}

// FreeDates календарные даты (в зоне инструктора), на которые есть хотя бы один свободный слот
func (r *SlotPostgresRepository) FreeDates(ctx context.Context, from, to time.Time, instructorID *int64) ([]time.Time, error) {
	query := `
		SELECT DISTINCT (start_time AT TIME ZONE $1)::date AS day
		FROM schedule_slots
		WHERE status = 'free'
		  AND start_time >= $2
		  AND start_time < $3
		  AND ($4::bigint IS NULL OR instructor_id = $4)
		ORDER BY day
	`

	rows, err := r.DB().Query(ctx, query, r.timezone, from, to, instructorID)
	if err != nil {
		return nil, fmt.Errorf("get free dates: %w", err)
	}
	defer rows.Close()

	dates := make([]time.Time, 0)
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("scan free date: %w", err)
		}
		dates = append(dates, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get free dates: %w", err)
	}

	return dates, nil
}

func (r *SlotPostgresRepository) buildFilter(filter model.SlotFilter) ([]string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.InstructorID != nil {
		where = append(where, "s.instructor_id = "+arg(*filter.InstructorID))
	}
	if filter.StudentID != nil {
		where = append(where, "sc.student_id = "+arg(*filter.StudentID))
	}
	if filter.Availability != "" {
		where = append(where, "s.status = "+arg(string(filter.Availability)))
	}
	if filter.From != nil {
		where = append(where, "s.start_time >= "+arg(*filter.From))
	}
	if filter.To != nil {
		where = append(where, "s.start_time < "+arg(*filter.To))
	}
	if bucket, ok := filter.TimeBucket.Range(); ok {
		local := "(s.start_time AT TIME ZONE " + arg(r.timezone) + ")::time"
		where = append(where,
			local+" >= "+arg(bucket.Start.String())+"::time",
			local+" < "+arg(bucket.End.String())+"::time",
		)
	}

	return where, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (*model.Slot, error) {
	var slot model.Slot
	err := row.Scan(
		&slot.ID,
		&slot.InstructorID,
		&slot.TemplateID,
		&slot.StartTime,
		&slot.EndTime,
		&slot.Status,
		&slot.StudentCourseID,
		&slot.CreatedAt,
		&slot.StudentID,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

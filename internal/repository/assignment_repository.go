package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/repository/base"
)

// AssignmentRepository назначенные занятия (слот + курс студента)
type AssignmentRepository interface {
	Create(ctx context.Context, a *model.ClassAssignment) error
	GetByID(ctx context.Context, id int64) (*model.ClassAssignment, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.ClassAssignment, error)
	ListByStudentCourse(ctx context.Context, studentCourseID int64) ([]*model.ClassAssignment, error)
	Rebind(ctx context.Context, a *model.ClassAssignment, newSlotID int64) error
	UpdateStatus(ctx context.Context, a *model.ClassAssignment, status model.AssignmentStatus) error
}

const assignmentColumns = `id, slot_id, student_course_id, status, reschedule_count, created_by, created_at, updated_at`

type AssignmentPostgresRepository struct {
	*base.Repository
}

func NewAssignmentRepository(db base.Querier) *AssignmentPostgresRepository {
	return &AssignmentPostgresRepository{Repository: base.NewRepository(db)}
}

// Create создаёт запись о назначенном занятии
func (r *AssignmentPostgresRepository) Create(ctx context.Context, a *model.ClassAssignment) error {
	query := `
		INSERT INTO class_assignments (slot_id, student_course_id, status, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, reschedule_count, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		a.SlotID,
		a.StudentCourseID,
		a.Status,
		a.CreatedBy,
	).Scan(&a.ID, &a.RescheduleCount, &a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create class assignment: %w", err)
	}

	return nil
}

// GetByID получает занятие по ID
func (r *AssignmentPostgresRepository) GetByID(ctx context.Context, id int64) (*model.ClassAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM class_assignments WHERE id = $1`

	a, err := scanAssignment(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get class assignment by id: %w", err)
	}

	return a, nil
}

// GetByIDForUpdate получает занятие с блокировкой строки
func (r *AssignmentPostgresRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.ClassAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM class_assignments WHERE id = $1 FOR UPDATE`

	a, err := scanAssignment(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock class assignment: %w", err)
	}

	return a, nil
}

// ListByStudentCourse занятия курса в порядке создания
func (r *AssignmentPostgresRepository) ListByStudentCourse(ctx context.Context, studentCourseID int64) ([]*model.ClassAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM class_assignments WHERE student_course_id = $1 ORDER BY id`

	rows, err := r.Query(ctx, query, studentCourseID)
	if err != nil {
		return nil, fmt.Errorf("list class assignments: %w", err)
	}
	defer rows.Close()

	assignments := make([]*model.ClassAssignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan class assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list class assignments: %w", err)
	}

	return assignments, nil
}

// Rebind переносит занятие на новый слот
func (r *AssignmentPostgresRepository) Rebind(ctx context.Context, a *model.ClassAssignment, newSlotID int64) error {
	query := `
		UPDATE class_assignments
		SET slot_id = $1, reschedule_count = reschedule_count + 1, updated_at = NOW()
		WHERE id = $2 AND status = 'booked'
		RETURNING slot_id, reschedule_count, updated_at
	`

	err := r.QueryRow(ctx, query, newSlotID, a.ID).Scan(&a.SlotID, &a.RescheduleCount, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("rebind class assignment: %w", err)
	}

	return nil
}

// UpdateStatus меняет статус активного занятия (отмена или сгорание)
func (r *AssignmentPostgresRepository) UpdateStatus(ctx context.Context, a *model.ClassAssignment, status model.AssignmentStatus) error {
	query := `
		UPDATE class_assignments
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'booked'
		RETURNING status, updated_at
	`

	err := r.QueryRow(ctx, query, status, a.ID).Scan(&a.Status, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update class assignment status: %w", err)
	}

	return nil
}

func scanAssignment(row rowScanner) (*model.ClassAssignment, error) {
	var a model.ClassAssignment
	err := row.Scan(
		&a.ID,
		&a.SlotID,
		&a.StudentCourseID,
		&a.Status,
		&a.RescheduleCount,
		&a.CreatedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

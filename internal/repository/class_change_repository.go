package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/repository/base"
)

// ClassChangeRepository журнал переносов и отмен, только добавление
type ClassChangeRepository interface {
	Create(ctx context.Context, c *model.ClassChange) error
	ListByAssignment(ctx context.Context, assignmentID int64) ([]*model.ClassChange, error)
}

type ClassChangePostgresRepository struct {
	*base.Repository
}

func NewClassChangeRepository(db base.Querier) *ClassChangePostgresRepository {
	return &ClassChangePostgresRepository{Repository: base.NewRepository(db)}
}

// Create добавляет запись в журнал
func (r *ClassChangePostgresRepository) Create(ctx context.Context, c *model.ClassChange) error {
	query := `
		INSERT INTO class_changes (assignment_id, action, outcome, old_slot_id, new_slot_id, credit_restored, comment, requested_at, requested_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	err := r.QueryRow(
		ctx, query,
		c.AssignmentID,
		c.Action,
		c.Outcome,
		c.OldSlotID,
		c.NewSlotID,
		c.CreditRestored,
		c.Comment,
		c.RequestedAt,
		c.RequestedBy,
	).Scan(&c.ID, &c.CreatedAt)

	if err != nil {
		return fmt.Errorf("create class change: %w", err)
	}

	return nil
}

// ListByAssignment история изменений занятия
func (r *ClassChangePostgresRepository) ListByAssignment(ctx context.Context, assignmentID int64) ([]*model.ClassChange, error) {
	query := `
		SELECT id, assignment_id, action, outcome, old_slot_id, new_slot_id, credit_restored, comment, requested_at, requested_by, created_at
		FROM class_changes
		WHERE assignment_id = $1
		ORDER BY id
	`

	rows, err := r.Query(ctx, query, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("list class changes: %w", err)
	}
	defer rows.Close()

	changes := make([]*model.ClassChange, 0)
	for rows.Next() {
		var c model.ClassChange
		err := rows.Scan(
			&c.ID,
			&c.AssignmentID,
			&c.Action,
			&c.Outcome,
			&c.OldSlotID,
			&c.NewSlotID,
			&c.CreditRestored,
			&c.Comment,
			&c.RequestedAt,
			&c.RequestedBy,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan class change: %w", err)
		}
		changes = append(changes, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list class changes: %w", err)
	}

	return changes, nil
}

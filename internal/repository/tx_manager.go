package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// TxRepositories репозитории, привязанные к одной транзакции
type TxRepositories struct {
	Slots       SlotRepository
	Courses     StudentCourseRepository
	Assignments AssignmentRepository
	Changes     ClassChangeRepository
	Templates   TemplateRepository
}

// TxManager выполняет функцию в транзакции; ошибка функции откатывает всё
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error
}

// TxBeginner пул или pgxmock
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type PostgresTxManager struct {
	db       TxBeginner
	timezone string
	logger   *zap.Logger
}

func NewPostgresTxManager(db TxBeginner, timezone string, logger *zap.Logger) *PostgresTxManager {
	return &PostgresTxManager{db: db, timezone: timezone, logger: logger}
}

// WithTx открывает READ COMMITTED транзакцию; блокировки строк берутся самими репозиториями
func (m *PostgresTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error {
	tx, err := m.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	repos := TxRepositories{
		Slots:       NewSlotRepository(tx, m.timezone),
		Courses:     NewStudentCourseRepository(tx),
		Assignments: NewAssignmentRepository(tx),
		Changes:     NewClassChangeRepository(tx),
		Templates:   NewTemplateRepository(tx, m.logger),
	}

	if err := fn(ctx, repos); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			m.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/repository/base"
)

// StudentCourseRepository кредитный реестр: курсы студентов и остаток занятий
type StudentCourseRepository interface {
	Create(ctx context.Context, sc *model.StudentCourse) error
	GetByID(ctx context.Context, id int64) (*model.StudentCourse, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.StudentCourse, error)
	ListByStudent(ctx context.Context, studentID int64) ([]*model.StudentCourse, error)
	Debit(ctx context.Context, id int64, count int) (bool, error)
	Credit(ctx context.Context, id int64, count int) (bool, error)
	UpdateStatus(ctx context.Context, sc *model.StudentCourse) error
	FailInactive(ctx context.Context, studentID int64, createdBefore time.Time) (int64, error)
}

const studentCourseColumns = `id, student_id, course_id, total_classes, remaining_classes, state, result, registered_value, comment, created_by, created_at, updated_at`

type StudentCoursePostgresRepository struct {
	*base.Repository
}

func NewStudentCourseRepository(db base.Querier) *StudentCoursePostgresRepository {
	return &StudentCoursePostgresRepository{Repository: base.NewRepository(db)}
}

// Create назначает курс студенту
func (r *StudentCoursePostgresRepository) Create(ctx context.Context, sc *model.StudentCourse) error {
	query := `
		INSERT INTO student_courses (student_id, course_id, total_classes, remaining_classes, state, result, registered_value, comment, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		sc.StudentID,
		sc.CourseID,
		sc.TotalClasses,
		sc.RemainingClasses,
		sc.State,
		sc.Result,
		sc.RegisteredValue,
		sc.Comment,
		sc.CreatedBy,
	).Scan(&sc.ID, &sc.CreatedAt, &sc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create student course: %w", err)
	}

	return nil
}

// GetByID получает курс студента по ID
func (r *StudentCoursePostgresRepository) GetByID(ctx context.Context, id int64) (*model.StudentCourse, error) {
	query := `SELECT ` + studentCourseColumns + ` FROM student_courses WHERE id = $1`

	sc, err := scanStudentCourse(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get student course by id: %w", err)
	}

	return sc, nil
}

// GetByIDForUpdate получает курс с блокировкой строки
func (r *StudentCoursePostgresRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.StudentCourse, error) {
	query := `SELECT ` + studentCourseColumns + ` FROM student_courses WHERE id = $1 FOR UPDATE`

	sc, err := scanStudentCourse(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock student course: %w", err)
	}

	return sc, nil
}

// ListByStudent все курсы студента, новые первыми
func (r *StudentCoursePostgresRepository) ListByStudent(ctx context.Context, studentID int64) ([]*model.StudentCourse, error) {
	query := `SELECT ` + studentCourseColumns + ` FROM student_courses WHERE student_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := r.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("list student courses: %w", err)
	}
	defer rows.Close()

	courses := make([]*model.StudentCourse, 0)
	for rows.Next() {
		sc, err := scanStudentCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student course: %w", err)
		}
		courses = append(courses, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list student courses: %w", err)
	}

	return courses, nil
}

// Debit списывает count занятий; false если остатка не хватает
func (r *StudentCoursePostgresRepository) Debit(ctx context.Context, id int64, count int) (bool, error) {
	query := `
		UPDATE student_courses
		SET remaining_classes = remaining_classes - $2, updated_at = NOW()
		WHERE id = $1 AND remaining_classes >= $2
	`

	affected, err := r.ExecAffected(ctx, query, id, count)
	if err != nil {
		return false, fmt.Errorf("debit student course: %w", err)
	}

	return affected == 1, nil
}

// Credit возвращает count занятий; false если остаток превысил бы купленное
func (r *StudentCoursePostgresRepository) Credit(ctx context.Context, id int64, count int) (bool, error) {
	query := `
		UPDATE student_courses
		SET remaining_classes = remaining_classes + $2, updated_at = NOW()
		WHERE id = $1 AND remaining_classes + $2 <= total_classes
	`

	affected, err := r.ExecAffected(ctx, query, id, count)
	if err != nil {
		return false, fmt.Errorf("credit student course: %w", err)
	}

	return affected == 1, nil
}

// UpdateStatus сохраняет состояние, результат и комментарий курса
func (r *StudentCoursePostgresRepository) UpdateStatus(ctx context.Context, sc *model.StudentCourse) error {
	query := `
		UPDATE student_courses
		SET state = $1, result = $2, comment = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at
	`

	err := r.QueryRow(ctx, query, sc.State, sc.Result, sc.Comment, sc.ID).Scan(&sc.UpdatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return fmt.Errorf("student course %d not found: %w", sc.ID, err)
		}
		return fmt.Errorf("update student course: %w", err)
	}

	return nil
}

// FailInactive переводит в failed курсы, приостановленные до createdBefore
func (r *StudentCoursePostgresRepository) FailInactive(ctx context.Context, studentID int64, createdBefore time.Time) (int64, error) {
	query := `
		UPDATE student_courses
		SET result = $1, updated_at = NOW()
		WHERE student_id = $2 AND result = $3 AND created_at < $4
	`

	affected, err := r.ExecAffected(ctx, query, model.CourseResultFailed, studentID, model.CourseResultSuspended, createdBefore)
	if err != nil {
		return 0, fmt.Errorf("fail inactive student courses: %w", err)
	}

	return affected, nil
}

func scanStudentCourse(row rowScanner) (*model.StudentCourse, error) {
	var sc model.StudentCourse
	err := row.Scan(
		&sc.ID,
		&sc.StudentID,
		&sc.CourseID,
		&sc.TotalClasses,
		&sc.RemainingClasses,
		&sc.State,
		&sc.Result,
		&sc.RegisteredValue,
		&sc.Comment,
		&sc.CreatedBy,
		&sc.CreatedAt,
		&sc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

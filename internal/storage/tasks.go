package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskboard/internal/models"
)

const taskColumns = `id, board_id, title, description, status, priority, assigned_to, due_date, created_at, updated_at`

// TaskFilter narrows ListTasks. A zero BoardID matches every board.
type TaskFilter struct {
	BoardID int64
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (models.Task, error) {
	var (
		t           models.Task
		description sql.NullString
		status      string
		priority    sql.NullString
		assignedTo  sql.NullString
		dueDate     sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.BoardID, &t.Title, &description, &status, &priority, &assignedTo, &dueDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return models.Task{}, err
	}

	st, err := models.ParseStatus(status)
	if err != nil {
		return models.Task{}, models.WrapErrorf(err, models.ErrorCodeUnknown, "task %d has a corrupt status", t.ID)
	}
	t.Status = st

	if priority.Valid {
		p, err := models.ParsePriority(priority.String)
		if err != nil {
			return models.Task{}, models.WrapErrorf(err, models.ErrorCodeUnknown, "task %d has a corrupt priority", t.ID)
		}
		t.Priority = &p
	}

	t.Description = stringPtr(description)
	t.AssignedTo = stringPtr(assignedTo)
	t.DueDate = timePtr(dueDate)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func priorityArg(p *models.Priority) any {
	if p == nil {
		return nil
	}
	return string(*p)
}

// ListTasks returns tasks matching filter, newest first.
func (s *Store) ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if filter.BoardID != 0 {
		query += ` WHERE board_id = ?`
		args = append(args, filter.BoardID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	return s.queryTasks(ctx, s.db, query, args...)
}

func (s *Store) queryTasks(ctx context.Context, q queryer, query string, args ...any) ([]models.Task, error) {
	rows, err := q.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id int64) (models.Task, error) {
	return s.getTask(ctx, s.db, id, false)
}

func (s *Store) getTask(ctx context.Context, q queryer, id int64, lock bool) (models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`
	if lock {
		query += s.dialect.lockRow
	}

	t, err := scanTask(q.QueryRowContext(ctx, s.dialect.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, models.NewErrorf(models.ErrorCodeNotFound, "task not found")
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// CreateTask inserts a new task. The referenced board must exist.
func (s *Store) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return models.Task{}, models.NewErrorf(models.ErrorCodeInvalidArgument, "title must not be empty")
	}
	if t.Status == "" {
		t.Status = models.StatusTodo
	}
	if !t.Status.Valid() {
		_, err := models.ParseStatus(string(t.Status))
		return models.Task{}, err
	}

	now := s.now()

	var id int64
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`INSERT INTO tasks(board_id, title, description, status, priority, assigned_to, due_date, created_at, updated_at)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		t.BoardID, strings.TrimSpace(t.Title), nullableString(t.Description), string(t.Status), priorityArg(t.Priority),
		nullableString(t.AssignedTo), nullableTime(t.DueDate), now, now,
	).Scan(&id)
	if err != nil {
		if s.dialect.fkError(err) {
			return models.Task{}, models.WrapErrorf(err, models.ErrorCodeInvalidArgument, "board %d does not exist", t.BoardID)
		}
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}

	s.logger.Debug("task created", "id", id, "board_id", t.BoardID)
	return s.GetTask(ctx, id)
}

// UpdateTask merges the supplied fields of patch into the stored task.
// The read and the write run in one transaction.
func (s *Store) UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) (models.Task, error) {
	if err := patch.Validate(false); err != nil {
		return models.Task{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Task{}, fmt.Errorf("begin update task: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := s.getTask(ctx, tx, id, true)
	if err != nil {
		return models.Task{}, err
	}

	patch.Apply(&current)
	current.UpdatedAt = s.touch(current.CreatedAt)

	_, err = tx.ExecContext(ctx, s.dialect.rebind(`UPDATE tasks SET board_id = ?, title = ?, description = ?, status = ?, priority = ?,
        assigned_to = ?, due_date = ?, updated_at = ? WHERE id = ?`),
		current.BoardID, current.Title, nullableString(current.Description), string(current.Status), priorityArg(current.Priority),
		nullableString(current.AssignedTo), nullableTime(current.DueDate), current.UpdatedAt, id,
	)
	if err != nil {
		if s.dialect.fkError(err) {
			return models.Task{}, models.WrapErrorf(err, models.ErrorCodeInvalidArgument, "board %d does not exist", current.BoardID)
		}
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Task{}, fmt.Errorf("commit update task: %w", err)
	}
	return s.GetTask(ctx, id)
}

// DeleteTask removes a task by id.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM tasks WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.NewErrorf(models.ErrorCodeNotFound, "task not found")
	}
	return nil
}

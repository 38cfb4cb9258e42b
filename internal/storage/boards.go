package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskboard/internal/models"
)

const boardColumns = `id, name, description, color, created_at, updated_at`

func scanBoard(row rowScanner) (models.Board, error) {
	var (
		b           models.Board
		description sql.NullString
		color       sql.NullString
	)
	if err := row.Scan(&b.ID, &b.Name, &description, &color, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return models.Board{}, err
	}
	b.Description = stringPtr(description)
	b.Color = stringPtr(color)
	b.DisplayColor = models.DisplayColor(b.Color)
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	b.Tasks = []models.Task{}
	return b, nil
}

// ListBoards retrieves all boards, newest first, each with its tasks embedded.
func (s *Store) ListBoards(ctx context.Context) ([]models.Board, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+boardColumns+` FROM boards ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}

	boards := []models.Board{}
	index := map[int64]int{}
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan board: %w", err)
		}
		index[b.ID] = len(boards)
		boards = append(boards, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list boards: %w", err)
	}
	rows.Close()

	if len(boards) == 0 {
		return boards, nil
	}

	tasks, err := s.ListTasks(ctx, TaskFilter{})
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if i, ok := index[t.BoardID]; ok {
			boards[i].Tasks = append(boards[i].Tasks, t)
		}
	}
	return boards, nil
}

// GetBoard fetches a single board by id with its tasks embedded.
func (s *Store) GetBoard(ctx context.Context, id int64) (models.Board, error) {
	b, err := scanBoard(s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT `+boardColumns+` FROM boards WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Board{}, models.NewErrorf(models.ErrorCodeNotFound, "board not found")
	}
	if err != nil {
		return models.Board{}, fmt.Errorf("get board: %w", err)
	}

	tasks, err := s.ListTasks(ctx, TaskFilter{BoardID: id})
	if err != nil {
		return models.Board{}, err
	}
	b.Tasks = tasks
	return b, nil
}

// CreateBoard persists a new board.
func (s *Store) CreateBoard(ctx context.Context, b models.Board) (models.Board, error) {
	name := strings.TrimSpace(b.Name)
	if name == "" {
		return models.Board{}, models.NewErrorf(models.ErrorCodeInvalidArgument, "name must not be empty")
	}

	now := s.now()

	var id int64
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`INSERT INTO boards(name, description, color, created_at, updated_at) VALUES(?, ?, ?, ?, ?) RETURNING id`),
		name, nullableString(b.Description), nullableString(b.Color), now, now,
	).Scan(&id)
	if err != nil {
		return models.Board{}, fmt.Errorf("insert board: %w", err)
	}

	s.logger.Debug("board created", "id", id)
	return s.GetBoard(ctx, id)
}

// UpdateBoard merges the supplied fields of patch into the stored board.
func (s *Store) UpdateBoard(ctx context.Context, id int64, patch models.BoardPatch) (models.Board, error) {
	if err := patch.Validate(false); err != nil {
		return models.Board{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Board{}, fmt.Errorf("begin update board: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanBoard(tx.QueryRowContext(ctx, s.dialect.rebind(`SELECT `+boardColumns+` FROM boards WHERE id = ?`+s.dialect.lockRow), id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Board{}, models.NewErrorf(models.ErrorCodeNotFound, "board not found")
	}
	if err != nil {
		return models.Board{}, fmt.Errorf("get board: %w", err)
	}

	patch.Apply(&current)
	current.UpdatedAt = s.touch(current.CreatedAt)

	_, err = tx.ExecContext(ctx, s.dialect.rebind(`UPDATE boards SET name = ?, description = ?, color = ?, updated_at = ? WHERE id = ?`),
		current.Name, nullableString(current.Description), nullableString(current.Color), current.UpdatedAt, id)
	if err != nil {
		return models.Board{}, fmt.Errorf("update board: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Board{}, fmt.Errorf("commit update board: %w", err)
	}
	return s.GetBoard(ctx, id)
}

// DeleteBoard removes a board; its tasks go with it through the foreign key cascade.
func (s *Store) DeleteBoard(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM boards WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.NewErrorf(models.ErrorCodeNotFound, "board not found")
	}
	return nil
}

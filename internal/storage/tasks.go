package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/artmoskal/TGHandyUtils-sub000/internal/types"
)

// CreateTask inserts a task row, generating an id if none is set
func (s *Store) CreateTask(task *types.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = "active"
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO tasks (id, user_id, title, description, due_time, chat_id, message_id, screenshot_ref, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.UserID, task.Title, task.Description, task.DueTime,
		task.ChatID, task.MessageID, task.ScreenshotRef, task.Status, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// GetTask returns one task by id
func (s *Store) GetTask(id string) (*types.Task, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, title, COALESCE(description,''), due_time, chat_id, message_id, COALESCE(screenshot_ref,''), status, created_at
		 FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

// ListTasks returns all persisted tasks, oldest first
func (s *Store) ListTasks() ([]types.Task, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, title, COALESCE(description,''), due_time, chat_id, message_id, COALESCE(screenshot_ref,''), status, created_at
		 FROM tasks ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		var t types.Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.DueTime,
			&t.ChatID, &t.MessageID, &t.ScreenshotRef, &t.Status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// DeleteTask removes a task row. Deleting a missing task is not an error.
func (s *Store) DeleteTask(id string) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

func scanTask(row *sql.Row) (*types.Task, error) {
	var t types.Task
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.DueTime,
		&t.ChatID, &t.MessageID, &t.ScreenshotRef, &t.Status, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	return &t, nil
}

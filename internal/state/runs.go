package state

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkrall/clerk/pkg/models"
)

// Run statuses.
const (
	RunStatusActive      = "active"
	RunStatusCompleted   = "completed"
	RunStatusFailed      = "failed"
	RunStatusInterrupted = "interrupted"
)

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded engine run.
type Run struct {
	ID         string
	Request    string
	Complexity string
	Status     string
	TokensUsed int64
	StartedAt  time.Time
	FinishedAt *time.Time
}

// CreateRun records the start of a run and returns it.
func (db *DB) CreateRun(request, complexity string) (*Run, error) {
	run := &Run{
		ID:         uuid.NewString(),
		Request:    request,
		Complexity: complexity,
		Status:     RunStatusActive,
		StartedAt:  time.Now(),
	}
	_, err := db.Exec(`
		INSERT INTO runs (id, request, complexity, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Request, run.Complexity, run.Status, formatTime(run.StartedAt))
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// FinishRun records a run's terminal status and token usage.
func (db *DB) FinishRun(id, status string, tokensUsed int64) error {
	_, err := db.Exec(`
		UPDATE runs SET status = ?, tokens_used = ?, finished_at = ?
		WHERE id = ?
	`, status, tokensUsed, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// GetRun loads one run by id.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, request, complexity, status, tokens_used, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return run, err
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, request, complexity, status, tokens_used, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var startedAt string
	var finishedAt sql.NullString
	err := row.Scan(&run.ID, &run.Request, &run.Complexity, &run.Status,
		&run.TokensUsed, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	run.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse run start time: %w", err)
	}
	run.FinishedAt = parseNullableTime(finishedAt)
	return &run, nil
}

// Recorder returns a per-run recorder that upserts TODO rows as the
// controller reports status transitions.
func (db *DB) Recorder(runID string) *RunRecorder {
	return &RunRecorder{db: db, runID: runID}
}

// RunRecorder persists TODO progress for one run.
type RunRecorder struct {
	db    *DB
	runID string
}

// RecordTodo writes the TODO's current state, replacing any earlier row.
func (r *RunRecorder) RecordTodo(todo *models.TodoItem) error {
	var startedAt, completedAt any
	if todo.StartedAt != nil {
		startedAt = formatTime(*todo.StartedAt)
	}
	if todo.CompletedAt != nil {
		completedAt = formatTime(*todo.CompletedAt)
	}

	_, err := r.db.Exec(`
		INSERT INTO todos (run_id, id, title, description, status, dependencies, result, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, id) DO UPDATE SET
			status = excluded.status,
			result = excluded.result,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`, r.runID, todo.ID, todo.Title, todo.Description, string(todo.Status),
		strings.Join(todo.Dependencies, ","), todo.Result, todo.Error, startedAt, completedAt)
	if err != nil {
		return fmt.Errorf("record todo %s: %w", todo.ID, err)
	}
	return nil
}

// TodosForRun loads the recorded TODOs of a run in insertion order.
func (db *DB) TodosForRun(runID string) ([]*models.TodoItem, error) {
	rows, err := db.Query(`
		SELECT id, title, description, status, dependencies, result, error, started_at, completed_at
		FROM todos WHERE run_id = ? ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("load todos: %w", err)
	}
	defer rows.Close()

	var todos []*models.TodoItem
	for rows.Next() {
		var todo models.TodoItem
		var status, deps string
		var startedAt, completedAt sql.NullString
		err := rows.Scan(&todo.ID, &todo.Title, &todo.Description, &status,
			&deps, &todo.Result, &todo.Error, &startedAt, &completedAt)
		if err != nil {
			return nil, err
		}
		todo.Status = models.TodoStatus(status)
		if deps != "" {
			todo.Dependencies = strings.Split(deps, ",")
		}
		todo.StartedAt = parseNullableTime(startedAt)
		todo.CompletedAt = parseNullableTime(completedAt)
		todos = append(todos, &todo)
	}
	return todos, rows.Err()
}

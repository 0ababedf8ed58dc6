package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// ErrRecordNotFound is returned when deleting a record that does not exist.
var ErrRecordNotFound = errors.New("task record not found")

// Store is a remote document collection of task records, namespaced per
// owner identity. Implementations assign record identifiers on insert.
type Store interface {
	// List returns every record under owner, in no particular order.
	List(ctx context.Context, owner string) ([]Task, error)

	// Insert adds r under owner and returns its new identifier.
	Insert(ctx context.Context, owner string, r Record) (string, error)

	// Delete removes the record id from owner's collection.
	Delete(ctx context.Context, owner, id string) error
}

const schema = `
CREATE TABLE IF NOT EXISTS task_records (
	id          TEXT PRIMARY KEY,
	owner       TEXT NOT NULL,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	due_date    TEXT NOT NULL,
	due_time    TEXT NOT NULL,
	priority    TEXT NOT NULL,
	completed   INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_task_records_owner ON task_records(owner);
`

// SQLiteStore keeps task records in a SQLite database, one row per record.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the records table exists. The caller is responsible for calling Close.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// List returns all records owned by owner.
func (s *SQLiteStore) List(ctx context.Context, owner string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, due_date, due_time, priority, completed, created_at
		FROM task_records WHERE owner = ?`, owner)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Insert stores r under owner with a fresh UUID.
func (s *SQLiteStore) Insert(ctx context.Context, owner string, r Record) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_records
			(id, owner, title, description, due_date, due_time, priority, completed, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		id, owner, r.Title, r.Description, r.DueDate, r.DueTime,
		string(r.Priority), r.Completed, r.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return id, nil
}

// Delete removes one record. Records of other owners are never touched.
func (s *SQLiteStore) Delete(ctx context.Context, owner, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM task_records WHERE owner = ? AND id = ?", owner, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (Task, error) {
	var t Task
	var priority string
	err := s.Scan(
		&t.ID, &t.Title, &t.Description, &t.DueDate, &t.DueTime,
		&priority, &t.Completed, &t.CreatedAt,
	)
	if err != nil {
		return Task{}, err
	}
	t.Priority = Priority(priority)
	return t, nil
}

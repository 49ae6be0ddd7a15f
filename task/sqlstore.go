package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteSchema creates the tasks table used by SQLStore. Timestamps are
// unix microseconds so ordering is numeric.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
    id              VARCHAR(64)  PRIMARY KEY,
    type            VARCHAR(64)  NOT NULL,
    parameters_json TEXT         NOT NULL DEFAULT '{}',
    status          VARCHAR(16)  NOT NULL,
    wallet_address  VARCHAR(128) NOT NULL,
    user_id         VARCHAR(128) NOT NULL DEFAULT '',
    result_json     TEXT         NULL,
    error_msg       TEXT         NULL,
    created_at      INTEGER      NOT NULL,
    executed_at     INTEGER      NULL,
    updated_at      INTEGER      NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_owner_created ON tasks(wallet_address, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_tasks_status_created ON tasks(status, created_at DESC);
`

// SQLStore is a Store backed by an embedded SQLite database.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an open database. The schema must already exist; see
// EnsureSchema.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// OpenSQLite opens (or creates) the database at dsn and ensures the schema.
// The caller is responsible for calling Close.
func OpenSQLite(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	s := NewSQLStore(db)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the tasks table and indexes if missing.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return errors.New("nil db")
	}
	if _, err := s.db.ExecContext(ctx, SQLiteSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) Insert(ctx context.Context, t *Task) error {
	if s.db == nil {
		return errors.New("nil db")
	}
	params, err := marshalParams(t.Parameters)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, type, parameters_json, status, wallet_address, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		t.ID, string(t.Type), params, string(t.Status), t.WalletAddress, t.UserID,
		t.CreatedAt.UnixMicro(), time.Now().UTC().UnixMicro())
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDuplicateID
	}
	return nil
}

func (s *SQLStore) FindByID(ctx context.Context, id string) (*Task, error) {
	if s.db == nil {
		return nil, errors.New("nil db")
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+sqlColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanSQLTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

func (s *SQLStore) ConditionalUpdate(ctx context.Context, id string, expected Status, p Patch) (bool, error) {
	if s.db == nil {
		return false, errors.New("nil db")
	}
	var executedAt sql.NullInt64
	if p.ExecutedAt != nil {
		executedAt = sql.NullInt64{Int64: p.ExecutedAt.UnixMicro(), Valid: true}
	}
	var resultJSON sql.NullString
	if p.Result != nil {
		b, err := json.Marshal(p.Result)
		if err != nil {
			return false, fmt.Errorf("marshal result: %w", err)
		}
		resultJSON = sql.NullString{String: string(b), Valid: true}
	}
	var errorMsg sql.NullString
	if p.Error != nil {
		errorMsg = sql.NullString{String: *p.Error, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			status = ?,
			executed_at = COALESCE(?, executed_at),
			result_json = COALESCE(?, result_json),
			error_msg = COALESCE(?, error_msg),
			updated_at = ?
		WHERE id = ? AND status = ?`,
		string(p.Status), executedAt, resultJSON, errorMsg, time.Now().UTC().UnixMicro(),
		id, string(expected))
	if err != nil {
		return false, fmt.Errorf("update task %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLStore) ListByOwner(ctx context.Context, walletAddress string, limit int) ([]*Task, error) {
	if s.db == nil {
		return nil, errors.New("nil db")
	}
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqlColumns+` FROM tasks
		WHERE wallet_address = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, walletAddress, limit)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanSQLTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

const sqlColumns = `id, type, parameters_json, status, wallet_address, user_id, result_json, error_msg, created_at, executed_at`

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSQLTask(row scanner) (*Task, error) {
	var t Task
	var typ, status, params string
	var resultJSON, errorMsg sql.NullString
	var createdAt int64
	var executedAt sql.NullInt64
	if err := row.Scan(&t.ID, &typ, &params, &status, &t.WalletAddress, &t.UserID,
		&resultJSON, &errorMsg, &createdAt, &executedAt); err != nil {
		return nil, err
	}
	t.Type = Type(typ)
	t.Status = Status(status)
	t.CreatedAt = time.UnixMicro(createdAt).UTC()
	if executedAt.Valid {
		at := time.UnixMicro(executedAt.Int64).UTC()
		t.ExecutedAt = &at
	}
	if errorMsg.Valid {
		t.Error = errorMsg.String
	}
	if err := decodeStored(params, resultJSON.String, resultJSON.Valid, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func marshalParams(p map[string]any) (string, error) {
	if p == nil {
		p = map[string]any{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal parameters: %w", err)
	}
	return string(b), nil
}

// decodeStored checks the stored status and fills parameters and result
// from their JSON columns.
func decodeStored(params, result string, hasResult bool, t *Task) error {
	if !t.Status.IsValid() {
		return fmt.Errorf("task %s has unknown status %q", t.ID, t.Status)
	}
	if err := json.Unmarshal([]byte(params), &t.Parameters); err != nil || t.Parameters == nil {
		t.Parameters = map[string]any{}
	}
	if hasResult && result != "" {
		var r Result
		if err := json.Unmarshal([]byte(result), &r); err != nil {
			return fmt.Errorf("decode result of task %s: %w", t.ID, err)
		}
		t.Result = &r
	}
	return nil
}

package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed task store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the tasks table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id             TEXT PRIMARY KEY,
			type           TEXT NOT NULL,
			parameters     JSONB NOT NULL DEFAULT '{}',
			status         TEXT NOT NULL DEFAULT 'PENDING',
			wallet_address TEXT NOT NULL,
			user_id        TEXT NOT NULL DEFAULT '',
			result         JSONB,
			error          TEXT,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			executed_at    TIMESTAMPTZ,
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_owner_created ON tasks(wallet_address, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status_created ON tasks(status, created_at DESC)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure tasks table: %w", err)
		}
	}
	return nil
}

func (s *PgStore) Insert(ctx context.Context, t *Task) error {
	params, err := marshalParams(t.Parameters)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (id, type, parameters, status, wallet_address, user_id, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $5, $6, $7, NOW())
		ON CONFLICT (id) DO NOTHING`,
		t.ID, string(t.Type), params, string(t.Status), t.WalletAddress, t.UserID, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateID
	}
	return nil
}

func (s *PgStore) FindByID(ctx context.Context, id string) (*Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanPgTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

func (s *PgStore) ConditionalUpdate(ctx context.Context, id string, expected Status, p Patch) (bool, error) {
	var result *string
	if p.Result != nil {
		b, err := json.Marshal(p.Result)
		if err != nil {
			return false, fmt.Errorf("marshal result: %w", err)
		}
		r := string(b)
		result = &r
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks SET
			status = $1,
			executed_at = COALESCE($2, executed_at),
			result = COALESCE($3::jsonb, result),
			error = COALESCE($4, error),
			updated_at = NOW()
		WHERE id = $5 AND status = $6`,
		string(p.Status), p.ExecutedAt, result, p.Error, id, string(expected))
	if err != nil {
		return false, fmt.Errorf("update task %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) ListByOwner(ctx context.Context, walletAddress string, limit int) ([]*Task, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgColumns+` FROM tasks
		WHERE wallet_address = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, walletAddress, lim)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanPgTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return tasks, nil
}

const pgColumns = `id, type, parameters, status, wallet_address, user_id, result, error, created_at, executed_at`

func scanPgTask(row pgx.Row) (*Task, error) {
	var t Task
	var typ, status string
	var params, result []byte
	var errorMsg *string
	var executedAt *time.Time
	if err := row.Scan(&t.ID, &typ, &params, &status, &t.WalletAddress, &t.UserID,
		&result, &errorMsg, &t.CreatedAt, &executedAt); err != nil {
		return nil, err
	}
	t.Type = Type(typ)
	t.Status = Status(status)
	t.ExecutedAt = executedAt
	if errorMsg != nil {
		t.Error = *errorMsg
	}
	if err := decodeStored(string(params), string(result), result != nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

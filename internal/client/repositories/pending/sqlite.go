package pending

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/client/models"
	"github.com/dmitrijs2005/notekeeper/internal/dbx"
	"github.com/dmitrijs2005/notekeeper/internal/timex"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, op models.PendingOperation) error {
	var payload []byte
	if len(op.Payload) > 0 {
		payload = op.Payload
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_operations (id, kind, note_id, payload, enqueued_at)
		VALUES (?, ?, ?, ?, ?)`,
		op.ID, string(op.Kind), op.NoteID, payload, timex.ToUnixMilli(op.EnqueuedAt))
	if err != nil {
		return fmt.Errorf("insert pending operation: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.PendingOperation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, note_id, payload, enqueued_at
		FROM pending_operations ORDER BY enqueued_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list pending operations: %w", err)
	}
	defer rows.Close()

	var ops []models.PendingOperation
	for rows.Next() {
		var (
			op         models.PendingOperation
			kind       string
			payload    []byte
			enqueuedAt int64
		)
		if err := rows.Scan(&op.ID, &kind, &op.NoteID, &payload, &enqueuedAt); err != nil {
			return nil, fmt.Errorf("scan pending operation: %w", err)
		}
		op.Kind = models.OperationKind(kind)
		op.Payload = payload
		op.EnqueuedAt = timex.UnixMilli(enqueuedAt)
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending operations: %w", err)
	}
	return ops, nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_operations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove pending operation %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_operations`); err != nil {
		return fmt.Errorf("clear pending operations: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_operations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending operations: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) RetargetNote(ctx context.Context, fromID, toID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pending_operations SET note_id = ? WHERE note_id = ?`, toID, fromID)
	if err != nil {
		return 0, fmt.Errorf("retarget pending operations %s -> %s: %w", fromID, toID, err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) NoteIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT note_id FROM pending_operations`)
	if err != nil {
		return nil, fmt.Errorf("list pending note ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending note id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending note ids: %w", err)
	}
	return ids, nil
}

func (r *SQLiteRepository) LastEnqueuedAt(ctx context.Context) (time.Time, error) {
	var ms sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(enqueued_at) FROM pending_operations`).Scan(&ms); err != nil {
		return time.Time{}, fmt.Errorf("last pending enqueue time: %w", err)
	}
	return timex.UnixMilli(ms.Int64), nil
}

package notes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/notekeeper/internal/client/models"
	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/dbx"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
	"github.com/dmitrijs2005/notekeeper/internal/timex"
)

const noteColumns = `id, owner_id, title, content, color, cover_image_url, is_pinned, created_at, updated_at, attachments`

const upsertNote = `
	INSERT INTO notes (` + noteColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		owner_id        = excluded.owner_id,
		title           = excluded.title,
		content         = excluded.content,
		color           = excluded.color,
		cover_image_url = excluded.cover_image_url,
		is_pinned       = excluded.is_pinned,
		created_at      = excluded.created_at,
		updated_at      = excluded.updated_at,
		attachments     = excluded.attachments`

type SQLiteRepository struct {
	db     *sql.DB
	logger logging.Logger
}

func NewSQLiteRepository(db *sql.DB, logger logging.Logger) *SQLiteRepository {
	return &SQLiteRepository{db: db, logger: logger}
}

func upsert(ctx context.Context, db dbx.DBTX, n models.Note) error {
	attachments := n.Attachments
	if attachments == nil {
		attachments = []models.Attachment{}
	}
	raw, err := json.Marshal(attachments)
	if err != nil {
		return fmt.Errorf("encode attachments of note %s: %w", n.ID, err)
	}

	var cover sql.NullString
	if n.CoverImageURL != nil {
		cover = sql.NullString{String: *n.CoverImageURL, Valid: true}
	}
	pinned := 0
	if n.IsPinned {
		pinned = 1
	}

	_, err = db.ExecContext(ctx, upsertNote,
		n.ID, n.OwnerID, n.Title, n.Content, n.Color, cover, pinned,
		timex.ToUnixMilli(n.CreatedAt), timex.ToUnixMilli(n.UpdatedAt), string(raw))
	if err != nil {
		return fmt.Errorf("upsert note %s: %w", n.ID, err)
	}
	return nil
}

// PutNotes writes the batch in one transaction. If the transaction fails
// every note is retried on its own so one bad record does not lose the rest;
// the per-record errors are joined.
func (r *SQLiteRepository) PutNotes(ctx context.Context, notes []models.Note) error {
	if len(notes) == 0 {
		return nil
	}

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, n := range notes {
			if err := upsert(ctx, tx, n); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		return nil
	}

	r.logger.Warn(ctx, "batch note write failed, retrying per record", "count", len(notes), "error", err)

	var errs []error
	for _, n := range notes {
		if err := upsert(ctx, r.db, n); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		r.logger.Error(ctx, "per-record note write failed", "failed", len(errs), "count", len(notes))
	}
	return errors.Join(errs...)
}

func (r *SQLiteRepository) PutNote(ctx context.Context, n models.Note) error {
	return upsert(ctx, r.db, n)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (models.Note, error) {
	var (
		n                    models.Note
		cover                sql.NullString
		pinned               int64
		createdAt, updatedAt int64
		attachments          string
	)
	if err := s.Scan(&n.ID, &n.OwnerID, &n.Title, &n.Content, &n.Color, &cover, &pinned,
		&createdAt, &updatedAt, &attachments); err != nil {
		return models.Note{}, err
	}

	if cover.Valid {
		n.CoverImageURL = models.Ptr(cover.String)
	}
	n.IsPinned = pinned != 0
	n.CreatedAt = timex.UnixMilli(createdAt)
	n.UpdatedAt = timex.UnixMilli(updatedAt)

	if attachments != "" {
		if err := json.Unmarshal([]byte(attachments), &n.Attachments); err != nil {
			return models.Note{}, fmt.Errorf("decode attachments of note %s: %w", n.ID, err)
		}
	}
	if len(n.Attachments) == 0 {
		n.Attachments = nil
	}
	return n, nil
}

func (r *SQLiteRepository) GetAllNotes(ctx context.Context) ([]models.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var result []models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note row: %w", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate note rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (models.Note, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Note{}, common.ErrNotFound
	}
	if err != nil {
		return models.Note{}, fmt.Errorf("get note %s: %w", id, err)
	}
	return n, nil
}

func (r *SQLiteRepository) DeleteNote(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete note %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExcept(ctx context.Context, keep []string) error {
	query := `DELETE FROM notes`
	if len(keep) > 0 {
		query += ` WHERE id NOT IN (` + dbx.Placeholders(len(keep)) + `)`
	}
	if _, err := r.db.ExecContext(ctx, query, dbx.Args(keep)...); err != nil {
		return fmt.Errorf("prune notes: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ReplaceTemp(ctx context.Context, tempID string, n models.Note) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, tempID); err != nil {
			return fmt.Errorf("delete temporary note %s: %w", tempID, err)
		}
		return upsert(ctx, tx, n)
	})
}

func (r *SQLiteRepository) CountByCover(ctx context.Context, url string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes WHERE cover_image_url = ?`, url).Scan(&n); err != nil {
		return 0, fmt.Errorf("count notes by cover: %w", err)
	}
	return n, nil
}

package notes

import (
	"context"

	"github.com/dmitrijs2005/notekeeper/internal/client/models"
)

// Repository persists the local mirror of the user's notes.
type Repository interface {
	// PutNotes upserts a batch. It never clears the table first.
	PutNotes(ctx context.Context, notes []models.Note) error
	PutNote(ctx context.Context, n models.Note) error
	// GetAllNotes returns notes ordered by UpdatedAt, newest first.
	GetAllNotes(ctx context.Context) ([]models.Note, error)
	GetByID(ctx context.Context, id string) (models.Note, error)
	// DeleteNote succeeds when the note does not exist.
	DeleteNote(ctx context.Context, id string) error
	// DeleteExcept removes every note whose id is not in keep.
	DeleteExcept(ctx context.Context, keep []string) error
	// ReplaceTemp swaps a temporary note for its server counterpart.
	ReplaceTemp(ctx context.Context, tempID string, n models.Note) error
	CountByCover(ctx context.Context, url string) (int, error)
}

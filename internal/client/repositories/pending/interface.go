package pending

import (
	"context"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/client/models"
)

// Repository is the durable backing of the pending operation queue.
type Repository interface {
	Insert(ctx context.Context, op models.PendingOperation) error
	// List returns operations in enqueue order.
	List(ctx context.Context) ([]models.PendingOperation, error)
	// Remove succeeds when the id does not exist.
	Remove(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	// RetargetNote points queued operations at toID instead of fromID.
	RetargetNote(ctx context.Context, fromID, toID string) (int64, error)
	// NoteIDs lists the distinct note ids referenced by queued operations.
	NoteIDs(ctx context.Context) ([]string, error)
	// LastEnqueuedAt returns the newest EnqueuedAt, or the zero time.
	LastEnqueuedAt(ctx context.Context) (time.Time, error)
}

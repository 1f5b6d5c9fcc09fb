// Package queue is the durable FIFO of mutations made while offline.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/notekeeper/internal/client/models"
	"github.com/dmitrijs2005/notekeeper/internal/client/repositories/pending"
	"github.com/dmitrijs2005/notekeeper/internal/timex"
)

// RepositoryProvider yields the pending operation repository, or an error
// while the local store is unavailable. *store.Store implements it.
type RepositoryProvider interface {
	Pending() (pending.Repository, error)
}

type Queue struct {
	repos RepositoryProvider
	now   func() time.Time

	mu     sync.Mutex
	last   int64
	seeded bool

	notify chan struct{}
}

type Option func(*Queue)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func New(repos RepositoryProvider, opts ...Option) *Queue {
	q := &Queue{
		repos:  repos,
		now:    time.Now,
		notify: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Notify receives a value after an operation was enqueued. Signals are
// coalesced.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}

// nextTimestamp returns a millisecond timestamp strictly greater than every
// previously issued one, so FIFO order survives bursts inside one millisecond.
func (q *Queue) nextTimestamp(ctx context.Context, repo pending.Repository) (int64, error) {
	if !q.seeded {
		last, err := repo.LastEnqueuedAt(ctx)
		if err != nil {
			return 0, err
		}
		q.last = timex.ToUnixMilli(last)
		q.seeded = true
	}
	ms := q.now().UnixMilli()
	if ms <= q.last {
		ms = q.last + 1
	}
	q.last = ms
	return ms, nil
}

// Enqueue assigns an id and timestamp to op and appends it. It does not wait
// for the operation to be replayed.
func (q *Queue) Enqueue(ctx context.Context, op models.PendingOperation) (models.PendingOperation, error) {
	if err := op.Validate(); err != nil {
		return models.PendingOperation{}, err
	}
	repo, err := q.repos.Pending()
	if err != nil {
		return models.PendingOperation{}, err
	}

	q.mu.Lock()
	ms, err := q.nextTimestamp(ctx, repo)
	if err == nil {
		op.ID = uuid.NewString()
		op.EnqueuedAt = timex.UnixMilli(ms)
		err = repo.Insert(ctx, op)
	}
	q.mu.Unlock()
	if err != nil {
		return models.PendingOperation{}, fmt.Errorf("enqueue %s for note %s: %w", op.Kind, op.NoteID, err)
	}

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return op, nil
}

// List returns queued operations oldest first.
func (q *Queue) List(ctx context.Context) ([]models.PendingOperation, error) {
	repo, err := q.repos.Pending()
	if err != nil {
		return nil, err
	}
	return repo.List(ctx)
}

// Remove deletes an operation; a missing id is not an error.
func (q *Queue) Remove(ctx context.Context, id string) error {
	repo, err := q.repos.Pending()
	if err != nil {
		return err
	}
	return repo.Remove(ctx, id)
}

// Clear drops every queued operation. Only an explicit user reset calls it.
func (q *Queue) Clear(ctx context.Context) error {
	repo, err := q.repos.Pending()
	if err != nil {
		return err
	}
	return repo.Clear(ctx)
}

func (q *Queue) Count(ctx context.Context) (int, error) {
	repo, err := q.repos.Pending()
	if err != nil {
		return 0, err
	}
	return repo.Count(ctx)
}

// RetargetNote rewrites queued operations on a temporary id to the id the
// server assigned.
func (q *Queue) RetargetNote(ctx context.Context, fromID, toID string) error {
	repo, err := q.repos.Pending()
	if err != nil {
		return err
	}
	_, err = repo.RetargetNote(ctx, fromID, toID)
	return err
}

// NoteIDs lists notes that still have queued operations.
func (q *Queue) NoteIDs(ctx context.Context) ([]string, error) {
	repo, err := q.repos.Pending()
	if err != nil {
		return nil, err
	}
	return repo.NoteIDs(ctx)
}

// Package syncer replays queued offline mutations against the note store
// once the client is back online and then refreshes the local mirror.
//
// A cycle moves Idle -> Draining -> Reconciling -> Reporting -> Idle. Only
// one cycle runs at a time; triggers that arrive during a cycle are dropped.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/notekeeper/internal/client/models"
	"github.com/dmitrijs2005/notekeeper/internal/client/remote"
	"github.com/dmitrijs2005/notekeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
)

var (
	ErrInProgress = errors.New("sync already in progress")
	ErrOffline    = errors.New("cannot sync while offline")
)

// ErrDependsOnCreate marks operations on a note whose offline creation has
// not reached the server yet.
var ErrDependsOnCreate = errors.New("note has not been created on the server yet")

type Queue interface {
	List(ctx context.Context) ([]models.PendingOperation, error)
	Remove(ctx context.Context, id string) error
	RetargetNote(ctx context.Context, fromID, toID string) error
	NoteIDs(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	Notify() <-chan struct{}
}

type Remote interface {
	CreateNote(ctx context.Context, ownerID string, f models.NoteFields) (models.Note, error)
	UpdateNote(ctx context.Context, id string, u models.NoteUpdate) (models.Note, error)
	DeleteNote(ctx context.Context, id string) error
	ListNotes(ctx context.Context, ownerID string) ([]models.Note, error)
}

type Connectivity interface {
	Online() bool
	Subscribe() (<-chan connectivity.Event, func())
}

// LocalState is the in-memory and on-disk note collection the engine
// updates. services.NoteService implements it.
type LocalState interface {
	Get(id string) (models.Note, bool)
	Snapshot() []models.Note
	ReplaceTemp(ctx context.Context, tempID string, n models.Note) error
	RemoveLocal(ctx context.Context, id string) (models.Note, bool, error)
	CoverInUse(ctx context.Context, url string) bool
	ReplaceAll(ctx context.Context, notes []models.Note)
}

type AssetForgetter interface {
	Forget(ctx context.Context, url string) error
}

type MetadataProvider interface {
	Metadata() (metadata.Repository, error)
}

// OwnerFunc returns the authenticated user's id.
type OwnerFunc func(ctx context.Context) (string, error)

// Report summarizes one drain cycle.
type Report struct {
	Succeeded int
	Failed    int
	Remaining int
	// Unremoved counts operations the server applied but that could not be
	// taken off the queue. They are replayed next cycle without effect.
	Unremoved int
	StartedAt time.Time
	Finished  time.Time
	Err       error
}

type Config struct {
	Queue        Queue
	Remote       Remote
	Connectivity Connectivity
	State        LocalState
	Assets       AssetForgetter
	Metadata     MetadataProvider
	Owner        OwnerFunc
	Logger       logging.Logger
	Now          func() time.Time
	// OnReport is called after every cycle that processed operations.
	OnReport func(Report)
}

type Engine struct {
	cfg    Config
	logger logging.Logger

	running atomic.Bool

	mu   sync.Mutex
	last *Report
}

func New(cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	return &Engine{cfg: cfg, logger: cfg.Logger.With("component", "syncer")}
}

// Running reports whether a cycle is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// LastReport returns the most recent report, if any.
func (e *Engine) LastReport() (Report, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return Report{}, false
	}
	return *e.last, true
}

// Trigger runs a cycle now. It returns ErrInProgress when one is already
// running and ErrOffline when the store is unreachable.
func (e *Engine) Trigger(ctx context.Context) (Report, error) {
	if !e.cfg.Connectivity.Online() {
		return Report{}, ErrOffline
	}
	if !e.running.CompareAndSwap(false, true) {
		return Report{}, ErrInProgress
	}
	defer e.running.Store(false)
	return e.drain(ctx), nil
}

// Run drains on every transition to online and whenever new operations are
// queued while online, until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	events, unsubscribe := e.cfg.Connectivity.Subscribe()
	defer unsubscribe()

	try := func(reason string) {
		if _, err := e.Trigger(ctx); err != nil && !errors.Is(err, ErrOffline) {
			e.logger.Debug(ctx, "sync skipped", "reason", reason, "error", err)
		}
	}

	try("startup")
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev == connectivity.BecameOnline {
				try("online")
			}
		case <-e.cfg.Queue.Notify():
			try("enqueued")
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) drain(ctx context.Context) Report {
	ops, err := e.cfg.Queue.List(ctx)
	if err != nil {
		e.logger.Warn(ctx, "cannot read pending operations", "error", err)
		return Report{Err: err}
	}
	if len(ops) == 0 {
		return Report{}
	}

	report := Report{StartedAt: e.cfg.Now()}
	e.logger.Info(ctx, "sync started", "pending", len(ops))

	owner, err := e.cfg.Owner(ctx)
	if err != nil {
		report.Err = fmt.Errorf("resolve owner: %w", err)
		report.Failed = len(ops)
		report.Remaining = len(ops)
		return e.finish(ctx, report)
	}

	// ids assigned to notes created earlier in this cycle
	created := make(map[string]string)

	for _, op := range ops {
		if ctx.Err() != nil {
			break
		}
		if err := e.apply(ctx, owner, op, created); err != nil {
			report.Failed++
			e.logger.Warn(ctx, "pending operation failed",
				"op", op.ID, "kind", string(op.Kind), "note", op.NoteID, "error", err)
			continue
		}
		if err := e.dequeue(ctx, op.ID); err != nil {
			report.Unremoved++
			e.logger.Warn(ctx, "cannot remove replayed operation", "op", op.ID, "error", err)
			continue
		}
		report.Succeeded++
	}

	if report.Succeeded+report.Unremoved > 0 {
		if err := e.reconcile(ctx, owner); err != nil {
			report.Err = err
			e.logger.Warn(ctx, "reconcile failed", "error", err)
		}
	}

	if n, err := e.cfg.Queue.Count(ctx); err == nil {
		report.Remaining = n
	} else {
		report.Remaining = report.Failed
	}
	return e.finish(ctx, report)
}

// dequeue removes an applied operation, trying twice.
func (e *Engine) dequeue(ctx context.Context, id string) error {
	err := e.cfg.Queue.Remove(ctx, id)
	if err == nil {
		return nil
	}
	return e.cfg.Queue.Remove(ctx, id)
}

func (e *Engine) apply(ctx context.Context, owner string, op models.PendingOperation, created map[string]string) error {
	noteID := op.NoteID
	if id, ok := created[noteID]; ok {
		noteID = id
	}

	switch op.Kind {
	case models.OperationCreate:
		// A create retargeted to a server id already reached the server.
		if !models.IsTempID(op.NoteID) {
			e.logger.Info(ctx, "skipping create that was already applied", "op", op.ID, "note", op.NoteID)
			return nil
		}
		p, err := op.CreatePayload()
		if err != nil {
			return fmt.Errorf("%w: %v", common.ErrInvalidOperation, err)
		}
		n, err := e.cfg.Remote.CreateNote(ctx, owner, p.Fields)
		if err != nil {
			return err
		}
		if err := e.cfg.State.ReplaceTemp(ctx, op.NoteID, n); err != nil {
			e.logger.Warn(ctx, "cannot replace temporary note", "temp", op.NoteID, "id", n.ID, "error", err)
		}
		if err := e.cfg.Queue.RetargetNote(ctx, op.NoteID, n.ID); err != nil {
			e.logger.Warn(ctx, "cannot retarget queued operations", "temp", op.NoteID, "id", n.ID, "error", err)
		}
		created[op.NoteID] = n.ID
		return nil

	case models.OperationUpdate:
		if models.IsTempID(noteID) {
			return ErrDependsOnCreate
		}
		u, err := op.UpdatePayload()
		if err != nil {
			return fmt.Errorf("%w: %v", common.ErrInvalidOperation, err)
		}
		if _, ok := e.cfg.State.Get(noteID); !ok {
			e.logger.Info(ctx, "replaying update for a note missing locally", "note", noteID)
		}
		_, err = e.cfg.Remote.UpdateNote(ctx, noteID, u)
		return err

	case models.OperationDelete:
		if models.IsTempID(noteID) {
			return ErrDependsOnCreate
		}
		err := e.cfg.Remote.DeleteNote(ctx, noteID)
		if errors.Is(err, remote.ErrNotFound) {
			err = nil
		}
		e.removeLocal(ctx, noteID)
		return err

	default:
		return fmt.Errorf("%w: %q", common.ErrInvalidOperation, op.Kind)
	}
}

// removeLocal drops the note and, when no other note shows the same
// cover, its cached cover image.
func (e *Engine) removeLocal(ctx context.Context, id string) {
	n, ok, err := e.cfg.State.RemoveLocal(ctx, id)
	if err != nil {
		e.logger.Warn(ctx, "cannot remove local note", "note", id, "error", err)
	}
	if !ok || n.Cover() == "" || e.cfg.Assets == nil {
		return
	}
	if e.cfg.State.CoverInUse(ctx, n.Cover()) {
		return
	}
	if err := e.cfg.Assets.Forget(ctx, n.Cover()); err != nil {
		e.logger.Warn(ctx, "cannot drop cached cover", "url", n.Cover(), "error", err)
	}
}

// reconcile replaces local state with the server's notes. Local notes that
// queued operations still refer to are kept so they are not lost before
// they reach the server.
func (e *Engine) reconcile(ctx context.Context, owner string) error {
	fresh, err := e.cfg.Remote.ListNotes(ctx, owner)
	if err != nil {
		return fmt.Errorf("list notes: %w", err)
	}

	referenced, err := e.cfg.Queue.NoteIDs(ctx)
	if err != nil {
		return fmt.Errorf("list queued note ids: %w", err)
	}
	keep := make(map[string]bool, len(referenced))
	for _, id := range referenced {
		keep[id] = true
	}

	seen := make(map[string]bool, len(fresh))
	for _, n := range fresh {
		seen[n.ID] = true
	}

	merged := append([]models.Note(nil), fresh...)
	for _, n := range e.cfg.State.Snapshot() {
		if keep[n.ID] && !seen[n.ID] {
			merged = append(merged, n)
		}
	}
	e.cfg.State.ReplaceAll(ctx, merged)
	return nil
}

func (e *Engine) finish(ctx context.Context, report Report) Report {
	report.Finished = e.cfg.Now()

	if report.Err == nil && report.Succeeded > 0 && report.Unremoved == 0 && e.cfg.Metadata != nil {
		if repo, err := e.cfg.Metadata.Metadata(); err == nil {
			if err := repo.SetTime(ctx, common.MetadataLastSyncAt, report.Finished); err != nil {
				e.logger.Warn(ctx, "cannot record last sync time", "error", err)
			}
		}
	}

	e.mu.Lock()
	e.last = &report
	e.mu.Unlock()

	e.logger.Info(ctx, "sync finished",
		"succeeded", report.Succeeded, "failed", report.Failed,
		"unremoved", report.Unremoved, "remaining", report.Remaining)

	if e.cfg.OnReport != nil {
		e.cfg.OnReport(report)
	}
	return report
}

// Package services contains the client application services. NoteService
// is the note repository the UI talks to: it serves reads from memory,
// writes through to the server while online, and records changes locally
// and in the pending queue while offline.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/notekeeper/internal/client/models"
	"github.com/dmitrijs2005/notekeeper/internal/client/remote"
	"github.com/dmitrijs2005/notekeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/notekeeper/internal/client/repositories/notes"
	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
)

const (
	DefaultMaxPinned   = 5
	DefaultMirrorDelay = 500 * time.Millisecond
)

// NoteService is the cache-aware note repository.
type NoteService interface {
	Load(ctx context.Context) error
	List() []models.Note
	Get(id string) (models.Note, bool)

	Create(ctx context.Context, f models.NoteFields) (models.Note, error)
	Save(ctx context.Context, id string, u models.NoteUpdate) (models.Note, error)
	Remove(ctx context.Context, id string) error
	TogglePin(ctx context.Context, id string) (models.Note, error)

	AddAttachment(ctx context.Context, noteID, name, mimeType string, data []byte) (models.Attachment, error)
	RemoveAttachment(ctx context.Context, noteID, attachmentID string) error
	SetCover(ctx context.Context, noteID, name string, data []byte) (models.Note, error)

	Status(ctx context.Context) Status
	Reset(ctx context.Context) error
	Refresh(ctx context.Context) (bool, error)

	// Used by the sync engine.
	Snapshot() []models.Note
	ReplaceAll(ctx context.Context, notes []models.Note)
	ReplaceTemp(ctx context.Context, tempID string, n models.Note) error
	RemoveLocal(ctx context.Context, id string) (models.Note, bool, error)
	CoverInUse(ctx context.Context, url string) bool

	// Flush writes a scheduled mirror immediately.
	Flush(ctx context.Context)
}

type LocalStore interface {
	Ready() bool
	Notes() (notes.Repository, error)
	Metadata() (metadata.Repository, error)
}

type Queue interface {
	Enqueue(ctx context.Context, op models.PendingOperation) (models.PendingOperation, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

type Connectivity interface {
	Online() bool
}

// AssetCacher warms the image cache for new covers.
type AssetCacher interface {
	AutoCache(url string)
}

type OwnerFunc func(ctx context.Context) (string, error)

type NoteDeps struct {
	Remote       remote.NoteStore
	Store        LocalStore
	Queue        Queue
	Connectivity Connectivity
	Assets       AssetCacher
	Owner        OwnerFunc
	Logger       logging.Logger
	Now          func() time.Time
	MaxPinned    int
	MirrorDelay  time.Duration
}

type noteService struct {
	remote   remote.NoteStore
	store    LocalStore
	queue    Queue
	conn     Connectivity
	assets   AssetCacher
	owner    OwnerFunc
	logger   logging.Logger
	now      func() time.Time
	validate *validator.Validate

	maxPinned   int
	mirrorDelay time.Duration

	mu    sync.RWMutex
	notes map[string]models.Note

	// writeMu serializes every write to the notes table.
	writeMu sync.Mutex
	// mutating is read-held by every direct mutation; a mirror write
	// holds it exclusively.
	mutating sync.RWMutex

	mirrorMu    sync.Mutex
	mirrorGen   uint64
	mirrorTimer *time.Timer
	mirrorDue   bool
}

func NewNoteService(d NoteDeps) NoteService {
	s := &noteService{
		remote:      d.Remote,
		store:       d.Store,
		queue:       d.Queue,
		conn:        d.Connectivity,
		assets:      d.Assets,
		owner:       d.Owner,
		logger:      d.Logger,
		now:         d.Now,
		validate:    validator.New(),
		maxPinned:   d.MaxPinned,
		mirrorDelay: d.MirrorDelay,
		notes:       make(map[string]models.Note),
	}
	if s.logger == nil {
		s.logger = logging.Nop()
	}
	s.logger = s.logger.With("component", "notes")
	if s.now == nil {
		s.now = time.Now
	}
	if s.maxPinned <= 0 {
		s.maxPinned = DefaultMaxPinned
	}
	if s.mirrorDelay <= 0 {
		s.mirrorDelay = DefaultMirrorDelay
	}
	return s
}

func (s *noteService) online() bool {
	return s.conn != nil && s.conn.Online()
}

// stamp returns the current time truncated to the store's precision.
func (s *noteService) stamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Load fills memory from the local store. With the store unavailable the
// service starts empty and relies on the server.
func (s *noteService) Load(ctx context.Context) error {
	repo, err := s.store.Notes()
	if err != nil {
		return err
	}
	all, err := repo.GetAllNotes(ctx)
	if err != nil {
		return fmt.Errorf("load notes: %w", err)
	}

	s.mu.Lock()
	s.notes = make(map[string]models.Note, len(all))
	for _, n := range all {
		s.notes[n.ID] = n
	}
	s.mu.Unlock()

	s.logger.Debug(ctx, "notes loaded from local store", "count", len(all))
	return nil
}

// List returns pinned notes first, then by last update, newest first.
func (s *noteService) List() []models.Note {
	out := s.Snapshot()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsPinned != out[j].IsPinned {
			return out[i].IsPinned
		}
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *noteService) Get(id string) (models.Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return models.Note{}, false
	}
	return n.Clone(), true
}

func (s *noteService) Snapshot() []models.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CoverInUse reports whether any note in memory or in the local store
// still uses url as its cover. A store error counts as in use.
func (s *noteService) CoverInUse(ctx context.Context, url string) bool {
	s.mu.RLock()
	for _, n := range s.notes {
		if n.Cover() == url {
			s.mu.RUnlock()
			return true
		}
	}
	s.mu.RUnlock()

	repo, err := s.store.Notes()
	if err != nil {
		return false
	}
	n, err := repo.CountByCover(ctx, url)
	if err != nil {
		s.logger.Warn(ctx, "cannot count cover users", "url", url, "error", err)
		return true
	}
	return n > 0
}

func (s *noteService) put(n models.Note) {
	s.mu.Lock()
	s.notes[n.ID] = n.Clone()
	s.mu.Unlock()
}

func (s *noteService) drop(id string) (models.Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	delete(s.notes, id)
	return n, ok
}

func (s *noteService) pinnedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := 0
	for _, n := range s.notes {
		if n.IsPinned {
			c++
		}
	}
	return c
}

func (s *noteService) checkPinLimit() error {
	if s.pinnedCount() >= s.maxPinned {
		return fmt.Errorf("%w: at most %d notes can be pinned", common.ErrPinLimitReached, s.maxPinned)
	}
	return nil
}

func (s *noteService) validateStruct(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return nil
}

// begin marks a direct mutation so background mirrors wait for it.
func (s *noteService) begin() func() {
	s.mutating.RLock()
	return s.mutating.RUnlock
}

// persist writes n to the local store. Failures are returned; online
// callers treat them as non-fatal.
func (s *noteService) persist(ctx context.Context, n models.Note) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	repo, err := s.store.Notes()
	if err != nil {
		return err
	}
	return repo.PutNote(ctx, n)
}

func (s *noteService) unpersist(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	repo, err := s.store.Notes()
	if err != nil {
		return err
	}
	return repo.DeleteNote(ctx, id)
}

func (s *noteService) mirrorOne(ctx context.Context, n models.Note) {
	if err := s.persist(ctx, n); err != nil && !errors.Is(err, common.ErrStoreUnavailable) {
		s.logger.Warn(ctx, "cannot mirror note locally", "note", n.ID, "error", err)
	}
}

func (s *noteService) enqueue(ctx context.Context, op models.PendingOperation, err error) error {
	if err != nil {
		return err
	}
	if _, err := s.queue.Enqueue(ctx, op); err != nil {
		return fmt.Errorf("queue %s: %w", op.Kind, err)
	}
	return nil
}

// Create adds a note. Offline notes get a temporary id until the sync
// engine creates them on the server.
func (s *noteService) Create(ctx context.Context, f models.NoteFields) (models.Note, error) {
	f = f.WithDefaults()
	if err := s.validateStruct(f); err != nil {
		return models.Note{}, err
	}
	if f.IsPinned {
		if err := s.checkPinLimit(); err != nil {
			return models.Note{}, err
		}
	}

	owner, err := s.owner(ctx)
	if err != nil {
		return models.Note{}, err
	}

	done := s.begin()
	defer done()

	if s.online() {
		n, err := s.remote.CreateNote(ctx, owner, f)
		if err != nil {
			return models.Note{}, fmt.Errorf("create note: %w", err)
		}
		s.put(n)
		s.mirrorOne(ctx, n)
		return n.Clone(), nil
	}

	if !s.store.Ready() {
		return models.Note{}, common.ErrStoreUnavailable
	}

	now := s.stamp()
	n := models.NewNote(models.NewTempID(), owner, f, now)
	if err := s.persist(ctx, n); err != nil {
		return models.Note{}, fmt.Errorf("save offline note: %w", err)
	}
	op, opErr := models.NewCreateOperation(n.ID, models.CreatePayload{Fields: f, CreatedAt: now})
	if err := s.enqueue(ctx, op, opErr); err != nil {
		_ = s.unpersist(ctx, n.ID)
		return models.Note{}, err
	}
	s.put(n)
	return n.Clone(), nil
}

// Save applies a partial update. Notes that only exist locally are always
// updated through the queue so the update follows their creation.
func (s *noteService) Save(ctx context.Context, id string, u models.NoteUpdate) (models.Note, error) {
	if err := s.validateStruct(u); err != nil {
		return models.Note{}, err
	}
	current, ok := s.Get(id)
	if !ok {
		return models.Note{}, fmt.Errorf("note %s: %w", id, common.ErrNotFound)
	}
	if u.IsEmpty() {
		return current, nil
	}
	if u.IsPinned != nil && *u.IsPinned && !current.IsPinned {
		if err := s.checkPinLimit(); err != nil {
			return models.Note{}, err
		}
	}

	done := s.begin()
	defer done()

	if s.online() && !models.IsTempID(id) {
		n, err := s.remote.UpdateNote(ctx, id, u)
		if err != nil {
			return models.Note{}, fmt.Errorf("update note: %w", err)
		}
		s.put(n)
		s.mirrorOne(ctx, n)
		return n.Clone(), nil
	}

	if !s.store.Ready() {
		return models.Note{}, common.ErrStoreUnavailable
	}

	merged := u.Apply(current)
	merged.UpdatedAt = s.stamp()
	if err := s.persist(ctx, merged); err != nil {
		return models.Note{}, fmt.Errorf("save offline update: %w", err)
	}
	op, opErr := models.NewUpdateOperation(id, u)
	if err := s.enqueue(ctx, op, opErr); err != nil {
		_ = s.persist(ctx, current)
		return models.Note{}, err
	}
	s.put(merged)
	return merged.Clone(), nil
}

func (s *noteService) Remove(ctx context.Context, id string) error {
	current, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("note %s: %w", id, common.ErrNotFound)
	}

	done := s.begin()
	defer done()

	if s.online() && !models.IsTempID(id) {
		if err := s.remote.DeleteNote(ctx, id); err != nil && !errors.Is(err, remote.ErrNotFound) {
			return fmt.Errorf("delete note: %w", err)
		}
		s.drop(id)
		if err := s.unpersist(ctx, id); err != nil && !errors.Is(err, common.ErrStoreUnavailable) {
			s.logger.Warn(ctx, "cannot remove note locally", "note", id, "error", err)
		}
		return nil
	}

	if !s.store.Ready() {
		return common.ErrStoreUnavailable
	}
	if err := s.unpersist(ctx, id); err != nil {
		return fmt.Errorf("remove offline note: %w", err)
	}
	if err := s.enqueue(ctx, models.NewDeleteOperation(id), nil); err != nil {
		_ = s.persist(ctx, current)
		return err
	}
	s.drop(id)
	return nil
}

func (s *noteService) TogglePin(ctx context.Context, id string) (models.Note, error) {
	current, ok := s.Get(id)
	if !ok {
		return models.Note{}, fmt.Errorf("note %s: %w", id, common.ErrNotFound)
	}
	return s.Save(ctx, id, models.NoteUpdate{IsPinned: models.Ptr(!current.IsPinned)})
}

// ReplaceTemp swaps a synced note in for its temporary twin.
func (s *noteService) ReplaceTemp(ctx context.Context, tempID string, n models.Note) error {
	s.mu.Lock()
	delete(s.notes, tempID)
	s.notes[n.ID] = n.Clone()
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	repo, err := s.store.Notes()
	if err != nil {
		return err
	}
	return repo.ReplaceTemp(ctx, tempID, n)
}

func (s *noteService) RemoveLocal(ctx context.Context, id string) (models.Note, bool, error) {
	n, ok := s.drop(id)
	return n, ok, s.unpersist(ctx, id)
}

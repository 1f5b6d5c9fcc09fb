package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/notekeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/notekeeper/internal/client/models"
	"github.com/dmitrijs2005/notekeeper/internal/client/queue"
	"github.com/dmitrijs2005/notekeeper/internal/client/remote"
	"github.com/dmitrijs2005/notekeeper/internal/client/store"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
)

const owner = "owner-1"

type fakeRemote struct {
	mu      sync.Mutex
	notes   map[string]models.Note
	uploads map[string][]byte
	next    int
	calls   int
	err     error
	gate    chan struct{}
	entered chan struct{}
}

var _ remote.NoteStore = (*fakeRemote)(nil)

func newFakeRemote() *fakeRemote {
	return &fakeRemote{notes: make(map[string]models.Note), uploads: make(map[string][]byte)}
}

func (r *fakeRemote) begin() error {
	r.mu.Lock()
	r.calls++
	gate, entered, err := r.gate, r.entered, r.err
	r.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}
	return err
}

func (r *fakeRemote) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *fakeRemote) CreateNote(ctx context.Context, ownerID string, f models.NoteFields) (models.Note, error) {
	if err := r.begin(); err != nil {
		return models.Note{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	n := models.NewNote(fmt.Sprintf("srv-%d", r.next), ownerID, f, time.Date(2025, 1, 1, 0, 0, r.next, 0, time.UTC))
	r.notes[n.ID] = n
	return n, nil
}

func (r *fakeRemote) UpdateNote(ctx context.Context, id string, u models.NoteUpdate) (models.Note, error) {
	if err := r.begin(); err != nil {
		return models.Note{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notes[id]
	if !ok {
		return models.Note{}, remote.ErrNotFound
	}
	n = u.Apply(n)
	r.notes[id] = n
	return n, nil
}

func (r *fakeRemote) DeleteNote(ctx context.Context, id string) error {
	if err := r.begin(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.notes[id]; !ok {
		return remote.ErrNotFound
	}
	delete(r.notes, id)
	return nil
}

func (r *fakeRemote) ListNotes(ctx context.Context, ownerID string) ([]models.Note, error) {
	if err := r.begin(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Note
	for _, n := range r.notes {
		if n.OwnerID == ownerID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRemote) AddAttachment(ctx context.Context, a models.Attachment) (models.Attachment, error) {
	if err := r.begin(); err != nil {
		return models.Attachment{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	a.ID = fmt.Sprintf("att-%d", r.next)
	n := r.notes[a.NoteID]
	n.Attachments = append(n.Attachments, a)
	r.notes[a.NoteID] = n
	return a, nil
}

func (r *fakeRemote) DeleteAttachment(ctx context.Context, id string) error {
	return r.begin()
}

func (r *fakeRemote) UploadAsset(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if err := r.begin(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads[path] = data
	return r.GetPublicURL(path), nil
}

func (r *fakeRemote) GetPublicURL(path string) string {
	return "https://cdn.example.com/notes/" + path
}

func (r *fakeRemote) Ping(ctx context.Context) error {
	return r.begin()
}

type fakeCacher struct {
	mu   sync.Mutex
	urls []string
}

func (c *fakeCacher) AutoCache(url string) {
	c.mu.Lock()
	c.urls = append(c.urls, url)
	c.mu.Unlock()
}

type fixture struct {
	store   *store.Store
	queue   *queue.Queue
	remote  *fakeRemote
	monitor *connectivity.Monitor
	cacher  *fakeCacher
	svc     NoteService
	now     time.Time
}

func newFixture(t *testing.T, online bool) *fixture {
	t.Helper()
	s := store.New(filepath.Join(t.TempDir(), "notes.db"), logging.Nop())
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return newFixtureWithStore(t, s, online)
}

func newFixtureWithStore(t *testing.T, s *store.Store, online bool) *fixture {
	t.Helper()
	f := &fixture{
		store:   s,
		queue:   queue.New(s),
		remote:  newFakeRemote(),
		monitor: connectivity.NewMonitor(online),
		cacher:  &fakeCacher{},
		now:     time.Date(2025, 5, 5, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewNoteService(NoteDeps{
		Remote:       f.remote,
		Store:        s,
		Queue:        f.queue,
		Connectivity: f.monitor,
		Assets:       f.cacher,
		Owner:        func(context.Context) (string, error) { return owner, nil },
		Logger:       logging.Nop(),
		Now:          func() time.Time { return f.now },
		MirrorDelay:  30 * time.Millisecond,
	})
	t.Cleanup(func() { f.svc.Flush(context.Background()) })
	return f
}

func (f *fixture) stored(t *testing.T) []models.Note {
	t.Helper()
	repo, err := f.store.Notes()
	require.NoError(t, err)
	all, err := repo.GetAllNotes(context.Background())
	require.NoError(t, err)
	return all
}

func (f *fixture) queued(t *testing.T) []models.PendingOperation {
	t.Helper()
	ops, err := f.queue.List(context.Background())
	require.NoError(t, err)
	return ops
}

// seed puts notes on the server and in the service as if loaded.
func (f *fixture) seed(t *testing.T, notes ...models.Note) {
	t.Helper()
	f.remote.mu.Lock()
	for _, n := range notes {
		f.remote.notes[n.ID] = n
	}
	f.remote.mu.Unlock()

	repo, err := f.store.Notes()
	require.NoError(t, err)
	require.NoError(t, repo.PutNotes(context.Background(), notes))
	require.NoError(t, f.svc.Load(context.Background()))
}

func serverNote(id, title string) models.Note {
	at := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	return models.Note{
		ID: id, OwnerID: owner, Title: title, Content: "body of " + id,
		Color: "yellow", CreatedAt: at, UpdatedAt: at,
	}
}

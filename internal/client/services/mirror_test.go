package services

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/notekeeper/internal/client/models"
)

func storedIDs(t *testing.T, f *fixture) []string {
	t.Helper()
	var ids []string
	for _, n := range f.stored(t) {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestReplaceAll_DebouncedLatestWins(t *testing.T) {
	f := newFixture(t, true)
	f.seed(t, serverNote("old", "a"))
	ctx := context.Background()

	f.svc.ReplaceAll(ctx, []models.Note{serverNote("x", "x")})
	f.svc.ReplaceAll(ctx, []models.Note{serverNote("y", "y"), serverNote("z", "z")})

	// Memory switches at once, the store only after the delay.
	require.Len(t, f.svc.List(), 2)
	require.Equal(t, []string{"old"}, storedIDs(t, f))

	require.Eventually(t, func() bool {
		ids := storedIDs(t, f)
		return len(ids) == 2 && ids[0] == "y" && ids[1] == "z"
	}, 2*time.Second, 10*time.Millisecond)

	// The superseded snapshot never lands.
	time.Sleep(80 * time.Millisecond)
	require.Equal(t, []string{"y", "z"}, storedIDs(t, f))
}

func TestReplaceAll_WaitsForDirectMutation(t *testing.T) {
	f := newFixture(t, true)
	f.seed(t, serverNote("n1", "before"))
	ctx := context.Background()

	gate := make(chan struct{})
	entered := make(chan struct{})
	f.remote.mu.Lock()
	f.remote.gate, f.remote.entered = gate, entered
	f.remote.mu.Unlock()

	saved := make(chan error, 1)
	go func() {
		_, err := f.svc.Save(ctx, "n1", models.NoteUpdate{Title: models.Ptr("after")})
		saved <- err
	}()
	<-entered

	f.svc.ReplaceAll(ctx, []models.Note{serverNote("x", "x")})
	time.Sleep(120 * time.Millisecond)
	require.Equal(t, []string{"n1"}, storedIDs(t, f), "mirror must wait for the in-flight save")

	f.remote.mu.Lock()
	f.remote.gate, f.remote.entered = nil, nil
	f.remote.mu.Unlock()
	close(gate)
	require.NoError(t, <-saved)

	require.Eventually(t, func() bool {
		ids := storedIDs(t, f)
		return len(ids) == 2 && ids[0] == "n1" && ids[1] == "x"
	}, 2*time.Second, 10*time.Millisecond)

	stored := f.stored(t)
	for _, n := range stored {
		if n.ID == "n1" {
			require.Equal(t, "after", n.Title)
		}
	}
}

func TestFlush_WritesPendingMirrorNow(t *testing.T) {
	f := newFixture(t, true)
	f.seed(t, serverNote("old", "a"))
	ctx := context.Background()

	f.svc.ReplaceAll(ctx, []models.Note{serverNote("new", "b")})
	f.svc.Flush(ctx)
	require.Equal(t, []string{"new"}, storedIDs(t, f))

	// Nothing pending: a second flush is a no-op.
	f.svc.Flush(ctx)
	require.Equal(t, []string{"new"}, storedIDs(t, f))
}

func TestReplaceAll_KeepsNotesAddedAfterSnapshot(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.svc.ReplaceAll(ctx, []models.Note{serverNote("a", "a")})
	n, err := f.svc.Create(ctx, models.NoteFields{Title: "fresh"})
	require.NoError(t, err)
	f.svc.Flush(ctx)

	require.Equal(t, []string{"a", n.ID}, storedIDs(t, f))
}

func TestFlush_KeepsDirectMutationsAfterReplaceAll(t *testing.T) {
	f := newFixture(t, true)
	x, y := serverNote("x", "x"), serverNote("y", "old")
	f.seed(t, x, y)
	ctx := context.Background()

	f.svc.ReplaceAll(ctx, []models.Note{x, y})
	require.NoError(t, f.svc.Remove(ctx, "x"))
	_, err := f.svc.Save(ctx, "y", models.NoteUpdate{Title: models.Ptr("new")})
	require.NoError(t, err)
	f.svc.Flush(ctx)

	stored := f.stored(t)
	require.Len(t, stored, 1)
	require.Equal(t, "y", stored[0].ID)
	require.Equal(t, "new", stored[0].Title)

	// A restart sees the same state.
	restarted := newFixtureWithStore(t, f.store, false)
	require.NoError(t, restarted.svc.Load(ctx))
	_, ok := restarted.svc.Get("x")
	require.False(t, ok)
	got, ok := restarted.svc.Get("y")
	require.True(t, ok)
	require.Equal(t, "new", got.Title)
}

func TestReplaceAll_TimerKeepsDirectRemove(t *testing.T) {
	f := newFixture(t, true)
	x, y := serverNote("x", "x"), serverNote("y", "y")
	f.seed(t, x, y)
	ctx := context.Background()

	f.svc.ReplaceAll(ctx, []models.Note{x, y})
	require.NoError(t, f.svc.Remove(ctx, "x"))

	// Let the debounced write fire on its own.
	time.Sleep(120 * time.Millisecond)
	require.Equal(t, []string{"y"}, storedIDs(t, f))
}

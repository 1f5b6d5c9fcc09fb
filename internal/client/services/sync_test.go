package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/notekeeper/internal/client/models"
	"github.com/dmitrijs2005/notekeeper/internal/client/syncer"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
)

type nopForgetter struct{}

func (nopForgetter) Forget(context.Context, string) error { return nil }

// Offline edits made through the service reach the server on the next sync
// and the temporary note is replaced by the server's copy.
func TestOfflineEditsSyncThroughEngine(t *testing.T) {
	f := newFixture(t, true)
	f.seed(t, serverNote("n1", "shared"))
	ctx := context.Background()

	f.monitor.Set(false)
	tmp, err := f.svc.Create(ctx, models.NoteFields{Title: "written offline"})
	require.NoError(t, err)
	_, err = f.svc.Save(ctx, tmp.ID, models.NoteUpdate{Content: models.Ptr("more")})
	require.NoError(t, err)
	_, err = f.svc.Save(ctx, "n1", models.NoteUpdate{Color: models.Ptr("blue")})
	require.NoError(t, err)
	require.Len(t, f.queued(t), 3)

	engine := syncer.New(syncer.Config{
		Queue:        f.queue,
		Remote:       f.remote,
		Connectivity: f.monitor,
		State:        f.svc,
		Assets:       nopForgetter{},
		Metadata:     f.store,
		Owner:        func(context.Context) (string, error) { return owner, nil },
		Logger:       logging.Nop(),
	})

	f.monitor.Set(true)
	rep, err := engine.Trigger(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, rep.Succeeded)
	require.Zero(t, rep.Failed)
	require.Empty(t, f.queued(t))

	_, ok := f.svc.Get(tmp.ID)
	require.False(t, ok)

	var created models.Note
	for _, n := range f.svc.List() {
		if n.Title == "written offline" {
			created = n
		}
	}
	require.False(t, models.IsTempID(created.ID))
	require.Equal(t, "more", created.Content)

	n1, _ := f.svc.Get("n1")
	require.Equal(t, "blue", n1.Color)

	f.svc.Flush(ctx)
	require.Equal(t, []string{"n1", created.ID}, storedIDs(t, f))
	require.False(t, f.svc.Status(ctx).LastSync.IsZero())
}

package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/notekeeper/internal/client/models"
	"github.com/dmitrijs2005/notekeeper/internal/common"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

func TestAttachments_RequireConnection(t *testing.T) {
	f := newFixture(t, true)
	f.seed(t, serverNote("n1", "a"))
	ctx := context.Background()

	f.monitor.Set(false)
	_, err := f.svc.AddAttachment(ctx, "n1", "a.txt", "", []byte("hi"))
	require.ErrorIs(t, err, common.ErrRequiresConnection)
	require.ErrorIs(t, f.svc.RemoveAttachment(ctx, "n1", "att"), common.ErrRequiresConnection)
	_, err = f.svc.SetCover(ctx, "n1", "c.png", pngHeader)
	require.ErrorIs(t, err, common.ErrRequiresConnection)

	tmp, err := f.svc.Create(ctx, models.NoteFields{Title: "offline"})
	require.NoError(t, err)
	f.monitor.Set(true)
	_, err = f.svc.AddAttachment(ctx, tmp.ID, "a.txt", "", []byte("hi"))
	require.ErrorIs(t, err, common.ErrRequiresConnection)

	require.Zero(t, f.remote.callCount())
}

func TestAddAndRemoveAttachment(t *testing.T) {
	f := newFixture(t, true)
	f.seed(t, serverNote("n1", "a"))
	ctx := context.Background()

	a, err := f.svc.AddAttachment(ctx, "n1", `C:\docs\report.txt`, "", []byte("plain text body"))
	require.NoError(t, err)
	require.NotEmpty(t, a.ID)
	require.Equal(t, "n1", a.NoteID)
	require.Equal(t, int64(len("plain text body")), a.SizeBytes)
	require.True(t, strings.HasPrefix(a.MimeType, "text/plain"), a.MimeType)
	require.True(t, strings.HasPrefix(a.URL, "https://cdn.example.com/notes/attachments/n1/"), a.URL)
	require.True(t, strings.HasSuffix(a.URL, "-report.txt"), a.URL)

	n, _ := f.svc.Get("n1")
	require.Len(t, n.Attachments, 1)
	stored := f.stored(t)
	require.Len(t, stored[0].Attachments, 1)

	require.ErrorIs(t, f.svc.RemoveAttachment(ctx, "n1", "missing"), common.ErrNotFound)
	require.NoError(t, f.svc.RemoveAttachment(ctx, "n1", a.ID))
	n, _ = f.svc.Get("n1")
	require.Nil(t, n.Attachments)
	require.Nil(t, f.stored(t)[0].Attachments)
}

func TestSetCover(t *testing.T) {
	f := newFixture(t, true)
	f.seed(t, serverNote("n1", "a"))
	ctx := context.Background()

	_, err := f.svc.SetCover(ctx, "n1", "notes.txt", []byte("not an image"))
	require.ErrorIs(t, err, common.ErrValidation)

	n, err := f.svc.SetCover(ctx, "n1", "holiday.jpeg", pngHeader)
	require.NoError(t, err)
	cover := n.Cover()
	require.True(t, strings.HasPrefix(cover, "https://cdn.example.com/notes/covers/n1/"), cover)
	require.True(t, strings.HasSuffix(cover, "-holiday.png"), cover)

	got, _ := f.svc.Get("n1")
	require.Equal(t, cover, got.Cover())
	require.Equal(t, cover, f.stored(t)[0].Cover())
	require.Equal(t, []string{cover}, f.cacher.urls)
}

func TestObjectName(t *testing.T) {
	require.True(t, strings.HasSuffix(objectName("a/b/c.txt"), "-c.txt"))
	require.True(t, strings.HasSuffix(objectName(`x\y.pdf`), "-y.pdf"))
	require.True(t, strings.HasSuffix(objectName(""), "-file"))
}

func TestCoverInUse(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	shown := serverNote("n1", "a")
	shown.CoverImageURL = models.Ptr("https://cdn.example.com/notes/covers/n1/a.png")
	f.seed(t, shown)

	require.True(t, f.svc.CoverInUse(ctx, shown.Cover()))
	require.False(t, f.svc.CoverInUse(ctx, "https://cdn.example.com/notes/covers/none.png"))

	// A row only the local store knows about still holds the cover.
	hidden := serverNote("n2", "b")
	hidden.CoverImageURL = models.Ptr("https://cdn.example.com/notes/covers/n2/b.png")
	repo, err := f.store.Notes()
	require.NoError(t, err)
	require.NoError(t, repo.PutNote(ctx, hidden))
	require.True(t, f.svc.CoverInUse(ctx, hidden.Cover()))
}

package notes

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/notekeeper/internal/client/migrations"
	"github.com/dmitrijs2005/notekeeper/internal/client/models"
	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
	_ "modernc.org/sqlite"
)

func setupRepo(t *testing.T) (*SQLiteRepository, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "notes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db))
	return NewSQLiteRepository(db, logging.Nop()), db
}

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func note(id string, minutes int) models.Note {
	return models.Note{
		ID:        id,
		OwnerID:   "owner-1",
		Title:     "title " + id,
		Content:   "content " + id,
		Color:     models.DefaultColor,
		CreatedAt: base,
		UpdatedAt: base.Add(time.Duration(minutes) * time.Minute),
	}
}

func TestPutNotes_RoundTrip(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	withExtras := note("a", 1)
	withExtras.CoverImageURL = models.Ptr("https://cdn.example.com/a.png")
	withExtras.IsPinned = true
	withExtras.Attachments = []models.Attachment{{
		ID: "att-1", NoteID: "a", Name: "doc.pdf", MimeType: "application/pdf",
		SizeBytes: 42, URL: "https://cdn.example.com/doc.pdf", UploadedAt: base,
	}}

	require.NoError(t, r.PutNotes(ctx, []models.Note{withExtras, note("b", 5), note("c", 3)}))

	got, err := r.GetAllNotes(ctx)
	require.NoError(t, err)
	want := []models.Note{note("b", 5), note("c", 3), withExtras}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("GetAllNotes mismatch (-want +got):\n%s", diff)
	}
}

func TestPutNotes_UpsertsWithoutClearing(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.PutNotes(ctx, []models.Note{note("a", 1), note("b", 2)}))

	changed := note("a", 9)
	changed.Title = "renamed"
	require.NoError(t, r.PutNotes(ctx, []models.Note{changed}))

	got, err := r.GetAllNotes(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "renamed", got[0].Title)
}

func TestGetByID(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	_, err := r.GetByID(ctx, "missing")
	require.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, r.PutNote(ctx, note("x", 0)))
	n, err := r.GetByID(ctx, "x")
	require.NoError(t, err)
	require.Equal(t, "title x", n.Title)
}

func TestDeleteNote_Idempotent(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.PutNote(ctx, note("x", 0)))
	require.NoError(t, r.DeleteNote(ctx, "x"))
	require.NoError(t, r.DeleteNote(ctx, "x"))

	_, err := r.GetByID(ctx, "x")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteExcept(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.PutNotes(ctx, []models.Note{note("a", 1), note("b", 2), note("c", 3)}))
	require.NoError(t, r.DeleteExcept(ctx, []string{"a", "c"}))

	got, err := r.GetAllNotes(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "c", got[0].ID)
	require.Equal(t, "a", got[1].ID)

	require.NoError(t, r.DeleteExcept(ctx, nil))
	got, err = r.GetAllNotes(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestReplaceTemp(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	temp := note(models.TempIDPrefix+"1", 1)
	require.NoError(t, r.PutNote(ctx, temp))

	server := temp
	server.ID = "srv-1"
	require.NoError(t, r.ReplaceTemp(ctx, temp.ID, server))

	_, err := r.GetByID(ctx, temp.ID)
	require.ErrorIs(t, err, common.ErrNotFound)
	got, err := r.GetByID(ctx, "srv-1")
	require.NoError(t, err)
	require.Equal(t, temp.Title, got.Title)
}

func TestCountByCover(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	a := note("a", 1)
	a.CoverImageURL = models.Ptr("u1")
	b := note("b", 2)
	b.CoverImageURL = models.Ptr("u1")
	require.NoError(t, r.PutNotes(ctx, []models.Note{a, b, note("c", 3)}))

	covers, err := r.CountByCover(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 2, covers)

	covers, err = r.CountByCover(ctx, "u2")
	require.NoError(t, err)
	require.Zero(t, covers)
}

func TestPutNotes_FallsBackToPerRecordWrites(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	boom := errors.New("disk I/O error")
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO notes").WillReturnError(boom)
	mock.ExpectRollback()
	mock.ExpectExec("INSERT INTO notes").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO notes").WillReturnResult(sqlmock.NewResult(0, 1))

	r := NewSQLiteRepository(db, logging.Nop())
	require.NoError(t, r.PutNotes(context.Background(), []models.Note{note("a", 1), note("b", 2)}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPutNotes_FallbackJoinsRecordErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	boom := errors.New("constraint failed")
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO notes").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO notes").WillReturnError(boom)
	mock.ExpectRollback()
	mock.ExpectExec("INSERT INTO notes").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO notes").WillReturnError(boom)

	r := NewSQLiteRepository(db, logging.Nop())
	err = r.PutNotes(context.Background(), []models.Note{note("a", 1), note("b", 2)})
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "upsert note b")
	require.NotContains(t, err.Error(), "upsert note a")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPutNotes_Empty(t *testing.T) {
	r, _ := setupRepo(t)
	require.NoError(t, r.PutNotes(context.Background(), nil))
}

package remote

import (
	"context"

	"github.com/dmitrijs2005/notekeeper/internal/client/models"
)

// NoteStore is the remote source of truth for notes.
type NoteStore interface {
	CreateNote(ctx context.Context, ownerID string, f models.NoteFields) (models.Note, error)
	UpdateNote(ctx context.Context, id string, u models.NoteUpdate) (models.Note, error)
	// DeleteNote returns ErrNotFound when the note is already gone.
	DeleteNote(ctx context.Context, id string) error
	ListNotes(ctx context.Context, ownerID string) ([]models.Note, error)

	AddAttachment(ctx context.Context, a models.Attachment) (models.Attachment, error)
	DeleteAttachment(ctx context.Context, id string) error

	// UploadAsset stores data under path and returns its public URL.
	UploadAsset(ctx context.Context, path string, data []byte, contentType string) (string, error)
	GetPublicURL(path string) string

	Ping(ctx context.Context) error
}

// Client combines the gRPC note service with object storage.
type Client struct {
	*GRPCClient
	*S3Storage
}

var _ NoteStore = (*Client)(nil)

func NewClient(g *GRPCClient, s *S3Storage) *Client {
	return &Client{GRPCClient: g, S3Storage: s}
}

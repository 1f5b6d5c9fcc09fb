package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/notekeeper/internal/client/models"
	"github.com/dmitrijs2005/notekeeper/internal/client/remote"
	"github.com/dmitrijs2005/notekeeper/internal/common"
)

// syncedNote returns a note that exists on the server; attachment and
// cover changes need one.
func (s *noteService) syncedNote(id string) (models.Note, error) {
	if !s.online() {
		return models.Note{}, common.ErrRequiresConnection
	}
	n, ok := s.Get(id)
	if !ok {
		return models.Note{}, fmt.Errorf("note %s: %w", id, common.ErrNotFound)
	}
	if models.IsTempID(id) {
		return models.Note{}, fmt.Errorf("%w: note %s has not been synced yet", common.ErrRequiresConnection, id)
	}
	return n, nil
}

func objectName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		name = "file"
	}
	return uuid.NewString() + "-" + name
}

// AddAttachment uploads data and links it to the note.
func (s *noteService) AddAttachment(ctx context.Context, noteID, name, mimeType string, data []byte) (models.Attachment, error) {
	n, err := s.syncedNote(noteID)
	if err != nil {
		return models.Attachment{}, err
	}
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}

	done := s.begin()
	defer done()

	url, err := s.remote.UploadAsset(ctx, path.Join("attachments", noteID, objectName(name)), data, mimeType)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("upload attachment: %w", err)
	}

	a, err := s.remote.AddAttachment(ctx, models.Attachment{
		NoteID:     noteID,
		Name:       name,
		MimeType:   mimeType,
		SizeBytes:  int64(len(data)),
		URL:        url,
		UploadedAt: s.stamp(),
	})
	if err != nil {
		return models.Attachment{}, fmt.Errorf("add attachment: %w", err)
	}

	n.Attachments = append(n.Attachments, a)
	s.put(n)
	s.mirrorOne(ctx, n)
	return a, nil
}

func (s *noteService) RemoveAttachment(ctx context.Context, noteID, attachmentID string) error {
	n, err := s.syncedNote(noteID)
	if err != nil {
		return err
	}

	idx := -1
	for i, a := range n.Attachments {
		if a.ID == attachmentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("attachment %s: %w", attachmentID, common.ErrNotFound)
	}

	done := s.begin()
	defer done()

	if err := s.remote.DeleteAttachment(ctx, attachmentID); err != nil && !errors.Is(err, remote.ErrNotFound) {
		return fmt.Errorf("delete attachment: %w", err)
	}

	n.Attachments = append(n.Attachments[:idx:idx], n.Attachments[idx+1:]...)
	if len(n.Attachments) == 0 {
		n.Attachments = nil
	}
	s.put(n)
	s.mirrorOne(ctx, n)
	return nil
}

// SetCover uploads an image and makes it the note's cover.
func (s *noteService) SetCover(ctx context.Context, noteID, name string, data []byte) (models.Note, error) {
	if _, err := s.syncedNote(noteID); err != nil {
		return models.Note{}, err
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return models.Note{}, fmt.Errorf("%w: cover must be an image, got %s", common.ErrValidation, mt.String())
	}

	done := s.begin()
	defer done()

	object := strings.TrimSuffix(objectName(name), path.Ext(name)) + mt.Extension()
	url, err := s.remote.UploadAsset(ctx, path.Join("covers", noteID, object), data, mt.String())
	if err != nil {
		return models.Note{}, fmt.Errorf("upload cover: %w", err)
	}

	n, err := s.remote.UpdateNote(ctx, noteID, models.NoteUpdate{CoverImageURL: &url})
	if err != nil {
		return models.Note{}, fmt.Errorf("set cover: %w", err)
	}
	s.put(n)
	s.mirrorOne(ctx, n)
	if s.assets != nil {
		s.assets.AutoCache(url)
	}
	return n.Clone(), nil
}

// Package models defines the client-side data model: notes, attachments,
// cached assets and queued operations.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TempIDPrefix marks identifiers generated locally for notes created while
// offline. The server never issues ids with this prefix.
const TempIDPrefix = "tmp_"

// DefaultColor is used when a note is created without an explicit color.
const DefaultColor = "default"

// Note is a user note as mirrored in the local store.
type Note struct {
	ID            string       `json:"id"`
	OwnerID       string       `json:"owner_id"`
	Title         string       `json:"title"`
	Content       string       `json:"content"`
	Color         string       `json:"color"`
	CoverImageURL *string      `json:"cover_image_url,omitempty"`
	IsPinned      bool         `json:"is_pinned"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	Attachments   []Attachment `json:"attachments,omitempty"`
}

// Attachment is a file stored in object storage and linked to a note.
type Attachment struct {
	ID         string    `json:"id"`
	NoteID     string    `json:"note_id"`
	Name       string    `json:"name"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// NewTempID returns a fresh temporary note id.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id was generated locally.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Clone returns a deep copy so callers cannot alias cached state.
func (n Note) Clone() Note {
	c := n
	if n.CoverImageURL != nil {
		c.CoverImageURL = Ptr(*n.CoverImageURL)
	}
	if n.Attachments != nil {
		c.Attachments = append([]Attachment(nil), n.Attachments...)
	}
	return c
}

// Cover returns the cover URL or "".
func (n Note) Cover() string {
	if n.CoverImageURL == nil {
		return ""
	}
	return *n.CoverImageURL
}

// NoteFields are the fields needed to create a note.
type NoteFields struct {
	Title         string  `json:"title" validate:"max=500"`
	Content       string  `json:"content"`
	Color         string  `json:"color" validate:"omitempty,max=32"`
	CoverImageURL *string `json:"cover_image_url,omitempty" validate:"omitempty,max=2048"`
	IsPinned      bool    `json:"is_pinned"`
}

// WithDefaults fills in defaults for unset fields.
func (f NoteFields) WithDefaults() NoteFields {
	if f.Color == "" {
		f.Color = DefaultColor
	}
	return f
}

// NewNote builds a note from creation fields.
func NewNote(id, ownerID string, f NoteFields, now time.Time) Note {
	f = f.WithDefaults()
	n := Note{
		ID:        id,
		OwnerID:   ownerID,
		Title:     f.Title,
		Content:   f.Content,
		Color:     f.Color,
		IsPinned:  f.IsPinned,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if f.CoverImageURL != nil {
		n.CoverImageURL = Ptr(*f.CoverImageURL)
	}
	return n
}

// NoteUpdate is a partial update. Nil fields are left untouched;
// ClearCover removes the cover image.
type NoteUpdate struct {
	Title         *string `json:"title,omitempty" validate:"omitempty,max=500"`
	Content       *string `json:"content,omitempty"`
	Color         *string `json:"color,omitempty" validate:"omitempty,max=32"`
	CoverImageURL *string `json:"cover_image_url,omitempty" validate:"omitempty,max=2048"`
	ClearCover    bool    `json:"clear_cover,omitempty"`
	IsPinned      *bool   `json:"is_pinned,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u NoteUpdate) IsEmpty() bool {
	return u.Title == nil && u.Content == nil && u.Color == nil &&
		u.CoverImageURL == nil && !u.ClearCover && u.IsPinned == nil
}

// Apply returns a copy of n with the update applied. UpdatedAt is not
// touched; the caller stamps it.
func (u NoteUpdate) Apply(n Note) Note {
	out := n.Clone()
	if u.Title != nil {
		out.Title = *u.Title
	}
	if u.Content != nil {
		out.Content = *u.Content
	}
	if u.Color != nil {
		out.Color = *u.Color
	}
	if u.ClearCover {
		out.CoverImageURL = nil
	}
	if u.CoverImageURL != nil {
		out.CoverImageURL = Ptr(*u.CoverImageURL)
	}
	if u.IsPinned != nil {
		out.IsPinned = *u.IsPinned
	}
	return out
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}

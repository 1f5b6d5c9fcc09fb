package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// OperationKind tags a queued mutation.
type OperationKind string

const (
	OperationCreate OperationKind = "create"
	OperationUpdate OperationKind = "update"
	OperationDelete OperationKind = "delete"
)

var (
	ErrUnknownOperation = errors.New("unknown operation kind")
	ErrPayloadKind      = errors.New("payload does not match operation kind")
)

// PendingOperation is a mutation performed while offline and waiting to be
// replayed against the note store. Payload holds exactly one variant,
// selected by Kind: CreatePayload, NoteUpdate, or nothing for deletes.
type PendingOperation struct {
	ID         string
	Kind       OperationKind
	NoteID     string
	Payload    json.RawMessage
	EnqueuedAt time.Time
}

// CreatePayload carries everything needed to recreate an offline note
// remotely.
type CreatePayload struct {
	Fields    NoteFields `json:"fields"`
	CreatedAt time.Time  `json:"created_at"`
}

func wrap[T any](kind OperationKind, noteID string, v T) (PendingOperation, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return PendingOperation{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return PendingOperation{Kind: kind, NoteID: noteID, Payload: b}, nil
}

// NewCreateOperation queues the creation of the note with temporary id tempID.
func NewCreateOperation(tempID string, p CreatePayload) (PendingOperation, error) {
	return wrap(OperationCreate, tempID, p)
}

// NewUpdateOperation queues a partial update of noteID.
func NewUpdateOperation(noteID string, u NoteUpdate) (PendingOperation, error) {
	return wrap(OperationUpdate, noteID, u)
}

// NewDeleteOperation queues the deletion of noteID.
func NewDeleteOperation(noteID string) PendingOperation {
	return PendingOperation{Kind: OperationDelete, NoteID: noteID}
}

// CreatePayload decodes the create variant.
func (op PendingOperation) CreatePayload() (CreatePayload, error) {
	var p CreatePayload
	if op.Kind != OperationCreate {
		return p, fmt.Errorf("%w: want %s, got %s", ErrPayloadKind, OperationCreate, op.Kind)
	}
	if err := json.Unmarshal(op.Payload, &p); err != nil {
		return p, fmt.Errorf("decode create payload: %w", err)
	}
	return p, nil
}

// UpdatePayload decodes the update variant.
func (op PendingOperation) UpdatePayload() (NoteUpdate, error) {
	var u NoteUpdate
	if op.Kind != OperationUpdate {
		return u, fmt.Errorf("%w: want %s, got %s", ErrPayloadKind, OperationUpdate, op.Kind)
	}
	if err := json.Unmarshal(op.Payload, &u); err != nil {
		return u, fmt.Errorf("decode update payload: %w", err)
	}
	return u, nil
}

// Validate checks that Kind is known and a note id is present.
func (op PendingOperation) Validate() error {
	switch op.Kind {
	case OperationCreate, OperationUpdate, OperationDelete:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOperation, op.Kind)
	}
	if op.NoteID == "" {
		return fmt.Errorf("%s operation without note id", op.Kind)
	}
	return nil
}

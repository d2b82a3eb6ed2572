package document

import (
	"errors"
	"time"
)

// DefaultTitle is given to records created implicitly on first join.
const DefaultTitle = "Untitled Document"

var (
	// ErrNotFound is returned by lookups that do not auto-create.
	ErrNotFound = errors.New("document not found")
	// ErrStorageUnavailable wraps any failure or timeout of the backing store.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrDuplicateID reports a lost race on first creation of an id.
	ErrDuplicateID = errors.New("document id already exists")
)

// Document is the durable record of a shared document. Content is the
// editor's serialized state and is never interpreted by the server.
// Presence is deliberately not part of the record.
type Document struct {
	DocumentID string    `json:"documentId" bson:"documentId"`
	Title      string    `json:"title" bson:"title"`
	Content    string    `json:"content" bson:"content"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updatedAt"`
}

// New returns a record with default title and empty content for id.
func New(id string, now time.Time) *Document {
	return &Document{DocumentID: id, Title: DefaultTitle, CreatedAt: now, UpdatedAt: now}
}

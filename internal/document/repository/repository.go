package repository

import (
	"context"

	"github.com/docsync/docsync/internal/document"
)

var (
	ErrNotFound  = document.ErrNotFound
	ErrDuplicate = document.ErrDuplicateID
)

// Repository is implemented by every record store driver.
//
// Insert must fail with ErrDuplicate when the id already exists; this is the
// uniqueness constraint the gateway relies on to settle first-creation races.
// Upsert replaces content and title, refreshes UpdatedAt and creates the
// record when missing.
type Repository interface {
	Insert(ctx context.Context, doc *document.Document) error
	Get(ctx context.Context, id string) (*document.Document, error)
	List(ctx context.Context) ([]*document.Document, error)
	Upsert(ctx context.Context, id, content, title string) error
	Delete(ctx context.Context, id string) error
}

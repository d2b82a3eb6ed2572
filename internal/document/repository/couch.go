package repository

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/docsync/docsync/internal/document"
	"github.com/go-kivik/kivik/v4"
)

const couchDocType = "document"

// couchDoc is the CouchDB envelope around a record.
type couchDoc struct {
	ID   string `json:"_id"`
	Rev  string `json:"_rev,omitempty"`
	Type string `json:"type"`
	document.Document
}

// CouchRepo stores records in a CouchDB database. The document id is
// namespaced as "document:<id>" so the database can hold other types.
type CouchRepo struct {
	db  *kivik.DB
	now func() time.Time
}

func NewCouchRepo(client *kivik.Client, dbName string) *CouchRepo {
	return &CouchRepo{db: client.DB(dbName), now: time.Now}
}

func couchID(id string) string {
	return fmt.Sprintf("document:%s", id)
}

// Insert relies on CouchDB rejecting a Put without _rev for an existing id.
func (r *CouchRepo) Insert(ctx context.Context, doc *document.Document) error {
	cd := couchDoc{ID: couchID(doc.DocumentID), Type: couchDocType, Document: *doc}
	if _, err := r.db.Put(ctx, cd.ID, cd); err != nil {
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (r *CouchRepo) get(ctx context.Context, id string) (*couchDoc, error) {
	var cd couchDoc
	if err := r.db.Get(ctx, couchID(id)).ScanDoc(&cd); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find document: %w", err)
	}
	return &cd, nil
}

func (r *CouchRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	cd, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	d := cd.Document
	return &d, nil
}

func (r *CouchRepo) List(ctx context.Context) ([]*document.Document, error) {
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"type": couchDocType,
		},
	}
	rows := r.db.Find(ctx, query)
	defer rows.Close()

	out := []*document.Document{}
	for rows.Next() {
		var cd couchDoc
		if err := rows.ScanDoc(&cd); err != nil {
			continue
		}
		d := cd.Document
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	SortByUpdatedDesc(out)
	return out, nil
}

// Upsert does a read-modify-write on the current revision and retries once
// when another writer bumped the revision in between.
func (r *CouchRepo) Upsert(ctx context.Context, id, content, title string) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if err = r.upsertOnce(ctx, id, content, title); kivik.HTTPStatus(err) != http.StatusConflict {
			return err
		}
	}
	return fmt.Errorf("failed to save document: %w", err)
}

func (r *CouchRepo) upsertOnce(ctx context.Context, id, content, title string) error {
	now := r.now()
	cd, err := r.get(ctx, id)
	switch {
	case err == ErrNotFound:
		cd = &couchDoc{ID: couchID(id), Type: couchDocType, Document: document.Document{DocumentID: id, CreatedAt: now}}
	case err != nil:
		return err
	}
	cd.Content = content
	cd.Title = title
	cd.UpdatedAt = now
	_, err = r.db.Put(ctx, cd.ID, cd)
	return err
}

func (r *CouchRepo) Delete(ctx context.Context, id string) error {
	cd, err := r.get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := r.db.Delete(ctx, cd.ID, cd.Rev); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

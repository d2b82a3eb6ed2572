package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/docsync/docsync/internal/document"
)

// MemoryRepo is an in-memory record store used for local runs and unit tests.
// Records are copied in and out so callers never share state with the store.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*document.Document
	now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*document.Document), now: time.Now}
}

func (m *MemoryRepo) Insert(_ context.Context, doc *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[doc.DocumentID]; ok {
		return ErrDuplicate
	}
	cp := *doc
	m.store[doc.DocumentID] = &cp
	return nil
}

func (m *MemoryRepo) Get(_ context.Context, id string) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.store[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) List(_ context.Context) ([]*document.Document, error) {
	m.mu.RLock()
	out := make([]*document.Document, 0, len(m.store))
	for _, d := range m.store {
		cp := *d
		out = append(out, &cp)
	}
	m.mu.RUnlock()
	SortByUpdatedDesc(out)
	return out, nil
}

func (m *MemoryRepo) Upsert(_ context.Context, id, content, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	d, ok := m.store[id]
	if !ok {
		d = &document.Document{DocumentID: id, CreatedAt: now}
		m.store[id] = d
	}
	d.Content = content
	d.Title = title
	d.UpdatedAt = now
	return nil
}

func (m *MemoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

// SortByUpdatedDesc orders records most recently updated first, ties by id.
func SortByUpdatedDesc(docs []*document.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].UpdatedAt.Equal(docs[j].UpdatedAt) {
			return docs[i].DocumentID < docs[j].DocumentID
		}
		return docs[i].UpdatedAt.After(docs[j].UpdatedAt)
	})
}

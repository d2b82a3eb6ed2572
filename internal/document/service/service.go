package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docsync/docsync/internal/document"
	"github.com/docsync/docsync/internal/document/repository"
)

const DefaultTimeout = 5 * time.Second

// Service is the persistence gateway used by the catalog handlers and the
// session coordinator. Every call is bounded by the configured timeout and
// any store failure is reported as document.ErrStorageUnavailable.
type Service interface {
	GetOrCreate(ctx context.Context, id string) (*document.Document, error)
	Create(ctx context.Context, d *document.Document) (*document.Document, error)
	Get(ctx context.Context, id string) (*document.Document, error)
	List(ctx context.Context) ([]*document.Document, error)
	Upsert(ctx context.Context, id, content, title string) error
	Delete(ctx context.Context, id string) error
}

// NewMemoryService returns a Service backed by the in-memory repository.
func NewMemoryService() Service {
	return New(repository.NewMemoryRepo(), DefaultTimeout)
}

// New wraps repo. A non-positive timeout falls back to DefaultTimeout.
func New(repo repository.Repository, timeout time.Duration) Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &gateway{repo: repo, timeout: timeout, now: time.Now}
}

type gateway struct {
	repo    repository.Repository
	timeout time.Duration
	now     func() time.Time
}

// classify keeps the caller-visible taxonomy narrow: not-found and duplicate
// pass through, everything else becomes a storage failure.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, document.ErrNotFound), errors.Is(err, document.ErrDuplicateID):
		return err
	default:
		return fmt.Errorf("%s: %w: %v", op, document.ErrStorageUnavailable, err)
	}
}

func (g *gateway) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.timeout)
}

func (g *gateway) GetOrCreate(ctx context.Context, id string) (*document.Document, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	d, err := g.repo.Get(ctx, id)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, document.ErrNotFound) {
		return nil, classify("get", err)
	}

	fresh := document.New(id, g.now())
	err = g.repo.Insert(ctx, fresh)
	switch {
	case err == nil:
		return fresh, nil
	case errors.Is(err, document.ErrDuplicateID):
		// lost the first-creation race; the winner's record is authoritative
		d, err = g.repo.Get(ctx, id)
		if err != nil {
			return nil, classify("get", err)
		}
		return d, nil
	default:
		return nil, classify("insert", err)
	}
}

func (g *gateway) Create(ctx context.Context, d *document.Document) (*document.Document, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	now := g.now()
	rec := *d
	if rec.Title == "" {
		rec.Title = document.DefaultTitle
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if err := g.repo.Insert(ctx, &rec); err != nil {
		return nil, classify("insert", err)
	}
	return &rec, nil
}

func (g *gateway) Get(ctx context.Context, id string) (*document.Document, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()
	d, err := g.repo.Get(ctx, id)
	if err != nil {
		return nil, classify("get", err)
	}
	return d, nil
}

func (g *gateway) List(ctx context.Context) ([]*document.Document, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()
	list, err := g.repo.List(ctx)
	if err != nil {
		return nil, classify("list", err)
	}
	return list, nil
}

func (g *gateway) Upsert(ctx context.Context, id, content, title string) error {
	ctx, cancel := g.bound(ctx)
	defer cancel()
	return classify("upsert", g.repo.Upsert(ctx, id, content, title))
}

func (g *gateway) Delete(ctx context.Context, id string) error {
	ctx, cancel := g.bound(ctx)
	defer cancel()
	return classify("delete", g.repo.Delete(ctx, id))
}

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/docsync/docsync/internal/document"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepoCRUD(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	d := document.New("doc1", time.Now())
	require.NoError(t, r.Insert(ctx, d))

	got, err := r.Get(ctx, "doc1")
	require.NoError(t, err)
	require.Equal(t, document.DefaultTitle, got.Title)
	require.Equal(t, "", got.Content)

	// returned records are copies
	got.Content = "mutated"
	again, err := r.Get(ctx, "doc1")
	require.NoError(t, err)
	require.Equal(t, "", again.Content)

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, r.Delete(ctx, "doc1"))
	_, err = r.Get(ctx, "doc1")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, r.Delete(ctx, "doc1"), ErrNotFound)
}

func TestMemoryRepoInsertDuplicate(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	require.NoError(t, r.Insert(ctx, document.New("dup", time.Now())))
	require.ErrorIs(t, r.Insert(ctx, document.New("dup", time.Now())), ErrDuplicate)
}

func TestMemoryRepoUpsertLastWriterWins(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	// creates when missing
	require.NoError(t, r.Upsert(ctx, "d", "C1", "first"))
	created, err := r.Get(ctx, "d")
	require.NoError(t, err)
	require.Equal(t, created.CreatedAt, created.UpdatedAt)

	require.NoError(t, r.Upsert(ctx, "d", "C2", "second"))
	got, err := r.Get(ctx, "d")
	require.NoError(t, err)
	require.Equal(t, "C2", got.Content)
	require.Equal(t, "second", got.Title)
	require.Equal(t, created.CreatedAt, got.CreatedAt)
	require.True(t, got.UpdatedAt.After(created.UpdatedAt))
}

func TestMemoryRepoListSortedByUpdatedDesc(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	step := 0
	r.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}
	require.NoError(t, r.Upsert(ctx, "a", "", "a"))
	require.NoError(t, r.Upsert(ctx, "b", "", "b"))
	require.NoError(t, r.Upsert(ctx, "c", "", "c"))
	require.NoError(t, r.Upsert(ctx, "a", "x", "a"))

	list, err := r.List(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, d := range list {
		ids = append(ids, d.DocumentID)
	}
	require.Equal(t, []string{"a", "c", "b"}, ids)
}

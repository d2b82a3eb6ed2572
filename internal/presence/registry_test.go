package presence

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var palette = []string{"#FF6B6B", "#4ECDC4", "#45B7D1"}

func ids(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.UserID)
	}
	return out
}

func TestJoinIsIdempotent(t *testing.T) {
	r := NewRegistry(palette)
	e1, added := r.Join("doc1", "u1", "Alice")
	require.True(t, added)
	require.Equal(t, Entry{UserID: "u1", Username: "Alice", Color: "#FF6B6B"}, e1)

	e2, added := r.Join("doc1", "u1", "Alice again")
	require.False(t, added)
	require.Equal(t, e1, e2)
	require.Len(t, r.ListActive("doc1"), 1)
}

func TestColorsRoundRobin(t *testing.T) {
	r := NewRegistry(palette)
	var colors []string
	for i := 0; i < 4; i++ {
		e, _ := r.Join("doc", fmt.Sprintf("u%d", i), "x")
		colors = append(colors, e.Color)
	}
	require.Equal(t, []string{"#FF6B6B", "#4ECDC4", "#45B7D1", "#FF6B6B"}, colors)
}

func TestListActiveInsertionOrderAndCopy(t *testing.T) {
	r := NewRegistry(palette)
	r.Join("doc", "b", "Bob")
	r.Join("doc", "a", "Ann")
	r.Join("doc", "c", "Cid")
	r.Leave("doc", "a")
	r.Join("doc", "a", "Ann")

	list := r.ListActive("doc")
	require.Equal(t, []string{"b", "c", "a"}, ids(list))

	list[0].Username = "changed"
	require.Equal(t, "Bob", r.ListActive("doc")[0].Username)
	require.Empty(t, r.ListActive("unknown"))
}

func TestLeaveTolerance(t *testing.T) {
	r := NewRegistry(palette)
	require.False(t, r.Leave("doc", "nobody"))
	r.Join("doc", "u1", "Alice")
	require.True(t, r.Leave("doc", "u1"))
	require.False(t, r.Leave("doc", "u1"))
	require.Equal(t, 0, r.Rooms())
}

func TestRemoveAll(t *testing.T) {
	r := NewRegistry(palette)
	r.Join("b", "u1", "Alice")
	r.Join("a", "u1", "Alice")
	r.Join("a", "u2", "Bob")
	r.Join("c", "u2", "Bob")

	require.Equal(t, []string{"a", "b"}, r.RemoveAll("u1"))
	require.Equal(t, []string{"u2"}, ids(r.ListActive("a")))
	require.Empty(t, r.ListActive("b"))
	require.Empty(t, r.RemoveAll("u1"))
}

func TestRandomSequencesMatchSetModel(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	users := []string{"u1", "u2", "u3", "u4", "u5"}
	for round := 0; round < 50; round++ {
		r := NewRegistry(palette)
		model := map[string]bool{}
		for step := 0; step < 40; step++ {
			u := users[rng.Intn(len(users))]
			if rng.Intn(2) == 0 {
				r.Join("doc", u, u)
				model[u] = true
			} else {
				r.Leave("doc", u)
				delete(model, u)
			}
			want := make([]string, 0, len(model))
			for k := range model {
				want = append(want, k)
			}
			got := ids(r.ListActive("doc"))
			sort.Strings(want)
			sort.Strings(got)
			require.Equal(t, want, got, "round %d step %d", round, step)
		}
	}
}

func TestConcurrentJoinLeave(t *testing.T) {
	r := NewRegistry(palette)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := fmt.Sprintf("u%d", i)
			doc := fmt.Sprintf("doc%d", i%3)
			for j := 0; j < 100; j++ {
				r.Join(doc, u, u)
				r.Leave(doc, u)
			}
			if i%2 == 0 {
				r.Join(doc, u, u)
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for d := 0; d < 3; d++ {
		list := r.ListActive(fmt.Sprintf("doc%d", d))
		seen := map[string]bool{}
		for _, e := range list {
			assert.False(t, seen[e.UserID], "duplicate entry %s", e.UserID)
			seen[e.UserID] = true
		}
		total += len(list)
	}
	require.Equal(t, 25, total)
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docsync/docsync/internal/document"
	"github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"
	"github.com/stretchr/testify/require"
)

// fakeCouch serves the handful of CouchDB endpoints CouchRepo uses.
type fakeCouch struct {
	mu   sync.Mutex
	docs map[string]map[string]interface{}
	seq  int
}

func newFakeCouch() *fakeCouch {
	return &fakeCouch{docs: map[string]map[string]interface{}{}}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeCouch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/docsync/")
	notFound := map[string]string{"error": "not_found", "reason": "missing"}

	if path == "_find" && r.Method == http.MethodPost {
		docs := []map[string]interface{}{}
		for _, d := range f.docs {
			docs = append(docs, d)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"docs": docs})
		return
	}

	existing, ok := f.docs[path]
	switch r.Method {
	case http.MethodGet:
		if !ok {
			writeJSON(w, http.StatusNotFound, notFound)
			return
		}
		w.Header().Set("ETag", fmt.Sprintf("%q", existing["_rev"]))
		writeJSON(w, http.StatusOK, existing)
	case http.MethodPut:
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request"})
			return
		}
		rev, _ := body["_rev"].(string)
		if ok && existing["_rev"] != rev {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "conflict", "reason": "Document update conflict."})
			return
		}
		f.seq++
		body["_id"] = path
		body["_rev"] = fmt.Sprintf("%d-abc", f.seq)
		f.docs[path] = body
		w.Header().Set("ETag", fmt.Sprintf("%q", body["_rev"]))
		writeJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "id": path, "rev": body["_rev"]})
	case http.MethodDelete:
		if !ok {
			writeJSON(w, http.StatusNotFound, notFound)
			return
		}
		if existing["_rev"] != r.URL.Query().Get("rev") {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "conflict"})
			return
		}
		delete(f.docs, path)
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "id": path, "rev": "x"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestCouchRepo(t *testing.T) (*CouchRepo, *fakeCouch) {
	t.Helper()
	fake := newFakeCouch()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	client, err := kivik.New("couch", srv.URL)
	require.NoError(t, err)
	return NewCouchRepo(client, "docsync"), fake
}

func TestCouchRepoInsertGetDuplicate(t *testing.T) {
	ctx := context.Background()
	r, fake := newTestCouchRepo(t)

	require.NoError(t, r.Insert(ctx, document.New("n1", time.Now())))
	require.Contains(t, fake.docs, "document:n1")
	require.Equal(t, "document", fake.docs["document:n1"]["type"])

	got, err := r.Get(ctx, "n1")
	require.NoError(t, err)
	require.Equal(t, "n1", got.DocumentID)
	require.Equal(t, document.DefaultTitle, got.Title)

	require.ErrorIs(t, r.Insert(ctx, document.New("n1", time.Now())), ErrDuplicate)

	_, err = r.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCouchRepoUpsertListDelete(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestCouchRepo(t)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	step := 0
	r.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}

	require.NoError(t, r.Upsert(ctx, "a", "A1", "alpha"))
	require.NoError(t, r.Upsert(ctx, "b", "B1", "beta"))
	require.NoError(t, r.Upsert(ctx, "a", "A2", "alpha2"))

	got, err := r.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "A2", got.Content)
	require.Equal(t, "alpha2", got.Title)
	require.True(t, got.UpdatedAt.After(got.CreatedAt))

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a", list[0].DocumentID)

	require.NoError(t, r.Delete(ctx, "a"))
	require.ErrorIs(t, r.Delete(ctx, "a"), ErrNotFound)
}

// Package presence tracks which users are currently in each document room.
// State is in-memory only and is empty after a restart.
package presence

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Entry is one user's participation in one room.
type Entry struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

type room struct {
	mu      sync.Mutex
	entries []Entry
	// dead is set once the room has been unlinked from the registry; a
	// joiner holding a stale pointer must look the room up again.
	dead bool
}

func (r *room) indexOf(userID string) int {
	for i, e := range r.entries {
		if e.UserID == userID {
			return i
		}
	}
	return -1
}

// Registry maps document ids to their ordered member sets. The registry
// lock only guards the room map; membership changes take the room's own
// lock so unrelated rooms never contend.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]*room
	palette []string
	next    atomic.Uint64
}

func NewRegistry(palette []string) *Registry {
	if len(palette) == 0 {
		palette = []string{"#FF6B6B"}
	}
	return &Registry{
		rooms:   make(map[string]*room),
		palette: append([]string(nil), palette...),
	}
}

func (r *Registry) lookup(docID string, create bool) *room {
	r.mu.RLock()
	rm := r.rooms[docID]
	r.mu.RUnlock()
	if rm != nil || !create {
		return rm
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if rm = r.rooms[docID]; rm == nil {
		rm = &room{}
		r.rooms[docID] = rm
	}
	return rm
}

// Join adds userID to docID and returns its entry. Joining twice returns the
// existing entry unchanged and added=false.
func (r *Registry) Join(docID, userID, username string) (Entry, bool) {
	for {
		rm := r.lookup(docID, true)
		rm.mu.Lock()
		if rm.dead {
			rm.mu.Unlock()
			continue
		}
		if i := rm.indexOf(userID); i >= 0 {
			e := rm.entries[i]
			rm.mu.Unlock()
			return e, false
		}
		e := Entry{UserID: userID, Username: username, Color: r.color()}
		rm.entries = append(rm.entries, e)
		rm.mu.Unlock()
		return e, true
	}
}

func (r *Registry) color() string {
	n := r.next.Add(1) - 1
	return r.palette[n%uint64(len(r.palette))]
}

// Leave removes userID from docID. It reports whether an entry was removed;
// leaving a room one is not in is a no-op.
func (r *Registry) Leave(docID, userID string) bool {
	rm := r.lookup(docID, false)
	if rm == nil {
		return false
	}
	rm.mu.Lock()
	i := rm.indexOf(userID)
	if i < 0 {
		rm.mu.Unlock()
		return false
	}
	rm.entries = append(rm.entries[:i], rm.entries[i+1:]...)
	empty := len(rm.entries) == 0
	rm.mu.Unlock()

	if empty {
		r.reap(docID, rm)
	}
	return true
}

// reap unlinks rm if it is still registered under docID and still empty.
func (r *Registry) reap(docID string, rm *room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[docID] != rm {
		return
	}
	rm.mu.Lock()
	if len(rm.entries) == 0 {
		rm.dead = true
		delete(r.rooms, docID)
	}
	rm.mu.Unlock()
}

// ListActive returns a copy of docID's members in join order.
func (r *Registry) ListActive(docID string) []Entry {
	rm := r.lookup(docID, false)
	if rm == nil {
		return []Entry{}
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	out := make([]Entry, len(rm.entries))
	copy(out, rm.entries)
	return out
}

// RemoveAll removes userID from every room and returns the affected room
// ids in sorted order.
func (r *Registry) RemoveAll(userID string) []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)

	affected := []string{}
	for _, id := range ids {
		if r.Leave(id, userID) {
			affected = append(affected, id)
		}
	}
	return affected
}

// Rooms returns the number of rooms with at least one member.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

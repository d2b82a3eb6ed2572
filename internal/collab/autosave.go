package collab

import (
	"context"
	"sync"
	"time"

	"github.com/docsync/docsync/pkg/logger"
	"github.com/docsync/docsync/pkg/metrics"
	"golang.org/x/time/rate"
)

// Upserter is the part of the persistence gateway autosave needs.
type Upserter interface {
	Upsert(ctx context.Context, id, content, title string) error
}

type saveSlot struct {
	latest  *SaveRequest
	limiter *rate.Limiter
}

// Autosaver is a write-behind for save-document. Only the newest pending
// save per document is kept and each document is written at most once per
// interval, off the connection's goroutine.
type Autosaver struct {
	store    Upserter
	interval time.Duration
	timeout  time.Duration

	mu     sync.Mutex
	slots  map[string]*saveSlot
	closed bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewAutosaver(store Upserter, interval, timeout time.Duration) *Autosaver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Autosaver{
		store:    store,
		interval: interval,
		timeout:  timeout,
		slots:    make(map[string]*saveSlot),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit records req as the latest state of its document and makes sure a
// worker will write it.
func (a *Autosaver) Submit(req SaveRequest) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		logger.Warnf("autosave: dropping save for %s after shutdown", req.DocumentID)
		metrics.Saves.WithLabelValues("dropped").Inc()
		return
	}
	if s, ok := a.slots[req.DocumentID]; ok {
		s.latest = &req
		return
	}
	lim := rate.NewLimiter(rate.Every(a.interval), 1)
	// the first write goes out now and spends the burst token
	lim.Allow()
	s := &saveSlot{latest: &req, limiter: lim}
	a.slots[req.DocumentID] = s
	a.wg.Add(1)
	go a.run(req.DocumentID, s)
}

func (a *Autosaver) run(docID string, s *saveSlot) {
	defer a.wg.Done()
	for {
		a.mu.Lock()
		req := s.latest
		s.latest = nil
		if req == nil {
			delete(a.slots, docID)
			a.mu.Unlock()
			return
		}
		a.mu.Unlock()

		a.write(*req)
		// after Close the wait fails fast and whatever is pending is flushed
		_ = s.limiter.Wait(a.ctx)
	}
}

func (a *Autosaver) write(req SaveRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.store.Upsert(ctx, req.DocumentID, req.Content, req.Title); err != nil {
		metrics.Saves.WithLabelValues("error").Inc()
		logger.Errorf("autosave %s: %v", req.DocumentID, err)
		return
	}
	metrics.Saves.WithLabelValues("ok").Inc()
	logger.Debugf("autosave %s: saved", req.DocumentID)
}

// Close stops accepting saves and waits for pending ones to be written.
func (a *Autosaver) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.cancel()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

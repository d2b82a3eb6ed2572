// Package collab runs the per-connection collaboration protocol: joining
// document rooms, relaying edits and cursors, presence notifications and
// handing saves to the write-behind.
package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/docsync/docsync/internal/document"
	"github.com/docsync/docsync/internal/presence"
	"github.com/docsync/docsync/internal/realtime"
	"github.com/docsync/docsync/pkg/logger"
	"github.com/docsync/docsync/pkg/metrics"
	"github.com/go-playground/validator/v10"
)

// Gateway is the persistence the coordinator needs on join.
type Gateway interface {
	GetOrCreate(ctx context.Context, id string) (*document.Document, error)
}

// Saver accepts save-document payloads.
type Saver interface {
	Submit(req SaveRequest)
}

// State of a session.
type State int

const (
	Disconnected State = iota
	Joining
	Active
	Leaving
)

func (s State) String() string {
	switch s {
	case Joining:
		return "joining"
	case Active:
		return "active"
	case Leaving:
		return "leaving"
	default:
		return "disconnected"
	}
}

// Coordinator holds the shared components every session works against.
type Coordinator struct {
	gateway  Gateway
	presence *presence.Registry
	rooms    *realtime.Broadcaster
	saver    Saver
	validate *validator.Validate
}

func NewCoordinator(gw Gateway, reg *presence.Registry, rooms *realtime.Broadcaster, saver Saver) *Coordinator {
	return &Coordinator{
		gateway:  gw,
		presence: reg,
		rooms:    rooms,
		saver:    saver,
		validate: validator.New(),
	}
}

// Session is the protocol state of one connection. Handle and Disconnect
// are expected to be called from the connection's read goroutine.
type Session struct {
	c    *Coordinator
	peer realtime.Subscriber

	mu      sync.Mutex
	state   State
	joined  map[string]string // documentId -> userId
	stopped bool
}

func (c *Coordinator) NewSession(peer realtime.Subscriber) *Session {
	return &Session{c: c, peer: peer, joined: make(map[string]string)}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Rooms returns the documents the session is currently joined to.
func (s *Session) Rooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.joined))
	for doc := range s.joined {
		out = append(out, doc)
	}
	sort.Strings(out)
	return out
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// settle moves the session back to Active or Disconnected depending on
// whether any room membership remains.
func (s *Session) settle() {
	s.mu.Lock()
	if len(s.joined) > 0 {
		s.state = Active
	} else {
		s.state = Disconnected
	}
	s.mu.Unlock()
}

func (s *Session) member(docID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.joined[docID]
	return u, ok
}

// Handle decodes and dispatches one inbound frame. Malformed frames are
// logged and ignored; they never end the session.
func (s *Session) Handle(ctx context.Context, raw []byte) {
	f, err := realtime.Decode(raw)
	if err != nil {
		metrics.InvalidPayloads.WithLabelValues("unknown").Inc()
		logger.Warnf("session %s: %v: %v", s.peer.ID(), ErrInvalidPayload, err)
		return
	}

	switch f.Event {
	case EventJoinDocument:
		var req JoinRequest
		if s.bind(f, &req) {
			s.join(ctx, req)
		}
	case EventSendChanges:
		var req ChangesRequest
		if s.bind(f, &req) {
			s.relayChanges(req)
		}
	case EventSaveDocument:
		var req SaveRequest
		if s.bind(f, &req) {
			s.c.saver.Submit(req)
		}
	case EventLeaveDocument:
		var req LeaveRequest
		if s.bind(f, &req) {
			s.leave(req)
		}
	case EventCursorPosition:
		var req CursorRequest
		if s.bind(f, &req) {
			s.relayCursor(req)
		}
	default:
		metrics.InvalidPayloads.WithLabelValues("unknown").Inc()
		logger.Warnf("session %s: unknown event %q", s.peer.ID(), f.Event)
	}
}

func (s *Session) bind(f realtime.Frame, dst interface{}) bool {
	err := json.Unmarshal(f.Data, dst)
	if err == nil {
		err = s.c.validate.Struct(dst)
	}
	if err != nil {
		metrics.InvalidPayloads.WithLabelValues(f.Event).Inc()
		logger.Warnf("session %s: %s: %v: %v", s.peer.ID(), f.Event, ErrInvalidPayload, err)
		return false
	}
	return true
}

func (s *Session) send(event string, payload interface{}) {
	msg, err := realtime.Encode(event, payload)
	if err != nil {
		logger.Errorf("session %s: encode %s: %v", s.peer.ID(), event, err)
		return
	}
	if err := s.peer.Deliver(msg); err != nil {
		logger.Debugf("session %s: deliver %s: %v", s.peer.ID(), event, err)
	}
}

func (s *Session) othersIn(docID, userID string) []presence.Entry {
	all := s.c.presence.ListActive(docID)
	out := make([]presence.Entry, 0, len(all))
	for _, e := range all {
		if e.UserID != userID {
			out = append(out, e)
		}
	}
	return out
}

func (s *Session) join(ctx context.Context, req JoinRequest) {
	if req.Username == "" {
		req.Username = anonymousUsername
	}

	if prev, ok := s.member(req.DocumentID); ok {
		if prev == req.UserID {
			// repeated join: the document is already loaded, only refresh the roster
			s.send(EventActiveUsers, s.othersIn(req.DocumentID, req.UserID))
			return
		}
		s.leave(LeaveRequest{DocumentID: req.DocumentID, UserID: prev})
	}

	s.setState(Joining)
	doc, err := s.c.gateway.GetOrCreate(ctx, req.DocumentID)
	if err != nil {
		metrics.RoomJoinFailures.Inc()
		logger.Errorf("session %s: join %s: %v", s.peer.ID(), req.DocumentID, err)
		msg := "failed to load document"
		if errors.Is(err, document.ErrStorageUnavailable) {
			msg = document.ErrStorageUnavailable.Error()
		}
		s.send(EventJoinFailed, JoinFailed{DocumentID: req.DocumentID, Error: msg})
		s.settle()
		return
	}

	s.send(EventLoadDocument, LoadDocument{DocumentID: doc.DocumentID, Title: doc.Title, Content: doc.Content})
	s.c.rooms.Subscribe(s.peer, req.DocumentID)

	entry, added := s.c.presence.Join(req.DocumentID, req.UserID, req.Username)
	if added {
		s.c.rooms.BroadcastToRoom(req.DocumentID, EventUserJoined, UserJoined(entry), s.peer.ID())
	}
	s.send(EventActiveUsers, s.othersIn(req.DocumentID, req.UserID))

	s.mu.Lock()
	s.joined[req.DocumentID] = req.UserID
	s.state = Active
	s.mu.Unlock()

	metrics.RoomJoins.Inc()
	logger.Infof("user %s (%s) joined document %s", req.Username, req.UserID, req.DocumentID)
}

func (s *Session) relayChanges(req ChangesRequest) {
	if _, ok := s.member(req.DocumentID); !ok {
		logger.Debugf("session %s: send-changes for %s without joining", s.peer.ID(), req.DocumentID)
		return
	}
	s.c.rooms.BroadcastToRoom(req.DocumentID, EventReceiveChanges, req.Delta, s.peer.ID())
}

func (s *Session) relayCursor(req CursorRequest) {
	userID, ok := s.member(req.DocumentID)
	if !ok {
		return
	}
	position := req.Position
	if len(position) == 0 {
		position = json.RawMessage("null")
	}
	s.c.rooms.BroadcastToRoom(req.DocumentID, EventCursorUpdate,
		CursorUpdate{UserID: userID, Username: req.Username, Position: position}, s.peer.ID())
}

// leave only ever removes this session's own membership; a userId in the
// payload that does not match is logged and the session's own id is used.
func (s *Session) leave(req LeaveRequest) {
	userID, ok := s.member(req.DocumentID)
	if !ok {
		s.c.rooms.Unsubscribe(s.peer, req.DocumentID)
		return
	}
	if req.UserID != "" && req.UserID != userID {
		logger.Warnf("session %s: leave for %s names user %s, session user is %s", s.peer.ID(), req.DocumentID, req.UserID, userID)
	}

	s.setState(Leaving)
	s.c.rooms.Unsubscribe(s.peer, req.DocumentID)
	if s.c.presence.Leave(req.DocumentID, userID) {
		metrics.RoomLeaves.WithLabelValues("leave").Inc()
		s.c.rooms.BroadcastToRoom(req.DocumentID, EventUserLeft, UserLeft{UserID: userID}, s.peer.ID())
	}

	s.mu.Lock()
	delete(s.joined, req.DocumentID)
	s.mu.Unlock()
	s.settle()
	logger.Infof("user %s left document %s", userID, req.DocumentID)
}

// Disconnect releases every membership the session still holds and tells
// the remaining members. Calling it again is a no-op.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.state = Leaving
	users := map[string]struct{}{}
	for _, u := range s.joined {
		users[u] = struct{}{}
	}
	s.joined = make(map[string]string)
	s.mu.Unlock()

	s.c.rooms.UnsubscribeAll(s.peer)
	for userID := range users {
		for _, docID := range s.c.presence.RemoveAll(userID) {
			metrics.RoomLeaves.WithLabelValues("disconnect").Inc()
			s.c.rooms.BroadcastToRoom(docID, EventUserLeft, UserLeft{UserID: userID}, s.peer.ID())
		}
		logger.Infof("user %s disconnected", userID)
	}
	s.setState(Disconnected)
}

func (s *Session) String() string {
	return fmt.Sprintf("session(%s, %s)", s.peer.ID(), s.State())
}

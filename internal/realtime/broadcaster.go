package realtime

import (
	"errors"
	"sort"
	"sync"

	"github.com/docsync/docsync/pkg/logger"
	"github.com/docsync/docsync/pkg/metrics"
)

// Subscriber is anything a room can push frames to.
type Subscriber interface {
	ID() string
	Deliver(msg []byte) error
}

// Publisher forwards an encoded room frame to other server instances.
type Publisher interface {
	Publish(room string, frame []byte)
}

// Broadcaster fans frames out to the connections subscribed to a room.
// Delivery is best-effort: a failing subscriber is logged and skipped.
type Broadcaster struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Subscriber
	relay Publisher
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{rooms: make(map[string]map[string]Subscriber)}
}

// SetRelay attaches a cross-instance publisher. Call before serving traffic.
func (b *Broadcaster) SetRelay(p Publisher) {
	b.mu.Lock()
	b.relay = p
	b.mu.Unlock()
}

func (b *Broadcaster) Subscribe(sub Subscriber, room string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.rooms[room]
	if subs == nil {
		subs = make(map[string]Subscriber)
		b.rooms[room] = subs
	}
	subs[sub.ID()] = sub
}

func (b *Broadcaster) Unsubscribe(sub Subscriber, room string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub.ID(), room)
}

func (b *Broadcaster) removeLocked(id, room string) bool {
	subs := b.rooms[room]
	if _, ok := subs[id]; !ok {
		return false
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(b.rooms, room)
	}
	return true
}

// UnsubscribeAll drops sub from every room and returns those rooms, sorted.
func (b *Broadcaster) UnsubscribeAll(sub Subscriber) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var left []string
	for room := range b.rooms {
		if b.removeLocked(sub.ID(), room) {
			left = append(left, room)
		}
	}
	sort.Strings(left)
	return left
}

// Subscribers returns the number of local connections in room.
func (b *Broadcaster) Subscribers(room string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[room])
}

// BroadcastToRoom sends event to every subscriber of room except the one
// whose ID is exclude, then hands the frame to the relay if one is set.
func (b *Broadcaster) BroadcastToRoom(room, event string, payload interface{}, exclude string) {
	frame, err := Encode(event, payload)
	if err != nil {
		logger.Errorf("broadcast %s to %s: %v", event, room, err)
		return
	}
	metrics.FramesRelayed.WithLabelValues(event).Inc()
	b.deliver(room, frame, exclude)

	b.mu.RLock()
	relay := b.relay
	b.mu.RUnlock()
	if relay != nil {
		relay.Publish(room, frame)
	}
}

// DeliverRemote hands a frame received from another instance to the local
// subscribers of room.
func (b *Broadcaster) DeliverRemote(room string, frame []byte) {
	b.deliver(room, frame, "")
}

func (b *Broadcaster) deliver(room string, frame []byte, exclude string) {
	b.mu.RLock()
	targets := make([]Subscriber, 0, len(b.rooms[room]))
	for id, s := range b.rooms[room] {
		if id != exclude {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if err := s.Deliver(frame); err != nil {
			reason := "closed"
			if errors.Is(err, ErrSlowConsumer) {
				reason = "slow_consumer"
			}
			metrics.FramesDropped.WithLabelValues(reason).Inc()
			logger.Debugf("room %s: drop frame for %s: %v", room, s.ID(), err)
		}
	}
}

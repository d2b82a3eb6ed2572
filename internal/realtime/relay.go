package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/docsync/docsync/pkg/logger"
	"github.com/docsync/docsync/pkg/metrics"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Envelope is what instances exchange over the Redis channel.
type Envelope struct {
	Origin string          `json:"origin"`
	Room   string          `json:"room"`
	Frame  json.RawMessage `json:"frame"`
}

// RedisRelay mirrors room broadcasts to the other server instances sharing
// a Redis channel. Each instance ignores its own envelopes.
type RedisRelay struct {
	rdb        *redis.Client
	channel    string
	instanceID string
	queue      chan Envelope
}

func NewRedisRelay(rdb *redis.Client, channel string, queueSize int) *RedisRelay {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &RedisRelay{
		rdb:        rdb,
		channel:    channel,
		instanceID: uuid.New().String(),
		queue:      make(chan Envelope, queueSize),
	}
}

func (r *RedisRelay) InstanceID() string { return r.instanceID }

// Publish queues a frame for the publisher goroutine. Frames are dropped
// when the queue is full.
func (r *RedisRelay) Publish(room string, frame []byte) {
	select {
	case r.queue <- Envelope{Origin: r.instanceID, Room: room, Frame: frame}:
	default:
		metrics.FramesDropped.WithLabelValues("relay_queue_full").Inc()
		logger.Warnf("relay %s: publish queue full, dropping frame for room %s", r.instanceID, room)
	}
}

// Start subscribes to the channel and runs the consumer and publisher until
// ctx is cancelled. It returns once the subscription is confirmed.
func (r *RedisRelay) Start(ctx context.Context, deliver func(room string, frame []byte)) error {
	ps := r.rdb.Subscribe(ctx, r.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("relay subscribe %s: %w", r.channel, err)
	}
	logger.Infof("relay %s: subscribed to %s", r.instanceID, r.channel)

	go r.consume(ctx, ps, deliver)
	go r.publish(ctx)
	return nil
}

func (r *RedisRelay) consume(ctx context.Context, ps *redis.PubSub, deliver func(string, []byte)) {
	defer ps.Close()
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logger.Warnf("relay %s: bad envelope: %v", r.instanceID, err)
				continue
			}
			if env.Origin == r.instanceID {
				continue
			}
			deliver(env.Room, env.Frame)
		}
	}
}

// publish runs on a single goroutine so frames leave in the order they
// were queued.
func (r *RedisRelay) publish(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-r.queue:
			data, err := json.Marshal(env)
			if err != nil {
				logger.Errorf("relay %s: encode envelope: %v", r.instanceID, err)
				continue
			}
			if err := r.rdb.Publish(ctx, r.channel, data).Err(); err != nil {
				logger.Warnf("relay %s: publish to %s: %v", r.instanceID, r.channel, err)
			}
		}
	}
}

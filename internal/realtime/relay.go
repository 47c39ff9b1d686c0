package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// envelope is an emit as carried over the relay channel.
type envelope struct {
	Scope  string          `json:"scope"`
	Target string          `json:"target,omitempty"`
	Frame  json.RawMessage `json:"frame"`
}

// RedisRelay is an Emitter for multi-instance deployments.  Emits are
// published on a Redis channel and every instance, this one included,
// applies them to its local hub from Run.  If publishing fails the frame
// is still delivered to local clients.
type RedisRelay struct {
	rdb     redis.UniversalClient
	channel string
	hub     *Hub
	log     *zap.Logger
}

// NewRedisRelay returns a relay publishing on channel and delivering to hub.
func NewRedisRelay(rdb redis.UniversalClient, channel string, hub *Hub, log *zap.Logger) *RedisRelay {
	return &RedisRelay{rdb: rdb, channel: channel, hub: hub, log: log}
}

// EmitAll publishes a frame for every client on every instance.
func (r *RedisRelay) EmitAll(ctx context.Context, event string, data any) error {
	return r.publish(ctx, scopeAll, "", event, data)
}

// EmitRoom publishes a frame for room on every instance.
func (r *RedisRelay) EmitRoom(ctx context.Context, room, event string, data any) error {
	return r.publish(ctx, scopeRoom, room, event, data)
}

// EmitUser publishes a frame for userID on every instance.
func (r *RedisRelay) EmitUser(ctx context.Context, userID, event string, data any) error {
	return r.publish(ctx, scopeUser, userID, event, data)
}

func (r *RedisRelay) publish(ctx context.Context, scope, target, event string, data any) error {
	frame, err := encodeFrame(event, data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope{Scope: scope, Target: target, Frame: frame})
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, r.channel, string(payload)).Err(); err != nil {
		r.hub.deliver(scope, target, frame)
		return fmt.Errorf("relay publish: %w", err)
	}
	return nil
}

// Run subscribes to the relay channel and applies incoming emits until ctx
// is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("relay subscribe: %w", err)
	}
	r.log.Info("realtime: relay subscribed", zap.String("channel", r.channel))

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			r.apply(m.Payload)
		}
	}
}

func (r *RedisRelay) apply(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil || len(env.Frame) == 0 {
		r.log.Warn("realtime: bad relay message", zap.Error(err))
		return
	}
	r.hub.deliver(env.Scope, env.Target, env.Frame)
}

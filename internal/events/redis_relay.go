package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"communitysite/internal/logger"
)

// RedisRelay mirrors local events onto a Redis channel and republishes events
// from other instances on the local bus, so an SSE stream served by one
// instance sees unlocks handled by another.
type RedisRelay struct {
	log      *logger.Logger
	rdb      *goredis.Client
	channel  string
	instance string
	bus      *Bus
	stop     func()
}

func NewRedisRelay(log *logger.Logger, rdb *goredis.Client, channel string, bus *Bus) (*RedisRelay, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil || bus == nil {
		return nil, fmt.Errorf("redis client and bus required")
	}
	if channel == "" {
		channel = "milestones"
	}
	return &RedisRelay{
		log:      log.With("service", "RedisRelay"),
		rdb:      rdb,
		channel:  channel,
		instance: uuid.NewString(),
		bus:      bus,
	}, nil
}

// Start subscribes to the channel and begins forwarding in both directions
// until ctx is done.
func (r *RedisRelay) Start(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	r.stop = r.bus.Subscribe("*", func(ctx context.Context, ev Event) {
		if ev.Origin != "" {
			return
		}
		ev.Origin = r.instance
		raw, err := json.Marshal(ev)
		if err != nil {
			r.log.Warn("encode relay event", "error", err)
			return
		}
		if err := r.rdb.Publish(context.WithoutCancel(ctx), r.channel, raw).Err(); err != nil {
			r.log.Warn("relay publish failed", "error", err, "event", ev.Name)
		}
	})

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					r.log.Warn("bad relay payload", "error", err)
					continue
				}
				if ev.Origin == r.instance || ev.Origin == "" {
					continue
				}
				r.bus.Publish(ctx, ev)
			}
		}
	}()
	return nil
}

func (r *RedisRelay) Close() {
	if r.stop != nil {
		r.stop()
	}
}

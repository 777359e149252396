package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"voice-platform/pkg/logger"
)

const channelPrefix = "events:"

// RedisPublisher publishes events on events:{topic} so every API instance can
// relay them to its own websocket clients.
type RedisPublisher struct {
	rdb redis.UniversalClient
	log *slog.Logger
}

func NewRedisPublisher(rdb redis.UniversalClient, log *slog.Logger) *RedisPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &RedisPublisher{rdb: rdb, log: logger.Component(log, "events_redis")}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, eventType Type, payload any) {
	raw, err := json.Marshal(Event{Topic: topic, Type: eventType, Payload: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		p.log.Warn("event encode failed", "type", string(eventType), "err", err)
		return
	}
	if err := p.rdb.Publish(ctx, channelPrefix+topic, raw).Err(); err != nil {
		p.log.Warn("event publish failed", "topic", topic, "type", string(eventType), "err", err)
	}
}

// Relay subscribes to every events:* channel and feeds the hub until ctx ends.
func (p *RedisPublisher) Relay(ctx context.Context, h *Hub) {
	pubsub := p.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			ev, err := decodeRelayed(msg.Channel, msg.Payload)
			if err != nil {
				p.log.Warn("relayed event decode failed", "channel", msg.Channel, "err", err)
				continue
			}
			h.deliver(ev)
		}
	}
}

func decodeRelayed(channel, payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, err
	}
	if ev.Topic == "" {
		ev.Topic = strings.TrimPrefix(channel, channelPrefix)
	}
	return ev, nil
}

package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kami-operation/kamiops/internal/metrics"
)

const defaultRedisTimeout = 5 * time.Second

// ConnectRedis initialises a Redis client and validates connectivity with a ping.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, defaultRedisTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// envelope is what travels over the Redis channel
type envelope struct {
	UserIDs []string `json:"userIds,omitempty"`
	Event   Event    `json:"event"`
}

// Broker fans events out through Redis pub/sub so every instance's hub delivers them
type Broker struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
	log     zerolog.Logger
}

// NewBroker bridges hub to a Redis channel
func NewBroker(rdb *redis.Client, channel string, hub *Hub, log zerolog.Logger) *Broker {
	return &Broker{
		rdb:     rdb,
		channel: channel,
		hub:     hub,
		log:     log.With().Str("component", "ws-broker").Logger(),
	}
}

// Publish sends the event to Redis; delivery happens in Run on every instance.
// When Redis is unreachable the event is delivered to local connections only.
func (b *Broker) Publish(ctx context.Context, userIDs []string, ev Event) error {
	payload, err := json.Marshal(envelope{UserIDs: userIDs, Event: ev})
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.log.Warn().Err(err).Str("type", ev.Type).Msg("redis publish failed, delivering locally")
		return b.hub.Publish(ctx, userIDs, ev)
	}
	metrics.EventsPublishedTotal.WithLabelValues("redis").Inc()
	return nil
}

// Run consumes the channel until ctx ends
func (b *Broker) Run(ctx context.Context) {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	b.log.Info().Str("channel", b.channel).Msg("subscribed to event channel")
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handle(msg.Payload)
		}
	}
}

func (b *Broker) handle(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.log.Warn().Err(err).Msg("dropping malformed event")
		return
	}
	b.hub.deliver(env.UserIDs, env.Event)
}

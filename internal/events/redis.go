package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultChannelPrefix namespaces Redis channels, e.g. "receptionist:booking.created".
const DefaultChannelPrefix = "receptionist"

// RedisPublisher forwards bus events to Redis pub/sub channels so other
// processes (dashboards, reminder senders) can follow bookings. Handle only
// queues; Run does the network round trip off the booking path.
type RedisPublisher struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
	queue   chan Event
	logger  zerolog.Logger
}

// NewRedisPublisher creates a publisher. An empty prefix uses
// DefaultChannelPrefix. Handle drops events when queueSize are already pending.
func NewRedisPublisher(client redis.UniversalClient, prefix string, queueSize int, logger *zerolog.Logger) *RedisPublisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "redis_events").Logger()
	}
	return &RedisPublisher{
		client:  client,
		prefix:  prefix,
		timeout: 2 * time.Second,
		queue:   make(chan Event, queueSize),
		logger:  l,
	}
}

// Channel returns the Redis channel for an event type.
func (p *RedisPublisher) Channel(eventType string) string {
	return fmt.Sprintf("%s:%s", p.prefix, eventType)
}

// Handle is an EventHandler. It never blocks.
func (p *RedisPublisher) Handle(event Event) error {
	select {
	case p.queue <- event:
	default:
		p.logger.Warn().Str("event", event.Type).Int64("event_id", event.ID).Msg("redis queue full, dropping")
	}
	return nil
}

// Run publishes queued events until ctx is done.
func (p *RedisPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-p.queue:
			if err := p.publish(ctx, event); err != nil {
				p.logger.Error().Err(err).Str("event", event.Type).Msg("failed to forward event")
			}
		}
	}
}

func (p *RedisPublisher) publish(ctx context.Context, event Event) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	receivers, err := p.client.Publish(ctx, p.Channel(event.Type), event.Payload).Result()
	if err != nil {
		return fmt.Errorf("redis publish %s: %w", event.Type, err)
	}
	p.logger.Debug().Str("event", event.Type).Int64("receivers", receivers).Msg("event forwarded")
	return nil
}

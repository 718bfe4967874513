package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is used when no Redis channel is configured.
const DefaultChannel = "forms.events"

// RedisConfig configures RedisSink.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
	Channel string `yaml:"channel"`
	// PerEvent appends the event name to the channel, e.g.
	// forms.events.form.published.
	PerEvent bool `yaml:"per_event"`
}

// RedisSink publishes events via Redis Pub/Sub.
type RedisSink struct {
	Client   *redis.Client
	Channel  string
	PerEvent bool
}

// NewRedisSink returns a RedisSink based on config.
func NewRedisSink(c RedisConfig) (*RedisSink, error) {
	if !c.Enabled || c.DSN == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(c.DSN)
	if err != nil {
		return nil, err
	}
	ch := c.Channel
	if ch == "" {
		ch = DefaultChannel
	}
	return &RedisSink{Client: redis.NewClient(opt), Channel: ch, PerEvent: c.PerEvent}, nil
}

// ChannelFor returns the channel an event is published on.
func (s *RedisSink) ChannelFor(e Event) string {
	if s.PerEvent {
		return s.Channel + "." + e.Name
	}
	return s.Channel
}

func (s *RedisSink) Emit(ctx context.Context, e Event) error {
	if s == nil || s.Client == nil {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.Client.Publish(ctx, s.ChannelFor(e), data).Err()
}

// Close releases the client.
func (s *RedisSink) Close() error {
	if s == nil || s.Client == nil {
		return nil
	}
	return s.Client.Close()
}

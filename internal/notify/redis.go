package notify

import (
	"context"
	"fmt"
)

// DefaultChannel is the pub/sub channel milestones are published on.
const DefaultChannel = "wowl:milestones"

// Publisher is the subset of the Redis cache used for publishing.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) error
}

// RedisNotifier publishes events as JSON on a Redis channel.
type RedisNotifier struct {
	pub     Publisher
	channel string
}

// NewRedisNotifier creates a RedisNotifier. An empty channel uses
// DefaultChannel.
func NewRedisNotifier(pub Publisher, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{pub: pub, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, e Event) error {
	if err := n.pub.Publish(ctx, n.channel, e); err != nil {
		return fmt.Errorf("publish %s: %w", e.Kind, err)
	}
	return nil
}

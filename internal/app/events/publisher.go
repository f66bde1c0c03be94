package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Publisher hands one serialized event to the bus. Delivery is
// at-least-once, so subscribers must tolerate duplicates.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// streamMaxLen bounds the stream; trimming is approximate.
const streamMaxLen = 100000

// RedisPublisher appends events to a Redis stream. Entries persist until
// trimmed, so consumer groups that connect late still read them.
type RedisPublisher struct {
	client *redis.Client
	stream string
}

func NewRedisPublisher(client *redis.Client, streamPrefix string) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		stream: fmt.Sprintf("%s:events", streamPrefix),
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", routingKey, err)
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"routing_key": routingKey,
			"payload":     body,
		},
	}).Err()
}

// MemoryPublisher records published events. It backs tests and runs without Redis.
type MemoryPublisher struct {
	mu        sync.Mutex
	published []Published
}

type Published struct {
	RoutingKey string
	Payload    any
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, Published{RoutingKey: routingKey, Payload: payload})
	return nil
}

// Published returns a copy of everything published so far.
func (p *MemoryPublisher) Published() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Published, len(p.published))
	copy(out, p.published)
	return out
}

// Count returns how many events were published with routingKey.
func (p *MemoryPublisher) Count(routingKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.published {
		if e.RoutingKey == routingKey {
			n++
		}
	}
	return n
}

package eventbus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Transport carries Trigger/Sync visibility across OS processes on the same
// host. The Bus contract (Trigger/Sync/Reset/Poll) does not change depending
// on which Transport is attached; only cross-process observability does.
type Transport interface {
	// Publish announces that name has fired.
	Publish(ctx context.Context, name string) error

	// Subscribe returns a channel that receives one value per remote
	// Publish(name), and an unsubscribe function. The channel is closed
	// once unsubscribe is called.
	Subscribe(ctx context.Context, name string) (<-chan struct{}, func(), error)
}

// RedisTransport carries Bus notifications over Redis PUBLISH/SUBSCRIBE,
// playing the role of the shared-memory notification ring the orchestration
// engine's contract requires for cross-process delivery: ordering is
// preserved per channel, so Sync observes Trigger in FIFO order per name, and
// Redis already runs on the same host as the agent processes it serves.
type RedisTransport struct {
	client *redis.Client
	prefix string
}

// NewRedisTransport wraps an existing Redis client. prefix namespaces the
// pub/sub channels used for this app's events, e.g. "feo/events/".
func NewRedisTransport(client *redis.Client, prefix string) *RedisTransport {
	return &RedisTransport{client: client, prefix: prefix}
}

func (t *RedisTransport) channel(name string) string {
	return t.prefix + name
}

// Publish sends a single notification on name's channel.
func (t *RedisTransport) Publish(ctx context.Context, name string) error {
	if err := t.client.Publish(ctx, t.channel(name), "1").Err(); err != nil {
		return fmt.Errorf("redis transport: publish %q: %w", name, err)
	}
	return nil
}

// Subscribe subscribes to name's channel. The returned channel receives one
// struct{} per message; closing it happens when the returned unsubscribe
// func is called.
func (t *RedisTransport) Subscribe(ctx context.Context, name string) (<-chan struct{}, func(), error) {
	sub := t.client.Subscribe(ctx, t.channel(name))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis transport: subscribe %q: %w", name, err)
	}

	out := make(chan struct{})
	msgs := sub.Channel()
	done := make(chan struct{})

	go func() {
		defer close(out)
		for {
			select {
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()

	unsubscribe := func() {
		close(done)
		_ = sub.Close()
	}
	return out, unsubscribe, nil
}

// LocalTransport is the zero-cost default: it fulfils the Transport
// interface without crossing a process boundary, used for single-process
// deployments (the benchmark binary, tests) where every agent lives in the
// same address space and the Bus's in-process waiter list is already
// sufficient.
type LocalTransport struct{}

// Publish is a no-op: local waiters are already woken by Bus.Trigger before
// Publish is ever called.
func (LocalTransport) Publish(ctx context.Context, name string) error { return nil }

// Subscribe returns a channel that never receives anything, since
// LocalTransport never needs to announce a remote trigger locally.
func (LocalTransport) Subscribe(ctx context.Context, name string) (<-chan struct{}, func(), error) {
	ch := make(chan struct{})
	return ch, func() { close(ch) }, nil
}

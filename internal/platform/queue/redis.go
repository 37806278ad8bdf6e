package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dontdude/scanprint/internal/domain"
	"github.com/dontdude/scanprint/internal/observability"
)

// RedisFanout implements domain.Fanout over Redis Pub/Sub so that several
// broker instances behind a load balancer push to all of their subscribers.
// Only broadcasts travel through Redis; each instance keeps its own queue.
type RedisFanout struct {
	client  *redis.Client
	channel string
}

// Ensure RedisFanout satisfies the interface
var _ domain.Fanout = (*RedisFanout)(nil)

// NewRedisFanout connects to addr and verifies the connection.
func NewRedisFanout(addr, channel string) (*RedisFanout, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	// Fail-fast ping check
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisFanout{
		client:  rdb,
		channel: channel,
	}, nil
}

// Publish sends the job to every instance subscribed to the channel.
func (r *RedisFanout) Publish(ctx context.Context, job domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return domain.Wrap(domain.KindTransport, "redis publish", err)
	}
	return nil
}

// Receive subscribes to the channel and streams jobs until ctx is done.
func (r *RedisFanout) Receive(ctx context.Context) (<-chan domain.Job, error) {
	pubsub := r.client.Subscribe(ctx, r.channel)

	// Wait for confirmation that we are subscribed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, domain.Wrap(domain.KindTransport, "redis subscribe", err)
	}

	outCh := make(chan domain.Job)

	go func() {
		defer close(outCh)
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

				var job domain.Job
				if err := json.Unmarshal([]byte(msg.Payload), &job); err != nil {
					observability.WithField("error", err).Error("Failed to unmarshal fanout job")
					continue
				}

				select {
				case outCh <- job:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return outCh, nil
}

func (r *RedisFanout) Close() error {
	return r.client.Close()
}

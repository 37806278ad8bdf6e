package domain

import "context"

// JobQueue defines the contract for the relay broker's print queue.
// It decouples the HTTP boundary from the underlying queue implementation.
type JobQueue interface {
	// Submit appends a job to the tail of the queue and, when push delivery is
	// enabled, hands the payload to every active subscriber.
	// It never waits for delivery.
	Submit(ctx context.Context, job Job) error

	// Poll removes and returns the oldest queued job.
	// ok is false when the queue is empty; that is not an error.
	Poll(ctx context.Context) (job Job, ok bool, err error)

	// Subscribe returns a read-only channel that streams every submitted job
	// until ctx is cancelled, after which the channel is closed.
	Subscribe(ctx context.Context) (<-chan Job, error)
}

// Fanout carries broadcasts between broker instances.
// A broker with a Fanout publishes submissions to it instead of broadcasting
// locally, and relays whatever it receives to its own subscribers.
type Fanout interface {
	Publish(ctx context.Context, job Job) error
	Receive(ctx context.Context) (<-chan Job, error)
}

package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dontdude/scanprint/internal/domain"
	"github.com/dontdude/scanprint/internal/observability"
)

const (
	defaultSubscriberBuffer = 64
	defaultOutboxSize       = 256
)

// MemoryQueue implements domain.JobQueue with an in-process FIFO and a
// broadcast subscriber set. Nothing survives a restart.
type MemoryQueue struct {
	// mu guards jobs and subs. It is never held across a channel send that
	// could block.
	mu   sync.Mutex
	jobs []domain.Job
	subs map[string]chan domain.Job

	push    bool
	buffer  int
	fanout  domain.Fanout
	outbox  chan domain.Job
	metrics *observability.BrokerMetrics
}

// Ensure MemoryQueue satisfies the interface
var _ domain.JobQueue = (*MemoryQueue)(nil)

// Option configures a MemoryQueue.
type Option func(*MemoryQueue)

// WithPush enables or disables broadcasting submissions to subscribers.
func WithPush(enabled bool) Option {
	return func(q *MemoryQueue) { q.push = enabled }
}

// WithSubscriberBuffer sets how many frames a slow subscriber may lag
// before frames are dropped for it.
func WithSubscriberBuffer(n int) Option {
	return func(q *MemoryQueue) {
		if n > 0 {
			q.buffer = n
		}
	}
}

// WithFanout routes broadcasts through f so that every broker instance
// sharing f delivers them. Run must be started to publish and relay them.
func WithFanout(f domain.Fanout) Option {
	return func(q *MemoryQueue) { q.fanout = f }
}

// WithMetrics records activity into m.
func WithMetrics(m *observability.BrokerMetrics) Option {
	return func(q *MemoryQueue) { q.metrics = m }
}

func NewMemoryQueue(opts ...Option) *MemoryQueue {
	q := &MemoryQueue{
		subs:    make(map[string]chan domain.Job),
		push:    true,
		buffer:  defaultSubscriberBuffer,
		metrics: observability.NewBrokerMetrics(),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.fanout != nil {
		q.outbox = make(chan domain.Job, defaultOutboxSize)
	}
	return q
}

// Submit appends job and broadcasts it when push is enabled. The append
// and the broadcast share one critical section so push order matches
// queue order.
func (q *MemoryQueue) Submit(ctx context.Context, job domain.Job) error {
	if job.Payload == "" {
		return domain.Wrap(domain.KindValidation, "submit", domain.ErrEmptyPayload)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.jobs = append(q.jobs, job)
	q.metrics.IncSubmitted()

	if !q.push {
		return nil
	}
	if q.outbox == nil {
		q.broadcastLocked(job)
		return nil
	}

	// Run publishes the outbox in order. The job stays pollable if the
	// outbox is full.
	select {
	case q.outbox <- job:
	default:
		q.metrics.IncDropped()
		observability.WithField("payload_len", len(job.Payload)).Warn("Fanout outbox full, broadcast dropped")
	}
	return nil
}

// Poll pops the head of the queue.
func (q *MemoryQueue) Poll(ctx context.Context) (domain.Job, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		q.metrics.IncEmptyPolls()
		return domain.Job{}, false, nil
	}

	job := q.jobs[0]
	q.jobs[0] = domain.Job{}
	q.jobs = q.jobs[1:]
	q.metrics.IncPolled()
	return job, true, nil
}

// Subscribe registers a new subscriber. Jobs submitted before the call are
// not replayed. The channel closes once ctx is done.
func (q *MemoryQueue) Subscribe(ctx context.Context) (<-chan domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	id := uuid.NewString()
	ch := make(chan domain.Job, q.buffer)

	q.mu.Lock()
	q.subs[id] = ch
	q.mu.Unlock()
	observability.WithField("subscriber", id).Debug("Subscriber added")

	go func() {
		<-ctx.Done()
		q.mu.Lock()
		delete(q.subs, id)
		close(ch)
		q.mu.Unlock()
		observability.WithField("subscriber", id).Debug("Subscriber removed")
	}()

	return ch, nil
}

// Run publishes submissions to the fanout and relays fanout broadcasts to
// local subscribers until ctx is done. It returns immediately when no
// fanout is configured.
func (q *MemoryQueue) Run(ctx context.Context) error {
	if q.fanout == nil {
		return nil
	}

	in, err := q.fanout.Receive(ctx)
	if err != nil {
		return fmt.Errorf("fanout receive: %w", err)
	}

	go q.publish(ctx)

	for job := range in {
		q.broadcast(job)
	}
	return nil
}

// publish drains the outbox one job at a time.
func (q *MemoryQueue) publish(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.outbox:
			if err := q.fanout.Publish(ctx, job); err != nil {
				observability.WithField("error", err).Error("Fanout publish failed")
			}
		}
	}
}

// Len returns the number of queued jobs.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Subscribers returns the size of the subscriber set.
func (q *MemoryQueue) Subscribers() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.subs)
}

// Metrics exposes the queue's counters.
func (q *MemoryQueue) Metrics() *observability.BrokerMetrics {
	return q.metrics
}

func (q *MemoryQueue) broadcast(job domain.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.broadcastLocked(job)
}

// broadcastLocked offers job to every subscriber without blocking. A
// subscriber whose buffer is full misses this frame; the others are
// unaffected. q.mu must be held.
func (q *MemoryQueue) broadcastLocked(job domain.Job) {
	for id, ch := range q.subs {
		select {
		case ch <- job:
			q.metrics.IncBroadcast()
		default:
			q.metrics.IncDropped()
			observability.WithFields(logrus.Fields{
				"subscriber":  id,
				"payload_len": len(job.Payload),
			}).Warn("Subscriber lagging, frame dropped")
		}
	}
}

package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/dontdude/scanprint/internal/domain"
	"github.com/dontdude/scanprint/internal/observability"
)

// Poller fetches the next queued payload from the broker.
type Poller interface {
	Poll(ctx context.Context) (payload string, ok bool, err error)
}

// Listener holds a push connection and calls handle per payload until the
// connection drops.
type Listener interface {
	Listen(ctx context.Context, handle func(payload string)) error
}

// KeySource reads the local keyboard and emits accepted scanner bursts.
type KeySource interface {
	Run(ctx context.Context, emit func(payload string)) error
}

type submitFunc func(ctx context.Context, payload string, source domain.Source) error

// pollLoop drains the queue while it has jobs, waits interval when it is
// empty and retry after a transport failure. It returns when ctx is done.
func pollLoop(ctx context.Context, p Poller, interval, retry time.Duration, submit submitFunc, status StatusFunc) {
	log := observability.WithField("source", domain.SourcePoll)
	for {
		payload, ok, err := p.Poll(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			log.WithError(err).Warn("Poll failed")
			status(fmt.Sprintf("server unreachable, retrying in %s", retry))
			if !sleep(ctx, retry) {
				return
			}
		case ok:
			if err := submit(ctx, payload, domain.SourcePoll); err != nil {
				return
			}
		default:
			if !sleep(ctx, interval) {
				return
			}
		}
	}
}

// pushLoop keeps a push connection open, reconnecting after retry each time
// it drops. It returns when ctx is done.
func pushLoop(ctx context.Context, l Listener, retry time.Duration, submit submitFunc, status StatusFunc) {
	log := observability.WithField("source", domain.SourcePush)
	for {
		err := l.Listen(ctx, func(payload string) {
			_ = submit(ctx, payload, domain.SourcePush)
		})
		if ctx.Err() != nil {
			return
		}
		log.WithError(err).Warn("Push connection lost")
		status(fmt.Sprintf("push connection lost, reconnecting in %s", retry))
		if !sleep(ctx, retry) {
			return
		}
	}
}

// sleep waits d or until ctx is done. It reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dontdude/scanprint/internal/config"
	"github.com/dontdude/scanprint/internal/domain"
	"github.com/dontdude/scanprint/internal/observability"
	"github.com/dontdude/scanprint/internal/platform/keyboard"
)

// Options select the network delivery mode and its timings.
type Options struct {
	Mode           string
	PollInterval   time.Duration
	ReconnectDelay time.Duration
}

// Agent wires the input sources to one pipeline.
type Agent struct {
	opts     Options
	pipeline *Pipeline
	poller   Poller
	listener Listener
	keys     KeySource
	status   StatusFunc
}

// New returns an agent. poller and listener are required by the modes that
// use them; keys may be nil to disable keyboard capture.
func New(opts Options, deps Deps, poller Poller, listener Listener, keys KeySource) (*Agent, error) {
	if opts.Mode == "" {
		opts.Mode = config.ModePush
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}

	switch opts.Mode {
	case config.ModePush:
		if listener == nil {
			return nil, fmt.Errorf("agent: mode %q needs a push listener", opts.Mode)
		}
	case config.ModePoll:
		if poller == nil {
			return nil, fmt.Errorf("agent: mode %q needs a poller", opts.Mode)
		}
	case config.ModeBoth:
		if poller == nil || listener == nil {
			return nil, fmt.Errorf("agent: mode %q needs a poller and a push listener", opts.Mode)
		}
	default:
		return nil, fmt.Errorf("agent: unknown mode %q", opts.Mode)
	}

	p := NewPipeline(deps)
	return &Agent{
		opts:     opts,
		pipeline: p,
		poller:   poller,
		listener: listener,
		keys:     keys,
		status:   p.deps.Status,
	}, nil
}

// Run processes input until ctx is done or the keyboard reports Ctrl-C.
// The job in progress is finished before Run returns.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := observability.WithField("mode", a.opts.Mode)
	log.Info("Agent starting")

	a.pipeline.Start()

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	submit := a.pipeline.Submit
	if a.opts.Mode == config.ModePush || a.opts.Mode == config.ModeBoth {
		spawn(func() { pushLoop(ctx, a.listener, a.opts.ReconnectDelay, submit, a.status) })
	}
	if a.opts.Mode == config.ModePoll || a.opts.Mode == config.ModeBoth {
		spawn(func() { pollLoop(ctx, a.poller, a.opts.PollInterval, a.opts.ReconnectDelay, submit, a.status) })
	}

	var interrupted error
	if a.keys != nil {
		spawn(func() {
			err := a.keys.Run(ctx, func(payload string) {
				_ = submit(ctx, payload, domain.SourceKeyboard)
			})
			switch {
			case errors.Is(err, keyboard.ErrInterrupted):
				interrupted = err
				cancel()
			case err != nil && ctx.Err() == nil:
				log.WithError(err).Error("Keyboard capture stopped")
			}
		})
	}

	<-ctx.Done()
	wg.Wait()
	a.pipeline.Stop()
	log.Info("Agent stopped")
	return interrupted
}

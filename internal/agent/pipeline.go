// Package agent runs the print agent: input sources feed candidates into a
// single serialized pipeline that deduplicates, composes, persists and
// prints them.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dontdude/scanprint/internal/dedup"
	"github.com/dontdude/scanprint/internal/domain"
	"github.com/dontdude/scanprint/internal/label"
	"github.com/dontdude/scanprint/internal/observability"
)

// StatusFunc receives short human-readable status lines.
type StatusFunc func(msg string)

// Deps are the pipeline's collaborators. Artifacts and Audit are optional.
// MaxPayloadLength should match the broker's limit; zero selects the default.
type Deps struct {
	MaxPayloadLength int

	Dedup     *dedup.Cache
	Composer  *label.Composer
	Printer   domain.Printer
	Artifacts domain.ArtifactStore
	Audit     domain.AuditLog
	Status    StatusFunc
}

// Pipeline processes candidates one at a time in arrival order.
type Pipeline struct {
	deps Deps
	// candidates is the channel both sources send into.
	candidates chan domain.Candidate
	wg         sync.WaitGroup
	now        func() time.Time
}

// NewPipeline returns a pipeline with a small submission buffer.
func NewPipeline(deps Deps) *Pipeline {
	if deps.Dedup == nil {
		deps.Dedup = dedup.New(0, 0)
	}
	if deps.Status == nil {
		deps.Status = func(msg string) { observability.GetLogger().Info(msg) }
	}
	return &Pipeline{
		deps:       deps,
		candidates: make(chan domain.Candidate, 16),
		now:        time.Now,
	}
}

// Start spawns the processing goroutine. It returns immediately.
func (p *Pipeline) Start() {
	p.wg.Add(1)
	go p.run()
}

// Stop closes the intake and blocks until queued candidates are processed.
// Submit must not be called after Stop.
func (p *Pipeline) Stop() {
	close(p.candidates)
	p.wg.Wait()
	observability.GetLogger().Info("Pipeline stopped")
}

// Submit queues a payload from source. It blocks while the pipeline is
// saturated, unless ctx is done first.
func (p *Pipeline) Submit(ctx context.Context, payload string, source domain.Source) error {
	c := domain.Candidate{Payload: payload, Source: source, ReceivedAt: p.now()}
	select {
	case p.candidates <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) run() {
	defer p.wg.Done()
	for c := range p.candidates {
		if err := p.Process(c); err != nil {
			p.report(c, err)
		}
	}
}

// report is the single place job failures are resolved. Nothing is
// requeued; the loop moves on to the next candidate.
func (p *Pipeline) report(c domain.Candidate, err error) {
	kind := domain.KindOf(err)
	observability.WithFields(logrus.Fields{
		"source":      c.Source,
		"payload_len": len(c.Payload),
		"kind":        kind.String(),
		"error":       err,
	}).Warn("Job dropped")
	p.deps.Status(fmt.Sprintf("%s error, job dropped: %v", kind, err))
}

// Process runs one candidate through the pipeline. A duplicate inside the
// dedup window is not an error and returns nil.
func (p *Pipeline) Process(c domain.Candidate) error {
	if err := domain.ValidatePayload(c.Payload, p.deps.MaxPayloadLength); err != nil {
		return err
	}

	log := observability.WithFields(logrus.Fields{"source": c.Source, "payload_len": len(c.Payload)})

	if p.deps.Dedup.ShouldSuppress(c.Payload, c.ReceivedAt) {
		log.Debug("Duplicate payload suppressed")
		return nil
	}

	// In-flight jobs finish even when the agent is shutting down.
	ctx := context.Background()

	geom, err := p.deps.Printer.Geometry(ctx)
	if err != nil {
		return domain.Wrap(domain.KindDispatch, "query geometry", err)
	}

	raster, err := p.deps.Composer.Compose(c.Payload, geom)
	if err != nil {
		if domain.KindOf(err) == domain.KindUnknown {
			err = domain.Wrap(domain.KindComposition, "compose", err)
		}
		return err
	}

	var artifact string
	if p.deps.Artifacts != nil {
		artifact, err = p.deps.Artifacts.Save(c.ReceivedAt, raster.Image)
		if err != nil {
			log.WithError(err).Warn("Failed to save label image")
		}
	}

	if p.deps.Audit != nil {
		rec := domain.AuditRecord{
			CapturedAt: c.ReceivedAt,
			Payload:    c.Payload,
			Artifact:   artifact,
			Source:     c.Source,
		}
		if err := p.deps.Audit.Append(ctx, rec); err != nil {
			log.WithError(err).Warn("Failed to append audit record")
		}
	}

	if err := p.deps.Printer.Print(ctx, raster.Image); err != nil {
		if domain.KindOf(err) == domain.KindUnknown {
			err = domain.Wrap(domain.KindDispatch, "print", err)
		}
		return err
	}

	log.WithField("artifact", artifact).Info("Label printed")
	p.deps.Status(fmt.Sprintf("printed %s label (%d chars)", c.Source, len([]rune(c.Payload))))
	return nil
}

package agent

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/dontdude/scanprint/internal/domain"
)

type squareEncoder struct{}

func (squareEncoder) Encode(payload string) (image.Image, error) {
	if payload == "unencodable" {
		return nil, errors.New("unsupported characters")
	}
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := 0; i < 4; i++ {
		img.SetGray(i, i, color.Gray{Y: 0})
	}
	return img, nil
}

type mockPrinter struct {
	mu       sync.Mutex
	geom     domain.PageGeometry
	failures int
	printed  []image.Rectangle
}

func (m *mockPrinter) Geometry(ctx context.Context) (domain.PageGeometry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.geom, nil
}

func (m *mockPrinter) Print(ctx context.Context, img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return domain.Wrap(domain.KindDispatch, "print", domain.ErrPrinterUnavailable)
	}
	m.printed = append(m.printed, img.Bounds())
	return nil
}

func (m *mockPrinter) Printed() []image.Rectangle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]image.Rectangle(nil), m.printed...)
}

type mockArtifacts struct {
	mu    sync.Mutex
	saved []time.Time
}

func (m *mockArtifacts) Save(capturedAt time.Time, img image.Image) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, capturedAt)
	return capturedAt.Format("150405.000000") + ".png", nil
}

type mockAudit struct {
	mu      sync.Mutex
	records []domain.AuditRecord
}

func (m *mockAudit) Append(ctx context.Context, rec domain.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *mockAudit) Records() []domain.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditRecord(nil), m.records...)
}

type statusRecorder struct {
	mu   sync.Mutex
	msgs []string
}

func (s *statusRecorder) record(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *statusRecorder) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.msgs...)
}

type pollResult struct {
	payload string
	err     error
}

// scriptedPoller replays results in order, then reports an empty queue.
type scriptedPoller struct {
	mu      sync.Mutex
	results []pollResult
	calls   int
}

func (p *scriptedPoller) Poll(ctx context.Context) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.results) == 0 {
		return "", false, nil
	}
	r := p.results[0]
	p.results = p.results[1:]
	if r.err != nil {
		return "", false, r.err
	}
	return r.payload, true, nil
}

func (p *scriptedPoller) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// flakyListener fails the first connection, then delivers payloads and
// holds the connection until ctx is done.
type flakyListener struct {
	mu       sync.Mutex
	attempts int
	payloads []string
}

func (l *flakyListener) Listen(ctx context.Context, handle func(string)) error {
	l.mu.Lock()
	l.attempts++
	first := l.attempts == 1
	l.mu.Unlock()

	if first {
		return domain.Wrap(domain.KindTransport, "dial push channel", errors.New("connection refused"))
	}
	for _, p := range l.payloads {
		handle(p)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (l *flakyListener) Attempts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts
}

type funcKeySource func(ctx context.Context, emit func(string)) error

func (f funcKeySource) Run(ctx context.Context, emit func(string)) error {
	return f(ctx, emit)
}

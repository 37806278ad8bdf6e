package domain

import (
	"context"
	"image"
	"time"
)

// PageGeometry is what a printer reports for the job about to be printed.
// Width and Height are the printable area in device pixels; zero means the
// driver did not report a usable size.
type PageGeometry struct {
	DPIX   int
	DPIY   int
	Width  int
	Height int
}

// HasPage reports whether the geometry carries a usable page size.
func (g PageGeometry) HasPage() bool {
	return g.Width > 0 && g.Height > 0
}

// SymbolEncoder turns a payload into a symbol bitmap at its natural
// module resolution (one pixel per module).
type SymbolEncoder interface {
	Encode(payload string) (image.Image, error)
}

// Printer is the print dispatcher collaborator.
// Geometry is queried fresh for every job since drivers may change paper
// settings between jobs.
type Printer interface {
	Geometry(ctx context.Context) (PageGeometry, error)
	Print(ctx context.Context, img image.Image) error
}

// ArtifactStore persists the finished raster and returns its name.
type ArtifactStore interface {
	Save(capturedAt time.Time, img image.Image) (string, error)
}

// AuditRecord is one accepted payload.
type AuditRecord struct {
	CapturedAt time.Time
	Payload    string
	Artifact   string
	Source     Source
}

// AuditLog appends a record per accepted payload.
type AuditLog interface {
	Append(ctx context.Context, rec AuditRecord) error
}

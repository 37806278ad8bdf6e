package printer

import (
	"context"
	"image"

	"github.com/sirupsen/logrus"

	"github.com/dontdude/scanprint/internal/domain"
	"github.com/dontdude/scanprint/internal/observability"
)

// DryRun accepts every job without printing. It reports only a DPI, so the
// composer derives the page from the configured label size.
type DryRun struct {
	dpi int
}

var _ domain.Printer = (*DryRun)(nil)

func NewDryRun(dpi int) *DryRun {
	return &DryRun{dpi: dpi}
}

func (d *DryRun) Geometry(ctx context.Context) (domain.PageGeometry, error) {
	return domain.PageGeometry{DPIX: d.dpi, DPIY: d.dpi}, nil
}

func (d *DryRun) Print(ctx context.Context, img image.Image) error {
	b := img.Bounds()
	observability.WithFields(logrus.Fields{
		"width":  b.Dx(),
		"height": b.Dy(),
	}).Info("Dry run: label discarded")
	return nil
}

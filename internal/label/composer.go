// Package label composes the print-ready raster for a payload: a symbol
// scaled to a fraction of the page and centered on a white canvas sized to
// the printer's reported printable area.
package label

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/dontdude/scanprint/internal/domain"
)

const (
	DefaultWidthMM   = 58
	DefaultHeightMM  = 40
	DefaultDPI       = 203
	DefaultFillRatio = 0.82

	mmPerInch = 25.4
)

// Options configures a Composer.
type Options struct {
	// WidthMM and HeightMM give the physical label used when the printer
	// does not report a page size.
	WidthMM  float64
	HeightMM float64
	// DefaultDPI applies when the printer reports no DPI either.
	DefaultDPI int
	// FillRatio is the share of the page's shorter side the symbol occupies.
	FillRatio float64
}

func (o Options) withDefaults() Options {
	if o.WidthMM <= 0 {
		o.WidthMM = DefaultWidthMM
	}
	if o.HeightMM <= 0 {
		o.HeightMM = DefaultHeightMM
	}
	if o.DefaultDPI <= 0 {
		o.DefaultDPI = DefaultDPI
	}
	if o.FillRatio <= 0 || o.FillRatio > 1 {
		o.FillRatio = DefaultFillRatio
	}
	return o
}

// Raster is a finished label.
type Raster struct {
	Image *image.Gray
	// Symbol is where the scaled symbol sits on the canvas.
	Symbol image.Rectangle
}

// Composer turns payloads into rasters. It keeps no per-job state.
type Composer struct {
	enc  domain.SymbolEncoder
	opts Options
}

func NewComposer(enc domain.SymbolEncoder, opts Options) *Composer {
	return &Composer{enc: enc, opts: opts.withDefaults()}
}

// Compose renders payload for the page described by geom.
// The returned canvas always measures exactly the resolved page size.
func (c *Composer) Compose(payload string, geom domain.PageGeometry) (*Raster, error) {
	w, h := PageSize(geom, c.opts)
	edge := SymbolEdge(w, h, c.opts.FillRatio)

	sym, err := c.enc.Encode(payload)
	if err != nil {
		return nil, domain.Wrap(domain.KindComposition, "encode", fmt.Errorf("%w: %v", domain.ErrEncoderFailed, err))
	}
	if sym == nil || sym.Bounds().Empty() {
		return nil, domain.Wrap(domain.KindComposition, "encode", fmt.Errorf("%w: empty symbol", domain.ErrEncoderFailed))
	}

	// Nearest neighbor keeps modules as hard-edged rectangles.
	scaled := image.NewGray(image.Rect(0, 0, edge, edge))
	draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), sym, sym.Bounds(), draw.Src, nil)

	canvas := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	at := Offset(w, h, edge)
	dst := image.Rectangle{Min: at, Max: at.Add(image.Pt(edge, edge))}
	draw.Draw(canvas, dst, scaled, image.Point{}, draw.Src)

	return &Raster{Image: canvas, Symbol: dst.Intersect(canvas.Bounds())}, nil
}

// PageSize resolves the canvas size. A usable reported page wins; otherwise
// the configured label size is converted with the reported DPI per axis,
// falling back to the default DPI.
func PageSize(geom domain.PageGeometry, opts Options) (int, int) {
	if geom.HasPage() {
		return geom.Width, geom.Height
	}
	opts = opts.withDefaults()

	dpiX, dpiY := geom.DPIX, geom.DPIY
	if dpiX <= 0 {
		dpiX = opts.DefaultDPI
	}
	if dpiY <= 0 {
		dpiY = opts.DefaultDPI
	}
	return max(1, MMToPixels(opts.WidthMM, dpiX)), max(1, MMToPixels(opts.HeightMM, dpiY))
}

// MMToPixels truncates mm at dpi to whole device pixels.
func MMToPixels(mm float64, dpi int) int {
	return int(mm / mmPerInch * float64(dpi))
}

// SymbolEdge is floor(min(w, h) * fill), at least one pixel.
func SymbolEdge(w, h int, fill float64) int {
	return max(1, int(float64(min(w, h))*fill))
}

// Offset centers a square of the given edge, clamped to the canvas origin.
func Offset(w, h, edge int) image.Point {
	return image.Pt(max(0, (w-edge)/2), max(0, (h-edge)/2))
}

// Package printer holds print dispatch adapters for the agent.
package printer

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"net"
	"time"

	"github.com/dontdude/scanprint/internal/domain"
	"github.com/dontdude/scanprint/internal/label"
)

const (
	defaultTCPPort   = "9100"
	defaultTimeout   = 10 * time.Second
	blackLumaCeiling = 128
)

// TSPLConfig describes a TSPL2 label printer reachable over raw TCP.
type TSPLConfig struct {
	Address  string
	DPI      int
	WidthMM  float64
	HeightMM float64
	GapMM    float64
	// ReportPage controls whether Geometry reports a page size or only DPI,
	// mirroring drivers that leave the printable area unset.
	ReportPage bool
	Timeout    time.Duration
}

// TSPLPrinter sends rasters as a single BITMAP command.
type TSPLPrinter struct {
	cfg    TSPLConfig
	dialer *net.Dialer
}

// Ensure TSPLPrinter satisfies the interface
var _ domain.Printer = (*TSPLPrinter)(nil)

func NewTSPLPrinter(cfg TSPLConfig) *TSPLPrinter {
	if cfg.DPI <= 0 {
		cfg.DPI = label.DefaultDPI
	}
	if cfg.WidthMM <= 0 {
		cfg.WidthMM = label.DefaultWidthMM
	}
	if cfg.HeightMM <= 0 {
		cfg.HeightMM = label.DefaultHeightMM
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if _, _, err := net.SplitHostPort(cfg.Address); err != nil {
		cfg.Address = net.JoinHostPort(cfg.Address, defaultTCPPort)
	}
	return &TSPLPrinter{cfg: cfg, dialer: &net.Dialer{Timeout: cfg.Timeout}}
}

// Geometry reports the configured media converted to dots.
func (p *TSPLPrinter) Geometry(ctx context.Context) (domain.PageGeometry, error) {
	g := domain.PageGeometry{DPIX: p.cfg.DPI, DPIY: p.cfg.DPI}
	if p.cfg.ReportPage {
		g.Width = label.MMToPixels(p.cfg.WidthMM, p.cfg.DPI)
		g.Height = label.MMToPixels(p.cfg.HeightMM, p.cfg.DPI)
	}
	return g, nil
}

// Print opens a connection, streams the job and closes it.
func (p *TSPLPrinter) Print(ctx context.Context, img image.Image) error {
	conn, err := p.dialer.DialContext(ctx, "tcp", p.cfg.Address)
	if err != nil {
		return domain.Wrap(domain.KindDispatch, "dial printer", fmt.Errorf("%w: %v", domain.ErrPrinterUnavailable, err))
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(p.cfg.Timeout))

	w := bufio.NewWriter(conn)
	if err := WriteJob(w, img, p.cfg.WidthMM, p.cfg.HeightMM, p.cfg.GapMM); err != nil {
		return domain.Wrap(domain.KindDispatch, "write job", err)
	}
	if err := w.Flush(); err != nil {
		return domain.Wrap(domain.KindDispatch, "write job", err)
	}
	return nil
}

// WriteJob renders img as a complete TSPL2 job.
func WriteJob(w *bufio.Writer, img image.Image, widthMM, heightMM, gapMM float64) error {
	b := img.Bounds()
	widthBytes := (b.Dx() + 7) / 8

	fmt.Fprintf(w, "SIZE %.1f mm, %.1f mm\r\n", widthMM, heightMM)
	fmt.Fprintf(w, "GAP %.1f mm, 0 mm\r\n", gapMM)
	w.WriteString("DIRECTION 0\r\nCLS\r\n")
	fmt.Fprintf(w, "BITMAP 0,0,%d,%d,0,", widthBytes, b.Dy())
	if _, err := w.Write(packBitmap(img)); err != nil {
		return err
	}
	_, err := w.WriteString("\r\nPRINT 1\r\n")
	return err
}

// packBitmap packs img into rows of widthBytes, most significant bit first.
// TSPL prints a dot where the bit is 0, so white pixels set their bit.
func packBitmap(img image.Image) []byte {
	b := img.Bounds()
	widthBytes := (b.Dx() + 7) / 8
	out := make([]byte, widthBytes*b.Dy())

	for y := 0; y < b.Dy(); y++ {
		row := out[y*widthBytes : (y+1)*widthBytes]
		for x := 0; x < widthBytes*8; x++ {
			white := true
			if x < b.Dx() {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				luma := (299*r + 587*g + 114*bl) / 1000 >> 8
				white = luma >= blackLumaCeiling
			}
			if white {
				row[x/8] |= 0x80 >> (x % 8)
			}
		}
	}
	return out
}

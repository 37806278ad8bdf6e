package label

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dontdude/scanprint/internal/domain"
)

// checkerEncoder returns a 2x2 checkerboard with a black top-left module.
type checkerEncoder struct {
	calls int
}

func (e *checkerEncoder) Encode(payload string) (image.Image, error) {
	e.calls++
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.SetGray(0, 0, color.Gray{Y: 0})
	img.SetGray(1, 0, color.Gray{Y: 255})
	img.SetGray(0, 1, color.Gray{Y: 255})
	img.SetGray(1, 1, color.Gray{Y: 0})
	return img, nil
}

type failingEncoder struct{}

func (failingEncoder) Encode(string) (image.Image, error) {
	return nil, errors.New("data too long")
}

func TestCompose_ReportedGeometry(t *testing.T) {
	c := NewComposer(&checkerEncoder{}, Options{FillRatio: 0.82})

	r, err := c.Compose("ABC123", domain.PageGeometry{DPIX: 203, DPIY: 203, Width: 464, Height: 320})
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 464, 320), r.Image.Bounds())
	assert.Equal(t, 262, r.Symbol.Dx())
	assert.Equal(t, 262, r.Symbol.Dy())
	assert.Equal(t, image.Pt(101, 29), r.Symbol.Min)
}

func TestCompose_NearestNeighborKeepsModulesSharp(t *testing.T) {
	c := NewComposer(&checkerEncoder{}, Options{FillRatio: 0.82})
	r, err := c.Compose("ABC123", domain.PageGeometry{Width: 464, Height: 320})
	require.NoError(t, err)

	b := r.Image.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := r.Image.GrayAt(x, y).Y
			require.True(t, v == 0 || v == 255, "grey pixel %d at (%d,%d)", v, x, y)
		}
	}

	// 262 / 2 modules = 131 px per module
	assert.Equal(t, uint8(0), r.Image.GrayAt(101, 29).Y)
	assert.Equal(t, uint8(0), r.Image.GrayAt(101+130, 29+130).Y)
	assert.Equal(t, uint8(255), r.Image.GrayAt(101+131, 29).Y)
	assert.Equal(t, uint8(0), r.Image.GrayAt(101+261, 29+261).Y)
	// margins stay white
	assert.Equal(t, uint8(255), r.Image.GrayAt(100, 29).Y)
	assert.Equal(t, uint8(255), r.Image.GrayAt(101, 28).Y)
}

func TestCompose_FallsBackToLabelSize(t *testing.T) {
	c := NewComposer(&checkerEncoder{}, Options{WidthMM: 58, HeightMM: 40, DefaultDPI: 203, FillRatio: 0.82})

	r, err := c.Compose("ABC123", domain.PageGeometry{})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 463, 319), r.Image.Bounds())

	// reported DPI is preferred over the default
	r, err = c.Compose("ABC123", domain.PageGeometry{DPIX: 300, DPIY: 300, Width: 0, Height: 480})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 685, 472), r.Image.Bounds())
}

func TestCompose_FollowsGeometryChangesBetweenJobs(t *testing.T) {
	c := NewComposer(&checkerEncoder{}, Options{})

	first, err := c.Compose("P", domain.PageGeometry{Width: 464, Height: 320})
	require.NoError(t, err)
	second, err := c.Compose("P", domain.PageGeometry{Width: 800, Height: 1200})
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 464, 320), first.Image.Bounds())
	assert.Equal(t, image.Rect(0, 0, 800, 1200), second.Image.Bounds())
	assert.Equal(t, 656, second.Symbol.Dx())
}

func TestCompose_IsDeterministic(t *testing.T) {
	c := NewComposer(&checkerEncoder{}, Options{})
	geom := domain.PageGeometry{Width: 464, Height: 320}

	a, err := c.Compose("ABC123", geom)
	require.NoError(t, err)
	b, err := c.Compose("ABC123", geom)
	require.NoError(t, err)

	assert.Equal(t, a.Image.Bounds(), b.Image.Bounds())
	assert.Equal(t, a.Symbol, b.Symbol)
	assert.Equal(t, a.Image.Pix, b.Image.Pix)
}

func TestCompose_EncoderFailureIsCompositionError(t *testing.T) {
	c := NewComposer(failingEncoder{}, Options{})

	_, err := c.Compose("ABC123", domain.PageGeometry{Width: 464, Height: 320})
	require.Error(t, err)
	assert.Equal(t, domain.KindComposition, domain.KindOf(err))
	assert.ErrorIs(t, err, domain.ErrEncoderFailed)
}

func TestGeometryHelpers(t *testing.T) {
	assert.Equal(t, 262, SymbolEdge(464, 320, 0.82))
	assert.Equal(t, 1, SymbolEdge(1, 1, 0.1))
	assert.Equal(t, image.Pt(101, 29), Offset(464, 320, 262))
	assert.Equal(t, image.Pt(0, 0), Offset(10, 10, 20))
	assert.Equal(t, 463, MMToPixels(58, 203))
}

func TestBarcodeEncoder(t *testing.T) {
	for _, sym := range []string{SymbologyDataMatrix, SymbologyQR} {
		t.Run(sym, func(t *testing.T) {
			enc, err := NewBarcodeEncoder(sym)
			require.NoError(t, err)

			img, err := enc.Encode("0104601234567890215abcDEF")
			require.NoError(t, err)
			assert.False(t, img.Bounds().Empty())
			assert.Equal(t, img.Bounds().Dx(), img.Bounds().Dy())
		})
	}

	_, err := NewBarcodeEncoder("code128")
	assert.Error(t, err)
}

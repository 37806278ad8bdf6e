package label

import (
	"fmt"
	"image"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/datamatrix"
	"github.com/boombuler/barcode/qr"
)

// Symbologies understood by BarcodeEncoder.
const (
	SymbologyDataMatrix = "datamatrix"
	SymbologyQR         = "qr"
)

// BarcodeEncoder produces symbols at one pixel per module.
type BarcodeEncoder struct {
	symbology string
}

func NewBarcodeEncoder(symbology string) (*BarcodeEncoder, error) {
	switch symbology {
	case "", SymbologyDataMatrix:
		return &BarcodeEncoder{symbology: SymbologyDataMatrix}, nil
	case SymbologyQR:
		return &BarcodeEncoder{symbology: SymbologyQR}, nil
	default:
		return nil, fmt.Errorf("unsupported symbology: %s", symbology)
	}
}

func (e *BarcodeEncoder) Encode(payload string) (image.Image, error) {
	var (
		code barcode.Barcode
		err  error
	)
	switch e.symbology {
	case SymbologyQR:
		code, err = qr.Encode(payload, qr.M, qr.Auto)
	default:
		code, err = datamatrix.Encode(payload)
	}
	if err != nil {
		return nil, fmt.Errorf("%s encode: %w", e.symbology, err)
	}
	return code, nil
}

package render

import (
	"fmt"
	"image"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
)

const (
	barcodeHeightPx    = 40
	barcodeMaxHeightPx = 160
)

func encodeBarcode(value string) (barcode.Barcode, error) {
	bc, err := code128.Encode(value)
	if err != nil {
		return nil, fmt.Errorf("code128: %w", err)
	}
	return bc, nil
}

// barcodeImage encodes value at moduleWidth device pixels per bar module.
// The result never exceeds maxWidth; the module width shrinks to fit.
func barcodeImage(value string, moduleWidth, height, maxWidth int) (image.Image, error) {
	bc, err := encodeBarcode(value)
	if err != nil {
		return nil, err
	}
	modules := bc.Bounds().Dx()
	if moduleWidth < 1 {
		moduleWidth = 1
	}
	for moduleWidth > 1 && modules*moduleWidth > maxWidth {
		moduleWidth--
	}
	if modules*moduleWidth > maxWidth {
		return nil, fmt.Errorf("barcode %q needs %d px, only %d available", value, modules, maxWidth)
	}
	scaled, err := barcode.Scale(bc, modules*moduleWidth, height)
	if err != nil {
		return nil, fmt.Errorf("scale barcode: %w", err)
	}
	return scaled, nil
}

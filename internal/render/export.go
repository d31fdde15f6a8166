package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"regexp"
	"strings"

	"github.com/go-pdf/fpdf"
)

type Format string

const (
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat accepts "png" and "pdf" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPNG, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "image/png"
}

// Page is the physical size of an exported PDF page in millimetres.
type Page struct {
	WidthMM     float64
	HeightMM    float64
	Orientation string
}

// PageGeometry converts a raster rendered at ExportScale to millimetres at
// 96 css pixels per inch. The page is portrait only when taller than wide.
func PageGeometry(widthPx, heightPx int) Page {
	const mmPerPx = 25.4 / (96 * ExportScale)
	p := Page{
		WidthMM:     float64(widthPx) * mmPerPx,
		HeightMM:    float64(heightPx) * mmPerPx,
		Orientation: "L",
	}
	if heightPx > widthPx {
		p.Orientation = "P"
	}
	return p
}

// PDFBackend wraps a PNG raster into a one-page PDF of the given size.
type PDFBackend interface {
	WrapPNG(ctx context.Context, pngBytes []byte, page Page) ([]byte, error)
}

// LocalPDF builds the PDF in process.
type LocalPDF struct{}

func (LocalPDF) WrapPNG(_ context.Context, pngBytes []byte, page Page) ([]byte, error) {
	short, long := page.WidthMM, page.HeightMM
	if short > long {
		short, long = long, short
	}
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: page.Orientation,
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: short, Ht: long},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("receipt", opts, bytes.NewReader(pngBytes))
	pdf.ImageOptions("receipt", 0, 0, page.WidthMM, page.HeightMM, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Exporter snapshots surfaces. Nothing is returned unless the whole artifact
// was produced.
type Exporter struct {
	raster *Rasterizer
	pdf    PDFBackend
}

func NewExporter(raster *Rasterizer, pdf PDFBackend) *Exporter {
	if pdf == nil {
		pdf = LocalPDF{}
	}
	return &Exporter{raster: raster, pdf: pdf}
}

// Export rasterises s at ExportScale and returns PNG bytes, or the same
// raster wrapped in a page of its physical size.
func (e *Exporter) Export(ctx context.Context, s Surface, format Format) ([]byte, error) {
	if format != FormatPNG && format != FormatPDF {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	img, err := e.raster.Rasterize(ctx, s, ExportScale)
	if err != nil {
		return nil, fmt.Errorf("rasterize: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	if format == FormatPNG {
		return buf.Bytes(), nil
	}

	b := img.Bounds()
	out, err := e.pdf.WrapPNG(ctx, buf.Bytes(), PageGeometry(b.Dx(), b.Dy()))
	if err != nil {
		return nil, fmt.Errorf("wrap pdf: %w", err)
	}
	if len(out) == 0 {
		return nil, errors.New("wrap pdf: empty document")
	}
	return out, nil
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// ExportFileName derives a download name from the template name.
func ExportFileName(templateName string, format Format) string {
	slug := strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(templateName), "-"), "-")
	if slug == "" {
		slug = "receipt"
	}
	return slug + "." + string(format)
}

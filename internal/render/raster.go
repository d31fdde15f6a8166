package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"receiptmaker/internal/logger"
	"receiptmaker/internal/receipt"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// ErrEmptySurface is returned when a surface has nothing to draw.
var ErrEmptySurface = errors.New("surface has no content")

const (
	lineHeightRatio = 1.4
	rowGapPx        = 8
	imageGapPx      = 4
	watermarkFontPx = 64
)

var patternColor = color.RGBA{R: 0xe5, G: 0xe5, B: 0xe5, A: 0xff}

// ImageSource loads a logo referenced by a header section.
type ImageSource interface {
	Open(ctx context.Context, ref string) (image.Image, error)
}

// Rasterizer draws surfaces with the Go font family. Logos that fail to load
// are logged and skipped.
type Rasterizer struct {
	images ImageSource
	log    logrus.FieldLogger
}

func NewRasterizer(images ImageSource, log logrus.FieldLogger) *Rasterizer {
	if log == nil {
		log = logger.Get()
	}
	return &Rasterizer{images: images, log: log}
}

type placed struct {
	height int
	draw   func(dst *image.RGBA, top int) error
}

type rasterCtx struct {
	ctx     context.Context
	surface Surface
	scale   int
	fonts   *fontBook
	ink     image.Image
	left    int
	width   int
}

// Rasterize lays the blocks out top to bottom at scale device pixels per css
// pixel. The result is opaque: white paper, then the background pattern, the
// blocks and finally the watermark.
func (r *Rasterizer) Rasterize(ctx context.Context, s Surface, scale int) (*image.RGBA, error) {
	if s.Empty() {
		return nil, ErrEmptySurface
	}
	if scale < 1 {
		scale = 1
	}
	if s.Width <= 0 {
		s.Width = PaperWidth
	}

	fonts := newFontBook()
	defer fonts.Close()

	rc := &rasterCtx{
		ctx:     ctx,
		surface: s,
		scale:   scale,
		fonts:   fonts,
		ink:     image.NewUniform(color.RGBA{R: s.TextColor.R, G: s.TextColor.G, B: s.TextColor.B, A: 0xff}),
		left:    s.Padding * scale,
		width:   (s.Width - 2*s.Padding) * scale,
	}

	items := make([]placed, 0, len(s.Blocks))
	height := 2 * s.Padding * scale
	for _, b := range s.Blocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := r.layout(rc, b)
		if err != nil {
			return nil, err
		}
		if p.height == 0 {
			continue
		}
		items = append(items, p)
		height += p.height
	}
	if len(items) == 0 {
		return nil, ErrEmptySurface
	}

	dst := image.NewRGBA(image.Rect(0, 0, s.Width*scale, height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	drawPattern(dst, s.Background, s.TileSize*scale, scale)

	y := s.Padding * scale
	for _, p := range items {
		if err := p.draw(dst, y); err != nil {
			return nil, err
		}
		y += p.height
	}

	if s.Watermark != nil {
		if err := drawWatermark(rc, dst, *s.Watermark); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func (r *Rasterizer) layout(rc *rasterCtx, b Block) (placed, error) {
	switch b.Kind {
	case BlockText:
		return layoutText(rc, b)
	case BlockRow:
		return layoutRow(rc, b)
	case BlockDivider:
		if b.Text == "" {
			return placed{}, nil
		}
		b.Align = receipt.AlignCenter
		return layoutText(rc, b)
	case BlockSpacer:
		h := b.Height * rc.scale
		return placed{height: h, draw: func(*image.RGBA, int) error { return nil }}, nil
	case BlockPlaceholder:
		return layoutPlaceholder(rc, b)
	case BlockImage:
		return r.layoutImage(rc, b), nil
	case BlockBarcode:
		return r.layoutBarcode(rc, b)
	}
	return placed{}, nil
}

func (rc *rasterCtx) face(b Block) (font.Face, float64, error) {
	size := float64(BaseFontPx*rc.scale) * blockScale(b)
	f, err := rc.fonts.face(ttfFor(rc.surface.Font, b.Bold), size)
	return f, size, err
}

func lineHeight(size float64) int {
	return int(math.Ceil(size * lineHeightRatio))
}

func alignX(align receipt.Alignment, left, width, content int) int {
	switch align {
	case receipt.AlignLeft:
		return left
	case receipt.AlignRight:
		return left + width - content
	}
	x := left + (width-content)/2
	if x < left {
		return left
	}
	return x
}

func drawLine(dst *image.RGBA, face font.Face, ink image.Image, text string, x, top, lh int) {
	m := face.Metrics()
	glyphH := (m.Ascent + m.Descent).Ceil()
	baseline := top + (lh-glyphH)/2 + m.Ascent.Ceil()
	d := &font.Drawer{Dst: dst, Src: ink, Face: face, Dot: fixed.P(x, baseline)}
	d.DrawString(text)
}

func layoutText(rc *rasterCtx, b Block) (placed, error) {
	face, size, err := rc.face(b)
	if err != nil {
		return placed{}, err
	}
	lines := wrapText(face, b.Text, rc.width)
	lh := lineHeight(size)
	return placed{
		height: lh * len(lines),
		draw: func(dst *image.RGBA, top int) error {
			for i, line := range lines {
				w := font.MeasureString(face, line).Ceil()
				drawLine(dst, face, rc.ink, line, alignX(b.Align, rc.left, rc.width, w), top+i*lh, lh)
			}
			return nil
		},
	}, nil
}

func layoutRow(rc *rasterCtx, b Block) (placed, error) {
	face, size, err := rc.face(b)
	if err != nil {
		return placed{}, err
	}
	rightW := font.MeasureString(face, b.Right).Ceil()
	leftW := rc.width - rightW - rowGapPx*rc.scale
	if leftW < rc.width/3 {
		leftW = rc.width / 3
	}
	lines := wrapText(face, b.Text, leftW)
	lh := lineHeight(size)
	return placed{
		height: lh * len(lines),
		draw: func(dst *image.RGBA, top int) error {
			for i, line := range lines {
				drawLine(dst, face, rc.ink, line, rc.left, top+i*lh, lh)
			}
			drawLine(dst, face, rc.ink, b.Right, rc.left+rc.width-rightW, top, lh)
			return nil
		},
	}, nil
}

func layoutPlaceholder(rc *rasterCtx, b Block) (placed, error) {
	side := b.Size * rc.scale
	if side > rc.width {
		side = rc.width
	}
	small := Block{Scale: 0.8}
	face, size, err := rc.face(small)
	if err != nil {
		return placed{}, err
	}
	border := image.NewUniform(color.RGBA{R: 0xb0, G: 0xb0, B: 0xb0, A: 0xff})
	return placed{
		height: side + imageGapPx*rc.scale,
		draw: func(dst *image.RGBA, top int) error {
			x := alignX(b.Align, rc.left, rc.width, side)
			rect := image.Rect(x, top, x+side, top+side)
			strokeRect(dst, rect, rc.scale, border)
			w := font.MeasureString(face, b.Text).Ceil()
			lh := lineHeight(size)
			drawLine(dst, face, border, b.Text, x+(side-w)/2, top+(side-lh)/2, lh)
			return nil
		},
	}, nil
}

func strokeRect(dst *image.RGBA, r image.Rectangle, thickness int, src image.Image) {
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness), src, image.Point{}, draw.Over)
	draw.Draw(dst, image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y), src, image.Point{}, draw.Over)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y), src, image.Point{}, draw.Over)
	draw.Draw(dst, image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y), src, image.Point{}, draw.Over)
}

func (r *Rasterizer) layoutImage(rc *rasterCtx, b Block) placed {
	if r.images == nil {
		r.warn(b, "logo skipped", errors.New("no image source configured"))
		return placed{}
	}
	img, err := r.images.Open(rc.ctx, b.Source)
	if err != nil {
		r.warn(b, "logo skipped", err)
		return placed{}
	}
	side := b.Size * rc.scale
	if side > rc.width {
		side = rc.width
	}
	fitted := imaging.Fit(img, side, side, imaging.Lanczos)
	fw, fh := fitted.Bounds().Dx(), fitted.Bounds().Dy()
	return placed{
		height: fh + imageGapPx*rc.scale,
		draw: func(dst *image.RGBA, top int) error {
			x := alignX(b.Align, rc.left, rc.width, fw)
			draw.Draw(dst, image.Rect(x, top, x+fw, top+fh), fitted, fitted.Bounds().Min, draw.Over)
			return nil
		},
	}
}

func (r *Rasterizer) layoutBarcode(rc *rasterCtx, b Block) (placed, error) {
	img, err := barcodeImage(b.Text, int(math.Round(b.Scale*float64(rc.scale))), barcodeHeight(b.Scale)*rc.scale, rc.width)
	if err != nil {
		r.warn(b, "barcode skipped", err)
		return placed{}, nil
	}
	caption, err := layoutText(rc, Block{Kind: BlockText, Align: receipt.AlignCenter, Text: b.Text, Scale: 0.9})
	if err != nil {
		return placed{}, err
	}
	bw, bh := img.Bounds().Dx(), img.Bounds().Dy()
	return placed{
		height: bh + caption.height,
		draw: func(dst *image.RGBA, top int) error {
			x := alignX(receipt.AlignCenter, rc.left, rc.width, bw)
			draw.Draw(dst, image.Rect(x, top, x+bw, top+bh), img, img.Bounds().Min, draw.Src)
			return caption.draw(dst, top+bh)
		},
	}, nil
}

func (r *Rasterizer) warn(b Block, msg string, err error) {
	r.log.WithFields(logrus.Fields{
		"module":    "render",
		"funcName":  "Rasterizer.layout",
		"sectionId": b.SectionID,
		"kind":      b.Kind,
	}).Warn(fmt.Sprintf("%s: %v", msg, err))
}

// wrapText breaks text on newlines, then greedily on spaces so each line fits
// maxWidth pixels. Words wider than a line are split by rune.
func wrapText(face font.Face, text string, maxWidth int) []string {
	limit := fixed.I(maxWidth)
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := ""
		for _, w := range words {
			candidate := w
			if line != "" {
				candidate = line + " " + w
			}
			if font.MeasureString(face, candidate) <= limit {
				line = candidate
				continue
			}
			if line != "" {
				out = append(out, line)
			}
			for font.MeasureString(face, w) > limit {
				cut := fitRunes(face, w, limit)
				out = append(out, w[:cut])
				w = w[cut:]
			}
			line = w
		}
		out = append(out, line)
	}
	return out
}

// fitRunes returns the byte length of the longest prefix of s that fits, at
// least one rune.
func fitRunes(face font.Face, s string, limit fixed.Int26_6) int {
	end := 0
	for i, ru := range s {
		next := i + len(string(ru))
		if end > 0 && font.MeasureString(face, s[:next]) > limit {
			break
		}
		end = next
	}
	return end
}

func drawPattern(dst *image.RGBA, bg receipt.Background, tile, thickness int) {
	if tile <= 0 || bg == receipt.BackgroundNone {
		return
	}
	b := dst.Bounds()
	half := tile / 2
	radius := thickness * thickness
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var on bool
			switch bg {
			case receipt.BackgroundDots:
				dx, dy := x%tile-half, y%tile-half
				on = dx*dx+dy*dy <= radius
			case receipt.BackgroundGrid:
				on = x%tile < thickness || y%tile < thickness
			case receipt.BackgroundLines:
				on = y%tile < thickness
			case receipt.BackgroundDiagonal:
				on = (x+y)%tile < thickness
			case receipt.BackgroundCrosshatch:
				on = (x+y)%tile < thickness || ((x-y)%tile+tile)%tile < thickness
			}
			if on {
				dst.SetRGBA(x, y, patternColor)
			}
		}
	}
}

func drawWatermark(rc *rasterCtx, dst *image.RGBA, wm Watermark) error {
	size := float64(watermarkFontPx * rc.scale)
	face, err := rc.fonts.face(ttfFor(rc.surface.Font, true), size)
	if err != nil {
		return err
	}
	w := font.MeasureString(face, wm.Text).Ceil()
	lh := lineHeight(size)
	label := image.NewRGBA(image.Rect(0, 0, w, lh))
	drawLine(label, face, rc.ink, wm.Text, 0, 0, lh)

	// imaging rotates counter-clockwise for positive angles.
	rotated := imaging.Rotate(label, -wm.Angle, color.Transparent)
	rb := rotated.Bounds()
	db := dst.Bounds()
	at := image.Pt((db.Dx()-rb.Dx())/2, (db.Dy()-rb.Dy())/2)
	mask := image.NewUniform(color.Alpha{A: uint8(math.Round(wm.Opacity * 255))})
	draw.DrawMask(dst, rb.Sub(rb.Min).Add(at), rotated, rb.Min, mask, image.Point{}, draw.Over)
	return nil
}

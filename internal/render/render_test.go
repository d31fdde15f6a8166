package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"reflect"
	"strings"
	"testing"

	"receiptmaker/internal/receipt"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		amount float64
		symbol string
		mode   receipt.CurrencyFormat
		want   string
	}{
		{2.5, "$", receipt.SymbolBefore, "$2.50"},
		{2.5, "$", receipt.SymbolAfter, "2.50$"},
		{2.5, "$", receipt.SymbolAfterSpace, "2.50 $"},
		{-3, "€", receipt.SymbolBefore, "-€3.00"},
		{-3, "€", receipt.SymbolAfter, "-3.00€"},
		{-3, "€", receipt.SymbolAfterSpace, "-3.00 €"},
		{1234567.891, "£", receipt.SymbolBefore, "£1,234,567.89"},
		{999.995, "¥", receipt.SymbolBefore, "¥1,000.00"},
		{0.005, "₹", receipt.SymbolBefore, "₹0.01"},
		{-0.001, "$", receipt.SymbolBefore, "$0.00"},
		{0, "$", "unknown-mode", "$0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatCurrency(tt.amount, tt.symbol, tt.mode); got != tt.want {
				t.Errorf("FormatCurrency(%v, %q, %q) = %q, want %q", tt.amount, tt.symbol, tt.mode, got, tt.want)
			}
		})
	}
}

func TestRenderDivider(t *testing.T) {
	styles := []receipt.DividerStyle{
		receipt.DividerNone, receipt.DividerSolid, receipt.DividerDashed, receipt.DividerDotted,
		receipt.DividerDouble, receipt.DividerStars, receipt.DividerBlank, "zigzag",
	}
	for _, s := range styles {
		if b := RenderDivider(s, false); b != nil {
			t.Errorf("RenderDivider(%q, false) = %+v, want nil", s, b)
		}
	}

	blank := RenderDivider(receipt.DividerBlank, true)
	if blank == nil || blank.Kind != BlockSpacer || blank.Text != "" || blank.Height <= 0 {
		t.Errorf("blank divider = %+v", blank)
	}

	for _, s := range []receipt.DividerStyle{receipt.DividerNone, "zigzag"} {
		b := RenderDivider(s, true)
		if b == nil || b.Text != "" {
			t.Errorf("RenderDivider(%q, true) = %+v, want empty text", s, b)
		}
	}

	stars := RenderDivider(receipt.DividerStars, true)
	if stars.Text != strings.Repeat("*", 32) {
		t.Errorf("stars = %q", stars.Text)
	}
	if got := len([]rune(DividerLine(receipt.DividerDashed))); got != 32 {
		t.Errorf("dashed glyphs = %d, want 32", got)
	}
}

func sampleDocument() receipt.Document {
	afterTotal := true
	return receipt.Document{
		Settings: receipt.DefaultSettings(),
		Sections: receipt.Sections{
			&receipt.HeaderSection{
				Base:            receipt.Base{ID: "header-1", DividerStyle: receipt.DividerDashed, DividerAtBottom: true},
				Alignment:       receipt.AlignCenter,
				LogoSize:        40,
				BusinessDetails: "Corner Cafe\n1 Main St",
			},
			&receipt.ItemsListSection{
				Base: receipt.Base{ID: "items-1", DividerStyle: receipt.DividerSolid},
				Items: []receipt.Item{
					{Quantity: 2, Item: "Latte", Price: 7},
					{Quantity: 1, Item: "Bagel", Price: 2.5},
				},
				TotalLines:        []receipt.TotalLine{{Title: "Tax", Value: 0.95}},
				Total:             receipt.Total{Title: "TOTAL", Price: 10.45},
				DividerAfterItems: true,
				DividerAfterTotal: &afterTotal,
			},
			&receipt.PaymentSection{
				Base:        receipt.Base{ID: "payment-1"},
				PaymentType: receipt.PaymentCard,
				CashFields:  []receipt.Field{{Title: "Cash", Value: "20.00"}},
				CardFields:  []receipt.Field{{Title: "Card", Value: "VISA"}, {Title: "Auth", Value: "123456"}},
			},
			&receipt.DateTimeSection{Base: receipt.Base{ID: "date-1"}, Alignment: receipt.AlignLeft, Date: "2024-01-01 10:00"},
			&receipt.BarcodeSection{Base: receipt.Base{ID: "barcode-1"}, Value: "INV-0001", Size: 1},
		},
	}
}

func quietComposer() *Composer {
	log, _ := test.NewNullLogger()
	return NewComposer(log)
}

func TestComposeDeterministic(t *testing.T) {
	c := quietComposer()
	doc := sampleDocument()

	a, err := json.Marshal(c.Compose(doc))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, _ := json.Marshal(c.Compose(doc))
	if !bytes.Equal(a, b) {
		t.Fatalf("compose is not deterministic:\n%s\n%s", a, b)
	}

	tree := c.Compose(doc)
	plain := Present(tree, doc.Settings, false)
	marked := Present(tree, doc.Settings, true)
	if plain.Watermark != nil || marked.Watermark == nil {
		t.Fatalf("watermark flags: plain=%v marked=%v", plain.Watermark, marked.Watermark)
	}
	if marked.Watermark.Text != "SAMPLE" || marked.Watermark.Angle != -45 || marked.Watermark.Opacity != 0.15 {
		t.Errorf("watermark = %+v", marked.Watermark)
	}
	marked.Watermark = nil
	if !reflect.DeepEqual(plain, marked) {
		t.Errorf("surfaces differ beyond the watermark")
	}
}

func TestComposeItemsListDividerPositions(t *testing.T) {
	off := false
	doc := receipt.Document{
		Settings: receipt.DefaultSettings(),
		Sections: receipt.Sections{&receipt.ItemsListSection{
			Base:                   receipt.Base{ID: "items", DividerStyle: receipt.DividerDashed, DividerAtBottom: true},
			Items:                  []receipt.Item{{Quantity: 1, Item: "A", Price: 1}, {Quantity: 3, Item: "B", Price: 2}},
			TotalLines:             []receipt.TotalLine{{Title: "Subtotal", Value: 7}},
			Total:                  receipt.Total{Title: "TOTAL", Price: 99},
			DividerAfterItems:      true,
			DividerAfterItemsStyle: receipt.DividerStars,
			DividerAfterTotal:      &off,
		}},
	}
	blocks := quietComposer().Compose(doc).Blocks

	var dividers []int
	for i, b := range blocks {
		if b.Kind == BlockDivider || b.Kind == BlockSpacer {
			dividers = append(dividers, i)
		}
	}
	if len(dividers) != 1 {
		t.Fatalf("got %d dividers, want 1: %+v", len(dividers), blocks)
	}
	d := dividers[0]
	if d != 2 {
		t.Errorf("divider at %d, want 2 (after the two item rows)", d)
	}
	if blocks[d].Text != strings.Repeat("*", 32) {
		t.Errorf("divider text = %q", blocks[d].Text)
	}
	if blocks[d+1].Text != "Subtotal" {
		t.Errorf("block after divider = %+v", blocks[d+1])
	}

	last := blocks[len(blocks)-1]
	if last.Text != "TOTAL" || last.Right != "$99.00" || !last.Bold {
		t.Errorf("total row = %+v, want untouched caller total", last)
	}
}

func TestComposeItemsListAfterTotalFallback(t *testing.T) {
	doc := receipt.Document{
		Settings: receipt.DefaultSettings(),
		Sections: receipt.Sections{&receipt.ItemsListSection{
			Base:  receipt.Base{ID: "items", DividerStyle: receipt.DividerDouble, DividerAtBottom: true},
			Total: receipt.Total{Title: "TOTAL", Price: 1},
		}},
	}
	blocks := quietComposer().Compose(doc).Blocks
	last := blocks[len(blocks)-1]
	if last.Kind != BlockDivider || last.Style != receipt.DividerDouble {
		t.Errorf("closing divider = %+v, want double", last)
	}
	if n := len(blocks); n != 2 {
		t.Errorf("got %d blocks, want total row and one divider", n)
	}
}

func TestComposePaymentUsesActiveList(t *testing.T) {
	doc := receipt.Document{
		Settings: receipt.DefaultSettings(),
		Sections: receipt.Sections{&receipt.PaymentSection{
			Base:        receipt.Base{ID: "pay"},
			PaymentType: receipt.PaymentCash,
			CashFields:  []receipt.Field{{Title: "Cash", Value: "10"}, {Title: "Change", Value: "2"}},
			CardFields:  []receipt.Field{{Title: "Card", Value: "VISA"}},
		}},
	}
	blocks := quietComposer().Compose(doc).Blocks
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if blocks[0].Bold || !blocks[1].Bold {
		t.Errorf("only the last field is bold: %+v", blocks)
	}
	if blocks[1].Text != "Change" {
		t.Errorf("last row = %+v", blocks[1])
	}
}

func TestComposeBarcodeFailsSoft(t *testing.T) {
	for _, value := range []string{"", "naïve€"} {
		t.Run(fmt.Sprintf("%q", value), func(t *testing.T) {
			log, hook := test.NewNullLogger()
			c := NewComposer(log)

			good := sampleDocument()
			bad := sampleDocument()
			bad.Sections[4].(*receipt.BarcodeSection).Value = value

			want := c.Compose(good).Blocks
			got := c.Compose(bad).Blocks

			var withoutBarcode []Block
			for _, b := range want {
				if b.Kind != BlockBarcode {
					withoutBarcode = append(withoutBarcode, b)
				}
			}
			if !reflect.DeepEqual(got, withoutBarcode) {
				t.Errorf("bad barcode changed other blocks:\n got %+v\nwant %+v", got, withoutBarcode)
			}

			entry := hook.LastEntry()
			if entry == nil || entry.Level != logrus.WarnLevel {
				t.Fatalf("expected a warning, got %+v", entry)
			}
			if entry.Data["sectionId"] != "barcode-1" {
				t.Errorf("warning fields = %v", entry.Data)
			}
		})
	}
}

func TestComposeUnknownSectionRendersNothing(t *testing.T) {
	doc := receipt.Document{
		Settings: receipt.DefaultSettings(),
		Sections: receipt.Sections{
			&receipt.UnknownSection{Base: receipt.Base{ID: "x", DividerAtBottom: true}, Type: "coupon"},
			&receipt.CustomMessageSection{Base: receipt.Base{ID: "m"}, Message: "hi"},
		},
	}
	blocks := quietComposer().Compose(doc).Blocks
	if len(blocks) != 1 || blocks[0].SectionID != "m" {
		t.Errorf("blocks = %+v", blocks)
	}
}

func TestComposeHeaderPlaceholder(t *testing.T) {
	blocks := quietComposer().Compose(sampleDocument()).Blocks
	if blocks[0].Kind != BlockPlaceholder || blocks[0].Size != 40 {
		t.Errorf("first block = %+v, want 40px placeholder", blocks[0])
	}
}

func TestPresentFallbacks(t *testing.T) {
	settings := receipt.DefaultSettings()
	settings.Font = "comic"
	settings.Background = receipt.BackgroundGrid
	s := Present(RenderTree{}, settings, false)
	if s.Font != receipt.FontMonospace {
		t.Errorf("font = %q, want monospace", s.Font)
	}
	if s.Width != 320 || s.TileSize != 16 {
		t.Errorf("surface = %+v", s)
	}
	if !s.Empty() {
		t.Error("surface without blocks should be empty")
	}
}

func TestPageGeometry(t *testing.T) {
	p := PageGeometry(640, 1000)
	if p.Orientation != "P" {
		t.Errorf("orientation = %s, want P", p.Orientation)
	}
	if d := p.WidthMM - 84.6666; d < 0 || d > 0.001 {
		t.Errorf("width = %f mm", p.WidthMM)
	}
	if d := p.HeightMM - 132.2916; d < 0 || d > 0.001 {
		t.Errorf("height = %f mm", p.HeightMM)
	}
	if PageGeometry(640, 640).Orientation != "L" || PageGeometry(640, 300).Orientation != "L" {
		t.Error("square and wide rasters must be landscape")
	}
}

type failingImages struct{}

func (failingImages) Open(context.Context, string) (image.Image, error) {
	return nil, errors.New("not found")
}

func newTestExporter(t *testing.T) (*Exporter, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	return NewExporter(NewRasterizer(failingImages{}, log), LocalPDF{}), hook
}

func presentSample(watermark bool) Surface {
	doc := sampleDocument()
	return Present(quietComposer().Compose(doc), doc.Settings, watermark)
}

func TestExportPNG(t *testing.T) {
	exp, _ := newTestExporter(t)
	out, err := exp.Export(context.Background(), presentSample(false), FormatPNG)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w := img.Bounds().Dx(); w != 640 {
		t.Errorf("width = %d, want 640", w)
	}
	r, g, b, a := img.At(0, 0).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff || a != 0xffff {
		t.Errorf("corner pixel = %v, want opaque white", img.At(0, 0))
	}
}

func TestExportWatermarkOnlyAddsOverlay(t *testing.T) {
	exp, _ := newTestExporter(t)
	plain, err := exp.raster.Rasterize(context.Background(), presentSample(false), ExportScale)
	if err != nil {
		t.Fatalf("plain: %v", err)
	}
	marked, err := exp.raster.Rasterize(context.Background(), presentSample(true), ExportScale)
	if err != nil {
		t.Fatalf("marked: %v", err)
	}
	if plain.Bounds() != marked.Bounds() {
		t.Fatalf("watermark changed layout: %v vs %v", plain.Bounds(), marked.Bounds())
	}
	if bytes.Equal(plain.Pix, marked.Pix) {
		t.Error("watermark not drawn")
	}
}

func TestExportPDFPageMatchesRaster(t *testing.T) {
	exp, _ := newTestExporter(t)
	s := presentSample(false)

	pngBytes, err := exp.Export(context.Background(), s, FormatPNG)
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(pngBytes))
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}

	pdf, err := exp.Export(context.Background(), s, FormatPDF)
	if err != nil {
		t.Fatalf("pdf: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Fatalf("not a pdf: %q", pdf[:8])
	}
	page := PageGeometry(cfg.Width, cfg.Height)
	k := 72.0 / 25.4
	want := fmt.Sprintf("/MediaBox [0 0 %.2f %.2f]", page.WidthMM*k, page.HeightMM*k)
	if !bytes.Contains(pdf, []byte(want)) {
		t.Errorf("pdf does not contain %q", want)
	}
}

func TestExportEmptySurfaceFails(t *testing.T) {
	exp, _ := newTestExporter(t)
	empty := Present(RenderTree{}, receipt.DefaultSettings(), true)
	for _, f := range []Format{FormatPNG, FormatPDF} {
		out, err := exp.Export(context.Background(), empty, f)
		if !errors.Is(err, ErrEmptySurface) {
			t.Errorf("%s: err = %v, want ErrEmptySurface", f, err)
		}
		if out != nil {
			t.Errorf("%s: returned %d bytes on failure", f, len(out))
		}
	}
}

func TestRasterizeLogoFailureIsSoft(t *testing.T) {
	exp, hook := newTestExporter(t)
	s := Surface{
		Width:   PaperWidth,
		Padding: PaperPadding,
		Font:    receipt.FontMonospace,
		Blocks: []Block{
			{Kind: BlockImage, SectionID: "header-1", Source: "logos/missing.png", Size: 60, Align: receipt.AlignCenter},
			{Kind: BlockText, SectionID: "m", Text: "still here", Scale: 1, Align: receipt.AlignCenter},
		},
	}
	img, err := exp.raster.Rasterize(context.Background(), s, 1)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if img.Bounds().Dy() >= 2*PaperPadding+60 {
		t.Errorf("failed logo still took space: height %d", img.Bounds().Dy())
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel || entry.Data["sectionId"] != "header-1" {
		t.Errorf("expected logo warning, got %+v", entry)
	}
}

func TestDrawPatternLeavesPaddingWhite(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 32, 32))
	drawPattern(dst, receipt.BackgroundLines, 8, 1)
	if got := dst.RGBAAt(3, 0); got != patternColor {
		t.Errorf("line row pixel = %v", got)
	}
	if got := dst.RGBAAt(3, 4); got != (color.RGBA{}) {
		t.Errorf("gap pixel = %v, want untouched", got)
	}
}

func TestExportFileName(t *testing.T) {
	tests := map[string]string{
		"Corner Café Receipt": "corner-caf-receipt.png",
		"  ":                  "receipt.png",
		"Grocery #42":         "grocery-42.png",
	}
	for in, want := range tests {
		if got := ExportFileName(in, FormatPNG); got != want {
			t.Errorf("ExportFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSurfaceHTML(t *testing.T) {
	html, err := presentSample(true).HTML()
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	for _, want := range []string{"width: 320px", "SAMPLE", "Corner Cafe", "data:image/png;base64,", "$10.45"} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q", want)
		}
	}
}

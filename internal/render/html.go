package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"image/png"
	"strings"

	"receiptmaker/internal/receipt"
)

const surfaceHTMLTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Receipt</title>
  <style>
    * { box-sizing: border-box; }
    body { margin: 0; background: #f3f4f6; }
    .paper {
      position: relative;
      overflow: hidden;
      width: {{.Width}}px;
      padding: {{.Padding}}px;
      margin: 0 auto;
      font-family: {{.FontFamily}};
      font-size: {{.FontSize}}px;
      line-height: 1.4;
      color: {{.Color}};
      background-color: #ffffff;
      {{.Pattern}}
    }
    .block { white-space: pre-wrap; word-break: break-word; }
    .row { display: flex; justify-content: space-between; gap: 8px; }
    .bold { font-weight: 700; }
    .divider { white-space: pre; overflow: hidden; text-align: center; }
    .placeholder {
      display: inline-flex; align-items: center; justify-content: center;
      border: 1px dashed currentColor; opacity: 0.5; font-size: 10px;
    }
    .watermark {
      position: absolute; inset: 0;
      display: flex; align-items: center; justify-content: center;
      pointer-events: none; user-select: none;
      font-size: 64px; font-weight: 700; letter-spacing: 0.1em;
    }
    .watermark span { transform: rotate({{.WatermarkAngle}}deg); opacity: {{.WatermarkOpacity}}; }
  </style>
</head>
<body>
  <div class="paper">
    {{range .Blocks}}
    {{if eq .Kind "text"}}<div class="block{{if .Bold}} bold{{end}}" style="text-align: {{.Align}}; font-size: {{.FontSize}}px">{{.Text}}</div>
    {{else if eq .Kind "row"}}<div class="row{{if .Bold}} bold{{end}}" style="font-size: {{.FontSize}}px"><span>{{.Text}}</span><span>{{.Right}}</span></div>
    {{else if eq .Kind "divider"}}<div class="divider">{{.Text}}</div>
    {{else if eq .Kind "spacer"}}<div style="height: {{.Height}}px"></div>
    {{else if eq .Kind "image"}}<div style="text-align: {{.Align}}"><img src="{{.Source}}" alt="logo" style="max-width: {{.Size}}px; max-height: {{.Size}}px" /></div>
    {{else if eq .Kind "placeholder"}}<div style="text-align: {{.Align}}"><span class="placeholder" style="width: {{.Size}}px; height: {{.Size}}px">{{.Text}}</span></div>
    {{else if eq .Kind "barcode"}}<div style="text-align: center"><img src="{{.Source}}" alt="{{.Text}}" /><div>{{.Text}}</div></div>
    {{end}}
    {{end}}
    {{if .Watermark}}<div class="watermark"><span>{{.Watermark}}</span></div>{{end}}
  </div>
</body>
</html>
`

var surfaceTemplate = template.Must(template.New("surface").Parse(surfaceHTMLTemplate))

var patternCSS = map[receipt.Background]string{
	receipt.BackgroundDots:       "background-image: radial-gradient(#d4d4d4 1px, transparent 1px);",
	receipt.BackgroundGrid:       "background-image: linear-gradient(#e5e5e5 1px, transparent 1px), linear-gradient(90deg, #e5e5e5 1px, transparent 1px);",
	receipt.BackgroundLines:      "background-image: linear-gradient(#e5e5e5 1px, transparent 1px);",
	receipt.BackgroundDiagonal:   "background-image: repeating-linear-gradient(45deg, #e5e5e5 0 1px, transparent 1px 100%);",
	receipt.BackgroundCrosshatch: "background-image: repeating-linear-gradient(45deg, #e5e5e5 0 1px, transparent 1px 100%), repeating-linear-gradient(-45deg, #e5e5e5 0 1px, transparent 1px 100%);",
}

type htmlBlock struct {
	Block
	Source   template.URL
	FontSize string
}

type htmlPage struct {
	Width            int
	Padding          int
	FontFamily       template.CSS
	FontSize         int
	Color            template.CSS
	Pattern          template.CSS
	Blocks           []htmlBlock
	Watermark        string
	WatermarkAngle   string
	WatermarkOpacity string
}

// HTML renders the surface as a standalone page. Image sources are used as
// given; barcodes are embedded as PNG data URLs and invalid ones are left out.
func (s Surface) HTML() (string, error) {
	page := htmlPage{
		Width:      s.Width,
		Padding:    s.Padding,
		FontFamily: template.CSS(s.FontFamily),
		FontSize:   BaseFontPx,
		Color:      template.CSS(s.TextColor.Hex()),
	}
	if css, ok := patternCSS[s.Background]; ok {
		page.Pattern = template.CSS(fmt.Sprintf("%s background-size: %dpx %dpx;", css, s.TileSize, s.TileSize))
	}
	if s.Watermark != nil {
		page.Watermark = s.Watermark.Text
		page.WatermarkAngle = trimFloat(s.Watermark.Angle)
		page.WatermarkOpacity = trimFloat(s.Watermark.Opacity)
	}

	for _, b := range s.Blocks {
		hb := htmlBlock{Block: b, Source: template.URL(b.Source), FontSize: trimFloat(float64(BaseFontPx) * blockScale(b))}
		if b.Kind == BlockBarcode {
			uri, err := barcodeDataURL(b)
			if err != nil {
				continue
			}
			hb.Source = template.URL(uri)
		}
		page.Blocks = append(page.Blocks, hb)
	}

	var buf bytes.Buffer
	if err := surfaceTemplate.Execute(&buf, page); err != nil {
		return "", fmt.Errorf("render surface html: %w", err)
	}
	return buf.String(), nil
}

func barcodeDataURL(b Block) (string, error) {
	img, err := barcodeImage(b.Text, int(b.Scale+0.5), barcodeHeight(b.Scale), PaperWidth-2*PaperPadding)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func barcodeHeight(scale float64) int {
	h := int(barcodeHeightPx * scale)
	if h > barcodeMaxHeightPx {
		h = barcodeMaxHeightPx
	}
	if h < 1 {
		h = 1
	}
	return h
}

func blockScale(b Block) float64 {
	if b.Scale <= 0 || b.Kind == BlockBarcode {
		return 1
	}
	return b.Scale
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

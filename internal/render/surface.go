package render

import (
	"slices"

	"receiptmaker/internal/receipt"
)

const (
	PaperWidth   = 320
	PaperPadding = 16
	BaseFontPx   = 12
	ExportScale  = 2

	WatermarkText    = "SAMPLE"
	WatermarkAngle   = -45.0
	WatermarkOpacity = 0.15
)

var patternTiles = map[receipt.Background]int{
	receipt.BackgroundDots:       12,
	receipt.BackgroundGrid:       16,
	receipt.BackgroundLines:      8,
	receipt.BackgroundDiagonal:   10,
	receipt.BackgroundCrosshatch: 12,
}

var fontFamilies = map[receipt.Font]string{
	receipt.FontHandwritten: `"Caveat", "Segoe Script", "Comic Sans MS", cursive`,
	receipt.FontCourier:     `"Courier New", Courier, monospace`,
	receipt.FontMonospace:   `ui-monospace, Menlo, Consolas, monospace`,
}

// Watermark is an overlay drawn above all blocks. It takes no space in the
// block flow.
type Watermark struct {
	Text    string  `json:"text"`
	Angle   float64 `json:"angle"`
	Opacity float64 `json:"opacity"`
}

// Surface is a RenderTree placed on receipt paper, ready to be shown or
// rasterised.
type Surface struct {
	Width      int                `json:"width"`
	Padding    int                `json:"padding"`
	Font       receipt.Font       `json:"font"`
	FontFamily string             `json:"fontFamily"`
	TextColor  receipt.Color      `json:"textColor"`
	Background receipt.Background `json:"background"`
	TileSize   int                `json:"tileSize,omitempty"`
	Blocks     []Block            `json:"blocks"`
	Watermark  *Watermark         `json:"watermark,omitempty"`
}

// Present applies the settings to tree. An unknown font falls back to
// monospace and an unknown background to plain white.
func Present(tree RenderTree, settings receipt.TemplateSettings, showWatermark bool) Surface {
	settings = settings.WithDefaults()

	font := settings.Font
	if _, ok := fontFamilies[font]; !ok {
		font = receipt.FontMonospace
	}
	bg := settings.Background
	tile, ok := patternTiles[bg]
	if !ok {
		bg = receipt.BackgroundNone
		tile = 0
	}

	s := Surface{
		Width:      PaperWidth,
		Padding:    PaperPadding,
		Font:       font,
		FontFamily: fontFamilies[font],
		TextColor:  settings.TextColor,
		Background: bg,
		TileSize:   tile,
		Blocks:     slices.Clone(tree.Blocks),
	}
	if s.Blocks == nil {
		s.Blocks = []Block{}
	}
	if showWatermark {
		s.Watermark = &Watermark{Text: WatermarkText, Angle: WatermarkAngle, Opacity: WatermarkOpacity}
	}
	return s
}

// Empty reports whether the surface has nothing to draw.
func (s Surface) Empty() bool {
	for _, b := range s.Blocks {
		switch b.Kind {
		case BlockSpacer:
			continue
		case BlockDivider:
			if b.Text == "" {
				continue
			}
		}
		return false
	}
	return true
}

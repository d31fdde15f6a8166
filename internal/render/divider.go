package render

import (
	"strings"

	"receiptmaker/internal/receipt"
)

const (
	dividerGlyphs = 32
	blankSpacerPx = 16
)

var dividerUnits = map[receipt.DividerStyle]string{
	receipt.DividerSolid:  "─",
	receipt.DividerDashed: "- ",
	receipt.DividerDotted: "·",
	receipt.DividerDouble: "═",
	receipt.DividerStars:  "*",
}

// DividerLine returns the glyph line for style, or "" when the style draws
// nothing.
func DividerLine(style receipt.DividerStyle) string {
	unit, ok := dividerUnits[style]
	if !ok {
		return ""
	}
	return strings.Repeat(unit, dividerGlyphs/len([]rune(unit)))
}

// RenderDivider returns nil when show is false. blank yields a spacer with no
// glyphs; none and unknown styles yield a divider block with empty text.
func RenderDivider(style receipt.DividerStyle, show bool) *Block {
	if !show {
		return nil
	}
	if style == receipt.DividerBlank {
		return &Block{Kind: BlockSpacer, Style: style, Height: blankSpacerPx}
	}
	return &Block{Kind: BlockDivider, Style: style, Align: receipt.AlignCenter, Text: DividerLine(style)}
}

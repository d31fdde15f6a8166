// Package render turns a receipt Document into a RenderTree, presents the tree
// on a fixed-width paper Surface and exports that surface as PNG or PDF.
package render

import "receiptmaker/internal/receipt"

type BlockKind string

const (
	BlockText        BlockKind = "text"
	BlockRow         BlockKind = "row"
	BlockImage       BlockKind = "image"
	BlockPlaceholder BlockKind = "placeholder"
	BlockDivider     BlockKind = "divider"
	BlockSpacer      BlockKind = "spacer"
	BlockBarcode     BlockKind = "barcode"
)

// Block is one visual element of the receipt, in paper css pixels.
//
// Text blocks use Text; rows put Text on the left and Right on the right.
// Image and placeholder blocks are Size pixels square. Barcode blocks carry
// the payload in Text and the module scale in Scale. Spacer blocks consume
// Height pixels and draw nothing.
type Block struct {
	Kind      BlockKind            `json:"kind"`
	SectionID string               `json:"sectionId"`
	Align     receipt.Alignment    `json:"align,omitempty"`
	Text      string               `json:"text,omitempty"`
	Right     string               `json:"right,omitempty"`
	Bold      bool                 `json:"bold,omitempty"`
	Scale     float64              `json:"scale,omitempty"`
	Style     receipt.DividerStyle `json:"style,omitempty"`
	Source    string               `json:"source,omitempty"`
	Size      int                  `json:"size,omitempty"`
	Height    int                  `json:"height,omitempty"`
}

// RenderTree is the ordered block list produced by the Composer.
type RenderTree struct {
	Blocks []Block `json:"blocks"`
}

// Sections returns the ids of the sections that produced at least one block,
// in order of first appearance.
func (t RenderTree) Sections() []string {
	var ids []string
	seen := map[string]bool{}
	for _, b := range t.Blocks {
		if !seen[b.SectionID] {
			seen[b.SectionID] = true
			ids = append(ids, b.SectionID)
		}
	}
	return ids
}

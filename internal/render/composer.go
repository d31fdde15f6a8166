package render

import (
	"strconv"
	"strings"

	"receiptmaker/internal/logger"
	"receiptmaker/internal/receipt"

	"github.com/sirupsen/logrus"
)

const (
	totalScale      = 1.25
	placeholderText = "LOGO"
)

// Composer lays a Document out as a RenderTree. It does no I/O besides
// logging soft failures and never recomputes totals.
type Composer struct {
	log logrus.FieldLogger
}

func NewComposer(log logrus.FieldLogger) *Composer {
	if log == nil {
		log = logger.Get()
	}
	return &Composer{log: log}
}

// Compose walks the sections in order. Each section's blocks are followed by
// its divider; items_list places its own dividers. Unknown section types
// produce nothing.
func (c *Composer) Compose(doc receipt.Document) RenderTree {
	settings := doc.Settings.WithDefaults()
	tree := RenderTree{Blocks: []Block{}}

	for _, s := range doc.Sections {
		if s == nil {
			continue
		}
		var blocks []Block
		switch v := s.(type) {
		case *receipt.HeaderSection:
			blocks = c.header(v)
		case *receipt.CustomMessageSection:
			blocks = textBlocks(v.ID, v.Alignment, v.Message)
		case *receipt.ItemsListSection:
			tree.Blocks = append(tree.Blocks, c.itemsList(v, settings)...)
			continue
		case *receipt.PaymentSection:
			blocks = c.payment(v)
		case *receipt.DateTimeSection:
			blocks = textBlocks(v.ID, v.Alignment, v.Date)
		case *receipt.BarcodeSection:
			blocks = c.barcode(v)
		default:
			continue
		}
		tree.Blocks = append(tree.Blocks, blocks...)
		tree.Blocks = appendDivider(tree.Blocks, s.SectionID(), s.Divider())
	}
	return tree
}

func appendDivider(blocks []Block, sectionID string, d receipt.Divider) []Block {
	if b := RenderDivider(d.Style, d.Show); b != nil {
		b.SectionID = sectionID
		blocks = append(blocks, *b)
	}
	return blocks
}

func textBlocks(id string, align receipt.Alignment, text string) []Block {
	if text == "" {
		return nil
	}
	return []Block{{Kind: BlockText, SectionID: id, Align: alignOrCenter(align), Text: text, Scale: 1}}
}

func alignOrCenter(a receipt.Alignment) receipt.Alignment {
	switch a {
	case receipt.AlignLeft, receipt.AlignRight:
		return a
	}
	return receipt.AlignCenter
}

func (c *Composer) header(s *receipt.HeaderSection) []Block {
	align := alignOrCenter(s.Alignment)
	size := s.LogoSize
	if size <= 0 {
		size = 60
	}
	logo := Block{Kind: BlockPlaceholder, SectionID: s.ID, Align: align, Size: size, Text: placeholderText}
	if s.Logo != "" {
		logo = Block{Kind: BlockImage, SectionID: s.ID, Align: align, Size: size, Source: s.Logo}
	}
	return append([]Block{logo}, textBlocks(s.ID, align, s.BusinessDetails)...)
}

func (c *Composer) itemsList(s *receipt.ItemsListSection, settings receipt.TemplateSettings) []Block {
	money := func(v float64) string {
		return FormatCurrency(v, settings.Currency, settings.CurrencyFormat)
	}

	var blocks []Block
	for _, item := range s.Items {
		blocks = append(blocks, Block{
			Kind:      BlockRow,
			SectionID: s.ID,
			Text:      formatQuantity(item.Quantity) + " x " + item.Item,
			Right:     money(item.Price),
			Scale:     1,
		})
	}
	blocks = appendDivider(blocks, s.ID, s.AfterItemsDivider())

	for _, line := range s.TotalLines {
		blocks = append(blocks, Block{Kind: BlockRow, SectionID: s.ID, Text: line.Title, Right: money(line.Value), Scale: 1})
	}
	blocks = append(blocks, Block{
		Kind:      BlockRow,
		SectionID: s.ID,
		Text:      s.Total.Title,
		Right:     money(s.Total.Price),
		Bold:      true,
		Scale:     totalScale,
	})
	return appendDivider(blocks, s.ID, s.AfterTotalDivider())
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func (c *Composer) payment(s *receipt.PaymentSection) []Block {
	fields := s.ActiveFields()
	blocks := make([]Block, 0, len(fields))
	for i, f := range fields {
		blocks = append(blocks, Block{
			Kind:      BlockRow,
			SectionID: s.ID,
			Text:      f.Title,
			Right:     f.Value,
			Bold:      i == len(fields)-1,
			Scale:     1,
		})
	}
	return blocks
}

func (c *Composer) barcode(s *receipt.BarcodeSection) []Block {
	if _, err := encodeBarcode(s.Value); err != nil {
		c.log.WithFields(logrus.Fields{
			"module":    "render",
			"funcName":  "Composer.barcode",
			"sectionId": s.ID,
			"value":     strings.TrimSpace(s.Value),
		}).Warn("barcode skipped: " + err.Error())
		return nil
	}
	scale := s.Size
	if scale <= 0 {
		scale = 1
	}
	return []Block{{Kind: BlockBarcode, SectionID: s.ID, Align: receipt.AlignCenter, Text: s.Value, Scale: scale}}
}

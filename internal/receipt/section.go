// Package receipt holds the receipt Document Model: the ordered section list,
// the global template settings and the rules that keep both well formed.
package receipt

// Kind is the discriminator of a section.
type Kind string

const (
	KindHeader        Kind = "header"
	KindCustomMessage Kind = "custom_message"
	KindItemsList     Kind = "items_list"
	KindPayment       Kind = "payment"
	KindDateTime      Kind = "date_time"
	KindBarcode       Kind = "barcode"
)

// Kinds returns every known section kind in display order.
func Kinds() []Kind {
	return []Kind{KindHeader, KindCustomMessage, KindItemsList, KindPayment, KindDateTime, KindBarcode}
}

// Valid reports whether k is one of the known section kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindHeader, KindCustomMessage, KindItemsList, KindPayment, KindDateTime, KindBarcode:
		return true
	}
	return false
}

// DividerStyle selects the separator drawn after a section.
type DividerStyle string

const (
	DividerNone   DividerStyle = "none"
	DividerSolid  DividerStyle = "solid"
	DividerDashed DividerStyle = "dashed"
	DividerDotted DividerStyle = "dotted"
	DividerDouble DividerStyle = "double"
	DividerStars  DividerStyle = "stars"
	DividerBlank  DividerStyle = "blank"
)

type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

type PaymentType string

const (
	PaymentCash PaymentType = "cash"
	PaymentCard PaymentType = "card"
)

// Divider is a resolved divider configuration for one insertion point.
type Divider struct {
	Style DividerStyle
	Show  bool
}

// Section is one content block of a receipt. The set of implementations is
// closed: HeaderSection, CustomMessageSection, ItemsListSection,
// PaymentSection, DateTimeSection, BarcodeSection and UnknownSection.
type Section interface {
	SectionID() string
	SetID(id string)
	Kind() Kind
	Divider() Divider
	isSection()
}

// Base carries the fields every section variant shares.
type Base struct {
	ID              string       `json:"id" validate:"required"`
	DividerStyle    DividerStyle `json:"dividerStyle,omitempty"`
	DividerAtBottom bool         `json:"dividerAtBottom"`
}

func (b *Base) SectionID() string { return b.ID }
func (b *Base) SetID(id string)   { b.ID = id }
func (b *Base) isSection()        {}

// Divider returns the divider rendered right after the section content.
func (b *Base) Divider() Divider {
	return Divider{Style: b.DividerStyle, Show: b.DividerAtBottom}
}

type HeaderSection struct {
	Base
	Alignment       Alignment `json:"alignment" validate:"omitempty,oneof=left center right"`
	Logo            string    `json:"logo,omitempty"`
	LogoSize        int       `json:"logoSize" validate:"gt=0,lte=400"`
	BusinessDetails string    `json:"businessDetails"`
}

func (*HeaderSection) Kind() Kind { return KindHeader }

type CustomMessageSection struct {
	Base
	Alignment Alignment `json:"alignment" validate:"omitempty,oneof=left center right"`
	Message   string    `json:"message"`
}

func (*CustomMessageSection) Kind() Kind { return KindCustomMessage }

type Item struct {
	Quantity float64 `json:"quantity" validate:"gte=0"`
	Item     string  `json:"item"`
	Price    float64 `json:"price"`
}

type TotalLine struct {
	Title string  `json:"title"`
	Value float64 `json:"value"`
}

type Total struct {
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

// ItemsListSection lists purchased items followed by total lines and the
// grand total. Total.Price is taken as given and never reconciled with the
// items.
type ItemsListSection struct {
	Base
	Items                  []Item       `json:"items" validate:"dive"`
	TotalLines             []TotalLine  `json:"totalLines"`
	Total                  Total        `json:"total"`
	DividerAfterItems      bool         `json:"dividerAfterItems"`
	DividerAfterItemsStyle DividerStyle `json:"dividerAfterItemsStyle,omitempty"`
	DividerAfterTotal      *bool        `json:"dividerAfterTotal,omitempty"`
	DividerAfterTotalStyle DividerStyle `json:"dividerAfterTotalStyle,omitempty"`
}

func (*ItemsListSection) Kind() Kind { return KindItemsList }

// AfterItemsDivider resolves the divider between item rows and total lines.
func (s *ItemsListSection) AfterItemsDivider() Divider {
	style := s.DividerAfterItemsStyle
	if style == "" {
		style = s.DividerStyle
	}
	return Divider{Style: style, Show: s.DividerAfterItems}
}

// AfterTotalDivider resolves the divider closing the section. The explicit
// after-total settings win; the section's general divider fills the gaps.
func (s *ItemsListSection) AfterTotalDivider() Divider {
	style := s.DividerAfterTotalStyle
	if style == "" {
		style = s.DividerStyle
	}
	show := s.DividerAtBottom
	if s.DividerAfterTotal != nil {
		show = *s.DividerAfterTotal
	}
	return Divider{Style: style, Show: show}
}

type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

type PaymentSection struct {
	Base
	PaymentType PaymentType `json:"paymentType" validate:"oneof=cash card"`
	CashFields  []Field     `json:"cashFields"`
	CardFields  []Field     `json:"cardFields"`
}

func (*PaymentSection) Kind() Kind { return KindPayment }

// ActiveFields returns the field list selected by PaymentType.
func (s *PaymentSection) ActiveFields() []Field {
	if s.PaymentType == PaymentCard {
		return s.CardFields
	}
	return s.CashFields
}

type DateTimeSection struct {
	Base
	Alignment Alignment `json:"alignment" validate:"omitempty,oneof=left center right"`
	Date      string    `json:"date"`
}

func (*DateTimeSection) Kind() Kind { return KindDateTime }

// BarcodeSection holds a CODE128 payload. Value is checked by the encoder at
// render time, not here.
type BarcodeSection struct {
	Base
	Value string  `json:"value"`
	Size  float64 `json:"size" validate:"gt=0,lte=10"`
}

func (*BarcodeSection) Kind() Kind { return KindBarcode }

// UnknownSection keeps a section whose type is not recognised so a document
// can still be loaded leniently and rendered without it.
type UnknownSection struct {
	Base
	Type string `json:"-"`
	Raw  []byte `json:"-"`
}

func (s *UnknownSection) Kind() Kind { return Kind(s.Type) }

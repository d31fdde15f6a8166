package receipt

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLogoSize = 60

// NewSectionID returns a collision resistant id of the form <type>-<uuid>.
func NewSectionID(kind Kind) string {
	return fmt.Sprintf("%s-%s", kind, uuid.NewString())
}

// HardcodedDefault returns the built-in default for kind with an empty id.
// Every known kind resolves to a section; only unknown kinds fail.
func HardcodedDefault(kind Kind, now time.Time) (Section, error) {
	base := Base{DividerStyle: DividerDashed, DividerAtBottom: true}
	switch kind {
	case KindHeader:
		return &HeaderSection{
			Base:            base,
			Alignment:       AlignCenter,
			LogoSize:        defaultLogoSize,
			BusinessDetails: "Business Name\n123 Main Street\nCity, State 12345\nTel: (555) 123-4567",
		}, nil
	case KindCustomMessage:
		return &CustomMessageSection{
			Base:      base,
			Alignment: AlignCenter,
			Message:   "Thank you for your purchase!",
		}, nil
	case KindItemsList:
		return &ItemsListSection{
			Base: base,
			Items: []Item{
				{Quantity: 1, Item: "Item 1", Price: 10},
				{Quantity: 2, Item: "Item 2", Price: 5},
			},
			TotalLines: []TotalLine{
				{Title: "Subtotal", Value: 20},
				{Title: "Tax", Value: 0},
			},
			Total:                  Total{Title: "TOTAL", Price: 20},
			DividerAfterItems:      true,
			DividerAfterItemsStyle: DividerDashed,
			DividerAfterTotalStyle: DividerDashed,
		}, nil
	case KindPayment:
		return &PaymentSection{
			Base:        base,
			PaymentType: PaymentCash,
			CashFields: []Field{
				{Title: "Cash", Value: "20.00"},
				{Title: "Change", Value: "0.00"},
			},
			CardFields: []Field{
				{Title: "Card number", Value: "**** **** **** 1234"},
				{Title: "Card type", Value: "VISA"},
				{Title: "Approval code", Value: "000000"},
			},
		}, nil
	case KindDateTime:
		return &DateTimeSection{
			Base:      base,
			Alignment: AlignCenter,
			Date:      now.Format("01/02/2006 15:04"),
		}, nil
	case KindBarcode:
		return &BarcodeSection{
			Base:  Base{DividerStyle: DividerDashed},
			Value: "1234567890",
			Size:  1,
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

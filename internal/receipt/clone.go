package receipt

import "slices"

// CloneSection returns a deep copy of s. The copy shares no slices or
// pointers with the original.
func CloneSection(s Section) Section {
	switch v := s.(type) {
	case *HeaderSection:
		c := *v
		return &c
	case *CustomMessageSection:
		c := *v
		return &c
	case *ItemsListSection:
		c := *v
		c.Items = slices.Clone(v.Items)
		c.TotalLines = slices.Clone(v.TotalLines)
		if v.DividerAfterTotal != nil {
			show := *v.DividerAfterTotal
			c.DividerAfterTotal = &show
		}
		return &c
	case *PaymentSection:
		c := *v
		c.CashFields = slices.Clone(v.CashFields)
		c.CardFields = slices.Clone(v.CardFields)
		return &c
	case *DateTimeSection:
		c := *v
		return &c
	case *BarcodeSection:
		c := *v
		return &c
	case *UnknownSection:
		c := *v
		c.Raw = slices.Clone(v.Raw)
		return &c
	}
	return nil
}

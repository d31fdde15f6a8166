package receipt

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Sections is the ordered section list. Unmarshalling is lenient: unknown
// types are kept as *UnknownSection. Use DecodeSections at trust boundaries.
type Sections []Section

func (ss Sections) MarshalJSON() ([]byte, error) {
	if ss == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Section(ss))
}

func (ss *Sections) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("sections must be an array: %w", err)
	}
	out := make(Sections, 0, len(raws))
	for i, raw := range raws {
		s, err := unmarshalSection(raw)
		if err != nil {
			return fmt.Errorf("section %d: %w", i, err)
		}
		out = append(out, s)
	}
	*ss = out
	return nil
}

// UnmarshalSection decodes one section without validation. Unknown types come
// back as *UnknownSection.
func UnmarshalSection(raw []byte) (Section, error) {
	return unmarshalSection(raw)
}

type typeProbe struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func unmarshalSection(raw json.RawMessage) (Section, error) {
	var probe typeProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	s := newSection(Kind(probe.Type))
	if s == nil {
		return &UnknownSection{Base: Base{ID: probe.ID}, Type: probe.Type, Raw: bytes.Clone(raw)}, nil
	}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, err
	}
	return s, nil
}

func newSection(kind Kind) Section {
	switch kind {
	case KindHeader:
		return &HeaderSection{}
	case KindCustomMessage:
		return &CustomMessageSection{}
	case KindItemsList:
		return &ItemsListSection{}
	case KindPayment:
		return &PaymentSection{}
	case KindDateTime:
		return &DateTimeSection{}
	case KindBarcode:
		return &BarcodeSection{}
	}
	return nil
}

func (s *HeaderSection) MarshalJSON() ([]byte, error) {
	type alias HeaderSection
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*alias
	}{KindHeader, (*alias)(s)})
}

func (s *CustomMessageSection) MarshalJSON() ([]byte, error) {
	type alias CustomMessageSection
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*alias
	}{KindCustomMessage, (*alias)(s)})
}

func (s *ItemsListSection) MarshalJSON() ([]byte, error) {
	type alias ItemsListSection
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*alias
	}{KindItemsList, (*alias)(s)})
}

func (s *PaymentSection) MarshalJSON() ([]byte, error) {
	type alias PaymentSection
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*alias
	}{KindPayment, (*alias)(s)})
}

func (s *DateTimeSection) MarshalJSON() ([]byte, error) {
	type alias DateTimeSection
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*alias
	}{KindDateTime, (*alias)(s)})
}

func (s *BarcodeSection) MarshalJSON() ([]byte, error) {
	type alias BarcodeSection
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*alias
	}{KindBarcode, (*alias)(s)})
}

func (s *UnknownSection) MarshalJSON() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	return json.Marshal(map[string]any{"type": s.Type, "id": s.ID})
}

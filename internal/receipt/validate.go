package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidSection is matched by every FieldError.
	ErrInvalidSection = errors.New("invalid section")
	ErrUnknownKind    = errors.New("unknown section type")
	ErrInvalidSetting = errors.New("invalid template settings")
)

// FieldError describes one rejected field of a section. Index is -1 when the
// section was decoded on its own.
type FieldError struct {
	Index     int
	SectionID string
	Field     string
	Message   string
}

func (e *FieldError) Error() string {
	var b strings.Builder
	b.WriteString("section")
	if e.Index >= 0 {
		fmt.Fprintf(&b, " %d", e.Index)
	}
	if e.SectionID != "" {
		fmt.Fprintf(&b, " (%s)", e.SectionID)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": %s", e.Field)
	}
	b.WriteString(" ")
	b.WriteString(e.Message)
	return b.String()
}

func (e *FieldError) Unwrap() error { return ErrInvalidSection }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type shape int

const (
	shapeString shape = iota
	shapeNumber
	shapeArray
	shapeObject
	shapeBool
	shapeNull
)

func (s shape) String() string {
	switch s {
	case shapeString:
		return "a string"
	case shapeNumber:
		return "a number"
	case shapeArray:
		return "an array"
	case shapeObject:
		return "an object"
	case shapeBool:
		return "a boolean"
	}
	return "null"
}

func shapeOf(raw json.RawMessage) shape {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return shapeNull
	}
	switch raw[0] {
	case '"':
		return shapeString
	case '[':
		return shapeArray
	case '{':
		return shapeObject
	case 't', 'f':
		return shapeBool
	case 'n':
		return shapeNull
	}
	return shapeNumber
}

type keySpec struct {
	name  string
	shape shape
}

var requiredKeys = map[Kind][]keySpec{
	KindHeader:        {{"businessDetails", shapeString}},
	KindCustomMessage: {{"message", shapeString}},
	KindItemsList:     {{"items", shapeArray}, {"total", shapeObject}},
	KindPayment:       {{"paymentType", shapeString}},
	KindDateTime:      {{"date", shapeString}},
	KindBarcode:       {{"value", shapeString}},
}

// Decoder turns untrusted section JSON into typed sections. With NewID set,
// every decoded section gets a fresh id and incoming ids are ignored.
type Decoder struct {
	NewID func(Kind) string
}

// DecodeSection decodes and validates one section. The type discriminator and
// the required keys must be present; optional fields are defaulted.
func DecodeSection(raw []byte) (Section, error) {
	return Decoder{}.DecodeSection(raw)
}

// DecodeSections decodes a JSON array of sections and rejects duplicate ids.
func DecodeSections(raw []byte) (Sections, error) {
	return Decoder{}.DecodeSections(raw)
}

func (d Decoder) DecodeSection(raw []byte) (Section, error) {
	return d.decode(-1, raw)
}

func (d Decoder) DecodeSections(raw []byte) (Sections, error) {
	if shapeOf(raw) != shapeArray {
		return nil, &FieldError{Index: -1, Field: "sections", Message: "must be an array"}
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(raw, &raws); err != nil {
		return nil, &FieldError{Index: -1, Field: "sections", Message: "must be an array"}
	}
	out := make(Sections, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for i, r := range raws {
		s, err := d.decode(i, r)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[s.SectionID()]; dup {
			return nil, &FieldError{Index: i, SectionID: s.SectionID(), Field: "id", Message: "is used by another section"}
		}
		seen[s.SectionID()] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

func (d Decoder) decode(index int, raw []byte) (Section, error) {
	fail := func(id, field, msg string) error {
		return &FieldError{Index: index, SectionID: id, Field: field, Message: msg}
	}

	var fields map[string]json.RawMessage
	if shapeOf(raw) != shapeObject {
		return nil, fail("", "", "must be an object")
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fail("", "", "is not valid JSON")
	}

	var id string
	if rawID, ok := fields["id"]; ok && shapeOf(rawID) == shapeString {
		_ = json.Unmarshal(rawID, &id)
	}

	rawType, ok := fields["type"]
	if !ok || shapeOf(rawType) != shapeString {
		return nil, fail(id, "type", "is required")
	}
	var typ string
	_ = json.Unmarshal(rawType, &typ)
	kind := Kind(typ)
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %w %q", fail(id, "type", "is not a known section type"), ErrUnknownKind, typ)
	}

	if d.NewID == nil {
		if id == "" {
			return nil, fail(id, "id", "is required")
		}
	}
	for _, spec := range requiredKeys[kind] {
		v, ok := fields[spec.name]
		if !ok || shapeOf(v) == shapeNull {
			return nil, fail(id, spec.name, "is required")
		}
		if got := shapeOf(v); got != spec.shape {
			return nil, fail(id, spec.name, "must be "+spec.shape.String())
		}
	}

	s := newSection(kind)
	if err := json.Unmarshal(raw, s); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fail(id, typeErr.Field, "must be "+jsonKindName(typeErr.Type))
		}
		return nil, fail(id, "", err.Error())
	}
	if d.NewID != nil {
		s.SetID(d.NewID(kind))
	}

	if p, ok := s.(*PaymentSection); ok {
		var active string
		switch p.PaymentType {
		case PaymentCash:
			active = "cashFields"
		case PaymentCard:
			active = "cardFields"
		default:
			return nil, fail(id, "paymentType", "must be one of: cash card")
		}
		if v, ok := fields[active]; !ok || shapeOf(v) != shapeArray {
			return nil, fail(id, active, "is required for paymentType "+string(p.PaymentType))
		}
	}
	if b, ok := s.(*BarcodeSection); ok {
		if _, present := fields["size"]; !present {
			b.Size = 1
		}
	}
	if h, ok := s.(*HeaderSection); ok {
		if _, present := fields["logoSize"]; !present {
			h.LogoSize = defaultLogoSize
		}
	}
	applyDefaults(s)

	if err := validate.Struct(s); err != nil {
		return nil, translateValidation(index, s.SectionID(), err)
	}
	return s, nil
}

func jsonKindName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Slice, reflect.Array:
		return "an array"
	case reflect.Struct, reflect.Map:
		return "an object"
	case reflect.Bool:
		return "a boolean"
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int64, reflect.Int32, reflect.Uint8:
		return "a number"
	}
	return t.String()
}

// applyDefaults fills optional fields that decoded to their zero value.
func applyDefaults(s Section) {
	switch v := s.(type) {
	case *HeaderSection:
		v.Alignment = defaultAlignment(v.Alignment)
		v.DividerStyle = defaultDividerStyle(v.DividerStyle)
	case *CustomMessageSection:
		v.Alignment = defaultAlignment(v.Alignment)
		v.DividerStyle = defaultDividerStyle(v.DividerStyle)
	case *ItemsListSection:
		v.DividerStyle = defaultDividerStyle(v.DividerStyle)
		if v.Items == nil {
			v.Items = []Item{}
		}
		if v.TotalLines == nil {
			v.TotalLines = []TotalLine{}
		}
		if v.DividerAfterItemsStyle == "" {
			v.DividerAfterItemsStyle = v.DividerStyle
		}
		if v.DividerAfterTotalStyle == "" {
			v.DividerAfterTotalStyle = v.DividerStyle
		}
	case *PaymentSection:
		v.DividerStyle = defaultDividerStyle(v.DividerStyle)
		if v.CashFields == nil {
			v.CashFields = []Field{}
		}
		if v.CardFields == nil {
			v.CardFields = []Field{}
		}
	case *DateTimeSection:
		v.Alignment = defaultAlignment(v.Alignment)
		v.DividerStyle = defaultDividerStyle(v.DividerStyle)
	case *BarcodeSection:
		v.DividerStyle = defaultDividerStyle(v.DividerStyle)
	}
}

func defaultAlignment(a Alignment) Alignment {
	if a == "" {
		return AlignCenter
	}
	return a
}

func defaultDividerStyle(s DividerStyle) DividerStyle {
	if s == "" {
		return DividerDashed
	}
	return s
}

func translateValidation(index int, id string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &FieldError{Index: index, SectionID: id, Message: err.Error()}
	}
	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	field = strings.TrimPrefix(field, "Base.")
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "oneof":
		msg = "must be one of: " + fe.Param()
	case "gt":
		msg = "must be greater than " + fe.Param()
	case "gte":
		msg = "must be at least " + fe.Param()
	case "lte":
		msg = "must be at most " + fe.Param()
	default:
		msg = "failed " + fe.Tag() + " check"
	}
	return &FieldError{Index: index, SectionID: id, Field: field, Message: msg}
}

// ValidateSettings rejects values outside the fixed enums. An unknown font is
// accepted; it is rendered as monospace.
func ValidateSettings(s TemplateSettings) error {
	if !slices.Contains(Currencies, s.Currency) {
		return fmt.Errorf("%w: currency %q is not supported", ErrInvalidSetting, s.Currency)
	}
	switch s.CurrencyFormat {
	case SymbolBefore, SymbolAfter, SymbolAfterSpace:
	default:
		return fmt.Errorf("%w: currencyFormat %q is not supported", ErrInvalidSetting, s.CurrencyFormat)
	}
	if !slices.Contains(Backgrounds(), s.Background) {
		return fmt.Errorf("%w: background %q is not supported", ErrInvalidSetting, s.Background)
	}
	return nil
}

// ValidateDocument checks an already typed document: known kinds only, unique
// non-empty ids, field constraints and settings.
func ValidateDocument(doc Document) error {
	seen := make(map[string]struct{}, len(doc.Sections))
	for i, s := range doc.Sections {
		if s == nil {
			return &FieldError{Index: i, Message: "is null"}
		}
		if _, unknown := s.(*UnknownSection); unknown {
			return fmt.Errorf("%w: %w %q", &FieldError{Index: i, SectionID: s.SectionID(), Field: "type", Message: "is not a known section type"}, ErrUnknownKind, s.Kind())
		}
		if s.SectionID() == "" {
			return &FieldError{Index: i, Field: "id", Message: "is required"}
		}
		if _, dup := seen[s.SectionID()]; dup {
			return &FieldError{Index: i, SectionID: s.SectionID(), Field: "id", Message: "is used by another section"}
		}
		seen[s.SectionID()] = struct{}{}
		if err := validate.Struct(s); err != nil {
			return translateValidation(i, s.SectionID(), err)
		}
	}
	return ValidateSettings(doc.Settings)
}

// DecodeDocument decodes {"sections": [...], "settings": {...}}. Missing
// settings take their defaults.
func DecodeDocument(raw []byte) (Document, error) {
	return Decoder{}.DecodeDocument(raw)
}

func (d Decoder) DecodeDocument(raw []byte) (Document, error) {
	var envelope struct {
		Sections json.RawMessage   `json:"sections"`
		Settings *TemplateSettings `json:"settings"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidSetting, err)
	}
	sections, err := d.DecodeSections(envelope.Sections)
	if err != nil {
		return Document{}, err
	}
	settings := DefaultSettings()
	if envelope.Settings != nil {
		settings = envelope.Settings.WithDefaults()
	}
	if err := ValidateSettings(settings); err != nil {
		return Document{}, err
	}
	return Document{Sections: sections, Settings: settings}, nil
}

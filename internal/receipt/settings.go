package receipt

import (
	"encoding/json"
	"fmt"
	"strings"
)

type CurrencyFormat string

const (
	SymbolBefore     CurrencyFormat = "symbol-before"
	SymbolAfter      CurrencyFormat = "symbol-after"
	SymbolAfterSpace CurrencyFormat = "symbol-after-space"
)

// Currencies is the fixed set of supported currency symbols.
var Currencies = []string{"$", "€", "£", "¥", "₹"}

type Font string

const (
	FontHandwritten Font = "handwritten"
	FontCourier     Font = "courier"
	FontMonospace   Font = "monospace"
)

type Background string

const (
	BackgroundNone       Background = "none"
	BackgroundDots       Background = "dots"
	BackgroundGrid       Background = "grid"
	BackgroundLines      Background = "lines"
	BackgroundDiagonal   Background = "diagonal"
	BackgroundCrosshatch Background = "crosshatch"
)

// Backgrounds lists every background texture, none first.
func Backgrounds() []Background {
	return []Background{BackgroundNone, BackgroundDots, BackgroundGrid, BackgroundLines, BackgroundDiagonal, BackgroundCrosshatch}
}

// Color is an RGB text colour. It is written as "#rrggbb" and read from either
// that form or an {"r","g","b"} object.
type Color struct {
	R uint8
	G uint8
	B uint8
}

func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Hex())
}

func (c *Color) UnmarshalJSON(data []byte) error {
	var hex string
	if err := json.Unmarshal(data, &hex); err == nil {
		parsed, err := ParseHexColor(hex)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	var rgb struct {
		R uint8 `json:"r"`
		G uint8 `json:"g"`
		B uint8 `json:"b"`
	}
	if err := json.Unmarshal(data, &rgb); err != nil {
		return fmt.Errorf("textColor must be \"#rrggbb\" or {r,g,b}: %w", err)
	}
	*c = Color{R: rgb.R, G: rgb.G, B: rgb.B}
	return nil
}

// ParseHexColor parses "#rrggbb" or "#rgb".
func ParseHexColor(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	var r, g, b uint8
	switch len(s) {
	case 6:
		if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
			return Color{}, fmt.Errorf("invalid colour %q", s)
		}
	case 3:
		if _, err := fmt.Sscanf(s, "%1x%1x%1x", &r, &g, &b); err != nil {
			return Color{}, fmt.Errorf("invalid colour %q", s)
		}
		r, g, b = r*17, g*17, b*17
	default:
		return Color{}, fmt.Errorf("invalid colour %q", s)
	}
	return Color{R: r, G: g, B: b}, nil
}

// TemplateSettings are the document-wide rendering settings.
type TemplateSettings struct {
	Currency       string         `json:"currency"`
	CurrencyFormat CurrencyFormat `json:"currencyFormat"`
	Font           Font           `json:"font"`
	TextColor      Color          `json:"textColor"`
	Background     Background     `json:"background"`
}

func DefaultSettings() TemplateSettings {
	return TemplateSettings{
		Currency:       "$",
		CurrencyFormat: SymbolBefore,
		Font:           FontMonospace,
		TextColor:      Color{},
		Background:     BackgroundNone,
	}
}

// WithDefaults fills empty settings from DefaultSettings.
func (s TemplateSettings) WithDefaults() TemplateSettings {
	d := DefaultSettings()
	if s.Currency == "" {
		s.Currency = d.Currency
	}
	if s.CurrencyFormat == "" {
		s.CurrencyFormat = d.CurrencyFormat
	}
	if s.Font == "" {
		s.Font = d.Font
	}
	if s.Background == "" {
		s.Background = d.Background
	}
	return s
}

// Document is an ordered section list plus its settings.
type Document struct {
	Sections Sections         `json:"sections"`
	Settings TemplateSettings `json:"settings"`
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := Document{Settings: d.Settings}
	if d.Sections != nil {
		out.Sections = make(Sections, len(d.Sections))
		for i, s := range d.Sections {
			out.Sections[i] = CloneSection(s)
		}
	}
	return out
}

// IndexOf returns the position of the section with the given id, or -1.
func (d Document) IndexOf(id string) int {
	for i, s := range d.Sections {
		if s.SectionID() == id {
			return i
		}
	}
	return -1
}

// HasID reports whether any section uses id.
func (d Document) HasID(id string) bool {
	return d.IndexOf(id) >= 0
}

package render

import (
	"fmt"
	"sync"

	"receiptmaker/internal/receipt"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/opentype"
)

type faceKey struct {
	ttf  string
	size float64
}

// fontBook parses each TTF once and caches faces per size. Faces are not safe
// for concurrent use, so every Rasterize call gets its own book.
type fontBook struct {
	mu    sync.Mutex
	faces map[faceKey]font.Face
}

var (
	parsedOnce  sync.Once
	parsedFonts map[string]*opentype.Font
	parseErr    error
)

func loadFonts() (map[string]*opentype.Font, error) {
	parsedOnce.Do(func() {
		sources := map[string][]byte{
			"italic":     goitalic.TTF,
			"bolditalic": gobolditalic.TTF,
			"mono":       gomono.TTF,
			"monobold":   gomonobold.TTF,
			"bold":       gobold.TTF,
		}
		parsedFonts = make(map[string]*opentype.Font, len(sources))
		for name, ttf := range sources {
			f, err := opentype.Parse(ttf)
			if err != nil {
				parseErr = fmt.Errorf("parse font %s: %w", name, err)
				return
			}
			parsedFonts[name] = f
		}
	})
	return parsedFonts, parseErr
}

func ttfFor(f receipt.Font, bold bool) string {
	switch f {
	case receipt.FontHandwritten:
		if bold {
			return "bolditalic"
		}
		return "italic"
	default:
		if bold {
			return "monobold"
		}
		return "mono"
	}
}

func newFontBook() *fontBook {
	return &fontBook{faces: map[faceKey]font.Face{}}
}

func (b *fontBook) face(ttf string, size float64) (font.Face, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := faceKey{ttf: ttf, size: size}
	if f, ok := b.faces[key]; ok {
		return f, nil
	}
	fonts, err := loadFonts()
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(fonts[ttf], &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("new face %s@%.1f: %w", ttf, size, err)
	}
	b.faces[key] = face
	return face, nil
}

func (b *fontBook) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, f := range b.faces {
		_ = f.Close()
		delete(b.faces, k)
	}
}

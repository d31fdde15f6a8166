package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"receiptmaker/internal/config"
	"receiptmaker/internal/receipt"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func geminiServer(t *testing.T, status int, reply string, seen *GeminiRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent") || r.URL.Query().Get("key") != "k" {
			http.Error(w, "bad route", http.StatusNotFound)
			return
		}
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"code":500,"message":"internal"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(GeminiResponse{Candidates: []GeminiCandidate{{
			Content: GeminiContent{Parts: []GeminiPart{{Text: reply}}},
		}}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newGenerator(url string, stats *StatisticsService) *AIGenerator {
	return NewAIGenerator(config.AIConfig{GeminiAPIKey: "k", Model: "gemini-test", Endpoint: url + "/"}, stats, nil)
}

func TestGenerateParsesFencedReply(t *testing.T) {
	reply := "```json\n" + `{"sections":[
		{"type":"header","id":"header-1","businessDetails":"Corner Cafe"},
		{"type":"items_list","items":[{"quantity":1,"item":"Latte","price":4.5}],"total":{"title":"TOTAL","price":4.5}}
	],"settings":{"currency":"€","currencyFormat":"symbol-after"}}` + "\n```"

	var seen GeminiRequest
	srv := geminiServer(t, http.StatusOK, reply, &seen)
	db := newTestDB(t)
	stats := NewStatisticsService(db, nil)
	gen := newGenerator(srv.URL, stats)

	doc, err := gen.Generate(context.Background(), pngBytes(t, 2400, 1200))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(doc.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(doc.Sections))
	}
	for _, s := range doc.Sections {
		if s.SectionID() == "header-1" || !strings.HasPrefix(s.SectionID(), string(s.Kind())+"-") {
			t.Fatalf("section id %q was not regenerated", s.SectionID())
		}
	}
	if doc.Settings.Currency != "€" || doc.Settings.CurrencyFormat != receipt.SymbolAfter || doc.Settings.Font != receipt.FontMonospace {
		t.Fatalf("unexpected settings %+v", doc.Settings)
	}

	if len(seen.Contents) != 1 || len(seen.Contents[0].Parts) != 2 || seen.Contents[0].Parts[0].InlineData == nil {
		t.Fatalf("request did not carry the image inline: %+v", seen)
	}
	inline := seen.Contents[0].Parts[0].InlineData
	if inline.MimeType != "image/jpeg" {
		t.Fatalf("unexpected mime %q", inline.MimeType)
	}
	raw, err := base64.StdEncoding.DecodeString(inline.Data)
	if err != nil {
		t.Fatalf("decode inline data: %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode sent image: %v", err)
	}
	if cfg.Width != maxAIImageSide || cfg.Height != maxAIImageSide/2 {
		t.Fatalf("image not downsized: %dx%d", cfg.Width, cfg.Height)
	}

	summary, err := stats.GetSummary(context.Background())
	if err != nil || summary.TotalAIGenerated != 1 {
		t.Fatalf("ai_generate not recorded: %+v %v", summary, err)
	}
}

func TestGenerateFailures(t *testing.T) {
	img := pngBytes(t, 40, 40)

	tests := []struct {
		name   string
		status int
		reply  string
		want   error
	}{
		{"provider error", http.StatusInternalServerError, "", ErrAIUnavailable},
		{"not json", http.StatusOK, "I could not read this receipt.", ErrAIUnreadable},
		{"unknown section type", http.StatusOK, `{"sections":[{"type":"coupon","code":"X"}]}`, ErrAIUnreadable},
		{"missing required key", http.StatusOK, `{"sections":[{"type":"barcode"}]}`, ErrAIUnreadable},
		{"no sections", http.StatusOK, `{"sections":[]}`, ErrAIUnreadable},
		{"bad settings", http.StatusOK, `{"sections":[{"type":"custom_message","message":"hi"}],"settings":{"font":"papyrus"}}`, ErrAIUnreadable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := geminiServer(t, tt.status, tt.reply, nil)
			_, err := newGenerator(srv.URL, nil).Generate(context.Background(), img)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestGenerateRequiresKeyAndImage(t *testing.T) {
	gen := NewAIGenerator(config.AIConfig{}, nil, nil)
	if _, err := gen.Generate(context.Background(), pngBytes(t, 10, 10)); !errors.Is(err, ErrAIUnavailable) {
		t.Fatalf("expected ErrAIUnavailable without a key, got %v", err)
	}

	srv := geminiServer(t, http.StatusOK, `{"sections":[]}`, nil)
	if _, err := newGenerator(srv.URL, nil).Generate(context.Background(), []byte("not an image")); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for garbage upload, got %v", err)
	}
}

func TestParseGeneratedDocumentBareArray(t *testing.T) {
	doc, err := parseGeneratedDocument(`[{"type":"date_time","date":"03/05/2024 14:30"}]`)
	if err != nil {
		t.Fatalf("parseGeneratedDocument: %v", err)
	}
	if doc.Settings != receipt.DefaultSettings() || doc.Sections[0].Kind() != receipt.KindDateTime {
		t.Fatalf("unexpected document %+v", doc)
	}
}

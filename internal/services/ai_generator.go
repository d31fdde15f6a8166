package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"receiptmaker/internal/config"
	"receiptmaker/internal/logger"
	"receiptmaker/internal/models"
	"receiptmaker/internal/receipt"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
)

var (
	ErrAIUnavailable = errors.New("the template generator is unavailable, please try again later")
	ErrAIUnreadable  = errors.New("the receipt in this image could not be read")
)

const maxAIImageSide = 1600

const generatePrompt = `You convert a photo of a printed receipt into a receipt template.
Return ONLY a JSON object of the form {"sections": [...], "settings": {...}}.
Each section is an object with a "type" of header, custom_message, items_list, payment, date_time or barcode.
- header: {"type":"header","logoSize":60,"businessDetails":"name and address, newline separated","alignment":"center"}
- custom_message: {"type":"custom_message","message":"text","alignment":"center"}
- items_list: {"type":"items_list","items":[{"quantity":1,"item":"Coffee","price":3.5}],"totalLines":[{"title":"Subtotal","value":3.5}],"total":{"title":"TOTAL","price":3.5}}
- payment: {"type":"payment","paymentType":"cash","cashFields":[{"title":"Cash","value":"10.00"},{"title":"Change","value":"9.00"}]} or paymentType "card" with "cardFields"
- date_time: {"type":"date_time","date":"MM/DD/YYYY HH:MM"}
- barcode: {"type":"barcode","value":"digits or ASCII","size":1}
Any section may carry "dividerStyle" (dashed, solid, dotted, double, stars, blank, none) and "dividerAtBottom".
settings: {"currency":"$","currencyFormat":"symbol-before","font":"monospace","textColor":{"r":0,"g":0,"b":0},"background":"none"}
Prices are numbers. Keep the order of the receipt. Translate nothing. Return valid JSON only, no explanation.`

// GeminiRequest is the request structure for Gemini API
type GeminiRequest struct {
	Contents         []GeminiContent         `json:"contents"`
	GenerationConfig *GeminiGenerationConfig `json:"generationConfig,omitempty"`
}

type GeminiContent struct {
	Parts []GeminiPart `json:"parts"`
}

type GeminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *GeminiInlineData `json:"inline_data,omitempty"`
}

type GeminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type GeminiGenerationConfig struct {
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	Temperature      float64 `json:"temperature"`
}

// GeminiResponse is the response structure from Gemini API
type GeminiResponse struct {
	Candidates []GeminiCandidate `json:"candidates"`
	Error      *GeminiError      `json:"error,omitempty"`
}

type GeminiCandidate struct {
	Content GeminiContent `json:"content"`
}

type GeminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// AIGenerator turns a receipt photo into a validated Document.
type AIGenerator struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	stats    *StatisticsService
	log      logrus.FieldLogger
}

func NewAIGenerator(cfg config.AIConfig, stats *StatisticsService, log logrus.FieldLogger) *AIGenerator {
	if log == nil {
		log = logger.Get()
	}
	return &AIGenerator{
		apiKey:   cfg.GeminiAPIKey,
		model:    cfg.Model,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   &http.Client{Timeout: 60 * time.Second},
		stats:    stats,
		log:      log,
	}
}

func (g *AIGenerator) Enabled() bool {
	return g.apiKey != ""
}

// Generate returns a document with fresh section ids. Provider failures are
// ErrAIUnavailable; replies that do not decode into a valid document are
// ErrAIUnreadable.
func (g *AIGenerator) Generate(ctx context.Context, image []byte) (*receipt.Document, error) {
	if !g.Enabled() {
		return nil, ErrAIUnavailable
	}
	data, mime, err := prepareAIImage(image)
	if err != nil {
		return nil, invalid("image", "is not a supported image")
	}

	text, err := g.callGemini(ctx, data, mime)
	if err != nil {
		logger.LogError(g.log, "services", "AIGenerator.Generate", "call gemini", nil, err)
		return nil, ErrAIUnavailable
	}

	doc, err := parseGeneratedDocument(text)
	if err != nil {
		logger.LogWarn(g.log, "services", "AIGenerator.Generate", "parse reply", truncate(text, 500), err)
		return nil, ErrAIUnreadable
	}

	if g.stats != nil {
		g.stats.Record(ctx, models.EventAIGenerate, "")
	}
	return doc, nil
}

func (g *AIGenerator) callGemini(ctx context.Context, image []byte, mime string) (string, error) {
	geminiReq := GeminiRequest{
		Contents: []GeminiContent{
			{
				Parts: []GeminiPart{
					{InlineData: &GeminiInlineData{MimeType: mime, Data: base64.StdEncoding.EncodeToString(image)}},
					{Text: generatePrompt},
				},
			},
		},
		GenerationConfig: &GeminiGenerationConfig{ResponseMimeType: "application/json", Temperature: 0.1},
	}

	reqBody, err := json.Marshal(geminiReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal Gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.endpoint, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to build Gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call Gemini API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read Gemini response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini API status %d: %s", resp.StatusCode, truncate(string(body), 300))
	}

	var geminiResp GeminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", fmt.Errorf("failed to parse Gemini response: %w", err)
	}
	if geminiResp.Error != nil {
		return "", fmt.Errorf("gemini API error: %s", geminiResp.Error.Message)
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no response from Gemini")
	}
	return geminiResp.Candidates[0].Content.Parts[0].Text, nil
}

// parseGeneratedDocument strips markdown fences and decodes the reply through
// the same validator as user input.
func parseGeneratedDocument(text string) (*receipt.Document, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "[") {
		text = `{"sections":` + text + `}`
	}
	doc, err := receipt.Decoder{NewID: receipt.NewSectionID}.DecodeDocument([]byte(text))
	if err != nil {
		return nil, err
	}
	if len(doc.Sections) == 0 {
		return nil, errors.New("reply has no sections")
	}
	return &doc, nil
}

// prepareAIImage downsizes large photos and re-encodes them as JPEG.
func prepareAIImage(data []byte) ([]byte, string, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", err
	}
	b := img.Bounds()
	if b.Dx() > maxAIImageSide || b.Dy() > maxAIImageSide {
		img = imaging.Fit(img, maxAIImageSide, maxAIImageSide, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "image/jpeg", nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/starwalkn/gotenberg-go-client/v8"
	"github.com/starwalkn/gotenberg-go-client/v8/document"
)

const pageHTMLTemplate = `<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <style>
    @page { margin: 0; }
    html, body { margin: 0; padding: 0; background: #ffffff; }
    img { display: block; width: {{.Width}}mm; height: {{.Height}}mm; }
  </style>
</head>
<body><img src="{{.Src}}" alt="receipt" /></body>
</html>
`

var pageTemplate = template.Must(template.New("page").Parse(pageHTMLTemplate))

// GotenbergPDF renders the PDF with Gotenberg's Chromium route: a single page
// whose paper size equals the raster's physical size, without margins.
type GotenbergPDF struct {
	client     *gotenberg.Client
	timeout    time.Duration
	maxRetries int
}

func NewGotenbergPDF(gotenbergURL string, timeoutStr string) (*GotenbergPDF, error) {
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{
		Timeout: timeout,
	}

	client, err := gotenberg.NewClient(gotenbergURL, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gotenberg client: %w", err)
	}

	return &GotenbergPDF{
		client:     client,
		timeout:    timeout,
		maxRetries: 3,
	}, nil
}

func (g *GotenbergPDF) WrapPNG(ctx context.Context, pngBytes []byte, page Page) ([]byte, error) {
	var html bytes.Buffer
	err := pageTemplate.Execute(&html, struct {
		Width, Height string
		Src           template.URL
	}{
		Width:  fmt.Sprintf("%.3f", page.WidthMM),
		Height: fmt.Sprintf("%.3f", page.HeightMM),
		Src:    template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build page html: %w", err)
	}
	return g.convertWithRetry(ctx, html.String(), page)
}

func (g *GotenbergPDF) convertWithRetry(ctx context.Context, html string, page Page) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		out, err := g.convert(ctx, html, page)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if attempt < g.maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}

	return nil, fmt.Errorf("failed to convert page after %d attempts: %w", g.maxRetries, lastErr)
}

func (g *GotenbergPDF) convert(ctx context.Context, html string, page Page) ([]byte, error) {
	convertCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	index, err := document.FromString("index.html", html)
	if err != nil {
		return nil, fmt.Errorf("failed to create document from html: %w", err)
	}

	req := gotenberg.NewHTMLRequest(index)
	req.PaperSize(gotenberg.PaperDimensions{
		Width:  page.WidthMM / 25.4,
		Height: page.HeightMM / 25.4,
		Unit:   gotenberg.IN,
	})
	req.Margins(gotenberg.NoMargins)
	req.PrintBackground()

	resp, err := g.client.Send(convertCtx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gotenberg returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

package services

import (
	"context"
	"errors"
	"fmt"

	"receiptmaker/internal/models"
	"receiptmaker/internal/receipt"
	"receiptmaker/internal/render"
)

// ErrNothingToExport is returned when the document renders to a blank page.
var ErrNothingToExport = errors.New("the receipt has no content to export")

// Preview is a composed document and the surface it is shown on.
type Preview struct {
	Tree    render.RenderTree `json:"tree"`
	Surface render.Surface    `json:"surface"`
}

type ExportRequest struct {
	Document     receipt.Document
	Format       render.Format
	TemplateID   string
	TemplateName string
	UserID       string
}

type ExportResult struct {
	Data        []byte
	ContentType string
	FileName    string
	Watermarked bool
}

// RenderService composes documents and exports them. Non-premium exports
// carry the SAMPLE watermark.
type RenderService struct {
	composer *render.Composer
	exporter *render.Exporter
	premium  *PremiumService
	stats    *StatisticsService
}

func NewRenderService(composer *render.Composer, exporter *render.Exporter, premium *PremiumService, stats *StatisticsService) *RenderService {
	return &RenderService{composer: composer, exporter: exporter, premium: premium, stats: stats}
}

func (s *RenderService) Composer() *render.Composer {
	return s.composer
}

// Preview composes doc. The watermark is shown unless userID is premium.
func (s *RenderService) Preview(ctx context.Context, doc receipt.Document, userID string) (*Preview, error) {
	watermark, err := s.watermarkFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	tree := s.composer.Compose(doc)
	return &Preview{Tree: tree, Surface: render.Present(tree, doc.Settings, watermark)}, nil
}

func (s *RenderService) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	if err := receipt.ValidateDocument(req.Document); err != nil {
		return nil, invalid("document", "%s", err.Error())
	}
	watermark, err := s.watermarkFor(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	surface := render.Present(s.composer.Compose(req.Document), req.Document.Settings, watermark)
	data, err := s.exporter.Export(render.WithImageOwner(ctx, req.UserID), surface, req.Format)
	if err != nil {
		if errors.Is(err, render.ErrEmptySurface) {
			return nil, fmt.Errorf("%w: %w", ErrValidation, ErrNothingToExport)
		}
		if errors.Is(err, render.ErrUnsupportedFormat) {
			return nil, invalid("format", "must be png or pdf")
		}
		return nil, fmt.Errorf("export %s: %w", req.Format, err)
	}

	if s.stats != nil {
		event := models.EventExportPNG
		if req.Format == render.FormatPDF {
			event = models.EventExportPDF
		}
		s.stats.Record(ctx, event, req.TemplateID)
	}

	return &ExportResult{
		Data:        data,
		ContentType: req.Format.ContentType(),
		FileName:    render.ExportFileName(req.TemplateName, req.Format),
		Watermarked: watermark,
	}, nil
}

func (s *RenderService) watermarkFor(ctx context.Context, userID string) (bool, error) {
	if s.premium == nil {
		return true, nil
	}
	status, err := s.premium.Status(ctx, userID)
	if err != nil {
		return false, err
	}
	return !status.IsPremium, nil
}

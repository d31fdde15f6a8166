package models

import (
	"time"

	"gorm.io/gorm"
)

// EventType represents the type of statistical event
type EventType string

const (
	EventExportPNG    EventType = "export_png"
	EventExportPDF    EventType = "export_pdf"
	EventAIGenerate   EventType = "ai_generate"
	EventTemplateCopy EventType = "template_copy"
)

func EventTypes() []EventType {
	return []EventType{EventExportPNG, EventExportPDF, EventAIGenerate, EventTemplateCopy}
}

// Statistics tracks counts per template per day.
type Statistics struct {
	ID         string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	EventType  EventType      `gorm:"type:varchar(50);not null;index" json:"event_type"`
	TemplateID string         `gorm:"type:varchar(191);index" json:"template_id,omitempty"` // empty for the global counter
	Date       time.Time      `gorm:"type:date;not null;index" json:"date"`
	Count      int64          `gorm:"not null;default:0" json:"count"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Statistics) TableName() string {
	return "statistics"
}

// StatisticsSummary represents aggregated global statistics
type StatisticsSummary struct {
	TotalPNGExports   int64 `json:"total_png_exports"`
	TotalPDFExports   int64 `json:"total_pdf_exports"`
	TotalAIGenerated  int64 `json:"total_ai_generated"`
	TotalTemplateCopy int64 `json:"total_template_copies"`
}

// TemplateStatistics represents statistics for a specific template
type TemplateStatistics struct {
	TemplateID   string `json:"template_id"`
	TemplateName string `json:"template_name,omitempty"`
	PNGExports   int64  `json:"png_exports"`
	PDFExports   int64  `json:"pdf_exports"`
	Copies       int64  `json:"copies"`
}

// TimeSeriesPoint represents a single point in time-based statistics
type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// TimeSeriesData represents time-based statistics for a specific event type
type TimeSeriesData struct {
	EventType  string            `json:"event_type"`
	DataPoints []TimeSeriesPoint `json:"data_points"`
	Total      int64             `json:"total"`
}

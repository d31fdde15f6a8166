package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"receiptmaker/internal/logger"
	"receiptmaker/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type StatisticsService struct {
	db  *gorm.DB
	log logrus.FieldLogger
	now func() time.Time
}

func NewStatisticsService(db *gorm.DB, log logrus.FieldLogger) *StatisticsService {
	if log == nil {
		log = logger.Get()
	}
	return &StatisticsService{db: db, log: log, now: time.Now}
}

// IncrementStat bumps today's counter for the event, creating the row on first
// use. An empty templateID is the global counter.
func (s *StatisticsService) IncrementStat(ctx context.Context, eventType models.EventType, templateID string) error {
	today := s.now().UTC().Truncate(24 * time.Hour)
	db := s.db.WithContext(ctx)

	var stat models.Statistics
	err := scopeTemplate(db.Where("event_type = ? AND date = ?", eventType, today), templateID).First(&stat).Error
	if err == nil {
		return db.Model(&stat).UpdateColumn("count", gorm.Expr("count + 1")).Error
	}

	stat = models.Statistics{
		ID:         uuid.New().String(),
		EventType:  eventType,
		TemplateID: templateID,
		Date:       today,
		Count:      1,
	}
	if err := db.Create(&stat).Error; err != nil {
		// Another request created the row first.
		return scopeTemplate(db.Model(&models.Statistics{}).Where("event_type = ? AND date = ?", eventType, today), templateID).
			UpdateColumn("count", gorm.Expr("count + 1")).Error
	}
	return nil
}

// Record increments the global counter and, when templateID is set, the
// per-template one. Failures are logged and never surfaced to the caller.
func (s *StatisticsService) Record(ctx context.Context, eventType models.EventType, templateID string) {
	if err := s.IncrementStat(ctx, eventType, ""); err != nil {
		logger.LogWarn(s.log, "services", "StatisticsService.Record", "global counter", eventType, err)
	}
	if templateID == "" {
		return
	}
	if err := s.IncrementStat(ctx, eventType, templateID); err != nil {
		logger.LogWarn(s.log, "services", "StatisticsService.Record", "template counter", templateID, err)
	}
}

func (s *StatisticsService) total(ctx context.Context, eventType models.EventType, templateID string) (int64, error) {
	var n int64
	err := scopeTemplate(s.db.WithContext(ctx).Model(&models.Statistics{}).Where("event_type = ?", eventType), templateID).
		Select("COALESCE(SUM(count), 0)").
		Scan(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum %s: %w", eventType, err)
	}
	return n, nil
}

// GetSummary returns global totals for every event type.
func (s *StatisticsService) GetSummary(ctx context.Context) (*models.StatisticsSummary, error) {
	summary := &models.StatisticsSummary{}
	targets := map[models.EventType]*int64{
		models.EventExportPNG:    &summary.TotalPNGExports,
		models.EventExportPDF:    &summary.TotalPDFExports,
		models.EventAIGenerate:   &summary.TotalAIGenerated,
		models.EventTemplateCopy: &summary.TotalTemplateCopy,
	}
	for et, dst := range targets {
		n, err := s.total(ctx, et, "")
		if err != nil {
			return nil, err
		}
		*dst = n
	}
	return summary, nil
}

// GetStatsByTemplate returns statistics for a specific template
func (s *StatisticsService) GetStatsByTemplate(ctx context.Context, templateID string) (*models.TemplateStatistics, error) {
	stat := &models.TemplateStatistics{TemplateID: templateID}

	var t models.Template
	if err := s.db.WithContext(ctx).Unscoped().Select("name, deleted_at").Where("id = ?", templateID).First(&t).Error; err == nil {
		stat.TemplateName = t.Name
		if t.DeletedAt.Valid {
			stat.TemplateName += " (deleted)"
		}
	} else {
		stat.TemplateName = "(deleted template)"
	}

	var err error
	if stat.PNGExports, err = s.total(ctx, models.EventExportPNG, templateID); err != nil {
		return nil, err
	}
	if stat.PDFExports, err = s.total(ctx, models.EventExportPDF, templateID); err != nil {
		return nil, err
	}
	if stat.Copies, err = s.total(ctx, models.EventTemplateCopy, templateID); err != nil {
		return nil, err
	}
	return stat, nil
}

// GetTemplateStats returns statistics for every template with recorded events.
func (s *StatisticsService) GetTemplateStats(ctx context.Context) ([]models.TemplateStatistics, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Statistics{}).
		Where("template_id IS NOT NULL AND template_id != ''").
		Distinct("template_id").
		Pluck("template_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to get template IDs from stats: %w", err)
	}
	sort.Strings(ids)

	stats := make([]models.TemplateStatistics, 0, len(ids))
	for _, id := range ids {
		st, err := s.GetStatsByTemplate(ctx, id)
		if err != nil {
			return nil, err
		}
		stats = append(stats, *st)
	}
	return stats, nil
}

// GetTimeSeries returns per-day counts for the last days days.
func (s *StatisticsService) GetTimeSeries(ctx context.Context, eventType models.EventType, days int, templateID string) (*models.TimeSeriesData, error) {
	startDate := s.now().UTC().AddDate(0, 0, -days).Truncate(24 * time.Hour)

	var rows []models.Statistics
	if err := scopeTemplate(s.db.WithContext(ctx).Where("event_type = ? AND date >= ?", eventType, startDate), templateID).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get time series data: %w", err)
	}

	byDate := make(map[string]int64)
	for _, r := range rows {
		byDate[r.Date.UTC().Format("2006-01-02")] += r.Count
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	data := &models.TimeSeriesData{
		EventType:  string(eventType),
		DataPoints: make([]models.TimeSeriesPoint, 0, len(dates)),
	}
	for _, d := range dates {
		data.DataPoints = append(data.DataPoints, models.TimeSeriesPoint{Date: d, Count: byDate[d]})
		data.Total += byDate[d]
	}
	return data, nil
}

// GetTrends returns time-based statistics for all event types
func (s *StatisticsService) GetTrends(ctx context.Context, days int, templateID string) (map[string]*models.TimeSeriesData, error) {
	trends := make(map[string]*models.TimeSeriesData)
	for _, et := range models.EventTypes() {
		data, err := s.GetTimeSeries(ctx, et, days, templateID)
		if err != nil {
			return nil, err
		}
		trends[string(et)] = data
	}
	return trends, nil
}

func scopeTemplate(q *gorm.DB, templateID string) *gorm.DB {
	if templateID != "" {
		return q.Where("template_id = ?", templateID)
	}
	return q.Where("template_id IS NULL OR template_id = ''")
}

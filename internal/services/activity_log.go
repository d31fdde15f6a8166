package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"receiptmaker/internal/logger"
	"receiptmaker/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxLoggedBody = 10000

// sanitizeUTF8 ensures the string is valid UTF-8, replacing invalid bytes
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}

type ActivityLogService struct {
	db  *gorm.DB
	log logrus.FieldLogger
	wg  sync.WaitGroup
}

func NewActivityLogService(db *gorm.DB, log logrus.FieldLogger) *ActivityLogService {
	if log == nil {
		log = logger.Get()
	}
	return &ActivityLogService{db: db, log: log}
}

type LogFilter struct {
	Method string
	Path   string
	Limit  int
	Offset int
}

func (s *ActivityLogService) LogRequest(c *gin.Context, statusCode int, responseTime time.Duration) {
	clientIP := c.ClientIP()
	if clientIP == "" {
		clientIP = c.Request.RemoteAddr
	}

	queryParams := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		// Tokens in query strings (unsubscribe links) are not persisted.
		if key == "token" {
			continue
		}
		if len(values) > 0 {
			queryParams[key] = values[0]
		}
	}
	queryParamsJSON, _ := json.Marshal(queryParams)

	activityLog := &models.ActivityLog{
		ID:           uuid.New().String(),
		Method:       c.Request.Method,
		Path:         c.Request.URL.Path,
		UserAgent:    c.Request.UserAgent(),
		IPAddress:    clientIP,
		RequestBody:  sanitizeUTF8(c.GetString("request_body")),
		QueryParams:  string(queryParamsJSON),
		StatusCode:   statusCode,
		ResponseTime: responseTime.Milliseconds(),
		UserID:       c.GetString("user_id"),
		UserEmail:    c.GetString("user_email"),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.db.Create(activityLog).Error; err != nil {
			logger.LogWarn(s.log, "services", "ActivityLogService.LogRequest", "save activity log", activityLog.Path, err)
		}
	}()
}

// Wait blocks until pending log writes finish.
func (s *ActivityLogService) Wait() {
	s.wg.Wait()
}

func (s *ActivityLogService) ListLogs(ctx context.Context, f LogFilter) ([]models.ActivityLog, int64, error) {
	var logs []models.ActivityLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.ActivityLog{})
	if f.Method != "" {
		query = query.Where("method = ?", strings.ToUpper(f.Method))
	}
	if f.Path != "" {
		query = query.Where("path LIKE ?", "%"+f.Path+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count logs: %w", err)
	}

	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}
	if f.Offset > 0 {
		query = query.Offset(f.Offset)
	}
	if err := query.Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch logs: %w", err)
	}

	return logs, total, nil
}

// LoggingMiddleware records every request after it completes. Only JSON
// bodies are captured; uploads are logged without their payload.
func (s *ActivityLogService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		if c.Request.Body != nil && (c.Request.Method == "POST" || c.Request.Method == "PUT") &&
			strings.HasPrefix(c.ContentType(), "application/json") {
			bodyBytes, err := io.ReadAll(c.Request.Body)
			if err == nil {
				c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
				if len(bodyBytes) > maxLoggedBody {
					c.Set("request_body", fmt.Sprintf("[Large body: %d bytes] %s...", len(bodyBytes), string(bodyBytes[:100])))
				} else if len(bodyBytes) > 0 {
					c.Set("request_body", string(bodyBytes))
				}
			}
		}

		c.Next()

		s.LogRequest(c, c.Writer.Status(), time.Since(start))
	}
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"receiptmaker/internal/logger"
	"receiptmaker/internal/models"
	"receiptmaker/internal/receipt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultsInvalidator is notified after every admin write.
type DefaultsInvalidator interface {
	Invalidate(ctx context.Context) error
}

type SectionTemplateInput struct {
	SectionType receipt.Kind    `json:"section_type"`
	Name        string          `json:"name"`
	DefaultData json.RawMessage `json:"default_data"`
}

// SectionTemplateService is the admin CRUD for per-type section defaults and
// the repository behind the defaults cache.
type SectionTemplateService struct {
	db    *gorm.DB
	cache DefaultsInvalidator
	log   logrus.FieldLogger
}

func NewSectionTemplateService(db *gorm.DB, log logrus.FieldLogger) *SectionTemplateService {
	if log == nil {
		log = logger.Get()
	}
	return &SectionTemplateService{db: db, log: log}
}

// SetCache registers the cache to invalidate. The cache itself reads through
// this service, so it is attached after construction.
func (s *SectionTemplateService) SetCache(c DefaultsInvalidator) {
	s.cache = c
}

func (s *SectionTemplateService) List(ctx context.Context) ([]models.SectionTemplate, error) {
	var out []models.SectionTemplate
	if err := s.db.WithContext(ctx).Order("section_type ASC").Find(&out).Error; err != nil {
		return nil, dbError("list section templates", err)
	}
	return out, nil
}

func (s *SectionTemplateService) Create(ctx context.Context, in SectionTemplateInput) (*models.SectionTemplate, error) {
	t := &models.SectionTemplate{ID: uuid.New().String()}
	if err := fillSectionTemplate(t, in); err != nil {
		return nil, err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.SectionTemplate{}).Where("section_type = ?", t.SectionType).Count(&count).Error; err != nil {
		return nil, dbError("check section type", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("a default for %s already exists: %w", t.SectionType, ErrConflict)
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, dbError("create section template", err)
	}
	s.invalidate(ctx)
	return t, nil
}

func (s *SectionTemplateService) Update(ctx context.Context, id string, in SectionTemplateInput) (*models.SectionTemplate, error) {
	var t models.SectionTemplate
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, dbError("get section template", err)
	}
	if in.SectionType == "" {
		in.SectionType = t.SectionType
	}
	if in.SectionType != t.SectionType {
		return nil, invalid("section_type", "cannot be changed")
	}
	if err := fillSectionTemplate(&t, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(&t).Error; err != nil {
		return nil, dbError("update section template", err)
	}
	s.invalidate(ctx)
	return &t, nil
}

func (s *SectionTemplateService) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.SectionTemplate{})
	if res.Error != nil {
		return dbError("delete section template", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete section template: %w", ErrNotFound)
	}
	s.invalidate(ctx)
	return nil
}

// LoadDefaults returns the stored default per kind. Rows that no longer decode
// are skipped so the hardcoded default applies.
func (s *SectionTemplateService) LoadDefaults(ctx context.Context) (map[receipt.Kind]receipt.Section, error) {
	rows, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[receipt.Kind]receipt.Section, len(rows))
	for i := range rows {
		sec, err := rows[i].Section()
		if err != nil || sec.Kind() != rows[i].SectionType {
			if err == nil {
				err = fmt.Errorf("stored type %s does not match %s", sec.Kind(), rows[i].SectionType)
			}
			logger.LogWarn(s.log, "services", "SectionTemplateService.LoadDefaults", "decode default", rows[i].ID, err)
			continue
		}
		out[rows[i].SectionType] = sec
	}
	return out, nil
}

func (s *SectionTemplateService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		logger.LogError(s.log, "services", "SectionTemplateService.invalidate", "invalidate defaults cache", nil, err)
	}
}

// fillSectionTemplate validates DefaultData against its section type and
// stores it without an id.
func fillSectionTemplate(t *models.SectionTemplate, in SectionTemplateInput) error {
	if !in.SectionType.Valid() {
		return invalid("section_type", "%q is not a known section type", in.SectionType)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(in.DefaultData, &fields); err != nil || fields == nil {
		return invalid("default_data", "must be a JSON object")
	}
	typ, _ := json.Marshal(in.SectionType)
	if raw, ok := fields["type"]; ok && string(raw) != string(typ) {
		return invalid("default_data", "type does not match section_type")
	}
	fields["type"] = typ
	delete(fields, "id")
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode default data: %w", err)
	}

	sec, err := receipt.Decoder{NewID: receipt.NewSectionID}.DecodeSection(raw)
	if err != nil {
		return invalid("default_data", "%s", err.Error())
	}
	sec.SetID("")
	data, err := json.Marshal(sec)
	if err != nil {
		return fmt.Errorf("encode default data: %w", err)
	}

	t.SectionType = in.SectionType
	t.Name = strings.TrimSpace(in.Name)
	if t.Name == "" {
		t.Name = string(in.SectionType)
	}
	t.DefaultData = data
	return nil
}

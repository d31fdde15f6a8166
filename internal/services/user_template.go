package services

import (
	"context"
	"encoding/json"
	"fmt"

	"receiptmaker/internal/models"
	"receiptmaker/internal/receipt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserTemplateInput is the payload for a user's saved document.
type UserTemplateInput struct {
	Name     string          `json:"name"`
	Sections json.RawMessage `json:"sections"`
	Settings json.RawMessage `json:"settings"`
}

// UserTemplateService stores per-user copies. Every query is scoped by user
// id; another user's row is reported as not found.
type UserTemplateService struct {
	db    *gorm.DB
	stats *StatisticsService
}

func NewUserTemplateService(db *gorm.DB, stats *StatisticsService) *UserTemplateService {
	return &UserTemplateService{db: db, stats: stats}
}

func (s *UserTemplateService) List(ctx context.Context, userID string) ([]models.UserTemplate, error) {
	var out []models.UserTemplate
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("updated_at DESC").Find(&out).Error; err != nil {
		return nil, dbError("list user templates", err)
	}
	return out, nil
}

func (s *UserTemplateService) Get(ctx context.Context, userID, id string) (*models.UserTemplate, error) {
	var t models.UserTemplate
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&t).Error; err != nil {
		return nil, dbError("get user template", err)
	}
	return &t, nil
}

func (s *UserTemplateService) Create(ctx context.Context, userID string, in UserTemplateInput) (*models.UserTemplate, error) {
	t := &models.UserTemplate{ID: uuid.New().String(), UserID: userID}
	if err := fillUserTemplate(t, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, dbError("create user template", err)
	}
	return t, nil
}

// Update replaces name and document. Last write wins.
func (s *UserTemplateService) Update(ctx context.Context, userID, id string, in UserTemplateInput) (*models.UserTemplate, error) {
	t, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := fillUserTemplate(t, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(t).Error; err != nil {
		return nil, dbError("update user template", err)
	}
	return t, nil
}

func (s *UserTemplateService) Delete(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.UserTemplate{})
	if res.Error != nil {
		return dbError("delete user template", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete user template: %w", ErrNotFound)
	}
	return nil
}

// CopyFromTemplate saves a private copy of a library template. The copy gets
// fresh section ids and the source template is never modified.
func (s *UserTemplateService) CopyFromTemplate(ctx context.Context, userID, templateID, name string) (*models.UserTemplate, error) {
	var src models.Template
	if err := s.db.WithContext(ctx).Where("id = ?", templateID).First(&src).Error; err != nil {
		return nil, dbError("load source template", err)
	}
	doc, err := src.Document()
	if err != nil {
		return nil, fmt.Errorf("copy template %s: %w", templateID, err)
	}
	doc = doc.Clone()
	for _, sec := range doc.Sections {
		sec.SetID(receipt.NewSectionID(sec.Kind()))
	}

	if name == "" {
		name = src.Name
	}
	name, err = validateName(name)
	if err != nil {
		return nil, err
	}
	sections, settings, err := models.EncodeDocument(doc)
	if err != nil {
		return nil, err
	}

	derived := src.ID
	t := &models.UserTemplate{
		ID:            uuid.New().String(),
		UserID:        userID,
		Name:          name,
		DerivedFromID: &derived,
		Sections:      sections,
		Settings:      settings,
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, dbError("create user template", err)
	}
	if s.stats != nil {
		s.stats.Record(ctx, models.EventTemplateCopy, src.ID)
	}
	return t, nil
}

func fillUserTemplate(t *models.UserTemplate, in UserTemplateInput) error {
	name, err := validateName(in.Name)
	if err != nil {
		return err
	}
	doc, err := decodeDocumentInput(in.Sections, in.Settings)
	if err != nil {
		return err
	}
	sections, settings, err := models.EncodeDocument(doc)
	if err != nil {
		return err
	}
	t.Name = name
	t.Sections = sections
	t.Settings = settings
	return nil
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"receiptmaker/internal/models"
	"receiptmaker/internal/receipt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

const maxNameLength = 120

// TemplateInput is the admin payload for creating or replacing a template.
type TemplateInput struct {
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	Tier        models.Tier     `json:"tier"`
	Sections    json.RawMessage `json:"sections"`
	Settings    json.RawMessage `json:"settings"`
}

// TemplateService manages the curated template library.
type TemplateService struct {
	db *gorm.DB
}

func NewTemplateService(db *gorm.DB) *TemplateService {
	return &TemplateService{db: db}
}

func (s *TemplateService) List(ctx context.Context) ([]models.Template, error) {
	var templates []models.Template
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&templates).Error; err != nil {
		return nil, dbError("list templates", err)
	}
	return templates, nil
}

func (s *TemplateService) Get(ctx context.Context, id string) (*models.Template, error) {
	var t models.Template
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, dbError("get template", err)
	}
	return &t, nil
}

func (s *TemplateService) GetBySlug(ctx context.Context, slug string) (*models.Template, error) {
	var t models.Template
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&t).Error; err != nil {
		return nil, dbError("get template by slug", err)
	}
	return &t, nil
}

func (s *TemplateService) Create(ctx context.Context, in TemplateInput) (*models.Template, error) {
	t := &models.Template{ID: uuid.New().String()}
	if err := s.fill(t, in); err != nil {
		return nil, err
	}
	if err := s.ensureSlugFree(ctx, t.Slug, ""); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, dbError("create template", err)
	}
	return t, nil
}

// Update replaces the template wholesale. Concurrent writers are last write wins.
func (s *TemplateService) Update(ctx context.Context, id string, in TemplateInput) (*models.Template, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.fill(t, in); err != nil {
		return nil, err
	}
	if err := s.ensureSlugFree(ctx, t.Slug, t.ID); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(t).Error; err != nil {
		return nil, dbError("update template", err)
	}
	return t, nil
}

func (s *TemplateService) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Template{})
	if res.Error != nil {
		return dbError("delete template", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete template: %w", ErrNotFound)
	}
	return nil
}

func (s *TemplateService) fill(t *models.Template, in TemplateInput) error {
	name, err := validateName(in.Name)
	if err != nil {
		return err
	}
	slug := strings.TrimSpace(in.Slug)
	if !slugPattern.MatchString(slug) {
		return invalid("slug", "must be lowercase letters, digits and single hyphens")
	}
	tier := in.Tier
	switch tier {
	case "":
		tier = models.TierFree
	case models.TierFree, models.TierPremium:
	default:
		return invalid("tier", "must be free or premium")
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
	t.Slug = slug
	t.Description = strings.TrimSpace(in.Description)
	t.Tier = tier
	t.Sections = sections
	t.Settings = settings
	return nil
}

// ensureSlugFree includes soft-deleted rows because the unique index does.
func (s *TemplateService) ensureSlugFree(ctx context.Context, slug, selfID string) error {
	var count int64
	q := s.db.WithContext(ctx).Unscoped().Model(&models.Template{}).Where("slug = ?", slug)
	if selfID != "" {
		q = q.Where("id <> ?", selfID)
	}
	if err := q.Count(&count).Error; err != nil {
		return dbError("check slug", err)
	}
	if count > 0 {
		return fmt.Errorf("slug %q is already taken: %w", slug, ErrConflict)
	}
	return nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > maxNameLength {
		return "", invalid("name", "must be between 1 and %d characters", maxNameLength)
	}
	return name, nil
}

// decodeDocumentInput validates untrusted sections and settings. Missing
// settings take their defaults.
func decodeDocumentInput(sections, settings json.RawMessage) (receipt.Document, error) {
	secs, err := receipt.DecodeSections(sections)
	if err != nil {
		return receipt.Document{}, invalid("sections", "%s", err.Error())
	}
	st := receipt.DefaultSettings()
	if len(settings) > 0 && string(settings) != "null" {
		var in receipt.TemplateSettings
		if err := json.Unmarshal(settings, &in); err != nil {
			return receipt.Document{}, invalid("settings", "is malformed: %s", err.Error())
		}
		st = in.WithDefaults()
	}
	if err := receipt.ValidateSettings(st); err != nil {
		return receipt.Document{}, invalid("settings", "%s", err.Error())
	}
	return receipt.Document{Sections: secs, Settings: st}, nil
}

package models

import (
	"encoding/json"
	"fmt"
	"time"

	"receiptmaker/internal/receipt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Tier represents the plan required to export a template without watermark
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Template is a named, curated receipt document in the public library.
type Template struct {
	ID          string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name        string         `gorm:"type:varchar(120);not null" json:"name"`
	Slug        string         `gorm:"type:varchar(160);uniqueIndex;not null" json:"slug"`
	Description string         `gorm:"type:text" json:"description"`
	Tier        Tier           `gorm:"type:varchar(20);default:'free'" json:"tier"`
	Sections    datatypes.JSON `gorm:"not null" json:"sections"`
	Settings    datatypes.JSON `json:"settings"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Template) TableName() string {
	return "templates"
}

func (t *Template) Document() (receipt.Document, error) {
	return decodeStored(t.Sections, t.Settings)
}

// UserTemplate is a user's saved copy. It never writes back to Template.
type UserTemplate struct {
	ID            string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID        string         `gorm:"type:varchar(191);index;not null" json:"user_id"`
	Name          string         `gorm:"type:varchar(120);not null" json:"name"`
	DerivedFromID *string        `gorm:"type:varchar(36);index" json:"derived_from_id,omitempty"`
	Sections      datatypes.JSON `gorm:"not null" json:"sections"`
	Settings      datatypes.JSON `json:"settings"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (UserTemplate) TableName() string {
	return "user_templates"
}

func (t *UserTemplate) Document() (receipt.Document, error) {
	return decodeStored(t.Sections, t.Settings)
}

// SectionTemplate holds the admin-configured default payload for one section
// type. DefaultData is a section object without an id.
type SectionTemplate struct {
	ID          string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	SectionType receipt.Kind   `gorm:"type:varchar(32);uniqueIndex;not null" json:"section_type"`
	Name        string         `gorm:"type:varchar(120)" json:"name"`
	DefaultData datatypes.JSON `gorm:"not null" json:"default_data"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (SectionTemplate) TableName() string {
	return "section_templates"
}

// Section decodes DefaultData without re-validating it. Writes are validated
// by the service.
func (s *SectionTemplate) Section() (receipt.Section, error) {
	sec, err := receipt.UnmarshalSection(s.DefaultData)
	if err != nil {
		return nil, fmt.Errorf("section template %s: %w", s.ID, err)
	}
	return sec, nil
}

// EncodeDocument splits a document into the JSON columns stored on templates.
func EncodeDocument(doc receipt.Document) (sections, settings datatypes.JSON, err error) {
	sections, err = json.Marshal(doc.Sections)
	if err != nil {
		return nil, nil, fmt.Errorf("encode sections: %w", err)
	}
	settings, err = json.Marshal(doc.Settings)
	if err != nil {
		return nil, nil, fmt.Errorf("encode settings: %w", err)
	}
	return sections, settings, nil
}

func decodeStored(sections, settings datatypes.JSON) (receipt.Document, error) {
	doc := receipt.Document{Settings: receipt.DefaultSettings()}
	if len(sections) > 0 {
		var ss receipt.Sections
		if err := json.Unmarshal(sections, &ss); err != nil {
			return receipt.Document{}, fmt.Errorf("decode sections: %w", err)
		}
		doc.Sections = ss
	}
	if len(settings) > 0 && string(settings) != "null" {
		var st receipt.TemplateSettings
		if err := json.Unmarshal(settings, &st); err != nil {
			return receipt.Document{}, fmt.Errorf("decode settings: %w", err)
		}
		doc.Settings = st.WithDefaults()
	}
	return doc, nil
}

package models

import (
	"time"

	"gorm.io/gorm"
)

type BlogPost struct {
	ID          string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Slug        string         `gorm:"type:varchar(160);uniqueIndex;not null" json:"slug"`
	Title       string         `gorm:"type:varchar(255);not null" json:"title"`
	Excerpt     string         `gorm:"type:text" json:"excerpt"`
	Content     string         `gorm:"type:text" json:"content"`
	CoverImage  string         `gorm:"type:text" json:"cover_image,omitempty"`
	Published   bool           `gorm:"default:false;index" json:"published"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (BlogPost) TableName() string {
	return "blog_posts"
}

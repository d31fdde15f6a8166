package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"receiptmaker/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BlogPostInput struct {
	Slug       string `json:"slug"`
	Title      string `json:"title"`
	Excerpt    string `json:"excerpt"`
	Content    string `json:"content"`
	CoverImage string `json:"cover_image"`
	Published  bool   `json:"published"`
}

type BlogService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewBlogService(db *gorm.DB) *BlogService {
	return &BlogService{db: db, now: time.Now}
}

// ListPublished returns published posts, newest first.
func (s *BlogService) ListPublished(ctx context.Context, limit, offset int) ([]models.BlogPost, int64, error) {
	var posts []models.BlogPost
	var total int64
	q := s.db.WithContext(ctx).Model(&models.BlogPost{}).Where("published = ?", true)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, dbError("count blog posts", err)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Order("published_at DESC").Select("id, slug, title, excerpt, cover_image, published, published_at, created_at, updated_at").Find(&posts).Error; err != nil {
		return nil, 0, dbError("list blog posts", err)
	}
	return posts, total, nil
}

func (s *BlogService) ListAll(ctx context.Context) ([]models.BlogPost, error) {
	var posts []models.BlogPost
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&posts).Error; err != nil {
		return nil, dbError("list blog posts", err)
	}
	return posts, nil
}

// GetPublishedBySlug hides drafts from the public site.
func (s *BlogService) GetPublishedBySlug(ctx context.Context, slug string) (*models.BlogPost, error) {
	var p models.BlogPost
	if err := s.db.WithContext(ctx).Where("slug = ? AND published = ?", slug, true).First(&p).Error; err != nil {
		return nil, dbError("get blog post", err)
	}
	return &p, nil
}

func (s *BlogService) Create(ctx context.Context, in BlogPostInput) (*models.BlogPost, error) {
	p := &models.BlogPost{ID: uuid.New().String()}
	if err := s.fill(ctx, p, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, dbError("create blog post", err)
	}
	return p, nil
}

func (s *BlogService) Update(ctx context.Context, id string, in BlogPostInput) (*models.BlogPost, error) {
	var p models.BlogPost
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, dbError("get blog post", err)
	}
	if err := s.fill(ctx, &p, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(&p).Error; err != nil {
		return nil, dbError("update blog post", err)
	}
	return &p, nil
}

func (s *BlogService) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.BlogPost{})
	if res.Error != nil {
		return dbError("delete blog post", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete blog post: %w", ErrNotFound)
	}
	return nil
}

// fill keeps the first publication time when a post is re-published.
func (s *BlogService) fill(ctx context.Context, p *models.BlogPost, in BlogPostInput) error {
	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > 255 {
		return invalid("title", "must be between 1 and 255 characters")
	}
	slug := strings.TrimSpace(in.Slug)
	if !slugPattern.MatchString(slug) {
		return invalid("slug", "must be lowercase letters, digits and single hyphens")
	}
	if slug != p.Slug {
		var count int64
		if err := s.db.WithContext(ctx).Unscoped().Model(&models.BlogPost{}).Where("slug = ? AND id <> ?", slug, p.ID).Count(&count).Error; err != nil {
			return dbError("check blog slug", err)
		}
		if count > 0 {
			return fmt.Errorf("slug %q is taken: %w", slug, ErrConflict)
		}
	}

	p.Slug = slug
	p.Title = title
	p.Excerpt = strings.TrimSpace(in.Excerpt)
	p.Content = in.Content
	p.CoverImage = strings.TrimSpace(in.CoverImage)
	p.Published = in.Published
	if in.Published && p.PublishedAt == nil {
		now := s.now()
		p.PublishedAt = &now
	}
	return nil
}

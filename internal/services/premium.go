package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"receiptmaker/internal/models"

	"gorm.io/gorm"
)

// PremiumStatus is the billing state mirrored onto the users table.
type PremiumStatus struct {
	IsPremium    bool       `json:"is_premium"`
	Plan         string     `json:"plan,omitempty"`
	PlanRenewsAt *time.Time `json:"plan_renews_at,omitempty"`
}

type PremiumService struct {
	db *gorm.DB
}

func NewPremiumService(db *gorm.DB) *PremiumService {
	return &PremiumService{db: db}
}

// Status reports the user's plan. Unknown users are not premium.
func (s *PremiumService) Status(ctx context.Context, userID string) (PremiumStatus, error) {
	if userID == "" {
		return PremiumStatus{}, nil
	}
	var u models.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PremiumStatus{}, nil
	}
	if err != nil {
		return PremiumStatus{}, fmt.Errorf("load premium status: %w", err)
	}
	return PremiumStatus{IsPremium: u.IsPremium, Plan: u.Plan, PlanRenewsAt: u.PlanRenewsAt}, nil
}

// EnsureUser records the identity on first sight without touching plan fields.
func (s *PremiumService) EnsureUser(ctx context.Context, id, email, name string) error {
	u := models.User{ID: id, Email: email, Name: name}
	err := s.db.WithContext(ctx).Where(models.User{ID: id}).
		Assign(models.User{Email: email, Name: name}).
		FirstOrCreate(&u).Error
	if err != nil {
		return dbError("ensure user", err)
	}
	return nil
}

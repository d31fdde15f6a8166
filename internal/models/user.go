package models

import "time"

// User mirrors the identity and plan state owned by the auth and billing
// providers. Rows are created on first authenticated request.
type User struct {
	ID           string     `gorm:"type:varchar(191);primaryKey" json:"id"`
	Email        string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name         string     `gorm:"type:varchar(255)" json:"name"`
	IsPremium    bool       `gorm:"default:false" json:"is_premium"`
	Plan         string     `gorm:"type:varchar(50)" json:"plan,omitempty"`
	PlanRenewsAt *time.Time `json:"plan_renews_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// AppSetting is a key/value row for global toggles.
type AppSetting struct {
	Key       string    `gorm:"type:varchar(100);primaryKey" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AppSetting) TableName() string {
	return "app_settings"
}

const SettingCampaignEnabled = "campaign_enabled"

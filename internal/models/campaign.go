package models

import "time"

// EmailLead is an address captured from the public site.
type EmailLead struct {
	ID             string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email          string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Source         string     `gorm:"type:varchar(100)" json:"source"`
	Unsubscribed   bool       `gorm:"default:false;index" json:"unsubscribed"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at,omitempty"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (EmailLead) TableName() string {
	return "email_leads"
}

// CampaignStep is one mail of the drip sequence, sent DelayDays after capture.
type CampaignStep struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Position  int       `gorm:"not null;index" json:"position"`
	DelayDays int       `gorm:"not null;default:0" json:"delay_days"`
	Subject   string    `gorm:"type:varchar(255);not null" json:"subject"`
	BodyHTML  string    `gorm:"type:text;not null" json:"body_html"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CampaignStep) TableName() string {
	return "campaign_steps"
}

// CampaignSend records a delivered step. The (lead, step) pair is unique.
type CampaignSend struct {
	ID     string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	LeadID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_campaign_sends_lead_step" json:"lead_id"`
	StepID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_campaign_sends_lead_step" json:"step_id"`
	SentAt time.Time `json:"sent_at"`
}

func (CampaignSend) TableName() string {
	return "campaign_sends"
}

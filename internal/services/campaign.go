package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"receiptmaker/internal/logger"
	"receiptmaker/internal/models"

	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	campaignLockKey = "lock:campaign-run"
	campaignLockTTL = 10 * time.Minute
)

// CampaignStepInput is the admin payload for a drip step.
type CampaignStepInput struct {
	Position  int    `json:"position" validate:"gte=0"`
	DelayDays int    `json:"delay_days" validate:"gte=0,lte=365"`
	Subject   string `json:"subject" validate:"required,max=255"`
	BodyHTML  string `json:"body_html" validate:"required"`
	IsActive  *bool  `json:"is_active"`
}

// RunReport summarises one campaign run.
type RunReport struct {
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
}

type CampaignOptions struct {
	PublicBaseURL  string
	DefaultEnabled bool
	// Locker serialises runs across replicas. Nil runs without a lock.
	Locker *redislock.Client
}

// CampaignService captures leads and sends the drip sequence.
type CampaignService struct {
	db       *gorm.DB
	mailer   Mailer
	signer   *UnsubscribeSigner
	opts     CampaignOptions
	validate *validator.Validate
	log      logrus.FieldLogger
}

func NewCampaignService(db *gorm.DB, mailer Mailer, signer *UnsubscribeSigner, opts CampaignOptions, log logrus.FieldLogger) *CampaignService {
	if log == nil {
		log = logger.Get()
	}
	return &CampaignService{
		db:       db,
		mailer:   mailer,
		signer:   signer,
		opts:     opts,
		validate: validator.New(),
		log:      log,
	}
}

// CaptureEmail records a lead. Capturing an existing address is a no-op and
// does not resubscribe it.
func (s *CampaignService) CaptureEmail(ctx context.Context, email, source string) (*models.EmailLead, error) {
	email = normaliseEmail(email)
	if err := s.validate.Var(email, "required,email,max=255"); err != nil {
		return nil, invalid("email", "must be a valid email address")
	}

	lead := models.EmailLead{ID: uuid.New().String(), Email: email, Source: strings.TrimSpace(source)}
	if err := s.db.WithContext(ctx).Where(models.EmailLead{Email: email}).FirstOrCreate(&lead).Error; err != nil {
		return nil, dbError("capture email", err)
	}
	return &lead, nil
}

// Unsubscribe verifies the token before writing. Unknown addresses succeed
// silently.
func (s *CampaignService) Unsubscribe(ctx context.Context, token string) (string, error) {
	email, err := s.signer.Verify(token)
	if err != nil {
		return "", invalid("token", "%s", err.Error())
	}
	now := time.Now()
	err = s.db.WithContext(ctx).Model(&models.EmailLead{}).
		Where("email = ? AND unsubscribed = ?", email, false).
		Updates(map[string]any{"unsubscribed": true, "unsubscribed_at": now}).Error
	if err != nil {
		return "", dbError("unsubscribe", err)
	}
	return email, nil
}

func (s *CampaignService) Enabled(ctx context.Context) (bool, error) {
	var setting models.AppSetting
	err := s.db.WithContext(ctx).Where(&models.AppSetting{Key: models.SettingCampaignEnabled}).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.opts.DefaultEnabled, nil
	}
	if err != nil {
		return false, dbError("load campaign toggle", err)
	}
	return strconv.ParseBool(setting.Value)
}

func (s *CampaignService) SetEnabled(ctx context.Context, enabled bool) error {
	setting := models.AppSetting{Key: models.SettingCampaignEnabled, Value: strconv.FormatBool(enabled)}
	if err := s.db.WithContext(ctx).Save(&setting).Error; err != nil {
		return dbError("save campaign toggle", err)
	}
	return nil
}

func (s *CampaignService) ListSteps(ctx context.Context) ([]models.CampaignStep, error) {
	var steps []models.CampaignStep
	if err := s.db.WithContext(ctx).Order("position ASC, created_at ASC").Find(&steps).Error; err != nil {
		return nil, dbError("list campaign steps", err)
	}
	return steps, nil
}

func (s *CampaignService) CreateStep(ctx context.Context, in CampaignStepInput) (*models.CampaignStep, error) {
	step := &models.CampaignStep{ID: uuid.New().String(), IsActive: true}
	if err := s.fillStep(step, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(step).Error; err != nil {
		return nil, dbError("create campaign step", err)
	}
	return step, nil
}

func (s *CampaignService) UpdateStep(ctx context.Context, id string, in CampaignStepInput) (*models.CampaignStep, error) {
	var step models.CampaignStep
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&step).Error; err != nil {
		return nil, dbError("get campaign step", err)
	}
	if err := s.fillStep(&step, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(&step).Error; err != nil {
		return nil, dbError("update campaign step", err)
	}
	return &step, nil
}

func (s *CampaignService) DeleteStep(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.CampaignStep{})
	if res.Error != nil {
		return dbError("delete campaign step", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete campaign step: %w", ErrNotFound)
	}
	return nil
}

func (s *CampaignService) fillStep(step *models.CampaignStep, in CampaignStepInput) error {
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return invalid(strings.ToLower(verrs[0].Field()), "failed %s", verrs[0].Tag())
		}
		return invalid("", "%s", err.Error())
	}
	step.Position = in.Position
	step.DelayDays = in.DelayDays
	step.Subject = strings.TrimSpace(in.Subject)
	step.BodyHTML = in.BodyHTML
	if in.IsActive != nil {
		step.IsActive = *in.IsActive
	}
	return nil
}

// RunDueSteps sends every active step to each subscribed lead whose capture is
// at least DelayDays old and who has not received that step yet.
func (s *CampaignService) RunDueSteps(ctx context.Context, now time.Time) (*RunReport, error) {
	enabled, err := s.Enabled(ctx)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return &RunReport{Skipped: true, Reason: "campaign disabled"}, nil
	}

	if s.opts.Locker != nil {
		lock, err := s.opts.Locker.Obtain(ctx, campaignLockKey, campaignLockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			return &RunReport{Skipped: true, Reason: "another run is in progress"}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("obtain campaign lock: %w", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				logger.LogWarn(s.log, "services", "CampaignService.RunDueSteps", "release lock", nil, err)
			}
		}()
	}

	var steps []models.CampaignStep
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("position ASC, created_at ASC").Find(&steps).Error; err != nil {
		return nil, dbError("load campaign steps", err)
	}

	report := &RunReport{}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		cutoff := now.Add(-time.Duration(step.DelayDays) * 24 * time.Hour)

		var leads []models.EmailLead
		err := s.db.WithContext(ctx).
			Where("unsubscribed = ? AND created_at <= ?", false, cutoff).
			Where("NOT EXISTS (SELECT 1 FROM campaign_sends cs WHERE cs.lead_id = email_leads.id AND cs.step_id = ?)", step.ID).
			Order("created_at ASC").
			Find(&leads).Error
		if err != nil {
			return report, dbError("load due leads", err)
		}

		for _, lead := range leads {
			if err := s.sendStep(ctx, step, lead, now); err != nil {
				report.Failed++
				logger.LogError(s.log, "services", "CampaignService.RunDueSteps", "send step", logrus.Fields{"stepId": step.ID, "leadId": lead.ID}, err)
				continue
			}
			report.Sent++
		}
	}
	return report, nil
}

// sendStep records the send only after the mailer accepted the message.
func (s *CampaignService) sendStep(ctx context.Context, step models.CampaignStep, lead models.EmailLead, now time.Time) error {
	unsubscribeURL := s.UnsubscribeURL(lead.Email)
	body := strings.NewReplacer("{{unsubscribe_url}}", unsubscribeURL, "{{email}}", lead.Email).Replace(step.BodyHTML)
	if !strings.Contains(step.BodyHTML, "{{unsubscribe_url}}") {
		body += fmt.Sprintf(`<p style="font-size:12px;color:#888"><a href="%s">Unsubscribe</a></p>`, unsubscribeURL)
	}

	if err := s.mailer.Send(ctx, Mail{To: lead.Email, Subject: step.Subject, HTML: body, UnsubscribeURL: unsubscribeURL}); err != nil {
		return err
	}
	send := models.CampaignSend{ID: uuid.New().String(), LeadID: lead.ID, StepID: step.ID, SentAt: now}
	if err := s.db.WithContext(ctx).Create(&send).Error; err != nil {
		return dbError("record campaign send", err)
	}
	return nil
}

func (s *CampaignService) UnsubscribeURL(email string) string {
	base := strings.TrimRight(s.opts.PublicBaseURL, "/")
	return base + "/api/v1/unsubscribe?token=" + url.QueryEscape(s.signer.Token(email))
}

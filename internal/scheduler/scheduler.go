// Package scheduler triggers the drip campaign from inside the process when
// no external cron calls POST /cron/campaigns.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"receiptmaker/internal/logger"
	"receiptmaker/internal/services"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const runTimeout = 10 * time.Minute

// CampaignRunner is satisfied by *services.CampaignService.
type CampaignRunner interface {
	RunDueSteps(ctx context.Context, now time.Time) (*services.RunReport, error)
}

type Scheduler struct {
	cron   *cron.Cron
	runner CampaignRunner
	log    logrus.FieldLogger
	now    func() time.Time
}

// New registers the campaign job on schedule (standard 5-field cron spec).
// Overlapping runs are skipped.
func New(schedule string, runner CampaignRunner, log logrus.FieldLogger) (*Scheduler, error) {
	if log == nil {
		log = logger.Get()
	}
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		runner: runner,
		log:    log,
		now:    time.Now,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid campaign schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.WithField("entries", len(s.cron.Entries())).Info("campaign scheduler started")
}

// Stop prevents new runs and waits for a running job until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("campaign scheduler stopped before the running job finished")
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	report, err := s.runner.RunDueSteps(ctx, s.now())
	if err != nil {
		logger.LogError(s.log, "scheduler", "Scheduler.run", "campaign run", nil, err)
		return
	}
	s.log.WithFields(logrus.Fields{
		"module":  "scheduler",
		"skipped": report.Skipped,
		"reason":  report.Reason,
		"sent":    report.Sent,
		"failed":  report.Failed,
	}).Info("campaign run finished")
}

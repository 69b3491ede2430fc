package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/avionyx/farmhand/internal/config"
	"github.com/avionyx/farmhand/internal/service/alerts"
	"github.com/avionyx/farmhand/internal/service/workflow"
)

// Scheduler manages scheduled tasks: the nightly alert run and the hourly
// sweep of abandoned workflow sessions.
type Scheduler struct {
	cron      *cron.Cron
	alertsSvc *alerts.Service
	sessions  *workflow.SessionManager
	cfg       config.Config
	logger    *zap.Logger
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(cfg config.Config, alertsSvc *alerts.Service, sessions *workflow.SessionManager, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Alerts.Timezone)
	if err != nil {
		logger.Warn("invalid timezone, falling back to local",
			zap.String("timezone", cfg.Alerts.Timezone), zap.Error(err))
		loc = time.Local
	}

	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		alertsSvc: alertsSvc,
		sessions:  sessions,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler")

	if _, err := s.cron.AddFunc(s.cfg.Alerts.CronSchedule, s.runAlerts); err != nil {
		s.logger.Error("failed to schedule alert run", zap.Error(err))
	}
	if _, err := s.cron.AddFunc("0 * * * *", s.sweepSessions); err != nil {
		s.logger.Error("failed to schedule session sweep", zap.Error(err))
	}

	s.cron.Start()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}

func (s *Scheduler) runAlerts() {
	s.logger.Info("running alert checks")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	s.alertsSvc.Run(ctx)
}

func (s *Scheduler) sweepSessions() {
	if expired := s.sessions.ExpireIdle(s.cfg.Workflow.SessionMaxIdle); expired > 0 {
		s.logger.Info("expired idle workflow sessions", zap.Int("count", expired))
	}
}

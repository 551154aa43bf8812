package shift

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"register-shift-service/internal/auth"
	"register-shift-service/internal/config"
	"register-shift-service/internal/logger"
)

const scheduledRunTimeout = 30 * time.Second

// Scheduler reconciles speculatively so the fallback cache stays fresh,
// typically right after the calendar day rolls over.
type Scheduler struct {
	cfg         config.SchedulerConfig
	coordinator *Coordinator
	credential  string
	cron        *cron.Cron
	entryID     cron.EntryID
}

func NewScheduler(cfg config.SchedulerConfig, coordinator *Coordinator, credential string, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cfg:         cfg,
		coordinator: coordinator,
		credential:  credential,
		cron:        cron.New(cron.WithLocation(loc)),
	}
}

func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		logger.Log.Info("Scheduler is disabled")
		return nil
	}

	logger.Log.Info("Starting scheduler",
		zap.String("interval", s.cfg.Interval),
		zap.String("user_id", s.cfg.UserID),
	)

	id, err := s.cron.AddFunc(s.cfg.Interval, func() {
		s.triggerReconcile()
	})
	if err != nil {
		logger.Log.Error("Failed to schedule job", zap.Error(err))
		return err
	}

	s.entryID = id
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	logger.Log.Info("Stopped scheduler")
}

func (s *Scheduler) triggerReconcile() Decision {
	ctx, cancel := context.WithTimeout(context.Background(), scheduledRunTimeout)
	defer cancel()
	if s.credential != "" {
		ctx = auth.WithCredential(ctx, s.credential)
	}

	decision, err := s.coordinator.Reconcile(ctx, s.cfg.UserID)
	if err != nil {
		logger.Log.Error("Scheduled reconcile failed", zap.Error(err))
		return decision
	}
	logger.Log.Info("Scheduled reconcile",
		zap.String("user_id", s.cfg.UserID),
		zap.Stringer("decision", decision),
	)
	return decision
}

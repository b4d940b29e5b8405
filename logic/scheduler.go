package logic

import (
	"time"

	"github.com/go-co-op/gocron"
	"wx_herald/shared"
)

// IScheduler owns the recurring work: forecast slot checks, alert checks,
// and retry queue drains.
type IScheduler interface {
	Start()
	Stop()
}

type scheduler struct {
	cfg       *shared.Config
	logger    shared.ILogger
	publisher IPublisher
	delivery  IDelivery
	sched     *gocron.Scheduler
}

func NewScheduler(cfg *shared.Config, logger shared.ILogger,
	publisher IPublisher, delivery IDelivery) IScheduler {
	return &scheduler{
		cfg:       cfg,
		logger:    logger,
		publisher: publisher,
		delivery:  delivery,
		sched:     gocron.NewScheduler(time.UTC),
	}
}

func (s *scheduler) Start() {

	_, _ = s.sched.Every(s.cfg.Schedule.ForecastCheckMin).Minutes().Do(func() {
		s.publisher.CheckDueForecasts()
	})
	_, _ = s.sched.Every(s.cfg.Schedule.AlertCheckMin).Minutes().Do(func() {
		s.publisher.CheckAlerts()
	})
	_, _ = s.sched.Every(s.cfg.Schedule.QueueDrainSec).Seconds().Do(func() {
		if _, err := s.delivery.DrainQueue(); err != nil {
			s.logger.Errorf("Failed to drain retry queue: %v", err)
		}
	})

	s.sched.StartAsync()
	s.logger.Infof("Scheduler started: forecasts every %dm, alerts every %dm, queue drain every %ds",
		s.cfg.Schedule.ForecastCheckMin, s.cfg.Schedule.AlertCheckMin, s.cfg.Schedule.QueueDrainSec)
}

func (s *scheduler) Stop() {
	s.sched.Stop()
	s.logger.Info("Scheduler stopped")
}

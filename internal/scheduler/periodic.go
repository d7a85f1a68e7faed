package scheduler

import (
	"fmt"
	"time"

	"listing_leads_backend/platform/config"
	"listing_leads_backend/platform/logger"
	"listing_leads_backend/platform/redisconn"

	"github.com/hibiken/asynq"
)

const cronRequester = "cron"

// Periodic enqueues job tasks on cron schedules.
type Periodic struct {
	scheduler *asynq.Scheduler
	queue     string
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	opt, err := redisconn.AsynqOpt(cfg)
	if err != nil {
		return nil, err
	}

	return &Periodic{
		scheduler: asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC}),
		queue:     queueName(cfg),
		log:       log,
	}, nil
}

// Register schedules taskType on cronspec. An empty spec disables the job.
func (p *Periodic) Register(cronspec string, taskType string) error {
	if cronspec == "" {
		p.log.Info("periodic job disabled", "task", taskType)
		return nil
	}

	task, err := newRunTask(taskType, RunPayload{RequestedBy: cronRequester})
	if err != nil {
		return err
	}

	id, err := p.scheduler.Register(cronspec, task, asynq.Queue(p.queue), asynq.MaxRetry(0))
	if err != nil {
		return fmt.Errorf("register %s on %q: %w", taskType, cronspec, err)
	}
	p.log.Info("periodic job registered", "task", taskType, "cron", cronspec, "entryId", id)
	return nil
}

func (p *Periodic) Start() error {
	return p.scheduler.Start()
}

func (p *Periodic) Shutdown() {
	p.scheduler.Shutdown()
}

package followup

import (
	"context"
	"errors"
	"sync"

	"listing_leads_backend/internal/scheduler"
	"listing_leads_backend/platform/logger"
)

// Default cadences, UTC cron syntax.
const (
	DefaultRescoreCron  = "0 * * * *"
	DefaultFollowUpCron = "0 */6 * * *"
	DefaultCleanupCron  = "30 3 * * *"
)

// TaskRunner executes job tasks as they are dequeued.
type TaskRunner interface {
	Handle(taskType string, run scheduler.JobFunc)
	Start() error
	Shutdown()
}

// CronRegistrar enqueues job tasks on a schedule.
type CronRegistrar interface {
	Register(cronspec string, taskType string) error
	Start() error
	Shutdown()
}

type Cadence struct {
	Rescore  string
	FollowUp string
	Cleanup  string
}

// Scheduler owns the lifecycle of the periodic lead jobs.
type Scheduler struct {
	proc     *Processor
	runner   TaskRunner
	cron     CronRegistrar
	cadence  Cadence
	log      *logger.Logger
	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
}

func NewScheduler(proc *Processor, runner TaskRunner, cron CronRegistrar, cadence Cadence, log *logger.Logger) *Scheduler {
	return &Scheduler{proc: proc, runner: runner, cron: cron, cadence: cadence, log: log}
}

// Start registers the job handlers and cron entries and begins processing.
// Cancelling ctx stops the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("follow-up scheduler already started")
	}

	s.runner.Handle(scheduler.TaskRescoreLeads, func(ctx context.Context) error {
		_, err := s.proc.RescoreActive(ctx)
		return err
	})
	s.runner.Handle(scheduler.TaskProcessFollowUps, func(ctx context.Context) error {
		_, err := s.proc.ProcessDue(ctx)
		return err
	})
	s.runner.Handle(scheduler.TaskCleanup, s.proc.Cleanup)

	entries := []struct{ spec, task string }{
		{s.cadence.Rescore, scheduler.TaskRescoreLeads},
		{s.cadence.FollowUp, scheduler.TaskProcessFollowUps},
		{s.cadence.Cleanup, scheduler.TaskCleanup},
	}
	for _, e := range entries {
		if err := s.cron.Register(e.spec, e.task); err != nil {
			return err
		}
	}

	if err := s.runner.Start(); err != nil {
		return err
	}
	if err := s.cron.Start(); err != nil {
		s.runner.Shutdown()
		return err
	}
	s.started = true
	s.log.Info("follow-up scheduler started", "rescore", s.cadence.Rescore, "followUp", s.cadence.FollowUp, "cleanup", s.cadence.Cleanup)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop shuts down the cron and worker. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}
	s.stopOnce.Do(func() {
		s.cron.Shutdown()
		s.runner.Shutdown()
		s.log.Info("follow-up scheduler stopped")
	})
}

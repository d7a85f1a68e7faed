package followup

import (
	"context"
	"errors"
	"io"
	"testing"

	"listing_leads_backend/internal/scheduler"
	"listing_leads_backend/platform/logger"
)

type fakeRunner struct {
	handlers map[string]scheduler.JobFunc
	started  bool
	stopped  int
}

func (r *fakeRunner) Handle(taskType string, run scheduler.JobFunc) {
	if r.handlers == nil {
		r.handlers = map[string]scheduler.JobFunc{}
	}
	r.handlers[taskType] = run
}

func (r *fakeRunner) Start() error {
	r.started = true
	return nil
}

func (r *fakeRunner) Shutdown() { r.stopped++ }

type fakeCron struct {
	specs    map[string]string
	startErr error
	stopped  int
}

func (c *fakeCron) Register(spec, task string) error {
	if c.specs == nil {
		c.specs = map[string]string{}
	}
	c.specs[task] = spec
	return nil
}

func (c *fakeCron) Start() error { return c.startErr }
func (c *fakeCron) Shutdown()    { c.stopped++ }

func newTestScheduler(runner *fakeRunner, cron *fakeCron) *Scheduler {
	log := logger.NewWithWriter("test", io.Discard)
	proc := NewProcessor(Deps{Leads: newFakeLeadStore(), Rescorer: &fakeRescorer{}}, Options{}, log)
	return NewScheduler(proc, runner, cron, Cadence{
		Rescore:  DefaultRescoreCron,
		FollowUp: DefaultFollowUpCron,
		Cleanup:  DefaultCleanupCron,
	}, log)
}

func TestSchedulerStartRegistersJobs(t *testing.T) {
	runner, cron := &fakeRunner{}, &fakeCron{}
	s := newTestScheduler(runner, cron)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, task := range []string{scheduler.TaskRescoreLeads, scheduler.TaskProcessFollowUps, scheduler.TaskCleanup} {
		if runner.handlers[task] == nil {
			t.Fatalf("no handler for %s", task)
		}
	}
	if cron.specs[scheduler.TaskRescoreLeads] != "0 * * * *" || cron.specs[scheduler.TaskProcessFollowUps] != "0 */6 * * *" {
		t.Fatalf("unexpected cadences %v", cron.specs)
	}
	if !runner.started {
		t.Fatalf("worker not started")
	}
	if err := runner.handlers[scheduler.TaskRescoreLeads](context.Background()); err != nil {
		t.Fatalf("rescore job: %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected second start to fail")
	}
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	runner, cron := &fakeRunner{}, &fakeCron{}
	s := newTestScheduler(runner, cron)
	s.Stop()
	if runner.stopped != 0 {
		t.Fatalf("stop before start must be a no-op")
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Stop()
	s.Stop()
	if runner.stopped != 1 || cron.stopped != 1 {
		t.Fatalf("expected single shutdown, got runner=%d cron=%d", runner.stopped, cron.stopped)
	}
}

func TestSchedulerStartRollsBackWorkerOnCronFailure(t *testing.T) {
	runner, cron := &fakeRunner{}, &fakeCron{startErr: errors.New("redis down")}
	s := newTestScheduler(runner, cron)

	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}
	if runner.stopped != 1 {
		t.Fatalf("worker should be shut down when the cron fails to start")
	}
}

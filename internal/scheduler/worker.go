package scheduler

import (
	"context"
	"fmt"
	"time"

	"listing_leads_backend/platform/config"
	"listing_leads_backend/platform/logger"
	"listing_leads_backend/platform/redisconn"

	"github.com/hibiken/asynq"
)

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) error

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, log *logger.Logger) (*Worker, error) {
	opt, err := redisconn.AsynqOpt(cfg)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
		log:    log,
	}, nil
}

// Handle binds a job body to a task type. Must be called before Start.
func (w *Worker) Handle(taskType string, run JobFunc) {
	w.mux.HandleFunc(taskType, w.wrap(taskType, run))
}

func (w *Worker) wrap(taskType string, run JobFunc) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		payload, err := ParseRunPayload(task)
		if err != nil {
			return fmt.Errorf("%s: bad payload: %v: %w", taskType, err, asynq.SkipRetry)
		}

		start := time.Now()
		w.log.Info("scheduled job started", "task", taskType, "requestedBy", payload.RequestedBy)
		if err := run(ctx); err != nil {
			w.log.Error("scheduled job failed", "task", taskType, "error", err, "duration", time.Since(start))
			return err
		}
		w.log.Info("scheduled job finished", "task", taskType, "duration", time.Since(start))
		return nil
	}
}

func (w *Worker) Start() error {
	if w == nil || w.server == nil {
		return nil
	}
	return w.server.Start(w.mux)
}

func (w *Worker) Shutdown() {
	if w == nil || w.server == nil {
		return
	}
	w.server.Shutdown()
}

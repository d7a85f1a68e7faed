package scheduler

import (
	"context"
	"fmt"
	"time"

	"listing_leads_backend/platform/config"
	"listing_leads_backend/platform/redisconn"

	"github.com/hibiken/asynq"
)

// uniqueWindow keeps a manual run from queueing twice while one is pending.
const uniqueWindow = 5 * time.Minute

type Client struct {
	client *asynq.Client
	queue  string
}

// JobEnqueuer requests one-off runs of the periodic jobs.
type JobEnqueuer interface {
	EnqueueRescore(ctx context.Context, requestedBy string) error
	EnqueueFollowUps(ctx context.Context, requestedBy string) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	opt, err := redisconn.AsynqOpt(cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) EnqueueRescore(ctx context.Context, requestedBy string) error {
	task, err := NewRescoreLeadsTask(RunPayload{RequestedBy: requestedBy})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) EnqueueFollowUps(ctx context.Context, requestedBy string) error {
	task, err := NewProcessFollowUpsTask(RunPayload{RequestedBy: requestedBy})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("scheduler client not configured")
	}
	_, err := c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.Unique(uniqueWindow), asynq.MaxRetry(1))
	return err
}

func queueName(cfg config.SchedulerConfig) string {
	if q := cfg.GetAsynqQueueName(); q != "" {
		return q
	}
	return "default"
}

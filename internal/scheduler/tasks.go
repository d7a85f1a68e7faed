package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskRescoreLeads = "leads.rescore"

const TaskProcessFollowUps = "leads.followups"

const TaskCleanup = "maintenance.cleanup"

// RunPayload identifies who asked for a job run. Periodic runs carry "cron".
type RunPayload struct {
	RequestedBy string `json:"requestedBy"`
}

func NewRescoreLeadsTask(payload RunPayload) (*asynq.Task, error) {
	return newRunTask(TaskRescoreLeads, payload)
}

func NewProcessFollowUpsTask(payload RunPayload) (*asynq.Task, error) {
	return newRunTask(TaskProcessFollowUps, payload)
}

func NewCleanupTask(payload RunPayload) (*asynq.Task, error) {
	return newRunTask(TaskCleanup, payload)
}

func newRunTask(taskType string, payload RunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

func ParseRunPayload(task *asynq.Task) (RunPayload, error) {
	var payload RunPayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return RunPayload{}, err
	}
	return payload, nil
}

package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskEscalationScan = "intelligence.escalation.scan"

const TaskReminderScan = "intelligence.reminder.scan"

// ScanPayload identifies the tenant a scan task covers.
type ScanPayload struct {
	TenantID string `json:"tenantId"`
}

func NewEscalationScanTask(payload ScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEscalationScan, data), nil
}

func NewReminderScanTask(payload ScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReminderScan, data), nil
}

func ParseScanPayload(task *asynq.Task) (ScanPayload, error) {
	var payload ScanPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ScanPayload{}, err
	}
	return payload, nil
}

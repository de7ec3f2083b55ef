package worker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TypeScanRun is the queue task type of an on-demand task run.
const TypeScanRun = "scan:run"

type ScanRunPayload struct {
	TaskID uint `json:"task_id"`
	UserID uint `json:"user_id"`
}

// NewScanRunTask builds the queue task for an on-demand run. Runs are not
// retried and expire after timeout.
func NewScanRunTask(taskID, userID uint, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(ScanRunPayload{TaskID: taskID, UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("marshal scan payload: %w", err)
	}
	return asynq.NewTask(TypeScanRun, payload, asynq.MaxRetry(0), asynq.Timeout(timeout)), nil
}

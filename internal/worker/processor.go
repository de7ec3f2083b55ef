package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/wcag-monitor/internal/store"
	"go.uber.org/zap"
)

// TaskProcessor executes queued on-demand runs.
type TaskProcessor struct {
	exec TaskRunner
	log  *zap.Logger
}

func NewTaskProcessor(exec TaskRunner, log *zap.Logger) *TaskProcessor {
	return &TaskProcessor{exec: exec, log: log}
}

// Register installs the processor's handlers on mux.
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeScanRun, p.HandleScanRun)
}

func (p *TaskProcessor) HandleScanRun(ctx context.Context, t *asynq.Task) error {
	var payload ScanRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode scan payload: %v: %w", err, asynq.SkipRetry)
	}
	log := p.log.With(zap.Uint("task_id", payload.TaskID), zap.Uint("user_id", payload.UserID))
	log.Info("queued run received")

	if _, err := p.exec.Run(ctx, payload.TaskID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("task %d: %v: %w", payload.TaskID, err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}

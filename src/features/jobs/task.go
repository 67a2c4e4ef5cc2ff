package jobs

import (
	"context"
	"fmt"
	"maps"
)

// ProgressFunc reports a percentage and a short status line for a job.
type ProgressFunc func(percentage int, status string)

// TaskHandler runs jobs of one type.
type TaskHandler interface {
	Execute(ctx context.Context, job *Job, progress ProgressFunc) error
}

// Task defines the specific logic for a job type.
type Task interface {
	MetadataKeys() []string
	Execute(ctx context.Context, job *Job, progressUpdater func(int, string)) (map[string]any, error)
	Cleanup(job *Job) error
}

// BaseTaskHandler checks the metadata a Task needs, runs it and merges the
// stats it returns into the job metadata.
type BaseTaskHandler struct {
	Task Task
}

func NewBaseTaskHandler(task Task) *BaseTaskHandler {
	return &BaseTaskHandler{Task: task}
}

func (h *BaseTaskHandler) Execute(ctx context.Context, job *Job, progress ProgressFunc) error {
	log := job.Logger
	log.Info("Starting job", "name", job.Name)

	for _, key := range h.Task.MetadataKeys() {
		if _, ok := job.Metadata[key]; !ok {
			err := fmt.Errorf("missing %s in job metadata", key)
			log.Error("Invalid job", "error", err)
			return err
		}
	}

	defer func() {
		if err := h.Task.Cleanup(job); err != nil {
			log.Error("Error during job cleanup", "error", err)
		}
	}()

	stats, err := h.Task.Execute(ctx, job, func(percentage int, status string) {
		log.Info("Progress", "percentage", percentage, "status", status)
		progress(percentage, status)
	})
	if len(stats) > 0 {
		if job.Metadata == nil {
			job.Metadata = make(map[string]any, len(stats))
		}
		maps.Copy(job.Metadata, stats)
	}
	if err != nil {
		log.Error("Job failed", "error", err)
		return err
	}
	log.Info("Job finished", "name", job.Name)
	return nil
}

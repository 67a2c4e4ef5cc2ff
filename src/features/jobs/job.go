package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job is a unit of background work, such as one acquisition run.
type Job struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	Status     JobStatus      `json:"status"`
	Progress   int            `json:"progress"`
	Message    string         `json:"message"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Logger     *slog.Logger   `json:"-"`
	LogPath    string         `json:"log_path,omitempty"`
	cancelFunc context.CancelFunc
	cancelled  bool
}

// IsFinished reports whether the job reached a terminal status.
func (j *Job) IsFinished() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Summary returns the "msg" metadata set by the task, or the status message.
func (j *Job) Summary() string {
	if msg, ok := j.Metadata["msg"].(string); ok && msg != "" {
		return msg
	}
	return j.Message
}

func (j *Job) set(status JobStatus, message string) {
	j.Status = status
	j.Message = message
	j.UpdatedAt = time.Now()
	if status == JobStatusCompleted {
		j.Progress = 100
	}
}

// attachLog gives job its own log file under dir, or a discarding logger when
// dir is empty.
func attachLog(job *Job, dir string) error {
	if dir == "" {
		job.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s-%s.log", job.CreatedAt.Format("2006-01-02"), job.Type, job.ID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	job.Logger = slog.New(slog.NewTextHandler(f, nil)).With("job", job.ID, "type", job.Type)
	job.LogPath = path
	return nil
}

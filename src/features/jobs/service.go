package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/contre95/soulfetch/src/features/config"
	"github.com/google/uuid"
)

var ErrJobNotFound = errors.New("job not found")

// JobService defines the interface for job management that other services will use
type JobService interface {
	StartJob(jobType string, name string, metadata map[string]any) (string, error)
	UpdateJobProgress(jobID string, progress int, message string)
	GetJob(jobID string) (*Job, bool)
	CancelJob(jobID string) error
	GetJobs() []*Job
}

// FinishFunc is called once a job reaches a terminal status.
type FinishFunc func(job *Job)

// Service runs jobs in the background. Jobs of the same type run one at a
// time in submission order; different types run concurrently.
type Service struct {
	mu       sync.RWMutex
	config   *config.Jobs
	jobs     map[string]*Job
	handlers map[string]TaskHandler
	running  map[string]bool
	queued   map[string][]*Job
	onFinish []FinishFunc
}

func NewService(cfg *config.Jobs) *Service {
	return &Service{
		config:   cfg,
		jobs:     make(map[string]*Job),
		handlers: make(map[string]TaskHandler),
		running:  make(map[string]bool),
		queued:   make(map[string][]*Job),
	}
}

// OnFinish registers fn to be called after every finished job.
func (s *Service) OnFinish(fn FinishFunc) {
	s.mu.Lock()
	s.onFinish = append(s.onFinish, fn)
	s.mu.Unlock()
}

func (s *Service) RegisterHandler(jobType string, handler TaskHandler) {
	s.mu.Lock()
	s.handlers[jobType] = handler
	s.mu.Unlock()
}

// StartJob records a new job and runs it now, or queues it behind the running
// job of the same type.
func (s *Service) StartJob(jobType string, name string, metadata map[string]any) (string, error) {
	now := time.Now()
	job := &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Name:      name,
		Status:    JobStatusPending,
		Message:   "Queued",
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  metadata,
	}
	logDir := ""
	if s.config.Log {
		logDir = s.config.LogPath
	}
	if err := attachLog(job, logDir); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	if s.running[jobType] {
		s.queued[jobType] = append(s.queued[jobType], job)
		s.mu.Unlock()
		return job.ID, nil
	}
	s.running[jobType] = true
	job.set(JobStatusRunning, "Starting...")
	s.mu.Unlock()

	go s.run(job)
	return job.ID, nil
}

func (s *Service) run(job *Job) {
	for job != nil {
		s.execute(job)
		s.finish(job)
		job = s.next(job.Type)
	}
}

// next pops the next queued job of jobType, skipping cancelled ones, and marks
// the type idle when nothing is left.
func (s *Service) next(jobType string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queued[jobType]) > 0 {
		job := s.queued[jobType][0]
		s.queued[jobType] = s.queued[jobType][1:]
		if job.cancelled {
			continue
		}
		job.set(JobStatusRunning, "Starting...")
		return job
	}
	delete(s.queued, jobType)
	s.running[jobType] = false
	return nil
}

func (s *Service) execute(job *Job) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.mu.Lock()
	handler, ok := s.handlers[job.Type]
	job.cancelFunc = cancel
	s.mu.Unlock()

	var err error
	if ok {
		err = handler.Execute(ctx, job, func(percentage int, status string) {
			s.UpdateJobProgress(job.ID, percentage, status)
		})
	} else {
		err = fmt.Errorf("no handler registered for %q jobs", job.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	job.cancelFunc = nil
	switch {
	case job.cancelled || errors.Is(err, context.Canceled):
		job.set(JobStatusCancelled, "Job cancelled")
	case err != nil:
		job.set(JobStatusFailed, "Job failed")
		job.Error = err.Error()
	default:
		job.set(JobStatusCompleted, "Job completed successfully")
	}
}

func (s *Service) finish(job *Job) {
	s.runWebhook(job)
	s.mu.RLock()
	callbacks := slices.Clone(s.onFinish)
	s.mu.RUnlock()
	for _, fn := range callbacks {
		fn(job)
	}
}

// UpdateJobProgress sets the progress of a job that has not finished yet.
func (s *Service) UpdateJobProgress(jobID string, progress int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.IsFinished() {
		return
	}
	job.Progress = max(0, min(progress, 100))
	job.Message = message
	job.UpdatedAt = time.Now()
}

// CancelJob cancels a running job or drops a queued one.
func (s *Service) CancelJob(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.IsFinished() {
		return nil
	}
	job.cancelled = true
	job.set(JobStatusCancelled, "Job cancelled")
	if job.cancelFunc != nil {
		job.cancelFunc()
	}
	return nil
}

func (s *Service) GetJob(jobID string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	return job, ok
}

// GetJobs returns every known job, newest first.
func (s *Service) GetJobs() []*Job {
	s.mu.RLock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.RUnlock()
	slices.SortFunc(jobs, func(a, b *Job) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return jobs
}

// CleanupOldJobs forgets finished jobs not updated within maxAge.
func (s *Service) CleanupOldJobs(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	return s.forget(func(job *Job) bool { return job.UpdatedAt.Before(cutoff) })
}

// ClearFinishedJobs forgets every finished job and removes its log file.
func (s *Service) ClearFinishedJobs() int {
	return s.forget(func(*Job) bool { return true })
}

func (s *Service) forget(match func(*Job) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, job := range s.jobs {
		if !job.IsFinished() || !match(job) {
			continue
		}
		if job.LogPath != "" {
			_ = os.Remove(job.LogPath)
		}
		delete(s.jobs, id)
		n++
	}
	return n
}

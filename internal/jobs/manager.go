// Package jobs provides a persistent background job manager. Jobs live
// in memory behind one mutex and are mirrored to per-job JSON files on
// every state change, so records survive restarts.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job types.
const (
	TypeAddBug          = "add_bug"
	TypeAddFolder       = "add_folder"
	TypeProcessDocument = "process_document"
	TypeProcessFolder   = "process_folder"
)

// Job statuses. queued and running are live; the rest are terminal.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// restartError marks jobs whose worker was lost to a process restart.
const restartError = "Job failed due to server restart."

// Job is one unit of background work.
type Job struct {
	ID             string         `json:"job_id"`
	Type           string         `json:"job_type"`
	Params         map[string]any `json:"params,omitempty"`
	Status         string         `json:"status"`
	Progress       float64        `json:"progress"`
	ProcessedItems int            `json:"processed_items"`
	TotalItems     int            `json:"total_items"`
	CreatedAt      time.Time      `json:"created_at"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	Result         any            `json:"result,omitempty"`
	Error          string         `json:"error,omitempty"`
	CreatedBy      string         `json:"created_by,omitempty"`
}

// Terminal reports whether the job has finished one way or another.
func (j *Job) Terminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Task is the work a job runs. The context is cancelled when the job is
// cancelled; the returned value becomes the job result.
type Task func(ctx context.Context, jobID string) (any, error)

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Status    string
	Type      string
	CreatedBy string
}

// Manager owns all jobs. One goroutine per submitted job; mutations are
// serialized by the mutex.
type Manager struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	cancels map[string]context.CancelFunc
	dir     string
	wg      sync.WaitGroup
}

// NewManager creates a manager persisting under dir.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating job state dir: %w", err)
	}
	return &Manager{
		jobs:    make(map[string]*Job),
		cancels: make(map[string]context.CancelFunc),
		dir:     dir,
	}, nil
}

// Recover loads persisted jobs. Jobs persisted as running are marked
// failed, their workers did not survive the restart. Queued jobs are
// kept listable but not resubmitted.
func (m *Manager) Recover() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("reading job state dir: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	recovered, failed := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(m.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("skipping unreadable job file", "path", path, "error", err)
			continue
		}
		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			slog.Warn("skipping corrupt job file", "path", path, "error", err)
			continue
		}
		if job.ID == "" {
			continue
		}
		if job.Status == StatusRunning {
			now := time.Now().UTC()
			job.Status = StatusFailed
			job.Error = restartError
			job.CompletedAt = &now
			m.persistLocked(&job)
			failed++
		}
		m.jobs[job.ID] = &job
		recovered++
	}
	slog.Info("job state recovered", "jobs", recovered, "failed_on_restart", failed)
	return nil
}

// Create registers a new queued job and persists it.
func (m *Manager) Create(jobType string, params map[string]any, createdBy string) *Job {
	job := &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Params:    params,
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
		CreatedBy: createdBy,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	m.persistLocked(job)
	return snapshot(job)
}

// Submit launches a worker for a queued job. The worker marks it
// running, invokes the task, and records the terminal state.
func (m *Manager) Submit(jobID string, task Task) error {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("job %s not found", jobID)
	}
	if job.Status != StatusQueued {
		m.mu.Unlock()
		return fmt.Errorf("job %s is %s, not queued", jobID, job.Status)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancels[jobID] = cancel
	now := time.Now().UTC()
	job.Status = StatusRunning
	job.StartedAt = &now
	m.persistLocked(job)
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		result, err := task(ctx, jobID)
		m.finish(jobID, result, err)
	}()
	return nil
}

func (m *Manager) finish(jobID string, result any, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cancels, jobID)

	job, ok := m.jobs[jobID]
	if !ok || job.Terminal() {
		// Cancelled while running; the cancel transition already
		// persisted.
		return
	}

	now := time.Now().UTC()
	job.CompletedAt = &now
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
	} else {
		job.Status = StatusCompleted
		job.Result = result
		job.Progress = 100
	}
	m.persistLocked(job)
}

// Get returns a copy of the job.
func (m *Manager) Get(jobID string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, false
	}
	return snapshot(job), true
}

// List returns copies of all jobs matching the filter, newest first.
func (m *Manager) List(f Filter) []*Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Job
	for _, job := range m.jobs {
		if f.Status != "" && job.Status != f.Status {
			continue
		}
		if f.Type != "" && job.Type != f.Type {
			continue
		}
		if f.CreatedBy != "" && job.CreatedBy != f.CreatedBy {
			continue
		}
		out = append(out, snapshot(job))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Cancel moves a queued or running job to cancelled and interrupts its
// worker. Terminal jobs return false.
func (m *Manager) Cancel(jobID string) bool {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok || job.Terminal() {
		m.mu.Unlock()
		return false
	}

	now := time.Now().UTC()
	job.Status = StatusCancelled
	job.CompletedAt = &now
	m.persistLocked(job)
	cancel := m.cancels[jobID]
	delete(m.cancels, jobID)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return true
}

// UpdateProgress records worker progress and persists it. progress is
// processed/total scaled to 0-100, or 0 when total is 0.
func (m *Manager) UpdateProgress(jobID string, processed, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Terminal() {
		return
	}
	job.ProcessedItems = processed
	job.TotalItems = total
	if total > 0 {
		job.Progress = float64(processed) / float64(total) * 100
	} else {
		job.Progress = 0
	}
	m.persistLocked(job)
}

// Cleanup removes terminal jobs older than maxAge and their files.
// Returns the number removed.
func (m *Manager) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, job := range m.jobs {
		if !job.Terminal() || job.CompletedAt == nil || job.CompletedAt.After(cutoff) {
			continue
		}
		delete(m.jobs, id)
		if err := os.Remove(m.jobPath(id)); err != nil && !os.IsNotExist(err) {
			slog.Warn("removing job file", "job_id", id, "error", err)
		}
		removed++
	}
	return removed
}

// Wait blocks until all running workers return. For shutdown.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) jobPath(jobID string) string {
	return filepath.Join(m.dir, jobID+".json")
}

// persistLocked writes the job file atomically (write-then-rename).
// Callers hold the mutex. Persistence failures are logged, the in-memory
// state stays authoritative.
func (m *Manager) persistLocked(job *Job) {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		slog.Error("marshaling job", "job_id", job.ID, "error", err)
		return
	}
	tmp := m.jobPath(job.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		slog.Error("writing job file", "job_id", job.ID, "error", err)
		return
	}
	if err := os.Rename(tmp, m.jobPath(job.ID)); err != nil {
		slog.Error("renaming job file", "job_id", job.ID, "error", err)
	}
}

func snapshot(job *Job) *Job {
	copied := *job
	return &copied
}

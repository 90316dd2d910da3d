// Package task tracks pipeline executions in memory: one record per
// task id, mutated only through the store so per-task writes serialize.
package task

import (
	"log/slog"
	"sync"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusNotFound   Status = "NOT_FOUND"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is a snapshot of one pipeline execution. Result is present only
// when COMPLETED, Error only when FAILED.
type Task struct {
	ID        string    `json:"task_id"`
	DocID     string    `json:"doc_id"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	Step      string    `json:"step"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a thread-safe in-memory task registry. Updates to unknown
// task ids are logged no-ops, never fatal.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	ttl   time.Duration
	log   *slog.Logger
}

// NewStore creates a store. Terminal tasks older than ttl are removed
// by Cleanup.
func NewStore(ttl time.Duration, log *slog.Logger) *Store {
	return &Store{
		tasks: make(map[string]*Task),
		ttl:   ttl,
		log:   log.With("component", "task-store"),
	}
}

// Create registers a new PENDING task.
func (s *Store) Create(taskID, docID string) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[taskID] = &Task{
		ID:        taskID,
		DocID:     docID,
		Status:    StatusPending,
		Progress:  0,
		Step:      "task created, waiting to run",
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.log.Info("task created", "task_id", taskID, "doc_id", docID)
}

// UpdateProgress moves a PENDING or PROCESSING task to PROCESSING and
// records the checkpoint. Progress never decreases; a lower value is
// clamped to the current one.
func (s *Store) UpdateProgress(taskID string, progress int, step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		s.log.Warn("progress update for unknown task", "task_id", taskID)
		return
	}
	if t.Status.Terminal() {
		s.log.Warn("progress update for terminal task ignored",
			"task_id", taskID, "status", t.Status)
		return
	}
	if progress < t.Progress {
		progress = t.Progress
	}
	t.Status = StatusProcessing
	t.Progress = progress
	t.Step = step
	t.UpdatedAt = time.Now()
	s.log.Info("task progress", "task_id", taskID, "progress", progress, "step", step)
}

// Complete moves a task to COMPLETED with the final result.
func (s *Store) Complete(taskID string, result any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		s.log.Warn("completion for unknown task", "task_id", taskID)
		return
	}
	if t.Status.Terminal() {
		s.log.Warn("completion for terminal task ignored",
			"task_id", taskID, "status", t.Status)
		return
	}
	t.Status = StatusCompleted
	t.Progress = 100
	t.Step = "processing complete"
	t.Result = result
	t.UpdatedAt = time.Now()
	s.log.Info("task completed", "task_id", taskID)
}

// Fail moves a task to FAILED with a human-readable message.
func (s *Store) Fail(taskID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		s.log.Warn("failure for unknown task", "task_id", taskID)
		return
	}
	if t.Status.Terminal() {
		s.log.Warn("failure for terminal task ignored",
			"task_id", taskID, "status", t.Status)
		return
	}
	t.Status = StatusFailed
	t.Step = "processing failed"
	t.Error = message
	t.UpdatedAt = time.Now()
	s.log.Info("task failed", "task_id", taskID, "error", message)
}

// Get returns a copy of the task state, or a NOT_FOUND snapshot when
// the id is unknown.
func (s *Store) Get(taskID string) Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return Task{ID: taskID, Status: StatusNotFound}
	}
	return *t
}

// Cleanup removes terminal tasks not updated within the TTL.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, t := range s.tasks {
		if t.Status.Terminal() && now.Sub(t.UpdatedAt) > s.ttl {
			delete(s.tasks, id)
		}
	}
}

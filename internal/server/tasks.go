package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linuxmatters/jivebeat/internal/analysis"
)

// TaskStatus is the lifecycle state of an asynchronous analysis.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Task is an uploaded file queued for analysis.
type Task struct {
	ID        string           `json:"task_id"`
	Filename  string           `json:"filename"`
	Status    TaskStatus       `json:"status"`
	Progress  int              `json:"progress"`
	Result    *analysis.Result `json:"result,omitempty"`
	Error     *ErrorBody       `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`

	path   string
	cancel context.CancelFunc
}

// taskStore keeps tasks in memory in creation order.
type taskStore struct {
	mu    sync.Mutex
	tasks map[string]*Task
	order []string
	now   func() time.Time
}

func newTaskStore() *taskStore {
	return &taskStore{
		tasks: make(map[string]*Task),
		now:   time.Now,
	}
}

func (s *taskStore) add(filename, path string, cancel context.CancelFunc) Task {
	now := s.now()
	t := &Task{
		ID:        uuid.NewString(),
		Filename:  filename,
		Status:    TaskPending,
		CreatedAt: now,
		UpdatedAt: now,
		path:      path,
		cancel:    cancel,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
	s.order = append(s.order, t.ID)
	return *t
}

func (s *taskStore) get(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

func (s *taskStore) list() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.tasks[id])
	}
	return out
}

// update applies fn to the task under the lock. It reports false when the
// task has been deleted.
func (s *taskStore) update(id string, fn func(*Task)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	fn(t)
	t.UpdatedAt = s.now()
	return true
}

func (s *taskStore) remove(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	delete(s.tasks, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return *t, true
}

func (s *taskStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

package services

import (
	"sync"
	"time"

	"github.com/mltrack/backend/internal/domain"
)

// TaskRegistry is the process-wide collection of in-flight training jobs.
// Every UI surface reads and writes the same instance; watchers reconcile
// trainer status into it and subscribers re-render from it. The registry
// owns no timers and performs no I/O.
//
// All mutation methods are safe for concurrent use. Subscribers are
// invoked synchronously after each successful mutation, outside the
// registry lock, on the mutating goroutine.
type TaskRegistry struct {
	mu        sync.RWMutex
	tasks     map[string]*domain.Task
	order     []string
	listeners map[uint64]func()
	nextSub   uint64
}

func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{
		tasks:     make(map[string]*domain.Task),
		listeners: make(map[uint64]func()),
	}
}

// ==================== Task Management ====================

// AddTask inserts the task, or replaces the entry with the same ID while
// keeping its position in insertion order. CreatedAt is stamped at
// registration when the caller left it zero. Subscribers are always
// notified, including on replacement.
func (r *TaskRegistry) AddTask(task domain.Task) {
	if task.ID == "" {
		return
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	r.mu.Lock()
	if _, exists := r.tasks[task.ID]; !exists {
		r.order = append(r.order, task.ID)
	}
	r.tasks[task.ID] = &task
	listeners := r.listenersLocked()
	r.mu.Unlock()

	notify(listeners)
}

// UpdateTaskStatus replaces the status of an existing task. When no task
// with that ID exists the call is a silent no-op; a poll that lost a race
// against removal must not re-add the entry.
func (r *TaskRegistry) UpdateTaskStatus(taskID string, status domain.TaskStatus) {
	r.mu.Lock()
	task, exists := r.tasks[taskID]
	if !exists {
		r.mu.Unlock()
		return
	}
	task.Status = status
	listeners := r.listenersLocked()
	r.mu.Unlock()

	notify(listeners)
}

// RemoveTask deletes the entry if present. Removing an absent ID is a
// no-op and does not notify.
func (r *TaskRegistry) RemoveTask(taskID string) {
	r.mu.Lock()
	if _, exists := r.tasks[taskID]; !exists {
		r.mu.Unlock()
		return
	}
	delete(r.tasks, taskID)
	for i, id := range r.order {
		if id == taskID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	listeners := r.listenersLocked()
	r.mu.Unlock()

	notify(listeners)
}

// GetTask returns a copy of the task, so callers can never mutate
// registry state through the result.
func (r *TaskRegistry) GetTask(taskID string) (domain.Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, exists := r.tasks[taskID]
	if !exists {
		return domain.Task{}, false
	}
	return *task, true
}

// GetActiveTasksByType returns a snapshot of all tasks of the given type
// in insertion order.
func (r *TaskRegistry) GetActiveTasksByType(taskType domain.TaskType) []domain.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Task
	for _, id := range r.order {
		if task := r.tasks[id]; task.Type == taskType {
			out = append(out, *task)
		}
	}
	return out
}

// GetActiveTasks returns a snapshot of every task in insertion order.
func (r *TaskRegistry) GetActiveTasks() []domain.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Task, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.tasks[id])
	}
	return out
}

// CountsByType returns how many tasks of each type are currently held.
// Types with no tasks are absent from the map.
func (r *TaskRegistry) CountsByType() map[domain.TaskType]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[domain.TaskType]int)
	for _, task := range r.tasks {
		counts[task.Type]++
	}
	return counts
}

// ==================== Subscriptions ====================

// Subscribe registers a callback invoked after every successful mutation.
// The returned function removes the listener; calling it more than once
// is harmless.
func (r *TaskRegistry) Subscribe(listener func()) func() {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.listeners[id] = listener
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// listenersLocked snapshots the current listener set. Callers must hold
// the write lock; the snapshot is invoked after the lock is released so
// listeners can freely call back into the registry.
func (r *TaskRegistry) listenersLocked() []func() {
	if len(r.listeners) == 0 {
		return nil
	}
	out := make([]func(), 0, len(r.listeners))
	for _, fn := range r.listeners {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []func()) {
	for _, fn := range listeners {
		fn()
	}
}

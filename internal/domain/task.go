package domain

import "time"

type TaskType string

const (
	TaskTypeWekaTraining   TaskType = "WEKA_TRAINING"
	TaskTypeCustomTraining TaskType = "CUSTOM_TRAINING"
	TaskTypeWekaRetrain    TaskType = "WEKA_RETRAIN"
	TaskTypeCustomRetrain  TaskType = "CUSTOM_RETRAIN"
)

// AllTaskTypes returns every known task type in a stable order.
func AllTaskTypes() []TaskType {
	return []TaskType{
		TaskTypeWekaTraining,
		TaskTypeCustomTraining,
		TaskTypeWekaRetrain,
		TaskTypeCustomRetrain,
	}
}

func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeWekaTraining, TaskTypeCustomTraining, TaskTypeWekaRetrain, TaskTypeCustomRetrain:
		return true
	}
	return false
}

// Retrain reports whether the type re-trains an existing model rather
// than starting from scratch.
func (t TaskType) Retrain() bool {
	return t == TaskTypeWekaRetrain || t == TaskTypeCustomRetrain
}

// TaskStatus is the lifecycle state reported by the trainer. Values the
// trainer sends that are not listed here are carried through verbatim;
// they are simply neither terminal nor special-cased anywhere.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusFailed    TaskStatus = "FAILED"
	TaskStatusStopped   TaskStatus = "STOPPED"
)

// Terminal reports whether the status ends a task's lifecycle. A task in
// a terminal state is no longer polled and leaves the registry.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusStopped:
		return true
	}
	return false
}

// Task is a training job the console is currently watching. Tasks live in
// the in-memory registry only; the durable record of a run is TrainingRun.
type Task struct {
	ID          string     `json:"task_id"`
	Type        TaskType   `json:"type"`
	Status      TaskStatus `json:"status"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
}

package domain

// Task activity event types
const (
	EventTypeTaskLaunched  = "TASK_LAUNCHED"
	EventTypeStopRequested = "TASK_STOP_REQUESTED"
	EventTypeProbeFailed   = "TASK_PROBE_FAILED"
	EventTypeAuthFailed    = "TRAINER_AUTH_FAILED"
	EventTypeTaskFinished  = "TASK_FINISHED"
)

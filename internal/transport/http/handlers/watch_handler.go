package handlers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/core/services"
	"github.com/mltrack/backend/internal/domain"
	"github.com/mltrack/backend/internal/infrastructure/logger"
	"github.com/mltrack/backend/internal/metrics"
	"github.com/mltrack/backend/internal/transport/http/dto"
)

// RunFinalizer persists the outcome of a finished task. The monitor
// implements it; watch sessions call it too so that whichever watcher
// observes the terminal status first gets the run finalized.
type RunFinalizer interface {
	FinalizeRun(task domain.Task, banner services.Banner)
}

type WatchHandler struct {
	registry     *services.TaskRegistry
	trainer      ports.TrainerClient
	finalizer    RunFinalizer
	logger       *logger.Logger
	interval     time.Duration
	probeTimeout time.Duration
}

type WatchHandlerConfig struct {
	Registry     *services.TaskRegistry
	Trainer      ports.TrainerClient
	Finalizer    RunFinalizer
	Logger       *logger.Logger
	Interval     time.Duration
	ProbeTimeout time.Duration
}

func NewWatchHandler(cfg WatchHandlerConfig) *WatchHandler {
	return &WatchHandler{
		registry:     cfg.Registry,
		trainer:      cfg.Trainer,
		finalizer:    cfg.Finalizer,
		logger:       cfg.Logger,
		interval:     cfg.Interval,
		probeTimeout: cfg.ProbeTimeout,
	}
}

// watchCommand is a client-to-server frame.
type watchCommand struct {
	Action string `json:"action"`
	TaskID string `json:"task_id,omitempty"`
}

// watchEvent is a server-to-client frame.
type watchEvent struct {
	Event  string             `json:"event"`
	Tasks  []dto.TaskResponse `json:"tasks,omitempty"`
	Banner *services.Banner   `json:"banner,omitempty"`
	Type   domain.TaskType    `json:"type,omitempty"`
	TaskID string             `json:"task_id,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// wsWriter serializes frame writes. Banners arrive from polling
// goroutines while snapshots go out on registry notifications, so
// writes race without it.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) send(ev watchEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_ = w.conn.WriteJSON(ev)
}

// Handle runs one watch session. The session gets its own poll
// coordinator over the types named in ?types= (empty means all), pushes
// a task snapshot on every registry change and forwards the
// coordinator's banners as frames. The client steers it with track,
// stop and refresh commands.
func (h *WatchHandler) Handle(c *websocket.Conn) {
	types, err := parseWatchTypes(c.Query("types"))
	if err != nil {
		h.logger.Warnw("watch_invalid_types", "types", c.Query("types"))
		c.WriteJSON(watchEvent{Event: "error", Error: err.Error()})
		c.Close()
		return
	}

	sessionID := uuid.New().String()[:8]
	metrics.WatchSessionOpened()
	defer metrics.WatchSessionClosed()
	h.logger.Infow("watch_session_open", "session", sessionID, "types", c.Query("types"))

	writer := &wsWriter{conn: c}
	coordinator := services.NewPollCoordinator(services.PollCoordinatorConfig{
		Registry:     h.registry,
		Trainer:      h.trainer,
		Logger:       h.logger,
		Types:        types,
		Interval:     h.interval,
		ProbeTimeout: h.probeTimeout,
		Hooks: services.WatchHooks{
			OnStatusChange: func(task domain.Task, banner services.Banner) {
				writer.send(watchEvent{Event: "banner", Banner: &banner, TaskID: task.ID})
			},
			OnTerminal: func(task domain.Task, banner services.Banner) {
				writer.send(watchEvent{Event: "banner", Banner: &banner, TaskID: task.ID})
				if h.finalizer != nil {
					h.finalizer.FinalizeRun(task, banner)
				}
			},
			OnRefresh: func(taskType domain.TaskType) {
				writer.send(watchEvent{Event: "refresh", Type: taskType})
			},
			OnAuthFailure: func(taskID string, err error) {
				writer.send(watchEvent{Event: "auth_error", TaskID: taskID, Error: "trainer rejected the configured credentials"})
			},
		},
	})

	unsubscribe := h.registry.Subscribe(func() {
		writer.send(h.snapshot(types))
	})
	defer func() {
		unsubscribe()
		coordinator.StopAll()
		h.logger.Infow("watch_session_closed", "session", sessionID)
	}()

	coordinator.Restore()
	writer.send(h.snapshot(types))

	for {
		var cmd watchCommand
		if err := c.ReadJSON(&cmd); err != nil {
			break
		}
		h.dispatch(coordinator, writer, cmd, sessionID)
	}
}

func (h *WatchHandler) dispatch(coordinator *services.PollCoordinator, writer *wsWriter, cmd watchCommand, sessionID string) {
	switch cmd.Action {
	case "track":
		task, ok := h.registry.GetTask(cmd.TaskID)
		if !ok {
			writer.send(watchEvent{Event: "error", TaskID: cmd.TaskID, Error: "task not found"})
			return
		}
		coordinator.Track(task.ID, task.Type)
	case "stop":
		ctx, cancel := context.WithTimeout(context.Background(), h.probeTimeout)
		defer cancel()
		// Failures other than a missing task already surface as banner
		// or auth frames through the hooks.
		if err := coordinator.RequestStop(ctx, cmd.TaskID); err == services.ErrTaskNotFound {
			writer.send(watchEvent{Event: "error", TaskID: cmd.TaskID, Error: "task not found"})
		}
	case "refresh":
		if err := coordinator.PollNow(cmd.TaskID); err != nil {
			writer.send(watchEvent{Event: "error", TaskID: cmd.TaskID, Error: "task is not tracked by this session"})
		}
	default:
		h.logger.Debugw("watch_unknown_action", "session", sessionID, "action", cmd.Action)
	}
}

func (h *WatchHandler) snapshot(types []domain.TaskType) watchEvent {
	var tasks []domain.Task
	if len(types) == 0 {
		tasks = h.registry.GetActiveTasks()
	} else {
		for _, t := range types {
			tasks = append(tasks, h.registry.GetActiveTasksByType(t)...)
		}
	}
	return watchEvent{Event: "tasks", Tasks: dto.TasksToResponse(tasks)}
}

func parseWatchTypes(raw string) ([]domain.TaskType, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	types := make([]domain.TaskType, 0, len(parts))
	for _, p := range parts {
		t := domain.TaskType(strings.TrimSpace(p))
		if !t.Valid() {
			return nil, fmt.Errorf("unknown task type %q", p)
		}
		types = append(types, t)
	}
	return types, nil
}

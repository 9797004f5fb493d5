package services

import (
	"context"
	"sync"
	"time"

	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/domain"
	"github.com/mltrack/backend/internal/infrastructure/logger"
)

const (
	defaultStatsWindow  = 24 * time.Hour
	defaultStatsRefresh = time.Minute
)

// ConsoleStats is the dashboard snapshot: live counts from the registry
// plus the cached aggregate over the run history.
type ConsoleStats struct {
	ActiveTotal int              `json:"active_total"`
	ActiveTasks map[string]int   `json:"active_tasks"`
	History     *domain.RunStats `json:"history,omitempty"`
	RefreshedAt time.Time        `json:"refreshed_at"`
}

// StatsService aggregates run history on a timer so the dashboard never
// issues aggregate queries on the request path. Live task counts are
// always read fresh from the registry.
type StatsService struct {
	registry *TaskRegistry
	runs     ports.RunRepository
	logger   *logger.Logger
	window   time.Duration
	interval time.Duration

	mu       sync.RWMutex
	cached   *domain.RunStats
	cachedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

type StatsServiceConfig struct {
	Registry *TaskRegistry
	// Runs is optional; without it stats only cover live tasks.
	Runs   ports.RunRepository
	Logger *logger.Logger
	// Window is the Recent* lookback, default 24h.
	Window time.Duration
	// Interval is the cache refresh period, default 1m.
	Interval time.Duration
}

func NewStatsService(cfg StatsServiceConfig) *StatsService {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	window := cfg.Window
	if window <= 0 {
		window = defaultStatsWindow
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultStatsRefresh
	}
	return &StatsService{
		registry: cfg.Registry,
		runs:     cfg.Runs,
		logger:   log,
		window:   window,
		interval: interval,
	}
}

// Start begins the refresh loop. Without a run repository there is
// nothing to refresh and Start is a no-op.
func (s *StatsService) Start() {
	if s.runs == nil || s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.refresh(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.refresh(ctx)
			}
		}
	}()
}

func (s *StatsService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

func (s *StatsService) refresh(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stats, err := s.runs.Stats(reqCtx, time.Now().Add(-s.window))
	if err != nil {
		s.logger.Errorw("stats_refresh_failed", "error", err)
		return
	}

	s.mu.Lock()
	s.cached = stats
	s.cachedAt = time.Now()
	s.mu.Unlock()
}

// Snapshot never blocks on the database; history is whatever the last
// refresh produced.
func (s *StatsService) Snapshot() ConsoleStats {
	counts := s.registry.CountsByType()
	active := make(map[string]int, len(counts))
	total := 0
	for taskType, n := range counts {
		active[string(taskType)] = n
		total += n
	}

	s.mu.RLock()
	history := s.cached
	refreshedAt := s.cachedAt
	s.mu.RUnlock()

	return ConsoleStats{
		ActiveTotal: total,
		ActiveTasks: active,
		History:     history,
		RefreshedAt: refreshedAt,
	}
}

package services

import (
	"context"
	"time"

	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/infrastructure/logger"
)

const (
	defaultRetentionAge      = 30 * 24 * time.Hour
	defaultRetentionInterval = 12 * time.Hour

	// pruneConfirmText must accompany a forced prune that cuts below
	// the configured retention age.
	pruneConfirmText = "PRUNE HISTORY"
)

type PruneRequest struct {
	Before      time.Time
	Force       bool
	ConfirmText string
	RequestedBy string
}

type PruneResult struct {
	RunsDeleted   int64     `json:"runs_deleted"`
	EventsDeleted int64     `json:"events_deleted"`
	Cutoff        time.Time `json:"cutoff"`
}

// RetentionService prunes finished runs and old activity events past
// the configured age, on a timer and on demand.
type RetentionService struct {
	runs     ports.RunRepository
	events   ports.EventRepository
	logger   *logger.Logger
	maxAge   time.Duration
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

type RetentionServiceConfig struct {
	Runs   ports.RunRepository
	Events ports.EventRepository
	Logger *logger.Logger
	// MaxAge is how long history is kept, default 30 days.
	MaxAge time.Duration
	// Interval is how often the pruner runs, default 12h.
	Interval time.Duration
}

func NewRetentionService(cfg RetentionServiceConfig) *RetentionService {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = defaultRetentionAge
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultRetentionInterval
	}
	return &RetentionService{
		runs:     cfg.Runs,
		events:   cfg.Events,
		logger:   log,
		maxAge:   maxAge,
		interval: interval,
	}
}

func (s *RetentionService) Start() {
	if (s.runs == nil && s.events == nil) || s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.prune(ctx, time.Now().Add(-s.maxAge)); err != nil {
					s.logger.Errorw("retention_prune_failed", "error", err)
				}
			}
		}
	}()
}

func (s *RetentionService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

// PruneNow runs one prune immediately. A cutoff more recent than the
// retention policy deletes rows the policy would still keep, so it must
// be forced and confirmed.
func (s *RetentionService) PruneNow(ctx context.Context, req PruneRequest) (*PruneResult, error) {
	cutoff := time.Now().Add(-s.maxAge)
	if !req.Before.IsZero() {
		if req.Before.After(cutoff) {
			if !req.Force || req.ConfirmText != pruneConfirmText {
				return nil, ErrPruneValidationFailed
			}
		}
		cutoff = req.Before
	}

	result, err := s.prune(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("manual_prune_completed",
		"requested_by", req.RequestedBy,
		"cutoff", cutoff,
		"runs_deleted", result.RunsDeleted,
		"events_deleted", result.EventsDeleted,
	)
	return result, nil
}

func (s *RetentionService) prune(ctx context.Context, cutoff time.Time) (*PruneResult, error) {
	result := &PruneResult{Cutoff: cutoff}

	if s.runs != nil {
		n, err := s.runs.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			return nil, err
		}
		result.RunsDeleted = n
	}
	if s.events != nil {
		n, err := s.events.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			return nil, err
		}
		result.EventsDeleted = n
	}

	if result.RunsDeleted > 0 || result.EventsDeleted > 0 {
		s.logger.Infow("history_pruned",
			"cutoff", cutoff,
			"runs_deleted", result.RunsDeleted,
			"events_deleted", result.EventsDeleted,
		)
	}
	return result, nil
}

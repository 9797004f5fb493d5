package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/domain"
	"github.com/mltrack/backend/internal/infrastructure/logger"
)

// ConsoleSettingService stores operator-tunable preferences as key/value
// rows. Credentials stay in the config file; keys under auth_ are
// rejected here so the API cannot overwrite them.
type ConsoleSettingService struct {
	repo        ports.SettingRepository
	logger      *logger.Logger
	mu          sync.Mutex
	locks       map[string]*sync.Mutex
	enableLocks bool
}

func NewConsoleSettingService(repo ports.SettingRepository, log *logger.Logger, enableLocks bool) *ConsoleSettingService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ConsoleSettingService{
		repo:        repo,
		logger:      log,
		locks:       make(map[string]*sync.Mutex),
		enableLocks: enableLocks,
	}
}

func (s *ConsoleSettingService) lockKeys(keys ...string) func() {
	if !s.enableLocks {
		return func() {}
	}
	if len(keys) == 0 {
		return func() {}
	}
	sort.Strings(keys)
	s.mu.Lock()
	acquired := make([]*sync.Mutex, 0, len(keys))
	for _, k := range keys {
		m := s.locks[k]
		if m == nil {
			m = &sync.Mutex{}
			s.locks[k] = m
		}
		acquired = append(acquired, m)
	}
	s.mu.Unlock()
	for _, m := range acquired {
		m.Lock()
	}
	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Unlock()
		}
	}
}

func (s *ConsoleSettingService) GetSettings(ctx context.Context) (map[string]string, error) {
	categories := []string{"polling", "notifications", "display", "trainer", "general"}
	result := make(map[string]string)

	for _, cat := range categories {
		settings, err := s.repo.GetByCategory(ctx, cat)
		if err != nil {
			s.logger.Errorw("failed to get settings by category", "category", cat, "error", err)
			continue
		}
		for _, setting := range settings {
			result[setting.Key] = setting.Value
		}
	}

	return result, nil
}

func (s *ConsoleSettingService) GetSetting(ctx context.Context, key string) (*domain.ConsoleSetting, error) {
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		return nil, ErrSettingNotFound
	}
	return setting, nil
}

func (s *ConsoleSettingService) UpdateSettings(ctx context.Context, settings map[string]interface{}) error {
	for key := range settings {
		if strings.HasPrefix(key, "auth_") {
			return ErrSettingReadOnly
		}
	}
	if len(settings) > 0 {
		keys := make([]string, 0, len(settings))
		for key := range settings {
			keys = append(keys, fmt.Sprintf("setting:%s", key))
		}
		unlock := s.lockKeys(keys...)
		defer unlock()
	}
	for key, val := range settings {
		var strVal string

		switch v := val.(type) {
		case string:
			strVal = v
		case int, int8, int16, int32, int64:
			strVal = fmt.Sprintf("%d", v)
		case float32, float64:
			strVal = fmt.Sprintf("%g", v)
		case bool:
			strVal = fmt.Sprintf("%t", v)
		default:
			strVal = fmt.Sprintf("%v", v)
		}

		setting := &domain.ConsoleSetting{
			Key:      key,
			Value:    strVal,
			Type:     "string",
			Category: categorize(key),
		}

		if err := s.repo.Set(ctx, setting); err != nil {
			s.logger.Errorw("failed to set setting", "key", key, "error", err)
			return err
		}
	}
	return nil
}

func (s *ConsoleSettingService) DeleteSetting(ctx context.Context, key string) error {
	if strings.HasPrefix(key, "auth_") {
		return ErrSettingReadOnly
	}
	unlock := s.lockKeys(fmt.Sprintf("setting:%s", key))
	defer unlock()

	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		return err
	}
	if setting == nil {
		return ErrSettingNotFound
	}
	return s.repo.Delete(ctx, key)
}

func categorize(key string) string {
	switch {
	case strings.HasPrefix(key, "polling_"):
		return "polling"
	case strings.HasPrefix(key, "notify_"):
		return "notifications"
	case strings.HasPrefix(key, "display_"):
		return "display"
	case strings.HasPrefix(key, "trainer_"):
		return "trainer"
	default:
		return "general"
	}
}

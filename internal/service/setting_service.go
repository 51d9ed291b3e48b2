package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/campushelp/helpdesk-api/internal/dto"
	"github.com/campushelp/helpdesk-api/internal/models"
	"github.com/campushelp/helpdesk-api/internal/repository"
)

const settingCacheTTL = 30 * time.Second

var settingDefaults = map[string]string{
	models.SettingSessionTimeoutMinutes: "30",
	models.SettingMaxLoginAttempts:      "5",
	models.SettingMaintenanceMode:       "false",
}

// SettingService reads and mutates the system policy table. Unknown keys are
// rejected; known keys materialise with their default on first read.
type SettingService interface {
	Get(ctx context.Context, key string) (string, error)
	GetInt(ctx context.Context, key string) (int, error)
	GetBool(ctx context.Context, key string) (bool, error)
	List(ctx context.Context) ([]dto.SettingResponse, error)
	Update(ctx context.Context, key, value string) (dto.SettingResponse, error)
}

type settingService struct {
	repo   repository.SettingRepository
	logger zerolog.Logger

	mu    sync.RWMutex
	cache map[string]cachedSetting
}

type cachedSetting struct {
	value   string
	fetched time.Time
}

// NewSettingService constructs the setting service.
func NewSettingService(repo repository.SettingRepository, logger zerolog.Logger) SettingService {
	return &settingService{
		repo:   repo,
		logger: logger.With().Str("component", "setting_service").Logger(),
		cache:  make(map[string]cachedSetting),
	}
}

func (s *settingService) Get(ctx context.Context, key string) (string, error) {
	fallback, known := settingDefaults[key]
	if !known {
		return "", validationf("unknown setting %q", key)
	}

	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && time.Since(cached.fetched) < settingCacheTTL {
		return cached.value, nil
	}

	setting, err := s.repo.Find(ctx, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		setting = models.SystemSetting{Key: key, Value: fallback}
		if err := s.repo.Upsert(ctx, &setting); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to materialise default setting")
			return fallback, nil
		}
	} else if err != nil {
		return "", dependency("load setting", err)
	}

	s.store(key, setting.Value)
	return setting.Value, nil
}

func (s *settingService) GetInt(ctx context.Context, key string) (int, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		s.logger.Warn().Str("key", key).Str("value", raw).Msg("setting is not an integer, using default")
		return strconv.Atoi(settingDefaults[key])
	}
	return value, nil
}

func (s *settingService) GetBool(ctx context.Context, key string) (bool, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, nil
	}
	return value, nil
}

func (s *settingService) List(ctx context.Context) ([]dto.SettingResponse, error) {
	// Materialise defaults so the admin screen always shows every key.
	for key := range settingDefaults {
		if _, err := s.Get(ctx, key); err != nil {
			return nil, err
		}
	}

	settings, err := s.repo.List(ctx)
	if err != nil {
		return nil, dependency("list settings", err)
	}
	return dto.NewSettingResponseSlice(settings), nil
}

func (s *settingService) Update(ctx context.Context, key, value string) (dto.SettingResponse, error) {
	if _, known := settingDefaults[key]; !known {
		return dto.SettingResponse{}, validationf("unknown setting %q", key)
	}

	switch key {
	case models.SettingSessionTimeoutMinutes, models.SettingMaxLoginAttempts:
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return dto.SettingResponse{}, validationf("%s must be a positive integer", key)
		}
	case models.SettingMaintenanceMode:
		if _, err := strconv.ParseBool(value); err != nil {
			return dto.SettingResponse{}, validationf("%s must be a boolean", key)
		}
	}

	setting := models.SystemSetting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	if err := s.repo.Upsert(ctx, &setting); err != nil {
		return dto.SettingResponse{}, dependency("update setting", err)
	}

	s.store(key, value)
	s.logger.Info().Str("key", key).Str("value", value).Msg("system setting updated")

	return dto.NewSettingResponse(setting), nil
}

func (s *settingService) store(key, value string) {
	s.mu.Lock()
	s.cache[key] = cachedSetting{value: value, fetched: time.Now()}
	s.mu.Unlock()
}

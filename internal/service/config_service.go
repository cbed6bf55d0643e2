package service

import (
	"context"
	"errors"
	"time"

	"github.com/RGU-Computing/clood/internal/model"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
	"github.com/RGU-Computing/clood/internal/repo"
)

type ConfigService struct {
	configs *repo.ConfigRepo
}

func NewConfigService(configs *repo.ConfigRepo) *ConfigService {
	return &ConfigService{configs: configs}
}

// Get returns the global config, storing the default on first read.
func (s *ConfigService) Get(ctx context.Context) (*model.GlobalConfig, error) {
	cfg, err := s.configs.Get(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, appErr.ErrNotFound) {
		return nil, err
	}
	return s.Rebuild(ctx)
}

func (s *ConfigService) Update(ctx context.Context, cfg *model.GlobalConfig) error {
	if cfg == nil {
		return appErr.InvalidRequest("config body is required")
	}
	return s.configs.Save(ctx, cfg, time.Now().UnixMilli())
}

// Rebuild overwrites the stored config with the default one.
func (s *ConfigService) Rebuild(ctx context.Context) (*model.GlobalConfig, error) {
	cfg := model.DefaultGlobalConfig()
	if err := s.configs.Save(ctx, cfg, time.Now().UnixMilli()); err != nil {
		return nil, err
	}
	return cfg, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sokoplace/sokoplace-backend/pkg/config"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
	"github.com/sokoplace/sokoplace-backend/pkg/redis"
)

const lockKeyFormat = "soko:auto-release:lock:%s"

type escrowReleaser interface {
	ReleaseUnconfirmed(ctx context.Context, window time.Duration, batchSize int) (int, error)
}

type ServiceParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	Redis    *redis.Client
	Releaser escrowReleaser
	Instance string
}

// Service sweeps delivered-but-unconfirmed escrows on a timer. A redis lock
// keeps concurrent replicas from sweeping the same window at once; the
// database guards make a double sweep harmless anyway.
type Service struct {
	cfg      *config.Config
	logg     *logger.Logger
	redis    *redis.Client
	releaser escrowReleaser
	instance string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.Releaser == nil {
		return nil, errors.New("releaser is required")
	}
	instance := params.Instance
	if instance == "" {
		instance = "worker-0"
	}
	return &Service{
		cfg:      params.Config,
		logg:     params.Logger,
		redis:    params.Redis,
		releaser: params.Releaser,
		instance: instance,
	}, nil
}

// Run blocks until the context is cancelled, sweeping once per interval.
func (s *Service) Run(ctx context.Context) {
	interval := s.cfg.Settlement.AutoReleaseInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	lockKey := fmt.Sprintf(lockKeyFormat, s.cfg.App.Env)
	acquired, err := s.redis.SetNX(ctx, lockKey, s.instance, s.cfg.Settlement.AutoReleaseInterval/2)
	if err != nil {
		s.logg.Error(ctx, "failed to acquire auto-release lock", err)
		return
	}
	if !acquired {
		return
	}

	released, err := s.releaser.ReleaseUnconfirmed(ctx, s.cfg.Settlement.AutoReleaseWindow, s.cfg.Settlement.AutoReleaseBatchSize)
	if err != nil {
		s.logg.Error(ctx, "auto-release sweep failed", err)
		return
	}
	if released > 0 {
		s.logg.Info(s.logg.WithField(ctx, "released", released), "auto-release sweep settled escrows")
	}
}

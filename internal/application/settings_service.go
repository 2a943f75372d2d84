package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/mirrorctl/internal/domain"
	"github.com/bnema/mirrorctl/internal/ports"
)

type SettingsService struct {
	repo  ports.SettingsRepository
	clock ports.Clock
}

func NewSettingsService(repo ports.SettingsRepository, clock ports.Clock) *SettingsService {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &SettingsService{
		repo:  repo,
		clock: clock,
	}
}

func (s *SettingsService) Load(ctx context.Context) (domain.Settings, error) {
	settings, err := s.repo.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrSettingsNotFound) {
			return domain.DefaultSettings(), nil
		}
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	if settings.DeviceOptions == nil {
		settings.DeviceOptions = map[domain.DeviceID]domain.MirrorOptions{}
	}

	return settings, nil
}

func (s *SettingsService) OptionsFor(ctx context.Context, id domain.DeviceID) (domain.MirrorOptions, error) {
	settings, err := s.Load(ctx)
	if err != nil {
		return domain.MirrorOptions{}, err
	}

	return settings.OptionsFor(id), nil
}

func (s *SettingsService) SetOptions(ctx context.Context, cmd SetOptionsCommand) error {
	if err := cmd.Options.Validate(); err != nil {
		return fmt.Errorf("validate options: %w", err)
	}

	return s.update(ctx, func(settings *domain.Settings) bool {
		if cmd.DeviceID == "" {
			settings.DefaultOptions = cmd.Options
		} else {
			settings.DeviceOptions[cmd.DeviceID] = cmd.Options
		}
		return true
	})
}

func (s *SettingsService) ClearDeviceOptions(ctx context.Context, id domain.DeviceID) error {
	return s.update(ctx, func(settings *domain.Settings) bool {
		if _, ok := settings.DeviceOptions[id]; !ok {
			return false
		}
		delete(settings.DeviceOptions, id)
		return true
	})
}

func (s *SettingsService) RememberHost(ctx context.Context, host string) error {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil
	}

	return s.update(ctx, func(settings *domain.Settings) bool {
		return settings.RememberHost(host)
	})
}

func (s *SettingsService) ForgetHost(ctx context.Context, host string) error {
	return s.update(ctx, func(settings *domain.Settings) bool {
		return settings.ForgetHost(host)
	})
}

func (s *SettingsService) KnownHosts(ctx context.Context) ([]string, error) {
	settings, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	return append([]string(nil), settings.KnownHosts...), nil
}

func (s *SettingsService) update(ctx context.Context, mutate func(*domain.Settings) bool) error {
	settings, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if !mutate(&settings) {
		return nil
	}

	settings.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	return nil
}

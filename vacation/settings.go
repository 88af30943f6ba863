package vacation

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/warp/vacation-engine/generic"
)

// SettingsService reads and updates the singleton quota record.
type SettingsService struct {
	Store  generic.Store
	Audit  *Auditor
	Logger logrus.FieldLogger
}

// EnsureDefaults seeds generic.DefaultSettings when no record exists yet.
func (s *SettingsService) EnsureDefaults(ctx context.Context) (generic.Settings, error) {
	current, err := s.Store.ReadSettings(ctx)
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, generic.ErrSettingsNotFound) {
		return generic.Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	defaults := generic.DefaultSettings()
	if err := s.Store.SaveSettings(ctx, defaults); err != nil {
		return generic.Settings{}, fmt.Errorf("failed to seed settings: %w", err)
	}
	logger(s.Logger).Info("default settings seeded")
	return defaults, nil
}

func (s *SettingsService) Get(ctx context.Context) (generic.Settings, error) {
	return s.Store.ReadSettings(ctx)
}

func (s *SettingsService) Update(ctx context.Context, settings generic.Settings) (generic.Settings, error) {
	if err := settings.Validate(); err != nil {
		return generic.Settings{}, err
	}
	if err := s.Store.SaveSettings(ctx, settings); err != nil {
		return generic.Settings{}, fmt.Errorf("failed to save settings: %w", err)
	}

	payload := make(map[string]any, len(settings.Quotas))
	for g, q := range settings.Quotas {
		payload[string(g)] = q
	}
	s.Audit.Record(ctx, generic.AuditSettingsUpdated, generic.EmployeeKey{}, payload)
	return settings, nil
}

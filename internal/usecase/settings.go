package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/farmstock/stockmon/internal/domain"
)

const (
	// SettingsCacheKey is the local store key for the cached settings.
	SettingsCacheKey = "notification_settings"

	// SettingsPendingKey marks a local save the backend has not accepted yet.
	SettingsPendingKey = "notification_settings_pending"
)

// SettingsStore loads and saves notification settings. The local copy is
// written first so the monitor keeps working offline; the backend copy is
// synced on a best-effort basis.
type SettingsStore struct {
	remote  domain.SettingsRemote
	local   domain.KeyValueStore
	tokens  domain.TokenSource
	timeout time.Duration
	logger  *zap.Logger
}

// NewSettingsStore creates a settings store.
func NewSettingsStore(
	remote domain.SettingsRemote,
	local domain.KeyValueStore,
	tokens domain.TokenSource,
	timeout time.Duration,
	logger *zap.Logger,
) *SettingsStore {
	return &SettingsStore{
		remote:  remote,
		local:   local,
		tokens:  tokens,
		timeout: timeout,
		logger:  logger,
	}
}

// Load returns the backend settings when reachable, otherwise the last
// cached settings, otherwise the defaults. It never fails.
// A local save that never reached the backend is pushed again first, and
// until that succeeds the local copy wins over the backend's.
func (s *SettingsStore) Load(ctx context.Context) domain.NotificationSettings {
	if s.tokens.Token() != "" {
		if s.pending() {
			if settings, ok := s.resync(ctx); ok {
				return settings
			}
		}

		remoteCtx, cancel := context.WithTimeout(ctx, s.timeout)
		settings, err := s.remote.GetSettings(remoteCtx)
		cancel()
		if err == nil {
			if cacheErr := s.writeLocal(settings); cacheErr != nil {
				s.logger.Warn("failed to cache settings", zap.Error(cacheErr))
			}
			return settings
		}
		if errors.Is(err, domain.ErrUnsupported) {
			s.logger.Debug("backend has no settings endpoint, using local settings")
		} else {
			s.logger.Warn("failed to load remote settings, using local settings", zap.Error(err))
		}
	}

	settings, err := s.readLocal()
	if err == nil {
		return settings
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("cached settings unreadable, using defaults", zap.Error(err))
	}
	return domain.DefaultSettings()
}

// Save writes settings locally, then to the backend. Only a local write
// failure is returned; backend failures are logged.
func (s *SettingsStore) Save(ctx context.Context, settings domain.NotificationSettings) error {
	if err := s.writeLocal(settings); err != nil {
		return fmt.Errorf("failed to save settings locally: %w", err)
	}

	if s.tokens.Token() == "" {
		s.logger.Debug("not signed in, settings saved locally only")
		return nil
	}

	remoteCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.remote.PutSettings(remoteCtx, settings)
	switch {
	case err == nil:
		s.logger.Debug("settings synced to backend")
		s.setPending(false)
	case errors.Is(err, domain.ErrUnsupported):
		s.logger.Info("backend does not support settings sync, running in local-only mode")
		s.setPending(false)
	default:
		s.logger.Warn("failed to sync settings to backend", zap.Error(err))
		s.setPending(true)
	}
	return nil
}

// resync pushes the cached settings to the backend. ok is false when there
// is no usable local copy, in which case the caller falls through.
func (s *SettingsStore) resync(ctx context.Context) (domain.NotificationSettings, bool) {
	settings, err := s.readLocal()
	if err != nil {
		s.setPending(false)
		return domain.NotificationSettings{}, false
	}

	remoteCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err = s.remote.PutSettings(remoteCtx, settings)
	switch {
	case err == nil:
		s.logger.Info("unsynced settings pushed to backend")
		s.setPending(false)
	case errors.Is(err, domain.ErrUnsupported):
		s.setPending(false)
	default:
		s.logger.Warn("settings still not synced, using local settings", zap.Error(err))
	}
	return settings, true
}

func (s *SettingsStore) pending() bool {
	v, err := s.local.Get(SettingsPendingKey)
	return err == nil && v != ""
}

func (s *SettingsStore) setPending(pending bool) {
	value := ""
	if pending {
		value = "1"
	}
	if err := s.local.Set(SettingsPendingKey, value); err != nil {
		s.logger.Warn("failed to record settings sync state", zap.Error(err))
	}
}

func (s *SettingsStore) readLocal() (domain.NotificationSettings, error) {
	raw, err := s.local.Get(SettingsCacheKey)
	if err != nil {
		return domain.NotificationSettings{}, err
	}
	settings := domain.DefaultSettings()
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return domain.NotificationSettings{}, fmt.Errorf("decode cached settings: %w", err)
	}
	return settings, nil
}

func (s *SettingsStore) writeLocal(settings domain.NotificationSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return s.local.Set(SettingsCacheKey, string(raw))
}

// Package daemon runs the long-lived stock monitor: startup checks, the
// polling schedule, heartbeats and settings refresh.
package daemon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/farmstock/stockmon/internal/domain"
	"github.com/farmstock/stockmon/internal/usecase"
)

// DeviceRegistration re-registers the cached push token at startup.
type DeviceRegistration interface {
	RegisterCached(ctx context.Context, platform string)
}

// MonitorConfig holds monitor daemon configuration.
type MonitorConfig struct {
	HeartbeatInterval time.Duration // How often to refresh the daemon record
	SettingsRefresh   time.Duration // How often to reload settings and reconcile the schedule
	Platform          string        // Reported with the push token
	Version           string
	Mode              string
}

// DefaultMonitorConfig returns default monitor configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		HeartbeatInterval: 30 * time.Second,
		SettingsRefresh:   5 * time.Minute,
		Platform:          "android",
	}
}

// Monitor is the stock monitor daemon.
// It checks notification permission, starts the poller when automatic
// alerts are on, and keeps the schedule in line with settings changed
// elsewhere.
type Monitor struct {
	config   MonitorConfig
	notifier domain.DeviceNotifier
	settings usecase.SettingsLoader
	devices  DeviceRegistration
	poller   *Poller
	store    domain.DaemonStateStore
	pm       domain.ProcessManager
	clock    domain.Clock
	logger   *zap.Logger

	mu    sync.Mutex
	state domain.DaemonState
}

// NewMonitor creates a new monitor daemon.
func NewMonitor(
	config MonitorConfig,
	notifier domain.DeviceNotifier,
	settings usecase.SettingsLoader,
	devices DeviceRegistration,
	poller *Poller,
	store domain.DaemonStateStore,
	pm domain.ProcessManager,
	clock domain.Clock,
	logger *zap.Logger,
) *Monitor {
	return &Monitor{
		config:   config,
		notifier: notifier,
		settings: settings,
		devices:  devices,
		poller:   poller,
		store:    store,
		pm:       pm,
		clock:    clock,
		logger:   logger,
	}
}

// Run starts the monitor loop. It blocks until ctx is canceled, or
// returns domain.ErrPermissionDenied at once if notifications are not
// allowed.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.notifier.ConfigureChannels(ctx, usecase.DefaultChannels()); err != nil {
		m.logger.Warn("failed to configure notification channels", zap.Error(err))
	}

	granted, err := m.notifier.PermissionGranted(ctx)
	if err != nil || !granted {
		m.logger.Error("notification permission not granted, stock monitor will not start", zap.Error(err))
		return domain.ErrPermissionDenied
	}

	now := m.clock.Now()
	m.mu.Lock()
	m.state = domain.DaemonState{
		PID:           m.pm.GetCurrentPID(),
		Version:       m.config.Version,
		StartedAt:     now,
		LastHeartbeat: now,
		Mode:          m.config.Mode,
	}
	m.mu.Unlock()
	m.saveState()

	m.logger.Info("stock monitor started",
		zap.Int("pid", m.state.PID),
		zap.String("version", m.config.Version))

	m.devices.RegisterCached(ctx, m.config.Platform)

	m.poller.OnCycle(m.recordCycle)
	m.poller.Start(ctx, m.settings.Load(ctx))

	heartbeatTicker := time.NewTicker(m.config.HeartbeatInterval)
	refreshTicker := time.NewTicker(m.config.SettingsRefresh)
	defer func() {
		heartbeatTicker.Stop()
		refreshTicker.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("stock monitor stopping")
			m.poller.Stop()
			if err := m.store.ClearState(); err != nil {
				m.logger.Warn("failed to clear daemon state", zap.Error(err))
			}
			return ctx.Err()

		case <-heartbeatTicker.C:
			m.mu.Lock()
			m.state.LastHeartbeat = m.clock.Now()
			m.mu.Unlock()
			m.saveState()

		case <-refreshTicker.C:
			m.poller.Reconcile(ctx, m.settings.Load(ctx))
		}
	}
}

// State returns a copy of the current daemon record.
func (m *Monitor) State() domain.DaemonState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) recordCycle(result *domain.CycleResult) {
	m.mu.Lock()
	m.state.LastCycleAt = result.ExecutedAt
	m.state.LastCycleSent = result.Dispatched()
	m.mu.Unlock()
	m.saveState()
}

func (m *Monitor) saveState() {
	if err := m.store.SaveState(m.State()); err != nil {
		m.logger.Warn("failed to save daemon state", zap.Error(err))
	}
}

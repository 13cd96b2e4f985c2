package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/farmstock/stockmon/internal/domain"
	"github.com/farmstock/stockmon/internal/metrics"
)

// PollerState is the scheduler state reported by /status.
type PollerState string

const (
	StateIdle      PollerState = "idle"
	StateScheduled PollerState = "scheduled"
	StateRunning   PollerState = "running"
)

// PollerConfig holds the periodic schedule.
type PollerConfig struct {
	StartupDelay time.Duration // Delay before the first automatic cycle
	Interval     time.Duration // Time between automatic cycles
}

// DefaultPollerConfig returns the production schedule: first check after
// 3s, then every 15 minutes.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		StartupDelay: 3 * time.Second,
		Interval:     15 * time.Minute,
	}
}

// CycleRunner runs one stock check.
type CycleRunner interface {
	RunCycle(ctx context.Context, trigger domain.CycleTrigger) (*domain.CycleResult, error)
	Running() bool
}

// Poller owns the periodic timer. Automatic cycles run on the cron
// goroutine; manual cycles run on the caller's goroutine. The runner
// rejects overlapping cycles.
type Poller struct {
	config PollerConfig
	runner CycleRunner
	logger *zap.Logger

	mu         sync.Mutex
	scheduled  bool
	generation int
	startTimer *time.Timer
	cron       *cron.Cron
	cancel     context.CancelFunc
	onCycle    func(*domain.CycleResult)
}

// NewPoller creates an idle poller.
func NewPoller(config PollerConfig, runner CycleRunner, logger *zap.Logger) *Poller {
	return &Poller{
		config: config,
		runner: runner,
		logger: logger,
	}
}

// OnCycle registers a hook called after every finished cycle, automatic
// or manual.
func (p *Poller) OnCycle(fn func(*domain.CycleResult)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCycle = fn
}

// Start schedules automatic cycles. It does nothing when automatic alerts
// are disabled or a schedule already exists, and reports whether it
// created one.
func (p *Poller) Start(ctx context.Context, settings domain.NotificationSettings) bool {
	if !settings.AutomaticStockAlerts {
		p.logger.Info("automatic stock alerts disabled, scheduler not started")
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.scheduled {
		return false
	}

	cycleCtx, cancel := context.WithCancel(ctx)
	p.generation++
	gen := p.generation

	c := cron.New(
		cron.WithLogger(cronLogger{p.logger}),
		cron.WithChain(cron.Recover(cronLogger{p.logger})),
	)
	c.Schedule(cron.Every(p.config.Interval), cron.FuncJob(func() {
		p.runAutomatic(cycleCtx)
	}))

	p.cron = c
	p.cancel = cancel
	p.scheduled = true
	p.startTimer = time.AfterFunc(p.config.StartupDelay, func() {
		p.mu.Lock()
		if !p.scheduled || p.generation != gen {
			p.mu.Unlock()
			return
		}
		c.Start()
		p.mu.Unlock()

		p.runAutomatic(cycleCtx)
	})

	metrics.SchedulerActive.Set(1)
	p.logger.Info("scheduler started",
		zap.Duration("startup_delay", p.config.StartupDelay),
		zap.Duration("interval", p.config.Interval))
	return true
}

// Stop removes the schedule and cancels an in-flight automatic cycle.
// Safe to call repeatedly.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.scheduled {
		return
	}

	p.startTimer.Stop()
	p.cron.Stop()
	p.cancel()

	p.scheduled = false
	p.startTimer, p.cron, p.cancel = nil, nil, nil

	metrics.SchedulerActive.Set(0)
	p.logger.Info("scheduler stopped")
}

// Reconcile starts or stops the schedule to match settings.
func (p *Poller) Reconcile(ctx context.Context, settings domain.NotificationSettings) {
	if settings.AutomaticStockAlerts {
		p.Start(ctx, settings)
		return
	}
	p.Stop()
}

// Trigger runs a manual cycle now, whatever the schedule state.
func (p *Poller) Trigger(ctx context.Context) (*domain.CycleResult, error) {
	result, err := p.runner.RunCycle(ctx, domain.TriggerManual)
	if errors.Is(err, domain.ErrCycleInProgress) {
		p.logger.Info("manual check rejected, a check is already running")
		return nil, err
	}
	p.finished(result)
	return result, err
}

// TriggerAsync starts a manual cycle in the background. It fails fast
// when a cycle is already running.
func (p *Poller) TriggerAsync(ctx context.Context) error {
	if p.runner.Running() {
		return domain.ErrCycleInProgress
	}
	go func() {
		if _, err := p.Trigger(ctx); err != nil && !errors.Is(err, domain.ErrCycleInProgress) {
			p.logger.Info("manual check ended early", zap.Error(err))
		}
	}()
	return nil
}

// State returns the current scheduler state.
func (p *Poller) State() PollerState {
	if p.runner.Running() {
		return StateRunning
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.scheduled {
		return StateScheduled
	}
	return StateIdle
}

// Next returns the next automatic run time, or zero when idle or not yet
// past the startup delay.
func (p *Poller) Next() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron == nil {
		return time.Time{}
	}
	entries := p.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (p *Poller) runAutomatic(ctx context.Context) {
	result, err := p.runner.RunCycle(ctx, domain.TriggerAutomatic)
	switch {
	case errors.Is(err, domain.ErrCycleInProgress):
		p.logger.Info("previous check still running, skipping scheduled check")
		return
	case err != nil && ctx.Err() != nil:
		p.logger.Debug("scheduled check canceled")
	case err != nil:
		p.logger.Warn("scheduled check failed", zap.Error(err))
	}
	if result != nil && result.AutomaticDisabled {
		p.logger.Info("automatic stock alerts turned off, stopping scheduler")
		p.Stop()
	}
	p.finished(result)
}

func (p *Poller) finished(result *domain.CycleResult) {
	if result == nil {
		return
	}
	p.mu.Lock()
	fn := p.onCycle
	p.mu.Unlock()
	if fn != nil {
		fn(result)
	}
}

// cronLogger routes robfig/cron logs into zap.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}

var _ cron.Logger = cronLogger{}

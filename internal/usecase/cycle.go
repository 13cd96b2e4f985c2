// Package usecase contains application business logic.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/farmstock/stockmon/internal/category"
	"github.com/farmstock/stockmon/internal/domain"
	"github.com/farmstock/stockmon/internal/metrics"
)

// CycleConfig holds the delays used while walking the categories.
type CycleConfig struct {
	AutoSettle   time.Duration // Delay before the first category (automatic)
	ManualSettle time.Duration // Delay before the first category (manual)
	AutoGapMin   time.Duration // Random gap between categories (automatic)
	AutoGapMax   time.Duration
	ManualGapMin time.Duration // Random gap between categories (manual)
	ManualGapMax time.Duration
	FailureDelay time.Duration // Fixed gap after a failed category
}

// DefaultCycleConfig returns production delays.
func DefaultCycleConfig() CycleConfig {
	return CycleConfig{
		AutoSettle:   5 * time.Second,
		ManualSettle: 1 * time.Second,
		AutoGapMin:   5 * time.Second,
		AutoGapMax:   10 * time.Second,
		ManualGapMin: 8 * time.Second,
		ManualGapMax: 12 * time.Second,
		FailureDelay: 2 * time.Second,
	}
}

// SettingsLoader returns the current notification settings.
type SettingsLoader interface {
	Load(ctx context.Context) domain.NotificationSettings
}

// AlertDispatcher delivers one alert and returns its notification ID.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, alert domain.Alert) (string, error)
}

// CycleRunner runs one pass over all categories. Only one pass may run at
// a time; a second request while one is in flight is rejected.
type CycleRunner struct {
	config     CycleConfig
	registry   *category.Registry
	source     domain.StockSource
	settings   SettingsLoader
	limiter    *RateLimiter
	dispatcher AlertDispatcher
	tokens     domain.TokenSource
	sleeper    domain.Sleeper
	clock      domain.Clock
	rng        *rand.Rand
	logger     *zap.Logger

	running atomic.Bool
}

// NewCycleRunner creates a cycle runner.
func NewCycleRunner(
	config CycleConfig,
	registry *category.Registry,
	source domain.StockSource,
	settings SettingsLoader,
	limiter *RateLimiter,
	dispatcher AlertDispatcher,
	tokens domain.TokenSource,
	sleeper domain.Sleeper,
	clock domain.Clock,
	rng *rand.Rand,
	logger *zap.Logger,
) *CycleRunner {
	return &CycleRunner{
		config:     config,
		registry:   registry,
		source:     source,
		settings:   settings,
		limiter:    limiter,
		dispatcher: dispatcher,
		tokens:     tokens,
		sleeper:    sleeper,
		clock:      clock,
		rng:        rng,
		logger:     logger,
	}
}

// Running reports whether a cycle is in flight.
func (c *CycleRunner) Running() bool {
	return c.running.Load()
}

// RunCycle checks every category once. The returned result is non-nil
// whenever the cycle started, including when ctx is canceled part way.
func (c *CycleRunner) RunCycle(ctx context.Context, trigger domain.CycleTrigger) (*domain.CycleResult, error) {
	if !c.running.CompareAndSwap(false, true) {
		metrics.Cycles.WithLabelValues(string(trigger), "rejected").Inc()
		return nil, domain.ErrCycleInProgress
	}
	defer c.running.Store(false)

	start := c.clock.Now()
	result := &domain.CycleResult{
		Trigger:    trigger,
		Categories: make([]domain.CategoryResult, 0, len(c.registry.List())),
		ExecutedAt: start,
	}
	defer func() {
		result.DurationMs = c.clock.Now().Sub(start).Milliseconds()
		metrics.CycleDuration.WithLabelValues(string(trigger)).Observe(float64(result.DurationMs) / 1000)
	}()

	if c.tokens.Token() == "" {
		c.logger.Info("not signed in, skipping stock check", zap.String("trigger", string(trigger)))
		result.Skipped = true
		metrics.Cycles.WithLabelValues(string(trigger), "skipped").Inc()
		return result, nil
	}

	settings := c.settings.Load(ctx)
	if trigger == domain.TriggerAutomatic && !settings.AutomaticStockAlerts {
		c.logger.Info("automatic stock alerts disabled, skipping scheduled check")
		result.Skipped = true
		result.AutomaticDisabled = true
		metrics.Cycles.WithLabelValues(string(trigger), "disabled").Inc()
		return result, nil
	}

	handlers := make([]category.Handler, 0, len(c.registry.List()))
	for _, h := range c.registry.Shuffled(c.rng) {
		if !category.Active(h, settings) {
			c.logger.Debug("all alerts disabled for category", zap.String("category", string(h.ID())))
			continue
		}
		handlers = append(handlers, h)
	}

	settle, gapMin, gapMax := c.config.AutoSettle, c.config.AutoGapMin, c.config.AutoGapMax
	if trigger == domain.TriggerManual {
		settle, gapMin, gapMax = c.config.ManualSettle, c.config.ManualGapMin, c.config.ManualGapMax
	}

	c.logger.Info("stock check started",
		zap.String("trigger", string(trigger)),
		zap.Int("categories", len(handlers)))

	if err := c.sleeper.Sleep(ctx, settle); err != nil {
		return c.canceled(result, err)
	}

	for i, h := range handlers {
		res := c.runCategory(ctx, h, settings)
		result.Categories = append(result.Categories, res)

		if err := ctx.Err(); err != nil {
			return c.canceled(result, err)
		}
		if i == len(handlers)-1 {
			break
		}

		delay := jitter(c.rng, gapMin, gapMax)
		if res.Err != nil {
			delay = c.config.FailureDelay
		}
		if err := c.sleeper.Sleep(ctx, delay); err != nil {
			return c.canceled(result, err)
		}
	}

	metrics.Cycles.WithLabelValues(string(trigger), "completed").Inc()
	c.logger.Info("stock check completed",
		zap.String("trigger", string(trigger)),
		zap.Int("dispatched", result.Dispatched()),
		zap.Duration("duration", c.clock.Now().Sub(start)))

	return result, nil
}

func (c *CycleRunner) canceled(result *domain.CycleResult, err error) (*domain.CycleResult, error) {
	metrics.Cycles.WithLabelValues(string(result.Trigger), "canceled").Inc()
	c.logger.Info("stock check canceled", zap.Int("dispatched", result.Dispatched()))
	return result, err
}

type pendingAlert struct {
	item  domain.StockItem
	alert domain.Alert
}

// runCategory fetches, evaluates and dispatches for one category. Panics
// are recovered here so one category cannot take down the cycle.
func (c *CycleRunner) runCategory(ctx context.Context, h category.Handler, settings domain.NotificationSettings) (res domain.CategoryResult) {
	cat := h.ID()
	res.Category = cat

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("category %s handler panicked: %v", cat, r)
			c.logger.Error("category check crashed", zap.String("category", string(cat)), zap.Any("panic", r))
		}
	}()

	items, err := c.source.Fetch(ctx, cat)
	if err != nil {
		res.Err = err
		c.logger.Warn("category skipped this cycle", zap.String("category", string(cat)), zap.Error(err))
		return res
	}
	res.ItemCount = len(items)

	now := c.clock.Now()
	var due []pendingAlert
	for _, item := range items {
		alert, ok := Evaluate(item, h.Families(), settings, now)
		if !ok {
			continue
		}
		res.Alerts++

		if !c.limiter.AdmitItem(item) {
			res.Skipped++
			metrics.NotificationsSkipped.WithLabelValues(string(cat), "item_cooldown").Inc()
			c.logger.Debug("item notified recently, skipping",
				zap.String("category", string(cat)),
				zap.String("item", item.Name))
			continue
		}
		due = append(due, pendingAlert{item: item, alert: alert})
	}

	// Slots are reserved before the first dispatch delay so the jitter
	// cannot carry later alerts into a fresh window.
	admitted := due[:0]
	for _, p := range due {
		if !c.limiter.Admit(cat) {
			res.Skipped++
			metrics.NotificationsSkipped.WithLabelValues(string(cat), "category_window").Inc()
			c.logger.Info("notification skipped by rate limiter",
				zap.String("category", string(cat)),
				zap.String("item", p.item.Name),
				zap.String("kind", string(p.alert.Kind)),
				zap.Int("window_count", c.limiter.WindowCount(cat)))
			continue
		}
		admitted = append(admitted, p)
	}

	unused := len(admitted)
	defer func() { c.limiter.Release(cat, unused) }()

	for _, p := range admitted {
		if ctx.Err() != nil {
			return res
		}

		id, err := c.dispatcher.Dispatch(ctx, p.alert)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return res
			}
			unused--
			c.limiter.Release(cat, 1)
			metrics.DispatchFailures.WithLabelValues(string(cat)).Inc()
			c.logger.Warn("failed to dispatch notification",
				zap.String("category", string(cat)),
				zap.String("item", p.item.Name),
				zap.Error(err))
			continue
		}

		unused--
		c.limiter.Sent(cat)
		c.limiter.RecordSent(p.item)
		metrics.NotificationsDispatched.WithLabelValues(string(cat), string(p.alert.Kind)).Inc()
		res.Dispatched = append(res.Dispatched, id)
	}

	return res
}

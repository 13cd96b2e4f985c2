package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/farmstock/stockmon/internal/category"
	"github.com/farmstock/stockmon/internal/domain"
)

// Channel IDs configured on the device.
const (
	ChannelDefault     = "default"
	ChannelStock       = "stock-alerts"
	ChannelMaintenance = "maintenance-alerts"
	ChannelAnimal      = "animal-alerts"
)

// DispatcherConfig holds dispatch timing.
type DispatcherConfig struct {
	MinJitter   time.Duration // Lower bound of the pre-dispatch delay
	MaxJitter   time.Duration // Upper bound of the pre-dispatch delay
	CallTimeout time.Duration // Bound on each device and backend call
}

// DefaultDispatcherConfig returns the 1-7s jitter used in production.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		MinJitter:   1 * time.Second,
		MaxJitter:   7 * time.Second,
		CallTimeout: 10 * time.Second,
	}
}

// Dispatcher turns alerts into device notifications. It is driven by one
// cycle at a time and is not safe for concurrent use.
type Dispatcher struct {
	config   DispatcherConfig
	notifier domain.DeviceNotifier
	cooldown domain.CooldownWriter
	registry *category.Registry
	sleeper  domain.Sleeper
	clock    domain.Clock
	rng      *rand.Rand
	logger   *zap.Logger
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(
	config DispatcherConfig,
	notifier domain.DeviceNotifier,
	cooldown domain.CooldownWriter,
	registry *category.Registry,
	sleeper domain.Sleeper,
	clock domain.Clock,
	rng *rand.Rand,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		config:   config,
		notifier: notifier,
		cooldown: cooldown,
		registry: registry,
		sleeper:  sleeper,
		clock:    clock,
		rng:      rng,
		logger:   logger,
	}
}

// Dispatch waits a random delay, schedules the notification and returns the
// device notification ID. After a successful schedule the item's
// last-notified time is written back to the backend on a best-effort basis.
func (d *Dispatcher) Dispatch(ctx context.Context, alert domain.Alert) (string, error) {
	n := d.Compose(alert)

	delay := jitter(d.rng, d.config.MinJitter, d.config.MaxJitter)

	if err := d.sleeper.Sleep(ctx, delay); err != nil {
		return "", err
	}

	scheduleCtx, cancel := context.WithTimeout(ctx, d.config.CallTimeout)
	id, err := d.notifier.Schedule(scheduleCtx, n)
	cancel()
	if err != nil {
		return "", fmt.Errorf("schedule notification for %s: %w", alert.ItemName, err)
	}

	d.logger.Info("notification dispatched",
		zap.String("notification_id", id),
		zap.String("category", string(alert.Category)),
		zap.String("kind", string(alert.Kind)),
		zap.String("item", alert.ItemName),
		zap.Duration("jitter", delay))

	d.markSent(ctx, alert)
	return id, nil
}

func (d *Dispatcher) markSent(ctx context.Context, alert domain.Alert) {
	if d.cooldown == nil || alert.ItemID == "" {
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, d.config.CallTimeout)
	defer cancel()

	err := d.cooldown.MarkNotificationSent(writeCtx, alert.ItemID, d.clock.Now())
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUnsupported):
		d.logger.Debug("backend does not record notification time",
			zap.String("item_id", alert.ItemID))
	default:
		d.logger.Warn("failed to record notification time",
			zap.String("item_id", alert.ItemID),
			zap.Error(err))
	}
}

// Compose builds the device notification for an alert.
func (d *Dispatcher) Compose(alert domain.Alert) domain.Notification {
	icon, color := "bell", "#2E7D32"
	if h, ok := d.registry.Get(alert.Category); ok {
		icon, color = h.Icon(), h.Color()
	}

	return domain.Notification{
		Title:     Title(alert),
		Body:      alert.Message,
		ChannelID: ChannelFor(alert.Kind),
		Color:     color,
		Icon:      icon,
		Data: map[string]string{
			"type":     "stock_alert",
			"category": string(alert.Category),
			"kind":     string(alert.Kind),
			"itemId":   alert.ItemID,
		},
	}
}

// ChannelFor maps an alert kind to its device channel.
func ChannelFor(kind domain.AlertKind) string {
	switch kind {
	case domain.AlertLowStock, domain.AlertExpiry:
		return ChannelStock
	case domain.AlertMaintenance:
		return ChannelMaintenance
	case domain.AlertVaccination, domain.AlertBreeding:
		return ChannelAnimal
	default:
		return ChannelDefault
	}
}

// Title returns the notification headline for an alert.
func Title(alert domain.Alert) string {
	switch alert.Kind {
	case domain.AlertLowStock:
		return "Low stock: " + alert.ItemName
	case domain.AlertExpiry:
		return "Expiring soon: " + alert.ItemName
	case domain.AlertMaintenance:
		return "Maintenance due: " + alert.ItemName
	case domain.AlertVaccination:
		return "Vaccination due: " + alert.ItemName
	case domain.AlertBreeding:
		return "Breeding alert: " + alert.ItemName
	default:
		return "Stock alert: " + alert.ItemName
	}
}

// jitter returns a uniformly random duration in [min, max].
func jitter(rng *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rng.Int64N(int64(max-min)+1))
}

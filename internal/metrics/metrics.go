// Package metrics exposes Prometheus collectors for the stock monitor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsDispatched tracks notifications handed to the device
	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockmon_notifications_dispatched_total",
			Help: "Total number of stock notifications scheduled on the device",
		},
		[]string{"category", "kind"},
	)

	// NotificationsSkipped tracks alerts suppressed before dispatch
	NotificationsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockmon_notifications_skipped_total",
			Help: "Total number of alerts suppressed by rate limiting or cooldown",
		},
		[]string{"category", "reason"}, // item_cooldown, category_window
	)

	// DispatchFailures tracks alerts the device notifier refused
	DispatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockmon_dispatch_failures_total",
			Help: "Total number of failed notification dispatches",
		},
		[]string{"category"},
	)

	// FetchFailures tracks failed stock endpoint calls
	FetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockmon_fetch_failures_total",
			Help: "Total number of failed stock fetches",
		},
		[]string{"category", "source"}, // primary, fallback
	)

	// ThrottledFetches tracks 429 responses answered from the previous cycle
	ThrottledFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockmon_throttled_fetches_total",
			Help: "Total number of throttled fetches served from previous cycle data",
		},
		[]string{"category"},
	)

	// Cycles tracks poll cycles by trigger and outcome
	Cycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockmon_cycles_total",
			Help: "Total number of poll cycles",
		},
		[]string{"trigger", "outcome"}, // completed, skipped, canceled, rejected
	)

	// CycleDuration tracks how long a full poll cycle takes
	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stockmon_cycle_duration_seconds",
			Help:    "Poll cycle duration in seconds",
			Buckets: []float64{5, 15, 30, 60, 90, 120, 180, 300},
		},
		[]string{"trigger"},
	)

	// SchedulerActive is 1 while the periodic timer exists
	SchedulerActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stockmon_scheduler_active",
			Help: "Whether automatic stock checks are scheduled",
		},
	)
)

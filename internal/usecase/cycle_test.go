package usecase

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/farmstock/stockmon/internal/category"
	"github.com/farmstock/stockmon/internal/domain"
)

type cycleFixture struct {
	runner   *CycleRunner
	source   *mockSource
	notifier *mockNotifier
	sleeper  *fakeSleeper
	clock    *fakeClock
	limiter  *RateLimiter
}

func newCycleFixture(settings domain.NotificationSettings, token string) *cycleFixture {
	return newCycleFixtureWithDispatch(settings, token, DefaultDispatcherConfig())
}

func newCycleFixtureWithDispatch(settings domain.NotificationSettings, token string, dc DispatcherConfig) *cycleFixture {
	f := &cycleFixture{
		source: &mockSource{
			items:  make(map[domain.Category][]domain.StockItem),
			errs:   make(map[domain.Category]error),
			panics: make(map[domain.Category]bool),
		},
		notifier: &mockNotifier{},
		sleeper:  &fakeSleeper{},
		clock:    newFakeClock(),
	}
	registry := category.NewRegistry()
	f.limiter = NewRateLimiter(f.clock)
	f.notifier.clock = f.clock
	dispatcher := NewDispatcher(dc, f.notifier, &mockCooldownWriter{}, registry,
		f.sleeper, f.clock, rand.New(rand.NewPCG(3, 4)), zap.NewNop())

	f.runner = NewCycleRunner(
		DefaultCycleConfig(),
		registry,
		f.source,
		staticSettings{settings: settings},
		f.limiter,
		dispatcher,
		staticToken(token),
		f.sleeper,
		f.clock,
		rand.New(rand.NewPCG(5, 6)),
		zap.NewNop(),
	)
	return f
}

func lowStock(id string, current, minimum float64) domain.StockItem {
	return domain.StockItem{
		ID:              id,
		Name:            "Pesticide " + id,
		Category:        domain.CategoryPesticide,
		CurrentQuantity: current,
		MinimumQuantity: minimum,
	}
}

func categoryResult(t *testing.T, r *domain.CycleResult, c domain.Category) domain.CategoryResult {
	t.Helper()
	for _, res := range r.Categories {
		if res.Category == c {
			return res
		}
	}
	t.Fatalf("no result for category %s", c)
	return domain.CategoryResult{}
}

func TestRunCycle_PesticideLowStock(t *testing.T) {
	f := newCycleFixture(domain.DefaultSettings(), "tok")
	f.source.items[domain.CategoryPesticide] = []domain.StockItem{lowStock("p1", 2, 10)}

	result, err := f.runner.RunCycle(context.Background(), domain.TriggerAutomatic)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Dispatched())
	scheduled := f.notifier.Scheduled()
	require.Len(t, scheduled, 1)
	assert.Contains(t, scheduled[0].Body, "2")
	assert.Contains(t, scheduled[0].Body, "10")
	assert.Equal(t, ChannelStock, scheduled[0].ChannelID)
}

func TestRunCycle_EmptyCategoriesDispatchNothing(t *testing.T) {
	f := newCycleFixture(domain.DefaultSettings(), "tok")

	result, err := f.runner.RunCycle(context.Background(), domain.TriggerAutomatic)
	require.NoError(t, err)

	assert.Zero(t, result.Dispatched())
	assert.Empty(t, f.notifier.Scheduled())
	assert.Len(t, result.Categories, len(domain.AllCategories))
}

func TestRunCycle_CategoryWindowLimitsBurst(t *testing.T) {
	f := newCycleFixture(domain.DefaultSettings(), "tok")
	f.source.items[domain.CategoryPesticide] = []domain.StockItem{
		lowStock("p1", 1, 5),
		lowStock("p2", 0, 5),
		lowStock("p3", 3, 5),
	}

	result, err := f.runner.RunCycle(context.Background(), domain.TriggerManual)
	require.NoError(t, err)

	res := categoryResult(t, result, domain.CategoryPesticide)
	assert.Equal(t, 3, res.Alerts)
	assert.Len(t, res.Dispatched, 2)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, f.notifier.Scheduled(), 2)
}

func TestRunCycle_CategoryWindowHoldsAcrossDispatchDelays(t *testing.T) {
	for _, delay := range []time.Duration{time.Second, 5 * time.Second, 7 * time.Second} {
		t.Run(delay.String(), func(t *testing.T) {
			f := newCycleFixtureWithDispatch(domain.DefaultSettings(), "tok",
				DispatcherConfig{MinJitter: delay, MaxJitter: delay, CallTimeout: time.Second})
			f.sleeper.advancing(f.clock)
			f.source.items[domain.CategoryPesticide] = []domain.StockItem{
				lowStock("p1", 1, 5),
				lowStock("p2", 0, 5),
				lowStock("p3", 3, 5),
			}

			result, err := f.runner.RunCycle(context.Background(), domain.TriggerManual)
			require.NoError(t, err)

			res := categoryResult(t, result, domain.CategoryPesticide)
			assert.Equal(t, []string{"notif-p1", "notif-p2"}, res.Dispatched)
			assert.Equal(t, 1, res.Skipped)
		})
	}
}

func TestRunCycle_AtMostTwoSendsPerRollingWindow(t *testing.T) {
	f := newCycleFixture(domain.DefaultSettings(), "tok")
	f.sleeper.advancing(f.clock)

	// Back-to-back manual checks, fresh items each time so only the
	// category window can hold them back.
	for cycle := 0; cycle < 20; cycle++ {
		var items []domain.StockItem
		for i := 0; i < 4; i++ {
			items = append(items, lowStock(fmt.Sprintf("c%d-%d", cycle, i), 0, 5))
		}
		f.source.items[domain.CategoryPesticide] = items

		_, err := f.runner.RunCycle(context.Background(), domain.TriggerManual)
		require.NoError(t, err)
	}

	sent := f.notifier.SentAt()
	require.Greater(t, len(sent), 2)
	for i := 2; i < len(sent); i++ {
		assert.GreaterOrEqual(t, sent[i].Sub(sent[i-2]), CategoryWindow,
			"sends %d and %d fall in one window", i-2, i)
	}
}

func TestRunCycle_CategoryWindowResets(t *testing.T) {
	f := newCycleFixture(domain.DefaultSettings(), "tok")
	f.sleeper.advancing(f.clock)
	f.source.items[domain.CategoryPesticide] = []domain.StockItem{
		lowStock("p1", 1, 5),
		lowStock("p2", 0, 5),
		lowStock("p3", 3, 5),
	}

	result, err := f.runner.RunCycle(context.Background(), domain.TriggerManual)
	require.NoError(t, err)
	assert.Len(t, categoryResult(t, result, domain.CategoryPesticide).Dispatched, 2)

	f.clock.Advance(CategoryWindow)
	result, err = f.runner.RunCycle(context.Background(), domain.TriggerManual)
	require.NoError(t, err)

	res := categoryResult(t, result, domain.CategoryPesticide)
	assert.Equal(t, []string{"notif-p3"}, res.Dispatched, "suppressed item goes out in the next window")
	assert.Equal(t, 2, res.Skipped, "p1 and p2 are in their item cooldown")
}

func TestRunCycle_FailedDispatchFreesWindowSlot(t *testing.T) {
	f := newCycleFixture(domain.DefaultSettings(), "tok")
	f.notifier.err = errBackendDown
	f.source.items[domain.CategoryPesticide] = []domain.StockItem{lowStock("p1", 0, 5), lowStock("p2", 0, 5)}

	result, err := f.runner.RunCycle(context.Background(), domain.TriggerManual)
	require.NoError(t, err)

	assert.Empty(t, categoryResult(t, result, domain.CategoryPesticide).Dispatched)
	assert.Zero(t, f.limiter.WindowCount(domain.CategoryPesticide))
}

func TestRunCycle_AutomaticSkippedWhenDisabled(t *testing.T) {
	settings := domain.DefaultSettings()
	settings.AutomaticStockAlerts = false
	f := newCycleFixture(settings, "tok")
	f.source.items[domain.CategoryPesticide] = []domain.StockItem{lowStock("p1", 2, 10)}

	result, err := f.runner.RunCycle(context.Background(), domain.TriggerAutomatic)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.True(t, result.AutomaticDisabled)
	assert.Empty(t, f.source.Fetched())
	assert.Empty(t, f.notifier.Scheduled())

	// A manual check still runs.
	result, err = f.runner.RunCycle(context.Background(), domain.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Dispatched())
}

func TestRunCycle_RecentlyNotifiedItemSkipped(t *testing.T) {
	f := newCycleFixture(domain.DefaultSettings(), "tok")
	item := lowStock("p1", 2, 10)
	sent := f.clock.Now().Add(-3 * time.Hour)
	item.LastNotificationSent = &sent
	f.source.items[domain.CategoryPesticide] = []domain.StockItem{item}

	result, err := f.runner.RunCycle(context.Background(), domain.TriggerAutomatic)
	require.NoError(t, err)

	assert.Zero(t, result.Dispatched())
	assert.Equal(t, 1, categoryResult(t, result, domain.CategoryPesticide).Skipped)
}

func TestRunCycle_NoRealertWithinCooldown(t *testing.T) {
	f := newCycleFixture(domain.DefaultSettings(), "tok")
	f.source.items[domain.CategoryPesticide] = []domain.StockItem{lowStock("p1", 2, 10)}

	_, err := f.runner.RunCycle(context.Background(), domain.TriggerAutomatic)
	require.NoError(t, err)

	// Next scheduled cycle; backend never recorded the send.
	f.clock.Advance(15 * time.Minute)
	result, err := f.runner.RunCycle(context.Background(), domain.TriggerAutomatic)
	require.NoError(t, err)
	assert.Zero(t, result.Dispatched())

	f.clock.Advance(24 * time.Hour)
	result, err = f.runner.RunCycle(context.Background(), domain.TriggerAutomatic)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Dispatched())
}

func TestRunCycle_DisabledCategoriesNotFetched(t *testing.T) {
	settings := domain.DefaultSettings()
	settings.LowStockAlerts = false
	settings.ExpiryAlerts = false

	f := newCycleFixture(settings, "tok")
	f.source.items[domain.CategoryPesticide] = []domain.StockItem{lowStock("p1", 0, 10)}

	result, err := f.runner.RunCycle(context.Background(), domain.TriggerAutomatic)
	require.NoError(t, err)

	assert.Zero(t, result.Dispatched())
	assert.ElementsMatch(t,
		[]domain.Category{domain.CategoryTool, domain.CategoryEquipment, domain.CategoryAnimal},
		f.source.Fetched())
	// Settle delay plus two gaps; disabled categories add no delay.
	assert.Len(t, f.sleeper.Delays(), 3)
}

func TestRunCycle_SkippedWithoutToken(t *testing.T) {
	f := newCycleFixture(domain.DefaultSettings(), "")
	f.source.items[domain.CategoryPesticide] = []domain.StockItem{lowStock("p1", 0, 10)}

	result, err := f.runner.RunCycle(context.Background(), domain.TriggerManual)
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.Empty(t, f.source.Fetched())
	assert.Empty(t, f.sleeper.Delays())
}

func TestRunCycle_CategoryFailuresAreIsolated(t *testing.T) {
	f := newCycleFixture(domain.DefaultSettings(), "tok")
	f.source.panics[domain.CategoryAnimal] = true
	f.source.errs[domain.CategoryFeed] = errBackendDown
	f.source.items[domain.CategoryPesticide] = []domain.StockItem{lowStock("p1", 0, 10)}

	result, err := f.runner.RunCycle(context.Background(), domain.TriggerAutomatic)
	require.NoError(t, err)

	assert.Len(t, result.Categories, len(domain.AllCategories))
	assert.Error(t, categoryResult(t, result, domain.CategoryAnimal).Err)
	assert.ErrorIs(t, categoryResult(t, result, domain.CategoryFeed).Err, errBackendDown)
	assert.Equal(t, 1, result.Dispatched())
}

func TestRunCycle_DelaysAutomatic(t *testing.T) {
	f := newCycleFixture(domain.DefaultSettings(), "tok")

	_, err := f.runner.RunCycle(context.Background(), domain.TriggerAutomatic)
	require.NoError(t, err)

	delays := f.sleeper.Delays()
	require.Len(t, delays, len(domain.AllCategories), "settle delay plus one gap between each pair of categories")
	assert.Equal(t, 5*time.Second, delays[0])
	for _, d := range delays[1:] {
		assert.GreaterOrEqual(t, d, 5*time.Second)
		assert.LessOrEqual(t, d, 10*time.Second)
	}
}

func TestRunCycle_DelaysManual(t *testing.T) {
	f := newCycleFixture(domain.DefaultSettings(), "tok")

	_, err := f.runner.RunCycle(context.Background(), domain.TriggerManual)
	require.NoError(t, err)

	delays := f.sleeper.Delays()
	require.Len(t, delays, len(domain.AllCategories))
	assert.Equal(t, time.Second, delays[0])
	for _, d := range delays[1:] {
		assert.GreaterOrEqual(t, d, 8*time.Second)
		assert.LessOrEqual(t, d, 12*time.Second)
	}
}

func TestRunCycle_FailureUsesFixedDelay(t *testing.T) {
	f := newCycleFixture(domain.DefaultSettings(), "tok")
	for _, c := range domain.AllCategories {
		f.source.errs[c] = errBackendDown
	}

	_, err := f.runner.RunCycle(context.Background(), domain.TriggerAutomatic)
	require.NoError(t, err)

	delays := f.sleeper.Delays()
	require.Len(t, delays, len(domain.AllCategories))
	for _, d := range delays[1:] {
		assert.Equal(t, 2*time.Second, d)
	}
}

func TestRunCycle_RejectsOverlappingRun(t *testing.T) {
	f := newCycleFixture(domain.DefaultSettings(), "tok")

	var nestedErr error
	var nestedResult *domain.CycleResult
	calls := 0
	f.sleeper.hook = func(time.Duration) {
		calls++
		if calls == 1 {
			assert.True(t, f.runner.Running())
			nestedResult, nestedErr = f.runner.RunCycle(context.Background(), domain.TriggerManual)
		}
	}

	_, err := f.runner.RunCycle(context.Background(), domain.TriggerAutomatic)
	require.NoError(t, err)

	assert.ErrorIs(t, nestedErr, domain.ErrCycleInProgress)
	assert.Nil(t, nestedResult)
	assert.False(t, f.runner.Running())

	// Guard is released once the cycle ends
	_, err = f.runner.RunCycle(context.Background(), domain.TriggerManual)
	assert.NoError(t, err)
}

func TestRunCycle_CancelStopsInFlightCycle(t *testing.T) {
	f := newCycleFixture(domain.DefaultSettings(), "tok")
	f.source.items[domain.CategoryPesticide] = []domain.StockItem{lowStock("p1", 0, 10)}

	ctx, cancel := context.WithCancel(context.Background())
	f.sleeper.hook = func(time.Duration) { cancel() }

	result, err := f.runner.RunCycle(ctx, domain.TriggerAutomatic)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Empty(t, f.source.Fetched(), "cancel during the settle delay stops before any fetch")
	assert.False(t, f.runner.Running())
}

package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/farmstock/stockmon/internal/domain"
)

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testNow}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeSleeper records requested delays without waiting
type fakeSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
	hook   func(d time.Duration)
}

func (s *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}

// advancing makes every sleep move clock forward by the requested delay.
func (s *fakeSleeper) advancing(clock *fakeClock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = clock.Advance
}

func (s *fakeSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// mockNotifier implements domain.DeviceNotifier for testing
type mockNotifier struct {
	mu        sync.Mutex
	scheduled []domain.Notification
	sentAt    []time.Time
	clock     domain.Clock // when set, send times are recorded
	err       error
}

func (m *mockNotifier) ConfigureChannels(ctx context.Context, channels []domain.Channel) error {
	return nil
}

func (m *mockNotifier) PermissionGranted(ctx context.Context) (bool, error) {
	return true, nil
}

func (m *mockNotifier) Schedule(ctx context.Context, n domain.Notification) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.scheduled = append(m.scheduled, n)
	if m.clock != nil {
		m.sentAt = append(m.sentAt, m.clock.Now())
	}
	return "notif-" + n.Data["itemId"], nil
}

func (m *mockNotifier) SentAt() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.sentAt...)
}

func (m *mockNotifier) Scheduled() []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Notification(nil), m.scheduled...)
}

// mockCooldownWriter implements domain.CooldownWriter for testing
type mockCooldownWriter struct {
	mu     sync.Mutex
	marked []string
	err    error
}

func (m *mockCooldownWriter) MarkNotificationSent(ctx context.Context, itemID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.marked = append(m.marked, itemID)
	return nil
}

// mockSource implements domain.StockSource for testing
type mockSource struct {
	mu      sync.Mutex
	items   map[domain.Category][]domain.StockItem
	errs    map[domain.Category]error
	panics  map[domain.Category]bool
	fetched []domain.Category
}

func (m *mockSource) Fetch(ctx context.Context, c domain.Category) ([]domain.StockItem, error) {
	m.mu.Lock()
	m.fetched = append(m.fetched, c)
	m.mu.Unlock()
	if m.panics[c] {
		panic("malformed record")
	}
	if err := m.errs[c]; err != nil {
		return []domain.StockItem{}, err
	}
	return m.items[c], nil
}

func (m *mockSource) Fetched() []domain.Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Category(nil), m.fetched...)
}

// mockSettingsRemote implements domain.SettingsRemote for testing
type mockSettingsRemote struct {
	settings domain.NotificationSettings
	getErr   error
	putErr   error
	puts     []domain.NotificationSettings
}

func (m *mockSettingsRemote) GetSettings(ctx context.Context) (domain.NotificationSettings, error) {
	return m.settings, m.getErr
}

func (m *mockSettingsRemote) PutSettings(ctx context.Context, s domain.NotificationSettings) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.puts = append(m.puts, s)
	m.settings = s
	return nil
}

// staticSettings implements SettingsLoader for testing
type staticSettings struct {
	settings domain.NotificationSettings
}

func (s staticSettings) Load(ctx context.Context) domain.NotificationSettings {
	return s.settings
}

// staticToken implements domain.TokenSource for testing
type staticToken string

func (t staticToken) Token() string { return string(t) }

// memoryStore implements domain.KeyValueStore for testing
type memoryStore struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: make(map[string]string)}
}

func (m *memoryStore) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (m *memoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *memoryStore) Close() error { return nil }

var errBackendDown = errors.New("connection refused")

func datePtr(t time.Time) *time.Time { return &t }

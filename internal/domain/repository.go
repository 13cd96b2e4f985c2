package domain

import (
	"context"
	"time"
)

// StockSource fetches items for one category from the remote source.
// Outages yield an empty slice together with the error that caused them;
// the items are always safe to use.
type StockSource interface {
	Fetch(ctx context.Context, category Category) ([]StockItem, error)
}

// SettingsRemote is the backend settings endpoint.
// ErrUnsupported signals the backend has no settings endpoint.
type SettingsRemote interface {
	GetSettings(ctx context.Context) (NotificationSettings, error)
	PutSettings(ctx context.Context, settings NotificationSettings) error
}

// CooldownWriter persists the last-notified timestamp for an item.
type CooldownWriter interface {
	MarkNotificationSent(ctx context.Context, itemID string, at time.Time) error
}

// DeviceRegistrar registers a push token with the backend.
type DeviceRegistrar interface {
	RegisterDevice(ctx context.Context, token, platform string) error
}

// InboxClient reads and updates the server-side notification inbox.
type InboxClient interface {
	ListNotifications(ctx context.Context) ([]InboxNotification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	UnreadCount(ctx context.Context) (int, error)
}

// TokenSource provides the bearer token used for backend calls.
// An empty token means the user is not signed in.
type TokenSource interface {
	Token() string
}

// KeyValueStore is the local durable key/value store.
// Get returns ErrNotFound when the key is absent.
type KeyValueStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Close() error
}

// DaemonStateStore records the running daemon for the status command.
type DaemonStateStore interface {
	SaveState(state DaemonState) error
	LoadState() (*DaemonState, error)
	ClearState() error
}

// DeviceNotifier is the device notification presentation layer.
type DeviceNotifier interface {
	// ConfigureChannels registers channel metadata once at startup.
	ConfigureChannels(ctx context.Context, channels []Channel) error

	// PermissionGranted reports whether notifications may be shown.
	PermissionGranted(ctx context.Context) (bool, error)

	// Schedule shows the notification immediately and returns its ID.
	Schedule(ctx context.Context, n Notification) (string, error)
}

// ProcessManager handles OS process queries.
// Implementation: uses gopsutil.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// Clock abstracts time for rate limiting and evaluation.
type Clock interface {
	Now() time.Time
}

// Sleeper waits for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

package push

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/farmstock/stockmon/internal/domain"
)

// LogNotifier writes notifications to the log instead of a device.
// Used on headless hosts and in development.
type LogNotifier struct {
	logger *zap.Logger

	mu   sync.Mutex
	sent []domain.Notification
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) ConfigureChannels(_ context.Context, channels []domain.Channel) error {
	for _, ch := range channels {
		n.logger.Debug("channel", zap.String("id", ch.ID), zap.Int("importance", ch.Importance))
	}
	return nil
}

func (n *LogNotifier) PermissionGranted(context.Context) (bool, error) {
	return true, nil
}

func (n *LogNotifier) Schedule(ctx context.Context, notif domain.Notification) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()

	n.mu.Lock()
	n.sent = append(n.sent, notif)
	n.mu.Unlock()

	n.logger.Info("notification",
		zap.String("id", id),
		zap.String("channel", notif.ChannelID),
		zap.String("title", notif.Title),
		zap.String("body", notif.Body))
	return id, nil
}

// Sent returns a copy of everything scheduled so far.
func (n *LogNotifier) Sent() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Notification(nil), n.sent...)
}

var _ domain.DeviceNotifier = (*LogNotifier)(nil)

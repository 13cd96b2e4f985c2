package stockapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/farmstock/stockmon/internal/domain"
)

const (
	settingsPath    = "/stock/notifications/settings"
	devicesPath     = "/stock/notifications/devices"
	inboxPath       = "/stock/notifications"
	readAllPath     = "/stock/notifications/read-all"
	unreadCountPath = "/stock/notifications/unread-count"
)

// GetSettings reads the notification settings stored on the backend.
// Fields the backend omits keep their default value.
func (c *Client) GetSettings(ctx context.Context) (domain.NotificationSettings, error) {
	raw, err := c.getRaw(ctx, settingsPath)
	if err != nil {
		return domain.NotificationSettings{}, err
	}

	settings := domain.DefaultSettings()
	if err := json.Unmarshal(unwrapObject(raw), &settings); err != nil {
		return domain.NotificationSettings{}, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

// PutSettings stores the notification settings on the backend.
func (c *Client) PutSettings(ctx context.Context, settings domain.NotificationSettings) error {
	return c.do(ctx, http.MethodPut, settingsPath, settings, nil)
}

// RegisterDevice registers a push token for this user.
func (c *Client) RegisterDevice(ctx context.Context, token, platform string) error {
	payload := map[string]string{"token": token, "platform": platform}
	return c.do(ctx, http.MethodPost, devicesPath, payload, nil)
}

// MarkNotificationSent records when an item was last alerted on.
func (c *Client) MarkNotificationSent(ctx context.Context, itemID string, at time.Time) error {
	path := "/stock/items/" + url.PathEscape(itemID) + "/notification-sent"
	payload := map[string]string{"sentAt": at.UTC().Format(time.RFC3339)}
	return c.do(ctx, http.MethodPut, path, payload, nil)
}

// ListNotifications returns the user's notification inbox.
func (c *Client) ListNotifications(ctx context.Context) ([]domain.InboxNotification, error) {
	raw, err := c.getRaw(ctx, inboxPath)
	if err != nil {
		return nil, err
	}

	var list []domain.InboxNotification
	if err := json.Unmarshal(unwrapList(raw), &list); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return list, nil
}

// MarkRead marks one inbox notification as read.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, inboxPath+"/"+url.PathEscape(id)+"/read", nil, nil)
}

// MarkAllRead marks every inbox notification as read.
func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPut, readAllPath, nil, nil)
}

// UnreadCount returns the number of unread inbox notifications.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	raw, err := c.getRaw(ctx, unreadCountPath)
	if err != nil {
		return 0, err
	}

	var v any
	if err := json.Unmarshal(unwrapObject(raw), &v); err != nil {
		return 0, fmt.Errorf("decode unread count: %w", err)
	}
	if obj, ok := v.(map[string]any); ok {
		for _, key := range []string{"count", "unreadCount", "unread"} {
			if inner, exists := obj[key]; exists {
				v = inner
				break
			}
		}
	}
	n, ok := extractNumber(v)
	if !ok {
		return 0, fmt.Errorf("unexpected unread count payload: %s", truncate(raw, 100))
	}
	return int(n), nil
}

// unwrapObject strips a {"data": {...}} envelope if present.
func unwrapObject(raw []byte) []byte {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 && envelope.Data[0] != 'n' {
		return envelope.Data
	}
	return raw
}

// unwrapList returns the array inside a {"data": [...]} style envelope.
func unwrapList(raw []byte) []byte {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	list, ok := findList(v, 2)
	if !ok {
		return raw
	}
	out, err := json.Marshal(list)
	if err != nil {
		return raw
	}
	return out
}

var (
	_ domain.SettingsRemote  = (*Client)(nil)
	_ domain.CooldownWriter  = (*Client)(nil)
	_ domain.DeviceRegistrar = (*Client)(nil)
	_ domain.InboxClient     = (*Client)(nil)
)

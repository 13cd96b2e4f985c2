// Package push delivers device notifications.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/farmstock/stockmon/internal/domain"
)

// DefaultExpoURL is the Expo push send endpoint.
const DefaultExpoURL = "https://exp.host/--/api/v2/push/send"

const expoDeviceNotRegistered = "DeviceNotRegistered"

type expoMessage struct {
	To        string            `json:"to"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	ChannelID string            `json:"channelId,omitempty"`
	Sound     string            `json:"sound,omitempty"`
	Priority  string            `json:"priority,omitempty"`
}

type expoTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Message string `json:"message"`
	Details struct {
		Error string `json:"error"`
	} `json:"details"`
}

type expoResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// ExpoNotifier sends notifications through the Expo push service to the
// device whose push token is cached locally.
type ExpoNotifier struct {
	httpClient *http.Client
	url        string
	pushToken  domain.TokenSource
	logger     *zap.Logger

	mu       sync.RWMutex
	channels map[string]domain.Channel
}

// NewExpoNotifier creates an Expo push notifier.
func NewExpoNotifier(url string, pushToken domain.TokenSource, timeout time.Duration, logger *zap.Logger) *ExpoNotifier {
	if url == "" {
		url = DefaultExpoURL
	}
	return &ExpoNotifier{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		pushToken:  pushToken,
		logger:     logger,
		channels:   make(map[string]domain.Channel),
	}
}

// ConfigureChannels remembers channel metadata. The device app owns the
// actual Android channels; here the importance picks the push priority.
func (n *ExpoNotifier) ConfigureChannels(_ context.Context, channels []domain.Channel) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range channels {
		n.channels[ch.ID] = ch
	}
	n.logger.Debug("push channels configured", zap.Int("count", len(channels)))
	return nil
}

// PermissionGranted reports whether a valid Expo push token is registered.
// The device only hands out a token after the user allowed notifications.
func (n *ExpoNotifier) PermissionGranted(context.Context) (bool, error) {
	return validExpoToken(n.pushToken.Token()), nil
}

// Schedule sends the notification immediately and returns Expo's ticket ID.
func (n *ExpoNotifier) Schedule(ctx context.Context, notif domain.Notification) (string, error) {
	token := n.pushToken.Token()
	if !validExpoToken(token) {
		return "", domain.ErrPermissionDenied
	}

	msg := expoMessage{
		To:        token,
		Title:     notif.Title,
		Body:      notif.Body,
		Data:      notif.Data,
		ChannelID: notif.ChannelID,
		Sound:     "default",
		Priority:  n.priority(notif.ChannelID),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read push response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("push service returned %d: %s", resp.StatusCode, truncate(body, 200))
	}

	ticket, err := parseTicket(body)
	if err != nil {
		return "", err
	}
	if ticket.Status != "ok" {
		if ticket.Details.Error == expoDeviceNotRegistered {
			return "", fmt.Errorf("push token rejected: %w", domain.ErrPermissionDenied)
		}
		return "", fmt.Errorf("push rejected: %s %s", ticket.Details.Error, ticket.Message)
	}
	return ticket.ID, nil
}

func (n *ExpoNotifier) priority(channelID string) string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if ch, ok := n.channels[channelID]; ok && ch.Importance >= 4 {
		return "high"
	}
	return "default"
}

// parseTicket accepts both the single-message and the batch response shape.
func parseTicket(body []byte) (expoTicket, error) {
	var resp expoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return expoTicket{}, fmt.Errorf("decode push response: %w", err)
	}
	if len(resp.Errors) > 0 {
		return expoTicket{}, fmt.Errorf("push request failed: %s: %s", resp.Errors[0].Code, resp.Errors[0].Message)
	}

	var ticket expoTicket
	if err := json.Unmarshal(resp.Data, &ticket); err == nil {
		return ticket, nil
	}
	var tickets []expoTicket
	if err := json.Unmarshal(resp.Data, &tickets); err != nil || len(tickets) == 0 {
		return expoTicket{}, fmt.Errorf("unexpected push response: %s", truncate(body, 200))
	}
	return tickets[0], nil
}

func validExpoToken(token string) bool {
	return (strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")) &&
		strings.HasSuffix(token, "]")
}

func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}

var _ domain.DeviceNotifier = (*ExpoNotifier)(nil)

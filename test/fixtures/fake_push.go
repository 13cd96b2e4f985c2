package fixtures

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/google/uuid"
)

// PushMessage is a message received by FakePushService.
type PushMessage struct {
	To        string            `json:"to"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data"`
	ChannelID string            `json:"channelId"`
	Priority  string            `json:"priority"`
}

// FakePushService mimics the Expo push send endpoint.
type FakePushService struct {
	mu           sync.Mutex
	messages     []PushMessage
	unregistered map[string]bool
	server       *httptest.Server
}

// NewFakePushService starts a fake push endpoint.
func NewFakePushService() *FakePushService {
	p := &FakePushService{unregistered: make(map[string]bool)}
	p.server = httptest.NewServer(http.HandlerFunc(p.send))
	return p
}

// URL returns the send endpoint URL.
func (p *FakePushService) URL() string { return p.server.URL }

// Close shuts the service down.
func (p *FakePushService) Close() { p.server.Close() }

// Unregister makes messages to token fail with DeviceNotRegistered.
func (p *FakePushService) Unregister(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unregistered[token] = true
}

// Messages returns the accepted messages in arrival order.
func (p *FakePushService) Messages() []PushMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PushMessage(nil), p.messages...)
}

func (p *FakePushService) send(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var msg PushMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	unregistered := p.unregistered[msg.To]
	if !unregistered {
		p.messages = append(p.messages, msg)
	}
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if unregistered {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"status":  "error",
			"message": "device not registered",
			"details": map[string]string{"error": "DeviceNotRegistered"},
		}})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{
		"status": "ok",
		"id":     uuid.NewString(),
	}})
}

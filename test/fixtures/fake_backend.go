// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// DeviceRegistration is a push token registration received by FakeBackend.
type DeviceRegistration struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// InboxEntry is one record served by the fake notification inbox.
type InboxEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// FakeBackend is an in-memory farm inventory backend.
// Collections are served as {"data": [...]} from "/<collection>".
type FakeBackend struct {
	Token string

	mu          sync.Mutex
	collections map[string][]map[string]any
	settings    map[string]bool
	noSettings  bool
	failures    map[string]int
	requests    map[string]int
	devices     []DeviceRegistration
	sent        map[string]string
	inbox       []InboxEntry

	server *httptest.Server
}

// NewFakeBackend starts a fake backend accepting "Bearer <token>".
func NewFakeBackend(token string) *FakeBackend {
	b := &FakeBackend{
		Token:       token,
		collections: make(map[string][]map[string]any),
		failures:    make(map[string]int),
		requests:    make(map[string]int),
		sent:        make(map[string]string),
	}
	b.server = httptest.NewServer(b.router())
	return b
}

// URL returns the base URL of the backend.
func (b *FakeBackend) URL() string { return b.server.URL }

// Close shuts the backend down.
func (b *FakeBackend) Close() { b.server.Close() }

// SetCollection replaces the records served at path (e.g. "/feeds").
func (b *FakeBackend) SetCollection(path string, records ...map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.collections[path] = records
}

// SetSettings replaces the stored notification settings.
func (b *FakeBackend) SetSettings(settings map[string]bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settings = settings
}

// DisableSettings makes the settings endpoint answer 404.
func (b *FakeBackend) DisableSettings() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.noSettings = true
}

// Fail makes every request to path answer status. Zero clears it.
func (b *FakeBackend) Fail(path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status == 0 {
		delete(b.failures, path)
		return
	}
	b.failures[path] = status
}

// AddInbox appends an inbox notification.
func (b *FakeBackend) AddInbox(entry InboxEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inbox = append(b.inbox, entry)
}

// Requests returns how many requests hit path.
func (b *FakeBackend) Requests(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[path]
}

// Devices returns the received device registrations.
func (b *FakeBackend) Devices() []DeviceRegistration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]DeviceRegistration(nil), b.devices...)
}

// SentAt returns the notification-sent timestamp recorded for itemID.
func (b *FakeBackend) SentAt(itemID string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	at, ok := b.sent[itemID]
	return at, ok
}

// Settings returns the stored settings.
func (b *FakeBackend) Settings() map[string]bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]bool, len(b.settings))
	for k, v := range b.settings {
		out[k] = v
	}
	return out
}

func (b *FakeBackend) router() http.Handler {
	r := chi.NewRouter()
	r.Use(b.track)
	r.Use(b.authorize)

	r.Route("/stock", func(r chi.Router) {
		r.Get("/", b.allStock)
		r.Get("/notifications", b.listInbox)
		r.Get("/notifications/unread-count", b.unreadCount)
		r.Put("/notifications/read-all", b.readAll)
		r.Put("/notifications/{id}/read", b.readOne)
		r.Get("/notifications/settings", b.getSettings)
		r.Put("/notifications/settings", b.putSettings)
		r.Post("/notifications/devices", b.registerDevice)
		r.Put("/items/{id}/notification-sent", b.notificationSent)
	})
	r.Get("/{collection}", b.collection)
	return r
}

func (b *FakeBackend) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests[r.URL.Path]++
		status := b.failures[r.URL.Path]
		b.mu.Unlock()

		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *FakeBackend) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+b.Token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *FakeBackend) collection(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	records, ok := b.collections["/"+chi.URLParam(r, "collection")]
	b.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": records})
}

// allStock serves every collection with a category tag, the shape of the
// generic /stock endpoint.
func (b *FakeBackend) allStock(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var all []map[string]any
	for path, records := range b.collections {
		tag := strings.TrimPrefix(path, "/")
		for _, rec := range records {
			tagged := make(map[string]any, len(rec)+1)
			for k, v := range rec {
				tagged[k] = v
			}
			if _, ok := tagged["category"]; !ok {
				tagged["category"] = tag
			}
			all = append(all, tagged)
		}
	}
	writeJSON(w, http.StatusOK, all)
}

func (b *FakeBackend) getSettings(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.noSettings {
		http.NotFound(w, r)
		return
	}
	if b.settings == nil {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": b.settings})
}

func (b *FakeBackend) putSettings(w http.ResponseWriter, r *http.Request) {
	var settings map[string]bool
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.noSettings {
		http.NotFound(w, r)
		return
	}
	b.settings = settings
	writeJSON(w, http.StatusOK, map[string]any{"data": settings})
}

func (b *FakeBackend) registerDevice(w http.ResponseWriter, r *http.Request) {
	var reg DeviceRegistration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	b.devices = append(b.devices, reg)
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"success": true})
}

func (b *FakeBackend) notificationSent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SentAt string `json:"sentAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	b.sent[chi.URLParam(r, "id")] = body.SentAt
	b.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (b *FakeBackend) listInbox(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": b.inbox})
}

func (b *FakeBackend) unreadCount(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.inbox {
		if !e.Read {
			n++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": n})
}

func (b *FakeBackend) readOne(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.inbox {
		if b.inbox[i].ID == id {
			b.inbox[i].Read = true
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	http.NotFound(w, r)
}

func (b *FakeBackend) readAll(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.inbox {
		b.inbox[i].Read = true
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

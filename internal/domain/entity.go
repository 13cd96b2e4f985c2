// Package domain contains core business entities and interfaces.
// This is the innermost layer - no external dependencies.
package domain

import "time"

// Category identifies one of the eight stock domains.
type Category string

const (
	CategoryPesticide  Category = "pesticide"
	CategoryFeed       Category = "feed"
	CategoryFertilizer Category = "fertilizer"
	CategorySeed       Category = "seed"
	CategoryTool       Category = "tool"
	CategoryEquipment  Category = "equipment"
	CategoryAnimal     Category = "animal"
	CategoryHarvest    Category = "harvest"
)

// AllCategories lists every category in canonical order.
var AllCategories = []Category{
	CategoryPesticide,
	CategoryFeed,
	CategoryFertilizer,
	CategorySeed,
	CategoryTool,
	CategoryEquipment,
	CategoryAnimal,
	CategoryHarvest,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// BreedingStatus is the reproductive state reported for an animal.
type BreedingStatus string

const (
	BreedingInHeat    BreedingStatus = "in_heat"
	BreedingPregnant  BreedingStatus = "pregnant"
	BreedingLactating BreedingStatus = "lactating"
	BreedingOpen      BreedingStatus = "open"
)

// StockItem is one record fetched from the remote source of truth.
// It is re-fetched every poll and only read by the engine.
type StockItem struct {
	ID                   string
	Name                 string
	Category             Category
	CurrentQuantity      float64
	MinimumQuantity      float64
	Unit                 string
	ExpiryDate           *time.Time
	NextMaintenanceDate  *time.Time
	NextVaccinationDate  *time.Time
	BreedingStatus       BreedingStatus
	LastNotificationSent *time.Time
}

// NotificationSettings selects which alert families are active.
type NotificationSettings struct {
	LowStockAlerts       bool `json:"lowStockAlerts"`
	ExpiryAlerts         bool `json:"expiryAlerts"`
	MaintenanceAlerts    bool `json:"maintenanceAlerts"`
	VaccinationAlerts    bool `json:"vaccinationAlerts"`
	BreedingAlerts       bool `json:"breedingAlerts"`
	AutomaticStockAlerts bool `json:"automaticStockAlerts"`
}

// DefaultSettings returns the first-run settings (everything enabled).
func DefaultSettings() NotificationSettings {
	return NotificationSettings{
		LowStockAlerts:       true,
		ExpiryAlerts:         true,
		MaintenanceAlerts:    true,
		VaccinationAlerts:    true,
		BreedingAlerts:       true,
		AutomaticStockAlerts: true,
	}
}

// Enabled reports whether the flag gating the given alert kind is on.
func (s NotificationSettings) Enabled(kind AlertKind) bool {
	switch kind {
	case AlertLowStock:
		return s.LowStockAlerts
	case AlertExpiry:
		return s.ExpiryAlerts
	case AlertMaintenance:
		return s.MaintenanceAlerts
	case AlertVaccination:
		return s.VaccinationAlerts
	case AlertBreeding:
		return s.BreedingAlerts
	default:
		return false
	}
}

// AlertKind is the family an alert belongs to.
type AlertKind string

const (
	AlertLowStock    AlertKind = "low_stock"
	AlertExpiry      AlertKind = "expiry"
	AlertMaintenance AlertKind = "maintenance"
	AlertVaccination AlertKind = "vaccination"
	AlertBreeding    AlertKind = "breeding"
	AlertOther       AlertKind = "other"
)

// Alert is the transient decision handed from the evaluator to the dispatcher.
type Alert struct {
	Category Category
	Kind     AlertKind
	ItemID   string
	ItemName string
	Message  string
}

// Channel is a device-level notification category.
type Channel struct {
	ID          string
	Name        string
	Importance  int // 1 (min) .. 5 (max)
	Vibration   []time.Duration
	LightColor  string
	Description string
}

// Notification is what gets handed to the device notification service.
type Notification struct {
	Title     string
	Body      string
	ChannelID string
	Color     string
	Icon      string
	Data      map[string]string
}

// CycleTrigger records what started a poll cycle.
type CycleTrigger string

const (
	TriggerAutomatic CycleTrigger = "automatic"
	TriggerManual    CycleTrigger = "manual"
)

// CategoryResult captures what happened for one category in a cycle.
type CategoryResult struct {
	Category   Category
	ItemCount  int
	Alerts     int
	Dispatched []string // notification IDs
	Skipped    int      // suppressed by rate limiter or cooldown
	Err        error
}

// CycleResult captures what happened during a single poll cycle.
type CycleResult struct {
	Trigger    CycleTrigger
	Categories []CategoryResult
	Skipped    bool // no auth token or automatic alerts off, whole check skipped
	ExecutedAt time.Time
	DurationMs int64

	// AutomaticDisabled is set when a scheduled check found automatic
	// alerts turned off.
	AutomaticDisabled bool
}

// Dispatched returns the total number of notifications scheduled.
func (r CycleResult) Dispatched() int {
	n := 0
	for _, c := range r.Categories {
		n += len(c.Dispatched)
	}
	return n
}

// InboxNotification is a server-side notification record shown in the inbox.
type InboxNotification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	ItemID    string    `json:"itemId,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// DaemonState is the persisted record of the running monitor daemon.
type DaemonState struct {
	PID           int       `json:"pid"`
	Version       string    `json:"version"`
	StartedAt     time.Time `json:"started_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	LastCycleAt   time.Time `json:"last_cycle_at,omitempty"`
	LastCycleSent int       `json:"last_cycle_sent"`
	Mode          string    `json:"mode,omitempty"`
}

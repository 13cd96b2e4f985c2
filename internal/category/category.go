// Package category implements the Strategy pattern for per-category stock rules.
// Each category (pesticide, feed, animal...) has its own handler defining
// where its items come from and which alert families apply.
package category

import (
	"github.com/farmstock/stockmon/internal/domain"
)

// FallbackEndpoint is the generic "all stock" endpoint, filtered by tag.
const FallbackEndpoint = "/stock"

// Handler defines the strategy interface for one stock category.
type Handler interface {
	// ID returns the category identifier.
	ID() domain.Category

	// Name returns human-readable name for display.
	Name() string

	// Endpoint returns the primary REST path for this category.
	Endpoint() string

	// FallbackTag is the category value used to filter FallbackEndpoint records.
	FallbackTag() string

	// Families returns the alert kinds evaluated for this category,
	// highest priority first.
	Families() []domain.AlertKind

	// Icon and Color are used when composing device notifications.
	Icon() string
	Color() string
}

// Active reports whether at least one of the handler's alert families is
// enabled. Categories with every family disabled are not evaluated at all.
func Active(h Handler, settings domain.NotificationSettings) bool {
	for _, kind := range h.Families() {
		if settings.Enabled(kind) {
			return true
		}
	}
	return false
}

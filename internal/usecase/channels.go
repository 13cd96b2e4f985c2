package usecase

import (
	"time"

	"github.com/farmstock/stockmon/internal/domain"
)

var (
	shortBuzz = []time.Duration{0, 250 * time.Millisecond, 250 * time.Millisecond, 250 * time.Millisecond}
	longBuzz  = []time.Duration{0, 500 * time.Millisecond, 250 * time.Millisecond, 500 * time.Millisecond}
)

// DefaultChannels returns the device channels registered at startup.
func DefaultChannels() []domain.Channel {
	return []domain.Channel{
		{
			ID:          ChannelDefault,
			Name:        "General",
			Importance:  3,
			Vibration:   shortBuzz,
			LightColor:  "#2E7D32",
			Description: "General farm notifications",
		},
		{
			ID:          ChannelStock,
			Name:        "Stock alerts",
			Importance:  4,
			Vibration:   longBuzz,
			LightColor:  "#F57C00",
			Description: "Low stock and expiry warnings",
		},
		{
			ID:          ChannelMaintenance,
			Name:        "Maintenance",
			Importance:  3,
			Vibration:   shortBuzz,
			LightColor:  "#1976D2",
			Description: "Upcoming tool and equipment maintenance",
		},
		{
			ID:          ChannelAnimal,
			Name:        "Animal health",
			Importance:  5,
			Vibration:   longBuzz,
			LightColor:  "#7B1FA2",
			Description: "Vaccinations and breeding windows",
		},
	}
}

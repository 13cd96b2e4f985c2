package usecase

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/farmstock/stockmon/internal/domain"
)

// AlertWindowDays is how far ahead a dated event triggers an alert.
const AlertWindowDays = 7

// Evaluate decides whether item warrants an alert. families lists the alert
// kinds the item's category supports, highest priority first; the first
// kind that is enabled and whose condition holds wins.
func Evaluate(item domain.StockItem, families []domain.AlertKind, settings domain.NotificationSettings, now time.Time) (domain.Alert, bool) {
	for _, kind := range families {
		if !settings.Enabled(kind) {
			continue
		}
		if msg, ok := check(kind, item, now); ok {
			return domain.Alert{
				Category: item.Category,
				Kind:     kind,
				ItemID:   item.ID,
				ItemName: item.Name,
				Message:  msg,
			}, true
		}
	}
	return domain.Alert{}, false
}

func check(kind domain.AlertKind, item domain.StockItem, now time.Time) (string, bool) {
	switch kind {
	case domain.AlertLowStock:
		if item.CurrentQuantity > item.MinimumQuantity {
			return "", false
		}
		return fmt.Sprintf("%s is running low: %s left, minimum is %s",
			item.Name, quantity(item.CurrentQuantity, item.Unit), quantity(item.MinimumQuantity, item.Unit)), true

	case domain.AlertExpiry:
		days, ok := dueWithinWindow(item.ExpiryDate, now)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%s expires in %s (%s)", item.Name, dayCount(days), item.ExpiryDate.Format("2006-01-02")), true

	case domain.AlertMaintenance:
		days, ok := dueWithinWindow(item.NextMaintenanceDate, now)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%s is due for maintenance in %s", item.Name, dayCount(days)), true

	case domain.AlertVaccination:
		days, ok := dueWithinWindow(item.NextVaccinationDate, now)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%s is due for vaccination in %s", item.Name, dayCount(days)), true

	case domain.AlertBreeding:
		if item.BreedingStatus != domain.BreedingInHeat {
			return "", false
		}
		return fmt.Sprintf("%s is in heat and ready for breeding", item.Name), true
	}
	return "", false
}

// DaysUntil returns the number of started days between now and date,
// rounded up. Past dates yield zero or a negative number.
func DaysUntil(date, now time.Time) int {
	return int(math.Ceil(date.Sub(now).Hours() / 24))
}

// dueWithinWindow reports 0 < days <= AlertWindowDays. Already-passed
// dates are not alerted on.
func dueWithinWindow(date *time.Time, now time.Time) (int, bool) {
	if date == nil || date.IsZero() {
		return 0, false
	}
	days := DaysUntil(*date, now)
	return days, days > 0 && days <= AlertWindowDays
}

func quantity(v float64, unit string) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if unit == "" {
		return s
	}
	return s + " " + unit
}

func dayCount(days int) string {
	if days == 1 {
		return "1 day"
	}
	return strconv.Itoa(days) + " days"
}

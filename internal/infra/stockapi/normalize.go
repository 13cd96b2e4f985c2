package stockapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/farmstock/stockmon/internal/domain"
)

// UnknownItemName is used for records without a usable name.
const UnknownItemName = "Unknown item"

// Field aliases seen across the category endpoints and the generic /stock
// endpoint. The first present, non-empty key wins.
var (
	idKeys          = []string{"id", "_id", "itemId", "item_id"}
	nameKeys        = []string{"name", "itemName", "item_name", "title", "animalName", "tagNumber"}
	quantityKeys    = []string{"currentQuantity", "current_quantity", "quantity", "currentStock", "stock", "count"}
	minimumKeys     = []string{"minimumQuantity", "minimum_quantity", "minQuantity", "min_quantity", "reorderLevel", "threshold"}
	unitKeys        = []string{"unit", "units", "unitOfMeasure"}
	expiryKeys      = []string{"expiryDate", "expiry_date", "expirationDate", "expiration_date", "expiresAt"}
	maintenanceKeys = []string{"nextMaintenanceDate", "next_maintenance_date", "maintenanceDate", "nextServiceDate"}
	vaccinationKeys = []string{"nextVaccinationDate", "next_vaccination_date", "vaccinationDue", "nextVaccination"}
	breedingKeys    = []string{"breedingStatus", "breeding_status", "reproductiveStatus"}
	lastSentKeys    = []string{"lastNotificationSent", "last_notification_sent", "notificationSentAt"}
	categoryKeys    = []string{"category", "categoryTag", "category_tag", "type", "itemType"}
	envelopeKeys    = []string{"data", "items", "results", "records"}
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// decodeRecords accepts a bare JSON array or an object wrapping one
// (data, items, results, a single array field, or one level of nesting).
// Entries that are not objects are dropped.
func decodeRecords(raw []byte) ([]map[string]any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode stock list: %w", err)
	}
	list, ok := findList(v, 2)
	if !ok {
		return nil, errors.New("response contains no item list")
	}

	records := make([]map[string]any, 0, len(list))
	for _, entry := range list {
		if rec, ok := entry.(map[string]any); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

func findList(v any, depth int) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case map[string]any:
		if depth == 0 {
			return nil, false
		}
		for _, key := range envelopeKeys {
			if inner, ok := t[key]; ok {
				if list, ok := findList(inner, depth-1); ok {
					return list, true
				}
			}
		}
		var only []any
		arrays := 0
		for _, inner := range t {
			if list, ok := inner.([]any); ok {
				only = list
				arrays++
			}
		}
		if arrays == 1 {
			return only, true
		}
	}
	return nil, false
}

// normalizeRecords converts raw records into stock items of the category.
func normalizeRecords(records []map[string]any, category domain.Category) []domain.StockItem {
	items := make([]domain.StockItem, 0, len(records))
	for _, rec := range records {
		items = append(items, normalizeRecord(rec, category))
	}
	return items
}

// normalizeRecord maps one record onto StockItem. Garbled fields fall back
// to safe values: quantities to 0, dates to absent, the name to UnknownItemName.
func normalizeRecord(rec map[string]any, category domain.Category) domain.StockItem {
	item := domain.StockItem{
		ID:                   stringField(rec, idKeys),
		Name:                 strings.TrimSpace(stringField(rec, nameKeys)),
		Category:             category,
		CurrentQuantity:      quantityField(rec, quantityKeys),
		MinimumQuantity:      quantityField(rec, minimumKeys),
		Unit:                 stringField(rec, unitKeys),
		ExpiryDate:           dateField(rec, expiryKeys),
		NextMaintenanceDate:  dateField(rec, maintenanceKeys),
		NextVaccinationDate:  dateField(rec, vaccinationKeys),
		BreedingStatus:       breedingStatus(stringField(rec, breedingKeys)),
		LastNotificationSent: dateField(rec, lastSentKeys),
	}
	if item.Name == "" {
		item.Name = UnknownItemName
	}
	return item
}

// filterByTag keeps records of the /stock endpoint tagged with the category.
// Plural tags ("seeds", "Animals") match too.
func filterByTag(records []map[string]any, tag string) []map[string]any {
	var out []map[string]any
	for _, rec := range records {
		value := strings.ToLower(strings.TrimSpace(stringField(rec, categoryKeys)))
		if value == "" {
			continue
		}
		if value == tag || strings.TrimSuffix(value, "s") == tag || strings.TrimSuffix(value, "es") == tag {
			out = append(out, rec)
		}
	}
	return out
}

func lookup(rec map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
				continue
			}
			return v, true
		}
	}
	return nil, false
}

func stringField(rec map[string]any, keys []string) string {
	v, ok := lookup(rec, keys)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		// {"category": {"name": "feed"}} style references
		if name, ok := t["name"].(string); ok {
			return name
		}
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func quantityField(rec map[string]any, keys []string) float64 {
	v, ok := lookup(rec, keys)
	if !ok {
		return 0
	}
	n, ok := extractNumber(v)
	if !ok || n < 0 {
		return 0
	}
	return n
}

// extractNumber normalizes numbers sent as JSON numbers, numeric strings,
// or {"value": n} / {"amount": n} objects.
func extractNumber(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case map[string]any:
		for _, key := range []string{"value", "amount", "total"} {
			if inner, exists := v[key]; exists && inner != nil {
				return extractNumber(inner)
			}
		}
	}
	return 0, false
}

func dateField(rec map[string]any, keys []string) *time.Time {
	v, ok := lookup(rec, keys)
	if !ok {
		return nil
	}
	t, ok := parseDate(v)
	if !ok {
		return nil
	}
	return &t
}

// parseDate accepts common string layouts and unix epoch milliseconds.
func parseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
	case float64:
		if t <= 0 || math.IsNaN(t) || math.IsInf(t, 0) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(t)).UTC(), true
	}
	return time.Time{}, false
}

func breedingStatus(s string) domain.BreedingStatus {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return domain.BreedingStatus(s)
}

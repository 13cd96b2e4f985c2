package category

import "github.com/farmstock/stockmon/internal/domain"

// SupplyHandler covers consumable stock: pesticide, feed, fertilizer, seed.
// Supplies run low and expire.
type SupplyHandler struct {
	id       domain.Category
	name     string
	endpoint string
	icon     string
	color    string
}

func NewPesticideHandler() *SupplyHandler {
	return &SupplyHandler{id: domain.CategoryPesticide, name: "Pesticides", endpoint: "/pesticides", icon: "flask", color: "#D32F2F"}
}

func NewFeedHandler() *SupplyHandler {
	return &SupplyHandler{id: domain.CategoryFeed, name: "Feed", endpoint: "/feeds", icon: "grain", color: "#F57C00"}
}

func NewFertilizerHandler() *SupplyHandler {
	return &SupplyHandler{id: domain.CategoryFertilizer, name: "Fertilizers", endpoint: "/fertilizers", icon: "sprout", color: "#689F38"}
}

func NewSeedHandler() *SupplyHandler {
	return &SupplyHandler{id: domain.CategorySeed, name: "Seeds", endpoint: "/seeds", icon: "seed", color: "#8D6E63"}
}

func (h *SupplyHandler) ID() domain.Category { return h.id }
func (h *SupplyHandler) Name() string        { return h.name }
func (h *SupplyHandler) Endpoint() string    { return h.endpoint }
func (h *SupplyHandler) FallbackTag() string { return string(h.id) }
func (h *SupplyHandler) Icon() string        { return h.icon }
func (h *SupplyHandler) Color() string       { return h.color }

// Families: low stock beats expiry when both match.
func (h *SupplyHandler) Families() []domain.AlertKind {
	return []domain.AlertKind{domain.AlertLowStock, domain.AlertExpiry}
}

var _ Handler = (*SupplyHandler)(nil)

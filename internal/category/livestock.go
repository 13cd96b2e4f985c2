package category

import "github.com/farmstock/stockmon/internal/domain"

// LivestockHandler covers animals: vaccinations and breeding.
type LivestockHandler struct{}

func NewLivestockHandler() *LivestockHandler {
	return &LivestockHandler{}
}

func (h *LivestockHandler) ID() domain.Category { return domain.CategoryAnimal }
func (h *LivestockHandler) Name() string        { return "Animals" }
func (h *LivestockHandler) Endpoint() string    { return "/animals" }
func (h *LivestockHandler) FallbackTag() string { return string(domain.CategoryAnimal) }
func (h *LivestockHandler) Icon() string        { return "cow" }
func (h *LivestockHandler) Color() string       { return "#7B1FA2" }

// Families: a due vaccination outranks breeding status.
func (h *LivestockHandler) Families() []domain.AlertKind {
	return []domain.AlertKind{domain.AlertVaccination, domain.AlertBreeding}
}

// HarvestHandler covers stored harvest, which can only spoil.
type HarvestHandler struct{}

func NewHarvestHandler() *HarvestHandler {
	return &HarvestHandler{}
}

func (h *HarvestHandler) ID() domain.Category { return domain.CategoryHarvest }
func (h *HarvestHandler) Name() string        { return "Harvest" }
func (h *HarvestHandler) Endpoint() string    { return "/harvests" }
func (h *HarvestHandler) FallbackTag() string { return string(domain.CategoryHarvest) }
func (h *HarvestHandler) Icon() string        { return "basket" }
func (h *HarvestHandler) Color() string       { return "#FBC02D" }

func (h *HarvestHandler) Families() []domain.AlertKind {
	return []domain.AlertKind{domain.AlertExpiry}
}

var (
	_ Handler = (*LivestockHandler)(nil)
	_ Handler = (*HarvestHandler)(nil)
)

package category

import "github.com/farmstock/stockmon/internal/domain"

// MachineryHandler covers tools and equipment, which only need servicing.
type MachineryHandler struct {
	id       domain.Category
	name     string
	endpoint string
	icon     string
}

func NewToolHandler() *MachineryHandler {
	return &MachineryHandler{id: domain.CategoryTool, name: "Tools", endpoint: "/tools", icon: "wrench"}
}

func NewEquipmentHandler() *MachineryHandler {
	return &MachineryHandler{id: domain.CategoryEquipment, name: "Equipment", endpoint: "/equipment", icon: "tractor"}
}

func (h *MachineryHandler) ID() domain.Category { return h.id }
func (h *MachineryHandler) Name() string        { return h.name }
func (h *MachineryHandler) Endpoint() string    { return h.endpoint }
func (h *MachineryHandler) FallbackTag() string { return string(h.id) }
func (h *MachineryHandler) Icon() string        { return h.icon }
func (h *MachineryHandler) Color() string       { return "#1976D2" }

func (h *MachineryHandler) Families() []domain.AlertKind {
	return []domain.AlertKind{domain.AlertMaintenance}
}

var _ Handler = (*MachineryHandler)(nil)

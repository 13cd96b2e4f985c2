package category

import (
	"fmt"
	"math/rand/v2"

	"github.com/farmstock/stockmon/internal/domain"
)

// Registry holds all category handlers in registration order.
type Registry struct {
	handlers map[domain.Category]Handler
	order    []domain.Category
}

// NewRegistry creates a registry with all eight default handlers.
func NewRegistry() *Registry {
	return NewRegistryWithHandlers(
		NewPesticideHandler(),
		NewFeedHandler(),
		NewFertilizerHandler(),
		NewSeedHandler(),
		NewToolHandler(),
		NewEquipmentHandler(),
		NewLivestockHandler(),
		NewHarvestHandler(),
	)
}

// NewRegistryWithHandlers creates a registry with custom handlers (for testing).
func NewRegistryWithHandlers(handlers ...Handler) *Registry {
	r := &Registry{
		handlers: make(map[domain.Category]Handler),
	}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

// Register adds a handler, replacing any previous one for the same category.
func (r *Registry) Register(h Handler) {
	if _, exists := r.handlers[h.ID()]; !exists {
		r.order = append(r.order, h.ID())
	}
	r.handlers[h.ID()] = h
}

// Get returns a handler by category.
func (r *Registry) Get(id domain.Category) (Handler, bool) {
	h, ok := r.handlers[id]
	return h, ok
}

// Lookup is Get with an error naming the unknown category.
func (r *Registry) Lookup(id domain.Category) (Handler, error) {
	h, ok := r.handlers[id]
	if !ok {
		return nil, fmt.Errorf("unknown category: %s", id)
	}
	return h, nil
}

// GetAll returns all handlers in registration order.
func (r *Registry) GetAll() []Handler {
	result := make([]Handler, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.handlers[id])
	}
	return result
}

// Shuffled returns all handlers in a random order so the backend does not
// see the same request sequence every cycle.
func (r *Registry) Shuffled(rng *rand.Rand) []Handler {
	result := r.GetAll()
	rng.Shuffle(len(result), func(i, j int) {
		result[i], result[j] = result[j], result[i]
	})
	return result
}

// List returns all category IDs.
func (r *Registry) List() []domain.Category {
	ids := make([]domain.Category, len(r.order))
	copy(ids, r.order)
	return ids
}

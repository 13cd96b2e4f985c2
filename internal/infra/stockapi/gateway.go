package stockapi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/farmstock/stockmon/internal/category"
	"github.com/farmstock/stockmon/internal/domain"
	"github.com/farmstock/stockmon/internal/metrics"
)

type snapshot struct {
	items     []domain.StockItem
	fetchedAt time.Time
}

// Gateway fetches stock items per category: the category endpoint first,
// then the generic /stock endpoint filtered by category tag.
type Gateway struct {
	client     *Client
	registry   *category.Registry
	clock      domain.Clock
	staleAfter time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	previous map[domain.Category]snapshot
}

// NewGateway creates a stock gateway. Items from the previous successful
// fetch are reused on a throttled response if younger than staleAfter.
func NewGateway(client *Client, registry *category.Registry, clock domain.Clock, staleAfter time.Duration, logger *zap.Logger) *Gateway {
	return &Gateway{
		client:     client,
		registry:   registry,
		clock:      clock,
		staleAfter: staleAfter,
		logger:     logger,
		previous:   make(map[domain.Category]snapshot),
	}
}

// Fetch returns the category's items. On failure the slice is empty and
// the error describes every attempt.
func (g *Gateway) Fetch(ctx context.Context, c domain.Category) ([]domain.StockItem, error) {
	h, err := g.registry.Lookup(c)
	if err != nil {
		return []domain.StockItem{}, err
	}

	items, source, err := FetchWithFallback(ctx,
		Provider[domain.StockItem]{Name: "primary", Fetch: g.observe(c, "primary", func(ctx context.Context) ([]domain.StockItem, error) {
			return g.fetchPrimary(ctx, h)
		})},
		Provider[domain.StockItem]{Name: "fallback", Fetch: g.observe(c, "fallback", func(ctx context.Context) ([]domain.StockItem, error) {
			return g.fetchFallback(ctx, h)
		})},
	)
	if err == nil {
		g.remember(c, items)
		g.logger.Debug("category fetched",
			zap.String("category", string(c)),
			zap.String("source", source),
			zap.Int("items", len(items)))
		return items, nil
	}

	if errors.Is(err, domain.ErrThrottled) {
		if cached, ok := g.recent(c); ok {
			metrics.ThrottledFetches.WithLabelValues(string(c)).Inc()
			g.logger.Info("backend throttled, reusing previous items",
				zap.String("category", string(c)),
				zap.Int("items", len(cached)))
			return cached, nil
		}
	}

	return []domain.StockItem{}, fmt.Errorf("fetch %s: %w", c, err)
}

func (g *Gateway) fetchPrimary(ctx context.Context, h category.Handler) ([]domain.StockItem, error) {
	raw, err := g.client.getRaw(ctx, h.Endpoint())
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(raw)
	if err != nil {
		return nil, err
	}
	return normalizeRecords(records, h.ID()), nil
}

func (g *Gateway) fetchFallback(ctx context.Context, h category.Handler) ([]domain.StockItem, error) {
	raw, err := g.client.getRaw(ctx, category.FallbackEndpoint)
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(raw)
	if err != nil {
		return nil, err
	}
	return normalizeRecords(filterByTag(records, h.FallbackTag()), h.ID()), nil
}

type fetchFunc func(ctx context.Context) ([]domain.StockItem, error)

func (g *Gateway) observe(c domain.Category, source string, fn fetchFunc) fetchFunc {
	return func(ctx context.Context) ([]domain.StockItem, error) {
		items, err := fn(ctx)
		if err != nil && ctx.Err() == nil {
			metrics.FetchFailures.WithLabelValues(string(c), source).Inc()
			g.logger.Debug("stock fetch failed",
				zap.String("category", string(c)),
				zap.String("source", source),
				zap.Error(err))
		}
		return items, err
	}
}

func (g *Gateway) remember(c domain.Category, items []domain.StockItem) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.previous[c] = snapshot{items: items, fetchedAt: g.clock.Now()}
}

func (g *Gateway) recent(c domain.Category) ([]domain.StockItem, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.previous[c]
	if !ok || g.clock.Now().Sub(s.fetchedAt) > g.staleAfter {
		return nil, false
	}
	return s.items, true
}

var _ domain.StockSource = (*Gateway)(nil)

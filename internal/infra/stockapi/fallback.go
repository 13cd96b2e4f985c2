package stockapi

import (
	"context"
	"errors"
	"fmt"
)

// Provider is one source in an ordered fallback chain.
type Provider[T any] struct {
	Name  string
	Fetch func(ctx context.Context) ([]T, error)
}

// FetchWithFallback tries providers in order and returns the first success
// together with the name of the provider that served it. When every
// provider fails the joined errors are returned. A canceled context stops
// the chain.
func FetchWithFallback[T any](ctx context.Context, providers ...Provider[T]) ([]T, string, error) {
	var errs []error
	for _, p := range providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		items, err := p.Fetch(ctx)
		if err == nil {
			return items, p.Name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
	}
	if len(errs) == 0 {
		return nil, "", errors.New("no providers configured")
	}
	return nil, "", errors.Join(errs...)
}

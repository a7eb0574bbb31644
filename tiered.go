package catbox

import (
	"context"
	"errors"
	"time"
)

// Tiered chains connections in order: Get returns the first hit checked left
// to right, Set and Drop write through to every tier. A Memory tier in front
// of a Redis tier is the expected topology.
type Tiered struct {
	tiers []Connection
}

var _ Connection = (*Tiered)(nil)

func NewTiered(tiers ...Connection) (*Tiered, error) {
	if len(tiers) == 0 {
		return nil, errors.New("catbox: at least one tier is required")
	}
	return &Tiered{tiers: tiers}, nil
}

func (t *Tiered) Start(ctx context.Context) error {
	for _, tier := range t.tiers {
		if err := tier.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tiered) Stop(ctx context.Context) error {
	var errs []error
	for _, tier := range t.tiers {
		if err := tier.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Tiered) IsReady() bool {
	for _, tier := range t.tiers {
		if !tier.IsReady() {
			return false
		}
	}
	return true
}

func (t *Tiered) ValidateSegmentName(name string) error {
	return validateSegmentName(name)
}

func (t *Tiered) Get(ctx context.Context, key Key) (*Cached, error) {
	for _, tier := range t.tiers {
		cached, err := tier.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			return cached, nil
		}
	}
	return nil, nil
}

func (t *Tiered) Set(ctx context.Context, key Key, value any, ttl time.Duration) error {
	var firstErr error
	for _, tier := range t.tiers {
		if err := tier.Set(ctx, key, value, ttl); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *Tiered) Drop(ctx context.Context, key Key) error {
	var firstErr error
	for _, tier := range t.tiers {
		if err := tier.Drop(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Package cloner duplicates records and everything they reference.
//
// Duplicate copies the root entry with Serialize/Restore under a new address
// in the same namespace, then walks the copy's fields. Every field accepted
// by refs.IsDuplicableReference is duplicated recursively and rewritten to
// point at the child copy. Copies get the caller's TTL so they disappear on
// their own; the source is never modified.
package cloner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/glworbs/internal/metrics"
	"github.com/mesh-intelligence/glworbs/internal/refs"
	"github.com/mesh-intelligence/glworbs/pkg/types"
)

// Cloner performs deep duplication against a RecordStore.
type Cloner struct {
	store      types.RecordStore
	logger     *slog.Logger
	metrics    *metrics.Metrics
	cycleGuard bool
	newAddress func(namespace string) string
}

// Option configures a Cloner.
type Option func(*Cloner)

// WithLogger sets the logger used for skipped children.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cloner) { c.logger = l }
}

// WithMetrics sets the counters updated by Duplicate.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cloner) { c.metrics = m }
}

// WithCycleGuard turns the visited-set guard on or off. With the guard, an
// address reached twice in one Duplicate call is rewritten to the copy made
// the first time, so cycles are reproduced in the copy. Without it the walk
// follows references blindly and never terminates on a cycle.
func WithCycleGuard(on bool) Option {
	return func(c *Cloner) { c.cycleGuard = on }
}

// New returns a Cloner writing to store. The cycle guard is on by default.
func New(store types.RecordStore, opts ...Option) *Cloner {
	c := &Cloner{
		store:      store,
		logger:     slog.Default(),
		cycleGuard: true,
		newAddress: types.NewAddress,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Duplicate copies the entry at address and everything it references, and
// returns the address of the copy. ttlSeconds bounds the lifetime of every
// created entry; 0 means no expiry.
//
// A missing root fails with an error wrapping types.ErrNotFound and writes
// nothing. A failing child is logged and its field keeps the original
// address; the rest of the walk continues.
func (c *Cloner) Duplicate(ctx context.Context, address string, ttlSeconds int) (string, error) {
	if ttlSeconds < 0 {
		return "", fmt.Errorf("duplicate %s: negative ttl: %w", address, types.ErrInvalidArgument)
	}
	var visited map[string]string
	if c.cycleGuard {
		visited = make(map[string]string)
	}
	return c.duplicate(ctx, address, int64(ttlSeconds)*1000, visited)
}

func (c *Cloner) duplicate(ctx context.Context, address string, ttlMillis int64, visited map[string]string) (string, error) {
	if copied, ok := visited[address]; ok {
		return copied, nil
	}

	payload, err := c.store.Serialize(ctx, address)
	if err != nil {
		return "", fmt.Errorf("duplicate %s: %w", address, err)
	}
	newAddr := c.newAddress(types.Namespace(address))
	if err := c.store.Restore(ctx, newAddr, ttlMillis, payload); err != nil {
		return "", fmt.Errorf("duplicate %s: %w", address, err)
	}
	c.metrics.Duplicated()
	if visited != nil {
		visited[address] = newAddr
	}

	fields, err := c.store.GetAll(ctx, newAddr)
	if errors.Is(err, types.ErrWrongKind) {
		// Blobs have no fields to follow.
		return newAddr, nil
	}
	if err != nil {
		return "", fmt.Errorf("duplicate %s: read copy %s: %w", address, newAddr, err)
	}

	for _, f := range fields.Pairs() {
		if !refs.IsDuplicableReference(f.Name, f.Value) {
			continue
		}
		child, err := c.duplicate(ctx, f.Value, ttlMillis, visited)
		if err != nil {
			c.metrics.DuplicateFailed()
			c.logger.Warn("child duplication failed, keeping original reference",
				"address", newAddr, "field", f.Name, "reference", f.Value, "err", err)
			continue
		}
		if err := c.store.SetField(ctx, newAddr, f.Name, child); err != nil {
			c.metrics.DuplicateFailed()
			c.logger.Warn("cannot rewrite reference",
				"address", newAddr, "field", f.Name, "child", child, "err", err)
			continue
		}
		c.logger.Debug("duplicated reference", "address", newAddr, "field", f.Name, "from", f.Value, "to", child)
	}
	return newAddr, nil
}

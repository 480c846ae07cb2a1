package strategy

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
)

// Changes lists what Reconcile did, by strategy name.
type Changes struct {
	Added   []string `json:"added,omitempty"`
	Updated []string `json:"updated,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Default string   `json:"default,omitempty"`
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0 && c.Default == ""
}

// Reconcile brings the manager in line with f. Strategies missing from the
// manager are added, changed ones are rebuilt and the ones f no longer
// lists are removed. Unchanged strategies keep their stores and entries.
//
// The file's version and schedule only take effect in a new manager.
// Reconcile keeps going after a failed step and returns the joined errors.
func (m *Manager[V]) Reconcile(ctx context.Context, f *File) (Changes, error) {
	var (
		changes Changes
		errs    []error
	)

	current := m.Strategies()
	wanted := make(map[string]bool, len(f.Strategies))

	for _, s := range f.Strategies {
		wanted[s.Name] = true
		old, ok := current[s.Name]
		switch {
		case !ok:
			if err := m.AddStrategy(s.Name, s); err != nil {
				errs = append(errs, err)
				continue
			}
			changes.Added = append(changes.Added, s.Name)
		case !old.equal(s):
			if err := m.UpdateStrategy(s.Name, replace(s)); err != nil {
				errs = append(errs, err)
				continue
			}
			changes.Updated = append(changes.Updated, s.Name)
		}
	}

	if f.Default != "" && f.Default != m.DefaultName() {
		if err := m.SetDefault(f.Default); err != nil {
			errs = append(errs, err)
		} else {
			changes.Default = f.Default
		}
	}

	for _, name := range slices.Sorted(maps.Keys(current)) {
		if wanted[name] {
			continue
		}
		if err := m.RemoveStrategy(ctx, name); err != nil {
			errs = append(errs, err)
			continue
		}
		changes.Removed = append(changes.Removed, name)
	}

	if !changes.Empty() {
		m.opts.logger.InfoContext(ctx, "cache strategies reconciled",
			slog.Any("added", changes.Added),
			slog.Any("updated", changes.Updated),
			slog.Any("removed", changes.Removed),
			slog.String("default", m.DefaultName()),
		)
	}
	return changes, errors.Join(errs...)
}

// replace builds a patch that sets every field of s.
func replace(s Strategy) Patch {
	rules := s.Rules
	if rules == nil {
		rules = []Rule{}
	}
	return Patch{
		Description:  &s.Description,
		TTL:          &s.TTL,
		MaxSizeBytes: &s.MaxSizeBytes,
		Eviction:     &s.Eviction,
		Compress:     &s.Compress,
		Persist:      &s.Persist,
		Rules:        rules,
	}
}

// equal compares definitions. Rules are compared by their rendered form,
// so two compilations of the same pattern are equal.
func (s Strategy) equal(o Strategy) bool {
	if s.Name != o.Name || s.Description != o.Description || s.TTL != o.TTL ||
		s.MaxSizeBytes != o.MaxSizeBytes || s.Eviction != o.Eviction ||
		s.Compress != o.Compress || s.Persist != o.Persist || len(s.Rules) != len(o.Rules) {
		return false
	}
	for i := range s.Rules {
		if s.Rules[i].String() != o.Rules[i].String() {
			return false
		}
	}
	return true
}

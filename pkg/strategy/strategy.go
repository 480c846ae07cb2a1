package strategy

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrymomot/cachekit/pkg/cache"
)

// Strategy is the declarative configuration of one named cache.
type Strategy struct {
	Name         string
	Description  string
	TTL          time.Duration
	MaxSizeBytes int64
	Eviction     cache.PolicyKind
	Compress     bool
	Persist      bool
	Rules        []Rule
}

// Validate reports every problem with the definition.
func (s Strategy) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if s.TTL < 0 {
		errs = append(errs, fmt.Errorf("ttl must not be negative, got %s", s.TTL))
	}
	if s.MaxSizeBytes <= 0 {
		errs = append(errs, fmt.Errorf("max size must be positive, got %d", s.MaxSizeBytes))
	}
	if _, err := cache.ParsePolicy(string(s.Eviction)); err != nil {
		errs = append(errs, err)
	}
	for i, r := range s.Rules {
		if err := r.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("rule %d: %w", i, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w %q: %w", ErrInvalidStrategy, s.Name, errors.Join(errs...))
}

func (s Strategy) clone() Strategy {
	s.Rules = slices.Clone(s.Rules)
	return s
}

// Patch holds the fields to change in an existing strategy. Nil fields are
// left untouched. A non-nil Rules replaces the whole rule list.
type Patch struct {
	Description  *string
	TTL          *time.Duration
	MaxSizeBytes *int64
	Eviction     *cache.PolicyKind
	Compress     *bool
	Persist      *bool
	Rules        []Rule
}

// Apply returns s with the patch merged in. The name never changes.
func (p Patch) Apply(s Strategy) Strategy {
	s = s.clone()
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.TTL != nil {
		s.TTL = *p.TTL
	}
	if p.MaxSizeBytes != nil {
		s.MaxSizeBytes = *p.MaxSizeBytes
	}
	if p.Eviction != nil {
		s.Eviction = *p.Eviction
	}
	if p.Compress != nil {
		s.Compress = *p.Compress
	}
	if p.Persist != nil {
		s.Persist = *p.Persist
	}
	if p.Rules != nil {
		s.Rules = slices.Clone(p.Rules)
	}
	return s
}

// Ptr returns a pointer to v. Handy for building a Patch.
func Ptr[T any](v T) *T {
	return &v
}

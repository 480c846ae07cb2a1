package strategy

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/cachekit/pkg/cache"
)

// File is a parsed strategy file.
//
// Example:
//
//	default: api
//	version: "3"
//	schedule: "@every 30s"
//	strategies:
//	  - name: api
//	    ttl: 2m
//	    max_size: 20MB
//	    eviction: lfu
//	    compress: true
//	    rules:
//	      - {type: time, after: 90s, action: refresh}
//	      - {type: size, bytes: 16MiB, action: evict}
//	      - {type: pattern, pattern: "glob:user:*", action: evict}
//	      - {type: manual, signal: logout, action: evict}
type File struct {
	Default    string
	Version    string
	Schedule   string
	Strategies []Strategy
}

// Options converts the file-level settings to manager options.
func (f *File) Options() []Option {
	opts := []Option{WithDefault(f.Default), WithVersion(f.Version)}
	if f.Schedule != "" {
		opts = append(opts, WithRuleSchedule(f.Schedule))
	}
	return opts
}

type fileDoc struct {
	Default    string        `yaml:"default"`
	Version    string        `yaml:"version"`
	Schedule   string        `yaml:"schedule"`
	Strategies []strategyDoc `yaml:"strategies"`
}

type strategyDoc struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	TTL         string    `yaml:"ttl"`
	Eviction    string    `yaml:"eviction"`
	Rules       []ruleDoc `yaml:"rules"`
	MaxSize     byteSize  `yaml:"max_size"`
	Compress    bool      `yaml:"compress"`
	Persist     bool      `yaml:"persist"`
}

type ruleDoc struct {
	Type    string   `yaml:"type"`
	After   string   `yaml:"after"`
	Pattern string   `yaml:"pattern"`
	Signal  string   `yaml:"signal"`
	Action  string   `yaml:"action"`
	Bytes   byteSize `yaml:"bytes"`
}

// byteSize accepts plain integers or unit strings such as "10MB" or "512KiB".
type byteSize int64

func (b *byteSize) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: size must be a scalar", n.Line)
	}
	if v, err := strconv.ParseInt(n.Value, 10, 64); err == nil {
		*b = byteSize(v)
		return nil
	}
	v, err := humanize.ParseBytes(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	if v > math.MaxInt64 {
		return fmt.Errorf("line %d: size %q overflows", n.Line, n.Value)
	}
	*b = byteSize(v)
	return nil
}

// LoadFile reads and parses a strategy file from disk.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	return Parse(data)
}

// LoadFS reads and parses a strategy file from fsys.
func LoadFS(fsys fs.FS, name string) (*File, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", name, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML strategy file. Every strategy is
// validated; names must be unique and the default, when set, must be one
// of them.
func Parse(data []byte) (*File, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	if len(doc.Strategies) == 0 {
		return nil, fmt.Errorf("%w: no strategies defined", ErrInvalidConfig)
	}

	f := &File{
		Default:    doc.Default,
		Version:    doc.Version,
		Schedule:   doc.Schedule,
		Strategies: make([]Strategy, 0, len(doc.Strategies)),
	}

	seen := make(map[string]bool, len(doc.Strategies))
	var errs []error
	for i, sd := range doc.Strategies {
		s, err := sd.strategy()
		if err == nil {
			err = s.Validate()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("strategy %d: %w", i, err))
			continue
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("strategy %d: %w: %q", i, ErrStrategyExists, s.Name))
			continue
		}
		seen[s.Name] = true
		f.Strategies = append(f.Strategies, s)
	}
	if len(errs) > 0 {
		return nil, errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}

	if f.Default == "" {
		f.Default = f.Strategies[0].Name
	}
	if !seen[f.Default] {
		return nil, fmt.Errorf("%w: default %w: %q", ErrInvalidConfig, ErrUnknownStrategy, f.Default)
	}
	return f, nil
}

func (d strategyDoc) strategy() (Strategy, error) {
	s := Strategy{
		Name:         d.Name,
		Description:  d.Description,
		MaxSizeBytes: int64(d.MaxSize),
		Eviction:     cache.PolicyLRU,
		Compress:     d.Compress,
		Persist:      d.Persist,
	}

	if d.TTL != "" {
		ttl, err := time.ParseDuration(d.TTL)
		if err != nil {
			return s, fmt.Errorf("%w: ttl: %w", ErrInvalidStrategy, err)
		}
		s.TTL = ttl
	}

	if d.Eviction != "" {
		kind, err := cache.ParsePolicy(d.Eviction)
		if err != nil {
			return s, errors.Join(ErrInvalidStrategy, err)
		}
		s.Eviction = kind
	}

	for i, rd := range d.Rules {
		r, err := rd.rule()
		if err != nil {
			return s, fmt.Errorf("rule %d: %w", i, err)
		}
		s.Rules = append(s.Rules, r)
	}
	return s, nil
}

func (d ruleDoc) rule() (Rule, error) {
	r := Rule{Action: Action(strings.ToLower(d.Action))}

	switch RuleType(strings.ToLower(d.Type)) {
	case RuleTime:
		after, err := time.ParseDuration(d.After)
		if err != nil {
			return r, fmt.Errorf("%w: after: %w", ErrInvalidRule, err)
		}
		r.Condition = TimeCondition{After: after}
	case RuleSize:
		r.Condition = SizeCondition{Bytes: int64(d.Bytes)}
	case RulePattern:
		p, err := ParsePattern(d.Pattern)
		if err != nil {
			return r, err
		}
		r.Condition = PatternCondition{Pattern: p}
	case RuleManual:
		r.Condition = ManualCondition{Signal: d.Signal}
	default:
		return r, fmt.Errorf("%w: unknown type %q", ErrInvalidRule, d.Type)
	}

	return r, r.Validate()
}

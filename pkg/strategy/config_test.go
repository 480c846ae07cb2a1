package strategy_test

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/cachekit/pkg/cache"
	"github.com/dmitrymomot/cachekit/pkg/strategy"
)

const sampleConfig = `
default: api
version: "3"
schedule: "@every 30s"
strategies:
  - name: pages
    description: Rendered pages
    ttl: 10m
    max_size: 10MB
    eviction: fifo
    persist: true
  - name: api
    ttl: 2m
    max_size: 16MiB
    eviction: LFU
    compress: true
    rules:
      - {type: time, after: 90s, action: refresh}
      - {type: size, bytes: 8MiB, action: evict}
      - {type: pattern, pattern: "glob:user:*", action: evict}
      - {type: manual, signal: logout, action: evict}
  - name: tiny
    max_size: 4096
`

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("full document", func(t *testing.T) {
		t.Parallel()

		f, err := strategy.Parse([]byte(sampleConfig))
		require.NoError(t, err)
		require.Equal(t, "api", f.Default)
		require.Equal(t, "3", f.Version)
		require.Equal(t, "@every 30s", f.Schedule)
		require.Len(t, f.Strategies, 3)

		pages := f.Strategies[0]
		require.Equal(t, "pages", pages.Name)
		require.Equal(t, "Rendered pages", pages.Description)
		require.Equal(t, 10*time.Minute, pages.TTL)
		require.Equal(t, int64(10_000_000), pages.MaxSizeBytes)
		require.Equal(t, cache.PolicyFIFO, pages.Eviction)
		require.True(t, pages.Persist)

		api := f.Strategies[1]
		require.Equal(t, int64(16<<20), api.MaxSizeBytes)
		require.Equal(t, cache.PolicyLFU, api.Eviction)
		require.True(t, api.Compress)
		require.Len(t, api.Rules, 4)
		require.Equal(t, strategy.RefreshAfter(90*time.Second), api.Rules[0])
		require.Equal(t, strategy.EvictAbove(8<<20), api.Rules[1])
		require.Equal(t, strategy.RulePattern, api.Rules[2].Type())
		require.True(t, api.Rules[2].Condition.(strategy.PatternCondition).Pattern.MatchString("user:1"))
		require.Equal(t, strategy.OnSignal("logout", strategy.ActionEvict), api.Rules[3])

		tiny := f.Strategies[2]
		require.Equal(t, int64(4096), tiny.MaxSizeBytes)
		require.Equal(t, cache.PolicyLRU, tiny.Eviction)
		require.Zero(t, tiny.TTL)
	})

	t.Run("default falls back to first strategy", func(t *testing.T) {
		t.Parallel()

		f, err := strategy.Parse([]byte(`
strategies:
  - {name: first, max_size: 1KB}
  - {name: second, max_size: 1KB}
`))
		require.NoError(t, err)
		require.Equal(t, "first", f.Default)
	})

	errorCases := map[string]struct {
		doc    string
		target error
	}{
		"malformed yaml": {
			doc:    "strategies: [",
			target: strategy.ErrInvalidConfig,
		},
		"no strategies": {
			doc:    "default: x\n",
			target: strategy.ErrInvalidConfig,
		},
		"unknown default": {
			doc:    "default: missing\nstrategies:\n  - {name: a, max_size: 1KB}\n",
			target: strategy.ErrUnknownStrategy,
		},
		"duplicate name": {
			doc:    "strategies:\n  - {name: a, max_size: 1KB}\n  - {name: a, max_size: 2KB}\n",
			target: strategy.ErrStrategyExists,
		},
		"missing max size": {
			doc:    "strategies:\n  - {name: a}\n",
			target: strategy.ErrInvalidStrategy,
		},
		"bad ttl": {
			doc:    "strategies:\n  - {name: a, max_size: 1KB, ttl: soon}\n",
			target: strategy.ErrInvalidStrategy,
		},
		"bad size": {
			doc:    "strategies:\n  - {name: a, max_size: lots}\n",
			target: strategy.ErrInvalidConfig,
		},
		"unknown eviction": {
			doc:    "strategies:\n  - {name: a, max_size: 1KB, eviction: random}\n",
			target: cache.ErrUnknownPolicy,
		},
		"unknown rule type": {
			doc:    "strategies:\n  - name: a\n    max_size: 1KB\n    rules: [{type: cron, action: evict}]\n",
			target: strategy.ErrInvalidRule,
		},
		"bad rule duration": {
			doc:    "strategies:\n  - name: a\n    max_size: 1KB\n    rules: [{type: time, after: later, action: evict}]\n",
			target: strategy.ErrInvalidRule,
		},
		"size rule with refresh": {
			doc:    "strategies:\n  - name: a\n    max_size: 1KB\n    rules: [{type: size, bytes: 512, action: refresh}]\n",
			target: strategy.ErrInvalidRule,
		},
	}
	for name, tc := range errorCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := strategy.Parse([]byte(tc.doc))
			require.ErrorIs(t, err, tc.target)
		})
	}

	t.Run("every invalid strategy is reported", func(t *testing.T) {
		t.Parallel()

		_, err := strategy.Parse([]byte("strategies:\n  - {name: a}\n  - {name: b}\n"))
		require.ErrorIs(t, err, strategy.ErrInvalidConfig)
		require.ErrorContains(t, err, "strategy 0")
		require.ErrorContains(t, err, "strategy 1")
	})
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	t.Run("reads from disk", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "cache.yaml")
		require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

		f, err := strategy.LoadFile(path)
		require.NoError(t, err)
		require.Equal(t, "api", f.Default)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := strategy.LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLoadFS(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{"config/cache.yaml": {Data: []byte(sampleConfig)}}
	f, err := strategy.LoadFS(fsys, "config/cache.yaml")
	require.NoError(t, err)
	require.Len(t, f.Strategies, 3)
}

func TestFile_Options(t *testing.T) {
	t.Parallel()

	f, err := strategy.Parse([]byte(sampleConfig))
	require.NoError(t, err)

	m, err := strategy.New[string](nil, f.Strategies, f.Options()...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Cleanup() })

	require.Equal(t, "api", m.DefaultName())
	require.Equal(t, []string{"api", "pages", "tiny"}, m.Names())
}

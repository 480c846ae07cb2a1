package strategy

import (
	"time"

	"github.com/dmitrymomot/cachekit/pkg/cache"
)

// Names of the built-in strategies.
const (
	DefaultName = "default"
	SessionName = "session"
	APIName     = "api"
	StaticName  = "static"
)

// Defaults returns the built-in strategies. The slice is freshly
// allocated on every call.
func Defaults() []Strategy {
	return []Strategy{
		{
			Name:         DefaultName,
			Description:  "General purpose cache",
			TTL:          5 * time.Minute,
			MaxSizeBytes: 50 << 20,
			Eviction:     cache.PolicyLRU,
			Rules: []Rule{
				EvictAbove(45 << 20),
			},
		},
		{
			Name:         SessionName,
			Description:  "Per-user session data",
			TTL:          30 * time.Minute,
			MaxSizeBytes: 10 << 20,
			Eviction:     cache.PolicyLRU,
			Rules: []Rule{
				OnSignal("logout", ActionEvict),
			},
		},
		{
			Name:         APIName,
			Description:  "Upstream API responses",
			TTL:          2 * time.Minute,
			MaxSizeBytes: 20 << 20,
			Eviction:     cache.PolicyLFU,
			Compress:     true,
			Rules: []Rule{
				RefreshAfter(90 * time.Second),
				OnSignal("deploy", ActionEvict),
			},
		},
		{
			Name:         StaticName,
			Description:  "Rarely changing reference data",
			TTL:          24 * time.Hour,
			MaxSizeBytes: 100 << 20,
			Eviction:     cache.PolicyFIFO,
			Compress:     true,
			Persist:      true,
			Rules: []Rule{
				{Condition: SizeCondition{Bytes: 80 << 20}, Action: ActionCompress},
			},
		},
	}
}

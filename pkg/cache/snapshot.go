package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/cachekit/pkg/persist"
)

// Snapshot is the persisted form of a store.
// Entries are listed in eviction order, next victim first, so replaying
// them on restore reproduces the policy ordering.
type Snapshot struct {
	SavedAt time.Time       `json:"saved_at"`
	Version string          `json:"version"`
	Store   string          `json:"store"`
	Writer  string          `json:"writer"`
	Entries []SnapshotEntry `json:"entries"`
	Stats   Stats           `json:"stats"`
}

// SnapshotEntry is one persisted entry.
type SnapshotEntry struct {
	CreatedAt  time.Time     `json:"created_at"`
	Key        string        `json:"key"`
	Data       []byte        `json:"data"`
	TTL        time.Duration `json:"ttl"`
	Hits       int64         `json:"hits"`
	Compressed bool          `json:"compressed,omitempty"`
	Stale      bool          `json:"stale,omitempty"`
}

// DecodeSnapshot parses a persisted snapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Join(ErrSnapshotCorrupt, err)
	}
	return &snap, nil
}

// SnapshotKey returns the backend key a store with the given name and
// version persists under.
func SnapshotKey(name, version string) string {
	return persist.Key("snapshot", name, version)
}

// Flush writes the current state to the persistence backend synchronously.
// Returns ErrNoBackend when persistence is not configured.
func (s *Store[V]) Flush(ctx context.Context) error {
	if s.opts.backend == nil {
		return ErrNoBackend
	}

	// Serializes snapshot+save pairs so an older snapshot never lands
	// after a newer one.
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	payload, err := json.Marshal(s.snapshot())
	if err != nil {
		return errors.Join(ErrMarshal, err)
	}

	return s.opts.backend.Save(ctx, SnapshotKey(s.opts.name, s.opts.version), payload)
}

// snapshot copies the store state under the lock.
func (s *Store[V]) snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	order := s.policy.Order()
	entries := make([]SnapshotEntry, 0, len(order))
	for _, key := range order {
		e, ok := s.items[key]
		if !ok {
			continue
		}
		entries = append(entries, SnapshotEntry{
			Key:        e.key,
			Data:       e.data,
			CreatedAt:  e.createdAt,
			TTL:        e.ttl,
			Hits:       e.hits,
			Compressed: e.compressed,
			Stale:      e.stale,
		})
	}

	return &Snapshot{
		SavedAt: s.opts.now(),
		Version: s.opts.version,
		Store:   s.opts.name,
		Writer:  s.writer,
		Entries: entries,
		Stats:   s.statsLocked(),
	}
}

// restore loads the snapshot for this store's name and version.
// Every failure is logged and leaves the store empty.
func (s *Store[V]) restore() {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.restoreTimeout)
	defer cancel()

	log := s.opts.logger.With(
		slog.String("cache", s.opts.name),
		slog.String("version", s.opts.version),
	)

	data, err := s.opts.backend.Load(ctx, SnapshotKey(s.opts.name, s.opts.version))
	if err != nil {
		if errors.Is(err, persist.ErrNotFound) {
			log.DebugContext(ctx, "no cache snapshot to restore")
			return
		}
		log.WarnContext(ctx, "cache snapshot load failed, starting empty", slog.Any("error", err))
		return
	}

	snap, err := DecodeSnapshot(data)
	if err != nil {
		log.WarnContext(ctx, "cache snapshot is corrupt, starting empty", slog.Any("error", err))
		return
	}
	if snap.Version != s.opts.version {
		log.InfoContext(ctx, "cache snapshot version mismatch, starting empty",
			slog.String("snapshot_version", snap.Version),
		)
		return
	}

	now := s.opts.now()
	restored := 0

	s.mu.Lock()
	for _, se := range snap.Entries {
		e := &entry{
			key:        se.Key,
			data:       se.Data,
			createdAt:  se.CreatedAt,
			ttl:        se.TTL,
			hits:       se.Hits,
			size:       int64(len(se.Data)),
			compressed: se.Compressed,
			stale:      se.Stale,
		}
		if e.expired(now) {
			continue
		}
		if limit := s.opts.maxSizeBytes; limit > 0 && e.size > limit {
			continue
		}
		s.insertLocked(e)
		if seeder, ok := s.policy.(frequencySeeder); ok {
			seeder.seed(e.key, e.hits+1)
		}
		restored++
	}
	s.hits = snap.Stats.Hits
	s.misses = snap.Stats.Misses
	s.evictions = snap.Stats.Evictions
	s.mu.Unlock()

	log.InfoContext(ctx, "cache snapshot restored",
		slog.Int("entries", restored),
		slog.String("writer", snap.Writer),
		slog.Time("saved_at", snap.SavedAt),
	)
}

// markDirty schedules a snapshot write. Bursts of mutations collapse
// into a single pending write.
func (s *Store[V]) markDirty() {
	if s.dirty == nil {
		return
	}
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// persister writes snapshots in the background whenever the store is dirty.
func (s *Store[V]) persister() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case <-s.dirty:
			ctx, cancel := context.WithTimeout(context.Background(), s.opts.restoreTimeout)
			if err := s.Flush(ctx); err != nil {
				s.opts.logger.WarnContext(ctx, "cache snapshot write failed",
					slog.String("cache", s.opts.name),
					slog.Any("error", err),
				)
			}
			cancel()
		}
	}
}

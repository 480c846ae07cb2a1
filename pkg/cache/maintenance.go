package cache

// Bulk operations used by invalidation rules. Predicates receive a
// read-only EntryMeta and run under the store lock, so they must not call
// back into the store.

// Entries returns the metadata of every entry, expired ones included,
// in insertion order.
func (s *Store[V]) Entries() []EntryMeta {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := s.orderedLocked()
	metas := make([]EntryMeta, len(ordered))
	for i, e := range ordered {
		metas[i] = e.meta()
	}
	return metas
}

// RemoveIf removes every entry matched by pred and returns how many were removed.
func (s *Store[V]) RemoveIf(pred func(EntryMeta) bool) int {
	return s.removeWhere(func(e *entry) bool { return pred(e.meta()) }, ReasonInvalidated)
}

// MarkStale flags key for refresh by the caller's own refresh logic.
func (s *Store[V]) MarkStale(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if ok {
		e.stale = true
	}
	return ok
}

// MarkStaleIf flags every entry matched by pred and returns the keys that
// were newly marked.
func (s *Store[V]) MarkStaleIf(pred func(EntryMeta) bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var marked []string
	for _, e := range s.orderedLocked() {
		if !e.stale && pred(e.meta()) {
			e.stale = true
			marked = append(marked, e.key)
		}
	}
	return marked
}

// StaleKeys returns the keys currently flagged for refresh.
func (s *Store[V]) StaleKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	for _, e := range s.orderedLocked() {
		if e.stale {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// CompressIf recompresses every uncompressed entry matched by pred and
// returns how many entries shrank. Compression runs outside the lock; an
// entry replaced in the meantime is left alone.
func (s *Store[V]) CompressIf(pred func(EntryMeta) bool) int {
	type candidate struct {
		key  string
		data []byte
		seq  uint64
	}

	s.mu.Lock()
	var candidates []candidate
	for _, e := range s.orderedLocked() {
		if !e.compressed && pred(e.meta()) {
			candidates = append(candidates, candidate{key: e.key, data: e.data, seq: e.seq})
		}
	}
	s.mu.Unlock()

	type result struct {
		candidate
		packed []byte
	}
	results := make([]result, 0, len(candidates))
	for _, c := range candidates {
		if packed, ok := compress(c.data); ok {
			results = append(results, result{candidate: c, packed: packed})
		}
	}
	if len(results) == 0 {
		return 0
	}

	s.mu.Lock()
	shrunk := 0
	for _, r := range results {
		e, ok := s.items[r.key]
		if !ok || e.seq != r.seq || e.compressed {
			continue
		}
		packedSize := int64(len(r.packed))
		s.size += packedSize - e.size
		e.data = r.packed
		e.size = packedSize
		e.compressed = true
		shrunk++
	}
	s.mu.Unlock()

	if shrunk > 0 {
		s.markDirty()
	}
	return shrunk
}

// ShrinkTo evicts entries oldest first until the store holds at most
// limit bytes. Returns the number of evicted entries.
func (s *Store[V]) ShrinkTo(limit int64) int {
	s.mu.Lock()
	var evicted []string
	if s.size > limit {
		for _, e := range s.orderedLocked() {
			if s.size <= limit {
				break
			}
			s.removeLocked(e)
			s.evictions++
			evicted = append(evicted, e.key)
		}
	}
	s.mu.Unlock()

	if len(evicted) > 0 {
		s.notify(evicted, ReasonCapacity)
		s.markDirty()
	}
	return len(evicted)
}

// CompressTo compresses entries oldest first until the store holds at most
// limit bytes or nothing compressible is left. Returns how many entries shrank.
func (s *Store[V]) CompressTo(limit int64) int {
	shrunk := 0
	for _, meta := range s.Entries() {
		if s.Stats().SizeBytes <= limit {
			break
		}
		if meta.Compressed {
			continue
		}
		key, created := meta.Key, meta.CreatedAt
		shrunk += s.CompressIf(func(m EntryMeta) bool {
			return m.Key == key && m.CreatedAt.Equal(created)
		})
	}
	return shrunk
}

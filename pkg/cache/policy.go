package cache

import (
	"container/heap"
	"container/list"
	"fmt"
	"math"
	"strings"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// PolicyKind names an eviction policy.
type PolicyKind string

// Supported eviction policies.
const (
	PolicyLRU  PolicyKind = "lru"
	PolicyLFU  PolicyKind = "lfu"
	PolicyFIFO PolicyKind = "fifo"
)

// ParsePolicy converts a case-insensitive policy name to a PolicyKind.
func ParsePolicy(s string) (PolicyKind, error) {
	switch k := PolicyKind(strings.ToLower(strings.TrimSpace(s))); k {
	case PolicyLRU, PolicyLFU, PolicyFIFO:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Policy selects eviction victims. All methods are invoked under the
// store lock; implementations need no synchronization of their own.
type Policy interface {
	// Inserted records a new key.
	Inserted(key string)
	// Accessed records a cache hit on key.
	Accessed(key string)
	// Removed forgets key.
	Removed(key string)
	// Victim returns the key that should be evicted next.
	Victim() (string, bool)
	// Order returns tracked keys, next victim first.
	Order() []string
	// Reset forgets every key.
	Reset()
}

// frequencySeeder is implemented by policies that can restore access
// counts from a snapshot.
type frequencySeeder interface {
	seed(key string, freq int64)
}

// NewPolicy constructs a fresh policy of the given kind.
func NewPolicy(kind PolicyKind) (Policy, error) {
	switch kind {
	case PolicyLRU:
		return newLRU(), nil
	case PolicyLFU:
		return newLFU(), nil
	case PolicyFIFO:
		return newFIFO(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, kind)
	}
}

// lruPolicy keeps keys ordered by last touch. Capacity is enforced by the
// store in bytes, so the list itself is effectively unbounded.
type lruPolicy struct {
	list *simplelru.LRU[string, struct{}]
}

func newLRU() *lruPolicy {
	l, _ := simplelru.NewLRU[string, struct{}](math.MaxInt32, nil)
	return &lruPolicy{list: l}
}

func (p *lruPolicy) Inserted(key string) { p.list.Add(key, struct{}{}) }
func (p *lruPolicy) Accessed(key string) { p.list.Get(key) }
func (p *lruPolicy) Removed(key string)  { p.list.Remove(key) }
func (p *lruPolicy) Order() []string     { return p.list.Keys() }
func (p *lruPolicy) Reset()              { p.list.Purge() }

func (p *lruPolicy) Victim() (string, bool) {
	key, _, ok := p.list.GetOldest()
	return key, ok
}

// fifoPolicy keeps pure insertion order; reads do not reorder.
type fifoPolicy struct {
	order *list.List
	index map[string]*list.Element
}

func newFIFO() *fifoPolicy {
	return &fifoPolicy{order: list.New(), index: make(map[string]*list.Element)}
}

func (p *fifoPolicy) Inserted(key string) {
	if _, ok := p.index[key]; ok {
		return
	}
	p.index[key] = p.order.PushBack(key)
}

func (p *fifoPolicy) Accessed(string) {}

func (p *fifoPolicy) Removed(key string) {
	if elem, ok := p.index[key]; ok {
		p.order.Remove(elem)
		delete(p.index, key)
	}
}

func (p *fifoPolicy) Victim() (string, bool) {
	front := p.order.Front()
	if front == nil {
		return "", false
	}
	return front.Value.(string), true
}

func (p *fifoPolicy) Order() []string {
	keys := make([]string, 0, p.order.Len())
	for elem := p.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(string))
	}
	return keys
}

func (p *fifoPolicy) Reset() {
	p.order.Init()
	p.index = make(map[string]*list.Element)
}

// lfuPolicy is a min-heap on (frequency, insertion sequence). Ties on
// frequency evict the oldest inserted key.
type lfuPolicy struct {
	items lfuHeap
	index map[string]*lfuItem
	seq   uint64
}

type lfuItem struct {
	key   string
	freq  int64
	seq   uint64
	index int
}

type lfuHeap []*lfuItem

func (h lfuHeap) Len() int { return len(h) }

func (h lfuHeap) Less(i, j int) bool {
	if h[i].freq != h[j].freq {
		return h[i].freq < h[j].freq
	}
	return h[i].seq < h[j].seq
}

func (h lfuHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *lfuHeap) Push(x any) {
	item := x.(*lfuItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *lfuHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

func newLFU() *lfuPolicy {
	return &lfuPolicy{index: make(map[string]*lfuItem)}
}

func (p *lfuPolicy) Inserted(key string) {
	if _, ok := p.index[key]; ok {
		return
	}
	p.seq++
	item := &lfuItem{key: key, freq: 1, seq: p.seq}
	heap.Push(&p.items, item)
	p.index[key] = item
}

func (p *lfuPolicy) Accessed(key string) {
	if item, ok := p.index[key]; ok {
		item.freq++
		heap.Fix(&p.items, item.index)
	}
}

func (p *lfuPolicy) Removed(key string) {
	if item, ok := p.index[key]; ok {
		heap.Remove(&p.items, item.index)
		delete(p.index, key)
	}
}

func (p *lfuPolicy) Victim() (string, bool) {
	if len(p.items) == 0 {
		return "", false
	}
	return p.items[0].key, true
}

func (p *lfuPolicy) Order() []string {
	sorted := make(lfuHeap, len(p.items))
	for i, item := range p.items {
		cp := *item
		sorted[i] = &cp
	}
	keys := make([]string, 0, len(sorted))
	for sorted.Len() > 0 {
		keys = append(keys, heap.Pop(&sorted).(*lfuItem).key)
	}
	return keys
}

func (p *lfuPolicy) Reset() {
	p.items = nil
	p.index = make(map[string]*lfuItem)
}

func (p *lfuPolicy) seed(key string, freq int64) {
	if item, ok := p.index[key]; ok && freq > item.freq {
		item.freq = freq
		heap.Fix(&p.items, item.index)
	}
}

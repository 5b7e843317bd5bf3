// Package cache provides the partitioned, TTL-based key/value store used by
// validation strategies to memoize expensive checks. Keys are hashed into a
// fixed number of partitions, each independently lockable, so concurrent
// requests contend only on the partition their key maps to.
//
// Consistency policy: last write wins. There is no locking beyond partition
// granularity, so two validators racing to populate the same key simply
// overwrite each other; both writes are valid memoizations of the same
// computation.
package cache

import (
	"container/list"
	"hash/fnv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	// DefaultPartitionCount bounds lock contention under concurrent access.
	DefaultPartitionCount = 16
	// DefaultTTL applies when Set is called with a non-positive TTL.
	DefaultTTL = 5 * time.Minute
	// DefaultMaxEntries is the total entry budget across all partitions.
	DefaultMaxEntries = 1000
)

// Config controls cache construction.
type Config struct {
	PartitionCount int           `yaml:"partition_count" json:"partition_count" toml:"partition_count"`
	MaxEntries     int           `yaml:"max_size" json:"max_size" toml:"max_size"`
	DefaultTTL     time.Duration `yaml:"default_ttl" json:"default_ttl" toml:"default_ttl"`
	// SweepSchedule is a cron expression for the periodic expired-entry
	// sweep. Empty disables the scheduled sweep; CleanupExpired can still
	// be called on demand.
	SweepSchedule string `yaml:"sweep_schedule" json:"sweep_schedule" toml:"sweep_schedule"`
}

func (c Config) withDefaults() Config {
	if c.PartitionCount <= 0 {
		c.PartitionCount = DefaultPartitionCount
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = DefaultTTL
	}
	return c
}

type entry struct {
	key       string
	value     any
	expiresAt time.Time
}

// partition is one independently locked shard. Entries are kept in LRU
// order; the oldest entry is evicted when the shard is full.
type partition struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	maxSize int

	hits    uint64
	misses  uint64
	sets    uint64
	expired uint64
	evicted uint64
}

func newPartition(maxSize int) *partition {
	return &partition{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
	}
}

func (p *partition) get(key string, now time.Time) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	el, ok := p.entries[key]
	if !ok {
		p.misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if now.After(e.expiresAt) {
		// Lazy expiry: an expired hit is a miss and the entry is removed.
		p.order.Remove(el)
		delete(p.entries, key)
		p.expired++
		p.misses++
		return nil, false
	}
	p.order.MoveToFront(el)
	p.hits++
	return e.value, true
}

func (p *partition) set(key string, value any, expiresAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if el, ok := p.entries[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.expiresAt = expiresAt
		p.order.MoveToFront(el)
		p.sets++
		return
	}
	if p.maxSize > 0 && len(p.entries) >= p.maxSize {
		oldest := p.order.Back()
		if oldest != nil {
			p.order.Remove(oldest)
			delete(p.entries, oldest.Value.(*entry).key)
			p.evicted++
		}
	}
	el := p.order.PushFront(&entry{key: key, value: value, expiresAt: expiresAt})
	p.entries[key] = el
	p.sets++
}

func (p *partition) delete(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	el, ok := p.entries[key]
	if !ok {
		return false
	}
	p.order.Remove(el)
	delete(p.entries, key)
	return true
}

func (p *partition) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries = make(map[string]*list.Element)
	p.order.Init()
}

func (p *partition) cleanupExpired(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for key, el := range p.entries {
		if now.After(el.Value.(*entry).expiresAt) {
			p.order.Remove(el)
			delete(p.entries, key)
			p.expired++
			removed++
		}
	}
	return removed
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Partitions int     `json:"partitions"`
	Entries    int     `json:"entries"`
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	Sets       uint64  `json:"sets"`
	Expired    uint64  `json:"expired"`
	Evicted    uint64  `json:"evicted"`
	HitRate    float64 `json:"hitRate"`

	// PartitionEntries holds the live entry count of each partition,
	// indexed by partition number.
	PartitionEntries []int `json:"partitionEntries"`
}

// Manager is the partitioned TTL cache. The zero value is not usable;
// construct with New.
type Manager struct {
	config     Config
	partitions []*partition
	cron       *cron.Cron
	sweepID    cron.EntryID
}

// New builds a cache manager from config, applying defaults for zero
// fields. The scheduled sweep does not run until Start is called.
func New(cfg Config) *Manager {
	cfg = cfg.withDefaults()
	perPartition := cfg.MaxEntries / cfg.PartitionCount
	if perPartition < 1 {
		perPartition = 1
	}
	m := &Manager{
		config:     cfg,
		partitions: make([]*partition, cfg.PartitionCount),
	}
	for i := range m.partitions {
		m.partitions[i] = newPartition(perPartition)
	}
	return m
}

// Start begins the periodic expired-entry sweep, if a schedule is
// configured. It is a no-op otherwise.
func (m *Manager) Start() error {
	if m.config.SweepSchedule == "" {
		return nil
	}
	m.cron = cron.New(cron.WithSeconds())
	id, err := m.cron.AddFunc(m.config.SweepSchedule, func() { m.CleanupExpired() })
	if err != nil {
		return err
	}
	m.sweepID = id
	m.cron.Start()
	return nil
}

// Stop halts the periodic sweep. Entries remain readable; lazy expiry on
// Get still applies.
func (m *Manager) Stop() {
	if m.cron != nil {
		m.cron.Stop()
	}
}

func (m *Manager) partitionFor(key string) *partition {
	h := fnv.New32a()
	h.Write([]byte(key))
	return m.partitions[h.Sum32()%uint32(len(m.partitions))]
}

// Get returns the cached value for key. An entry past its TTL is treated
// as a miss and removed.
func (m *Manager) Get(key string) (any, bool) {
	return m.partitionFor(key).get(key, time.Now())
}

// Set stores value under key for ttl. A non-positive ttl uses the
// configured default.
func (m *Manager) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.config.DefaultTTL
	}
	m.partitionFor(key).set(key, value, time.Now().Add(ttl))
}

// Delete removes key from the cache, reporting whether it was present.
func (m *Manager) Delete(key string) bool {
	return m.partitionFor(key).delete(key)
}

// Clear empties every partition. Counters are retained.
func (m *Manager) Clear() {
	for _, p := range m.partitions {
		p.clear()
	}
}

// CleanupExpired sweeps all partitions removing entries whose expiry has
// passed, returning the number removed. It runs on the configured schedule
// and may be called on demand.
func (m *Manager) CleanupExpired() int {
	now := time.Now()
	removed := 0
	for _, p := range m.partitions {
		removed += p.cleanupExpired(now)
	}
	return removed
}

// Stats aggregates counters across all partitions.
func (m *Manager) Stats() Stats {
	var s Stats
	s.Partitions = len(m.partitions)
	s.PartitionEntries = make([]int, len(m.partitions))
	for i, p := range m.partitions {
		p.mu.Lock()
		s.PartitionEntries[i] = len(p.entries)
		s.Entries += len(p.entries)
		s.Hits += p.hits
		s.Misses += p.misses
		s.Sets += p.sets
		s.Expired += p.expired
		s.Evicted += p.evicted
		p.mu.Unlock()
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

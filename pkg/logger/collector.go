package logger

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"
)

// Publisher ships digest batches, e.g. to a Kafka topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

// CollectionConfig controls how repeated log entries are folded before they
// are shipped.
type CollectionConfig struct {
	Topic     string
	Publisher Publisher

	Service     string
	Environment string

	// MinLevel is "warn" or "error" (default).
	MinLevel string
	// Interval between flushes; MaxEntries distinct entries force an early one.
	Interval       time.Duration
	MaxEntries     int
	PublishTimeout time.Duration
	// IgnoreFields are left out of the grouping key and the digest.
	IgnoreFields []string
}

// ErrorDigest is one distinct entry with the number of times it was seen.
type ErrorDigest struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Caller    string                 `json:"caller"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// DigestBatch is the payload of one flush.
type DigestBatch struct {
	Service     string        `json:"service"`
	Environment string        `json:"environment"`
	FlushedAt   time.Time     `json:"flushed_at"`
	Entries     []ErrorDigest `json:"entries"`
}

var defaultIgnoredFields = []string{"trade_id", "client_order_id", "duration_ms"}

// LogCollector folds repeated entries and publishes them in batches from a
// single goroutine. Close publishes whatever is pending before returning.
type LogCollector struct {
	cfg      CollectionConfig
	ignore   map[string]bool
	minLevel int

	mu      sync.Mutex
	pending map[uint64]*ErrorDigest

	kick      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	now       func() time.Time
}

func NewLogCollector(cfg *CollectionConfig) *LogCollector {
	c := &LogCollector{
		cfg:     *cfg,
		pending: make(map[uint64]*ErrorDigest),
		kick:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	if c.cfg.Interval <= 0 {
		c.cfg.Interval = 30 * time.Second
	}
	if c.cfg.MaxEntries <= 0 {
		c.cfg.MaxEntries = 100
	}
	if c.cfg.PublishTimeout <= 0 {
		c.cfg.PublishTimeout = 10 * time.Second
	}
	ignored := c.cfg.IgnoreFields
	if ignored == nil {
		ignored = defaultIgnoredFields
	}
	c.ignore = make(map[string]bool, len(ignored))
	for _, f := range ignored {
		c.ignore[f] = true
	}
	c.minLevel = levelRank(c.cfg.MinLevel)
	if c.minLevel == 0 {
		c.minLevel = levelRank("error")
	}

	go c.run()
	return c
}

func levelRank(level string) int {
	switch level {
	case "warn":
		return 1
	case "error":
		return 2
	}
	return 0
}

// AddLog records one entry. Entries below MinLevel are ignored.
func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	if levelRank(level) < c.minLevel {
		return
	}
	for k := range fields {
		if c.ignore[k] {
			delete(fields, k)
		}
	}
	key := digestKey(level, message, caller, fields)
	now := c.now()

	c.mu.Lock()
	if d, ok := c.pending[key]; ok {
		d.Count++
		d.LastSeen = now
	} else {
		c.pending[key] = &ErrorDigest{
			Level:     level,
			Message:   message,
			Caller:    caller,
			Fields:    fields,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	full := len(c.pending) >= c.cfg.MaxEntries
	c.mu.Unlock()

	if full {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	}
}

// digestKey hashes everything that identifies an entry. Field keys are
// sorted so map order does not split one error into several digests.
func digestKey(level, message, caller string, fields map[string]interface{}) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%s", level, caller, message)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "\x00%s=%v", k, fields[k])
	}
	return h.Sum64()
}

func (c *LogCollector) run() {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-c.kick:
			c.flush()
		case <-c.stop:
			c.flush()
			return
		}
	}
}

func (c *LogCollector) flush() {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	batch := DigestBatch{
		Service:     c.cfg.Service,
		Environment: c.cfg.Environment,
		FlushedAt:   c.now(),
		Entries:     make([]ErrorDigest, 0, len(c.pending)),
	}
	for _, d := range c.pending {
		batch.Entries = append(batch.Entries, *d)
	}
	c.pending = make(map[uint64]*ErrorDigest)
	c.mu.Unlock()

	sort.Slice(batch.Entries, func(i, j int) bool {
		return batch.Entries[i].FirstSeen.Before(batch.Entries[j].FirstSeen)
	})

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PublishTimeout)
	defer cancel()
	// a failed publish cannot be logged here without feeding the collector
	_ = c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch)
}

// Close stops the flush loop after publishing pending entries.
func (c *LogCollector) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
	<-c.done
}

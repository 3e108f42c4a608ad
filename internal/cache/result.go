// Package cache memoizes successful tool results keyed by canonical
// call signature, with lazy TTL expiry and coarse file-change invalidation.
package cache

import (
	"sync"
	"time"

	"github.com/HathorNetwork/hathor-playground-sub001/internal/toolcall"
	"github.com/HathorNetwork/hathor-playground-sub001/pkg/models"
)

// readToolNames is the fixed allow-list of operations whose results depend
// on project file contents. Any write sweeps all of them, with no attempt
// to track which paths a read actually touched.
var readToolNames = map[string]bool{
	"read_file":             true,
	"list_files":            true,
	"grep":                  true,
	"get_project_structure": true,
	"list_blueprint_methods": true,
}

// Entry is a cached envelope with its creation time.
type Entry struct {
	Result    models.ToolResult
	Timestamp time.Time
	Key       string
	toolName  string
}

// ResultCache stores successful tool envelopes. Failures are never
// memoized: a transient failure must be retried, not parroted.
type ResultCache struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	defaultTTL time.Duration
	maxEntries int

	hits   int
	misses int
}

// Options configures a ResultCache.
type Options struct {
	// TTL is the default entry lifetime. Default 5 minutes.
	TTL time.Duration
	// MaxEntries bounds the cache size. Default 256.
	MaxEntries int
}

// New creates a ResultCache, applying defaults for zero fields.
func New(opts Options) *ResultCache {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 256
	}
	return &ResultCache{
		entries:    make(map[string]*Entry),
		defaultTTL: opts.TTL,
		maxEntries: opts.MaxEntries,
	}
}

// Get returns the cached envelope for (tool, args), or nil on miss. An
// entry older than ttl is deleted and reported as a miss rather than
// waiting for a background sweep. Pass ttl <= 0 to use the default.
//
// The returned envelope is a copy with Metadata.Cached set and
// Metadata.ExecutionTime overwritten with the entry's age; the stored
// original is never handed out.
func (c *ResultCache) Get(tool string, args map[string]any, ttl time.Duration) *models.ToolResult {
	return c.GetAt(tool, args, ttl, time.Now())
}

// GetAt is Get with an explicit clock, for tests.
func (c *ResultCache) GetAt(tool string, args map[string]any, ttl time.Duration, now time.Time) *models.ToolResult {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	key := toolcall.Signature(tool, args)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil
	}
	age := now.Sub(entry.Timestamp)
	if age >= ttl {
		delete(c.entries, key)
		c.misses++
		return nil
	}

	c.hits++
	res := entry.Result.Clone()
	if res.Metadata == nil {
		res.Metadata = &models.ResultMetadata{}
	}
	res.Metadata.Cached = true
	res.Metadata.ExecutionTime = age
	return &res
}

// Set stores a successful envelope for (tool, args). Failed results are
// ignored so the prior cache state is preserved.
func (c *ResultCache) Set(tool string, args map[string]any, result models.ToolResult) {
	c.SetAt(tool, args, result, time.Now())
}

// SetAt is Set with an explicit clock, for tests.
func (c *ResultCache) SetAt(tool string, args map[string]any, result models.ToolResult, now time.Time) {
	if !result.Success {
		return
	}
	key := toolcall.Signature(tool, args)

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = &Entry{
		Result:    result.Clone(),
		Timestamp: now,
		Key:       key,
		toolName:  tool,
	}
}

// Invalidate removes entries. With no tool it clears everything; with a
// tool and nil args it removes all entries for that tool; with both it
// removes the exact entry.
func (c *ResultCache) Invalidate(tool string, args map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case tool == "":
		c.entries = make(map[string]*Entry)
	case args == nil:
		for key, entry := range c.entries {
			if entry.toolName == tool {
				delete(c.entries, key)
			}
		}
	default:
		delete(c.entries, toolcall.Signature(tool, args))
	}
}

// InvalidateOnFileChange sweeps every entry for read-dependent tools after
// a mutation anywhere in the project. The path parameter is recorded for
// symmetry with the contract but does not narrow the sweep.
func (c *ResultCache) InvalidateOnFileChange(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if readToolNames[entry.toolName] {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Cleanup proactively removes entries older than ttl (default TTL when
// ttl <= 0) and returns how many were removed.
func (c *ResultCache) Cleanup(ttl time.Duration) int {
	return c.CleanupAt(ttl, time.Now())
}

// CleanupAt is Cleanup with an explicit clock, for tests.
func (c *ResultCache) CleanupAt(ttl time.Duration, now time.Time) int {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.Timestamp) >= ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Size returns the current number of entries.
func (c *ResultCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats reports hit/miss counters since construction.
func (c *ResultCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// IsReadTool reports whether a tool is on the read-dependent allow-list
// used by InvalidateOnFileChange.
func IsReadTool(name string) bool {
	return readToolNames[name]
}

func (c *ResultCache) evictOldestLocked() {
	var oldestKey string
	var oldestTs time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.Timestamp.Before(oldestTs) {
			oldestKey = key
			oldestTs = entry.Timestamp
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

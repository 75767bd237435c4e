// Package intrinsics assembles and caches the C++ prolog of intrinsic
// declarations that must precede every expression evaluated against a
// value, so that `$intrinsic$name(...)` calls resolve. Ported from
// renderers/jb_lldb_intrinsics_prolog_cache.py and its LLDBCache
// collaborator (renderers/jb_lldb_cache.py): a cache keyed on
// (module path, type name), partitioned per debugger process, cleared on
// module/symbol load events rather than on a timer or LRU policy.
package intrinsics

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Event identifies one of the debugger target events that invalidate
// every process-scoped cache entry, mirroring the
// eBroadcastBitModulesLoaded/Unloaded/eBroadcastBitSymbolsLoaded bits the
// Python cache listens for.
type Event int

const (
	EventModulesLoaded Event = iota
	EventModulesUnloaded
	EventSymbolsLoaded
)

// ProcessID identifies a live debuggee process; the host assigns these,
// mirroring SBProcess.GetUniqueID().
type ProcessID uint64

type processCache struct {
	mu      sync.Mutex
	entries map[uint64]string
}

// Cache is a (module path, type name) -> prolog string cache, one bucket
// per process, cleared wholesale on any Invalidate call for that
// process — the Python original treats every listened-for event as a
// blanket clear rather than fine-grained eviction, and this keeps that
// behaviour.
type Cache struct {
	mu        sync.Mutex
	processes map[ProcessID]*processCache
}

func NewCache() *Cache {
	return &Cache{processes: make(map[ProcessID]*processCache)}
}

func (c *Cache) forProcess(pid ProcessID) *processCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	pc, ok := c.processes[pid]
	if !ok {
		pc = &processCache{entries: make(map[uint64]string)}
		c.processes[pid] = pc
	}
	return pc
}

// key hashes (modulePath, typeName) into a single cache slot using
// xxhash, the same fast non-cryptographic hash the teacher's content
// addressing uses, rather than building a composite string key.
func key(modulePath, typeName string) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(modulePath)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(typeName)
	return h.Sum64()
}

// Get returns the cached prolog for (modulePath, typeName) in pid's
// bucket, if present.
func (c *Cache) Get(pid ProcessID, modulePath, typeName string) (string, bool) {
	pc := c.forProcess(pid)
	pc.mu.Lock()
	defer pc.mu.Unlock()
	s, ok := pc.entries[key(modulePath, typeName)]
	return s, ok
}

// Set stores prolog for (modulePath, typeName) in pid's bucket.
func (c *Cache) Set(pid ProcessID, modulePath, typeName, prolog string) {
	pc := c.forProcess(pid)
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.entries[key(modulePath, typeName)] = prolog
}

// Invalidate clears every cached prolog for pid, called when the host
// observes one of the Event kinds for that process.
func (c *Cache) Invalidate(pid ProcessID, _ Event) {
	c.mu.Lock()
	pc, ok := c.processes[pid]
	c.mu.Unlock()
	if !ok {
		return
	}
	pc.mu.Lock()
	pc.entries = make(map[uint64]string)
	pc.mu.Unlock()
}

// Forget drops pid's bucket entirely, called when the process exits.
func (c *Cache) Forget(pid ProcessID) {
	c.mu.Lock()
	delete(c.processes, pid)
	c.mu.Unlock()
}

// Package formatter tracks the set of loaded visualiser files and keeps
// a Storage in sync with them: add/remove/reload always re-parses the
// full file set and rebuilds Storage from scratch, since Storage itself
// has no incremental-remove operation (spec.md §4.I).
package formatter

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/natvis-engine/internal/hostapi"
	"github.com/standardbeagle/natvis-engine/internal/model"
	"github.com/standardbeagle/natvis-engine/internal/storage"
)

// RegistrationSink receives the lazy-declaration table rebuild the host
// debugger must perform whenever the visualiser set changes: clear
// whatever it previously registered, then re-register the fresh
// top-level methods. This mirrors the debugger-side
// jb_renderers_load/reload/remove command handlers, modeled here as a
// seam the same way hostapi.VisualiserSource models the XML loader.
type RegistrationSink interface {
	Clear()
	Register(methods []*model.SyntheticMethodDefinition)
}

// Manager tracks (filepath -> fingerprint) and owns the Storage rebuilt
// from the full set on every mutation.
type Manager struct {
	mu     sync.Mutex
	source hostapi.VisualiserSource
	logger *log.Logger
	sink   RegistrationSink

	files   map[string]string // path -> fingerprint (mtime+size encoded)
	storage *storage.Storage
}

// New builds an empty Manager. logger may be nil (passed straight
// through to the rebuilt Storage). sink may be nil, in which case
// rebuilds simply skip the host-side registration step (useful in
// tests that only care about the resulting Storage).
func New(source hostapi.VisualiserSource, sink RegistrationSink, logger *log.Logger) *Manager {
	return &Manager{
		source:  source,
		logger:  logger,
		sink:    sink,
		files:   make(map[string]string),
		storage: storage.New(logger),
	}
}

// Storage returns the manager's current Storage snapshot. The returned
// pointer is stable until the next Add/Remove/Reload/ReloadAll call,
// which replaces it wholesale.
func (m *Manager) Storage() *storage.Storage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.storage
}

// Add registers path (tracked by fingerprint) and rebuilds Storage over
// the full file set.
func (m *Manager) Add(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fp, err := fingerprint(path)
	if err != nil {
		return fmt.Errorf("formatter: add %s: %w", path, err)
	}
	m.files[path] = fp
	return m.rebuildLocked()
}

// AddGlob resolves pattern (e.g. "visualizers/**/*.natvis") against the
// filesystem and Adds every match in one rebuild pass.
func (m *Manager) AddGlob(pattern string) error {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return fmt.Errorf("formatter: bad glob %q: %w", pattern, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, path := range matches {
		fp, err := fingerprint(path)
		if err != nil {
			return fmt.Errorf("formatter: add %s: %w", path, err)
		}
		m.files[path] = fp
	}
	return m.rebuildLocked()
}

// Remove drops path from the tracked set and rebuilds Storage over
// whatever remains.
func (m *Manager) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.files, path)
	return m.rebuildLocked()
}

// RemoveAll drops every tracked file and rebuilds an empty Storage.
func (m *Manager) RemoveAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files = make(map[string]string)
	return m.rebuildLocked()
}

// Reload re-fingerprints path (picking up on-disk edits) and rebuilds;
// a no-op fingerprint change still triggers a full rebuild, matching
// spec.md §4.I's "reload always re-runs E over the full set".
func (m *Manager) Reload(path string) error {
	return m.Add(path)
}

// ReloadAll re-fingerprints every tracked file and rebuilds once.
func (m *Manager) ReloadAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for path := range m.files {
		fp, err := fingerprint(path)
		if err != nil {
			return fmt.Errorf("formatter: reload %s: %w", path, err)
		}
		m.files[path] = fp
	}
	return m.rebuildLocked()
}

// ListAll returns the currently tracked file paths in no particular
// order.
func (m *Manager) ListAll() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.files))
	for path := range m.files {
		out = append(out, path)
	}
	return out
}

// rebuildLocked re-parses every tracked file and replaces m.storage.
// Caller must hold m.mu.
func (m *Manager) rebuildLocked() error {
	fresh := storage.New(m.logger)

	for path := range m.files {
		contents, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("formatter: reading %s: %w", path, err)
		}
		types, err := m.source.Parse(path, contents)
		if err != nil {
			return fmt.Errorf("formatter: parsing %s: %w", path, err)
		}
		for _, tv := range types {
			fresh.AddType(tv)
		}
	}
	fresh.GenerateTopLevelMethods()

	m.storage = fresh
	if m.sink != nil {
		m.sink.Clear()
		m.sink.Register(fresh.TopLevelMethods())
	}
	return nil
}

func fingerprint(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%d", info.Size(), info.ModTime().UnixNano()), nil
}

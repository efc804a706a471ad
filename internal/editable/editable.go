// Package editable merges each asset's manifest-declared editable
// defaults with a per-asset YAML override file, polling for external
// changes and pushing diffs to whichever Surfaces host that asset.
package editable

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sentinel-wallpaper/engine/internal/asset"
	"github.com/sentinel-wallpaper/engine/internal/logging"
)

var log = logging.L("editable")

const pollInterval = 250 * time.Millisecond

// Sink receives a CSS variable diff for one asset; the Supervisor
// implements this by pushing native_css_vars to every Surface hosting
// that asset.
type Sink interface {
	PushCSSVars(assetID string, vars map[string]any)
}

// overrideFile is the on-disk shape of <assetDir>/editable.yaml: a
// flat map from editable key to override value.
type overrideFile map[string]any

// assetState tracks one asset's merged effective values and the
// override file's last-seen mtime.
type assetState struct {
	dir       string
	editables map[string]asset.Editable
	effective map[string]any // CSS variable -> value
	lastMtime time.Time
}

// Store owns the merged effective values for every asset the registry
// knows about and polls override files for external edits.
type Store struct {
	registry *asset.Registry
	sink     Sink

	mu     sync.RWMutex
	states map[string]*assetState
}

func New(registry *asset.Registry, sink Sink) *Store {
	return &Store{registry: registry, sink: sink, states: make(map[string]*assetState)}
}

// SetSink rebinds the Store's push target. Used when the Sink (the
// Supervisor) can only be constructed after the Store it depends on.
func (s *Store) SetSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// Load builds initial effective-value state for every resolved,
// available asset by merging manifest defaults with the override
// file, if any.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states = make(map[string]*assetState)
	for _, a := range s.registry.All() {
		if a.Unavailable {
			continue
		}
		st := &assetState{dir: a.Dir, editables: flattenEditables(a.Editables)}
		st.effective = defaultsOf(st.editables)
		s.applyOverrideLocked(a.ID, st)
		s.states[a.ID] = st
	}
}

// Run polls override files at pollInterval until ctx is cancelled,
// pushing a diff to the Sink whenever a reload changes any value.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce()
		}
	}
}

func (s *Store) pollOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, st := range s.states {
		path := overridePath(st.dir)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if !info.ModTime().After(st.lastMtime) {
			continue
		}

		before := cloneValues(st.effective)
		st.effective = defaultsOf(st.editables)
		s.applyOverrideLocked(id, st)

		if diff := diffValues(before, st.effective); len(diff) > 0 {
			log.Info("editable override reloaded", "asset", id, "changed", len(diff))
			if s.sink != nil {
				s.sink.PushCSSVars(id, diff)
			}
		}
	}
}

// applyOverrideLocked reads and merges the override YAML file for one
// asset's state, updating lastMtime. Caller holds s.mu.
func (s *Store) applyOverrideLocked(id string, st *assetState) {
	path := overridePath(st.dir)
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var override overrideFile
	if err := yaml.Unmarshal(data, &override); err != nil {
		log.Warn("failed to parse editable override, keeping manifest defaults", "asset", id, "error", err)
		return
	}

	for key, val := range override {
		if e, ok := st.editables[key]; ok {
			st.effective[e.Variable] = val
		}
	}

	if info, err := os.Stat(path); err == nil {
		st.lastMtime = info.ModTime()
	}
}

// Effective returns the current CSS-variable-keyed value map for an
// asset, used to seed a newly created Surface.
func (s *Store) Effective(assetID string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[assetID]
	if !ok {
		return nil
	}
	return cloneValues(st.effective)
}

// Save writes a new override value for one editable key, merges it
// into the effective map, and pushes the one-key diff to Surfaces
// hosting that asset. The write is atomic: temp file + rename.
func (s *Store) Save(assetID, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[assetID]
	if !ok {
		return fmt.Errorf("editable: unknown asset %q", assetID)
	}
	e, ok := st.editables[key]
	if !ok {
		return fmt.Errorf("editable: asset %q has no editable %q", assetID, key)
	}

	override, err := readOverrideFile(overridePath(st.dir))
	if err != nil {
		return err
	}
	override[key] = value

	if err := writeOverrideFileAtomic(overridePath(st.dir), override); err != nil {
		return err
	}

	st.effective[e.Variable] = value
	if info, err := os.Stat(overridePath(st.dir)); err == nil {
		st.lastMtime = info.ModTime()
	}

	if s.sink != nil {
		s.sink.PushCSSVars(assetID, map[string]any{e.Variable: value})
	}
	return nil
}

func overridePath(assetDir string) string {
	return filepath.Join(assetDir, "editable.yaml")
}

func readOverrideFile(path string) (overrideFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return overrideFile{}, nil
		}
		return nil, fmt.Errorf("editable: read override: %w", err)
	}
	var f overrideFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("editable: parse override: %w", err)
	}
	if f == nil {
		f = overrideFile{}
	}
	return f, nil
}

func writeOverrideFileAtomic(path string, f overrideFile) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("editable: marshal override: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("editable: write temp override: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("editable: rename override: %w", err)
	}
	return nil
}

// flattenEditables walks groups into a flat key->Editable map keyed by
// the manifest's own field name; an entry nested in a group is keyed
// "group.field", and the group itself gets no entry of its own.
func flattenEditables(editables map[string]asset.Editable) map[string]asset.Editable {
	out := make(map[string]asset.Editable)
	for key, e := range editables {
		if len(e.Group) > 0 {
			for nk, ne := range e.Group {
				out[key+"."+nk] = ne
			}
			continue
		}
		out[key] = e
	}
	return out
}

func defaultsOf(editables map[string]asset.Editable) map[string]any {
	out := make(map[string]any, len(editables))
	for _, e := range editables {
		out[e.Variable] = e.Value
	}
	return out
}

func cloneValues(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func diffValues(before, after map[string]any) map[string]any {
	diff := make(map[string]any)
	for k, v := range after {
		if prior, ok := before[k]; !ok || prior != v {
			diff[k] = v
		}
	}
	return diff
}

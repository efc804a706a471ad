// Package asset resolves wallpaper IDs to on-disk bundles, preferring
// the backend's IPC catalog and falling back to a directory scan.
package asset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sentinel-wallpaper/engine/internal/logging"
)

var log = logging.L("asset")

// Editable describes one manifest-declared override variable.
type Editable struct {
	Variable string         `json:"variable"`
	Value    any            `json:"value"`
	Selector string         `json:"selector"` // color-picker | slider | font-picker | text
	Min      *float64       `json:"min,omitempty"`
	Max      *float64       `json:"max,omitempty"`
	Step     *float64       `json:"step,omitempty"`
	Name     string         `json:"name,omitempty"`
	Group    map[string]Editable `json:"-"`
}

// Manifest is the parsed contents of manifest.json.
type Manifest struct {
	Metadata  map[string]any      `json:"-"`
	Editables map[string]Editable `json:"editable"`
}

// rawManifest captures metadata as a flat map plus the editable object,
// since manifest.json has no fixed metadata schema beyond name/
// description/author/tags.
type rawManifest map[string]json.RawMessage

// Asset is a resolved wallpaper bundle.
type Asset struct {
	ID         string
	Dir        string
	EntryURL   string
	Metadata   map[string]any
	Editables  map[string]Editable
	Unavailable bool
}

// Catalog is the IPC strategy: ask the backend for its asset list,
// filtered to the wallpaper category.
type Catalog interface {
	ListAssets() ([]CatalogEntry, error)
}

// CatalogEntry is one row of registry.list_assets.
type CatalogEntry struct {
	ID           string `json:"id"`
	Category     string `json:"category"`
	HTMLURL      string `json:"html_url"`
	PreviewURL   string `json:"preview_url"`
	ManifestPath string `json:"manifest_path"`
}

// Registry resolves and caches wallpaper assets.
type Registry struct {
	catalog   Catalog
	assetsDir string

	mu     sync.RWMutex
	assets map[string]*Asset
}

func New(catalog Catalog, assetsDir string) *Registry {
	return &Registry{catalog: catalog, assetsDir: assetsDir, assets: make(map[string]*Asset)}
}

// Load resolves every known asset, trying the IPC catalog first and
// falling back to (and merging with) a directory scan. A manifest
// parse failure demotes that one asset to Unavailable without failing
// the whole load.
func (r *Registry) Load() error {
	resolved := make(map[string]*Asset)

	if r.catalog != nil {
		entries, err := r.catalog.ListAssets()
		if err != nil {
			log.Warn("asset catalog RPC failed, falling back to directory scan", "error", err)
		} else {
			for _, e := range entries {
				if e.Category != "wallpaper" {
					continue
				}
				a := r.resolveFromCatalogEntry(e)
				resolved[a.ID] = a
			}
		}
	}

	scanned, err := r.scanDirectory()
	if err != nil {
		log.Warn("asset directory scan failed", "error", err)
	}
	for id, a := range scanned {
		if _, exists := resolved[id]; !exists {
			resolved[id] = a
		}
	}

	r.mu.Lock()
	r.assets = resolved
	r.mu.Unlock()

	return nil
}

func (r *Registry) resolveFromCatalogEntry(e CatalogEntry) *Asset {
	dir := filepath.Dir(e.ManifestPath)
	m, err := parseManifest(e.ManifestPath)
	if err != nil {
		log.Warn("failed to parse manifest from catalog entry", "id", e.ID, "error", err)
		return &Asset{ID: e.ID, Dir: dir, Unavailable: true}
	}

	entryURL := e.HTMLURL
	if entryURL == "" {
		entryURL = "file://" + filepath.ToSlash(filepath.Join(dir, "index.html"))
	}

	return &Asset{
		ID:        e.ID,
		Dir:       dir,
		EntryURL:  entryURL,
		Metadata:  m.Metadata,
		Editables: m.Editables,
	}
}

// scanDirectory walks assetsDir for subdirectories containing
// manifest.json, used as a fallback (or sole source, if no IPC
// catalog is configured) for asset resolution.
func (r *Registry) scanDirectory() (map[string]*Asset, error) {
	out := make(map[string]*Asset)

	entries, err := os.ReadDir(r.assetsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("asset: read assets dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, id := range names {
		dir := filepath.Join(r.assetsDir, id)
		manifestPath := filepath.Join(dir, "manifest.json")

		if _, err := os.Stat(manifestPath); err != nil {
			continue
		}

		m, err := parseManifest(manifestPath)
		if err != nil {
			log.Warn("failed to parse manifest, marking asset unavailable", "id", id, "error", err)
			out[id] = &Asset{ID: id, Dir: dir, Unavailable: true}
			continue
		}

		entryURL := "file://" + filepath.ToSlash(filepath.Join(dir, "index.html"))
		if remote, ok := m.Metadata["entry_url"].(string); ok && remote != "" {
			entryURL = remote
		}

		out[id] = &Asset{
			ID:        id,
			Dir:       dir,
			EntryURL:  entryURL,
			Metadata:  m.Metadata,
			Editables: m.Editables,
		}
	}

	return out, nil
}

// parseManifest reads and decodes manifest.json, separating the
// free-form metadata keys from the declared "editable" object.
func parseManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("asset: read manifest: %w", err)
	}

	var raw rawManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("asset: decode manifest: %w", err)
	}

	m := &Manifest{Metadata: make(map[string]any), Editables: make(map[string]Editable)}

	if editableRaw, ok := raw["editable"]; ok {
		editables, err := parseEditables(editableRaw)
		if err != nil {
			return nil, fmt.Errorf("asset: decode editable schema: %w", err)
		}
		m.Editables = editables
		delete(raw, "editable")
	}

	for k, v := range raw {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			continue
		}
		m.Metadata[k] = val
	}

	return m, nil
}

// parseEditables decodes the manifest's "editable" object, recursing
// into nested groups (any editable-object value that itself contains
// further editables under named subkeys).
func parseEditables(raw json.RawMessage) (map[string]Editable, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	out := make(map[string]Editable, len(fields))
	for key, fieldRaw := range fields {
		var e Editable
		if err := json.Unmarshal(fieldRaw, &e); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}

		// A group is an editable entry with no "variable" of its own
		// but nested editable-shaped subkeys.
		if e.Variable == "" {
			var nested map[string]json.RawMessage
			if err := json.Unmarshal(fieldRaw, &nested); err == nil {
				group := make(map[string]Editable)
				for nk, nv := range nested {
					if nk == "name" || nk == "description" {
						continue
					}
					var ne Editable
					if err := json.Unmarshal(nv, &ne); err == nil && ne.Variable != "" {
						group[nk] = ne
					}
				}
				if len(group) > 0 {
					e.Group = group
				}
			}
		}

		out[key] = e
	}
	return out, nil
}

// Get returns a resolved asset by ID.
func (r *Registry) Get(id string) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[id]
	return a, ok
}

// All returns every resolved asset, available or not.
func (r *Registry) All() []*Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Asset, 0, len(r.assets))
	for _, a := range r.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

package hooks

import (
	"io"
	"sync"
)

// SizeAccessor computes an asset's size in bytes. Callers invoke it at most
// once per audit; implementations are expected to be idempotent anyway.
type SizeAccessor func() (int64, error)

// Opener returns the asset's content. It is optional.
type Opener func() (io.ReadCloser, error)

// Asset is one named output of a compilation.
type Asset struct {
	Name string
	Size SizeAccessor
	Open Opener
}

// AssetTable is the final output set of a compilation, kept in insertion
// order so that "enumeration order" is stable across observers.
type AssetTable struct {
	assets []Asset
	index  map[string]int
	mutex  sync.RWMutex
}

// NewAssetTable creates an empty table.
func NewAssetTable() *AssetTable {
	return &AssetTable{index: make(map[string]int)}
}

// Set adds an asset or replaces the one with the same name in place.
func (t *AssetTable) Set(asset Asset) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if i, ok := t.index[asset.Name]; ok {
		t.assets[i] = asset
		return
	}
	t.index[asset.Name] = len(t.assets)
	t.assets = append(t.assets, asset)
}

// Add is shorthand for Set with only a size accessor.
func (t *AssetTable) Add(name string, size SizeAccessor) {
	t.Set(Asset{Name: name, Size: size})
}

// Get returns the asset registered under name.
func (t *AssetTable) Get(name string) (Asset, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	i, ok := t.index[name]
	if !ok {
		return Asset{}, false
	}
	return t.assets[i], true
}

// Len returns the number of assets. A nil table is empty.
func (t *AssetTable) Len() int {
	if t == nil {
		return 0
	}
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return len(t.assets)
}

// All returns a copy of the assets in enumeration order.
func (t *AssetTable) All() []Asset {
	if t == nil {
		return nil
	}
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	out := make([]Asset, len(t.assets))
	copy(out, t.assets)
	return out
}

// Names returns asset names in enumeration order.
func (t *AssetTable) Names() []string {
	all := t.All()
	names := make([]string, len(all))
	for i, a := range all {
		names[i] = a.Name
	}
	return names
}

// StaticSize returns an accessor that always reports n.
func StaticSize(n int64) SizeAccessor {
	return func() (int64, error) { return n, nil }
}

package build

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/conneroisu/buildlens/internal/hooks"
	"github.com/spf13/afero"
)

// CollectAssets walks dir on fs and returns its regular files as an asset
// table in lexical path order. Sizes are read lazily through Stat when an
// observer asks for them. Asset names are slash-separated and relative to dir.
func CollectAssets(fs afero.Fs, dir string, ignore []string) (*hooks.AssetTable, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory not configured")
	}
	info, err := fs.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("output directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("output directory %s is not a directory", dir)
	}

	var files []string
	err = afero.Walk(fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if ignored(name, ignore) {
			return nil
		}
		files = append(files, name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collecting %s: %w", dir, err)
	}
	sort.Strings(files)

	table := hooks.NewAssetTable()
	for _, name := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		table.Set(hooks.Asset{
			Name: name,
			Size: statSize(fs, full),
			Open: func() (io.ReadCloser, error) { return fs.Open(full) },
		})
	}
	return table, nil
}

func statSize(fs afero.Fs, full string) hooks.SizeAccessor {
	return func() (int64, error) {
		info, err := fs.Stat(full)
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	}
}

func ignored(name string, patterns []string) bool {
	base := path.Base(name)
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

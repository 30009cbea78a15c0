package dataset

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// TableExt is the file extension of sample tables picked up by DiscoverTables.
const TableExt = ".gate"

// DiscoverTables returns the paths of all table files beneath root, sorted.
func DiscoverTables(root string) ([]string, error) {
	entries := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(d.Name()) == TableExt {
			entries = append(entries, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "discover tables")
	}
	sort.Strings(entries)
	return entries, nil
}

// LoadDir discovers and loads every table beneath root.
func LoadDir(root string) ([]Dataset, error) {
	paths, err := DiscoverTables(root)
	if err != nil {
		return nil, err
	}
	out := make([]Dataset, 0, len(paths))
	for _, path := range paths {
		ds, err := LoadTable(path)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, nil
}

// Package fsutil provides file system utility functions.
package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// HasExtension reports whether path ends with one of the extensions. The
// comparison ignores case.
func HasExtension(path string, extensions ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// FindFilesByExtension recursively searches the given root path for all files ending
// with one of the extensions. The result is sorted.
func FindFilesByExtension(rootPath string, extensions ...string) ([]string, error) {
	if len(extensions) == 0 {
		panic("extensions must not be empty")
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && HasExtension(d.Name(), extensions...) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(files)
	return files, nil
}

// ExpandPaths resolves every argument to a list of files. Directories are
// searched recursively for the extensions; plain files are kept as given, in
// argument order, whatever their extension. Duplicates are dropped.
func ExpandPaths(paths []string, extensions ...string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		clean := filepath.Clean(p)
		if !seen[clean] {
			seen[clean] = true
			out = append(out, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		found, err := FindFilesByExtension(p, extensions...)
		if err != nil {
			return nil, fmt.Errorf("failed to search %s: %w", p, err)
		}
		for _, f := range found {
			add(f)
		}
	}
	return out, nil
}

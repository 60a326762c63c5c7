package gitrepo

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// DefaultDiscoverDepth bounds how deep Discover descends below each root.
const DefaultDiscoverDepth = 3

var skippedDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
}

// IsRepository reports whether dir is the top of a work tree (.git may be a
// directory or, for worktrees and submodules, a file).
func IsRepository(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// Discover walks roots up to maxDepth levels and returns the work trees found,
// sorted and without duplicates. Unreadable directories are skipped.
func Discover(roots []string, maxDepth int) []string {
	if maxDepth <= 0 {
		maxDepth = DefaultDiscoverDepth
	}

	var found []string
	for _, root := range roots {
		root = filepath.Clean(root)
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			continue
		}
		baseDepth := strings.Count(root, string(filepath.Separator))

		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() {
				return nil
			}
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skippedDirs[name]) {
				return filepath.SkipDir
			}
			if IsRepository(path) {
				found = append(found, path)
				// nested repositories are usually submodules of this one
				if path != root {
					return filepath.SkipDir
				}
			}
			if strings.Count(path, string(filepath.Separator))-baseDepth >= maxDepth {
				return filepath.SkipDir
			}
			return nil
		})
	}

	found = lo.Uniq(found)
	sort.Strings(found)
	return found
}

package compress

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// imageExtensions are the asset types the engine considers.
var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
}

// Discover walks root and returns the slash-separated relative paths of
// candidate image files, sorted, with the .git directory and any path
// matching an ignore pattern excluded.
func Discover(root string, ignored []string) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(p))
		if _, ok := imageExtensions[ext]; !ok {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if ignoredPath(rel, ignored) {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover candidates under %s: %w", root, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// ignoredPath matches rel against the ignore patterns. A pattern matches the
// whole relative path, the file's base name, or, when it ends in "/*", any
// path under that directory.
func ignoredPath(rel string, patterns []string) bool {
	base := path.Base(rel)
	for _, pattern := range patterns {
		pattern = strings.TrimPrefix(filepath.ToSlash(pattern), "./")
		if pattern == "" {
			continue
		}
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
		if dir, found := strings.CutSuffix(pattern, "/*"); found {
			if rel == dir || strings.HasPrefix(rel, dir+"/") {
				return true
			}
		}
	}
	return false
}

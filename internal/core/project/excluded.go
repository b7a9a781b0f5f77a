package project

import (
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// =============================================================================
// Excluded Paths
// =============================================================================

// AlwaysExcluded lists transient and tooling directories that never belong in
// a deployment package.
var AlwaysExcluded = []string{
	".git",
	".idea",
	".vscode",
	"__pycache__",
	"venv",
	".venv",
	".yappa",
}

// NormalizeExcludedPaths merges user exclusions with the always-excluded set
// and the project's own files (requirements, project config, gateway config).
// Paths are cleaned, converted to forward slashes, deduplicated and sorted so
// the result is stable.
func NormalizeExcludedPaths(paths []string, projectFiles ...string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(paths)+len(AlwaysExcluded)+len(projectFiles))

	add := func(p string) {
		p = cleanRelative(p)
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		result = append(result, p)
	}

	for _, p := range AlwaysExcluded {
		add(p)
	}
	for _, p := range paths {
		add(p)
	}
	for _, p := range projectFiles {
		add(p)
	}

	sort.Strings(result)
	return result
}

// IsExcluded reports whether rel (relative to the project root) equals an
// excluded path or lies inside an excluded directory. Bare names without a
// slash, such as "__pycache__", also match at any depth.
func IsExcluded(rel string, excluded []string) bool {
	rel = cleanRelative(rel)
	if rel == "" {
		return false
	}
	segments := strings.Split(rel, "/")
	for _, ex := range excluded {
		if rel == ex || strings.HasPrefix(rel, ex+"/") {
			return true
		}
		if !strings.Contains(ex, "/") {
			for _, seg := range segments {
				if seg == ex && isTransientName(ex) {
					return true
				}
			}
		}
	}
	return false
}

// isTransientName limits any-depth matching to the always-excluded tooling
// directories so a user exclusion like "data" only matches at the root.
func isTransientName(name string) bool {
	for _, p := range AlwaysExcluded {
		if p == name {
			return true
		}
	}
	return false
}

func cleanRelative(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = path.Clean(filepath.ToSlash(p))
	p = strings.TrimPrefix(p, "./")
	p = strings.Trim(p, "/")
	if p == "." {
		return ""
	}
	return p
}

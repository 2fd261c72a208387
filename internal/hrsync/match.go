package hrsync

import (
	"path"
	"strings"
)

// FileMatcher selects remote files by basename glob patterns.
type FileMatcher struct {
	include []string
	exclude []string
}

// NewFileMatcher creates a matcher. Blank patterns and patterns starting with
// '#' are skipped. A file matches when it matches any include pattern and no
// exclude pattern.
func NewFileMatcher(include, exclude []string) *FileMatcher {
	return &FileMatcher{include: cleanPatterns(include), exclude: cleanPatterns(exclude)}
}

func cleanPatterns(raw []string) []string {
	var out []string
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Match reports whether name (a basename or slash-separated path) is selected.
func (m *FileMatcher) Match(name string) bool {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	return matchAny(m.include, base) && !matchAny(m.exclude, base)
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		ok, err := path.Match(p, name)
		if err != nil {
			// Bad pattern: skip rather than fail the listing.
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// SelectNewest returns the matching file with the latest modification time.
// Ties go to the lexicographically greatest name, so dated filenames win.
func (m *FileMatcher) SelectNewest(files []RemoteFile) (RemoteFile, bool) {
	var best RemoteFile
	found := false
	for _, f := range files {
		if !m.Match(f.Name) {
			continue
		}
		if !found || f.ModifiedAt.After(best.ModifiedAt) ||
			(f.ModifiedAt.Equal(best.ModifiedAt) && f.Name > best.Name) {
			best = f
			found = true
		}
	}
	return best, found
}

package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/contracts-analyzer/constants"
)

// extFilter is the set of extensions a scan picks up.
type extFilter map[string]struct{}

// newExtFilter builds the set from includeExts, or the supported contract formats when none are given.
func newExtFilter(includeExts []string) extFilter {
	f := extFilter{}
	for _, e := range includeExts {
		if e = constants.NormalizeExt(e); e != "" {
			f[e] = struct{}{}
		}
	}
	if len(f) == 0 {
		for e := range constants.AllowedExtensions {
			f[e] = struct{}{}
		}
	}
	return f
}

func (f extFilter) Match(path string) bool {
	_, ok := f[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}

// IsHidden reports whether the last element of path is a dotfile. "." and ".." are not.
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return base != "." && base != ".." && strings.HasPrefix(base, ".")
}

package utils

import (
	"regexp"
	"strings"
)

// GlobList is an ordered list of positive and negative globs compiled from a
// comma-separated filter string such as "*,-experimental-*". A leading '-'
// negates a glob. Contains reports the sign of the last glob matching an item.
type GlobList struct {
	globs []glob
}

type glob struct {
	positive bool
	pattern  *regexp.Regexp
}

// CompileGlobs compiles a comma-separated glob filter. Only '*' is special
// in a glob; every other character matches itself.
func CompileGlobs(commaSeparated string) GlobList {
	var gl GlobList
	for _, g := range strings.Split(commaSeparated, ",") {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		positive := true
		if strings.HasPrefix(g, "-") {
			positive = false
			g = g[1:]
		}
		pattern := "^" + strings.ReplaceAll(regexp.QuoteMeta(g), `\*`, ".*") + "$"
		gl.globs = append(gl.globs, glob{positive, regexp.MustCompile(pattern)})
	}
	return gl
}

// Contains reports whether item is selected by the glob list.
func (gl GlobList) Contains(item string) bool {
	selected := false
	for _, g := range gl.globs {
		if g.pattern.MatchString(item) {
			selected = g.positive
		}
	}
	return selected
}

// IsEmpty reports whether no globs were compiled.
func (gl GlobList) IsEmpty() bool {
	return len(gl.globs) == 0
}

package chunker

import "strings"

// boundaryPrefixes are line prefixes that commonly open a function, type or
// class definition. Splitting at one of these keeps a definition together
// with its body instead of cutting mid-function.
var boundaryPrefixes = []string{
	"func ",
	"function ",
	"def ",
	"class ",
	"type ",
	"struct ",
	"impl ",
	"fn ",
	"pub fn ",
}

// isBoundary reports whether line looks like the start of a structural unit.
func isBoundary(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	if trimmed == "" {
		return false
	}
	for _, prefix := range boundaryPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	// Indented definitions (methods, nested functions).
	return strings.HasPrefix(trimmed, "def ") || strings.HasPrefix(trimmed, "class ")
}

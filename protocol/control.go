package protocol

import (
	"strings"
)

// ParseControlLine splits a single protocol line into its operation and
// the remaining arguments. The operation is upper cased.
func ParseControlLine(line string) (op, args string) {
	line = strings.TrimRight(line, "\r\n")

	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return strings.ToUpper(strings.TrimSpace(line)), ""
	}

	return strings.ToUpper(line[:i]), strings.TrimSpace(line[i+1:])
}

// NormalizeErr strips the whitespace and quotes around a -ERR argument.
func NormalizeErr(arg string) string {
	s := strings.TrimSpace(arg)
	s = strings.TrimPrefix(s, "'")
	s = strings.TrimSuffix(s, "'")

	return strings.TrimSpace(s)
}

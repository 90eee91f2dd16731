package watcher

import "strings"

// HasChanged compares two statuses ignoring leading and trailing whitespace.
// Case and inner whitespace are significant.
func HasChanged(previous, current string) bool {
	return strings.TrimSpace(previous) != strings.TrimSpace(current)
}

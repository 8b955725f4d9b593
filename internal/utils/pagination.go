// Package utils holds small helpers shared across layers. Nothing in here
// knows about bios, polls, or forms.
package utils

import "strconv"

// AtoiDefault parses s as an int, falling back to def when s is empty or not
// a plain base-10 integer. Query parameters like ?page= and ?page_size= go
// through this so a malformed value degrades to the default instead of an
// error response.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

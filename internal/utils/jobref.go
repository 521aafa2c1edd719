package utils

import (
	"regexp"
	"strconv"
)

var jobRefDigits = regexp.MustCompile(`\d+`)

// NormalizeJobRef reduces frontend job references like "73.0" or "job_18"
// to their numeric id. Returns the input unchanged when no digits exist.
func NormalizeJobRef(ref string) string {
	if m := jobRefDigits.FindString(ref); m != "" {
		return m
	}
	return ref
}

// JobRefInt parses a normalized job reference as an int64 for the foreign
// key on persisted interviews; ok is false for non-numeric refs.
func JobRefInt(ref string) (int64, bool) {
	n, err := strconv.ParseInt(NormalizeJobRef(ref), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

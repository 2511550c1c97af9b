package listing

import "strings"

// Delimiter separates the gateway target prefix from the local tool name.
const Delimiter = "___"

// Name is a tool name split into its parts.
type Name struct {
	Qualified string
	Local     string
	Category  string
}

// LocalName returns the part of a qualified name after its final
// Delimiter-separated segment. Names without the delimiter are returned
// unchanged. Splitting is left to right and non-overlapping, so "a____b"
// yields "_b".
func LocalName(qualified string) string {
	parts := strings.Split(qualified, Delimiter)
	return parts[len(parts)-1]
}

// Category returns the local name up to its first underscore, or the whole
// local name if it has none.
func Category(local string) string {
	if i := strings.IndexByte(local, '_'); i >= 0 {
		return local[:i]
	}
	return local
}

// ParseName splits a qualified tool name.
func ParseName(qualified string) Name {
	local := LocalName(qualified)
	return Name{Qualified: qualified, Local: local, Category: Category(local)}
}

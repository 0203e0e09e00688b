// Package util provides common helpers for parsing host command arguments.
package util

import (
	"strconv"
	"strings"
)

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArg applies the quoting fixes host transports tend to introduce.
func CleanArg(s string) string {
	return FixEscapeQuotes(TrimQuotes(strings.TrimSpace(s)))
}

// ParseDims parses a "WIDTHxHEIGHT" argument. Returns zeros when the argument
// is empty or malformed; callers treat zero dimensions as unknown.
func ParseDims(s string) (width, height int) {
	s = CleanArg(s)
	parts := strings.SplitN(s, "x", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || w < 0 || h < 0 {
		return 0, 0
	}
	return w, h
}

// ParseOnOff interprets the loose boolean spellings hosts send for layer
// toggles. Unrecognized input reports ok=false.
func ParseOnOff(s string) (value, ok bool) {
	switch strings.ToLower(CleanArg(s)) {
	case "1", "true", "on", "show", "visible":
		return true, true
	case "0", "false", "off", "hide", "hidden":
		return false, true
	default:
		return false, false
	}
}

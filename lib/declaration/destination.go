// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

package declaration

import "strings"

// wildcardPattern matches every destination host.
const wildcardPattern = "*"

// DestinationSet is an ordered set of hostname glob patterns naming
// the destinations a secret's real value may be substituted into.
type DestinationSet []string

// Wildcard returns the allow-all destination set. A declaration with
// no @host restriction carries this set.
func Wildcard() DestinationSet {
	return DestinationSet{wildcardPattern}
}

// IsWildcard reports whether the set allows every destination.
func (s DestinationSet) IsWildcard() bool {
	for _, pattern := range s {
		if pattern == wildcardPattern {
			return true
		}
	}
	return false
}

// Allows reports whether host matches any pattern in the set.
func (s DestinationSet) Allows(host string) bool {
	for _, pattern := range s {
		if matchGlob(pattern, host) {
			return true
		}
	}
	return false
}

// String returns the comma-joined pattern list for logging.
func (s DestinationSet) String() string {
	return strings.Join(s, ",")
}

// parseDestinations parses the comma-separated host list that follows
// the @ in a declaration line. Empty segments are dropped; an empty
// list after trimming falls back to the wildcard default.
func parseDestinations(segment string) DestinationSet {
	var patterns DestinationSet
	for _, part := range strings.Split(segment, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		patterns = append(patterns, part)
	}
	if len(patterns) == 0 {
		return Wildcard()
	}
	return patterns
}

// matchGlob performs simple glob matching with * as a wildcard
// matching any run of characters.
func matchGlob(pattern, host string) bool {
	parts := strings.Split(pattern, "*")

	if len(parts) == 1 {
		// No wildcards, exact match.
		return pattern == host
	}

	if !strings.HasPrefix(host, parts[0]) {
		return false
	}
	host = host[len(parts[0]):]

	for i := 1; i < len(parts)-1; i++ {
		index := strings.Index(host, parts[i])
		if index == -1 {
			return false
		}
		host = host[index+len(parts[i]):]
	}

	return strings.HasSuffix(host, parts[len(parts)-1])
}

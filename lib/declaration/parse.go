// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

package declaration

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Kind classifies how a declaration obtains its value.
type Kind int

const (
	// KindPropagate copies the ambient value for the declared name.
	KindPropagate Kind = iota

	// KindStatic uses the literal right-hand side verbatim.
	KindStatic

	// KindReference expands $IDENT and ${IDENT} tokens in the
	// right-hand side against the ambient lookup.
	KindReference
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindPropagate:
		return "propagate"
	case KindStatic:
		return "static"
	case KindReference:
		return "reference"
	}
	return "unknown"
}

// Declaration is one parsed line of a declaration file. Declarations
// are ephemeral: created fresh on every parse, never mutated, and
// discarded after the resolution pass that consumes them.
type Declaration struct {
	// Name is the entry name, matching [A-Za-z_][A-Za-z0-9_]*.
	Name string

	// Kind selects the resolution strategy.
	Kind Kind

	// RawValue is the literal right-hand side for static and
	// reference declarations. Empty for propagate declarations.
	RawValue string

	// Destinations restricts which hosts the entry's real value may
	// be substituted into on egress. Defaults to the wildcard set
	// when the line carries no @host restriction.
	Destinations DestinationSet
}

// identifierPattern is the valid form of a declaration name and of
// the identifiers referenced by $IDENT / ${IDENT} tokens.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// referencePattern matches either token form. Used only to classify
// a right-hand side as static vs reference; expansion happens in
// Resolve.
var referencePattern = regexp.MustCompile(`\$(\{[A-Za-z_][A-Za-z0-9_]*\}|[A-Za-z_][A-Za-z0-9_]*)`)

// Parse turns declaration-file text into an ordered list of
// declarations. Lines are trimmed and processed independently; blank
// lines, comment lines, and malformed lines produce nothing. Order is
// preserved and duplicates are kept — deduplication is the consumer's
// concern.
func Parse(source string) []Declaration {
	declarations, _ := parse(source)
	return declarations
}

func parse(source string) ([]Declaration, int) {
	var declarations []Declaration
	dropped := 0

	scanner := bufio.NewScanner(strings.NewReader(source))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parsed, ok := parseLine(line)
		if !ok {
			dropped++
			continue
		}
		declarations = append(declarations, parsed)
	}
	return declarations, dropped
}

// ParseFile reads and parses the declaration file at path. The file is
// read fresh on every call so edits become visible on the next parse
// without any invalidation signal. A missing or unreadable file yields
// nil: the directory degrades to empty rather than failing the caller.
// A leading ~ in path is expanded to the home directory.
func ParseFile(path string) []Declaration {
	data, err := os.ReadFile(ExpandHome(path))
	if err != nil {
		return nil
	}
	return Parse(string(data))
}

// DroppedLines reports how many lines of the declaration file at path
// are currently malformed. Malformed lines never surface to the guest;
// this count is the host-side way to notice a typo. Blank and comment
// lines are not counted, and a missing or unreadable file reports
// zero.
func DroppedLines(path string) int {
	data, err := os.ReadFile(ExpandHome(path))
	if err != nil {
		return 0
	}
	_, dropped := parse(string(data))
	return dropped
}

// ExpandHome expands a leading "~" or "~/" in path to the current
// user's home directory. Paths without the shorthand, and paths whose
// home directory cannot be determined, are returned unchanged.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// parseLine parses one trimmed, non-comment line. Returns false for
// malformed lines, which the caller drops without reporting.
func parseLine(line string) (Declaration, bool) {
	left := line
	rawValue := ""
	hasValue := false
	if index := strings.IndexByte(line, '='); index >= 0 {
		left = line[:index]
		rawValue = line[index+1:]
		hasValue = true
	}

	left = strings.TrimSpace(left)
	destinations := Wildcard()
	if index := strings.IndexByte(left, '@'); index >= 0 {
		destinations = parseDestinations(left[index+1:])
		left = strings.TrimSpace(left[:index])
	}

	if !identifierPattern.MatchString(left) {
		return Declaration{}, false
	}

	parsed := Declaration{Name: left, Destinations: destinations}
	switch {
	case !hasValue:
		parsed.Kind = KindPropagate
	case referencePattern.MatchString(rawValue):
		parsed.Kind = KindReference
		parsed.RawValue = rawValue
	default:
		parsed.Kind = KindStatic
		parsed.RawValue = rawValue
	}
	return parsed, true
}

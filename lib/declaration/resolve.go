// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

package declaration

import "regexp"

// bracedReference matches ${IDENT}. Expanded before bare references so
// that ${FOO} is never re-read as $ followed by a literal {FOO}.
var bracedReference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// bareReference matches $IDENT.
var bareReference = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// Resolve computes the current value of a declaration against the
// ambient lookup. The second return is false when the declaration is
// not currently resolvable: a propagate whose name is absent from the
// ambient lookup, or a reference where any referenced identifier is
// absent. Partial substitution is never surfaced — one missing
// identifier poisons the whole value.
//
// Resolve is a pure function of its two inputs. Callers re-invoke it
// per access; memoizing would break live-update semantics.
func Resolve(d Declaration, lookup func(string) (string, bool)) (string, bool) {
	switch d.Kind {
	case KindPropagate:
		return lookup(d.Name)
	case KindStatic:
		return d.RawValue, true
	case KindReference:
		return expand(d.RawValue, lookup)
	}
	return "", false
}

// expand substitutes all ${IDENT} occurrences, then all remaining
// bare $IDENT occurrences, left to right within each pass. Each
// occurrence performs one lookup.
func expand(raw string, lookup func(string) (string, bool)) (string, bool) {
	resolved := true

	substitute := func(match string, name string) string {
		value, ok := lookup(name)
		if !ok {
			resolved = false
			return match
		}
		return value
	}

	expanded := bracedReference.ReplaceAllStringFunc(raw, func(match string) string {
		return substitute(match, match[2:len(match)-1])
	})
	expanded = bareReference.ReplaceAllStringFunc(expanded, func(match string) string {
		return substitute(match, match[1:])
	})

	if !resolved {
		return "", false
	}
	return expanded, true
}

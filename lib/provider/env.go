// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"fmt"
	"os"
	"sync"

	"github.com/envhatch/envhatch/lib/declaration"
)

// Lookup is the ambient name→value source consulted by propagate and
// reference resolution. The second return is false when the name has
// no ambient value.
type Lookup func(name string) (string, bool)

// EnvironmentOptions configures an Environment provider.
type EnvironmentOptions struct {
	// DeclarationPath is the declaration file. A leading ~ is
	// expanded. The file is read fresh on every access; it may be
	// absent, in which case the directory is empty.
	DeclarationPath string

	// Lookup is the ambient source. Nil means os.LookupEnv.
	Lookup Lookup
}

// Environment surfaces ordinary variables from a declaration file.
// Every access re-parses the file and re-resolves against the ambient
// lookup; the only mutable state is the exclusion set installed by
// SetSecretNames.
type Environment struct {
	declarationPath string
	lookup          Lookup

	mu       sync.Mutex
	excluded map[string]struct{}
}

// NewEnvironment creates an Environment provider.
func NewEnvironment(options EnvironmentOptions) (*Environment, error) {
	if options.DeclarationPath == "" {
		return nil, fmt.Errorf("declaration path is required")
	}
	lookup := options.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Environment{
		declarationPath: declaration.ExpandHome(options.DeclarationPath),
		lookup:          lookup,
	}, nil
}

// SetSecretNames installs the exclusion set negotiated at VM attach
// time and returns the declared names that are currently resolvable
// and collide with it, so the caller can warn about overlap between
// the two declaration sources. Unresolvable declarations are not
// reported: a name with no current value is indistinguishable from an
// undeclared one.
func (p *Environment) SetSecretNames(names []string) []string {
	excluded := make(map[string]struct{}, len(names))
	for _, name := range names {
		excluded[name] = struct{}{}
	}

	p.mu.Lock()
	p.excluded = excluded
	p.mu.Unlock()

	order, values := p.resolveAll()
	var conflicts []string
	for _, name := range order {
		if _, collides := excluded[name]; !collides {
			continue
		}
		if _, resolvable := values[name]; resolvable {
			conflicts = append(conflicts, name)
		}
	}
	return conflicts
}

// Names returns the currently resolvable, non-excluded names in
// declaration-file order, each name once.
func (p *Environment) Names() []string {
	order, _ := p.resolveAll()

	p.mu.Lock()
	excluded := p.excluded
	p.mu.Unlock()

	var names []string
	for _, name := range order {
		if _, hidden := excluded[name]; hidden {
			continue
		}
		names = append(names, name)
	}
	return names
}

// Content returns the current resolved value for name. Excluded,
// undeclared, and unresolvable names are all absent — the three cases
// are deliberately indistinguishable.
func (p *Environment) Content(name string) ([]byte, bool) {
	p.mu.Lock()
	_, hidden := p.excluded[name]
	p.mu.Unlock()
	if hidden {
		return nil, false
	}

	_, values := p.resolveAll()
	value, ok := values[name]
	if !ok {
		return nil, false
	}
	return []byte(value), true
}

// resolveAll performs one fresh parse-and-resolve pass. It returns
// the distinct resolvable names in first-occurrence file order and
// their values. When a name is declared more than once, the last
// resolvable declaration wins.
func (p *Environment) resolveAll() ([]string, map[string]string) {
	declarations := declaration.ParseFile(p.declarationPath)

	var order []string
	values := make(map[string]string, len(declarations))
	for _, d := range declarations {
		value, ok := declaration.Resolve(d, p.lookup)
		if !ok {
			continue
		}
		if _, seen := values[d.Name]; !seen {
			order = append(order, d.Name)
		}
		values[d.Name] = value
	}
	return order, values
}

// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/envhatch/envhatch/lib/declaration"
)

// SecretInfo names one declared secret and its destination allow-list.
// No value is attached: ListSecrets never resolves.
type SecretInfo struct {
	Name         string
	Destinations declaration.DestinationSet
}

// SecretsOptions configures a Secrets provider.
type SecretsOptions struct {
	// DeclarationPath is the declaration file. A leading ~ is
	// expanded. The file is read fresh on every access.
	DeclarationPath string

	// Lookup is the ambient source. Nil means os.LookupEnv.
	Lookup Lookup
}

// Secrets surfaces placeholder tokens for declared secrets. The guest
// only ever sees tokens; real values cross out of this provider solely
// through GetSecretValue, on the egress path.
type Secrets struct {
	declarationPath string
	lookup          Lookup

	mu     sync.Mutex
	tokens map[string]string // name -> token
	names  map[string]string // token -> name
}

// NewSecrets creates a Secrets provider. The guest-visible directory
// stays empty until SetPlaceholders installs the session's tokens.
func NewSecrets(options SecretsOptions) (*Secrets, error) {
	if options.DeclarationPath == "" {
		return nil, fmt.Errorf("declaration path is required")
	}
	lookup := options.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Secrets{
		declarationPath: declaration.ExpandHome(options.DeclarationPath),
		lookup:          lookup,
	}, nil
}

// ListSecrets parses the current declaration file and returns every
// declared secret with its destination allow-list, without resolving
// any value. Names declared more than once appear once, in
// first-occurrence order, with the last declaration's destinations.
// Safe to call repeatedly; the orchestrator uses it to allocate
// placeholder tokens and to detect name conflicts.
func (p *Secrets) ListSecrets() []SecretInfo {
	declarations := declaration.ParseFile(p.declarationPath)

	var order []string
	destinations := make(map[string]declaration.DestinationSet, len(declarations))
	for _, d := range declarations {
		if _, seen := destinations[d.Name]; !seen {
			order = append(order, d.Name)
		}
		destinations[d.Name] = d.Destinations
	}

	infos := make([]SecretInfo, 0, len(order))
	for _, name := range order {
		infos = append(infos, SecretInfo{Name: name, Destinations: destinations[name]})
	}
	return infos
}

// SetPlaceholders replaces the session's name↔token association
// wholesale. Tokens never change once assigned for a session; live
// updates to the declaration file affect real values, not tokens.
func (p *Secrets) SetPlaceholders(assignments map[string]string) {
	tokens := make(map[string]string, len(assignments))
	names := make(map[string]string, len(assignments))
	for name, token := range assignments {
		tokens[name] = token
		names[token] = name
	}

	p.mu.Lock()
	p.tokens = tokens
	p.names = names
	p.mu.Unlock()
}

// GetSecretValue resolves the current real value for name by
// re-parsing the declaration file. Unknown names, an unreadable file,
// and unresolvable declarations all yield the empty string. This is
// the only method through which a real value leaves the provider; it
// serves the egress substitution path and must never feed anything
// the guest can read.
func (p *Secrets) GetSecretValue(name string) string {
	d, ok := p.declared(name)
	if !ok {
		return ""
	}
	value, ok := declaration.Resolve(d, p.lookup)
	if !ok {
		return ""
	}
	return value
}

// DestinationsFor returns the destination allow-list currently
// declared for name.
func (p *Secrets) DestinationsFor(name string) (declaration.DestinationSet, bool) {
	d, ok := p.declared(name)
	if !ok {
		return nil, false
	}
	return d.Destinations, true
}

// ConflictingNames returns the declared names that intersect the
// given exclusion set. Used by the orchestrator to warn about overlap
// with a sibling provider without resolving any value.
func (p *Secrets) ConflictingNames(excluded []string) []string {
	excludedSet := make(map[string]struct{}, len(excluded))
	for _, name := range excluded {
		excludedSet[name] = struct{}{}
	}

	var conflicts []string
	for _, info := range p.ListSecrets() {
		if _, collides := excludedSet[info.Name]; collides {
			conflicts = append(conflicts, info.Name)
		}
	}
	return conflicts
}

// Names returns the names currently present in the placeholder map.
// A guest-visible name is the placeholder, decoupled from whether the
// underlying value still resolves. Names that are still declared come
// first in declaration-file order; tokens assigned to names no longer
// in the file follow, sorted, so listing order stays stable for a
// given source state.
func (p *Secrets) Names() []string {
	p.mu.Lock()
	assigned := make(map[string]struct{}, len(p.tokens))
	for name := range p.tokens {
		assigned[name] = struct{}{}
	}
	p.mu.Unlock()

	if len(assigned) == 0 {
		return nil
	}

	var names []string
	for _, info := range p.ListSecrets() {
		if _, ok := assigned[info.Name]; ok {
			names = append(names, info.Name)
			delete(assigned, info.Name)
		}
	}

	var leftover []string
	for name := range assigned {
		leftover = append(leftover, name)
	}
	sort.Strings(leftover)
	return append(names, leftover...)
}

// Content returns the placeholder token for name — never the real
// value. Absent until SetPlaceholders has assigned a token for name.
func (p *Secrets) Content(name string) ([]byte, bool) {
	p.mu.Lock()
	token, ok := p.tokens[name]
	p.mu.Unlock()
	if !ok {
		return nil, false
	}
	return []byte(token), true
}

// Tokens returns every placeholder token in the current session, in
// no particular order. The egress substituter scans outbound requests
// for these.
func (p *Secrets) Tokens() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	tokens := make([]string, 0, len(p.names))
	for token := range p.names {
		tokens = append(tokens, token)
	}
	return tokens
}

// TokenName maps a placeholder token back to its secret name.
func (p *Secrets) TokenName(token string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	name, ok := p.names[token]
	return name, ok
}

// declared finds the effective declaration for name in the current
// file state: the last declaration with that name, matching the
// last-wins rule used everywhere else.
func (p *Secrets) declared(name string) (declaration.Declaration, bool) {
	declarations := declaration.ParseFile(p.declarationPath)
	for i := len(declarations) - 1; i >= 0; i-- {
		if declarations[i].Name == name {
			return declarations[i], true
		}
	}
	return declaration.Declaration{}, false
}

// Package ids implements the identifier registry: allocation of globally
// unique values for named references, scoped per case, with reverse lookup
// from a generated value back to the (case, named reference) that owns it.
//
// The registry is an explicit object created once per compilation, never a
// process-wide singleton, so independent compilations cannot interfere.
package ids

import (
	"fmt"

	"github.com/seedspec/seedspec/internal/spec"
)

// Scope returns the registry scope key for a case. Every named reference is
// meaningful only within one of these scopes.
func Scope(scenarioName, caseName string) string {
	return scenarioName + ": " + caseName
}

// Ref locates the owner of a generated value.
type Ref struct {
	Scope    string
	NamedRef string
}

// named holds the generated attribute values for one (scope, namedRef) pair.
type named map[string]string // attribute -> value

type identifier struct {
	name       string
	attributes []string
	generators map[string]Generator
	scopes     map[string]map[string]named     // scope -> namedRef -> values
	byValue    map[string]map[string]Ref       // attribute -> value -> owner
}

// Registry generates and caches unique identifier values. It is mutated only
// by Resolve during the generation phase; Freeze makes it read-only before
// the matching phase begins.
type Registry struct {
	identifiers map[string]*identifier
	frozen      bool
}

// NewRegistry builds a registry from the declared identifiers.
func NewRegistry(declared []spec.Identifier) (*Registry, error) {
	r := &Registry{identifiers: make(map[string]*identifier, len(declared))}
	for _, decl := range declared {
		id := &identifier{
			name:       decl.Name,
			generators: map[string]Generator{},
			scopes:     map[string]map[string]named{},
			byValue:    map[string]map[string]Ref{},
		}
		for _, attr := range decl.Attributes {
			gen, err := newGenerator(attr.Generator, attr.Prefix)
			if err != nil {
				return nil, fmt.Errorf("identifier %q, attribute %q: %w", decl.Name, attr.Field, err)
			}
			id.attributes = append(id.attributes, attr.Field)
			id.generators[attr.Field] = gen
			id.byValue[attr.Field] = map[string]Ref{}
		}
		r.identifiers[decl.Name] = id
	}
	return r, nil
}

// Has reports whether the registry knows the named identifier.
func (r *Registry) Has(identifierName string) bool {
	_, ok := r.identifiers[identifierName]
	return ok
}

// HasAttribute reports whether the named identifier declares the attribute.
func (r *Registry) HasAttribute(identifierName, attribute string) bool {
	id, ok := r.identifiers[identifierName]
	if !ok {
		return false
	}
	_, ok = id.generators[attribute]
	return ok
}

// Resolve returns the generated value for (scope, namedRef) under the given
// identifier attribute. The first call for a (scope, namedRef) pair
// allocates values for every attribute of the identifier at once, so the
// pair resolves consistently wherever it recurs. Distinct scopes always
// receive distinct values, even for textually identical named references.
func (r *Registry) Resolve(scope, identifierName, attribute, namedRef string) (string, error) {
	if r.frozen {
		if value, ok := r.Lookup(scope, identifierName, attribute, namedRef); ok {
			return value, nil
		}
		return "", fmt.Errorf("registry is frozen: named reference %q for identifier %q was never generated in case %q",
			namedRef, identifierName, scope)
	}

	id, ok := r.identifiers[identifierName]
	if !ok {
		return "", fmt.Errorf("unknown identifier: %q", identifierName)
	}
	if _, ok := id.generators[attribute]; !ok {
		return "", fmt.Errorf("identifier %q has no attribute %q", identifierName, attribute)
	}

	values, err := id.resolveNamed(scope, namedRef)
	if err != nil {
		return "", err
	}
	return values[attribute], nil
}

func (id *identifier) resolveNamed(scope, namedRef string) (named, error) {
	byRef, ok := id.scopes[scope]
	if !ok {
		byRef = map[string]named{}
		id.scopes[scope] = byRef
	}
	if values, ok := byRef[namedRef]; ok {
		return values, nil
	}

	values := make(named, len(id.attributes))
	owner := Ref{Scope: scope, NamedRef: namedRef}
	for _, attr := range id.attributes {
		value := id.generators[attr].Next()
		if prior, clash := id.byValue[attr][value]; clash {
			// Generators are monotonic, so this is unreachable unless a
			// generator implementation is broken.
			return nil, fmt.Errorf("internal invariant violated: identifier %q attribute %q value %q already owned by %v",
				id.name, attr, value, prior)
		}
		values[attr] = value
		id.byValue[attr][value] = owner
	}
	byRef[namedRef] = values
	return values, nil
}

// Lookup returns the cached value for (scope, namedRef) without allocating.
func (r *Registry) Lookup(scope, identifierName, attribute, namedRef string) (string, bool) {
	id, ok := r.identifiers[identifierName]
	if !ok {
		return "", false
	}
	byRef, ok := id.scopes[scope]
	if !ok {
		return "", false
	}
	values, ok := byRef[namedRef]
	if !ok {
		return "", false
	}
	value, ok := values[attribute]
	return value, ok
}

// Find returns the (scope, namedRef) that owns a raw generated value for the
// given identifier attribute. Used to attribute actual target rows back to
// their originating case.
func (r *Registry) Find(identifierName, attribute, rawValue string) (Ref, bool) {
	id, ok := r.identifiers[identifierName]
	if !ok {
		return Ref{}, false
	}
	byValue, ok := id.byValue[attribute]
	if !ok {
		return Ref{}, false
	}
	ref, ok := byValue[rawValue]
	return ref, ok
}

// Freeze makes the registry read-only. Generation must complete before any
// actual data is compared, so the matching phase sees exactly the values
// that were generated.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Frozen reports whether the registry has been frozen.
func (r *Registry) Frozen() bool {
	return r.frozen
}

// internal/rules/registry.go
package rules

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/kaannakiin/decisionkeeper/internal/types"
)

/*
 * Domain registry.
 *
 * An explicit value constructed at start-up and passed to whatever needs to
 * validate or evaluate trees; there is no package-level registry and no
 * registration through init(). Registration is expected to finish before
 * evaluation traffic starts, after which lookups are read-only. The RWMutex
 * keeps late registrations (tests, tooling) race-free.
 */

// ResultSchema validates the domain-specific payload of a result node.
// Implementations should be comparable values, see ConditionSchema.
type ResultSchema interface {
	CheckResult(payload json.RawMessage) error
}

// Options tunes a domain registration.
type Options struct {
	// MinResultNodes is the number of result nodes that must be reachable
	// from start. Zero means types.DefaultMinResultNodes.
	MinResultNodes int

	// Results validates result payloads. Nil accepts any payload.
	Results ResultSchema
}

// Domain is a registered descriptor: fields, condition schema and options.
type Domain struct {
	Name    string
	Fields  FieldRegistry
	Schema  ConditionSchema
	Options Options
}

// MinResultNodes returns the effective minimum reachable result count.
func (d *Domain) MinResultNodes() int {
	if d.Options.MinResultNodes <= 0 {
		return types.DefaultMinResultNodes
	}
	return d.Options.MinResultNodes
}

// Registry maps domain names to descriptors.
type Registry struct {
	mu      sync.RWMutex
	domains map[string]*Domain
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{domains: make(map[string]*Domain)}
}

// Register stores a domain descriptor under name. Re-registering an identical
// descriptor is a no-op; a conflicting one returns *DuplicateDomainError.
func (r *Registry) Register(name string, fields FieldRegistry, schema ConditionSchema, opts Options) (*Domain, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty domain name", types.ErrInvalidFieldConfig)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: domain %q has no fields", types.ErrInvalidFieldConfig, name)
	}
	if opts.MinResultNodes < 0 {
		return nil, fmt.Errorf("%w: domain %q has negative min result nodes", types.ErrInvalidFieldConfig, name)
	}
	if err := fields.Validate(); err != nil {
		return nil, fmt.Errorf("domain %q: %w", name, err)
	}

	candidate := &Domain{
		Name:    name,
		Fields:  cloneFields(fields),
		Schema:  schema,
		Options: opts,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.domains[name]; ok {
		if reflect.DeepEqual(existing, candidate) {
			return existing, nil
		}
		return nil, &DuplicateDomainError{Name: name}
	}
	r.domains[name] = candidate
	return candidate, nil
}

// Domain returns the descriptor registered under name.
func (r *Registry) Domain(name string) (*Domain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.domains[name]
	if !ok {
		return nil, &UnknownDomainError{Name: name}
	}
	return d, nil
}

// Names returns registered domain names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.domains))
	for name := range r.domains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// cloneFields copies the registry so later mutation by the caller cannot
// change a registered domain.
func cloneFields(fields FieldRegistry) FieldRegistry {
	out := make(FieldRegistry, len(fields))
	for name, f := range fields {
		c := f
		c.Operators = append([]Operator(nil), f.Operators...)
		c.Options = append([]string(nil), f.Options...)
		c.DependsOn = append([]string(nil), f.DependsOn...)
		if f.Min != nil {
			v := *f.Min
			c.Min = &v
		}
		if f.Max != nil {
			v := *f.Max
			c.Max = &v
		}
		out[name] = c
	}
	return out
}

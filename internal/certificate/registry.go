package certificate

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Generator renders one certificate from one record. Implementations only
// supply the per-record step; batch iteration, output naming and archiving
// are owned by the Orchestrator regardless of template type.
type Generator interface {
	RenderCertificate(ctx context.Context, tpl *ResolvedTemplate, rec Record, destPath string, opts Options) error
}

// Registry maps a template type to the generator responsible for it. It is a
// plain value injected at the call site rather than a package-level map, so
// the set of supported types is explicit wherever a batch runs.
type Registry struct {
	generators map[TemplateType]Generator
}

func NewRegistry() *Registry {
	return &Registry{generators: make(map[TemplateType]Generator)}
}

// Register binds a generator to a template type. Registering the same type
// again overwrites the previous binding.
func (r *Registry) Register(t TemplateType, g Generator) {
	r.generators[t] = g
}

// Resolve returns the generator for a template type. An unregistered type is
// a configuration error: always fatal, never retried.
func (r *Registry) Resolve(t TemplateType) (Generator, error) {
	g, ok := r.generators[t]
	if !ok {
		return nil, fmt.Errorf("unsupported template type %q (registered: %s)", t, strings.Join(r.Types(), ", "))
	}
	return g, nil
}

// Types lists the registered template types in stable order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.generators))
	for t := range r.generators {
		types = append(types, string(t))
	}
	sort.Strings(types)
	return types
}

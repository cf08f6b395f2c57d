// Package tooling holds the tool definitions offered to the model: an ordered
// registry, the execute_query definition, and JSON Schema helpers used to
// describe and check tool arguments.
package tooling

import (
	"peek/internal/domain"
)

// Registry is an ordered list of tool definitions. It does not enforce unique
// names: registering the same name twice keeps both entries, in order.
type Registry struct {
	defs []domain.ToolDefinition
}

// NewRegistry returns a registry seeded with defs.
func NewRegistry(defs ...domain.ToolDefinition) *Registry {
	r := &Registry{}
	r.Set(defs)
	return r
}

// Set replaces every definition.
func (r *Registry) Set(defs []domain.ToolDefinition) {
	r.defs = append([]domain.ToolDefinition(nil), defs...)
}

// Add appends one definition.
func (r *Registry) Add(def domain.ToolDefinition) {
	r.defs = append(r.defs, def)
}

// Definitions returns the definitions in registration order. The slice is a
// copy; callers may keep it across later Add calls.
func (r *Registry) Definitions() []domain.ToolDefinition {
	out := make([]domain.ToolDefinition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Len reports how many definitions are registered, duplicates included.
func (r *Registry) Len() int { return len(r.defs) }

// Find returns the first definition named name.
func (r *Registry) Find(name string) (domain.ToolDefinition, bool) {
	for _, d := range r.defs {
		if d.Name == name {
			return d, true
		}
	}
	return domain.ToolDefinition{}, false
}

// CreateTool builds a definition. parameters is an arbitrary JSON Schema
// document and is not validated here.
func CreateTool(name, description string, parameters map[string]any) domain.ToolDefinition {
	return domain.ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  parameters,
	}
}

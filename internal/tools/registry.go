package tools

import "sort"

// Registry holds the registered tools.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// DefaultRegistry wires up the built-in tool set. sqlTool may be nil when
// the products database is unavailable; the agent then works web-only.
func DefaultRegistry(sqlTool *SQLQueryTool, searchAPIKey string, searchDomains []string) *Registry {
	r := NewRegistry()
	if sqlTool != nil {
		r.Register(sqlTool)
	}
	r.Register(NewWebSearchTool(searchAPIKey, searchDomains))
	r.Register(NewCheckURLsTool())
	return r
}

// All returns the registered tools sorted by name.
func (r *Registry) All() []Tool {
	result := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

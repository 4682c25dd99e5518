package catalog

import (
	"sort"
	"sync"

	"github.com/cohesivestack/valgo"
)

/*
Capability describes one thing an agent can do.  Capabilities are registered
at runtime and projected into the skills section of the agent card; the
schemas, when present, drive the derived input and output modes.
*/
type Capability struct {
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	Examples     []string       `json:"examples,omitempty"`
	InputSchema  map[string]any `json:"inputSchema,omitempty"`
	OutputSchema map[string]any `json:"outputSchema,omitempty"`
	Streaming    bool           `json:"streaming,omitempty"`
	Security     []string       `json:"security,omitempty"`
}

func (capability *Capability) Validate() error {
	val := valgo.Is(
		valgo.String(capability.Name, "name").Not().Blank(),
	)

	if !val.Valid() {
		return val.Error()
	}

	return nil
}

// Registry holds the live capability set.  Registration replaces any previous
// capability of the same name.
type Registry struct {
	capabilities *sync.Map
}

func NewRegistry() *Registry {
	return &Registry{
		capabilities: new(sync.Map),
	}
}

func (registry *Registry) Register(capability Capability) error {
	if err := capability.Validate(); err != nil {
		return err
	}

	registry.capabilities.Store(capability.Name, capability)
	return nil
}

func (registry *Registry) Get(name string) (Capability, bool) {
	value, ok := registry.capabilities.Load(name)

	if !ok {
		return Capability{}, false
	}

	return value.(Capability), true
}

func (registry *Registry) Remove(name string) {
	registry.capabilities.Delete(name)
}

// List returns every registered capability sorted by name, so the card built
// from the registry is stable across calls.
func (registry *Registry) List() []Capability {
	capabilities := make([]Capability, 0)

	registry.capabilities.Range(func(key, value any) bool {
		capabilities = append(capabilities, value.(Capability))
		return true
	})

	sort.Slice(capabilities, func(i, j int) bool {
		return capabilities[i].Name < capabilities[j].Name
	})

	return capabilities
}

// Package tools defines the capability registry. Tool definitions are
// resolved once at startup into a registry that the conversation loop
// queries by name; no tool is looked up through globals.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/mkrall/clerk/internal/llm"
	"github.com/mkrall/clerk/pkg/models"
)

// Handler executes one tool invocation. Arguments arrive as the raw JSON
// object from the model; the handler is responsible for decoding them.
type Handler func(ctx context.Context, args json.RawMessage) models.ToolResult

// Definition describes one callable capability.
type Definition struct {
	// Name is the identifier the model calls the tool by.
	Name string
	// Description tells the model what the tool does and when to use it.
	Description string
	// Parameters is the JSON schema for the tool's arguments.
	Parameters map[string]interface{}
	// Mutating marks tools that change external state. Mutating tools
	// pass through the approval gate when one is configured.
	Mutating bool
	// Handler performs the call.
	Handler Handler
}

// Registry holds the resolved tool set for a run.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a tool definition. Names must be unique.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tools: definition has empty name")
	}
	if def.Handler == nil {
		return fmt.Errorf("tools: %s has nil handler", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("tools: %s already registered", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the tool schemas in the shape the model API expects,
// ordered by name so request payloads are deterministic.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]llm.ToolDefinition, 0, len(r.defs))
	for _, name := range r.sortedNamesLocked() {
		def := r.defs[name]
		out = append(out, llm.ToolDefinition{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Parameters,
		})
	}
	return out
}

func (r *Registry) sortedNamesLocked() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute dispatches a tool call by name. Unknown tools and handler
// results both come back as a ToolResult rather than an error so the
// outcome can be fed to the model as a tool message.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) models.ToolResult {
	def, ok := r.Lookup(name)
	if !ok {
		return models.ToolResult{
			Success: false,
			Error:   fmt.Sprintf("unknown tool: %s", name),
		}
	}
	return def.Handler(ctx, args)
}

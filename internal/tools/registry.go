package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool parameter limits to prevent resource exhaustion.
const (
	// MaxToolNameLength is the maximum length of a tool name.
	MaxToolNameLength = 256

	// MaxToolParamsSize is the maximum size of tool parameters JSON (10MB).
	MaxToolParamsSize = 10 << 20
)

type registeredTool struct {
	tool   Tool
	schema *jsonschema.Schema
}

// Registry manages available tools with thread-safe registration and lookup.
// Registering a name twice replaces the earlier tool; last registration wins.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registeredTool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registeredTool)}
}

// Register adds a tool, compiling its parameter schema for argument
// validation. A schema that fails to compile disables validation for that
// tool rather than rejecting it.
func (r *Registry) Register(tool Tool) {
	entry := registeredTool{tool: tool}
	if raw := tool.Schema(); len(raw) > 0 {
		compiler := jsonschema.NewCompiler()
		url := "registry://" + tool.Name() + ".json"
		if err := compiler.AddResource(url, strings.NewReader(string(raw))); err == nil {
			if schema, err := compiler.Compile(url); err == nil {
				entry.schema = schema
			}
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = entry
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.tools[name]
	return entry.tool, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptions returns name/description pairs for the prompt's available
// tools section, sorted by name.
func (r *Registry) Descriptions() [][2]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([][2]string, 0, len(r.tools))
	for name, entry := range r.tools {
		out = append(out, [2]string{name, entry.tool.Description()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// SchemaJSON renders all tool schemas as a JSON array for prompt injection.
func (r *Registry) SchemaJSON() string {
	type toolSchema struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	}
	r.mu.RLock()
	schemas := make([]toolSchema, 0, len(r.tools))
	for name, entry := range r.tools {
		params := entry.tool.Schema()
		if len(params) == 0 {
			params = emptySchema
		}
		schemas = append(schemas, toolSchema{
			Name:        name,
			Description: entry.tool.Description(),
			Parameters:  params,
		})
	}
	r.mu.RUnlock()
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	data, err := json.MarshalIndent(schemas, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

// Execute dispatches a tool call after validating the name, parameter size,
// and arguments against the tool's schema.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	if len(name) > MaxToolNameLength {
		return "", fmt.Errorf("tool name exceeds maximum length of %d characters", MaxToolNameLength)
	}
	if len(args) > MaxToolParamsSize {
		return "", fmt.Errorf("tool parameters exceed maximum size of %d bytes", MaxToolParamsSize)
	}
	r.mu.RLock()
	entry, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", &UnknownToolError{Name: name}
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if entry.schema != nil {
		var decoded any
		if err := json.Unmarshal(args, &decoded); err != nil {
			return "", fmt.Errorf("invalid tool arguments: %w", err)
		}
		if err := entry.schema.Validate(decoded); err != nil {
			return "", fmt.Errorf("arguments do not match schema for %s: %w", name, err)
		}
	}
	return entry.tool.Execute(ctx, args)
}

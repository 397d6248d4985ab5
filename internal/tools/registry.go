package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kungukcm/Hospital-Booking-System/pkg/logging"
)

// ParamType is the declared JSON type of a tool argument.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
)

func (t ParamType) valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean:
		return true
	}
	return false
}

// Param declares one tool argument.
type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	Default     any       `json:"default,omitempty"`
}

// Handler runs a tool with coerced arguments. The returned payload must be JSON
// serializable.
type Handler func(ctx context.Context, args Args) (any, error)

// Tool is a named operation the model may call.
type Tool struct {
	Name        string
	Description string
	Params      []Param
	Handler     Handler
}

// Definition is the model-facing description of a tool.
type Definition struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
}

// Schema renders the parameters as a JSON schema object.
func (d Definition) Schema() map[string]any {
	props := make(map[string]any, len(d.Params))
	required := make([]string, 0, len(d.Params))
	for _, p := range d.Params {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Registry maps tool names to tools. It is immutable after construction and
// safe for concurrent use.
type Registry struct {
	tools  map[string]Tool
	names  []string
	logger *logging.Logger
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

func WithRegistryLogger(logger *logging.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry validates every tool up front so a bad declaration fails at
// startup rather than on first call.
func NewRegistry(tools []Tool, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		tools:  make(map[string]Tool, len(tools)),
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, t := range tools {
		if err := validateTool(t); err != nil {
			return nil, err
		}
		if _, dup := r.tools[t.Name]; dup {
			return nil, fmt.Errorf("tools: duplicate tool %q", t.Name)
		}
		r.tools[t.Name] = t
		r.names = append(r.names, t.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

func validateTool(t Tool) error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("tools: tool name is required")
	}
	if t.Handler == nil {
		return fmt.Errorf("tools: tool %q has no handler", t.Name)
	}
	seen := make(map[string]struct{}, len(t.Params))
	for _, p := range t.Params {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("tools: tool %q has an unnamed parameter", t.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("tools: tool %q declares parameter %q twice", t.Name, p.Name)
		}
		seen[p.Name] = struct{}{}
		if !p.Type.valid() {
			return fmt.Errorf("tools: tool %q parameter %q has unknown type %q", t.Name, p.Name, p.Type)
		}
		if p.Default != nil {
			if _, err := coerce(p, p.Default); err != nil {
				return fmt.Errorf("tools: tool %q parameter %q default: %w", t.Name, p.Name, err)
			}
		}
	}
	return nil
}

// Require fails when any of names is not registered.
func (r *Registry) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, ok := r.tools[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("tools: missing required tools: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Definitions returns tool descriptions sorted by name.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.names))
	for _, name := range r.names {
		t := r.tools[name]
		defs = append(defs, Definition{Name: t.Name, Description: t.Description, Params: t.Params})
	}
	return defs
}

// Execute runs a single request. It never panics and never returns an error:
// every failure is reported in the Result.
func (r *Registry) Execute(ctx context.Context, req Request) (res Result) {
	res = Result{ID: req.ID, Name: req.Name}

	t, ok := r.tools[req.Name]
	if !ok {
		return res.fail(CodeUnknownTool, fmt.Sprintf("unknown tool %q", req.Name))
	}
	args, err := coerceArgs(t.Params, req.Arguments)
	if err != nil {
		return res.fail(CodeInvalidArguments, err.Error())
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool panicked", "tool", req.Name, "call_id", req.ID, "panic", fmt.Sprint(p))
			res = Result{ID: req.ID, Name: req.Name}.fail(CodeInternal, "tool failed unexpectedly")
		}
	}()

	payload, err := t.Handler(ctx, args)
	if err != nil {
		code := classify(err)
		msg := err.Error()
		if code == CodeInternal {
			r.logger.Error("tool failed", "tool", req.Name, "call_id", req.ID, "error", err)
			msg = "tool failed unexpectedly"
		}
		return res.fail(code, msg)
	}
	res.Status = StatusOK
	res.Payload = payload
	return res
}

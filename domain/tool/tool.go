package tool

import (
	"context"
	"strings"
)

// InputKind tags how a tool consumes the model-provided action input.
type InputKind int

const (
	// InputNone marks a tool that takes no input. Whatever the model
	// supplied is discarded before the handler runs.
	InputNone InputKind = iota

	// InputText marks a tool that receives the action input verbatim.
	InputText
)

// String returns the string representation of the input kind.
func (k InputKind) String() string {
	switch k {
	case InputNone:
		return "none"
	case InputText:
		return "text"
	default:
		return "unknown"
	}
}

// Tool represents a registered capability the agent can invoke.
type Tool interface {
	// Name returns the stable string identifier for the tool.
	Name() string

	// Description returns a human-readable description shown to the model.
	Description() string

	// InputKind reports whether the tool accepts free text or nothing.
	InputKind() InputKind

	// Annotations returns the tool's behavioral annotations.
	Annotations() Annotations

	// Execute runs the tool with the given input.
	Execute(ctx context.Context, input string) (Result, error)
}

// Handler is the function signature for tool execution.
type Handler func(ctx context.Context, input string) (Result, error)

// Definition is a concrete implementation of Tool.
type Definition struct {
	name        string
	description string
	kind        InputKind
	annotations Annotations
	handler     Handler
}

// Name returns the tool name.
func (d *Definition) Name() string {
	return d.name
}

// Description returns the tool description.
func (d *Definition) Description() string {
	return d.description
}

// InputKind returns the input variant.
func (d *Definition) InputKind() InputKind {
	return d.kind
}

// Annotations returns the tool annotations.
func (d *Definition) Annotations() Annotations {
	return d.annotations
}

// Execute runs the tool handler. No-input tools never see the input.
func (d *Definition) Execute(ctx context.Context, input string) (Result, error) {
	if d.handler == nil {
		return Result{}, ErrNoHandler
	}
	if d.kind == InputNone {
		input = ""
	}
	return d.handler(ctx, input)
}

// Builder provides a fluent API for constructing tools.
type Builder struct {
	def *Definition
	err error
}

// NewBuilder creates a new tool builder with the given name.
// Tools accept free text unless WithoutInput is called.
func NewBuilder(name string) *Builder {
	b := &Builder{
		def: &Definition{
			name:        name,
			kind:        InputText,
			annotations: DefaultAnnotations(),
		},
	}
	if strings.ContainsAny(name, " \t\r\n") {
		b.err = ErrInvalidName
	}
	return b
}

// WithDescription sets the tool description.
func (b *Builder) WithDescription(desc string) *Builder {
	if b.err != nil {
		return b
	}
	b.def.description = desc
	return b
}

// WithoutInput marks the tool as taking no input.
func (b *Builder) WithoutInput() *Builder {
	if b.err != nil {
		return b
	}
	b.def.kind = InputNone
	return b
}

// WithTextInput marks the tool as taking free-text input.
func (b *Builder) WithTextInput() *Builder {
	if b.err != nil {
		return b
	}
	b.def.kind = InputText
	return b
}

// WithAnnotations sets the tool annotations.
func (b *Builder) WithAnnotations(annotations Annotations) *Builder {
	if b.err != nil {
		return b
	}
	b.def.annotations = annotations
	return b
}

// ReadOnly marks the tool as read-only.
func (b *Builder) ReadOnly() *Builder {
	if b.err != nil {
		return b
	}
	b.def.annotations.ReadOnly = true
	b.def.annotations.RiskLevel = RiskNone
	return b
}

// Idempotent marks the tool as idempotent.
func (b *Builder) Idempotent() *Builder {
	if b.err != nil {
		return b
	}
	b.def.annotations.Idempotent = true
	return b
}

// Sandboxed marks the tool as executing inside an isolated sandbox.
func (b *Builder) Sandboxed() *Builder {
	if b.err != nil {
		return b
	}
	b.def.annotations.Sandboxed = true
	if b.def.annotations.RiskLevel < RiskMedium {
		b.def.annotations.RiskLevel = RiskMedium
	}
	return b
}

// WithRiskLevel sets the risk level.
func (b *Builder) WithRiskLevel(level RiskLevel) *Builder {
	if b.err != nil {
		return b
	}
	b.def.annotations.RiskLevel = level
	return b
}

// WithTimeout sets the per-invocation timeout in seconds.
func (b *Builder) WithTimeout(seconds int) *Builder {
	if b.err != nil {
		return b
	}
	b.def.annotations.Timeout = seconds
	return b
}

// WithHandler sets the tool handler function.
func (b *Builder) WithHandler(handler Handler) *Builder {
	if b.err != nil {
		return b
	}
	b.def.handler = handler
	return b
}

// WithTags adds tags to the tool.
func (b *Builder) WithTags(tags ...string) *Builder {
	if b.err != nil {
		return b
	}
	b.def.annotations.Tags = append(b.def.annotations.Tags, tags...)
	return b
}

// Build constructs the tool definition.
func (b *Builder) Build() (Tool, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.def.name == "" {
		return nil, ErrEmptyName
	}
	if b.def.handler == nil {
		return nil, ErrNoHandler
	}
	return b.def, nil
}

// MustBuild constructs the tool definition or panics on error.
func (b *Builder) MustBuild() Tool {
	tool, err := b.Build()
	if err != nil {
		panic(err)
	}
	return tool
}

package tool

import "context"

// Registry defines the interface for tool registration and lookup.
// This is a repository interface - implementations are in infrastructure.
type Registry interface {
	// Register adds a tool to the registry.
	Register(tool Tool) error

	// Resolve retrieves a tool by exact, case-sensitive name.
	// It returns ErrToolNotFound when the name is unknown.
	Resolve(name string) (Tool, error)

	// List returns all registered tools in registration order.
	List() []Tool

	// Names returns all registered tool names in registration order.
	Names() []string

	// Has checks if a tool is registered.
	Has(name string) bool
}

// Invoker runs a resolved tool. Implementations never return an error:
// every failure is folded into the returned Observation.
type Invoker interface {
	Invoke(ctx context.Context, t Tool, input string) Observation
}

package job

import "context"

// Handler is a typed job body. It receives the per-execution Manager
// for progress reporting and metadata writes, and the decoded params.
// It returns a structured Result, or an error for truly unexpected
// conditions (which the execution wrapper converts into a retry or a
// terminal failure).
type Handler[T any] func(ctx context.Context, m *Manager, params T) (*Result, error)

// Definition is a typed job definition with a handler function.
// T is the params type (must be JSON-serializable).
type Definition[T any] struct {
	// Function is the dispatch name, unique within a Registry.
	Function string

	// Handler is the job body.
	Handler Handler[T]

	// Opts configures retries, priority, and timeout.
	Opts Options
}

// NewDefinition creates a typed job definition.
func NewDefinition[T any](function string, handler Handler[T], opts ...Option) *Definition[T] {
	def := &Definition[T]{
		Function: function,
		Handler:  handler,
		Opts:     DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	if def.Opts.Type == "" {
		def.Opts.Type = function
	}
	return def
}

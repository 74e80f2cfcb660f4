package job

import "time"

// Options configures per-definition behavior.
type Options struct {
	// Type is the logical operation name recorded on jobs created from
	// the definition. Defaults to the dispatch function name.
	Type string

	// MaxRetries bounds re-execution attempts on unhandled errors.
	MaxRetries int

	// Priority determines enqueue ordering where the transport
	// supports it. Higher values are delivered first.
	Priority int

	// Timeout is the maximum duration the job body may run. Zero means
	// no deadline beyond the caller's context.
	Timeout time.Duration

	// maxRetriesSet records whether MaxRetries was chosen explicitly,
	// so composition layers can substitute a configured default for
	// definitions that left it alone.
	maxRetriesSet bool
}

// MaxRetriesSet reports whether MaxRetries was set through
// WithMaxRetries rather than inherited from DefaultOptions.
func (o Options) MaxRetriesSet() bool { return o.maxRetriesSet }

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries: 3,
	}
}

// Option is a functional option for configuring a job definition.
type Option func(*Options)

// WithType sets the logical operation name.
func WithType(t string) Option {
	return func(o *Options) {
		o.Type = t
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) Option {
	return func(o *Options) {
		o.MaxRetries = n
		o.maxRetriesSet = true
	}
}

// WithPriority sets the job priority. Higher values are delivered first.
func WithPriority(p int) Option {
	return func(o *Options) {
		o.Priority = p
	}
}

// WithTimeout sets the maximum execution duration for the job body.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

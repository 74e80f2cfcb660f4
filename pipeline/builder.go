package pipeline

import (
	"fmt"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/job"
)

// JobSpec declares one node of a pipeline graph.
type JobSpec struct {
	// Key names the node within the spec. Unique per pipeline spec.
	Key string

	// Function is the dispatch name resolved against the job registry.
	Function string

	// Type is the logical operation name. Defaults to Function.
	Type string

	// Params is the static portion of the job's params. Run-scoped
	// params supplied at build time are merged on top.
	Params map[string]any

	// DependsOn lists keys of prerequisites that must SUCCEED before
	// this job runs.
	DependsOn []string

	// AfterCompletion lists keys of prerequisites that must merely
	// finish (SUCCEEDED or FAILED) before this job runs.
	AfterCompletion []string
}

// Spec declares a whole pipeline graph.
type Spec struct {
	Name        string
	Description string
	Jobs        []JobSpec
}

// Graph is a built, validated pipeline ready to persist: the pipeline
// record, its member jobs keyed and ordered as declared, and the
// dependency edges between them.
type Graph struct {
	Pipeline *Pipeline
	Jobs     []*job.Job
	Edges    []*DependencyEdge

	byKey map[string]*job.Job
}

// Job returns the member job declared under key.
func (g *Graph) Job(key string) (*job.Job, bool) {
	j, ok := g.byKey[key]
	return j, ok
}

// Roots returns the member jobs with no prerequisites. These are the
// jobs to enqueue to start the pipeline.
func (g *Graph) Roots() []*job.Job {
	hasPrereq := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		hasPrereq[e.JobID.String()] = true
	}
	var roots []*job.Job
	for _, j := range g.Jobs {
		if !hasPrereq[j.ID.String()] {
			roots = append(roots, j)
		}
	}
	return roots
}

// BuildOption configures a Build call.
type BuildOption func(*buildConfig)

type buildConfig struct {
	correlationID string
	runParams     map[string]map[string]any
	lookupOpts    func(function string) (job.Options, bool)
}

// WithCorrelationID threads a trace token through the pipeline and
// every member job.
func WithCorrelationID(correlationID string) BuildOption {
	return func(c *buildConfig) {
		c.correlationID = correlationID
	}
}

// WithJobParams merges run-scoped params into the job declared under
// key, on top of its static spec params.
func WithJobParams(key string, params map[string]any) BuildOption {
	return func(c *buildConfig) {
		if c.runParams == nil {
			c.runParams = make(map[string]map[string]any)
		}
		c.runParams[key] = params
	}
}

// WithOptionsLookup resolves per-function job options (retry budget,
// priority, timeout) at build time, typically from a job.Registry.
func WithOptionsLookup(lookup func(function string) (job.Options, bool)) BuildOption {
	return func(c *buildConfig) {
		c.lookupOpts = lookup
	}
}

// Build validates a spec and constructs the pipeline graph. It rejects
// duplicate keys, edges to unknown keys, and cycles; cycle presence is
// an error state resolved at construction time, never at runtime.
func Build(spec Spec, opts ...BuildOption) (*Graph, error) {
	cfg := buildConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(spec.Jobs) == 0 {
		return nil, fmt.Errorf("pipeline: build %q: no jobs declared", spec.Name)
	}

	byKey := make(map[string]JobSpec, len(spec.Jobs))
	for _, js := range spec.Jobs {
		if js.Key == "" {
			return nil, fmt.Errorf("pipeline: build %q: job with empty key", spec.Name)
		}
		if js.Function == "" {
			return nil, fmt.Errorf("pipeline: build %q: job %q has no function", spec.Name, js.Key)
		}
		if _, dup := byKey[js.Key]; dup {
			return nil, fmt.Errorf("pipeline: build %q: duplicate job key %q", spec.Name, js.Key)
		}
		byKey[js.Key] = js
	}

	for _, js := range spec.Jobs {
		for _, prereqKey := range append(append([]string{}, js.DependsOn...), js.AfterCompletion...) {
			if _, ok := byKey[prereqKey]; !ok {
				return nil, fmt.Errorf("pipeline: build %q: job %q depends on unknown key %q: %w",
					spec.Name, js.Key, prereqKey, cascade.ErrUnknownJobKey)
			}
		}
	}

	if err := checkAcyclic(spec); err != nil {
		return nil, err
	}

	p := New(spec.Name, spec.Description)
	p.CorrelationID = cfg.correlationID

	g := &Graph{
		Pipeline: p,
		byKey:    make(map[string]*job.Job, len(spec.Jobs)),
	}

	for _, js := range spec.Jobs {
		jobOpts := job.DefaultOptions()
		if cfg.lookupOpts != nil {
			if o, ok := cfg.lookupOpts(js.Function); ok {
				jobOpts = o
			}
		}

		params := make(map[string]any, len(js.Params))
		for k, v := range js.Params {
			params[k] = v
		}
		for k, v := range cfg.runParams[js.Key] {
			params[k] = v
		}

		jobType := js.Type
		if jobType == "" {
			jobType = jobOpts.Type
		}
		if jobType == "" {
			jobType = js.Function
		}

		j := job.New(jobType, js.Function, params, jobOpts)
		j.PipelineID = p.ID
		j.CorrelationID = cfg.correlationID
		g.Jobs = append(g.Jobs, j)
		g.byKey[js.Key] = j
	}

	for _, js := range spec.Jobs {
		dependent := g.byKey[js.Key]
		for _, prereqKey := range js.DependsOn {
			g.Edges = append(g.Edges, NewEdge(dependent.ID, g.byKey[prereqKey].ID, SuccessRequired))
		}
		for _, prereqKey := range js.AfterCompletion {
			g.Edges = append(g.Edges, NewEdge(dependent.ID, g.byKey[prereqKey].ID, CompletionRequired))
		}
	}

	return g, nil
}

// checkAcyclic runs Kahn's algorithm over the declared keys. If the
// peel leaves any node standing, the leftovers form a cycle.
func checkAcyclic(spec Spec) error {
	indegree := make(map[string]int, len(spec.Jobs))
	dependents := make(map[string][]string, len(spec.Jobs))

	for _, js := range spec.Jobs {
		indegree[js.Key] += 0
		for _, prereq := range append(append([]string{}, js.DependsOn...), js.AfterCompletion...) {
			indegree[js.Key]++
			dependents[prereq] = append(dependents[prereq], js.Key)
		}
	}

	var ready []string
	for key, deg := range indegree {
		if deg == 0 {
			ready = append(ready, key)
		}
	}

	seen := 0
	for len(ready) > 0 {
		key := ready[0]
		ready = ready[1:]
		seen++
		for _, dep := range dependents[key] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if seen != len(spec.Jobs) {
		return fmt.Errorf("pipeline: build %q: %w", spec.Name, cascade.ErrCyclicGraph)
	}
	return nil
}

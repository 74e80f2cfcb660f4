package pipeline

import (
	"errors"
	"testing"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/job"
)

func ingestSpec() Spec {
	return Spec{
		Name:        "score-set-ingest",
		Description: "validate then materialize a score set",
		Jobs: []JobSpec{
			{Key: "validate", Function: "validate_upload", Params: map[string]any{"strict": true}},
			{Key: "variants", Function: "create_variants", DependsOn: []string{"validate"}},
			{Key: "mapping", Function: "map_variants", DependsOn: []string{"variants"}},
			{Key: "report", Function: "publish_report", AfterCompletion: []string{"mapping"}},
		},
	}
}

func TestBuildGraph(t *testing.T) {
	t.Parallel()

	g, err := Build(ingestSpec(), WithCorrelationID("corr-1"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if g.Pipeline.Name != "score-set-ingest" || g.Pipeline.Status != StatusPending {
		t.Fatalf("pipeline = %+v", g.Pipeline)
	}
	if g.Pipeline.CorrelationID != "corr-1" {
		t.Fatalf("CorrelationID = %q", g.Pipeline.CorrelationID)
	}
	if len(g.Jobs) != 4 || len(g.Edges) != 3 {
		t.Fatalf("jobs=%d edges=%d", len(g.Jobs), len(g.Edges))
	}

	for _, j := range g.Jobs {
		if j.PipelineID.String() != g.Pipeline.ID.String() {
			t.Fatalf("job %s not bound to pipeline", j.JobFunction)
		}
		if j.CorrelationID != "corr-1" {
			t.Fatalf("job %s missing correlation id", j.JobFunction)
		}
		if j.Status != job.StatusPending {
			t.Fatalf("job %s created as %s", j.JobFunction, j.Status)
		}
	}

	validate, ok := g.Job("validate")
	if !ok {
		t.Fatal("validate not in graph")
	}
	if validate.Params["strict"] != true {
		t.Fatalf("static params lost: %v", validate.Params)
	}

	roots := g.Roots()
	if len(roots) != 1 || roots[0].JobFunction != "validate_upload" {
		t.Fatalf("roots = %+v", roots)
	}

	// The report edge must be completion-typed, the rest success-typed.
	report, _ := g.Job("report")
	for _, e := range g.Edges {
		want := SuccessRequired
		if e.JobID == report.ID {
			want = CompletionRequired
		}
		if e.Type != want {
			t.Fatalf("edge into %s has type %s, want %s", e.JobID, e.Type, want)
		}
	}
}

func TestBuildMergesRunParams(t *testing.T) {
	t.Parallel()

	g, err := Build(ingestSpec(),
		WithJobParams("validate", map[string]any{"strict": false, "urn": "urn:mavedb:00000001-a-1"}))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	validate, _ := g.Job("validate")
	if validate.Params["strict"] != false {
		t.Fatal("run params did not override static params")
	}
	if validate.Params["urn"] != "urn:mavedb:00000001-a-1" {
		t.Fatalf("run params missing: %v", validate.Params)
	}
}

func TestBuildOptionsLookup(t *testing.T) {
	t.Parallel()

	lookup := func(function string) (job.Options, bool) {
		if function == "create_variants" {
			return job.Options{Type: "ingest", MaxRetries: 7}, true
		}
		return job.Options{}, false
	}

	g, err := Build(ingestSpec(), WithOptionsLookup(lookup))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	variants, _ := g.Job("variants")
	if variants.MaxRetries != 7 || variants.JobType != "ingest" {
		t.Fatalf("lookup options not applied: %+v", variants)
	}

	// Unregistered functions fall back to defaults, and type to function.
	validate, _ := g.Job("validate")
	if validate.MaxRetries != job.DefaultOptions().MaxRetries {
		t.Fatalf("MaxRetries = %d", validate.MaxRetries)
	}
	if validate.JobType != "validate_upload" {
		t.Fatalf("JobType = %q", validate.JobType)
	}
}

func TestBuildRejectsInvalidSpecs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		spec    Spec
		wantErr error
	}{
		{
			name: "empty",
			spec: Spec{Name: "empty"},
		},
		{
			name: "blank key",
			spec: Spec{Name: "blank", Jobs: []JobSpec{{Function: "f"}}},
		},
		{
			name: "missing function",
			spec: Spec{Name: "nofn", Jobs: []JobSpec{{Key: "a"}}},
		},
		{
			name: "duplicate key",
			spec: Spec{Name: "dup", Jobs: []JobSpec{
				{Key: "a", Function: "f"},
				{Key: "a", Function: "g"},
			}},
		},
		{
			name: "unknown prerequisite",
			spec: Spec{Name: "dangling", Jobs: []JobSpec{
				{Key: "a", Function: "f", DependsOn: []string{"ghost"}},
			}},
			wantErr: cascade.ErrUnknownJobKey,
		},
		{
			name: "unknown completion prerequisite",
			spec: Spec{Name: "dangling2", Jobs: []JobSpec{
				{Key: "a", Function: "f", AfterCompletion: []string{"ghost"}},
			}},
			wantErr: cascade.ErrUnknownJobKey,
		},
		{
			name: "two-node cycle",
			spec: Spec{Name: "cycle", Jobs: []JobSpec{
				{Key: "a", Function: "f", DependsOn: []string{"b"}},
				{Key: "b", Function: "g", DependsOn: []string{"a"}},
			}},
			wantErr: cascade.ErrCyclicGraph,
		},
		{
			name: "self cycle",
			spec: Spec{Name: "self", Jobs: []JobSpec{
				{Key: "a", Function: "f", DependsOn: []string{"a"}},
			}},
			wantErr: cascade.ErrCyclicGraph,
		},
		{
			name: "cycle through completion edge",
			spec: Spec{Name: "mixed-cycle", Jobs: []JobSpec{
				{Key: "a", Function: "f", DependsOn: []string{"c"}},
				{Key: "b", Function: "g", DependsOn: []string{"a"}},
				{Key: "c", Function: "h", AfterCompletion: []string{"b"}},
			}},
			wantErr: cascade.ErrCyclicGraph,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Build(tt.spec)
			if err == nil {
				t.Fatal("Build accepted an invalid spec")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildDiamondRoots(t *testing.T) {
	t.Parallel()

	g, err := Build(Spec{
		Name: "diamond",
		Jobs: []JobSpec{
			{Key: "a", Function: "fa"},
			{Key: "b", Function: "fb", DependsOn: []string{"a"}},
			{Key: "c", Function: "fc", DependsOn: []string{"a"}},
			{Key: "d", Function: "fd", DependsOn: []string{"b", "c"}},
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	roots := g.Roots()
	if len(roots) != 1 || roots[0].JobFunction != "fa" {
		t.Fatalf("roots = %+v", roots)
	}
	if len(g.Edges) != 4 {
		t.Fatalf("edges = %d, want 4", len(g.Edges))
	}
}

package job_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"

	"github.com/xraph/cascade/job"
)

type ingestParams struct {
	ScoreSet string `json:"score_set"`
	Rows     int    `json:"rows"`
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := job.NewRegistry()

	var got ingestParams
	def := job.NewDefinition("create_variants", func(_ context.Context, _ *job.Manager, p ingestParams) (*job.Result, error) {
		got = p
		return job.OK(nil), nil
	})

	job.Register(r, def)

	h, ok := r.Get("create_variants")
	if !ok {
		t.Fatal("expected handler to be registered")
	}

	params, _ := json.Marshal(ingestParams{ScoreSet: "urn:cascade:pl:abc", Rows: 42})
	res, err := h(context.Background(), nil, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("result = %+v, want ok", res)
	}
	if got.ScoreSet != "urn:cascade:pl:abc" {
		t.Errorf("ScoreSet = %q, want %q", got.ScoreSet, "urn:cascade:pl:abc")
	}
	if got.Rows != 42 {
		t.Errorf("Rows = %d, want 42", got.Rows)
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := job.NewRegistry()
	_, ok := r.Get("nonexistent")
	if ok {
		t.Fatal("expected no handler for unregistered function")
	}
}

func TestRegistry_Options(t *testing.T) {
	r := job.NewRegistry()
	job.Register(r, job.NewDefinition("mapped", func(_ context.Context, _ *job.Manager, _ struct{}) (*job.Result, error) {
		return job.OK(nil), nil
	}, job.WithMaxRetries(5), job.WithType("mapping")))

	opts, ok := r.Options("mapped")
	if !ok {
		t.Fatal("expected options for registered function")
	}
	if opts.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", opts.MaxRetries)
	}
	if opts.Type != "mapping" {
		t.Errorf("Type = %q, want %q", opts.Type, "mapping")
	}

	// Type defaults to the function name when not set.
	job.Register(r, job.NewDefinition("plain", func(_ context.Context, _ *job.Manager, _ struct{}) (*job.Result, error) {
		return job.OK(nil), nil
	}))
	opts, _ = r.Options("plain")
	if opts.Type != "plain" {
		t.Errorf("default Type = %q, want %q", opts.Type, "plain")
	}
}

func TestRegistry_Functions(t *testing.T) {
	r := job.NewRegistry()

	for _, name := range []string{"fn-a", "fn-b", "fn-c"} {
		job.Register(r, job.NewDefinition(name, func(_ context.Context, _ *job.Manager, _ struct{}) (*job.Result, error) {
			return job.OK(nil), nil
		}))
	}

	names := r.Functions()
	sort.Strings(names)
	expected := []string{"fn-a", "fn-b", "fn-c"}
	if len(names) != len(expected) {
		t.Fatalf("expected %d names, got %d", len(expected), len(names))
	}
	for i, want := range expected {
		if names[i] != want {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want)
		}
	}
}

func TestRegistry_InvalidJSON(t *testing.T) {
	r := job.NewRegistry()
	job.Register(r, job.NewDefinition("typed", func(_ context.Context, _ *job.Manager, _ ingestParams) (*job.Result, error) {
		t.Fatal("handler should not be called with invalid JSON")
		return nil, nil
	}))

	h, _ := r.Get("typed")
	_, err := h(context.Background(), nil, []byte(`{invalid json`))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestRegistry_EmptyParams(t *testing.T) {
	r := job.NewRegistry()
	called := false
	job.Register(r, job.NewDefinition("no-params", func(_ context.Context, _ *job.Manager, _ struct{}) (*job.Result, error) {
		called = true
		return job.OK(nil), nil
	}))

	h, _ := r.Get("no-params")
	if _, err := h(context.Background(), nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called with empty params")
	}
}

func TestRegistry_HandlerError(t *testing.T) {
	r := job.NewRegistry()
	want := errors.New("upstream unavailable")
	job.Register(r, job.NewDefinition("failing", func(_ context.Context, _ *job.Manager, _ struct{}) (*job.Result, error) {
		return nil, want
	}))

	h, _ := r.Get("failing")
	_, err := h(context.Background(), nil, nil)
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestRegistry_OverwriteHandler(t *testing.T) {
	r := job.NewRegistry()

	job.Register(r, job.NewDefinition("overwrite", func(_ context.Context, _ *job.Manager, _ struct{}) (*job.Result, error) {
		return nil, errors.New("old")
	}))
	job.Register(r, job.NewDefinition("overwrite", func(_ context.Context, _ *job.Manager, _ struct{}) (*job.Result, error) {
		return nil, errors.New("new")
	}))

	h, _ := r.Get("overwrite")
	_, err := h(context.Background(), nil, nil)
	if err == nil || err.Error() != "new" {
		t.Fatalf("expected 'new' error, got %v", err)
	}
}

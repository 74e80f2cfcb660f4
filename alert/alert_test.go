package alert_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xraph/cascade/alert"
	"github.com/xraph/cascade/pipeline"
)

type captureSink struct {
	alerts []alert.Alert
	err    error
}

func (c *captureSink) Send(_ context.Context, a alert.Alert) error {
	c.alerts = append(c.alerts, a)
	return c.err
}

func TestSlackSinkPostsWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := alert.NewSlackSink(srv.URL)
	err := s.Send(context.Background(), alert.Alert{
		Summary:       "job \"map_variants\" failed after 3 retries",
		JobURN:        "urn:cascade:job:abc",
		CorrelationID: "corr-1",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	text, _ := got["text"].(string)
	for _, want := range []string{"map_variants", "urn:cascade:job:abc", "corr-1"} {
		if !strings.Contains(text, want) {
			t.Fatalf("text %q missing %q", text, want)
		}
	}
}

func TestSlackSinkNon200(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := alert.NewSlackSink(srv.URL)
	if err := s.Send(context.Background(), alert.Alert{Summary: "x"}); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestFanoutTriesEverySink(t *testing.T) {
	t.Parallel()

	dead := &captureSink{err: errors.New("channel down")}
	live := &captureSink{}
	f := alert.Fanout{dead, live}

	err := f.Send(context.Background(), alert.Alert{Summary: "s"})
	if err == nil {
		t.Fatal("expected error from dead sink")
	}
	if len(live.alerts) != 1 {
		t.Fatalf("live sink received %d alerts, want 1", len(live.alerts))
	}
}

func TestExtensionAlertsOnPipelineFailure(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	ext := alert.NewExtension(sink, nil)
	ctx := context.Background()

	p := pipeline.New("score-set-ingest", "")
	p.CorrelationID = "corr-9"

	p.Status = pipeline.StatusRunning
	if err := ext.OnPipelineStatusChanged(ctx, p); err != nil {
		t.Fatalf("OnPipelineStatusChanged: %v", err)
	}
	if len(sink.alerts) != 0 {
		t.Fatalf("alerted on RUNNING: %v", sink.alerts)
	}

	p.Status = pipeline.StatusFailed
	if err := ext.OnPipelineStatusChanged(ctx, p); err != nil {
		t.Fatalf("OnPipelineStatusChanged: %v", err)
	}
	if len(sink.alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(sink.alerts))
	}
	a := sink.alerts[0]
	if a.PipelineURN != p.URN || a.CorrelationID != "corr-9" {
		t.Fatalf("alert = %+v", a)
	}
	if !strings.Contains(a.Summary, "score-set-ingest") {
		t.Fatalf("summary %q missing pipeline name", a.Summary)
	}
}

func TestExtensionSinkErrorIsSwallowed(t *testing.T) {
	t.Parallel()

	ext := alert.NewExtension(&captureSink{err: errors.New("down")}, nil)
	p := pipeline.New("p", "")
	p.Status = pipeline.StatusFailed

	if err := ext.OnPipelineStatusChanged(context.Background(), p); err != nil {
		t.Fatalf("sink error propagated: %v", err)
	}
}

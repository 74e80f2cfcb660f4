package id

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewGeneratesValidIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		gen    func() ID
		prefix Prefix
	}{
		{"job", NewJobID, PrefixJob},
		{"pipeline", NewPipelineID, PrefixPipeline},
		{"cron", NewCronID, PrefixCron},
		{"worker", NewWorkerID, PrefixWorker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := tt.gen()
			if got.IsNil() {
				t.Fatal("generated ID is nil")
			}
			if got.Prefix() != tt.prefix {
				t.Fatalf("prefix = %q, want %q", got.Prefix(), tt.prefix)
			}
			if !strings.HasPrefix(got.String(), string(tt.prefix)+"_") {
				t.Fatalf("string %q does not start with %q", got.String(), tt.prefix)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	orig := NewJobID()
	parsed, err := Parse(orig.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.String() != orig.String() {
		t.Fatalf("round trip = %q, want %q", parsed.String(), orig.String())
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"empty string", ""},
		{"garbage", "not-a-typeid"},
		{"bad suffix", "job_!!!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := Parse(tt.input); err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.input)
			}
		})
	}
}

func TestParseWithPrefix(t *testing.T) {
	t.Parallel()

	jobID := NewJobID()

	if _, err := ParseWithPrefix(jobID.String(), PrefixJob); err != nil {
		t.Fatalf("matching prefix rejected: %v", err)
	}
	if _, err := ParseWithPrefix(jobID.String(), PrefixPipeline); err == nil {
		t.Fatal("mismatched prefix accepted")
	}
}

func TestURNRoundTrip(t *testing.T) {
	t.Parallel()

	orig := NewPipelineID()
	urn := orig.URN()

	if !strings.HasPrefix(urn, "urn:cascade:pl:") {
		t.Fatalf("urn = %q, want urn:cascade:pl: prefix", urn)
	}

	parsed, err := ParseURN(urn)
	if err != nil {
		t.Fatalf("ParseURN: %v", err)
	}
	if parsed.String() != orig.String() {
		t.Fatalf("round trip = %q, want %q", parsed.String(), orig.String())
	}

	if _, err := ParseURN("urn:other:pl:abc"); err == nil {
		t.Fatal("foreign urn accepted")
	}
}

func TestNilID(t *testing.T) {
	t.Parallel()

	if !Nil.IsNil() {
		t.Fatal("Nil.IsNil() = false")
	}
	if Nil.String() != "" {
		t.Fatalf("Nil.String() = %q, want empty", Nil.String())
	}
	if Nil.URN() != "" {
		t.Fatalf("Nil.URN() = %q, want empty", Nil.URN())
	}
}

func TestJSONMarshalling(t *testing.T) {
	t.Parallel()

	orig := NewJobID()

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded ID
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.String() != orig.String() {
		t.Fatalf("round trip = %q, want %q", decoded.String(), orig.String())
	}
}

func TestSQLValueAndScan(t *testing.T) {
	t.Parallel()

	orig := NewCronID()

	v, err := orig.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var scanned ID
	if err := scanned.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if scanned.String() != orig.String() {
		t.Fatalf("round trip = %q, want %q", scanned.String(), orig.String())
	}

	// Nil round trip: Value must produce NULL, Scan(nil) must produce Nil.
	nv, err := Nil.Value()
	if err != nil {
		t.Fatalf("Nil.Value: %v", err)
	}
	if nv != nil {
		t.Fatalf("Nil.Value() = %v, want nil", nv)
	}

	var nilScanned ID
	if err := nilScanned.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if !nilScanned.IsNil() {
		t.Fatal("Scan(nil) produced non-nil ID")
	}
}

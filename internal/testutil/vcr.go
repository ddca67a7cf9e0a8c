// Package testutil holds shared test helpers. The VCR recorder replays
// canned OpenAI exchanges from testdata/fixtures so the suite runs without
// network access or a real API key.
package testutil

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// NewRecorder replays the named cassette from testdata/fixtures. Set
// VCR_MODE=record with a real key to re-record. Matching is on method and
// URL only; completion request bodies carry timestamps and session detail
// that would make exact body matching brittle.
func NewRecorder(t *testing.T, cassetteName string) *recorder.Recorder {
	t.Helper()

	mode := recorder.ModeReplaying
	if os.Getenv("VCR_MODE") == "record" {
		mode = recorder.ModeRecording
	}

	r, err := recorder.NewAsMode(filepath.Join("testdata", "fixtures", cassetteName), mode, nil)
	if err != nil {
		t.Fatalf("failed to create recorder: %v", err)
	}

	r.SetMatcher(func(req *http.Request, i cassette.Request) bool {
		return req.Method == i.Method && req.URL.String() == i.URL
	})

	// Keep real API keys out of recorded cassettes.
	r.AddSaveFilter(func(i *cassette.Interaction) error {
		delete(i.Request.Headers, "Authorization")
		return nil
	})

	t.Cleanup(func() {
		if err := r.Stop(); err != nil {
			t.Errorf("failed to stop recorder: %v", err)
		}
	})

	return r
}

// HTTPClient wraps the recorder in an http.Client for injection into the
// upstream client.
func HTTPClient(r *recorder.Recorder) *http.Client {
	return &http.Client{Transport: r}
}

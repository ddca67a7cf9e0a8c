package upstream

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/woongjin-cx/support-chat-proxy/internal/testutil"
)

func testAPIKey() string {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}
	return "test-key"
}

func TestClient_Complete(t *testing.T) {
	if os.Getenv("OPENAI_API_KEY") == "" && os.Getenv("VCR_MODE") == "record" {
		t.Skip("Skipping test: OPENAI_API_KEY not set")
	}

	r := testutil.NewRecorder(t, "chat_completion_success")
	client := New(testAPIKey(), WithHTTPClient(testutil.HTTPClient(r)))

	reply, err := client.Complete(context.Background(), "스마트올이 뭐예요?")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if reply == "" {
		t.Fatal("Complete() returned empty reply")
	}
	if !strings.Contains(reply, "스마트올") {
		t.Errorf("reply = %q, want mention of the asked service", reply)
	}
	if reply != strings.TrimSpace(reply) {
		t.Errorf("reply = %q, want surrounding whitespace trimmed", reply)
	}
}

func TestClient_Complete_RateLimited(t *testing.T) {
	if os.Getenv("OPENAI_API_KEY") == "" && os.Getenv("VCR_MODE") == "record" {
		t.Skip("Skipping test: OPENAI_API_KEY not set")
	}

	r := testutil.NewRecorder(t, "chat_completion_rate_limited")
	client := New("test-key", WithHTTPClient(testutil.HTTPClient(r)))

	_, err := client.Complete(context.Background(), "hi")
	if err == nil {
		t.Fatal("Complete() expected error for rate-limited response")
	}

	var upErr *Error
	if !errors.As(err, &upErr) {
		t.Fatalf("Complete() error = %T, want *Error", err)
	}
	if upErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", upErr.StatusCode)
	}
}

func TestClient_Complete_NotConfigured(t *testing.T) {
	client := New("")

	_, err := client.Complete(context.Background(), "hi")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Complete() error = %v, want ErrNotConfigured", err)
	}
}

func TestNew_Options(t *testing.T) {
	client := New("key",
		WithModel("gpt-4o-mini"),
		WithMaxTokens(300),
		WithBaseURL("https://proxy.internal/v1/"),
	)

	if client.Model() != "gpt-4o-mini" {
		t.Errorf("Model() = %q, want gpt-4o-mini", client.Model())
	}
	if client.maxTokens != 300 {
		t.Errorf("maxTokens = %d, want 300", client.maxTokens)
	}
	if client.baseURL != "https://proxy.internal/v1" {
		t.Errorf("baseURL = %q, want trailing slash trimmed", client.baseURL)
	}
}

func TestNew_IgnoresEmptyOverrides(t *testing.T) {
	client := New("key", WithModel(""), WithMaxTokens(0))

	if client.Model() != defaultModel {
		t.Errorf("Model() = %q, want default kept", client.Model())
	}
	if client.maxTokens != defaultMaxTokens {
		t.Errorf("maxTokens = %d, want default kept", client.maxTokens)
	}
}

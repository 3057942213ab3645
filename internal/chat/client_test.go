package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"simdb/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, maxRetries int) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	t.Setenv("OPENAI_API_KEY", "test-key")
	client, err := NewClient(config.OpenAIConfig{
		Model:          "gpt-4o",
		BaseURL:        server.URL,
		TimeoutSeconds: 5,
		MaxRetries:     maxRetries,
	}, testLogger())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client, server
}

func completionBody(content string) string {
	b, _ := json.Marshal(chatResponse{Choices: []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	}{{Message: Message{Role: "assistant", Content: content}, FinishReason: "stop"}}})
	return string(b)
}

func TestClientRetriesServerErrors(t *testing.T) {
	attempts := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			http.Error(w, `{"error": "overloaded"}`, http.StatusServiceUnavailable)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(completionBody("ok")))
	}, 2)

	reply, err := client.CreateChatCompletion(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("CreateChatCompletion failed: %v", err)
	}
	if reply.Content != "ok" {
		t.Errorf("content = %q", reply.Content)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, `{"error": "bad request"}`, http.StatusBadRequest)
	}, 3)

	_, err := client.CreateChatCompletion(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 4xx)", attempts)
	}
}

func TestClientRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(config.OpenAIConfig{Model: "gpt-4o"}, testLogger()); err == nil {
		t.Error("NewClient succeeded without an API key")
	}
}

package llm_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avdosev/ragchat-backend/internal/config"
	"github.com/avdosev/ragchat-backend/internal/entity"
	"github.com/avdosev/ragchat-backend/internal/integration/llm"
	pkgRetry "github.com/avdosev/ragchat-backend/internal/pkg/retry"
	"go.uber.org/zap"
)

func testConfig(baseURL string) config.LLMConnectorConfig {
	return config.LLMConnectorConfig{
		HTTPClientConfig: config.HTTPClientConfig{
			RequestTimeout: 5 * time.Second,
			ConnTimeout:    time.Second,
			Url:            baseURL,
		},
		StreamEndpoint:   "/generate/stream",
		CompleteEndpoint: "/generate",
		Retry:            *pkgRetry.DefaultRetryConfig(),
	}
}

func collect(t *testing.T, chunks <-chan entity.StreamChunk) (string, error) {
	t.Helper()
	var b strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			return b.String(), chunk.Err
		}
		b.WriteString(chunk.Content)
	}
	return b.String(), nil
}

func TestStreamParsesEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate/stream" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"delta\":\"Par\"}\n\n")
		fmt.Fprint(w, "data: {\"delta\":\"is\"}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	conn := llm.NewConnector(testConfig(srv.URL), zap.NewNop())

	chunks, err := conn.Stream(context.Background(), &entity.LLMStreamRequest{Prompt: "capital of France?"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	got, err := collect(t, chunks)
	if err != nil {
		t.Fatalf("stream delivered error: %v", err)
	}
	if got != "Paris" {
		t.Fatalf("assembled reply = %q, want Paris", got)
	}
}

func TestStreamDeliversUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"delta\":\"Par\"}\n\n")
		fmt.Fprint(w, "data: {\"error\":\"model overloaded\"}\n\n")
	}))
	defer srv.Close()

	conn := llm.NewConnector(testConfig(srv.URL), zap.NewNop())

	chunks, err := conn.Stream(context.Background(), &entity.LLMStreamRequest{Prompt: "q"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	got, streamErr := collect(t, chunks)
	if got != "Par" {
		t.Fatalf("partial content = %q, want Par", got)
	}
	if !errors.Is(streamErr, entity.ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", streamErr)
	}
	if !strings.Contains(streamErr.Error(), "model overloaded") {
		t.Fatalf("err = %v, want upstream detail", streamErr)
	}
}

func TestStreamRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	conn := llm.NewConnector(testConfig(srv.URL), zap.NewNop())

	_, err := conn.Stream(context.Background(), &entity.LLMStreamRequest{Prompt: "q"})
	if !errors.Is(err, entity.ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}
}

func TestCompleteShort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"text":"Capital Cities Quiz"}`)
	}))
	defer srv.Close()

	conn := llm.NewConnector(testConfig(srv.URL), zap.NewNop())

	got, err := conn.CompleteShort(context.Background(), &entity.LLMCompleteRequest{Prompt: "title please"})
	if err != nil {
		t.Fatalf("CompleteShort failed: %v", err)
	}
	if got != "Capital Cities Quiz" {
		t.Fatalf("text = %q", got)
	}
}

func TestCompleteShortRetriesTransientFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"text":"Title"}`)
	}))
	defer srv.Close()

	conn := llm.NewConnector(testConfig(srv.URL), zap.NewNop())

	got, err := conn.CompleteShort(context.Background(), &entity.LLMCompleteRequest{Prompt: "title"})
	if err != nil {
		t.Fatalf("CompleteShort failed after retries: %v", err)
	}
	if got != "Title" || calls != 3 {
		t.Fatalf("text = %q after %d calls", got, calls)
	}
}

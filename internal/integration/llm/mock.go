package llm

import (
	"context"
	"strings"
	"time"

	"github.com/avdosev/ragchat-backend/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// MockConnector is a stand-in completion source for local runs without a
// model gateway.
type MockConnector struct {
	logger *zap.Logger
}

func NewMockConnector(logger *zap.Logger) *MockConnector {
	return &MockConnector{
		logger: logger,
	}
}

func (m *MockConnector) Stream(ctx context.Context, req *entity.LLMStreamRequest) (<-chan entity.StreamChunk, error) {
	ctxzap.Info(ctx, "[MOCK] streaming completion",
		zap.Int("history_len", len(req.History)),
	)

	reply := "This is a mock answer to: " + req.Prompt +
		". The retrieval context had " + wordCount(req.Context) + " words."

	out := make(chan entity.StreamChunk)
	go func() {
		defer close(out)
		for _, word := range strings.SplitAfter(reply, " ") {
			select {
			case out <- entity.StreamChunk{Content: word}:
			case <-ctx.Done():
				return
			}
			time.Sleep(50 * time.Millisecond)
		}
	}()

	return out, nil
}

func (m *MockConnector) CompleteShort(ctx context.Context, req *entity.LLMCompleteRequest) (string, error) {
	ctxzap.Info(ctx, "[MOCK] short completion")

	words := strings.Fields(req.Prompt)
	if len(words) > 5 {
		words = words[:5]
	}
	if len(words) == 0 {
		return "New Chat", nil
	}
	return "Chat about " + strings.Join(words, " "), nil
}

func wordCount(s string) string {
	n := len(strings.Fields(s))
	switch {
	case n == 0:
		return "no"
	case n < 50:
		return "a few"
	default:
		return "many"
	}
}

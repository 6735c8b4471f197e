package vectorstore

import (
	"context"

	"github.com/avdosev/ragchat-backend/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// MockConnector is a stand-in retriever for local runs without a
// vector-search service.
type MockConnector struct {
	logger *zap.Logger
}

func NewMockConnector(logger *zap.Logger) *MockConnector {
	return &MockConnector{
		logger: logger,
	}
}

func (m *MockConnector) Search(ctx context.Context, query, conversationID string, k int) ([]entity.ScoredPassage, error) {
	ctxzap.Info(ctx, "[MOCK] vector search",
		zap.String("chat_id", conversationID),
		zap.Int("top_k", k),
	)

	passages := []entity.ScoredPassage{
		{
			Content:        "Mock passage most relevant to: " + query,
			Score:          0.92,
			ConversationID: conversationID,
			Filename:       "mock.pdf",
		},
		{
			Content:        "Second mock passage with background material.",
			Score:          0.81,
			ConversationID: conversationID,
			Filename:       "mock.pdf",
		},
	}
	if len(passages) > k {
		passages = passages[:k]
	}
	return passages, nil
}

func (m *MockConnector) DeleteByConversation(ctx context.Context, conversationID string) error {
	ctxzap.Info(ctx, "[MOCK] deleting vector index entries",
		zap.String("chat_id", conversationID),
	)
	return nil
}

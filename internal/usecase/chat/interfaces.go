package chat

import (
	"context"
	"io"

	"github.com/avdosev/ragchat-backend/internal/entity"
)

// LLMConnector is the completion source: a token stream for answers and a
// single-shot call for title generation.
type LLMConnector interface {
	Stream(ctx context.Context, req *entity.LLMStreamRequest) (<-chan entity.StreamChunk, error)
	CompleteShort(ctx context.Context, req *entity.LLMCompleteRequest) (string, error)
}

// Retriever returns passages relevant to a query, strictly scoped to one
// conversation.
type Retriever interface {
	Search(ctx context.Context, query, conversationID string, k int) ([]entity.ScoredPassage, error)
	DeleteByConversation(ctx context.Context, conversationID string) error
}

// IngestConnector hands uploaded files to the chunking/indexing service.
type IngestConnector interface {
	IngestFile(ctx context.Context, conversationID, filename string, file io.Reader) (int, error)
}

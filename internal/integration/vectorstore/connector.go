package vectorstore

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/avdosev/ragchat-backend/internal/config"
	"github.com/avdosev/ragchat-backend/internal/entity"
	"github.com/avdosev/ragchat-backend/internal/integration/common"
	pkghttp "github.com/avdosev/ragchat-backend/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Connector talks to the vector-search service. Every search carries the
// conversation id as a pre-filter applied inside the index; passages of
// other conversations are never scored, so they cannot leak through result
// contents or counts. Results are cached with a short TTL to absorb
// repeated retrieval for the same turn.
type Connector struct {
	config    config.VectorConnectorConfig
	connector *pkghttp.Connector
	cache     *gocache.Cache
	logger    *zap.Logger
}

func NewConnector(
	cfg config.VectorConnectorConfig,
	logger *zap.Logger,
) *Connector {
	return &Connector{
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger),
		config:    cfg,
		cache:     gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		logger:    logger,
	}
}

// Search returns up to k passages relevant to the query, restricted to the
// given conversation, ordered by descending similarity.
func (c *Connector) Search(ctx context.Context, query, conversationID string, k int) ([]entity.ScoredPassage, error) {
	key := cacheKey(conversationID, query, k)
	if cached, ok := c.cache.Get(key); ok {
		ctxzap.Debug(ctx, "vector search cache hit", zap.String("chat_id", conversationID))
		return cached.([]entity.ScoredPassage), nil
	}

	req := &entity.VectorSearchRequest{
		Query:  query,
		ChatID: conversationID,
		TopK:   k,
	}

	var resp entity.VectorSearchResponse
	err := retry.Do(
		func() error {
			return c.connector.DoRequest(ctx, http.MethodPost, c.config.SearchEndpoint, req, &resp)
		},
		append(c.config.Retry.ToRetryOptions(), retry.Context(ctx))...,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", entity.ErrRetrieval, err)
	}

	passages := make([]entity.ScoredPassage, 0, len(resp.Results))
	for _, p := range resp.Results {
		// The service filters by conversation; a mismatching tag here means
		// it is misbehaving, and the passage must not reach the prompt.
		if p.ConversationID != conversationID {
			ctxzap.Warn(ctx, "dropping passage tagged with foreign conversation",
				zap.String("chat_id", conversationID),
				zap.String("passage_chat_id", p.ConversationID),
			)
			continue
		}
		passages = append(passages, p)
	}

	ctxzap.Debug(ctx, "vector search completed",
		zap.String("chat_id", conversationID),
		zap.Int("passages", len(passages)),
	)

	c.cache.SetDefault(key, passages)
	return passages, nil
}

// DeleteByConversation removes all indexed passages of a conversation.
func (c *Connector) DeleteByConversation(ctx context.Context, conversationID string) error {
	var resp entity.VectorDeleteResponse
	err := retry.Do(
		func() error {
			endpoint := strings.Replace(c.config.DeleteEndpoint, "{chat_id}", conversationID, 1)
			return c.connector.DoRequest(ctx, http.MethodDelete, endpoint, nil, &resp)
		},
		append(c.config.Retry.ToRetryOptions(), retry.Context(ctx))...,
	)
	if err != nil {
		return fmt.Errorf("delete vector index for conversation %s: %w", conversationID, err)
	}

	// Cached results for this conversation are now stale.
	c.cache.Flush()

	ctxzap.Info(ctx, "vector index entries deleted",
		zap.String("chat_id", conversationID),
		zap.Int("deleted_count", resp.DeletedCount),
	)
	return nil
}

func cacheKey(conversationID, query string, k int) string {
	return conversationID + "|" + strconv.Itoa(k) + "|" + query
}

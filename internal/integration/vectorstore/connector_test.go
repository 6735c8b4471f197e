package vectorstore_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avdosev/ragchat-backend/internal/config"
	"github.com/avdosev/ragchat-backend/internal/entity"
	"github.com/avdosev/ragchat-backend/internal/integration/vectorstore"
	pkgRetry "github.com/avdosev/ragchat-backend/internal/pkg/retry"
	"go.uber.org/zap"
)

func testConfig(baseURL string) config.VectorConnectorConfig {
	return config.VectorConnectorConfig{
		HTTPClientConfig: config.HTTPClientConfig{
			RequestTimeout: 5 * time.Second,
			ConnTimeout:    time.Second,
			Url:            baseURL,
		},
		SearchEndpoint: "/search",
		DeleteEndpoint: "/index/{chat_id}",
		TopK:           3,
		CacheTTL:       time.Minute,
		Retry:          *pkgRetry.DefaultRetryConfig(),
	}
}

func TestSearchScopesToConversation(t *testing.T) {
	var gotReq entity.VectorSearchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(entity.VectorSearchResponse{
			Results: []entity.ScoredPassage{
				{Content: "mine", Score: 0.9, ConversationID: "c1"},
				{Content: "foreign", Score: 0.95, ConversationID: "c2"},
			},
		})
	}))
	defer srv.Close()

	conn := vectorstore.NewConnector(testConfig(srv.URL), zap.NewNop())

	passages, err := conn.Search(context.Background(), "query", "c1", 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if gotReq.ChatID != "c1" || gotReq.TopK != 3 {
		t.Fatalf("request = %+v, want chat_id c1 top_k 3", gotReq)
	}

	// The foreign-tagged passage must be dropped even though the service
	// returned it with the highest score.
	if len(passages) != 1 || passages[0].Content != "mine" {
		t.Fatalf("passages = %+v, want only the conversation's own", passages)
	}
}

func TestSearchCachesResults(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(entity.VectorSearchResponse{
			Results: []entity.ScoredPassage{{Content: "p", Score: 0.5, ConversationID: "c1"}},
		})
	}))
	defer srv.Close()

	conn := vectorstore.NewConnector(testConfig(srv.URL), zap.NewNop())

	for i := 0; i < 3; i++ {
		if _, err := conn.Search(context.Background(), "same query", "c1", 3); err != nil {
			t.Fatalf("Search failed: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("service called %d times, want 1 (cached)", calls)
	}

	// A different query must miss the cache.
	if _, err := conn.Search(context.Background(), "other query", "c1", 3); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("service called %d times, want 2", calls)
	}
}

func TestDeleteByConversation(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			gotPath = r.URL.Path
			fmt.Fprint(w, `{"deleted_count":7}`)
			return
		}
		json.NewEncoder(w).Encode(entity.VectorSearchResponse{
			Results: []entity.ScoredPassage{{Content: "p", Score: 0.5, ConversationID: "c1"}},
		})
	}))
	defer srv.Close()

	conn := vectorstore.NewConnector(testConfig(srv.URL), zap.NewNop())

	// Prime the cache, then delete and confirm the next search refetches.
	if _, err := conn.Search(context.Background(), "q", "c1", 3); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if err := conn.DeleteByConversation(context.Background(), "c1"); err != nil {
		t.Fatalf("DeleteByConversation failed: %v", err)
	}
	if gotPath != "/index/c1" {
		t.Fatalf("delete path = %q, want /index/c1", gotPath)
	}
}

package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/avdosev/ragchat-backend/internal/config"
	"github.com/avdosev/ragchat-backend/internal/entity"
	"github.com/avdosev/ragchat-backend/internal/integration/common"
	pkghttp "github.com/avdosev/ragchat-backend/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const streamDoneMarker = "[DONE]"

// streamEvent is one SSE data payload of the gateway's streaming endpoint.
// A payload carries either a content delta or an error, never both.
type streamEvent struct {
	Delta string `json:"delta,omitempty"`
	Error string `json:"error,omitempty"`
}

// Connector talks to the model gateway service. Streaming completions go
// through a dedicated client without a whole-request timeout; short
// completions use the regular one.
type Connector struct {
	config    config.LLMConnectorConfig
	connector *pkghttp.Connector
	streaming *pkghttp.Connector
	logger    *zap.Logger
}

func NewConnector(
	cfg config.LLMConnectorConfig,
	logger *zap.Logger,
) *Connector {
	return &Connector{
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger),
		streaming: common.NewStreamConnector(cfg.HTTPClientConfig, logger),
		config:    cfg,
		logger:    logger,
	}
}

// Stream starts a streaming completion and returns a channel of fragments.
// The channel is closed when the model finishes; a mid-stream failure is
// delivered as the final chunk with Err set, so the consumer observes it
// exactly at the point of iteration. Each call opens a fresh stream, there
// is no resumption.
func (c *Connector) Stream(ctx context.Context, req *entity.LLMStreamRequest) (<-chan entity.StreamChunk, error) {
	ctxzap.Info(ctx, "starting streaming completion",
		zap.Int("history_len", len(req.History)),
		zap.Int("context_len", len(req.Context)),
	)

	body, err := c.streaming.DoStreamRequest(ctx, http.MethodPost, c.config.StreamEndpoint, req)
	if err != nil {
		return nil, fmt.Errorf("%w: open completion stream: %v", entity.ErrGeneration, err)
	}

	out := make(chan entity.StreamChunk)

	go func() {
		defer close(out)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" {
				continue
			}
			if payload == streamDoneMarker {
				return
			}

			var event streamEvent
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				c.emit(ctx, out, entity.StreamChunk{
					Err: fmt.Errorf("%w: malformed stream event: %v", entity.ErrGeneration, err),
				})
				return
			}

			if event.Error != "" {
				c.emit(ctx, out, entity.StreamChunk{
					Err: fmt.Errorf("%w: %s", entity.ErrGeneration, event.Error),
				})
				return
			}

			if event.Delta == "" {
				continue
			}

			if !c.emit(ctx, out, entity.StreamChunk{Content: event.Delta}) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			c.emit(ctx, out, entity.StreamChunk{
				Err: fmt.Errorf("%w: read completion stream: %v", entity.ErrGeneration, err),
			})
		}
	}()

	return out, nil
}

// emit delivers a chunk unless the consumer has gone away.
func (c *Connector) emit(ctx context.Context, out chan<- entity.StreamChunk, chunk entity.StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// CompleteShort performs a single-shot completion. Used for title
// generation only, so transient gateway failures are retried.
func (c *Connector) CompleteShort(ctx context.Context, req *entity.LLMCompleteRequest) (string, error) {
	ctxzap.Debug(ctx, "requesting short completion")

	var resp entity.LLMCompleteResponse
	err := retry.Do(
		func() error {
			return c.connector.DoRequest(ctx, http.MethodPost, c.config.CompleteEndpoint, req, &resp)
		},
		append(c.config.Retry.ToRetryOptions(), retry.Context(ctx))...,
	)
	if err != nil {
		return "", fmt.Errorf("%w: short completion: %v", entity.ErrGeneration, err)
	}

	if resp.Text == "" {
		return "", fmt.Errorf("%w: short completion returned empty text", entity.ErrGeneration)
	}

	return resp.Text, nil
}

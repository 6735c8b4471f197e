package ingest

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/avast/retry-go/v4"
	"github.com/avdosev/ragchat-backend/internal/config"
	"github.com/avdosev/ragchat-backend/internal/entity"
	"github.com/avdosev/ragchat-backend/internal/integration/common"
	pkghttp "github.com/avdosev/ragchat-backend/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// Connector forwards uploaded files to the document-ingestion service,
// which chunks them and writes the chunks to the vector index tagged with
// {chat_id, filename}.
type Connector struct {
	config    config.IngestConnectorConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewConnector(
	cfg config.IngestConnectorConfig,
	logger *zap.Logger,
) *Connector {
	return &Connector{
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger),
		config:    cfg,
		logger:    logger,
	}
}

// IngestFile submits file content for chunking and indexing. The reader is
// consumed once, so retries happen at the caller's discretion, not here.
func (c *Connector) IngestFile(ctx context.Context, conversationID, filename string, file io.Reader) (int, error) {
	var resp entity.IngestResponse

	prepare := func(w *multipart.Writer) error {
		if err := w.WriteField("chat_id", conversationID); err != nil {
			return fmt.Errorf("write chat_id field: %w", err)
		}
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			return fmt.Errorf("create file part: %w", err)
		}
		if _, err := io.Copy(part, file); err != nil {
			return fmt.Errorf("copy file content: %w", err)
		}
		return nil
	}

	err := retry.Do(
		func() error {
			return c.connector.DoMultipartRequest(ctx, http.MethodPost, c.config.IngestEndpoint, prepare, &resp)
		},
		// single attempt: the multipart body builder drains the reader
		retry.Attempts(1),
	)
	if err != nil {
		return 0, fmt.Errorf("ingest file %q for conversation %s: %w", filename, conversationID, err)
	}

	ctxzap.Info(ctx, "file ingested",
		zap.String("chat_id", conversationID),
		zap.String("filename", filename),
		zap.Int("chunks_indexed", resp.ChunksIndexed),
	)

	return resp.ChunksIndexed, nil
}

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/avdosev/ragchat-backend/internal/entity"
	"github.com/avdosev/ragchat-backend/internal/pkg/logger"
	"github.com/avdosev/ragchat-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// titleTriggerCount is the in-memory message count at which the title is
// generated: the system seed plus the first user message, checked right
// after that user message is appended. Exactly one attempt per
// conversation, never on later turns.
const titleTriggerCount = 2

// ChatUsecase implements the request flow: load history, retrieve context,
// stream the completion to the caller, persist the exchange once the
// stream ends.
type ChatUsecase struct {
	convRepo  repository.ConversationRepository
	retriever Retriever
	llm       LLMConnector
	ingest    IngestConnector
	topK      int
	logger    *zap.Logger
}

// NewUsecase creates a new chat use case
func NewUsecase(
	convRepo repository.ConversationRepository,
	retriever Retriever,
	llm LLMConnector,
	ingest IngestConnector,
	topK int,
	logger *zap.Logger,
) *ChatUsecase {
	return &ChatUsecase{
		convRepo:  convRepo,
		retriever: retriever,
		llm:       llm,
		ingest:    ingest,
		topK:      topK,
		logger:    logger,
	}
}

// StreamChat runs one chat turn. Fragments are pushed through forward in
// production order as they arrive from the model.
//
// Errors returned from this method occur before any fragment was forwarded,
// so the transport can still pick a status code. Once streaming has begun,
// failures are handled in-band: a generation error is forwarded as one
// terminal ERROR fragment and the method returns nil, and whatever was
// accumulated up to that point is persisted. Client disconnects are treated
// the same way minus the marker; persistence runs on a detached context so
// a partial reply is never lost.
func (uc *ChatUsecase) StreamChat(ctx context.Context, conversationID, prompt string, forward entity.ForwardFunc) error {
	if conversationID == "" {
		return fmt.Errorf("%w: chat_id", entity.ErrMissingField)
	}
	if prompt == "" {
		return fmt.Errorf("%w: prompt", entity.ErrMissingField)
	}

	ctx = logger.AddFields(ctx,
		zap.String("chat_id", conversationID),
		zap.String("prompt", logger.TruncatePrompt(prompt)),
	)

	conv, err := uc.convRepo.Get(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}

	passages, err := uc.retriever.Search(ctx, prompt, conversationID, uc.topK)
	if err != nil {
		return fmt.Errorf("retrieve context: %w", err)
	}
	contextStr := buildContext(passages)

	userMsg := entity.Message{
		ID:        uuid.New().String(),
		Role:      entity.RoleUser,
		Content:   prompt,
		CreatedAt: time.Now().UTC(),
	}
	history := append(append([]entity.Message{}, conv.Messages...), userMsg)

	var newTitle *string
	if len(history) == titleTriggerCount {
		if title, err := uc.generateTitle(ctx, prompt); err != nil {
			// Title generation must never abort the main response.
			ctxzap.Warn(ctx, "could not generate chat title", zap.Error(err))
		} else {
			newTitle = &title
			ctxzap.Info(ctx, "generated chat title", zap.String("title", title))
		}
	}

	chunks, err := uc.llm.Stream(ctx, &entity.LLMStreamRequest{
		Prompt:  prompt,
		History: history,
		Context: contextStr,
	})
	if err != nil {
		return fmt.Errorf("start generation: %w", err)
	}

	var buf strings.Builder
	var streamErr error

forwardLoop:
	for {
		select {
		case <-ctx.Done():
			streamErr = ctx.Err()
			break forwardLoop
		case chunk, ok := <-chunks:
			if !ok {
				break forwardLoop
			}
			if chunk.Err != nil {
				streamErr = chunk.Err
				break forwardLoop
			}
			if err := forward([]byte(chunk.Content)); err != nil {
				streamErr = fmt.Errorf("forward fragment: %w", err)
				break forwardLoop
			}
			buf.WriteString(chunk.Content)
		}
	}

	if streamErr != nil {
		ctxzap.Error(ctx, "streaming interrupted", zap.Error(streamErr))
		if errors.Is(streamErr, entity.ErrGeneration) {
			// In-band terminal marker; the stream then closes normally.
			_ = forward([]byte("ERROR: An error occurred during response generation: " + streamErr.Error()))
		}
	}

	// The client may be gone; persistence must still happen.
	uc.persistTurn(context.WithoutCancel(ctx), conversationID, userMsg, buf.String(), newTitle)

	return nil
}

// persistTurn writes the completed exchange in a single merge. An empty
// reply persists nothing: the turn never produced content worth keeping.
func (uc *ChatUsecase) persistTurn(ctx context.Context, conversationID string, userMsg entity.Message, reply string, title *string) {
	if reply == "" {
		ctxzap.Warn(ctx, "no response generated, nothing to persist")
		return
	}

	agentMsg := entity.Message{
		ID:        uuid.New().String(),
		Role:      entity.RoleAgent,
		Content:   reply,
		CreatedAt: time.Now().UTC(),
	}

	err := uc.convRepo.AppendAndPersist(ctx, conversationID, []entity.Message{userMsg, agentMsg}, title, nil)
	if err != nil {
		// The client already received the streamed content; a failed write
		// is logged, not surfaced.
		ctxzap.Error(ctx, "failed to persist conversation turn", zap.Error(err))
		return
	}

	ctxzap.Info(ctx, "conversation turn persisted", zap.Int("reply_len", len(reply)))
}

func (uc *ChatUsecase) generateTitle(ctx context.Context, prompt string) (string, error) {
	raw, err := uc.llm.CompleteShort(ctx, &entity.LLMCompleteRequest{
		SystemPrompt: titleSystemPrompt,
		Prompt:       fmt.Sprintf("Based on the following prompt: '%s', generate a concise title:", prompt),
	})
	if err != nil {
		return "", err
	}

	title := sanitizeTitle(raw)
	if title == "" {
		return "", fmt.Errorf("%w: empty title", entity.ErrGeneration)
	}
	return title, nil
}

// CreateChat creates a conversation seeded with a system message.
func (uc *ChatUsecase) CreateChat(ctx context.Context) (*entity.Conversation, error) {
	conv, err := uc.convRepo.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	ctxzap.Info(ctx, "conversation created", zap.String("chat_id", conv.ID))
	return conv, nil
}

// ListChats returns id/title pairs of all conversations. An empty store is
// seeded with a fresh conversation so the caller always has one to talk to.
func (uc *ChatUsecase) ListChats(ctx context.Context) ([]entity.ConversationInfo, error) {
	infos, err := uc.convRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	if len(infos) == 0 {
		ctxzap.Info(ctx, "no conversations found, seeding a new one")
		conv, err := uc.convRepo.Create(ctx)
		if err != nil {
			return nil, fmt.Errorf("seed conversation: %w", err)
		}
		infos = append(infos, entity.ConversationInfo{ID: conv.ID, Title: conv.Title})
	}

	return infos, nil
}

// GetChat loads a full conversation.
func (uc *ChatUsecase) GetChat(ctx context.Context, conversationID string) (*entity.Conversation, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("%w: chat_id", entity.ErrMissingField)
	}
	return uc.convRepo.Get(ctx, conversationID)
}

// ClearChat removes all messages from a conversation but keeps the
// conversation itself, its title and its attached files.
func (uc *ChatUsecase) ClearChat(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("%w: chat_id", entity.ErrMissingField)
	}

	if _, err := uc.convRepo.Get(ctx, conversationID); err != nil {
		return err
	}
	if err := uc.convRepo.Clear(ctx, conversationID); err != nil {
		return err
	}

	ctxzap.Info(ctx, "conversation cleared", zap.String("chat_id", conversationID))
	return nil
}

// DeleteChat removes the conversation record and every vector-index entry
// tagged with it. The two deletions are independent writes; a vector-store
// failure after the history deletion is surfaced to the caller.
func (uc *ChatUsecase) DeleteChat(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("%w: chat_id", entity.ErrMissingField)
	}

	if err := uc.convRepo.Delete(ctx, conversationID); err != nil {
		return err
	}

	if err := uc.retriever.DeleteByConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("delete indexed documents: %w", err)
	}

	ctxzap.Info(ctx, "conversation deleted", zap.String("chat_id", conversationID))
	return nil
}

// AttachFile sends an uploaded file to the ingestion service and unions the
// filename into the conversation's file set. Attaching the same filename
// twice keeps a single entry.
func (uc *ChatUsecase) AttachFile(ctx context.Context, conversationID, filename string, file io.Reader) (int, error) {
	if conversationID == "" {
		return 0, fmt.Errorf("%w: chat_id", entity.ErrMissingField)
	}
	if filename == "" {
		return 0, fmt.Errorf("%w: filename", entity.ErrMissingField)
	}

	if _, err := uc.convRepo.Get(ctx, conversationID); err != nil {
		return 0, err
	}

	chunks, err := uc.ingest.IngestFile(ctx, conversationID, filename, file)
	if err != nil {
		return 0, fmt.Errorf("ingest file: %w", err)
	}

	if err := uc.convRepo.AppendAndPersist(ctx, conversationID, nil, nil, []string{filename}); err != nil {
		return 0, fmt.Errorf("attach filename: %w", err)
	}

	ctxzap.Info(ctx, "file attached",
		zap.String("chat_id", conversationID),
		zap.String("filename", filename),
		zap.Int("chunks_indexed", chunks),
	)
	return chunks, nil
}

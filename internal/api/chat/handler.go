package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/avdosev/ragchat-backend/internal/config"
	"github.com/avdosev/ragchat-backend/internal/entity"
	"github.com/avdosev/ragchat-backend/internal/pkg/formatter"
	"github.com/avdosev/ragchat-backend/internal/pkg/logger"
	"github.com/avdosev/ragchat-backend/internal/pkg/response"
	"github.com/avdosev/ragchat-backend/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type Handler struct {
	usecase   ChatUsecase
	validator *validator.Validator
	uploadCfg config.FileUploadConfig
}

func NewHandler(
	usecase ChatUsecase,
	validator *validator.Validator,
	uploadCfg config.FileUploadConfig,
) *Handler {
	return &Handler{
		usecase:   usecase,
		validator: validator,
		uploadCfg: uploadCfg,
	}
}

// sseWriter frames fragments as server-sent events. Headers are written
// lazily on the first fragment so failures that happen before any token
// was produced can still carry a proper status code.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	status  int
	started bool
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	flusher, _ := w.(http.Flusher)
	return &sseWriter{w: w, flusher: flusher, status: http.StatusOK}
}

func (s *sseWriter) start() {
	if s.started {
		return
	}
	s.started = true
	s.w.Header().Set("Content-Type", "text/event-stream")
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("Connection", "keep-alive")
	s.w.WriteHeader(s.status)
}

func (s *sseWriter) send(fragment []byte) error {
	s.start()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", fragment); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// sendError emits a single in-band error event. Only usable before the
// stream has started, otherwise the status code is already on the wire.
func (s *sseWriter) sendError(status int, detail string) {
	if !s.started {
		s.status = status
	}
	s.send([]byte("ERROR: " + detail))
}

// StreamChat handles POST /chat - Generate a streamed reply
func (h *Handler) StreamChat(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "StreamChat")

	sw := newSSEWriter(w)

	var req entity.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctxzap.Error(ctx, "failed to decode request body", zap.Error(err))
		sw.sendError(http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.ValidateChatRequest(&req); err != nil {
		ctxzap.Error(ctx, "failed to validate request", zap.Error(err))
		sw.sendError(http.StatusBadRequest, err.Error())
		return
	}

	ctx = logger.AddFields(ctx, zap.String("chat_id", req.ChatID))
	ctxzap.Info(ctx, "streaming chat response",
		zap.String("prompt", logger.TruncatePrompt(req.Prompt)),
	)

	if err := h.usecase.StreamChat(ctx, req.ChatID, req.Prompt, sw.send); err != nil {
		h.handleStreamError(ctx, sw, err)
		return
	}

	// Ensure an empty reply still produces a well-formed event stream.
	sw.start()

	ctxzap.Info(ctx, "chat response streamed successfully")
}

func (h *Handler) handleStreamError(ctx context.Context, sw *sseWriter, err error) {
	ctxzap.Error(ctx, "failed to stream chat response", zap.Error(err))

	switch {
	case errors.Is(err, entity.ErrConversationNotFound):
		sw.sendError(http.StatusNotFound, "chat not found")
	case errors.Is(err, entity.ErrMissingField), errors.Is(err, entity.ErrInvalidParameter):
		sw.sendError(http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled):
		// client went away, nothing to report
	default:
		sw.sendError(http.StatusInternalServerError, "internal server error")
	}
}

// CreateChat handles POST /chats - Create a new empty chat
func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "CreateChat")

	ctxzap.Info(ctx, "creating chat")

	conv, err := h.usecase.CreateChat(ctx)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Info(ctx, "chat created successfully", zap.String("chat_id", conv.ID))

	response.JSON(w, http.StatusCreated, toChatInfoResponse(conv))
}

// ListChats handles GET /chats - List all chats
func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "ListChats")

	ctxzap.Debug(ctx, "listing chats")

	infos, err := h.usecase.ListChats(ctx)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	chats := make([]entity.ChatInfoResponse, 0, len(infos))
	for _, info := range infos {
		chats = append(chats, entity.ChatInfoResponse{ID: info.ID, Title: info.Title})
	}

	response.Success(w, chats)
}

// FetchChat handles GET /chats/{id} - Fetch chat history
func (h *Handler) FetchChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "id")

	ctx = logger.AddFields(ctx,
		zap.String("chat_id", chatID),
		zap.String("action", "FetchChat"),
	)

	ctxzap.Debug(ctx, "fetching chat history")

	conv, err := h.usecase.GetChat(ctx, chatID)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, toChatHistoryResponse(conv))
}

// ClearChat handles DELETE /chats/{id}/messages - Clear chat history
func (h *Handler) ClearChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "id")

	ctx = logger.AddFields(ctx,
		zap.String("chat_id", chatID),
		zap.String("action", "ClearChat"),
	)

	ctxzap.Info(ctx, "clearing chat history")

	if err := h.usecase.ClearChat(ctx, chatID); err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Info(ctx, "chat history cleared successfully")
	response.NoContent(w)
}

// DeleteChat handles DELETE /chats/{id} - Delete chat and its indexed documents
func (h *Handler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "id")

	ctx = logger.AddFields(ctx,
		zap.String("chat_id", chatID),
		zap.String("action", "DeleteChat"),
	)

	ctxzap.Info(ctx, "deleting chat")

	if err := h.usecase.DeleteChat(ctx, chatID); err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Info(ctx, "chat deleted successfully")
	response.NoContent(w)
}

// UploadFile handles POST /chats/{id}/files - Attach a document to a chat
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "id")

	ctx = logger.AddFields(ctx,
		zap.String("chat_id", chatID),
		zap.String("action", "UploadFile"),
	)

	if err := r.ParseMultipartForm(h.uploadCfg.MaxUploadSize); err != nil {
		ctxzap.Error(ctx, "failed to parse multipart form", zap.Error(err))
		h.respondError(ctx, w, http.StatusBadRequest, "failed to parse form", err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		ctxzap.Error(ctx, "missing file", zap.Error(err))
		h.respondError(ctx, w, http.StatusBadRequest, "file is required", err)
		return
	}
	defer file.Close()

	if err := h.validator.ValidateUpload(header); err != nil {
		ctxzap.Error(ctx, "failed to validate upload", zap.Error(err))
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Info(ctx, "uploading file",
		zap.String("filename", header.Filename),
		zap.Int64("size_bytes", header.Size),
	)

	chunks, err := h.usecase.AttachFile(ctx, chatID, header.Filename, file)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Info(ctx, "file uploaded successfully", zap.Int("chunks_indexed", chunks))

	response.JSON(w, http.StatusCreated, entity.UploadResponse{
		Message:          "file indexed successfully",
		OriginalFileName: header.Filename,
		ContentType:      header.Header.Get("Content-Type"),
		FileSizeBytes:    header.Size,
	})
}

// ExportChat handles GET /chats/{id}/export - Download chat transcript
func (h *Handler) ExportChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "id")

	ctx = logger.AddFields(ctx,
		zap.String("chat_id", chatID),
		zap.String("action", "ExportChat"),
	)

	formatParam := r.URL.Query().Get("format")
	if formatParam == "" {
		formatParam = string(entity.FormatMarkdown)
	}
	format := entity.ExportFormat(formatParam)

	ctx = logger.AddFields(ctx, zap.String("format", formatParam))
	ctxzap.Debug(ctx, "exporting chat transcript")

	conv, err := h.usecase.GetChat(ctx, chatID)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	factory := formatter.NewFactory()
	fmtr, err := factory.Create(format)
	if err != nil {
		ctxzap.Warn(ctx, "unsupported export format", zap.Error(err))
		h.respondError(ctx, w, http.StatusBadRequest, "format must be one of: md, pdf, docx", err)
		return
	}

	rendered, err := fmtr.Format(conv.Title, formatter.Transcript(conv))
	if err != nil {
		ctxzap.Error(ctx, "failed to format transcript", zap.Error(err))
		h.respondError(ctx, w, http.StatusInternalServerError, "failed to format transcript", err)
		return
	}

	ctxzap.Info(ctx, "chat transcript exported successfully")
	w.Header().Set("Content-Type", fmtr.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"chat-%s%s\"", chatID, fmtr.FileExtension()))
	w.WriteHeader(http.StatusOK)
	w.Write(rendered)
}

// Helper methods

func (h *Handler) respondError(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	ctxzap.Error(ctx, message, zap.Error(err))
	response.JSON(w, status, entity.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

func (h *Handler) handleUsecaseError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, entity.ErrConversationNotFound) {
		h.respondError(ctx, w, http.StatusNotFound, "chat not found", err)
	} else if errors.Is(err, entity.ErrMissingField) || errors.Is(err, entity.ErrInvalidParameter) {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid parameter", err)
	} else if errors.Is(err, entity.ErrInvalidFile) || errors.Is(err, entity.ErrInvalidExtension) || errors.Is(err, entity.ErrFileTooLarge) {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid file", err)
	} else {
		h.respondError(ctx, w, http.StatusInternalServerError, "internal server error", err)
	}
}

package chat_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chatapi "github.com/avdosev/ragchat-backend/internal/api/chat"
	"github.com/avdosev/ragchat-backend/internal/config"
	"github.com/avdosev/ragchat-backend/internal/entity"
	"github.com/avdosev/ragchat-backend/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
)

type fakeUsecase struct {
	fragments []string
	streamErr error
	conv      *entity.Conversation
	getErr    error
	chunks    int
	attachErr error
}

func (f *fakeUsecase) StreamChat(ctx context.Context, conversationID, prompt string, forward entity.ForwardFunc) error {
	if f.streamErr != nil {
		return f.streamErr
	}
	for _, fr := range f.fragments {
		if err := forward([]byte(fr)); err != nil {
			return nil
		}
	}
	return nil
}

func (f *fakeUsecase) CreateChat(ctx context.Context) (*entity.Conversation, error) {
	return &entity.Conversation{ID: "c1", Title: "New Chat"}, nil
}

func (f *fakeUsecase) ListChats(ctx context.Context) ([]entity.ConversationInfo, error) {
	return []entity.ConversationInfo{{ID: "c1", Title: "New Chat"}}, nil
}

func (f *fakeUsecase) GetChat(ctx context.Context, conversationID string) (*entity.Conversation, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.conv, nil
}

func (f *fakeUsecase) ClearChat(ctx context.Context, conversationID string) error  { return f.getErr }
func (f *fakeUsecase) DeleteChat(ctx context.Context, conversationID string) error { return f.getErr }

func (f *fakeUsecase) AttachFile(ctx context.Context, conversationID, filename string, file io.Reader) (int, error) {
	if f.attachErr != nil {
		return 0, f.attachErr
	}
	io.Copy(io.Discard, file)
	return f.chunks, nil
}

func newTestRouter(uc *fakeUsecase) http.Handler {
	uploadCfg := config.FileUploadConfig{MaxFileSize: 1 << 20, MaxUploadSize: 4 << 20}
	h := chatapi.NewHandler(uc, validator.NewValidator(uploadCfg), uploadCfg)

	r := chi.NewRouter()
	chatapi.RegisterStreamRoutes(r, h)
	chatapi.RegisterRoutes(r, h)
	return r
}

func postChat(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestStreamChatWritesEventStream(t *testing.T) {
	router := newTestRouter(&fakeUsecase{fragments: []string{"Par", "is"}})

	rec := postChat(t, router, `{"chat_id":"c1","prompt":"capital of France?"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	if got := rec.Body.String(); got != "data: Par\n\ndata: is\n\n" {
		t.Fatalf("body = %q", got)
	}
}

func TestStreamChatValidationError(t *testing.T) {
	router := newTestRouter(&fakeUsecase{})

	rec := postChat(t, router, `{"chat_id":"c1"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "data: ERROR:") {
		t.Fatalf("body = %q, want single error event", rec.Body.String())
	}
}

func TestStreamChatUnknownConversation(t *testing.T) {
	router := newTestRouter(&fakeUsecase{streamErr: entity.ErrConversationNotFound})

	rec := postChat(t, router, `{"chat_id":"missing","prompt":"hi"}`)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ERROR: chat not found") {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestStreamChatEmptyReplyStillWellFormed(t *testing.T) {
	router := newTestRouter(&fakeUsecase{})

	rec := postChat(t, router, `{"chat_id":"c1","prompt":"hi"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestFetchChatHidesSystemMessages(t *testing.T) {
	router := newTestRouter(&fakeUsecase{conv: &entity.Conversation{
		ID: "c1",
		Messages: []entity.Message{
			{Role: entity.RoleSystem, Content: "You are a helpful assistant!"},
			{Role: entity.RoleUser, Content: "hi"},
			{Role: entity.RoleAgent, Content: "hello"},
		},
		Files: []string{"notes.md"},
	}})

	req := httptest.NewRequest(http.MethodGet, "/chats/c1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp entity.ChatHistoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Messages) != 2 {
		t.Fatalf("messages = %d, want 2 (system hidden)", len(resp.Messages))
	}
	if resp.Messages[0].Role != "user" || resp.Messages[1].Role != "agent" {
		t.Fatalf("roles = %s/%s", resp.Messages[0].Role, resp.Messages[1].Role)
	}
	if len(resp.Files) != 1 || resp.Files[0] != "notes.md" {
		t.Fatalf("files = %v", resp.Files)
	}
}

func TestFetchChatNotFound(t *testing.T) {
	router := newTestRouter(&fakeUsecase{getErr: entity.ErrConversationNotFound})

	req := httptest.NewRequest(http.MethodGet, "/chats/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func multipartFile(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fw.Write([]byte(content))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadFile(t *testing.T) {
	router := newTestRouter(&fakeUsecase{chunks: 3})

	body, ct := multipartFile(t, "file", "notes.md", "# notes")
	req := httptest.NewRequest(http.MethodPost, "/chats/c1/files", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp entity.UploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.OriginalFileName != "notes.md" {
		t.Fatalf("filename = %q", resp.OriginalFileName)
	}
}

func TestUploadFileRejectsExtension(t *testing.T) {
	router := newTestRouter(&fakeUsecase{})

	body, ct := multipartFile(t, "file", "malware.exe", "MZ")
	req := httptest.NewRequest(http.MethodPost, "/chats/c1/files", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestExportChatMarkdown(t *testing.T) {
	router := newTestRouter(&fakeUsecase{conv: &entity.Conversation{
		ID:    "c1",
		Title: "Capitals",
		Messages: []entity.Message{
			{Role: entity.RoleUser, Content: "capital of France?"},
			{Role: entity.RoleAgent, Content: "Paris"},
		},
	}})

	req := httptest.NewRequest(http.MethodGet, "/chats/c1/export?format=md", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "chat-c1.md") {
		t.Fatalf("content disposition = %q", cd)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "# Capitals") || !strings.Contains(body, "AGENT: Paris") {
		t.Fatalf("rendered transcript = %q", body)
	}
}

func TestExportChatUnsupportedFormat(t *testing.T) {
	router := newTestRouter(&fakeUsecase{conv: &entity.Conversation{ID: "c1"}})

	req := httptest.NewRequest(http.MethodGet, "/chats/c1/export?format=xml", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

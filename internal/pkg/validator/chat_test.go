package validator

import (
	"errors"
	"mime/multipart"
	"testing"

	"github.com/avdosev/ragchat-backend/internal/config"
	"github.com/avdosev/ragchat-backend/internal/entity"
)

func newTestValidator() *Validator {
	return NewValidator(config.FileUploadConfig{MaxFileSize: 1024})
}

func TestValidateChatRequest(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name    string
		req     entity.ChatRequest
		wantErr error
	}{
		{"valid", entity.ChatRequest{ChatID: "c1", Prompt: "hi"}, nil},
		{"missing chat_id", entity.ChatRequest{Prompt: "hi"}, entity.ErrMissingField},
		{"missing prompt", entity.ChatRequest{ChatID: "c1"}, entity.ErrMissingField},
		{"blank prompt", entity.ChatRequest{ChatID: "c1", Prompt: "   "}, entity.ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateChatRequest(&tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateUpload(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name     string
		filename string
		size     int64
		wantErr  error
	}{
		{"pdf ok", "doc.pdf", 512, nil},
		{"markdown ok", "notes.MD", 512, nil},
		{"executable rejected", "tool.exe", 512, entity.ErrInvalidExtension},
		{"no extension", "README", 512, entity.ErrInvalidExtension},
		{"too large", "doc.pdf", 4096, entity.ErrFileTooLarge},
		{"empty file", "doc.pdf", 0, entity.ErrInvalidFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fh := &multipart.FileHeader{Filename: tt.filename, Size: tt.size}
			err := v.ValidateUpload(fh)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateUploadNilHeader(t *testing.T) {
	v := newTestValidator()
	if err := v.ValidateUpload(nil); !errors.Is(err, entity.ErrInvalidFile) {
		t.Fatalf("err = %v, want ErrInvalidFile", err)
	}
}

package validator

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/avdosev/ragchat-backend/internal/config"
	"github.com/avdosev/ragchat-backend/internal/entity"
)

var AllowedExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".md":   true,
	".docx": true,
}

// Validator validates chat requests and file uploads
type Validator struct {
	cfg config.FileUploadConfig
}

func NewValidator(cfg config.FileUploadConfig) *Validator {
	return &Validator{cfg: cfg}
}

func (v *Validator) ValidateChatRequest(req *entity.ChatRequest) error {
	if strings.TrimSpace(req.ChatID) == "" {
		return fmt.Errorf("%w: chat_id", entity.ErrMissingField)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return fmt.Errorf("%w: prompt", entity.ErrMissingField)
	}
	return nil
}

// ValidateUpload validates a single file upload
func (v *Validator) ValidateUpload(fh *multipart.FileHeader) error {
	if fh == nil || fh.Filename == "" {
		return fmt.Errorf("%w: uploaded file has no filename", entity.ErrInvalidFile)
	}

	if fh.Size == 0 {
		return fmt.Errorf("%w: uploaded file is empty", entity.ErrInvalidFile)
	}

	if fh.Size > v.cfg.MaxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", entity.ErrFileTooLarge, fh.Size, v.cfg.MaxFileSize)
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !AllowedExtensions[ext] {
		return fmt.Errorf("%w: %s (allowed: pdf, txt, md, docx)", entity.ErrInvalidExtension, ext)
	}

	return nil
}

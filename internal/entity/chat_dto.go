package entity

type ChatRequest struct {
	ChatID string `json:"chat_id"`
	Prompt string `json:"prompt"`
}

type ChatInfoResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type MessageDTO struct {
	Role  string `json:"role"`
	Value string `json:"value"`
}

type ChatHistoryResponse struct {
	Messages []MessageDTO `json:"messages"`
	Files    []string     `json:"files"`
}

type UploadResponse struct {
	Message          string `json:"message"`
	OriginalFileName string `json:"original_file_name"`
	ContentType      string `json:"content_type"`
	FileSizeBytes    int64  `json:"file_size_bytes"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type ExportFormat string

const (
	FormatMarkdown ExportFormat = "md"
	FormatPDF      ExportFormat = "pdf"
	FormatDOCX     ExportFormat = "docx"
)

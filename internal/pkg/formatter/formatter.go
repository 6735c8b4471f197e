package formatter

import (
	"fmt"
	"strings"

	"github.com/avdosev/ragchat-backend/internal/entity"
)

const untitledTranscript = "Conversation transcript"

// Formatter renders a conversation transcript for download.
type Formatter interface {
	Format(title, transcript string) ([]byte, error)
	ContentType() string
	FileExtension() string
}

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(format entity.ExportFormat) (Formatter, error) {
	switch format {
	case entity.FormatMarkdown:
		return NewMarkdownFormatter(), nil
	case entity.FormatDOCX:
		return NewDOCXFormatter(), nil
	case entity.FormatPDF:
		return NewPDFFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// Transcript flattens a conversation into readable dialogue text. System
// seed messages are omitted, same as the history fetch API.
func Transcript(conv *entity.Conversation) string {
	var b strings.Builder
	for _, msg := range conv.Messages {
		if msg.Role == entity.RoleSystem {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n\n", strings.ToUpper(string(msg.Role)), msg.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func displayTitle(title string) string {
	if strings.TrimSpace(title) == "" {
		return untitledTranscript
	}
	return title
}

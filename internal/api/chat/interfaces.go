package chat

import (
	"context"
	"io"

	"github.com/avdosev/ragchat-backend/internal/entity"
)

type ChatUsecase interface {
	StreamChat(ctx context.Context, conversationID, prompt string, forward entity.ForwardFunc) error
	CreateChat(ctx context.Context) (*entity.Conversation, error)
	ListChats(ctx context.Context) ([]entity.ConversationInfo, error)
	GetChat(ctx context.Context, conversationID string) (*entity.Conversation, error)
	ClearChat(ctx context.Context, conversationID string) error
	DeleteChat(ctx context.Context, conversationID string) error
	AttachFile(ctx context.Context, conversationID, filename string, file io.Reader) (int, error)
}

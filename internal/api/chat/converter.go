package chat

import "github.com/avdosev/ragchat-backend/internal/entity"

func toChatInfoResponse(conv *entity.Conversation) *entity.ChatInfoResponse {
	return &entity.ChatInfoResponse{
		ID:    conv.ID,
		Title: conv.Title,
	}
}

// toChatHistoryResponse projects a conversation into the fetch payload.
// The system seed message is an implementation detail and is not exposed.
func toChatHistoryResponse(conv *entity.Conversation) *entity.ChatHistoryResponse {
	messages := make([]entity.MessageDTO, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		if msg.Role == entity.RoleSystem {
			continue
		}
		messages = append(messages, entity.MessageDTO{
			Role:  string(msg.Role),
			Value: msg.Content,
		})
	}

	files := conv.Files
	if files == nil {
		files = []string{}
	}

	return &entity.ChatHistoryResponse{
		Messages: messages,
		Files:    files,
	}
}

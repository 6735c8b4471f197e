package entity

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
)

func (r Role) Validate() error {
	switch r {
	case RoleSystem, RoleUser, RoleAgent:
		return nil
	default:
		return fmt.Errorf("unknown message role: %s", r)
	}
}

// Message is one entry of a conversation log. Messages are immutable once
// appended; their order is the insertion order.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is a persisted chat session: an ordered message log plus
// title and the set of filenames attached to it. Version is the
// optimistic-concurrency token of the stored record.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Files     []string  `json:"files"`
	Messages  []Message `json:"messages"`
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationInfo is the list-view projection of a conversation.
type ConversationInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ScoredPassage is a text chunk retrieved from the vector index, scoped to
// one conversation. Score is cosine similarity: higher is more relevant.
type ScoredPassage struct {
	Content        string  `json:"text"`
	Score          float64 `json:"score"`
	ConversationID string  `json:"chat_id"`
	Filename       string  `json:"filename,omitempty"`
}

// StreamChunk is one unit of incrementally produced generation output.
// A chunk carries either content or a terminal error, never both; the
// producing channel is closed right after an error chunk.
type StreamChunk struct {
	Content string
	Err     error
}

// ForwardFunc delivers one response fragment to the caller. Returning an
// error signals that the caller is gone and no further fragments should be
// forwarded.
type ForwardFunc func(fragment []byte) error

package entity

// LLMStreamRequest is the payload of a streaming completion call against the
// model gateway. History carries the full conversation including the just
// appended user message; Context is the pre-assembled retrieval context.
type LLMStreamRequest struct {
	Prompt  string    `json:"prompt"`
	History []Message `json:"history"`
	Context string    `json:"context"`
}

type LLMCompleteRequest struct {
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

type LLMCompleteResponse struct {
	Text string `json:"text"`
}

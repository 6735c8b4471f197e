package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/avdosev/ragchat-backend/internal/entity"
)

const titleSystemPrompt = "You are an AI assistant specialized in summarizing conversations. " +
	"Your task is to create a very concise, descriptive, and relevant title " +
	"for the given chat message history. The title should be under 10 words " +
	"and capture the main topic or purpose of the conversation. " +
	"Focus on the core subject discussed.\n\nExamples:\n" +
	"- Chat about Azure Deployment\n" +
	"- LangChain Setup Guide\n" +
	"- Project Feedback Discussion\n" +
	"- Cosmos DB Integration Tips"

const maxTitleWords = 9

// buildContext flattens retrieved passages into the context block handed to
// the generation call. Passages are ordered by descending similarity so the
// most relevant material comes first; the score is kept so the model can
// weigh how much to trust each passage.
func buildContext(passages []entity.ScoredPassage) string {
	if len(passages) == 0 {
		return ""
	}

	ordered := make([]entity.ScoredPassage, len(passages))
	copy(ordered, passages)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	var b strings.Builder
	for _, p := range ordered {
		fmt.Fprintf(&b, "content: %s, score: %.4f\n\n", p.Content, p.Score)
	}
	return b.String()
}

// sanitizeTitle cleans up model output for use as a conversation title:
// strips quoting and newlines, and caps the word count the prompt asked
// for in case the model ignored it.
func sanitizeTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, `"'`)
	title = strings.ReplaceAll(title, "\n", " ")

	words := strings.Fields(title)
	if len(words) > maxTitleWords {
		words = words[:maxTitleWords]
	}
	return strings.Join(words, " ")
}

package chat

import (
	"strings"
	"testing"

	"github.com/avdosev/ragchat-backend/internal/entity"
)

func TestBuildContextOrdersByScore(t *testing.T) {
	passages := []entity.ScoredPassage{
		{Content: "second", Score: 0.55},
		{Content: "first", Score: 0.91},
		{Content: "third", Score: 0.12},
	}

	got := buildContext(passages)

	first := strings.Index(got, "first")
	second := strings.Index(got, "second")
	third := strings.Index(got, "third")
	if first < 0 || second < 0 || third < 0 {
		t.Fatalf("missing passage content in context: %q", got)
	}
	if !(first < second && second < third) {
		t.Fatalf("passages not ordered by descending score: %q", got)
	}

	if !strings.Contains(got, "content: first, score: 0.9100") {
		t.Fatalf("unexpected passage format: %q", got)
	}
}

func TestBuildContextEmpty(t *testing.T) {
	if got := buildContext(nil); got != "" {
		t.Fatalf("context for no passages = %q, want empty", got)
	}
}

func TestBuildContextDoesNotMutateInput(t *testing.T) {
	passages := []entity.ScoredPassage{
		{Content: "a", Score: 0.1},
		{Content: "b", Score: 0.9},
	}

	buildContext(passages)

	if passages[0].Content != "a" || passages[1].Content != "b" {
		t.Fatalf("input slice reordered: %v", passages)
	}
}

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Azure Deployment Chat", "Azure Deployment Chat"},
		{"quoted", `"Azure Deployment Chat"`, "Azure Deployment Chat"},
		{"newlines", "Azure\nDeployment", "Azure Deployment"},
		{"whitespace", "  Azure Deployment  ", "Azure Deployment"},
		{"too long", "one two three four five six seven eight nine ten eleven", "one two three four five six seven eight nine"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeTitle(tt.in); got != tt.want {
				t.Fatalf("sanitizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

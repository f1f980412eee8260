package agent

import (
	"context"
	"fmt"
	"strings"
)

// MockAgent provides deterministic local replies when no real generation
// backend is configured.
type MockAgent struct{}

func NewMockAgent() *MockAgent { return &MockAgent{} }

func (a *MockAgent) GenerateText(ctx context.Context, prompt string, generationContext map[string]any) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return buildMockReply(prompt, generationContext), nil
}

func (a *MockAgent) StreamText(ctx context.Context, prompt string, generationContext map[string]any, onChunk func(string) error) (string, error) {
	text, err := a.GenerateText(ctx, prompt, generationContext)
	if err != nil {
		return "", err
	}
	if onChunk != nil {
		for _, word := range strings.Fields(text) {
			if err := onChunk(word + " "); err != nil {
				return "", err
			}
		}
	}
	return text, nil
}

func buildMockReply(prompt string, generationContext map[string]any) string {
	base := strings.TrimSpace(prompt)
	if base == "" {
		base = "I am listening."
	}

	name, _ := generationContext["username"].(string)
	if name == "" {
		return fmt.Sprintf("I heard you: %s", base)
	}
	return fmt.Sprintf("Thanks for saying that, %s: %s", name, base)
}

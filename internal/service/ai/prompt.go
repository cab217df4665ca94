package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/lifecraft/profiler/backend/internal/model/chat"
)

// PromptBuilder renders system text, recent history and the current query
// into backend messages.
type PromptBuilder struct {
	template     prompt.ChatTemplate
	historyLimit int
}

// NewPromptBuilder keeps at most historyLimit turns of history; values below
// one default to 10.
func NewPromptBuilder(historyLimit int) *PromptBuilder {
	if historyLimit < 1 {
		historyLimit = 10
	}
	return &PromptBuilder{
		template: prompt.FromMessages(
			schema.FString,
			schema.SystemMessage("{system}"),
			schema.MessagesPlaceholder("history", true),
			schema.UserMessage("{query}"),
		),
		historyLimit: historyLimit,
	}
}

// Build formats the chat template.
func (b *PromptBuilder) Build(ctx context.Context, system string, history []chat.Turn, query string) ([]*schema.Message, error) {
	messages, err := b.template.Format(ctx, map[string]any{
		"system":  system,
		"history": b.historyMessages(history),
		"query":   query,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to format prompt: %w", err)
	}
	return messages, nil
}

func (b *PromptBuilder) historyMessages(turns []chat.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	startIdx := 0
	if len(turns) > b.historyLimit {
		startIdx = len(turns) - b.historyLimit
	}

	history := make([]*schema.Message, 0, len(turns)-startIdx)
	for _, turn := range turns[startIdx:] {
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return history
}

package ai

import (
	"context"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifecraft/profiler/backend/internal/model/chat"
)

func TestPromptBuilderWindowsHistory(t *testing.T) {
	turns := make([]chat.Turn, 0, 6)
	for i := 0; i < 6; i++ {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		turns = append(turns, chat.Turn{Role: role, Content: fmt.Sprintf("turn %d", i)})
	}

	messages, err := NewPromptBuilder(4).Build(context.Background(), "Return JSON like {\"a\": 1}", turns, "next?")
	require.NoError(t, err)
	require.Len(t, messages, 6)

	assert.Equal(t, schema.System, messages[0].Role)
	assert.Equal(t, "Return JSON like {\"a\": 1}", messages[0].Content)
	assert.Equal(t, "turn 2", messages[1].Content)
	assert.Equal(t, schema.Assistant, messages[4].Role)
	assert.Equal(t, schema.User, messages[5].Role)
	assert.Equal(t, "next?", messages[5].Content)
}

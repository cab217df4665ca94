package suggest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifecraft/profiler/backend/internal/config"
	"github.com/lifecraft/profiler/backend/internal/model/chat"
	"github.com/lifecraft/profiler/backend/internal/model/module"
	"github.com/lifecraft/profiler/backend/internal/service/ai"
	"github.com/lifecraft/profiler/backend/internal/service/ai/aitest"
)

func newService(model *aitest.Model, cfg config.AIConfig) *Service {
	return NewService(ai.NewService(model, cfg, nil), module.NewMemoryStore(module.Seed()), 0, nil)
}

func TestSuggestParsesModelOutput(t *testing.T) {
	svc := newService(aitest.NewModel(aitest.Text("```json\n{\"statements\": [\"I build calm places for people.\"]}\n```")), aitest.Config())

	res, err := svc.Suggest(context.Background(), module.Vision, "I like quiet mornings and carpentry.")
	require.NoError(t, err)
	assert.Equal(t, chat.SourceAI, res.Source)
	assert.Equal(t, []any{"I build calm places for people."}, res.Result["statements"])
	assert.Empty(t, res.Message)
}

func TestSuggestFallbacks(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		model := aitest.NewModel(aitest.Text("{}"))
		svc := newService(model, config.AIConfig{Model: "m", APIKey: "short"})

		res, err := svc.Suggest(context.Background(), module.Strengths, "")
		require.NoError(t, err)
		assert.Equal(t, chat.SourceFallback, res.Source)
		assert.Equal(t, ai.MessageNotConfigured, res.Message)
		assert.Contains(t, res.Result, "skills")
		assert.Zero(t, model.Calls())
	})

	t.Run("unparsable", func(t *testing.T) {
		svc := newService(aitest.NewModel(aitest.Text("no json")), aitest.Config())

		res, err := svc.Suggest(context.Background(), module.LifeThemes, "context")
		require.NoError(t, err)
		assert.Equal(t, chat.SourceFallback, res.Source)
		assert.Equal(t, ai.MessageUnparsable, res.Message)
		assert.Contains(t, res.Result, "themes")
	})
}

func TestSuggestUnknownModule(t *testing.T) {
	svc := newService(aitest.NewModel(), aitest.Config())
	_, err := svc.Suggest(context.Background(), "tarot", "")
	assert.ErrorIs(t, err, module.ErrUnknownModule)
}

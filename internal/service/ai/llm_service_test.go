package ai

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifecraft/profiler/backend/internal/config"
	"github.com/lifecraft/profiler/backend/internal/model/chat"
	"github.com/lifecraft/profiler/backend/internal/service/ai/aitest"
)

func prompt() []*schema.Message {
	return []*schema.Message{schema.SystemMessage("sys"), schema.UserMessage("hi")}
}

func drain(t *testing.T, s *Stream) ([]string, error) {
	t.Helper()
	var out []string
	for {
		fragment, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, fragment)
	}
}

func TestStreamForwardsFragments(t *testing.T) {
	fake := aitest.NewModel(aitest.Reply{Chunks: []string{"Hello", "", " there"}})
	svc := NewService(fake, aitest.Config(), nil)

	stream, err := svc.Stream(context.Background(), prompt(), Options{})
	require.NoError(t, err)
	defer stream.Close()

	fragments, err := drain(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", " there"}, fragments)
}

func TestUnavailableMakesNoCall(t *testing.T) {
	cases := map[string]config.AIConfig{
		"missing key":     {Model: "m"},
		"short key":       {Model: "m", APIKey: "short"},
		"placeholder key": {Model: "m", APIKey: "your_api_key_goes_here"},
		"missing model":   {APIKey: "test-key-0123456789"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			fake := aitest.NewModel(aitest.Text("never"))
			svc := NewService(fake, cfg, nil)

			assert.False(t, svc.Available())
			_, err := svc.Stream(context.Background(), prompt(), Options{})
			assert.ErrorIs(t, err, ErrGenerationUnavailable)

			res := Structured(context.Background(), svc, prompt(), Options{}, map[string]string{"k": "fallback"})
			assert.Equal(t, chat.SourceFallback, res.Source)
			assert.Equal(t, MessageNotConfigured, res.Message)
			assert.Equal(t, "fallback", res.Value["k"])

			assert.Zero(t, fake.Calls())
		})
	}
}

func TestNilModelIsUnavailable(t *testing.T) {
	svc := NewService(nil, aitest.Config(), nil)
	assert.False(t, svc.Available())
}

func TestStreamErrorMidway(t *testing.T) {
	fake := aitest.NewModel(aitest.Reply{Chunks: []string{"partial"}, StreamErr: errors.New("connection reset")})
	svc := NewService(fake, aitest.Config(), nil)

	stream, err := svc.Stream(context.Background(), prompt(), Options{})
	require.NoError(t, err)
	defer stream.Close()

	fragments, err := drain(t, stream)
	assert.Equal(t, []string{"partial"}, fragments)
	assert.ErrorIs(t, err, ErrGenerationUnavailable)
}

func TestStreamTimeout(t *testing.T) {
	fake := aitest.NewModel(aitest.Reply{Block: true})
	svc := NewService(fake, aitest.Config(), nil)

	stream, err := svc.Stream(context.Background(), prompt(), Options{Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	defer stream.Close()

	_, err = drain(t, stream)
	assert.ErrorIs(t, err, ErrGenerationUnavailable)
}

func TestStreamCallFailure(t *testing.T) {
	fake := aitest.NewModel(aitest.Reply{Err: errors.New("401 unauthorized")})
	svc := NewService(fake, aitest.Config(), nil)

	_, err := svc.Stream(context.Background(), prompt(), Options{})
	assert.ErrorIs(t, err, ErrGenerationUnavailable)
	assert.Equal(t, 1, fake.Calls())
}

type themes struct {
	Themes []string `json:"themes"`
}

func TestStructured(t *testing.T) {
	fallback := themes{Themes: []string{"Growth"}}

	t.Run("fenced json", func(t *testing.T) {
		svc := NewService(aitest.NewModel(aitest.Words("Sure!\n```json\n{\"themes\": [\"Courage\", \"Care\"]}\n```")), aitest.Config(), nil)
		res := Structured(context.Background(), svc, prompt(), Options{}, fallback)
		assert.Equal(t, chat.SourceAI, res.Source)
		assert.Equal(t, []string{"Courage", "Care"}, res.Value.Themes)
		assert.Empty(t, res.Message)
	})

	t.Run("unparsable", func(t *testing.T) {
		svc := NewService(aitest.NewModel(aitest.Text("I cannot answer in JSON today.")), aitest.Config(), nil)
		res := Structured(context.Background(), svc, prompt(), Options{}, fallback)
		assert.Equal(t, chat.SourceFallback, res.Source)
		assert.Equal(t, MessageUnparsable, res.Message)
		assert.Equal(t, fallback, res.Value)
		assert.ErrorIs(t, res.Err, ErrGenerationMalformed)
	})

	t.Run("backend failure", func(t *testing.T) {
		svc := NewService(aitest.NewModel(aitest.Reply{Err: errors.New("boom")}), aitest.Config(), nil)
		res := Structured(context.Background(), svc, prompt(), Options{}, fallback)
		assert.Equal(t, chat.SourceFallback, res.Source)
		assert.Equal(t, MessageUnavailable, res.Message)
		assert.NotEqual(t, MessageNotConfigured, res.Message)
		assert.True(t, IsFallback(res.Err))
	})
}

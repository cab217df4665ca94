package profiling

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lifecraft/profiler/backend/internal/config"
	"github.com/lifecraft/profiler/backend/internal/model/chat"
	"github.com/lifecraft/profiler/backend/internal/model/module"
	"github.com/lifecraft/profiler/backend/internal/service/ai"
	"github.com/lifecraft/profiler/backend/internal/service/ai/aitest"
	"github.com/lifecraft/profiler/backend/internal/service/extraction"
	"github.com/lifecraft/profiler/backend/internal/store"
)

type harness struct {
	engine  *Engine
	store   store.Store
	model   *aitest.Model
	modules *module.MemoryStore
	logs    *observer.ObservedLogs
}

func newHarness(t *testing.T, st store.Store, aiCfg config.AIConfig, replies ...aitest.Reply) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	if st == nil {
		st = store.NewMemoryStore()
	}
	modules := module.NewMemoryStore(module.Seed())
	model := aitest.NewModel(replies...)
	gen := ai.NewService(model, aiCfg, logger)
	extractor := extraction.NewService(gen, extraction.Config{Timeout: time.Second}, logger)

	engine := NewEngine(modules, st, gen, extractor, Config{
		GenerationTimeout: time.Second,
		PersistTimeout:    time.Second,
		HistoryLimit:      10,
	}, logger)
	return &harness{engine: engine, store: st, model: model, modules: modules, logs: logs}
}

// turn runs one request to completion and returns its events.
func (h *harness) turn(t *testing.T, req TurnRequest) ([]chat.Event, CommitResult) {
	t.Helper()
	run, err := h.engine.HandleTurn(context.Background(), req)
	require.NoError(t, err)

	var events []chat.Event
	for ev := range run.Events {
		events = append(events, ev)
	}
	res, err := run.Wait(context.Background())
	require.NoError(t, err)
	return events, res
}

func last(events []chat.Event) chat.Event {
	return events[len(events)-1]
}

func ofType(events []chat.Event, typ chat.EventType) []chat.Event {
	var out []chat.Event
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

const themesJSON = "```json\n" + `{"summary": "s", "findings": [
	{"name": "Craft", "evidence": ["building model airplanes"], "confidence": 80},
	{"name": "Family", "evidence": ["with my grandfather"], "confidence": 75},
	{"name": "Patience", "evidence": ["every summer"], "confidence": 70}
]}` + "\n```"

var substantiveAnswers = []string{
	"I loved building model airplanes with my grandfather every summer in his garage.",
	"He taught me to be patient and to finish what I started, even when the glue would not hold.",
	"Later I studied engineering because I wanted to keep making things that actually fly.",
	"I still build things on weekends and teach my niece how to sand the wings properly.",
	"Looking back, making things with people I love is what keeps me going.",
}

func TestBootstrapDoesNotIncrement(t *testing.T) {
	h := newHarness(t, nil, aitest.Config(), aitest.Words("Welcome back! Which answer feels most like you?"))

	events, res := h.turn(t, TurnRequest{SessionID: "s1", Module: module.LifeThemes, Message: BootstrapSentinel})
	require.NoError(t, res.Err())

	require.Equal(t, chat.EventMetadata, events[0].Type)
	assert.Equal(t, 0, *events[0].ExchangeCount)
	complete := last(events)
	require.Equal(t, chat.EventComplete, complete.Type)
	assert.Equal(t, "Welcome back! Which answer feels most like you?", complete.FullResponse)
	assert.Equal(t, 0, *complete.ExchangeCount)
	assert.Equal(t, chat.SourceAI, complete.Source)

	session, turns, err := h.engine.Session(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, session.ExchangeCount)
	assert.Equal(t, chat.Stage("conversation"), session.Stage)
	require.Len(t, turns, 1)
	assert.Equal(t, chat.RoleAssistant, turns[0].Role)
}

func TestUnconfiguredBackendFallsBack(t *testing.T) {
	h := newHarness(t, nil, config.AIConfig{}, aitest.Text("never used"))

	events, _ := h.turn(t, TurnRequest{SessionID: "s1", Module: module.LifeThemes, Message: substantiveAnswers[0]})

	def, _ := h.modules.FindByID(module.LifeThemes)
	complete := last(events)
	require.Equal(t, chat.EventComplete, complete.Type)
	assert.Equal(t, chat.SourceFallback, complete.Source)
	assert.Equal(t, def.FallbackQuestion(1), complete.FullResponse)
	assert.Empty(t, ofType(events, chat.EventError))
	assert.Zero(t, h.model.Calls())
}

func TestExtractionCommittedOnce(t *testing.T) {
	h := newHarness(t, nil, aitest.Config(),
		aitest.Text("What did he teach you?"),
		aitest.Text("How did that shape your studies?"),
		aitest.Words("Thank you. Here is what I noticed."),
		aitest.Text(themesJSON),
		aitest.Text("Does that resonate?"),
		aitest.Text("Thank you for sharing."),
	)
	req := func(i int) TurnRequest {
		return TurnRequest{SessionID: "s1", Module: module.LifeThemes, Message: substantiveAnswers[i]}
	}

	for i := 0; i < 2; i++ {
		events, _ := h.turn(t, req(i))
		assert.Empty(t, ofType(events, chat.EventArtifact), "turn %d", i+1)
	}

	events, res := h.turn(t, req(2))
	require.NoError(t, res.Err())
	artifacts := ofType(events, chat.EventArtifact)
	require.Len(t, artifacts, 1)
	assert.Equal(t, chat.SourceAI, artifacts[0].Artifact.Source)
	assert.Equal(t, "Craft", artifacts[0].Artifact.Findings[0].Name)
	assert.Equal(t, chat.EventComplete, last(events).Type, "complete follows the artifact")

	session, _, err := h.engine.Session(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, session.Extracted)
	assert.Equal(t, 3, session.ExchangeCount)

	events, _ = h.turn(t, req(3))
	assert.Empty(t, ofType(events, chat.EventArtifact))
	assert.True(t, *last(events).CanContinue)

	events, _ = h.turn(t, req(4))
	assert.False(t, *last(events).CanContinue, "max exchanges reached")

	session, turns, err := h.engine.Session(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Craft", session.Artifact.Findings[0].Name)
	assert.Equal(t, 5, session.ExchangeCount)
	assert.Len(t, turns, 10)

	_, err = h.engine.HandleTurn(context.Background(), req(0))
	assert.ErrorIs(t, err, ErrDialogueClosed)
}

func TestHandleTurnValidation(t *testing.T) {
	h := newHarness(t, nil, aitest.Config(), aitest.Text("hi"))
	ctx := context.Background()

	_, err := h.engine.HandleTurn(ctx, TurnRequest{Module: module.Vision, Message: "hello"})
	assert.ErrorIs(t, err, ErrMissingSessionID)

	_, err = h.engine.HandleTurn(ctx, TurnRequest{SessionID: "s1", Module: module.Vision, Message: "   "})
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = h.engine.HandleTurn(ctx, TurnRequest{SessionID: "s1", Module: "astrology", Message: "hello"})
	assert.ErrorIs(t, err, ErrUnknownModule)

	_, err = h.engine.HandleTurn(ctx, TurnRequest{SessionID: "s1", Message: "hello"})
	assert.ErrorIs(t, err, ErrUnknownModule, "new sessions need a module")

	h.turn(t, TurnRequest{SessionID: "s1", Module: module.Vision, Message: "I picture a small studio by the sea."})
	_, err = h.engine.HandleTurn(ctx, TurnRequest{SessionID: "s1", Module: module.Strengths, Message: "hello"})
	assert.ErrorIs(t, err, ErrModuleMismatch)

	assert.Equal(t, 1, h.model.Calls(), "rejected turns never reach the backend")
}

func TestPartialFailureKeepsText(t *testing.T) {
	h := newHarness(t, nil, aitest.Config(), aitest.Reply{
		Chunks:    []string{"Hello ", "there"},
		StreamErr: errors.New("connection reset"),
	})

	events, _ := h.turn(t, TurnRequest{SessionID: "s1", Module: module.Strengths, Message: substantiveAnswers[0]})

	require.Len(t, ofType(events, chat.EventContent), 2)
	errs := ofType(events, chat.EventError)
	require.Len(t, errs, 1)
	assert.NotContains(t, errs[0].Message, "connection reset")

	complete := last(events)
	assert.Equal(t, chat.EventComplete, complete.Type)
	assert.Equal(t, "Hello there", complete.FullResponse)

	_, turns, err := h.engine.Session(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "Hello there", turns[1].Content)
}

func TestCallerDisconnectPersistsPartial(t *testing.T) {
	h := newHarness(t, nil, aitest.Config(), aitest.Reply{
		Chunks: []string{"one ", "two ", "three ", "four ", "five"},
		Delay:  50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	run, err := h.engine.HandleTurn(ctx, TurnRequest{SessionID: "s1", Module: module.Strengths, Message: substantiveAnswers[0]})
	require.NoError(t, err)

	contents := 0
	for ev := range run.Events {
		if ev.Type == chat.EventContent {
			contents++
			if contents == 2 {
				cancel()
			}
		}
	}

	res, err := run.Wait(context.Background())
	require.NoError(t, err)
	require.NoError(t, res.Err())

	session, turns, err := h.engine.Session(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, session.ExchangeCount)
	require.Len(t, turns, 2)
	assert.True(t, strings.HasPrefix(turns[1].Content, "one two"))
	assert.NotEqual(t, "one two three four five", turns[1].Content)
}

type failingStore struct {
	store.Store
}

func (failingStore) AppendTurns(context.Context, string, []chat.Turn) error {
	return errors.New("disk full")
}

func TestPersistenceFailureDoesNotBreakStream(t *testing.T) {
	h := newHarness(t, failingStore{store.NewMemoryStore()}, aitest.Config(), aitest.Text("Tell me more."))

	events, res := h.turn(t, TurnRequest{SessionID: "s1", Module: module.Strengths, Message: substantiveAnswers[0]})

	assert.Equal(t, chat.EventComplete, last(events).Type)
	assert.Error(t, res.TurnsErr)
	assert.NoError(t, res.CursorErr)
	assert.Equal(t, 1, h.logs.FilterMessage("failed to persist turns").Len())
}

func TestConfirmIsIdempotent(t *testing.T) {
	h := newHarness(t, nil, aitest.Config())
	ctx := context.Background()

	_, err := h.engine.CreateSession(ctx, module.LifeThemes, "s1")
	require.NoError(t, err)

	_, _, err = h.engine.Confirm(ctx, "s1")
	assert.ErrorIs(t, err, ErrConfirmNotReady, "themes must be extracted first")

	require.NoError(t, h.store.UpsertSession(ctx, "s1", store.Patch{Artifact: &chat.Artifact{Kind: "themes", Source: chat.SourceAI}}))

	session, changed, err := h.engine.Confirm(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, chat.Stage("findings"), session.Stage)

	session, changed, err = h.engine.Confirm(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, chat.Stage("findings"), session.Stage)

	_, _, err = h.engine.Confirm(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestConcurrentTurnsAreSerialized(t *testing.T) {
	h := newHarness(t, nil, aitest.Config(), aitest.Reply{Chunks: []string{"ok ", "next?"}, Delay: 10 * time.Millisecond})
	_, err := h.engine.CreateSession(context.Background(), module.Vision, "s1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.turn(t, TurnRequest{SessionID: "s1", Message: substantiveAnswers[i]})
		}(i)
	}
	wg.Wait()

	session, turns, err := h.engine.Session(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, session.ExchangeCount)
	require.Len(t, turns, 6)
	for i := 0; i < 6; i += 2 {
		assert.Equal(t, chat.RoleUser, turns[i].Role)
		assert.Equal(t, chat.RoleAssistant, turns[i+1].Role)
	}
}

func TestReset(t *testing.T) {
	h := newHarness(t, nil, aitest.Config(), aitest.Text("hi"))
	h.turn(t, TurnRequest{SessionID: "s1", Module: module.Vision, Message: substantiveAnswers[0]})

	require.NoError(t, h.engine.Reset(context.Background(), "s1"))
	_, _, err := h.engine.Session(context.Background(), "s1")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
	assert.ErrorIs(t, h.engine.Reset(context.Background(), "s1"), store.ErrSessionNotFound)
}

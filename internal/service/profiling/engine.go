// Package profiling runs staged discovery dialogues: it decides the stage,
// streams the generated reply, extracts findings when due and hands the
// result to the persistence gateway.
package profiling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lifecraft/profiler/backend/internal/analysis/stage"
	"github.com/lifecraft/profiler/backend/internal/model/chat"
	"github.com/lifecraft/profiler/backend/internal/model/module"
	"github.com/lifecraft/profiler/backend/internal/service/ai"
	"github.com/lifecraft/profiler/backend/internal/store"
	"github.com/lifecraft/profiler/backend/internal/telemetry"
)

// BootstrapSentinel as the message asks for the opening line without a user
// turn.
const BootstrapSentinel = "__INIT__"

const (
	eventBuffer       = 32
	partialFailureMsg = "The response was interrupted. Please try again."
)

// Extractor produces the artifact once extraction is due. It must not
// return nil.
type Extractor interface {
	Extract(ctx context.Context, def module.Definition, transcript []chat.Turn, externalContext string) *chat.Artifact
}

// Config bounds the engine's backend and persistence work.
type Config struct {
	GenerationTimeout time.Duration
	PersistTimeout    time.Duration
	HistoryLimit      int
	MaxTokens         int
}

// TurnRequest is one inbound turn.
type TurnRequest struct {
	SessionID string
	Module    string
	Message   string
	Bootstrap bool
	// StageHint is what the caller believes the stage is. Stored state wins.
	StageHint chat.Stage
	Context   string
}

// Run is a turn in progress. Events is closed after the complete event.
type Run struct {
	Events <-chan chat.Event

	finished chan struct{}
	task     *Task
}

// Wait blocks until the run handed its commit to the gateway and the commit
// finished.
func (r *Run) Wait(ctx context.Context) (CommitResult, error) {
	select {
	case <-r.finished:
	case <-ctx.Done():
		return CommitResult{}, ctx.Err()
	}
	return r.task.Wait(ctx)
}

// Engine is the session orchestrator.
type Engine struct {
	modules   module.Store
	store     store.Store
	gen       ai.Generator
	extractor Extractor
	gateway   *Gateway
	prompts   *ai.PromptBuilder
	locks     *keyedLock
	cfg       Config
	logger    *zap.Logger
}

// NewEngine wires the orchestrator.
func NewEngine(modules module.Store, st store.Store, gen ai.Generator, extractor Extractor, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 10 * time.Second
	}
	return &Engine{
		modules:   modules,
		store:     st,
		gen:       gen,
		extractor: extractor,
		gateway:   NewGateway(st, logger),
		prompts:   ai.NewPromptBuilder(cfg.HistoryLimit),
		locks:     newKeyedLock(),
		cfg:       cfg,
		logger:    logger.Named("engine"),
	}
}

// turnState is what a run works from once validation passed.
type turnState struct {
	def        module.Definition
	session    chat.Session
	history    []chat.Turn
	userTurn   *chat.Turn
	exchanges  int
	decision   stage.Decision
	bootstrap  bool
	message    string
	external   string
	releaseKey func()
}

// HandleTurn validates the request, takes the session lock and starts the
// run. Caller errors are returned before any backend call. The lock is held
// until the run's commit finished.
func (e *Engine) HandleTurn(ctx context.Context, req TurnRequest) (*Run, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	message := strings.TrimSpace(req.Message)
	bootstrap := req.Bootstrap || message == BootstrapSentinel
	if !bootstrap && message == "" {
		return nil, ErrEmptyInput
	}
	moduleID := strings.TrimSpace(req.Module)
	if moduleID != "" {
		if _, ok := e.modules.FindByID(moduleID); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownModule, moduleID)
		}
	}

	release, err := e.locks.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state, err := e.prepare(ctx, sessionID, moduleID, message, bootstrap)
	if err != nil {
		release()
		return nil, err
	}
	state.external = req.Context
	state.releaseKey = release

	if req.StageHint != "" && req.StageHint != state.session.Stage {
		e.logger.Debug("ignoring stale stage hint",
			zap.String("session", sessionID),
			zap.String("hint", string(req.StageHint)),
			zap.String("stored", string(state.session.Stage)))
	}

	events := make(chan chat.Event, eventBuffer)
	run := &Run{Events: events, finished: make(chan struct{})}
	go e.run(ctx, state, events, run)
	return run, nil
}

func (e *Engine) prepare(ctx context.Context, sessionID, moduleID, message string, bootstrap bool) (*turnState, error) {
	state := &turnState{bootstrap: bootstrap}

	session, err := e.store.GetSession(ctx, sessionID)
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		if moduleID == "" {
			return nil, fmt.Errorf("%w: module is required for a new session", ErrUnknownModule)
		}
		session = chat.Session{ID: sessionID, Module: moduleID}
	case err != nil:
		return nil, fmt.Errorf("failed to load session: %w", err)
	default:
		if moduleID != "" && moduleID != session.Module {
			return nil, fmt.Errorf("%w: %s is a %s session", ErrModuleMismatch, sessionID, session.Module)
		}
		history, err := e.store.LoadTranscript(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load transcript: %w", err)
		}
		state.history = history
	}

	def, ok := e.modules.FindByID(session.Module)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, session.Module)
	}
	if session.Stage == "" {
		session.Stage = def.Policy.Initial()
	}
	state.def = def
	state.session = session

	if !bootstrap && !def.Policy.Accepts(session.Stage, session.ExchangeCount) {
		return nil, ErrDialogueClosed
	}

	state.exchanges = session.ExchangeCount
	transcript := state.history
	if !bootstrap {
		state.exchanges++
		state.message = message
		state.userTurn = &chat.Turn{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Role:      chat.RoleUser,
			Content:   message,
			Stage:     session.Stage,
			CreatedAt: time.Now().UTC(),
		}
		transcript = append(append(make([]chat.Turn, 0, len(state.history)+1), state.history...), *state.userTurn)
	}

	state.decision = def.Policy.Decide(stage.Input{
		Stage:            session.Stage,
		Transcript:       transcript,
		ExchangeCount:    state.exchanges,
		AlreadyExtracted: session.Extracted,
		Bootstrap:        bootstrap,
	})
	return state, nil
}

func (e *Engine) run(ctx context.Context, st *turnState, events chan<- chat.Event, run *Run) {
	start := time.Now()
	defer close(events)
	defer close(run.finished)

	def, decision := st.def, st.decision
	log := e.logger.With(zap.String("session", st.session.ID), zap.String("module", def.ID))

	kind := "user"
	if st.bootstrap {
		kind = "bootstrap"
	}
	telemetry.TurnsTotal.WithLabelValues(def.ID, kind).Inc()

	emit := func(ev chat.Event) {
		if ctx.Err() != nil {
			return
		}
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	emit(chat.MetadataEvent(st.session.ID, def.ID, decision.EffectiveStage, st.exchanges))

	full, source, canceled := e.generate(ctx, st, emit, log)

	var artifact *chat.Artifact
	if decision.ShouldExtract && !canceled {
		transcript := st.history
		if st.userTurn != nil {
			transcript = append(append([]chat.Turn(nil), st.history...), *st.userTurn)
		}
		artifact = e.extractor.Extract(ctx, def, transcript, st.external)
		if ctx.Err() != nil {
			// 调用方已断开，结果可能只是被取消后的回退，不提交。
			artifact = nil
		} else {
			emit(chat.ArtifactEvent(artifact))
		}
	}

	emit(chat.CompleteEvent(full, decision.EffectiveStage, st.exchanges, source, decision.CanContinue))
	telemetry.StreamDuration.WithLabelValues(def.ID).Observe(time.Since(start).Seconds())

	commit := Commit{
		SessionID:     st.session.ID,
		Module:        def.ID,
		Stage:         decision.EffectiveStage,
		ExchangeCount: st.exchanges,
		Artifact:      artifact,
	}
	if st.userTurn != nil {
		commit.Turns = append(commit.Turns, *st.userTurn)
	}
	if full != "" {
		commit.Turns = append(commit.Turns, chat.Turn{
			ID:        uuid.NewString(),
			SessionID: st.session.ID,
			Role:      chat.RoleAssistant,
			Content:   full,
			Stage:     decision.EffectiveStage,
			CreatedAt: time.Now().UTC(),
		})
	}

	// 调用方断开后仍需落库，脱离其取消信号但保留超时。
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.PersistTimeout)
	task := e.gateway.Dispatch(persistCtx, commit)
	run.task = task
	go func() {
		<-task.Done()
		cancel()
		st.releaseKey()
		if err := task.result.Err(); err != nil {
			log.Error("turn commit incomplete", zap.Error(err))
		}
	}()
}

// generate streams the reply, forwarding fragments as they arrive. It
// returns the text to persist, where it came from, and whether the caller
// went away.
func (e *Engine) generate(ctx context.Context, st *turnState, emit func(chat.Event), log *zap.Logger) (string, chat.Source, bool) {
	def := st.def
	fallback := func(reason string, err error) (string, chat.Source, bool) {
		telemetry.GenerationFallbacks.WithLabelValues(def.ID, reason).Inc()
		log.Warn("generation degraded to fallback", zap.String("reason", reason), zap.Error(err))
		text := fallbackReply(def, st.decision, st.bootstrap, st.exchanges)
		emit(chat.ContentEvent(text))
		return text, chat.SourceFallback, false
	}

	if !e.gen.Available() {
		return fallback("unavailable", ai.ErrGenerationUnavailable)
	}

	query := st.message
	if st.bootstrap {
		query = bootstrapQuery
	}
	messages, err := e.prompts.Build(ctx, systemPrompt(def, st.session, st.decision, st.bootstrap, st.external), st.history, query)
	if err != nil {
		return fallback("failed", err)
	}

	stream, err := e.gen.Stream(ctx, messages, ai.Options{
		Timeout:   e.cfg.GenerationTimeout,
		MaxTokens: e.cfg.MaxTokens,
	})
	if err != nil {
		if ctx.Err() != nil {
			telemetry.GenerationFallbacks.WithLabelValues(def.ID, "canceled").Inc()
			return "", chat.SourceAI, true
		}
		return fallback("failed", err)
	}
	defer stream.Close()

	var builder strings.Builder
	for {
		if ctx.Err() != nil {
			telemetry.GenerationFallbacks.WithLabelValues(def.ID, "canceled").Inc()
			return builder.String(), chat.SourceAI, true
		}
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				telemetry.GenerationFallbacks.WithLabelValues(def.ID, "canceled").Inc()
				return builder.String(), chat.SourceAI, true
			}
			if builder.Len() == 0 {
				return fallback("failed", err)
			}
			telemetry.GenerationFallbacks.WithLabelValues(def.ID, "partial").Inc()
			log.Warn("generation failed after partial output", zap.Int("length", builder.Len()), zap.Error(err))
			emit(chat.ErrorEvent(partialFailureMsg))
			return builder.String(), chat.SourceAI, false
		}
		builder.WriteString(fragment)
		emit(chat.ContentEvent(fragment))
	}

	if builder.Len() == 0 {
		return fallback("failed", errors.New("empty response"))
	}
	return builder.String(), chat.SourceAI, false
}

// CreateSession starts a session explicitly. An empty id gets a new one.
func (e *Engine) CreateSession(ctx context.Context, moduleID, sessionID string) (chat.Session, error) {
	def, ok := e.modules.FindByID(strings.TrimSpace(moduleID))
	if !ok {
		return chat.Session{}, fmt.Errorf("%w: %s", ErrUnknownModule, moduleID)
	}
	if sessionID = strings.TrimSpace(sessionID); sessionID == "" {
		sessionID = uuid.NewString()
	}
	session := chat.Session{ID: sessionID, Module: def.ID, Stage: def.Policy.Initial()}
	if err := e.store.CreateSession(ctx, session); err != nil {
		return chat.Session{}, err
	}
	return e.store.GetSession(ctx, sessionID)
}

// Session returns the stored state and transcript.
func (e *Engine) Session(ctx context.Context, sessionID string) (chat.Session, []chat.Turn, error) {
	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return chat.Session{}, nil, err
	}
	turns, err := e.store.LoadTranscript(ctx, sessionID)
	if err != nil {
		return chat.Session{}, nil, err
	}
	return session, turns, nil
}

// Confirm applies the module's explicit confirmation transition. Confirming
// twice is a no-op; changed reports whether this call moved the stage.
func (e *Engine) Confirm(ctx context.Context, sessionID string) (chat.Session, bool, error) {
	release, err := e.locks.Acquire(ctx, sessionID)
	if err != nil {
		return chat.Session{}, false, err
	}
	defer release()

	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return chat.Session{}, false, err
	}
	def, ok := e.modules.FindByID(session.Module)
	if !ok {
		return chat.Session{}, false, fmt.Errorf("%w: %s", ErrUnknownModule, session.Module)
	}

	next, changed, ok := def.Policy.Confirm(session.Stage, session.Extracted)
	if !ok {
		return session, false, ErrConfirmNotReady
	}
	if !changed {
		return session, false, nil
	}
	if err := e.store.UpsertSession(ctx, sessionID, store.Patch{Stage: &next}); err != nil {
		return chat.Session{}, false, fmt.Errorf("failed to confirm stage: %w", err)
	}
	session.Stage = next
	e.logger.Info("session confirmed", zap.String("session", sessionID), zap.String("stage", string(next)))
	return session, true, nil
}

// Reset deletes the session and its transcript.
func (e *Engine) Reset(ctx context.Context, sessionID string) error {
	release, err := e.locks.Acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()
	return e.store.DeleteSession(ctx, sessionID)
}

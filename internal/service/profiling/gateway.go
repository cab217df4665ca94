package profiling

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lifecraft/profiler/backend/internal/model/chat"
	"github.com/lifecraft/profiler/backend/internal/store"
	"github.com/lifecraft/profiler/backend/internal/telemetry"
)

// Commit is everything one orchestrator run writes.
type Commit struct {
	SessionID     string
	Module        string
	Turns         []chat.Turn
	Stage         chat.Stage
	ExchangeCount int
	Artifact      *chat.Artifact
	// Override replaces an existing artifact instead of skipping the write.
	Override bool
}

// CommitResult reports each write separately.
type CommitResult struct {
	CursorErr   error
	TurnsErr    error
	ArtifactErr error
	// ArtifactSkipped is set when an artifact already existed.
	ArtifactSkipped bool
}

// Err joins the failed writes, nil when everything succeeded.
func (r CommitResult) Err() error {
	return errors.Join(r.CursorErr, r.TurnsErr, r.ArtifactErr)
}

// Gateway is the only writer of sessions and transcripts.
type Gateway struct {
	store  store.Store
	logger *zap.Logger
}

// NewGateway wraps the store.
func NewGateway(st store.Store, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{store: st, logger: logger.Named("gateway")}
}

// Commit applies the cursor, the turns and the artifact as independent
// writes. The cursor goes first because it creates the session row.
func (g *Gateway) Commit(ctx context.Context, c Commit) CommitResult {
	var res CommitResult
	log := g.logger.With(zap.String("session", c.SessionID), zap.String("module", c.Module))

	stage := c.Stage
	count := c.ExchangeCount
	if err := g.store.UpsertSession(ctx, c.SessionID, store.Patch{
		Module:        c.Module,
		Stage:         &stage,
		ExchangeCount: &count,
	}); err != nil {
		res.CursorErr = fmt.Errorf("cursor write: %w", err)
		telemetry.PersistenceFailures.WithLabelValues("cursor").Inc()
		log.Error("failed to persist stage cursor", zap.Error(err))
	}

	if len(c.Turns) > 0 {
		if err := g.store.AppendTurns(ctx, c.SessionID, c.Turns); err != nil {
			res.TurnsErr = fmt.Errorf("turns write: %w", err)
			telemetry.PersistenceFailures.WithLabelValues("turns").Inc()
			log.Error("failed to persist turns", zap.Int("turns", len(c.Turns)), zap.Error(err))
		}
	}

	if c.Artifact != nil {
		err := g.store.UpsertSession(ctx, c.SessionID, store.Patch{
			Artifact:         c.Artifact,
			OverrideArtifact: c.Override,
		})
		switch {
		case errors.Is(err, store.ErrArtifactExists):
			res.ArtifactSkipped = true
			log.Warn("artifact already committed, keeping the existing one")
		case err != nil:
			res.ArtifactErr = fmt.Errorf("artifact write: %w", err)
			telemetry.PersistenceFailures.WithLabelValues("artifact").Inc()
			log.Error("failed to persist artifact", zap.Error(err))
		default:
			telemetry.ExtractionsTotal.WithLabelValues(c.Module, string(c.Artifact.Source)).Inc()
		}
	}

	return res
}

// Dispatch runs Commit in the background.
func (g *Gateway) Dispatch(ctx context.Context, c Commit) *Task {
	task := &Task{done: make(chan struct{})}
	go func() {
		defer close(task.done)
		task.result = g.Commit(ctx, c)
	}()
	return task
}

// Package store persists sessions and their transcripts. Every method is an
// independent, per-row atomic write; there are no cross-call transactions.
package store

import (
	"context"
	"errors"

	"github.com/lifecraft/profiler/backend/internal/model/chat"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrArtifactExists  = errors.New("session already has an artifact")
)

// Patch is a partial session update. Nil fields are left untouched.
type Patch struct {
	// Module, when set, lets UpsertSession create the session if missing.
	Module string
	Stage  *chat.Stage
	// ExchangeCount never lowers the stored counter.
	ExchangeCount *int
	// Artifact also marks the session as extracted. It is rejected with
	// ErrArtifactExists when one is already stored, unless OverrideArtifact.
	Artifact         *chat.Artifact
	OverrideArtifact bool
}

// Empty reports whether the patch carries no field updates.
func (p Patch) Empty() bool {
	return p.Stage == nil && p.ExchangeCount == nil && p.Artifact == nil
}

// Store is the persistence collaborator of the profiling engine.
type Store interface {
	GetSession(ctx context.Context, id string) (chat.Session, error)
	CreateSession(ctx context.Context, session chat.Session) error
	UpsertSession(ctx context.Context, id string, patch Patch) error
	AppendTurns(ctx context.Context, id string, turns []chat.Turn) error
	LoadTranscript(ctx context.Context, id string) ([]chat.Turn, error)
	DeleteSession(ctx context.Context, id string) error
	Close() error
}

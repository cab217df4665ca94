package ai

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/schema"

	"github.com/lifecraft/profiler/backend/internal/model/chat"
)

// StructuredResult is the outcome of a structured call. Err is kept for
// logging only; Value is always usable.
type StructuredResult[T any] struct {
	Value   T
	Source  chat.Source
	Message string
	Err     error
}

// Structured asks the backend for JSON and decodes it into T. Any failure
// yields fallback with Source set to fallback and a caller-facing message;
// it never returns an error.
func Structured[T any](ctx context.Context, g Generator, messages []*schema.Message, opts Options, fallback T) StructuredResult[T] {
	if !g.Available() {
		return StructuredResult[T]{
			Value:   fallback,
			Source:  chat.SourceFallback,
			Message: MessageNotConfigured,
			Err:     ErrGenerationUnavailable,
		}
	}

	raw, err := g.Complete(ctx, messages, opts)
	if err != nil {
		return StructuredResult[T]{
			Value:   fallback,
			Source:  chat.SourceFallback,
			Message: MessageUnavailable,
			Err:     err,
		}
	}

	var value T
	if err := DecodeJSON(raw, &value); err != nil {
		return StructuredResult[T]{
			Value:   fallback,
			Source:  chat.SourceFallback,
			Message: MessageUnparsable,
			Err:     err,
		}
	}
	return StructuredResult[T]{Value: value, Source: chat.SourceAI}
}

// IsFallback reports whether err should be absorbed into fallback content.
func IsFallback(err error) bool {
	return errors.Is(err, ErrGenerationUnavailable) || errors.Is(err, ErrGenerationMalformed)
}

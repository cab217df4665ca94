package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/lifecraft/profiler/backend/internal/config"
)

var (
	// ErrGenerationUnavailable covers missing configuration, transport
	// failures and timeouts. Callers substitute fallback content.
	ErrGenerationUnavailable = errors.New("generation backend unavailable")
	// ErrGenerationMalformed means the backend answered but the output could
	// not be parsed into the requested shape.
	ErrGenerationMalformed = errors.New("generation output malformed")
)

// Caller-facing messages attached to fallback results.
const (
	MessageNotConfigured = "AI service not configured. Showing suggested content instead."
	MessageUnavailable   = "AI service temporarily unavailable. Showing suggested content instead."
	MessageUnparsable    = "AI response could not be parsed. Showing suggested content instead."
)

const defaultTimeout = 60 * time.Second

// Options tune one generation call.
type Options struct {
	MaxTokens   int
	Temperature *float32
	// Timeout bounds the whole call including stream consumption.
	Timeout time.Duration
}

// Generator is the contract consumers of the adapter depend on.
type Generator interface {
	Available() bool
	Stream(ctx context.Context, messages []*schema.Message, opts Options) (*Stream, error)
	Complete(ctx context.Context, messages []*schema.Message, opts Options) (string, error)
}

// Service wraps the chat model with availability checks and timeouts.
type Service struct {
	chatModel model.BaseChatModel
	cfg       config.AIConfig
	logger    *zap.Logger
}

// NewService creates a new AI service instance. chatModel may be nil, in
// which case every call reports ErrGenerationUnavailable.
func NewService(chatModel model.BaseChatModel, cfg config.AIConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		logger:    logger.Named("ai"),
	}
}

// Available reports whether a backend call may be attempted at all.
func (s *Service) Available() bool {
	return s.chatModel != nil && s.cfg.Enabled()
}

// Stream starts a streaming generation. It never touches the network when
// the backend is not configured.
func (s *Service) Stream(ctx context.Context, messages []*schema.Message, opts Options) (*Stream, error) {
	if !s.Available() {
		return nil, fmt.Errorf("%w: not configured", ErrGenerationUnavailable)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)

	reader, err := s.chatModel.Stream(callCtx, messages, s.modelOptions(opts)...)
	if err != nil {
		cancel()
		s.logger.Warn("stream call failed", zap.Error(err), zap.Int("messages", len(messages)))
		return nil, classify(callCtx, err)
	}
	return &Stream{reader: reader, ctx: callCtx, cancel: cancel}, nil
}

// Complete runs a streaming call to the end and returns the concatenated text.
func (s *Service) Complete(ctx context.Context, messages []*schema.Message, opts Options) (string, error) {
	stream, err := s.Stream(ctx, messages, opts)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var builder strings.Builder
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		builder.WriteString(fragment)
	}

	text := builder.String()
	s.logger.Debug("completion finished", zap.Int("length", len(text)))
	return text, nil
}

func (s *Service) modelOptions(opts Options) []model.Option {
	options := make([]model.Option, 0, 3)
	if s.cfg.Model != "" {
		options = append(options, model.WithModel(s.cfg.Model))
	}
	if opts.MaxTokens > 0 {
		options = append(options, model.WithMaxTokens(opts.MaxTokens))
	}
	if opts.Temperature != nil {
		options = append(options, model.WithTemperature(*opts.Temperature))
	}
	return options
}

// Stream yields text fragments of one generation.
type Stream struct {
	reader *schema.StreamReader[*schema.Message]
	ctx    context.Context
	cancel context.CancelFunc
}

// Recv returns the next non-empty fragment, or io.EOF once the backend is
// done. Any other error wraps ErrGenerationUnavailable.
func (s *Stream) Recv() (string, error) {
	for {
		chunk, err := s.reader.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", classify(s.ctx, err)
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		return chunk.Content, nil
	}
}

// Close stops the backend call and releases the reader.
func (s *Stream) Close() {
	s.cancel()
	s.reader.Close()
}

func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: timed out: %v", ErrGenerationUnavailable, err)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%w: %w", ErrGenerationUnavailable, context.Canceled)
	}
	return fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
}

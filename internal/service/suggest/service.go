// Package suggest answers one-shot auto-fill requests with structured
// suggestions for a module.
package suggest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/lifecraft/profiler/backend/internal/model/chat"
	"github.com/lifecraft/profiler/backend/internal/model/module"
	"github.com/lifecraft/profiler/backend/internal/service/ai"
)

// Result is the response body of a suggestion request.
type Result struct {
	Result  map[string]any `json:"result"`
	Source  chat.Source    `json:"source"`
	Message string         `json:"message,omitempty"`
}

// Service 生成非流式的结构化建议。
type Service struct {
	gen     ai.Generator
	modules module.Store
	timeout time.Duration
	logger  *zap.Logger
}

// NewService creates the suggestion service.
func NewService(gen ai.Generator, modules module.Store, timeout time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{gen: gen, modules: modules, timeout: timeout, logger: logger.Named("suggest")}
}

// Suggest returns model suggestions, or the module's static suggestions with
// source fallback. Only an unknown module is an error.
func (s *Service) Suggest(ctx context.Context, moduleID, userContext string) (Result, error) {
	def, ok := s.modules.FindByID(strings.TrimSpace(moduleID))
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", module.ErrUnknownModule, moduleID)
	}

	prompt := strings.TrimSpace(userContext)
	if prompt == "" {
		prompt = "No additional context was provided."
	}
	messages := []*schema.Message{
		schema.SystemMessage(def.Suggestion.Instructions + "\nRespond with JSON only."),
		schema.UserMessage(prompt),
	}

	res := ai.Structured(ctx, s.gen, messages, ai.Options{Timeout: s.timeout}, copyFallback(def.Suggestion.Fallback))
	if res.Err != nil {
		s.logger.Warn("suggestion degraded to fallback", zap.String("module", def.ID), zap.Error(res.Err))
	}
	if res.Value == nil {
		res.Value = copyFallback(def.Suggestion.Fallback)
	}
	return Result{Result: res.Value, Source: res.Source, Message: res.Message}, nil
}

func copyFallback(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Package extraction turns a finished dialogue into a module-shaped artifact.
// It always returns something usable: when the backend fails or answers with
// an invalid shape, the artifact is derived from the user's own words.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/lifecraft/profiler/backend/internal/analysis/evidence"
	"github.com/lifecraft/profiler/backend/internal/model/chat"
	"github.com/lifecraft/profiler/backend/internal/model/module"
	"github.com/lifecraft/profiler/backend/internal/service/ai"
)

// ErrInvalidShape is returned by Validate when the model output cannot be
// used as an artifact.
var ErrInvalidShape = errors.New("extraction output has an invalid shape")

const fallbackSummary = "These findings were drawn from keywords in your own answers because the AI analysis was unavailable."

// Config 控制抽取调用的超时与输出长度。
type Config struct {
	Timeout   time.Duration
	MaxTokens int
}

// Service 调用大模型抽取结构化发现，失败时回退到关键词证据。
type Service struct {
	gen    ai.Generator
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates the extraction service.
func NewService(gen ai.Generator, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		gen:    gen,
		cfg:    cfg,
		logger: logger.Named("extraction"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Extract never returns nil.
func (s *Service) Extract(ctx context.Context, def module.Definition, transcript []chat.Turn, externalContext string) *chat.Artifact {
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt(def)),
		schema.UserMessage(userPrompt(transcript, externalContext)),
	}

	res := ai.Structured(ctx, s.gen, messages, ai.Options{
		Timeout:   s.cfg.Timeout,
		MaxTokens: s.cfg.MaxTokens,
	}, Payload{})
	if res.Source != chat.SourceAI {
		s.logger.Warn("extraction generation failed, using fallback",
			zap.String("module", def.ID), zap.Error(res.Err))
		return s.fallback(def, transcript)
	}

	artifact, err := Validate(def.Extraction, res.Value)
	if err != nil {
		s.logger.Warn("extraction output rejected, using fallback",
			zap.String("module", def.ID), zap.Error(err))
		return s.fallback(def, transcript)
	}
	artifact.GeneratedAt = s.now()
	return artifact
}

func (s *Service) fallback(def module.Definition, transcript []chat.Turn) *chat.Artifact {
	artifact := Fallback(def.Extraction, transcript)
	artifact.GeneratedAt = s.now()
	return artifact
}

// Payload is the JSON shape requested from the model.
type Payload struct {
	Summary  string           `json:"summary"`
	Findings []FindingPayload `json:"findings"`
}

// FindingPayload is one finding as the model reports it.
type FindingPayload struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Evidence    []string `json:"evidence"`
	Confidence  *float64 `json:"confidence"`
}

// Validate checks the model output against the module's extraction rules.
// Unusable findings are dropped first; the remainder must still satisfy the
// minimum count and category coverage.
func Validate(cfg module.Extraction, p Payload) (*chat.Artifact, error) {
	allowed := make(map[string]bool, len(cfg.Categories))
	for _, c := range cfg.Categories {
		allowed[c] = true
	}

	seen := make(map[string]bool, len(p.Findings))
	findings := make([]chat.Finding, 0, len(p.Findings))
	for _, raw := range p.Findings {
		name := strings.TrimSpace(raw.Name)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		category := strings.ToLower(strings.TrimSpace(raw.Category))
		if len(allowed) > 0 && !allowed[category] {
			continue
		}
		quotes := cleanEvidence(raw.Evidence)
		if cfg.RequireEvidence && len(quotes) == 0 {
			continue
		}
		seen[strings.ToLower(name)] = true
		findings = append(findings, chat.Finding{
			Name:        name,
			Category:    category,
			Description: strings.TrimSpace(raw.Description),
			Evidence:    quotes,
			Confidence:  confidence(raw.Confidence, cfg.DefaultConfidence),
		})
	}

	if len(findings) < cfg.MinFindings {
		return nil, fmt.Errorf("%w: %d usable findings, need %d", ErrInvalidShape, len(findings), cfg.MinFindings)
	}
	for _, c := range cfg.Categories {
		if !hasCategory(findings, c) {
			return nil, fmt.Errorf("%w: no finding in category %q", ErrInvalidShape, c)
		}
	}
	if cfg.MaxFindings > 0 && len(findings) > cfg.MaxFindings {
		findings = findings[:cfg.MaxFindings]
	}

	return &chat.Artifact{
		Kind:     cfg.Kind,
		Findings: findings,
		Summary:  strings.TrimSpace(p.Summary),
		Source:   chat.SourceAI,
	}, nil
}

// Fallback derives findings from keyword evidence in the user's turns and
// pads them with the module defaults.
func Fallback(cfg module.Extraction, transcript []chat.Turn) *chat.Artifact {
	texts := make([]string, 0, len(transcript))
	for _, turn := range chat.UserTurns(transcript) {
		texts = append(texts, turn.Content)
	}

	findings := make([]chat.Finding, 0, cfg.MinFindings)
	for _, match := range evidence.Scan(texts, cfg.Buckets) {
		findings = append(findings, chat.Finding{
			Name:        match.Bucket.Name,
			Category:    match.Bucket.Category,
			Description: match.Bucket.Description,
			Evidence:    match.Quotes,
			Confidence:  matchConfidence(match.Score),
		})
	}

	// 先保证每个类别至少一项，再补足最小数量。
	for _, c := range cfg.Categories {
		if hasCategory(findings, c) {
			continue
		}
		for _, d := range cfg.Defaults {
			if d.Category == c && !hasName(findings, d.Name) {
				findings = append(findings, cloneFinding(d))
				break
			}
		}
	}
	for _, d := range cfg.Defaults {
		if len(findings) >= cfg.MinFindings {
			break
		}
		if !hasName(findings, d.Name) {
			findings = append(findings, cloneFinding(d))
		}
	}
	if cfg.MaxFindings > 0 && len(findings) > cfg.MaxFindings {
		findings = findings[:cfg.MaxFindings]
	}

	return &chat.Artifact{
		Kind:     cfg.Kind,
		Findings: findings,
		Summary:  fallbackSummary,
		Source:   chat.SourceFallback,
	}
}

func systemPrompt(def module.Definition) string {
	var b strings.Builder
	b.WriteString("You analyse a guided self-discovery conversation for the module \"")
	b.WriteString(def.Name)
	b.WriteString("\".\n")
	b.WriteString(def.Extraction.Instructions)
	b.WriteString("\nQuote the user's own words as evidence. Respond with JSON only.")
	return b.String()
}

func userPrompt(transcript []chat.Turn, externalContext string) string {
	var b strings.Builder
	if ctx := strings.TrimSpace(externalContext); ctx != "" {
		b.WriteString("Background provided by the user:\n")
		b.WriteString(ctx)
		b.WriteString("\n\n")
	}
	b.WriteString("Conversation:\n")
	for _, turn := range transcript {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		if turn.Role == chat.RoleUser {
			b.WriteString("User: ")
		} else {
			b.WriteString("Counselor: ")
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return b.String()
}

func cleanEvidence(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

func confidence(raw *float64, def int) int {
	if raw == nil {
		return clamp(def)
	}
	return clamp(int(math.Round(*raw)))
}

// matchConfidence stays below what a model-backed finding usually gets.
func matchConfidence(score int) int {
	return min(45+score*5, 90)
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func hasCategory(findings []chat.Finding, category string) bool {
	for _, f := range findings {
		if f.Category == category {
			return true
		}
	}
	return false
}

func hasName(findings []chat.Finding, name string) bool {
	for _, f := range findings {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

func cloneFinding(f chat.Finding) chat.Finding {
	f.Evidence = append([]string(nil), f.Evidence...)
	return f
}

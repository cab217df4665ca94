package module

import (
	"github.com/lifecraft/profiler/backend/internal/analysis/evidence"
	"github.com/lifecraft/profiler/backend/internal/analysis/stage"
	"github.com/lifecraft/profiler/backend/internal/model/chat"
)

// Definition describes one guided self-assessment dialogue: its stages,
// prompts and the shape of what it extracts.
type Definition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OpeningLine string `json:"openingLine"`

	SystemPrompt string                `json:"-"`
	StageGuides  map[chat.Stage]string `json:"-"`

	// FallbackQuestions are used in order, one per exchange, when the
	// backend is unavailable.
	FallbackQuestions []string `json:"-"`
	// ExtractionLine replaces the reply when extraction is due and the
	// backend is unavailable.
	ExtractionLine string `json:"-"`
	ClosingLine    string `json:"-"`

	Policy     stage.Policy `json:"-"`
	Extraction Extraction   `json:"-"`
	Suggestion Suggestion   `json:"-"`
}

// Extraction configures how findings are pulled out of the transcript.
type Extraction struct {
	Kind         string
	Instructions string
	// Categories, when set, restricts findings to these categories and
	// requires at least one finding per category.
	Categories      []string
	MinFindings     int
	MaxFindings     int
	RequireEvidence bool
	// DefaultConfidence is used when the model omits a score.
	DefaultConfidence int
	// Buckets drive the deterministic fallback from the user's own words.
	Buckets []evidence.Bucket
	// Defaults pad the fallback when the transcript matched too few buckets.
	Defaults []chat.Finding
}

// Suggestion configures the non-streaming auto-fill call.
type Suggestion struct {
	Instructions string
	Fallback     map[string]any
}

// StageView is the public description of a module's stage sequence.
type StageView struct {
	Stages          []chat.Stage `json:"stages"`
	ExtractionStage chat.Stage   `json:"extractionStage"`
	MinExchanges    int          `json:"minExchangesForExtraction"`
	MaxExchanges    int          `json:"maxExchanges,omitempty"`
	ConfirmFrom     chat.Stage   `json:"confirmFrom,omitempty"`
	ConfirmTo       chat.Stage   `json:"confirmTo,omitempty"`
}

// View exposes the stage configuration without prompt text.
func (d Definition) View() StageView {
	return StageView{
		Stages:          append([]chat.Stage(nil), d.Policy.Stages...),
		ExtractionStage: d.Policy.ExtractionStage,
		MinExchanges:    d.Policy.MinExchangesForExtraction,
		MaxExchanges:    d.Policy.MaxExchanges,
		ConfirmFrom:     d.Policy.ConfirmFrom,
		ConfirmTo:       d.Policy.ConfirmTo,
	}
}

// FallbackQuestion picks the scripted question for the given exchange.
func (d Definition) FallbackQuestion(exchange int) string {
	if len(d.FallbackQuestions) == 0 {
		return d.OpeningLine
	}
	idx := exchange - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(d.FallbackQuestions) {
		idx = len(d.FallbackQuestions) - 1
	}
	return d.FallbackQuestions[idx]
}

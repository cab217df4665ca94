// Package stage decides, from the transcript and the exchange counter, which
// discovery stage a dialogue is in and whether extraction is due. It performs
// no I/O and cannot fail.
package stage

import (
	"fmt"

	"github.com/lifecraft/profiler/backend/internal/analysis/evidence"
	"github.com/lifecraft/profiler/backend/internal/model/chat"
)

// Step is one automatic transition. It fires when either threshold is met;
// a zero threshold is ignored. A step with both thresholds zero never fires.
type Step struct {
	From           chat.Stage
	To             chat.Stage
	MinExchanges   int
	MinSubstantive int
}

// Policy is the per-module stage configuration.
type Policy struct {
	// Stages lists every stage in order. The first is the initial stage, the
	// last is terminal.
	Stages []chat.Stage

	ExtractionStage           chat.Stage
	MinExchangesForExtraction int

	// MaxExchanges bounds the dialogue; zero means unbounded.
	MaxExchanges int

	Steps []Step

	// ConfirmFrom/ConfirmTo describe the explicit confirmation transition.
	ConfirmFrom chat.Stage
	ConfirmTo   chat.Stage
	// ConfirmRequiresArtifact blocks confirmation until extraction happened.
	ConfirmRequiresArtifact bool
}

// Input is everything Decide looks at.
type Input struct {
	Stage            chat.Stage
	Transcript       []chat.Turn
	ExchangeCount    int
	AlreadyExtracted bool
	Bootstrap        bool
}

// Decision is the ephemeral result of one Decide call.
type Decision struct {
	EffectiveStage chat.Stage
	ShouldExtract  bool
	ShouldAdvance  bool
	NextStage      chat.Stage
	CanContinue    bool
	Reason         string
}

// Initial returns the stage new sessions start in.
func (p Policy) Initial() chat.Stage {
	if len(p.Stages) == 0 {
		return ""
	}
	return p.Stages[0]
}

// Terminal returns the last stage.
func (p Policy) Terminal() chat.Stage {
	if len(p.Stages) == 0 {
		return ""
	}
	return p.Stages[len(p.Stages)-1]
}

// IsTerminal reports whether s accepts no further dialogue turns.
func (p Policy) IsTerminal(s chat.Stage) bool {
	return len(p.Stages) > 1 && s == p.Terminal()
}

// Index returns the position of s in the ordered stage list, or -1.
func (p Policy) Index(s chat.Stage) int {
	for i, candidate := range p.Stages {
		if candidate == s {
			return i
		}
	}
	return -1
}

// Accepts reports whether a new user turn may be taken at the given cursor.
func (p Policy) Accepts(s chat.Stage, exchangeCount int) bool {
	if p.IsTerminal(s) {
		return false
	}
	return p.MaxExchanges == 0 || exchangeCount < p.MaxExchanges
}

// Validate checks that the configuration is internally consistent.
func (p Policy) Validate() error {
	if len(p.Stages) == 0 {
		return fmt.Errorf("policy has no stages")
	}
	seen := make(map[chat.Stage]bool, len(p.Stages))
	for _, s := range p.Stages {
		if s == "" {
			return fmt.Errorf("policy has an empty stage name")
		}
		if seen[s] {
			return fmt.Errorf("duplicate stage %q", s)
		}
		seen[s] = true
	}
	if p.ExtractionStage != "" && !seen[p.ExtractionStage] {
		return fmt.Errorf("extraction stage %q is not declared", p.ExtractionStage)
	}
	for _, step := range p.Steps {
		if !seen[step.From] || !seen[step.To] {
			return fmt.Errorf("step %s->%s references an undeclared stage", step.From, step.To)
		}
		if p.Index(step.To) <= p.Index(step.From) {
			return fmt.Errorf("step %s->%s moves backwards", step.From, step.To)
		}
	}
	if p.ConfirmFrom != "" {
		if !seen[p.ConfirmFrom] || !seen[p.ConfirmTo] {
			return fmt.Errorf("confirmation %s->%s references an undeclared stage", p.ConfirmFrom, p.ConfirmTo)
		}
		if p.Index(p.ConfirmTo) <= p.Index(p.ConfirmFrom) {
			return fmt.Errorf("confirmation %s->%s moves backwards", p.ConfirmFrom, p.ConfirmTo)
		}
	}
	if p.MaxExchanges > 0 && p.MinExchangesForExtraction > p.MaxExchanges {
		return fmt.Errorf("min exchanges for extraction %d exceeds max exchanges %d", p.MinExchangesForExtraction, p.MaxExchanges)
	}
	return nil
}

// Decide computes the stage decision for one orchestrator run. ExchangeCount
// must already include the current turn; bootstrap runs pass the unchanged
// counter.
func (p Policy) Decide(in Input) Decision {
	current := in.Stage
	if current == "" {
		current = p.Initial()
	}

	decision := Decision{
		EffectiveStage: current,
		CanContinue:    p.Accepts(current, in.ExchangeCount),
	}

	if in.Bootstrap {
		decision.Reason = "bootstrap"
		return decision
	}
	if p.IsTerminal(current) {
		decision.CanContinue = false
		decision.Reason = "terminal stage"
		return decision
	}

	if next, reason, ok := p.advance(current, in); ok {
		decision.ShouldAdvance = true
		decision.NextStage = next
		decision.EffectiveStage = next
		decision.Reason = reason
	}

	decision.ShouldExtract = p.ExtractionStage != "" &&
		decision.EffectiveStage == p.ExtractionStage &&
		in.ExchangeCount >= p.MinExchangesForExtraction &&
		!in.AlreadyExtracted
	if decision.ShouldExtract {
		decision.Reason = "extraction due"
	}

	decision.CanContinue = p.Accepts(decision.EffectiveStage, in.ExchangeCount)
	return decision
}

// advance applies at most one automatic step per run, matching one stage per
// exchange.
func (p Policy) advance(current chat.Stage, in Input) (chat.Stage, string, bool) {
	userTexts := make([]string, 0, len(in.Transcript))
	for _, turn := range chat.UserTurns(in.Transcript) {
		userTexts = append(userTexts, turn.Content)
	}

	// An off-track last answer holds the dialogue where it is.
	if n := len(userTexts); n > 0 {
		if verdict := evidence.Judge(userTexts[n-1]); !verdict.Substantive {
			return "", "awaiting a substantive answer: " + verdict.Reason, false
		}
	}
	substantive := evidence.CountSubstantive(userTexts)

	for _, step := range p.Steps {
		if step.From != current {
			continue
		}
		if step.MinExchanges > 0 && in.ExchangeCount >= step.MinExchanges {
			return step.To, fmt.Sprintf("%d exchanges reached", in.ExchangeCount), true
		}
		if step.MinSubstantive > 0 && substantive >= step.MinSubstantive {
			return step.To, fmt.Sprintf("%d substantive answers", substantive), true
		}
	}
	return "", "", false
}

// Confirm applies the explicit confirmation transition. Confirming a session
// that already moved past ConfirmFrom is a no-op: it returns the current stage
// and changed=false. ok is false when confirmation is not possible yet.
func (p Policy) Confirm(current chat.Stage, extracted bool) (next chat.Stage, changed bool, ok bool) {
	if p.ConfirmFrom == "" {
		return current, false, false
	}
	if current == "" {
		current = p.Initial()
	}
	if p.Index(current) >= p.Index(p.ConfirmTo) {
		return current, false, true
	}
	if current != p.ConfirmFrom {
		return current, false, false
	}
	if p.ConfirmRequiresArtifact && !extracted {
		return current, false, false
	}
	return p.ConfirmTo, true, true
}

package profiling

import (
	"strings"

	"github.com/lifecraft/profiler/backend/internal/analysis/stage"
	"github.com/lifecraft/profiler/backend/internal/model/chat"
	"github.com/lifecraft/profiler/backend/internal/model/module"
)

const bootstrapQuery = "Please open the conversation now."

// systemPrompt layers the module persona, the stage guide and the run's
// decision into one system message.
func systemPrompt(def module.Definition, session chat.Session, decision stage.Decision, bootstrap bool, external string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(def.SystemPrompt))

	b.WriteString("\n\nCurrent stage: ")
	b.WriteString(string(decision.EffectiveStage))
	if guide := def.StageGuides[decision.EffectiveStage]; guide != "" {
		b.WriteString("\nStage goal: ")
		b.WriteString(guide)
	}

	switch {
	case bootstrap:
		b.WriteString("\nOpen the conversation warmly in your own words. A reference opening: ")
		b.WriteString(def.OpeningLine)
	case decision.ShouldExtract:
		b.WriteString("\nYou have heard enough to share findings. Thank the user and announce that a summary of what you noticed follows. Do not list the findings yourself.")
	case !decision.CanContinue:
		b.WriteString("\nThis is the final exchange. Acknowledge the answer and close the conversation kindly without asking another question.")
	}

	if session.Artifact != nil && len(session.Artifact.Findings) > 0 {
		names := make([]string, 0, len(session.Artifact.Findings))
		for _, f := range session.Artifact.Findings {
			names = append(names, f.Name)
		}
		b.WriteString("\nFindings already shared with the user: ")
		b.WriteString(strings.Join(names, ", "))
	}

	if external = strings.TrimSpace(external); external != "" {
		b.WriteString("\n\nBackground from the user's earlier answers:\n")
		b.WriteString(external)
	}
	return b.String()
}

// fallbackReply picks the scripted reply used when generation produced
// nothing.
func fallbackReply(def module.Definition, decision stage.Decision, bootstrap bool, exchanges int) string {
	switch {
	case bootstrap:
		return def.OpeningLine
	case decision.ShouldExtract:
		return def.ExtractionLine
	case !decision.CanContinue && def.ClosingLine != "":
		return def.ClosingLine
	default:
		return def.FallbackQuestion(exchanges)
	}
}

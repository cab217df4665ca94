package chat

import "time"

// Source tells the caller whether a result came from the model or from a
// deterministic substitute.
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

// Finding is one structured insight drawn from the dialogue, e.g. a strength
// or a life theme.
type Finding struct {
	Name        string   `json:"name"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	Evidence    []string `json:"evidence"`
	Confidence  int      `json:"confidence"`
}

// Artifact is the module-specific result of an extraction.
type Artifact struct {
	Kind        string    `json:"kind"`
	Findings    []Finding `json:"findings"`
	Summary     string    `json:"summary,omitempty"`
	Source      Source    `json:"source"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Clone deep-copies the artifact.
func (a Artifact) Clone() Artifact {
	findings := make([]Finding, len(a.Findings))
	for i, f := range a.Findings {
		f.Evidence = append([]string(nil), f.Evidence...)
		findings[i] = f
	}
	a.Findings = findings
	return a
}

// Categories returns finding names grouped by category, preserving order.
func (a Artifact) Categories() map[string][]string {
	out := make(map[string][]string)
	for _, f := range a.Findings {
		out[f.Category] = append(out[f.Category], f.Name)
	}
	return out
}

package chat

import "time"

// Stage names one phase of a guided dialogue. Each module declares its own
// ordered set of stages.
type Stage string

// Session captures one ongoing profiling dialogue.
type Session struct {
	ID            string    `json:"id"`
	Module        string    `json:"module"`
	Stage         Stage     `json:"stage"`
	ExchangeCount int       `json:"exchangeCount"`
	Extracted     bool      `json:"extracted"`
	Artifact      *Artifact `json:"artifact,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers never share the stored artifact.
func (s Session) Clone() Session {
	if s.Artifact != nil {
		artifact := s.Artifact.Clone()
		s.Artifact = &artifact
	}
	return s
}

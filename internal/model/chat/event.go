package chat

// EventType discriminates the stream events sent to the caller.
type EventType string

const (
	EventMetadata EventType = "metadata"
	EventContent  EventType = "content"
	EventArtifact EventType = "derivedArtifact"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one element of a turn's response stream. Only the fields relevant
// to Type are populated.
type Event struct {
	Type          EventType `json:"type"`
	SessionID     string    `json:"sessionId,omitempty"`
	Module        string    `json:"module,omitempty"`
	Stage         Stage     `json:"stage,omitempty"`
	ExchangeCount *int      `json:"exchangeCount,omitempty"`
	Content       string    `json:"content,omitempty"`
	Artifact      *Artifact `json:"derivedArtifact,omitempty"`
	FullResponse  string    `json:"fullResponse,omitempty"`
	Source        Source    `json:"source,omitempty"`
	CanContinue   *bool     `json:"canContinue,omitempty"`
	Message       string    `json:"message,omitempty"`
}

// MetadataEvent opens a turn stream.
func MetadataEvent(sessionID, module string, stage Stage, exchanges int) Event {
	return Event{Type: EventMetadata, SessionID: sessionID, Module: module, Stage: stage, ExchangeCount: &exchanges}
}

// ContentEvent carries one generated fragment.
func ContentEvent(fragment string) Event {
	return Event{Type: EventContent, Content: fragment}
}

// ArtifactEvent carries the extraction result.
func ArtifactEvent(artifact *Artifact) Event {
	return Event{Type: EventArtifact, Artifact: artifact}
}

// ErrorEvent reports a degraded turn without exposing backend details.
func ErrorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}

// CompleteEvent closes a turn stream.
func CompleteEvent(full string, stage Stage, exchanges int, source Source, canContinue bool) Event {
	return Event{
		Type:          EventComplete,
		FullResponse:  full,
		Stage:         stage,
		ExchangeCount: &exchanges,
		Source:        source,
		CanContinue:   &canContinue,
	}
}

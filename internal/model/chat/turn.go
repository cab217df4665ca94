package chat

import "time"

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one immutable transcript entry.
type Turn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Stage     Stage     `json:"stage,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserTurns filters the transcript down to what the user said.
func UserTurns(turns []Turn) []Turn {
	out := make([]Turn, 0, len(turns)/2+1)
	for _, t := range turns {
		if t.Role == RoleUser {
			out = append(out, t)
		}
	}
	return out
}

package event

type Type string

const (
	TypeSessionChanged Type = "session.changed"
	TypeNotice         Type = "session.notice"
	TypeNavigate       Type = "navigate"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}

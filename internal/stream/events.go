package stream

type EventType string

const (
	EventConnected EventType = "connected"
	EventContent   EventType = "content"
	EventDone      EventType = "done"
	EventError     EventType = "error"
	EventHeartbeat EventType = "heartbeat"
)

// Event is one frame of a streaming response. Seq is monotonic within a
// session across all event types.
type Event struct {
	Type    EventType   `json:"type"`
	Seq     int64       `json:"seq"`
	Content string      `json:"content,omitempty"`
	Error   string      `json:"error,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

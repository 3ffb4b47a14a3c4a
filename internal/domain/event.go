package domain

// EventType enumerates the inbound push events the chat core reacts to.
type EventType string

const (
	EventNewMessage  EventType = "new_message"
	EventTypingStart EventType = "typing_start"
	EventTypingStop  EventType = "typing_stop"
	EventReadReceipt EventType = "read_receipt"
)

// Event is a decoded inbound push event. Every event carries the chat it
// applies to.
type Event struct {
	Type      EventType
	ChatID    string
	UserID    string
	Message   *Message
	MessageID MessageID
}
